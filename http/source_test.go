package http_test

import (
	"bytes"
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/gizmo/grp"
	gizmohttp "github.com/meigma/gizmo/http"
	"github.com/meigma/gizmo/internal/testutil"
	"github.com/meigma/gizmo/ne"
)

func serve(t *testing.T, data []byte) string {
	t.Helper()
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestSourceReadAt(t *testing.T) {
	t.Parallel()

	data := []byte("hello world")
	src, err := gizmohttp.NewSource(context.Background(), serve(t, data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), src.Size())

	buf := make([]byte, 5)
	n, err := src.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))

	edge := make([]byte, 10)
	n, err = src.ReadAt(edge, int64(len(data)-3))
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "rld", string(edge[:n]))

	_, err = src.ReadAt(buf, int64(len(data)))
	assert.ErrorIs(t, err, io.EOF)
}

func TestSourceReadAtContext(t *testing.T) {
	t.Parallel()

	probeCtx, cancelProbe := context.WithCancel(context.Background())
	src, err := gizmohttp.NewSource(probeCtx, serve(t, []byte("hello world")))
	require.NoError(t, err)
	cancelProbe()

	// Reads do not inherit the context used to open the source.
	buf := make([]byte, 5)
	_, err = src.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.ReadAtContext(ctx, buf, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSourceRangeUnsupported(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		_, _ = w.Write([]byte("range unsupported"))
	}))
	t.Cleanup(server.Close)

	_, err := gizmohttp.NewSource(context.Background(), server.URL)
	assert.ErrorIs(t, err, gizmohttp.ErrRangeUnsupported)
}

func TestSourceFeedsParsers(t *testing.T) {
	t.Parallel()

	container := testutil.NewContainer(0).Add(ne.TypeRCData, 3, []byte("remote")).Bytes()
	src, err := gizmohttp.NewSource(context.Background(), serve(t, container))
	require.NoError(t, err)
	f, err := ne.New(src)
	require.NoError(t, err)
	got, err := f.Extract(ne.TypeRCData, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("remote"), got)

	archive := testutil.NewArchive(testutil.LayoutOffset).Add("A.TXT", []byte("entry")).Bytes()
	src, err = gizmohttp.NewSource(context.Background(), serve(t, archive))
	require.NoError(t, err)
	a, err := grp.New(src)
	require.NoError(t, err)
	got, err = a.Extract("a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("entry"), got)
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	assert.True(t, gizmohttp.IsURL("https://example.com/GAME.EXE"))
	assert.True(t, gizmohttp.IsURL("http://host/ART.GRP"))
	assert.False(t, gizmohttp.IsURL("/games/GAME.EXE"))
}
