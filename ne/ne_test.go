package ne

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/gizmo/internal/assettype"
	"github.com/meigma/gizmo/internal/testutil"
)

func payload(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = seed + byte(i)
	}
	return out
}

func TestSingleBitmapResource(t *testing.T) {
	t.Parallel()

	data := payload(200, 7)
	img := testutil.NewContainer(3).AddAt(TypeBitmap, 5, 0x1000, data).Bytes()

	f, err := New(testutil.NewMockByteSource(img))
	require.NoError(t, err)

	resources := f.Resources()
	require.Len(t, resources, 1)
	assert.Equal(t, Resource{
		TypeID:   TypeBitmap,
		ID:       5,
		Offset:   0x1000,
		Length:   200,
		TypeName: "BITMAP",
	}, resources[0])

	got, err := f.Extract(TypeBitmap, 5)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReadResourceAtMatchesTable(t *testing.T) {
	t.Parallel()

	b := testutil.NewContainer(4).
		Add(TypeBitmap, 1, payload(64, 1)).
		Add(TypeBitmap, 2, payload(32, 2)).
		Add(TypeRCData, 9, payload(16, 3)).
		Add(0x8000|0x21, 3, payload(48, 4))
	img := b.Bytes()

	f, err := New(testutil.NewMockByteSource(img))
	require.NoError(t, err)
	require.Len(t, f.Resources(), 4)

	for _, r := range f.Resources() {
		got, err := f.ReadResourceAt(r.Offset, r.Length)
		require.NoError(t, err)
		require.Len(t, got, int(r.Length))
		assert.Equal(t, img[r.Offset:r.Offset+r.Length], got, "resource %s/%d", r.TypeName, r.ID)
	}
	assert.Len(t, f.ResourcesOfType(TypeBitmap), 2)
	assert.Equal(t, "CUSTOM_33", f.ResourcesOfType(0x8021)[0].TypeName)
}

func TestTableShiftOverridesHeader(t *testing.T) {
	t.Parallel()

	b := testutil.NewContainer(9)
	b.TableShift = 4
	img := b.Add(TypeRCData, 1, payload(32, 0)).Bytes()

	f, err := New(testutil.NewMockByteSource(img))
	require.NoError(t, err)
	assert.Equal(t, uint16(4), f.Shift())

	r, ok := f.FindResource(TypeRCData, 1)
	require.True(t, ok)
	assert.Zero(t, r.Offset%16)
	assert.Equal(t, int64(32), r.Length)

	got, err := f.ReadResource(r)
	require.NoError(t, err)
	assert.Equal(t, payload(32, 0), got)
}

func TestBadMagic(t *testing.T) {
	t.Parallel()

	good := testutil.NewContainer(0).Add(TypeRCData, 1, []byte("x")).Bytes()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{name: "outer magic", mutate: func(b []byte) []byte { b[0] = 'Z'; return b }},
		{name: "ne magic", mutate: func(b []byte) []byte { b[0x41] = 'X'; return b }},
		{name: "ne header out of range", mutate: func(b []byte) []byte { b[0x3C] = 0xFF; b[0x3D] = 0xFF; return b }},
		{name: "too short", mutate: func(b []byte) []byte { return b[:10] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			img := tt.mutate(bytes.Clone(good))
			_, err := New(testutil.NewMockByteSource(img))
			require.ErrorIs(t, err, ErrBadMagic)
			assert.ErrorIs(t, err, assettype.ErrFormat)
		})
	}
}

func TestPartialTableKeepsParsedResources(t *testing.T) {
	t.Parallel()

	b := testutil.NewContainer(0).
		Add(TypeBitmap, 1, []byte("a")).
		Add(TypeRCData, 2, []byte("b")).
		Add(TypeRCData, 3, []byte("c"))
	img := b.Bytes()

	// Cut inside the second name entry of the RCDATA group.
	cut := 0x80 + 2 + 8 + 12 + 8 + 12 + 5
	f, err := New(testutil.NewMockByteSource(img[:cut]))
	require.NoError(t, err)

	resources := f.Resources()
	require.Len(t, resources, 2)
	assert.Equal(t, uint16(1), resources[0].ID)
	assert.Equal(t, uint16(2), resources[1].ID)
}

func TestEmptyTable(t *testing.T) {
	t.Parallel()

	img := testutil.NewContainer(4).Bytes()
	f, err := New(testutil.NewMockByteSource(img))
	require.NoError(t, err)
	assert.Empty(t, f.Resources())
}

func TestExtractNotFound(t *testing.T) {
	t.Parallel()

	img := testutil.NewContainer(0).Add(TypeBitmap, 1, []byte("a")).Bytes()
	f, err := New(testutil.NewMockByteSource(img))
	require.NoError(t, err)

	_, err = f.Extract(TypeBitmap, 2)
	require.ErrorIs(t, err, ErrResourceNotFound)
	assert.ErrorIs(t, err, assettype.ErrNotFound)
	assert.Contains(t, err.Error(), "BITMAP")

	_, err = f.Extract(TypeIcon, 1)
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestFindResourceIntegerFlag(t *testing.T) {
	t.Parallel()

	img := testutil.NewContainer(0).Add(TypeBitmap, 0x8007, []byte("flagged")).Bytes()
	f, err := New(testutil.NewMockByteSource(img))
	require.NoError(t, err)

	r, ok := f.FindResource(TypeBitmap, 7)
	require.True(t, ok)
	assert.Equal(t, uint16(0x8007), r.ID)
	assert.Equal(t, uint16(7), r.Number())

	r, ok = f.FindResource(TypeBitmap, 0x8007)
	require.True(t, ok)
	assert.Equal(t, uint16(7), r.Number())
}

func TestReadResourceTruncated(t *testing.T) {
	t.Parallel()

	img := testutil.NewContainer(0).Add(TypeRCData, 1, payload(100, 0)).Bytes()
	f, err := New(testutil.NewMockByteSource(img[:len(img)-10]))
	require.NoError(t, err)

	_, err = f.Extract(TypeRCData, 1)
	require.ErrorIs(t, err, ErrTruncated)
	assert.ErrorIs(t, err, assettype.ErrPayload)
}

func TestOpenFromDisk(t *testing.T) {
	t.Parallel()

	data := payload(24, 9)
	img := testutil.NewContainer(2).Add(TypeRCData, 4, data).Bytes()
	path := testutil.WriteFile(t, t.TempDir(), "GIZMO.EXE", img)

	f, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	got, err := f.Extract(TypeRCData, 4)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, f.Close())
	assert.NoError(t, f.Close(), "second close is a no-op")
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir() + "/missing.exe")
	require.Error(t, err)
}

func TestTypeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typeID uint16
		want   string
	}{
		{TypeBitmap, "BITMAP"},
		{TypeIcon, "ICON"},
		{TypeMenu, "MENU"},
		{TypeDialog, "DIALOG"},
		{TypeString, "STRING"},
		{TypeFont, "FONT"},
		{TypeRCData, "RCDATA"},
		{TypeGroupIcon, "GROUP_ICON"},
		{0x8000 | 0x100, "CUSTOM_256"},
		{0x0042, "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TypeName(tt.typeID), "type %#x", tt.typeID)
	}

	assert.True(t, IsCustomType(0x8100))
	assert.False(t, IsCustomType(TypeBitmap))
	assert.False(t, IsCustomType(0x0042))
}

func TestParseType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want uint16
		ok   bool
	}{
		{"BITMAP", TypeBitmap, true},
		{"rcdata", TypeRCData, true},
		{"CUSTOM_256", 0x8100, true},
		{"2", TypeBitmap, true},
		{"0x8100", 0x8100, true},
		{"CUSTOM_x", 0, false},
		{"sound", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseType(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
