package index

import (
	"encoding/binary"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesLayout(t *testing.T) {
	t.Parallel()

	idx := New()
	idx.Put(Record{ID: "s:bitmap:1", Kind: 0, CRC32: 0xDEADBEEF, Timestamp: 1700000000})
	data := idx.Bytes()

	want := []byte{1, 0, 0, 0, 10, 0, 0, 0}
	want = append(want, "s:bitmap:1"...)
	want = append(want, 0, 0, 0, 0)
	want = append(want, 0xEF, 0xBE, 0xAD, 0xDE)
	want = binary.LittleEndian.AppendUint64(want, 1700000000)
	assert.Equal(t, want, data)
}

func TestLoadRoundTrip(t *testing.T) {
	t.Parallel()

	idx := New()
	idx.Put(Record{ID: "b:sound:2", Kind: 2, CRC32: 7, Timestamp: 9})
	idx.Put(Record{ID: "a:data:1", Kind: 4, CRC32: 8, Timestamp: 10})
	idx.Put(Record{ID: "", Kind: 1})

	got, err := Load(idx.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
	assert.Equal(t, slices.Collect(idx.All()), slices.Collect(got.All()))

	ids := make([]string, 0, 3)
	for rec := range got.All() {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"", "a:data:1", "b:sound:2"}, ids)
}

func TestLoadEmpty(t *testing.T) {
	t.Parallel()

	idx, err := Load(New().Bytes())
	require.NoError(t, err)
	assert.Zero(t, idx.Len())
}

func TestLoadCorrupt(t *testing.T) {
	t.Parallel()

	good := New()
	good.Put(Record{ID: "s:data:1", Kind: 4, CRC32: 1, Timestamp: 2})
	data := good.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "no count", data: []byte{1, 0}},
		{name: "count exceeds data", data: []byte{0xFF, 0xFF, 0, 0, 0, 0, 0, 0}},
		{name: "truncated record", data: data[:len(data)-3]},
		{name: "identifier too long", data: func() []byte {
			d := slices.Clone(data)
			binary.LittleEndian.PutUint32(d[4:], maxIDLen+1)
			return d
		}()},
		{name: "identifier past end", data: func() []byte {
			d := slices.Clone(data)
			binary.LittleEndian.PutUint32(d[4:], 100)
			return d
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(tt.data)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestLoadDuplicateLastWins(t *testing.T) {
	t.Parallel()

	rec := func(crc uint32) []byte {
		var b []byte
		b = binary.LittleEndian.AppendUint32(b, 1)
		b = append(b, 'x')
		b = binary.LittleEndian.AppendUint32(b, 4)
		b = binary.LittleEndian.AppendUint32(b, crc)
		return binary.LittleEndian.AppendUint64(b, 0)
	}
	data := binary.LittleEndian.AppendUint32(nil, 2)
	data = append(data, rec(1)...)
	data = append(data, rec(2)...)

	idx, err := Load(data)
	require.NoError(t, err)
	r, ok := idx.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, uint32(2), r.CRC32)
}

func TestPutLookupDelete(t *testing.T) {
	t.Parallel()

	idx := New()
	_, ok := idx.Lookup("s:data:1")
	assert.False(t, ok)

	idx.Put(Record{ID: "s:data:1", CRC32: 1})
	idx.Put(Record{ID: "s:data:1", CRC32: 2})
	r, ok := idx.Lookup("s:data:1")
	require.True(t, ok)
	assert.Equal(t, uint32(2), r.CRC32)
	assert.Equal(t, 1, idx.Len())

	assert.True(t, idx.Delete("s:data:1"))
	assert.False(t, idx.Delete("s:data:1"))
	assert.Zero(t, idx.Len())
}

func TestFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), FileName)
	idx := New()
	idx.Put(Record{ID: "gizmo256:bitmap:100", Kind: 0, CRC32: 42, Timestamp: 1})
	require.NoError(t, idx.WriteFile(path))

	got, err := ReadFile(path)
	require.NoError(t, err)
	r, ok := got.Lookup("gizmo256:bitmap:100")
	require.True(t, ok)
	assert.Equal(t, uint32(42), r.CRC32)

	_, err = ReadFile(filepath.Join(t.TempDir(), FileName))
	assert.Error(t, err)
}
