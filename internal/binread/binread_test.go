package binread

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderFields(t *testing.T) {
	t.Parallel()

	r := New([]byte{
		0x01,
		0x34, 0x12,
		0xFE, 0xFF,
		0x78, 0x56, 0x34, 0x12,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		'a', 'b',
	})

	assert.Equal(t, uint8(1), r.U8())
	assert.Equal(t, uint16(0x1234), r.U16())
	assert.Equal(t, int16(-2), r.I16())
	assert.Equal(t, uint32(0x12345678), r.U32())
	assert.Equal(t, uint64(0x0102030405060708), r.U64())
	assert.Equal(t, []byte("ab"), r.Bytes(2))
	require.NoError(t, r.Err())
	assert.Equal(t, 0, r.Remaining())
}

func TestReaderShortIsSticky(t *testing.T) {
	t.Parallel()

	r := New([]byte{0x01, 0x02, 0x03})
	assert.Equal(t, uint16(0x0201), r.U16())
	assert.Equal(t, uint32(0), r.U32())
	require.ErrorIs(t, r.Err(), ErrShort)

	// Once failed, further reads return zero values even if bytes remain.
	assert.Equal(t, uint8(0), r.U8())
	assert.Equal(t, 2, r.Offset())
}

func TestReaderSeek(t *testing.T) {
	t.Parallel()

	r := New([]byte{0, 0, 0, 0, 0xAA})
	r.Seek(4)
	assert.Equal(t, uint8(0xAA), r.U8())
	r.Seek(6)
	assert.ErrorIs(t, r.Err(), ErrShort)
}

func TestReadAt(t *testing.T) {
	t.Parallel()

	src := bytes.NewReader([]byte("hello world"))

	got, err := ReadAt(src, 6, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), got)

	_, err = ReadAt(src, 6, 10)
	assert.ErrorIs(t, err, ErrShort)

	got, err = ReadAt(src, 3, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
