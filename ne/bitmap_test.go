package ne

import (
	"bytes"
	"encoding/binary"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/meigma/gizmo/internal/testutil"
)

var twoColors = [][3]byte{{0, 0, 0}, {255, 128, 0}}

func TestSynthesizeBitmapHeader(t *testing.T) {
	t.Parallel()

	raw := testutil.Bitmap8(4, 2, twoColors, []byte{0, 1, 1, 0, 1, 0, 0, 1})
	out, err := SynthesizeBitmap(raw)
	require.NoError(t, err)

	assert.Equal(t, []byte("BM"), out[:2])
	assert.Equal(t, uint32(14+len(raw)), binary.LittleEndian.Uint32(out[2:6]))
	assert.Equal(t, uint32(14+40+2*4), binary.LittleEndian.Uint32(out[10:14]))
	assert.Equal(t, raw, out[14:])
}

func TestSynthesizedBitmapDecodes(t *testing.T) {
	t.Parallel()

	pixels := []byte{0, 1, 1, 0, 1, 0, 0, 1}
	raw := testutil.Bitmap8(4, 2, twoColors, pixels)
	out, err := SynthesizeBitmap(raw)
	require.NoError(t, err)

	img, err := bmp.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())

	paletted, ok := img.(*image.Paletted)
	require.True(t, ok)
	// Bottom-up: the first stored row is the last image row.
	assert.Equal(t, uint8(1), paletted.ColorIndexAt(1, 1))
	assert.Equal(t, uint8(0), paletted.ColorIndexAt(0, 1))
	r, g, b, _ := paletted.At(1, 1).RGBA()
	assert.Equal(t, []uint32{0xFFFF, 0x8080, 0}, []uint32{r, g, b})
}

func TestSynthesizeBitmapPaletteRules(t *testing.T) {
	t.Parallel()

	info := func(bitCount uint16, colors uint32) []byte {
		raw := make([]byte, 40+1024)
		binary.LittleEndian.PutUint32(raw[0:], 40)
		binary.LittleEndian.PutUint16(raw[14:], bitCount)
		binary.LittleEndian.PutUint32(raw[32:], colors)
		return raw
	}
	core := func(bitCount uint16) []byte {
		raw := make([]byte, 12+768)
		binary.LittleEndian.PutUint32(raw[0:], 12)
		binary.LittleEndian.PutUint16(raw[10:], bitCount)
		return raw
	}

	tests := []struct {
		name       string
		raw        []byte
		wantOffset uint32
	}{
		{name: "8bpp default colors", raw: info(8, 0), wantOffset: 14 + 40 + 256*4},
		{name: "4bpp default colors", raw: info(4, 0), wantOffset: 14 + 40 + 16*4},
		{name: "8bpp stored colors", raw: info(8, 20), wantOffset: 14 + 40 + 20*4},
		{name: "24bpp no palette", raw: info(24, 0), wantOffset: 14 + 40},
		{name: "16bpp ignores stored colors", raw: info(16, 12), wantOffset: 14 + 40},
		{name: "core header", raw: core(8), wantOffset: 14 + 12 + 256*3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := SynthesizeBitmap(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOffset, binary.LittleEndian.Uint32(out[10:14]))
		})
	}
}

func TestSynthesizeBitmapInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "empty", raw: nil},
		{name: "odd header size", raw: []byte{20, 0, 0, 0, 0, 0, 0, 0}},
		{name: "header longer than data", raw: []byte{40, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := SynthesizeBitmap(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidBitmap)
		})
	}

	// Palette claims more bytes than the resource holds.
	raw := make([]byte, 40)
	binary.LittleEndian.PutUint32(raw[0:], 40)
	binary.LittleEndian.PutUint16(raw[14:], 8)
	_, err := SynthesizeBitmap(raw)
	assert.ErrorIs(t, err, ErrInvalidBitmap)
}

func TestWriteBitmap(t *testing.T) {
	t.Parallel()

	raw := testutil.Bitmap8(4, 2, twoColors, []byte{0, 1, 1, 0, 1, 0, 0, 1})
	img := testutil.NewContainer(0).Add(TypeBitmap, 0x8064, raw).Bytes()
	f, err := New(testutil.NewMockByteSource(img))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "100.bmp")
	require.NoError(t, f.WriteBitmap(100, out))

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	want, err := f.Bitmap(100)
	require.NoError(t, err)
	assert.Equal(t, want, written)

	_, err = bmp.DecodeConfig(bytes.NewReader(written))
	require.NoError(t, err)

	assert.ErrorIs(t, f.WriteBitmap(101, out), ErrResourceNotFound)
}
