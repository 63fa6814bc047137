package grp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meigma/gizmo/internal/testutil"
)

func TestDecompressRLE(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  []byte
		size int
		want []byte
	}{
		{name: "run", src: []byte{0x82, 0x05}, size: 3, want: []byte{0x05, 0x05, 0x05}},
		{name: "literals", src: []byte{0x01, 0x0A, 0x0B}, size: 2, want: []byte{0x0A, 0x0B}},
		{name: "literal count past input", src: []byte{0x02, 0x0A, 0x0B}, size: 3, want: []byte{0x0A, 0x0B}},
		{name: "literal count past target", src: []byte{0x02, 0x0A, 0x0B, 0x81, 0x07}, size: 2, want: []byte{0x0A, 0x0B}},
		{name: "literal then run", src: []byte{0x01, 0x0A, 0x0B, 0x81, 0x07}, size: 4, want: []byte{0x0A, 0x0B, 0x07, 0x07}},
		{name: "run clipped to target", src: []byte{0xFF, 0x01}, size: 5, want: []byte{1, 1, 1, 1, 1}},
		{name: "max run", src: []byte{0xFF, 0x09}, size: 200, want: bytes.Repeat([]byte{9}, 128)},
		{name: "run missing value", src: []byte{0x00, 0x01, 0x85}, size: 10, want: []byte{0x01}},
		{name: "empty", src: nil, size: 4, want: []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DecompressRLE(tt.src, tt.size))
		})
	}
}

func TestDecompressRLEEncoderRoundTrip(t *testing.T) {
	t.Parallel()

	data := append(bytes.Repeat([]byte{0xAA}, 300), []byte("mixed literal tail 1234")...)
	data = append(data, bytes.Repeat([]byte{0}, 7)...)
	stream := testutil.EncodeRLE(data)
	assert.Less(t, len(stream), len(data))
	assert.Equal(t, data, DecompressRLE(stream, len(data)))
}

func TestDecompressLZ(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  []byte
		size int
		want []byte
	}{
		{
			name: "all literals",
			src:  []byte{0xFF, 'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h'},
			size: 8,
			want: []byte("abcdefgh"),
		},
		{
			// literals "ab", then distance 2 length 4: ((2-1)<<4)|(4-3) = 0x0011.
			name: "back reference overlaps output",
			src:  []byte{0x03, 'a', 'b', 0x11, 0x00},
			size: 6,
			want: []byte("ababab"),
		},
		{
			// literal "x", then distance 1 length 3: 0x0000.
			name: "run via distance one",
			src:  []byte{0x01, 'x', 0x00, 0x00},
			size: 4,
			want: []byte("xxxx"),
		},
		{
			// distance 5 before any output: zeros.
			name: "reference before start emits zeros",
			src:  []byte{0x00, 0x40, 0x00},
			size: 3,
			want: []byte{0, 0, 0},
		},
		{
			name: "stops at target",
			src:  []byte{0x01, 'q', 0x0F, 0x00},
			size: 5,
			want: []byte("qqqqq"),
		},
		{
			name: "second control byte",
			src:  []byte{0xFF, '1', '2', '3', '4', '5', '6', '7', '8', 0x01, '9'},
			size: 9,
			want: []byte("123456789"),
		},
		{
			name: "truncated reference word",
			src:  []byte{0x01, 'z', 0x00},
			size: 4,
			want: []byte("z"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DecompressLZ(tt.src, tt.size))
		})
	}
}

func TestCompressionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", CompressionNone.String())
	assert.Equal(t, "rle", CompressionRLE.String())
	assert.Equal(t, "lz", CompressionLZ.String())
	assert.Equal(t, "unknown", Compression(9).String())
}
