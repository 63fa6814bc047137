package grp

import (
	"fmt"
	"image"

	"github.com/meigma/gizmo/internal/binread"
)

const (
	spriteHeaderSize = 12
	maxSpriteDim     = 4096
)

// Sprite is a decoded palette-indexed image.
type Sprite struct {
	Width    int
	Height   int
	HotspotX int
	HotspotY int
	Flags    uint16

	// Pixels holds one palette index per pixel, row-major. Index 0 is
	// transparent in run-length encoded sprites.
	Pixels []byte

	// Palette is the sprite's own palette when HasPalette is set, otherwise
	// a copy of the archive palette at decode time.
	Palette    Palette
	HasPalette bool
}

// DecodeSprite decodes a sprite payload.
//
// The payload starts with a 12-byte header (width, height, hotspot x/y,
// flags, palette offset). If width*height bytes follow, they are the raw
// pixel indices; otherwise the pixels are a run-length stream. A nonzero
// in-bounds palette offset points at an embedded VGA palette; without one,
// the sprite uses fallback.
func DecodeSprite(data []byte, fallback Palette) (*Sprite, error) {
	r := binread.New(data)
	width, height := int(r.U16()), int(r.U16())
	hotX, hotY := int(r.I16()), int(r.I16())
	flags := r.U16()
	palOff := int(r.U16())
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: sprite header: %v", ErrTruncated, err)
	}
	if width <= 0 || height <= 0 || width > maxSpriteDim || height > maxSpriteDim {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	s := &Sprite{
		Width:    width,
		Height:   height,
		HotspotX: hotX,
		HotspotY: hotY,
		Flags:    flags,
		Pixels:   make([]byte, width*height),
		Palette:  fallback,
	}

	hasPalette := palOff != 0 && palOff < len(data)
	pixelEnd := len(data)
	if hasPalette && palOff > spriteHeaderSize {
		pixelEnd = palOff
	}
	body := data[spriteHeaderSize:pixelEnd]
	if len(body) >= len(s.Pixels) {
		copy(s.Pixels, body)
	} else {
		decodeSpriteRLE(body, s.Pixels)
	}

	if hasPalette {
		if p, n := ParseVGA(data[palOff:]); n > 0 {
			s.Palette = p
			s.HasPalette = true
		}
	}
	return s, nil
}

// decodeSpriteRLE expands a sprite pixel stream into dst.
//
// Tokens: 0,n skips n transparent pixels; 0x80+n,v repeats v n times;
// 1..127 copies that many literal bytes. A zero count ends the stream.
func decodeSpriteRLE(src, dst []byte) {
	pos, i := 0, 0
	for i < len(src) && pos < len(dst) {
		b := src[i]
		i++
		switch {
		case b == 0:
			if i >= len(src) || src[i] == 0 {
				return
			}
			pos += int(src[i])
			i++
		case b >= 0x80:
			n := int(b) - 0x80
			if n == 0 || i >= len(src) {
				return
			}
			v := src[i]
			i++
			for ; n > 0 && pos < len(dst); n-- {
				dst[pos] = v
				pos++
			}
		default:
			n := min(int(b), len(src)-i, len(dst)-pos)
			copy(dst[pos:], src[i:i+n])
			pos += n
			i += n
		}
	}
}

// Image returns the sprite as an image.Paletted sharing its pixel buffer.
func (s *Sprite) Image() *image.Paletted {
	return &image.Paletted{
		Pix:     s.Pixels,
		Stride:  s.Width,
		Rect:    image.Rect(0, 0, s.Width, s.Height),
		Palette: s.Palette.Colors(),
	}
}
