package grp

import "image/color"

// PaletteSize is the number of entries in a palette.
const PaletteSize = 256

// Palette maps 8-bit pixel indices to colors.
type Palette [PaletteSize]color.RGBA

// Grayscale returns the default palette: a linear ramp from black to white.
func Grayscale() Palette {
	var p Palette
	for i := range p {
		v := uint8(i) //nolint:gosec // i < 256
		p[i] = color.RGBA{R: v, G: v, B: v, A: 0xFF}
	}
	return p
}

// ParseVGA reads up to 256 RGB triplets of 6-bit VGA values, scaling each
// component to 8 bits. Entries past the end of data stay transparent black.
// It returns the palette and the number of entries read.
func ParseVGA(data []byte) (Palette, int) {
	var p Palette
	n := min(len(data)/3, PaletteSize)
	for i := range n {
		p[i] = color.RGBA{
			R: data[i*3] << 2,
			G: data[i*3+1] << 2,
			B: data[i*3+2] << 2,
			A: 0xFF,
		}
	}
	return p, n
}

// Colors returns the palette as a color.Palette for image.Paletted.
func (p *Palette) Colors() color.Palette {
	out := make(color.Palette, PaletteSize)
	for i := range p {
		out[i] = p[i]
	}
	return out
}
