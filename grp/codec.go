package grp

import "encoding/binary"

// Compression identifies the codec an entry is stored with.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionRLE
	CompressionLZ
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionRLE:
		return "rle"
	case CompressionLZ:
		return "lz"
	default:
		return "unknown"
	}
}

// DecompressRLE expands a run-length stream into at most size bytes.
//
// A control byte with the high bit set encodes a run: the low 7 bits plus one
// copies of the following byte. Otherwise the control value plus one literal
// bytes follow. Decoding stops when size bytes are produced or the input is
// exhausted, so the result may be shorter than size for truncated input.
func DecompressRLE(src []byte, size int) []byte {
	out := make([]byte, 0, size)
	i := 0
	for i < len(src) && len(out) < size {
		ctrl := src[i]
		i++
		if ctrl&0x80 != 0 {
			if i >= len(src) {
				break
			}
			v := src[i]
			i++
			for n := int(ctrl&0x7F) + 1; n > 0 && len(out) < size; n-- {
				out = append(out, v)
			}
			continue
		}
		n := min(int(ctrl)+1, len(src)-i, size-len(out))
		out = append(out, src[i:i+n]...)
		i += n
	}
	return out
}

// DecompressLZ expands a dictionary-compressed stream into at most size bytes.
//
// Each control byte flags the next eight tokens, least significant bit first.
// A set bit is a literal byte. A clear bit is a little-endian word holding
// ((distance-1)<<4)|(length-3); length bytes are copied from distance bytes
// back in the output. A reference before the start of the output yields zero
// bytes.
func DecompressLZ(src []byte, size int) []byte {
	out := make([]byte, 0, size)
	i := 0
	for i < len(src) && len(out) < size {
		ctrl := src[i]
		i++
		for bit := 0; bit < 8 && len(out) < size; bit++ {
			if ctrl&(1<<bit) != 0 {
				if i >= len(src) {
					return out
				}
				out = append(out, src[i])
				i++
				continue
			}
			if i+1 >= len(src) {
				return out
			}
			word := binary.LittleEndian.Uint16(src[i:])
			i += 2
			dist := int(word>>4) + 1
			for n := int(word&0x0F) + 3; n > 0 && len(out) < size; n-- {
				j := len(out) - dist
				if j < 0 {
					out = append(out, 0)
					continue
				}
				out = append(out, out[j])
			}
		}
	}
	return out
}
