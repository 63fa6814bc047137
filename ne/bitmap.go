package ne

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meigma/gizmo/internal/binread"
)

const (
	fileHeaderSize = 14
	coreHeaderSize = 12
	infoHeaderSize = 40
)

// Bitmap returns the bitmap resource with the given id as a standalone
// bitmap file, ready for a standard image decoder.
func (f *File) Bitmap(id uint16) ([]byte, error) {
	raw, err := f.Extract(TypeBitmap, id)
	if err != nil {
		return nil, err
	}
	return SynthesizeBitmap(raw)
}

// WriteBitmap writes the bitmap resource with the given id to path as a
// complete bitmap file. The file is written atomically.
func (f *File) WriteBitmap(id uint16, path string) error {
	data, err := f.Bitmap(id)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// SynthesizeBitmap prepends a 14-byte bitmap file header to a bitmap
// resource, which starts with its device-independent header.
//
// The pixel data offset is 14 + header size + palette size. The palette is
// empty above 8 bits per pixel; otherwise it holds the stored color count
// (or 1<<bitDepth when that is zero) entries of 4 bytes, or 3 bytes for the
// 12-byte core header.
func SynthesizeBitmap(raw []byte) ([]byte, error) {
	r := binread.New(raw)
	hdrSize := r.U32()

	var (
		bitCount  uint16
		colors    uint32
		entrySize uint32 = 4
	)
	switch {
	case hdrSize == coreHeaderSize:
		r.Seek(10)
		bitCount = r.U16()
		entrySize = 3
	case hdrSize >= infoHeaderSize:
		r.Seek(14)
		bitCount = r.U16()
		r.Seek(32)
		colors = r.U32()
	default:
		return nil, fmt.Errorf("%w: header size %d", ErrInvalidBitmap, hdrSize)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBitmap, err)
	}
	if uint64(hdrSize) > uint64(len(raw)) {
		return nil, fmt.Errorf("%w: header size %d exceeds resource size %d", ErrInvalidBitmap, hdrSize, len(raw))
	}

	var paletteSize uint64
	if bitCount <= 8 {
		if colors == 0 {
			colors = 1 << bitCount
		}
		paletteSize = uint64(colors) * uint64(entrySize)
	}
	pixelOffset := fileHeaderSize + uint64(hdrSize) + paletteSize
	fileSize := uint64(fileHeaderSize) + uint64(len(raw))
	if pixelOffset > fileSize || fileSize > 0xFFFFFFFF {
		return nil, fmt.Errorf("%w: pixel offset %d beyond file size %d", ErrInvalidBitmap, pixelOffset, fileSize)
	}

	out := make([]byte, fileSize)
	out[0], out[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(out[2:6], uint32(fileSize))
	binary.LittleEndian.PutUint32(out[10:14], uint32(pixelOffset))
	copy(out[fileHeaderSize:], raw)
	return out, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".bitmap-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
