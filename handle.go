package gizmo

import (
	"bytes"
	_ "crypto/sha256" // registers sha256 for go-digest
	"fmt"
	"image"

	"github.com/opencontainers/go-digest"
	"golang.org/x/image/bmp"

	"github.com/meigma/gizmo/grp"
)

// Handle is an in-memory cache entry for one decoded asset.
//
// Handles are owned by the AssetCache. The reference count changes only
// through AssetCache.Get and AssetCache.Release, and the bytes stay cached
// at zero references until the cache is cleared or the asset invalidated.
type Handle struct {
	id     ID
	data   []byte
	crc    uint32
	sprite *grp.Sprite

	// refs is guarded by the owning cache's mutex.
	refs  int
	cache *AssetCache
}

// ID returns the identifier the handle was loaded for.
func (h *Handle) ID() ID {
	return h.id
}

// Kind returns the asset kind.
func (h *Handle) Kind() Kind {
	return h.id.Kind
}

// Extension returns the file extension hint for the handle's bytes.
func (h *Handle) Extension() string {
	return h.id.Kind.Extension()
}

// Bytes returns the decoded bytes. The slice is shared by every holder of
// the handle and must not be modified.
func (h *Handle) Bytes() []byte {
	return h.data
}

// Len returns the number of decoded bytes.
func (h *Handle) Len() int {
	return len(h.data)
}

// CRC32 returns the IEEE CRC32 of the decoded bytes.
func (h *Handle) CRC32() uint32 {
	return h.crc
}

// Digest returns the sha256 digest of the decoded bytes.
func (h *Handle) Digest() digest.Digest {
	return digest.FromBytes(h.data)
}

// Refs returns the current reference count.
func (h *Handle) Refs() int {
	h.cache.mu.Lock()
	defer h.cache.mu.Unlock()
	return h.refs
}

// Sprite returns the decoded sprite for sprite handles.
func (h *Handle) Sprite() (*grp.Sprite, bool) {
	return h.sprite, h.sprite != nil
}

// Image decodes the handle into an image. Bitmaps are decoded as BMP files
// and sprites are returned as paletted images; other kinds have no image form.
func (h *Handle) Image() (image.Image, error) {
	switch h.id.Kind {
	case KindBitmap:
		img, err := bmp.Decode(bytes.NewReader(h.data))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, h.id, err)
		}
		return img, nil
	case KindSprite:
		return h.sprite.Image(), nil
	default:
		return nil, fmt.Errorf("%w: %s has no image form", ErrDecodeFailed, h.id.Kind)
	}
}
