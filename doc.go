// Package gizmo extracts game assets from legacy NE-style containers and GRP
// archives and serves them through a two-tier cache.
//
// Assets are addressed by identifiers of the form "source:kind:id", where
// source is a container or archive file name without extension, kind is one
// of bitmap, sprite, sound, music or data, and id is a resource or entry
// number. The low-level parsers live in the [ne] and [grp] subpackages.
//
// # Quick Start
//
//	c, err := gizmo.New("/var/cache/gizmo", gizmo.WithSearchDirs("./data"))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	h, err := c.Get("gizmo256:bitmap:100")
//	if err != nil {
//	    return err
//	}
//	defer c.Release("gizmo256:bitmap:100")
//	img, err := h.Image()
//
// # Caching
//
// The first Get for an identifier extracts it from its source, stores the
// bytes as <cache dir>/<key>.cache and records their CRC32 in the cache
// index. Later Gets in the same process return the in-memory handle; after
// a restart the bytes are read back from the store and checked against the
// index record. Concurrent Gets for one identifier share a single load.
//
// The index is written to cache_index.dat by SaveCacheIndex and Close.
package gizmo
