package gizmo

// Stats is a snapshot of cache counters. Counters reset on ClearCache.
type Stats struct {
	// TexturesLoaded counts bitmap and sprite handles created.
	TexturesLoaded uint64
	// TexturesCached is the number of bitmap and sprite handles in memory.
	TexturesCached int
	// SoundsLoaded counts sound and music handles created.
	SoundsLoaded uint64
	// CacheHits counts Get calls served by an existing handle.
	CacheHits uint64
	// CacheMisses counts Get calls that had to load.
	CacheMisses uint64
	// DiskHits counts loads served from the persistent store.
	DiskHits uint64
	// Decodes counts extractions from containers and archives.
	Decodes uint64
	// MemoryUsed is the sum of decoded byte sizes held by handles.
	MemoryUsed int64
	// Handles is the number of in-memory handles.
	Handles int
	// Records is the number of records in the cache index.
	Records int
}

type counters struct {
	texturesLoaded uint64
	soundsLoaded   uint64
	hits           uint64
	misses         uint64
	diskHits       uint64
	decodes        uint64
	memoryUsed     int64
}
