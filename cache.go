package gizmo

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/gizmo/cache"
	"github.com/meigma/gizmo/cache/disk"
	"github.com/meigma/gizmo/grp"
	"github.com/meigma/gizmo/internal/index"
	"github.com/meigma/gizmo/internal/logutil"
)

// Record is the metadata kept for one asset in the persistent store.
//
// Only the identifier, kind, CRC32 and timestamp are written to the index
// file; the source location is known only for assets extracted by this
// process.
type Record struct {
	ID           ID
	SourcePath   string
	SourceOffset int64
	CRC32        uint32
	Timestamp    time.Time
}

// ValidationReport lists index records whose cached bytes are absent or no
// longer match the recorded CRC32.
type ValidationReport struct {
	Checked int
	Missing []ID
	Stale   []ID
}

// OK reports whether every checked record is intact.
func (r ValidationReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Stale) == 0
}

// AssetCache resolves identifiers to decoded assets through an in-memory
// handle index backed by a persistent byte store.
//
// Concurrent Get calls for the same identifier share a single load, so each
// identifier is extracted at most once at a time. Distinct identifiers load
// in parallel. An AssetCache is safe for concurrent use.
type AssetCache struct {
	dir            string
	indexPath      string
	searchDirs     []string
	store          cache.Store
	logger         logrus.FieldLogger
	now            func() time.Time
	preloadWorkers int

	flights singleflight.Group

	// mu guards everything below plus Handle.refs.
	mu      sync.Mutex
	closed  bool
	gen     uint64
	handles map[ID]*Handle
	records map[ID]Record
	dirty   bool
	stats   counters
	palette grp.Palette

	// srcMu guards sources. It may be held while taking mu, never the reverse.
	srcMu   sync.Mutex
	sources map[string]*source
}

// New creates an asset cache rooted at dir. Decoded bytes are stored in dir
// unless WithStore overrides it, and the index file is always kept there.
//
// An existing index file is loaded; a missing or unreadable one starts the
// cache empty.
func New(dir string, opts ...Option) (*AssetCache, error) {
	if dir == "" {
		return nil, errors.New("gizmo: cache dir is empty")
	}
	c := &AssetCache{
		dir:            dir,
		indexPath:      filepath.Join(dir, index.FileName),
		searchDirs:     []string{"."},
		now:            time.Now,
		preloadWorkers: DefaultPreloadConcurrency,
		handles:        make(map[ID]*Handle),
		records:        make(map[ID]Record),
		palette:        grp.Grayscale(),
		sources:        make(map[string]*source),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}

	if c.store == nil {
		d, err := disk.New(dir)
		if err != nil {
			return nil, fmt.Errorf("gizmo: create cache store: %w", err)
		}
		c.store = d
	} else if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("gizmo: create cache dir: %w", err)
	}

	switch err := c.LoadCacheIndex(); {
	case err == nil:
	case errors.Is(err, ErrIndexMissing):
		c.log().WithField("path", c.indexPath).Debug("no cache index, starting empty")
	default:
		c.log().WithError(err).Warn("ignoring unreadable cache index")
	}
	return c, nil
}

func (c *AssetCache) log() logrus.FieldLogger {
	return logutil.Or(c.logger)
}

// Dir returns the cache directory.
func (c *AssetCache) Dir() string {
	return c.dir
}

// IndexPath returns the location of the index file.
func (c *AssetCache) IndexPath() string {
	return c.indexPath
}

// Get parses s as an identifier and returns its handle, loading it if
// needed. Each successful call adds a reference.
func (c *AssetCache) Get(s string) (*Handle, error) {
	id, err := ParseID(s)
	if err != nil {
		return nil, &AssetError{ID: s, Op: "get", Kind: ErrInvalidIdentifier, Err: err}
	}
	return c.GetID(id)
}

// GetID returns the handle for id, loading it if needed. Each successful
// call adds a reference.
//
// A load first tries the persistent store and then extracts from the source.
// A failed load leaves no handle and no record behind.
func (c *AssetCache) GetID(id ID) (*Handle, error) {
	if err := id.validate(); err != nil {
		return nil, &AssetError{ID: id.String(), Op: "get", Kind: ErrInvalidIdentifier, Err: err}
	}

	missed := false
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, &AssetError{ID: id.String(), Op: "get", Kind: ErrClosed}
		}
		if h, ok := c.handles[id]; ok {
			h.refs++
			if !missed {
				c.stats.hits++
			}
			c.mu.Unlock()
			return h, nil
		}
		if !missed {
			c.stats.misses++
			missed = true
		}
		gen := c.gen
		c.mu.Unlock()

		// Flights are per generation so a caller arriving after ClearCache
		// never joins a load whose handle will not be published.
		v, err, _ := c.flights.Do(flightKey(id, gen), func() (any, error) {
			// Double-check: a previous flight may have finished between the
			// miss above and this one starting.
			c.mu.Lock()
			h, ok := c.handles[id]
			c.mu.Unlock()
			if ok {
				return h, nil
			}
			return c.load(id, gen)
		})
		if err != nil {
			return nil, err
		}

		h, _ := v.(*Handle) //nolint:errcheck // type assertion always succeeds when err is nil
		c.mu.Lock()
		if c.gen != gen {
			// Cleared while loading; h was not published.
			c.mu.Unlock()
			continue
		}
		h.refs++
		c.mu.Unlock()
		return h, nil
	}
}

func flightKey(id ID, gen uint64) string {
	return id.String() + "#" + strconv.FormatUint(gen, 10)
}

func (c *AssetCache) load(id ID, gen uint64) (*Handle, error) {
	key := id.CacheKey()
	logger := c.log().WithField("id", id.String())

	if data, ok := c.store.Get(key); ok {
		h, err := c.fromStore(id, data)
		if err == nil {
			c.mu.Lock()
			if gen == c.gen {
				c.stats.diskHits++
			}
			c.insertLocked(h, gen)
			c.mu.Unlock()
			logger.Debug("loaded asset from store")
			return h, nil
		}
		logger.WithError(err).Warn("discarding cached asset")
	}

	src, err := c.source(id.Source)
	if err != nil {
		return nil, assetError("get", id.String(), err)
	}
	ex, err := src.extract(id)
	if err != nil {
		return nil, assetError("get", id.String(), err)
	}

	h := &Handle{
		id:     id,
		data:   ex.data,
		crc:    Checksum(ex.data),
		sprite: ex.sprite,
		cache:  c,
	}
	rec := Record{
		ID:           id,
		SourcePath:   src.path,
		SourceOffset: ex.offset,
		CRC32:        h.crc,
		Timestamp:    c.now().UTC(),
	}
	persisted := true
	if err := c.store.Put(key, ex.data); err != nil {
		persisted = false
		logger.WithError(err).Warn("failed to persist asset")
	}

	c.mu.Lock()
	if persisted {
		c.records[id] = rec
		c.dirty = true
	}
	if gen == c.gen {
		c.stats.decodes++
	}
	c.insertLocked(h, gen)
	c.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"source": src.path,
		"offset": ex.offset,
		"bytes":  len(ex.data),
	}).Debug("extracted asset")
	return h, nil
}

// fromStore wraps bytes read from the persistent store, rejecting them when
// they disagree with the index record or do not decode.
func (c *AssetCache) fromStore(id ID, data []byte) (*Handle, error) {
	sum := Checksum(data)

	c.mu.Lock()
	rec, known := c.records[id]
	palette := c.palette
	c.mu.Unlock()
	if known && rec.CRC32 != sum {
		return nil, fmt.Errorf("crc32 %08x does not match record %08x", sum, rec.CRC32)
	}

	h := &Handle{id: id, data: data, crc: sum, cache: c}
	if id.Kind == KindSprite {
		sp, err := grp.DecodeSprite(data, palette)
		if err != nil {
			return nil, err
		}
		h.sprite = sp
	}

	if !known {
		c.mu.Lock()
		c.records[id] = Record{ID: id, CRC32: sum, Timestamp: c.now().UTC()}
		c.dirty = true
		c.mu.Unlock()
	}
	return h, nil
}

// insertLocked publishes h unless the cache was cleared since the load
// started.
func (c *AssetCache) insertLocked(h *Handle, gen uint64) {
	if gen != c.gen || c.closed {
		return
	}
	c.handles[h.id] = h
	c.stats.memoryUsed += int64(len(h.data))
	switch {
	case h.id.Kind.IsTexture():
		c.stats.texturesLoaded++
	case h.id.Kind.IsAudio():
		c.stats.soundsLoaded++
	}
}

// source returns the opened source for name, opening it on first use.
func (c *AssetCache) source(name string) (*source, error) {
	key := strings.ToLower(name)

	c.srcMu.Lock()
	defer c.srcMu.Unlock()
	if s, ok := c.sources[key]; ok {
		return s, nil
	}
	path, typ, err := findSource(c.searchDirs, name)
	if err != nil {
		return nil, err
	}
	s, err := openSource(name, path, typ, c.Palette(), c.log())
	if err != nil {
		return nil, err
	}
	c.sources[key] = s
	c.log().WithFields(logrus.Fields{
		"source": name,
		"path":   path,
		"type":   typ.String(),
	}).Debug("opened source")
	return s, nil
}

// Release parses s and drops one reference from its handle. The handle stays
// cached at zero references.
func (c *AssetCache) Release(s string) error {
	id, err := ParseID(s)
	if err != nil {
		return &AssetError{ID: s, Op: "release", Kind: ErrInvalidIdentifier, Err: err}
	}
	c.ReleaseID(id)
	return nil
}

// ReleaseID drops one reference from the handle for id, if it is loaded.
func (c *AssetCache) ReleaseID(id ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.handles[id]; ok && h.refs > 0 {
		h.refs--
	}
}

// ClearCache drops every in-memory handle and resets statistics. Files in
// the persistent store and index records are kept.
func (c *AssetCache) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.handles {
		h.refs = 0
	}
	c.handles = make(map[ID]*Handle)
	c.stats = counters{}
	c.gen++
}

// Invalidate parses s and removes its handle, index record and stored bytes.
func (c *AssetCache) Invalidate(s string) error {
	id, err := ParseID(s)
	if err != nil {
		return &AssetError{ID: s, Op: "invalidate", Kind: ErrInvalidIdentifier, Err: err}
	}

	c.mu.Lock()
	if h, ok := c.handles[id]; ok {
		c.stats.memoryUsed -= int64(len(h.data))
		h.refs = 0
		delete(c.handles, id)
	}
	if _, ok := c.records[id]; ok {
		delete(c.records, id)
		c.dirty = true
	}
	c.mu.Unlock()

	if err := c.store.Delete(id.CacheKey()); err != nil {
		return fmt.Errorf("gizmo: invalidate %s: %w", id, err)
	}
	return nil
}

// Put stores data as the decoded bytes of the asset s and records its CRC32.
// A loaded handle holding different bytes is dropped so the next Get serves
// data. Sprite payloads must decode.
func (c *AssetCache) Put(s string, data []byte) error {
	id, err := ParseID(s)
	if err != nil {
		return &AssetError{ID: s, Op: "put", Kind: ErrInvalidIdentifier, Err: err}
	}

	c.mu.Lock()
	closed := c.closed
	palette := c.palette
	c.mu.Unlock()
	if closed {
		return &AssetError{ID: s, Op: "put", Kind: ErrClosed}
	}
	if id.Kind == KindSprite {
		if _, err := grp.DecodeSprite(data, palette); err != nil {
			return &AssetError{ID: s, Op: "put", Kind: ErrDecodeFailed, Err: err}
		}
	}
	if err := c.store.Put(id.CacheKey(), data); err != nil {
		return fmt.Errorf("gizmo: put %s: %w", id, err)
	}

	sum := Checksum(data)
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.records[id]
	c.records[id] = Record{
		ID:           id,
		SourcePath:   prev.SourcePath,
		SourceOffset: prev.SourceOffset,
		CRC32:        sum,
		Timestamp:    c.now().UTC(),
	}
	c.dirty = true
	if h, ok := c.handles[id]; ok && h.crc != sum {
		c.stats.memoryUsed -= int64(len(h.data))
		delete(c.handles, id)
	}
	return nil
}

// Preload loads every indexed identifier matching the glob pattern (* and ?)
// and drops the reference it took. It returns how many identifiers loaded
// and the joined errors of those that failed.
func (c *AssetCache) Preload(ctx context.Context, pattern string) (int, error) {
	re, err := globRegexp(pattern)
	if err != nil {
		return 0, fmt.Errorf("gizmo: preload pattern %q: %w", pattern, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	var ids []ID
	for id := range c.records {
		if re.MatchString(id.String()) {
			ids = append(ids, id)
		}
	}
	c.mu.Unlock()
	sortIDs(ids)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, c.preloadWorkers))

	var mu sync.Mutex
	var errs []error
	loaded := 0
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h, err := c.GetID(id)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			c.ReleaseID(h.ID())
			mu.Lock()
			loaded++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	c.log().WithFields(logrus.Fields{
		"pattern": pattern,
		"matched": len(ids),
		"loaded":  loaded,
	}).Debug("preload finished")
	return loaded, errors.Join(errs...)
}

// ValidateCache checks that the index file exists and that every record's
// stored bytes are present with a matching CRC32.
func (c *AssetCache) ValidateCache() (ValidationReport, error) {
	if _, err := os.Stat(c.indexPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ValidationReport{}, fmt.Errorf("%w: %s", ErrIndexMissing, c.indexPath)
		}
		return ValidationReport{}, err
	}

	records := c.Records()
	report := ValidationReport{Checked: len(records)}
	for _, rec := range records {
		data, ok := c.store.Get(rec.ID.CacheKey())
		switch {
		case !ok:
			report.Missing = append(report.Missing, rec.ID)
		case Checksum(data) != rec.CRC32:
			report.Stale = append(report.Stale, rec.ID)
		}
	}
	if !report.OK() {
		c.log().WithFields(logrus.Fields{
			"missing": len(report.Missing),
			"stale":   len(report.Stale),
		}).Warn("cache validation found damaged entries")
	}
	return report, nil
}

// SaveCacheIndex writes every record to the index file.
func (c *AssetCache) SaveCacheIndex() error {
	idx := index.New()
	c.mu.Lock()
	for id, rec := range c.records {
		ts := rec.Timestamp.Unix()
		if ts < 0 {
			ts = 0
		}
		idx.Put(index.Record{
			ID:        id.String(),
			Kind:      uint32(id.Kind),
			CRC32:     rec.CRC32,
			Timestamp: uint64(ts),
		})
	}
	c.dirty = false
	c.mu.Unlock()

	if err := idx.WriteFile(c.indexPath); err != nil {
		c.mu.Lock()
		c.dirty = true
		c.mu.Unlock()
		return fmt.Errorf("gizmo: save cache index: %w", err)
	}
	c.log().WithFields(logrus.Fields{
		"path":    c.indexPath,
		"records": idx.Len(),
	}).Debug("saved cache index")
	return nil
}

// LoadCacheIndex replaces the in-memory records with the index file's.
// Records with unparseable identifiers or mismatched kinds are skipped.
func (c *AssetCache) LoadCacheIndex() error {
	idx, err := index.ReadFile(c.indexPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrIndexMissing, c.indexPath)
		}
		return fmt.Errorf("gizmo: load cache index: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	records := make(map[ID]Record, idx.Len())
	for rec := range idx.All() {
		id, err := ParseID(rec.ID)
		if err != nil {
			c.log().WithError(err).Warn("skipping index record")
			continue
		}
		if uint32(id.Kind) != rec.Kind {
			c.log().WithFields(logrus.Fields{
				"id":   rec.ID,
				"kind": rec.Kind,
			}).Warn("skipping index record with mismatched kind")
			continue
		}
		r := Record{
			ID:        id,
			CRC32:     rec.CRC32,
			Timestamp: time.Unix(int64(rec.Timestamp), 0).UTC(), //nolint:gosec // timestamps fit in int64
		}
		if prev, ok := c.records[id]; ok && prev.CRC32 == r.CRC32 {
			r.SourcePath = prev.SourcePath
			r.SourceOffset = prev.SourceOffset
		}
		records[id] = r
	}
	c.records = records
	c.dirty = false
	c.log().WithFields(logrus.Fields{
		"path":    c.indexPath,
		"records": len(records),
	}).Debug("loaded cache index")
	return nil
}

// Records returns every index record ordered by identifier.
func (c *AssetCache) Records() []Record {
	c.mu.Lock()
	out := make([]Record, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec)
	}
	c.mu.Unlock()
	slices.SortFunc(out, func(a, b Record) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// Record parses s and returns its index record.
func (c *AssetCache) Record(s string) (Record, bool) {
	id, err := ParseID(s)
	if err != nil {
		return Record{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	return rec, ok
}

// Stats returns a snapshot of the cache counters.
func (c *AssetCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		TexturesLoaded: c.stats.texturesLoaded,
		SoundsLoaded:   c.stats.soundsLoaded,
		CacheHits:      c.stats.hits,
		CacheMisses:    c.stats.misses,
		DiskHits:       c.stats.diskHits,
		Decodes:        c.stats.decodes,
		MemoryUsed:     c.stats.memoryUsed,
		Handles:        len(c.handles),
		Records:        len(c.records),
	}
	for id := range c.handles {
		if id.Kind.IsTexture() {
			s.TexturesCached++
		}
	}
	return s
}

// StoreSize returns the bytes held by the persistent store, when the store
// can report it.
func (c *AssetCache) StoreSize() (int64, bool, error) {
	sz, ok := c.store.(cache.Sizer)
	if !ok {
		return 0, false, nil
	}
	n, err := sz.Size()
	return n, true, err
}

// Prune shrinks the persistent store to at most targetBytes. Records whose
// bytes are pruned stay in the index and reload from their source on the
// next Get.
func (c *AssetCache) Prune(targetBytes int64) (freed int64, err error) {
	p, ok := c.store.(cache.Pruner)
	if !ok {
		return 0, errors.New("gizmo: store does not support pruning")
	}
	freed, remaining, err := p.Prune(targetBytes)
	c.log().WithFields(logrus.Fields{
		"freed":     freed,
		"remaining": remaining,
	}).Debug("pruned store")
	return freed, err
}

// SetPalette replaces the default sprite palette, including for archives
// that are already open.
func (c *AssetCache) SetPalette(p grp.Palette) {
	c.mu.Lock()
	c.palette = p
	c.mu.Unlock()

	c.srcMu.Lock()
	defer c.srcMu.Unlock()
	for _, s := range c.sources {
		if s.typ == SourceArchive {
			s.archive.SetPalette(p)
		}
	}
}

// Palette returns the default sprite palette.
func (c *AssetCache) Palette() grp.Palette {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.palette
}

// Close saves the index if it changed and closes every open source. Further
// Get calls fail with ErrClosed.
func (c *AssetCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	dirty := c.dirty
	c.mu.Unlock()

	var errs []error
	if dirty {
		errs = append(errs, c.SaveCacheIndex())
	}

	c.srcMu.Lock()
	for key, s := range c.sources {
		errs = append(errs, s.close())
		delete(c.sources, key)
	}
	c.srcMu.Unlock()
	return errors.Join(errs...)
}

// Checksum returns the IEEE CRC32 stored in records for data.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

func sortIDs(ids []ID) {
	slices.SortFunc(ids, func(a, b ID) int {
		return strings.Compare(a.String(), b.String())
	})
}
