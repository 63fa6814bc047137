package gizmo

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meigma/gizmo/cache"
	"github.com/meigma/gizmo/grp"
)

// DefaultPreloadConcurrency is the number of identifiers Preload loads at once.
const DefaultPreloadConcurrency = 4

// Option configures an AssetCache.
type Option func(*AssetCache)

// WithSearchDirs sets the directories searched for containers and archives.
// Defaults to the current directory.
func WithSearchDirs(dirs ...string) Option {
	return func(c *AssetCache) {
		c.searchDirs = append([]string(nil), dirs...)
	}
}

// WithLogger sets the logger for cache and parser diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *AssetCache) {
		c.logger = l
	}
}

// WithStore replaces the disk store for decoded bytes. The cache index is
// still kept in the cache directory.
func WithStore(s cache.Store) Option {
	return func(c *AssetCache) {
		c.store = s
	}
}

// WithPalette sets the default palette for sprites without an embedded one.
func WithPalette(p grp.Palette) Option {
	return func(c *AssetCache) {
		c.palette = p
	}
}

// WithClock sets the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *AssetCache) {
		c.now = now
	}
}

// WithPreloadConcurrency sets how many identifiers Preload loads in
// parallel. Values < 1 load serially.
func WithPreloadConcurrency(n int) Option {
	return func(c *AssetCache) {
		c.preloadWorkers = n
	}
}
