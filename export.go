package gizmo

import (
	"fmt"
	"io"

	"github.com/meigma/gizmo/internal/bundle"
)

// Export writes the stored bytes of every indexed identifier matching the
// glob pattern to dst as a zstd-compressed tar bundle with a digest manifest.
// Files are named by cache key plus the kind's extension hint. Records whose
// bytes are missing or stale are skipped and reported in the returned error.
func (c *AssetCache) Export(dst io.Writer, pattern string) (int, error) {
	re, err := globRegexp(pattern)
	if err != nil {
		return 0, fmt.Errorf("gizmo: export pattern %q: %w", pattern, err)
	}

	bw, err := bundle.NewWriter(dst)
	if err != nil {
		return 0, err
	}
	var skipped []ID
	for _, rec := range c.Records() {
		if !re.MatchString(rec.ID.String()) {
			continue
		}
		data, ok := c.store.Get(rec.ID.CacheKey())
		if !ok || Checksum(data) != rec.CRC32 {
			skipped = append(skipped, rec.ID)
			continue
		}
		name := rec.ID.CacheKey() + rec.ID.Kind.Extension()
		if err := bw.Add(rec.ID.String(), name, rec.ID.Kind.String(), data); err != nil {
			return bw.Len(), err
		}
	}
	if err := bw.Close(); err != nil {
		return bw.Len(), err
	}

	c.log().WithField("files", bw.Len()).Debug("exported bundle")
	if len(skipped) > 0 {
		return bw.Len(), fmt.Errorf("gizmo: export skipped %d damaged entries: %v", len(skipped), skipped)
	}
	return bw.Len(), nil
}
