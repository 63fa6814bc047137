// Package assettype defines error classes shared by the container parser, the
// archive reader and the asset cache. This avoids circular imports between the
// root package and the format packages.
package assettype

import "errors"

// Error classes. Format packages wrap these so the asset cache can classify
// failures without knowing which parser produced them.
var (
	// ErrFormat marks a source file whose header or table is corrupt.
	ErrFormat = errors.New("invalid format")

	// ErrPayload marks a single resource or entry whose bytes cannot be decoded.
	ErrPayload = errors.New("malformed payload")

	// ErrNotFound marks a resource or entry that does not exist in its source.
	ErrNotFound = errors.New("not found")
)
