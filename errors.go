package gizmo

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/meigma/gizmo/grp"
	"github.com/meigma/gizmo/internal/assettype"
)

// Error taxonomy returned by AssetCache operations.
var (
	// ErrInvalidIdentifier is returned for malformed identifier strings.
	ErrInvalidIdentifier = errors.New("gizmo: invalid asset identifier")

	// ErrSourceNotFound is returned when the source file, or the resource or
	// entry inside it, does not exist.
	ErrSourceNotFound = errors.New("gizmo: source not found")

	// ErrDecodeFailed is returned when a source cannot be parsed or an asset
	// payload is malformed.
	ErrDecodeFailed = errors.New("gizmo: decode failed")

	// ErrIndexMissing is returned when the cache index file does not exist.
	ErrIndexMissing = errors.New("gizmo: cache index missing")

	// ErrClosed is returned by operations on a closed AssetCache.
	ErrClosed = errors.New("gizmo: asset cache closed")
)

// Parser error classes shared by the container and archive packages.
var (
	// ErrFormat matches bad magic and corrupt headers from either parser.
	ErrFormat = assettype.ErrFormat

	// ErrInvalidDimensions matches sprites with zero or oversized dimensions.
	ErrInvalidDimensions = grp.ErrInvalidDimensions
)

// AssetError describes a failed operation on one identifier.
//
// errors.Is matches both the taxonomy error in Kind and the underlying cause.
type AssetError struct {
	ID   string
	Op   string
	Kind error
	Err  error
}

func (e *AssetError) Error() string {
	var cause string
	switch {
	case e.Err == nil:
		cause = e.Kind.Error()
	case errors.Is(e.Err, e.Kind):
		cause = e.Err.Error()
	default:
		cause = e.Kind.Error() + ": " + e.Err.Error()
	}
	return "gizmo: " + e.Op + " " + e.ID + ": " + strings.TrimPrefix(cause, "gizmo: ")
}

func (e *AssetError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// classify maps a source or parser error onto the taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrInvalidIdentifier):
		return ErrInvalidIdentifier
	case errors.Is(err, ErrSourceNotFound),
		errors.Is(err, assettype.ErrNotFound),
		errors.Is(err, fs.ErrNotExist):
		return ErrSourceNotFound
	default:
		return ErrDecodeFailed
	}
}

func assetError(op, id string, err error) error {
	return &AssetError{ID: id, Op: op, Kind: classify(err), Err: err}
}
