// Package grp reads GRP archives: a flat file table of named entries,
// optionally run-length or dictionary compressed, including palette-indexed
// sprite payloads.
//
// The entry-count location varies between archive revisions. It is read
// immediately after the header, and when that value is implausible, at the
// offset in the first header field and then the second. Both layouts are
// supported.
//
// An Archive is safe for concurrent use.
package grp

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/meigma/gizmo/internal/assettype"
	"github.com/meigma/gizmo/internal/binread"
	"github.com/meigma/gizmo/internal/logutil"
	"github.com/meigma/gizmo/internal/sizing"
)

const (
	headerSize = 16
	countSize  = 4
	entrySize  = 26
	nameSize   = 13

	// MaxEntries bounds a plausible entry count.
	MaxEntries = 65535

	// MaxEntrySize bounds the decompressed size of a single entry (256MB).
	MaxEntrySize = 256 << 20
)

// Magic opens and closes the archive header.
var Magic = [4]byte{'G', 'R', 'P', 0x1A}

// Entry flag bits.
const (
	FlagRLE uint8 = 0x01
	FlagLZ  uint8 = 0x02
)

// Sentinel errors.
var (
	// ErrBadMagic is returned when the header magic does not match.
	ErrBadMagic = fmt.Errorf("grp: bad magic: %w", assettype.ErrFormat)

	// ErrBadTable is returned when neither table layout yields a usable table.
	ErrBadTable = fmt.Errorf("grp: bad file table: %w", assettype.ErrFormat)

	// ErrEntryNotFound is returned when no entry has the requested name.
	ErrEntryNotFound = fmt.Errorf("grp: entry %w", assettype.ErrNotFound)

	// ErrTruncated is returned when entry data extends past the end of the archive.
	ErrTruncated = fmt.Errorf("grp: truncated: %w", assettype.ErrPayload)

	// ErrEntryTooLarge is returned when an entry declares more than MaxEntrySize bytes.
	ErrEntryTooLarge = fmt.Errorf("grp: entry too large: %w", assettype.ErrPayload)

	// ErrInvalidDimensions is returned when a sprite has a zero or oversized dimension.
	ErrInvalidDimensions = fmt.Errorf("grp: invalid sprite dimensions: %w", assettype.ErrPayload)
)

// ByteSource provides random access to archive bytes.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// Entry describes one file in the archive.
type Entry struct {
	Name           string
	Offset         int64
	Size           uint32
	CompressedSize uint32
	Flags          uint8
}

// IsCompressed reports whether either compression bit is set.
func (e Entry) IsCompressed() bool {
	return e.Flags&(FlagRLE|FlagLZ) != 0
}

// Compression returns the codec selected by the entry flags.
// Run-length wins when both bits are set.
func (e Entry) Compression() Compression {
	switch {
	case e.Flags&FlagRLE != 0:
		return CompressionRLE
	case e.Flags&FlagLZ != 0:
		return CompressionLZ
	default:
		return CompressionNone
	}
}

// StoredSize returns the number of bytes the entry occupies in the archive.
func (e Entry) StoredSize() uint32 {
	if e.IsCompressed() {
		return e.CompressedSize
	}
	return e.Size
}

// Archive is an opened GRP archive.
type Archive struct {
	src     ByteSource
	closer  io.Closer
	entries []Entry
	byName  map[string]int
	logger  logrus.FieldLogger

	mu      sync.RWMutex
	palette Palette
}

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger used for table layout and short-read reports.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Archive) {
		a.logger = l
	}
}

// WithPalette sets the initial default sprite palette.
func WithPalette(p Palette) Option {
	return func(a *Archive) {
		a.palette = p
	}
}

// Open opens and parses the archive at path.
//
// The file handle stays open until Close is called.
func Open(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path) //nolint:gosec // caller-supplied path
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	a, err := New(&fileSource{File: f, size: info.Size()}, opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	a.closer = f
	return a, nil
}

// New parses an archive from src.
func New(src ByteSource, opts ...Option) (*Archive, error) {
	a := &Archive{
		src:     src,
		palette: Grayscale(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.parse(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) log() logrus.FieldLogger {
	return logutil.Or(a.logger)
}

// Close releases the underlying file handle, if Open created one.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entries returns the file table in stored order.
func (a *Archive) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Names returns the entry names in stored order.
func (a *Archive) Names() []string {
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Name
	}
	return out
}

// Entry looks up an entry by name, ignoring case.
func (a *Archive) Entry(name string) (Entry, bool) {
	i, ok := a.byName[strings.ToLower(name)]
	if !ok {
		return Entry{}, false
	}
	return a.entries[i], true
}

// EntryAt returns the entry at table position i.
func (a *Archive) EntryAt(i int) (Entry, bool) {
	if i < 0 || i >= len(a.entries) {
		return Entry{}, false
	}
	return a.entries[i], true
}

// SetPalette replaces the default palette inherited by sprites without an
// embedded palette.
func (a *Archive) SetPalette(p Palette) {
	a.mu.Lock()
	a.palette = p
	a.mu.Unlock()
}

// Palette returns the current default palette.
func (a *Archive) Palette() Palette {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.palette
}

// Extract returns the decompressed contents of the named entry.
func (a *Archive) Extract(name string) ([]byte, error) {
	e, ok := a.Entry(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}
	return a.ReadEntry(e)
}

// ExtractSprite extracts the named entry and decodes it as a sprite.
func (a *Archive) ExtractSprite(name string) (*Sprite, error) {
	data, err := a.Extract(name)
	if err != nil {
		return nil, err
	}
	s, err := DecodeSprite(data, a.Palette())
	if err != nil {
		return nil, fmt.Errorf("sprite %q: %w", name, err)
	}
	return s, nil
}

// ReadEntry reads and, if needed, decompresses e.
//
// Decompression stops at e.Size bytes or when the stored stream runs out;
// a short result is returned as-is.
func (a *Archive) ReadEntry(e Entry) ([]byte, error) {
	if e.Size > MaxEntrySize || e.StoredSize() > MaxEntrySize {
		return nil, fmt.Errorf("%w: entry %q declares %d bytes", ErrEntryTooLarge, e.Name, max(e.Size, e.StoredSize()))
	}
	stored := int64(e.StoredSize())
	if !sizing.InRange(e.Offset, stored, a.src.Size()) {
		return nil, fmt.Errorf("%w: entry %q needs %d bytes at offset %#x, archive is %d bytes",
			ErrTruncated, e.Name, stored, e.Offset, a.src.Size())
	}
	data, err := binread.ReadAt(a.src, e.Offset, int(stored))
	if err != nil {
		if errors.Is(err, binread.ErrShort) {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrTruncated, e.Name, err)
		}
		return nil, err
	}

	var out []byte
	switch e.Compression() {
	case CompressionNone:
		return data, nil
	case CompressionRLE:
		out = DecompressRLE(data, int(e.Size))
	case CompressionLZ:
		out = DecompressLZ(data, int(e.Size))
	}
	if len(out) < int(e.Size) {
		a.log().WithFields(logrus.Fields{
			"entry":    e.Name,
			"codec":    e.Compression().String(),
			"expected": e.Size,
			"got":      len(out),
		}).Debug("compressed stream ended early")
	}
	return out, nil
}

func (a *Archive) parse() error {
	hdr, err := binread.ReadAt(a.src, 0, headerSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	r := binread.New(hdr)
	lead := [4]byte(r.Bytes(4))
	tableOff := int64(r.U32())
	altOff := int64(r.U32())
	trail := [4]byte(r.Bytes(4))
	if lead != Magic || trail != Magic {
		return ErrBadMagic
	}

	// Layout A: count right after the header.
	if entries, ok := a.readTable(headerSize); ok {
		a.index(entries)
		return nil
	}
	// Layout B: count at an offset recorded in the header. Revisions differ
	// in which of the two fields carries it, so both are tried in order.
	for _, off := range []int64{tableOff, altOff} {
		a.log().WithField("table_offset", off).Debug("inline entry count implausible, trying header offset")
		if entries, ok := a.readTable(off); ok {
			a.index(entries)
			return nil
		}
	}
	return ErrBadTable
}

// readTable reads a count and that many entries at off. ok is false when
// the count is implausible or the table does not fit in the archive.
func (a *Archive) readTable(off int64) ([]Entry, bool) {
	if off < headerSize {
		return nil, false
	}
	buf, err := binread.ReadAt(a.src, off, countSize)
	if err != nil {
		return nil, false
	}
	count := binread.New(buf).U32()
	if count > MaxEntries {
		return nil, false
	}
	tableLen := int64(count) * entrySize
	if !sizing.InRange(off+countSize, tableLen, a.src.Size()) {
		return nil, false
	}
	table, err := binread.ReadAt(a.src, off+countSize, int(tableLen))
	if err != nil {
		return nil, false
	}

	r := binread.New(table)
	entries := make([]Entry, count)
	for i := range entries {
		name := r.Bytes(nameSize)
		entries[i] = Entry{
			Name:           trimName(name),
			Flags:          r.U8(),
			Offset:         int64(r.U32()),
			Size:           r.U32(),
			CompressedSize: r.U32(),
		}
	}
	return entries, r.Err() == nil
}

func (a *Archive) index(entries []Entry) {
	a.entries = entries
	a.byName = make(map[string]int, len(entries))
	for i, e := range entries {
		key := strings.ToLower(e.Name)
		if _, dup := a.byName[key]; dup {
			a.log().WithField("entry", e.Name).Debug("duplicate entry name, keeping first")
			continue
		}
		a.byName[key] = i
	}
}

func trimName(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

type fileSource struct {
	*os.File
	size int64
}

func (s *fileSource) Size() int64 { return s.size }
