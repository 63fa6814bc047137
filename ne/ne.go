// Package ne parses 16-bit "New Executable" style containers and extracts the
// resources stored in their resource table.
//
// The containers are never executed; they are treated purely as resource
// archives. Offsets and lengths in the resource table are stored in units of
// 1<<shift bytes, where the shift comes from the NE header and may be
// overridden by the resource table itself.
//
// A File is safe for concurrent use: the resource list is immutable after
// Open, and extraction uses positioned reads with no shared cursor.
package ne

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/meigma/gizmo/internal/assettype"
	"github.com/meigma/gizmo/internal/binread"
	"github.com/meigma/gizmo/internal/logutil"
	"github.com/meigma/gizmo/internal/sizing"
)

const (
	dosHeaderSize  = 64
	dosMagic       = 0x5A4D // "MZ"
	neHeaderOffset = 0x3C

	neHeaderSize     = 64
	neMagic          = 0x454E // "NE"
	neResTableOffset = 0x24
	neAlignShift     = 0x32

	typeEntrySize = 8
	nameEntrySize = 12
)

// Sentinel errors.
var (
	// ErrBadMagic is returned when the outer or NE header magic does not match.
	ErrBadMagic = fmt.Errorf("ne: bad magic: %w", assettype.ErrFormat)

	// ErrResourceNotFound is returned when no resource matches a type and id.
	ErrResourceNotFound = fmt.Errorf("ne: resource %w", assettype.ErrNotFound)

	// ErrTruncated is returned when a resource extends past the end of the file.
	ErrTruncated = fmt.Errorf("ne: resource truncated: %w", assettype.ErrPayload)

	// ErrInvalidBitmap is returned when a bitmap resource header cannot be read.
	ErrInvalidBitmap = fmt.Errorf("ne: invalid bitmap: %w", assettype.ErrPayload)

	errShiftOverflow = errors.New("ne: alignment shift overflows offset")
)

// ByteSource provides random access to container bytes.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// Resource describes one entry of the resource table.
type Resource struct {
	// TypeID is the raw type id. Built-in types have the high bit set.
	TypeID uint16
	// ID is the raw resource id as stored in the table.
	ID uint16
	// Offset is the absolute byte offset of the resource data.
	Offset int64
	// Length is the byte length of the resource data.
	Length int64
	// Flags are the resource flags (moveable, pure, preload).
	Flags uint16
	// TypeName is the human-readable type name.
	TypeName string
}

// Number returns the resource id without the integer-id flag.
func (r Resource) Number() uint16 {
	return r.ID &^ intFlag
}

// File is a parsed container.
type File struct {
	src       ByteSource
	closer    io.Closer
	shift     uint16
	resources []Resource
	logger    logrus.FieldLogger
}

// Option configures a File.
type Option func(*File)

// WithLogger sets the logger used to report partial table parses.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *File) {
		f.logger = l
	}
}

// Open opens and parses the container at path.
//
// The file handle stays open until Close is called.
func Open(path string, opts ...Option) (*File, error) {
	osFile, err := os.Open(path) //nolint:gosec // caller-supplied path
	if err != nil {
		return nil, err
	}
	info, err := osFile.Stat()
	if err != nil {
		osFile.Close()
		return nil, err
	}
	f, err := New(&fileSource{File: osFile, size: info.Size()}, opts...)
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	f.closer = osFile
	return f, nil
}

// New parses a container from src.
//
// A bad outer or NE magic fails with ErrBadMagic. A read failure inside the
// resource table is not an error: the resources parsed up to that point are
// kept.
func New(src ByteSource, opts ...Option) (*File, error) {
	f := &File{src: src}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.parse(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) log() logrus.FieldLogger {
	return logutil.Or(f.logger)
}

// Close releases the underlying file handle, if Open created one.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

// Shift returns the effective alignment shift.
func (f *File) Shift() uint16 {
	return f.shift
}

// Resources returns the parsed resource descriptors in table order.
func (f *File) Resources() []Resource {
	out := make([]Resource, len(f.resources))
	copy(out, f.resources)
	return out
}

// ResourcesOfType returns the descriptors with the given type id.
func (f *File) ResourcesOfType(typeID uint16) []Resource {
	var out []Resource
	for _, r := range f.resources {
		if r.TypeID == typeID {
			out = append(out, r)
		}
	}
	return out
}

// FindResource looks up a resource by type and id.
//
// The id matches either the stored id or the stored id with the integer flag,
// so FindResource(TypeBitmap, 5) finds a resource stored as 0x8005.
func (f *File) FindResource(typeID, id uint16) (Resource, bool) {
	for _, r := range f.resources {
		if r.TypeID == typeID && r.ID == id {
			return r, true
		}
	}
	if id&intFlag == 0 {
		for _, r := range f.resources {
			if r.TypeID == typeID && r.ID == id|intFlag {
				return r, true
			}
		}
	}
	return Resource{}, false
}

// Extract returns the bytes of the resource with the given type and id.
func (f *File) Extract(typeID, id uint16) ([]byte, error) {
	r, ok := f.FindResource(typeID, id)
	if !ok {
		return nil, fmt.Errorf("%w: type %s id %d", ErrResourceNotFound, TypeName(typeID), id)
	}
	return f.ReadResource(r)
}

// ReadResource returns the bytes described by r.
func (f *File) ReadResource(r Resource) ([]byte, error) {
	return f.ReadResourceAt(r.Offset, r.Length)
}

// ReadResourceAt reads exactly length bytes at offset.
func (f *File) ReadResourceAt(offset, length int64) ([]byte, error) {
	if !sizing.InRange(offset, length, f.src.Size()) {
		return nil, fmt.Errorf("%w: %d bytes at offset %#x exceed file size %d", ErrTruncated, length, offset, f.src.Size())
	}
	n, err := sizing.ToInt(uint64(length), ErrTruncated) //nolint:gosec // length checked non-negative by InRange
	if err != nil {
		return nil, err
	}
	data, err := binread.ReadAt(f.src, offset, n)
	if err != nil {
		if errors.Is(err, binread.ErrShort) {
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return nil, err
	}
	return data, nil
}

func (f *File) parse() error {
	dos, err := binread.ReadAt(f.src, 0, dosHeaderSize)
	if err != nil {
		return fmt.Errorf("%w: reading outer header: %v", ErrBadMagic, err)
	}
	r := binread.New(dos)
	if r.U16() != dosMagic {
		return fmt.Errorf("%w: outer header", ErrBadMagic)
	}
	r.Seek(neHeaderOffset)
	neOff := int64(r.U32())

	hdr, err := binread.ReadAt(f.src, neOff, neHeaderSize)
	if err != nil {
		return fmt.Errorf("%w: reading NE header at %#x: %v", ErrBadMagic, neOff, err)
	}
	r = binread.New(hdr)
	if r.U16() != neMagic {
		return fmt.Errorf("%w: NE header at %#x", ErrBadMagic, neOff)
	}
	r.Seek(neResTableOffset)
	tableOff := int64(r.U16())
	r.Seek(neAlignShift)
	f.shift = r.U16()
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadMagic, err)
	}

	if tableOff == 0 {
		return nil
	}
	f.resources = f.parseTable(neOff + tableOff)
	return nil
}

// parseTable walks the resource table at off. It never fails; a read error
// ends the walk and keeps what was parsed so far.
func (f *File) parseTable(off int64) []Resource {
	var out []Resource
	stop := func(err error) []Resource {
		f.log().WithError(err).WithField("resources", len(out)).Debug("resource table truncated")
		return out
	}

	buf, err := binread.ReadAt(f.src, off, 2)
	if err != nil {
		return stop(err)
	}
	off += 2
	if tableShift := binread.New(buf).U16(); tableShift != 0 {
		f.shift = tableShift
	}

	for {
		buf, err = binread.ReadAt(f.src, off, 2)
		if err != nil {
			return stop(err)
		}
		typeID := binread.New(buf).U16()
		if typeID == 0 {
			return out
		}
		buf, err = binread.ReadAt(f.src, off+2, typeEntrySize-2)
		if err != nil {
			return stop(err)
		}
		count := binread.New(buf).U16()
		off += typeEntrySize

		for range count {
			buf, err = binread.ReadAt(f.src, off, nameEntrySize)
			if err != nil {
				return stop(err)
			}
			off += nameEntrySize

			r := binread.New(buf)
			rawOff, rawLen, flags, id := r.U16(), r.U16(), r.U16(), r.U16()
			byteOff, err := sizing.Shift(rawOff, f.shift, errShiftOverflow)
			if err != nil {
				return stop(err)
			}
			byteLen, err := sizing.Shift(rawLen, f.shift, errShiftOverflow)
			if err != nil {
				return stop(err)
			}
			out = append(out, Resource{
				TypeID:   typeID,
				ID:       id,
				Offset:   byteOff,
				Length:   byteLen,
				Flags:    flags,
				TypeName: TypeName(typeID),
			})
		}
	}
}

type fileSource struct {
	*os.File
	size int64
}

func (s *fileSource) Size() int64 { return s.size }
