// Package bundle writes and reads asset bundles: a zstd-compressed tar
// stream holding one file per cached asset plus a manifest.json listing
// each file's identifier and sha256 digest.
package bundle

import (
	"archive/tar"
	_ "crypto/sha256" // registers sha256 for go-digest
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"
)

// ManifestName is the name of the manifest entry, written last.
const ManifestName = "manifest.json"

// Sentinel errors.
var (
	// ErrDigestMismatch is returned when a file does not match its manifest digest.
	ErrDigestMismatch = errors.New("bundle: digest mismatch")

	// ErrNoManifest is returned when a bundle has no manifest entry.
	ErrNoManifest = errors.New("bundle: manifest missing")

	// ErrDuplicate is returned when a name is added twice.
	ErrDuplicate = errors.New("bundle: duplicate name")
)

// Entry describes one file in the bundle.
type Entry struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Kind   string        `json:"kind"`
	Size   int64         `json:"size"`
	Digest digest.Digest `json:"digest"`
}

// Manifest lists every file in the bundle in write order.
type Manifest struct {
	Created time.Time `json:"created"`
	Entries []Entry   `json:"entries"`
}

// Writer streams a bundle.
type Writer struct {
	zw       *zstd.Encoder
	tw       *tar.Writer
	modTime  time.Time
	level    zstd.EncoderLevel
	names    map[string]bool
	manifest Manifest
}

// Option configures a Writer.
type Option func(*Writer)

// WithLevel sets the zstd encoder level.
func WithLevel(level zstd.EncoderLevel) Option {
	return func(w *Writer) {
		w.level = level
	}
}

// WithModTime sets the modification time stamped on every tar header and
// the manifest. Defaults to the time NewWriter is called.
func WithModTime(t time.Time) Option {
	return func(w *Writer) {
		w.modTime = t
	}
}

// NewWriter starts a bundle on dst. Close must be called to write the
// manifest and flush the stream.
func NewWriter(dst io.Writer, opts ...Option) (*Writer, error) {
	w := &Writer{
		modTime: time.Now().UTC(),
		level:   zstd.SpeedDefault,
		names:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	zw, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(w.level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("bundle: create zstd encoder: %w", err)
	}
	w.zw = zw
	w.tw = tar.NewWriter(zw)
	w.manifest.Created = w.modTime
	return w, nil
}

// Add writes one asset file.
func (w *Writer) Add(id, name, kind string, data []byte) error {
	name = path.Clean(name)
	if name == ManifestName || w.names[name] {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: w.modTime,
		Format:  tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("bundle: write header %s: %w", name, err)
	}
	if _, err := w.tw.Write(data); err != nil {
		return fmt.Errorf("bundle: write %s: %w", name, err)
	}
	w.names[name] = true
	w.manifest.Entries = append(w.manifest.Entries, Entry{
		ID:     id,
		Name:   name,
		Kind:   kind,
		Size:   int64(len(data)),
		Digest: digest.FromBytes(data),
	})
	return nil
}

// Len returns the number of files added so far.
func (w *Writer) Len() int {
	return len(w.manifest.Entries)
}

// Close writes the manifest and flushes the tar and zstd streams. It does
// not close the destination.
func (w *Writer) Close() error {
	data, err := json.MarshalIndent(w.manifest, "", "  ")
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:    ManifestName,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: w.modTime,
		Format:  tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := w.tw.Write(data); err != nil {
		return err
	}
	if err := w.tw.Close(); err != nil {
		return err
	}
	return w.zw.Close()
}

// Read decodes a bundle, verifying each file against its manifest digest.
// It returns the manifest and the file contents keyed by name.
func Read(src io.Reader) (Manifest, map[string][]byte, error) {
	zr, err := zstd.NewReader(src)
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("bundle: create zstd decoder: %w", err)
	}
	defer zr.Close()

	files := make(map[string][]byte)
	var manifest *Manifest
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Manifest{}, nil, fmt.Errorf("bundle: read: %w", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return Manifest{}, nil, fmt.Errorf("bundle: read %s: %w", hdr.Name, err)
		}
		if hdr.Name == ManifestName {
			manifest = &Manifest{}
			if err := json.Unmarshal(data, manifest); err != nil {
				return Manifest{}, nil, fmt.Errorf("bundle: decode manifest: %w", err)
			}
			continue
		}
		files[hdr.Name] = data
	}
	if manifest == nil {
		return Manifest{}, nil, ErrNoManifest
	}

	for _, e := range manifest.Entries {
		data, ok := files[e.Name]
		if !ok {
			return Manifest{}, nil, fmt.Errorf("%w: %s listed but absent", ErrDigestMismatch, e.Name)
		}
		if err := e.Digest.Validate(); err != nil {
			return Manifest{}, nil, fmt.Errorf("bundle: %s: %w", e.Name, err)
		}
		if got := e.Digest.Algorithm().FromBytes(data); got != e.Digest {
			return Manifest{}, nil, fmt.Errorf("%w: %s: got %s, want %s", ErrDigestMismatch, e.Name, got, e.Digest)
		}
	}
	return *manifest, files, nil
}
