package gizmo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/meigma/gizmo/grp"
	"github.com/meigma/gizmo/ne"
)

// SourceType distinguishes the two legacy formats an identifier can resolve to.
type SourceType int

const (
	SourceContainer SourceType = iota
	SourceArchive
)

func (t SourceType) String() string {
	if t == SourceArchive {
		return "archive"
	}
	return "container"
}

var (
	containerExts = []string{".exe", ".dll", ".ne", ".drv"}
	archiveExts   = []string{".grp"}
)

var errNoSource = fmt.Errorf("no container or archive %w", fs.ErrNotExist)

// source is an opened container or archive. Exactly one of container and
// archive is set, matching typ.
type source struct {
	name      string
	path      string
	typ       SourceType
	container *ne.File
	archive   *grp.Archive
}

// extracted is the raw result of pulling one asset out of a source.
type extracted struct {
	data   []byte
	offset int64
	sprite *grp.Sprite
}

func sourceType(path string) (SourceType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range containerExts {
		if ext == e {
			return SourceContainer, true
		}
	}
	for _, e := range archiveExts {
		if ext == e {
			return SourceArchive, true
		}
	}
	return 0, false
}

// findSource returns the first file under dirs whose stem matches name,
// ignoring case, with a container or archive extension.
func findSource(dirs []string, name string) (string, SourceType, error) {
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", 0, err
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			fileName := e.Name()
			typ, ok := sourceType(fileName)
			if !ok {
				continue
			}
			stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))
			if strings.EqualFold(stem, name) {
				return filepath.Join(dir, fileName), typ, nil
			}
		}
	}
	return "", 0, fmt.Errorf("%w named %q in %v", errNoSource, name, dirs)
}

func openSource(name, path string, typ SourceType, palette grp.Palette, logger logrus.FieldLogger) (*source, error) {
	s := &source{name: name, path: path, typ: typ}
	var err error
	switch typ {
	case SourceContainer:
		s.container, err = ne.Open(path, ne.WithLogger(logger))
	case SourceArchive:
		s.archive, err = grp.Open(path, grp.WithLogger(logger), grp.WithPalette(palette))
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *source) close() error {
	switch s.typ {
	case SourceContainer:
		return s.container.Close()
	case SourceArchive:
		return s.archive.Close()
	}
	return nil
}

// extract pulls the asset addressed by id out of the source. Sprite payloads
// are decoded before returning so an invalid sprite never reaches the cache.
func (s *source) extract(id ID) (extracted, error) {
	switch s.typ {
	case SourceContainer:
		return s.extractContainer(id)
	case SourceArchive:
		return s.extractArchive(id)
	}
	return extracted{}, fmt.Errorf("unknown source type %d", s.typ)
}

func (s *source) extractContainer(id ID) (extracted, error) {
	if id.Number > 0xFFFF {
		return extracted{}, fmt.Errorf("%w: container resource ids are 16-bit", ne.ErrResourceNotFound)
	}
	n := uint16(id.Number)

	var res ne.Resource
	var ok bool
	switch id.Kind {
	case KindBitmap:
		res, ok = s.container.FindResource(ne.TypeBitmap, n)
	case KindData:
		res, ok = s.container.FindResource(ne.TypeRCData, n)
	case KindSound, KindMusic:
		res, ok = s.findCustom(n)
	case KindSprite:
		return extracted{}, fmt.Errorf("%w: sprites are only stored in archives", ErrDecodeFailed)
	}
	if !ok {
		return extracted{}, fmt.Errorf("%w: %s %d in %s", ne.ErrResourceNotFound, id.Kind, n, s.path)
	}

	if id.Kind == KindBitmap {
		data, err := s.container.Bitmap(n)
		if err != nil {
			return extracted{}, err
		}
		return extracted{data: data, offset: res.Offset}, nil
	}
	data, err := s.container.ReadResource(res)
	if err != nil {
		return extracted{}, err
	}
	return extracted{data: data, offset: res.Offset}, nil
}

// findCustom returns the first application-defined resource carrying id.
func (s *source) findCustom(id uint16) (ne.Resource, bool) {
	for _, r := range s.container.Resources() {
		if !ne.IsCustomType(r.TypeID) {
			continue
		}
		if r.ID == id || r.Number() == id {
			return r, true
		}
	}
	return ne.Resource{}, false
}

func (s *source) extractArchive(id ID) (extracted, error) {
	e, ok := s.archiveEntry(id.Number)
	if !ok {
		return extracted{}, fmt.Errorf("%w: no entry for %d in %s", grp.ErrEntryNotFound, id.Number, s.path)
	}
	data, err := s.archive.ReadEntry(e)
	if err != nil {
		return extracted{}, err
	}
	out := extracted{data: data, offset: e.Offset}
	if id.Kind == KindSprite {
		sp, err := grp.DecodeSprite(data, s.archive.Palette())
		if err != nil {
			return extracted{}, fmt.Errorf("sprite %q: %w", e.Name, err)
		}
		out.sprite = sp
	}
	return out, nil
}

// archiveEntry selects the entry whose name stem is the decimal number n,
// falling back to the entry at table position n.
func (s *source) archiveEntry(n uint32) (grp.Entry, bool) {
	for _, e := range s.archive.Entries() {
		stem := strings.TrimSuffix(e.Name, filepath.Ext(e.Name))
		v, err := strconv.ParseUint(stem, 10, 32)
		if err == nil && uint32(v) == n { //nolint:gosec // ParseUint bounds v to 32 bits
			return e, true
		}
	}
	return s.archive.EntryAt(int(n))
}
