// Package disk provides a flat, disk-backed cache.Store.
//
// Each key is stored as <dir>/<key>.cache holding the raw bytes. Writes go
// through a temporary file and a rename, so readers never observe a partial
// entry.
package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/gizmo/cache"
)

const (
	// Suffix is appended to every key to form its file name.
	Suffix = ".cache"

	defaultDirPerm  = 0o700
	defaultFilePerm = 0o600
)

// ErrInvalidKey is returned for keys that are empty or not a plain file name.
var ErrInvalidKey = errors.New("disk: invalid cache key")

var (
	_ cache.Store  = (*Cache)(nil)
	_ cache.Sizer  = (*Cache)(nil)
	_ cache.Pruner = (*Cache)(nil)
)

// Cache implements cache.Store using the local filesystem.
type Cache struct {
	dir      string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

// Option configures a disk cache.
type Option func(*Cache)

// WithDirPerm sets the permissions used when creating the cache directory.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.dirPerm = mode
	}
}

// WithFilePerm sets the permissions of committed cache files.
func WithFilePerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.filePerm = mode
	}
}

// New creates a disk-backed cache rooted at dir, creating dir if needed.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("disk: cache dir is empty")
	}
	c := &Cache{
		dir:      dir,
		dirPerm:  defaultDirPerm,
		filePerm: defaultFilePerm,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the file that holds key.
func (c *Cache) Path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\:`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(c.dir, key+Suffix), nil
}

// Get retrieves content by key.
func (c *Cache) Get(key string) ([]byte, bool) {
	path, err := c.Path(key)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a validated key
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put stores content under key, replacing any previous file.
func (c *Cache) Put(key string, content []byte) error {
	path, err := c.Path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, "cache-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(c.filePerm); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Delete removes the file for key.
func (c *Cache) Delete(key string) error {
	path, err := c.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Size returns the total size of all cache files.
func (c *Cache) Size() (int64, error) {
	return dirSize(c.dir)
}

// Prune removes the least recently written cache files until at most
// targetBytes remain. Files other than cache entries are left alone.
func (c *Cache) Prune(targetBytes int64) (freed, remaining int64, err error) {
	return pruneDir(c.dir, targetBytes)
}
