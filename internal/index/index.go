// Package index encodes and decodes the cache index file.
//
// The file is little-endian: a u32 record count, then per record a u32
// identifier length, the identifier bytes, a u32 kind ordinal, a u32 CRC32
// of the cached bytes, and a u64 unix timestamp. It is always written in
// full.
package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"

	"github.com/meigma/gizmo/internal/binread"
)

// FileName is the index file name inside the cache directory.
const FileName = "cache_index.dat"

const (
	countSize    = 4
	fixedRecSize = 4 + 4 + 4 + 8
	maxIDLen     = 4096
	defaultPerm  = 0o600
	tempPattern  = "index-*"
)

// ErrCorrupt is returned when index data cannot be decoded.
var ErrCorrupt = errors.New("index: corrupt index data")

// Record is the persisted metadata for one cached identifier.
type Record struct {
	ID        string
	Kind      uint32
	CRC32     uint32
	Timestamp uint64
}

// Index is an in-memory set of records keyed by identifier.
//
// Index is not safe for concurrent use; callers serialize access.
type Index struct {
	records map[string]Record
}

// New returns an empty index.
func New() *Index {
	return &Index{records: make(map[string]Record)}
}

// Load decodes an index from data. Later records with a duplicate
// identifier replace earlier ones.
func Load(data []byte) (*Index, error) {
	r := binread.New(data)
	count := r.U32()
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: missing record count", ErrCorrupt)
	}
	if uint64(count)*fixedRecSize > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: %d records cannot fit in %d bytes", ErrCorrupt, count, r.Remaining())
	}

	idx := &Index{records: make(map[string]Record, count)}
	for i := range count {
		idLen := r.U32()
		if idLen > maxIDLen {
			return nil, fmt.Errorf("%w: record %d identifier length %d", ErrCorrupt, i, idLen)
		}
		rec := Record{ID: string(r.Bytes(int(idLen)))}
		rec.Kind = r.U32()
		rec.CRC32 = r.U32()
		rec.Timestamp = r.U64()
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrCorrupt, i, err)
		}
		idx.records[rec.ID] = rec
	}
	return idx, nil
}

// ReadFile loads the index stored at path.
func ReadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is the configured cache directory
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// Bytes encodes the index. Records are written in identifier order so the
// output is deterministic.
func (idx *Index) Bytes() []byte {
	size := countSize
	for _, rec := range idx.records {
		size += fixedRecSize + len(rec.ID)
	}
	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(idx.records))) //nolint:gosec // bounded by memory
	for rec := range idx.All() {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(rec.ID))) //nolint:gosec // identifiers are short
		out = append(out, rec.ID...)
		out = binary.LittleEndian.AppendUint32(out, rec.Kind)
		out = binary.LittleEndian.AppendUint32(out, rec.CRC32)
		out = binary.LittleEndian.AppendUint64(out, rec.Timestamp)
	}
	return out
}

// WriteFile atomically replaces the index file at path.
func (idx *Index) WriteFile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(idx.Bytes()); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(defaultPerm); err != nil {
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

// Len returns the number of records.
func (idx *Index) Len() int {
	return len(idx.records)
}

// Lookup returns the record for id.
func (idx *Index) Lookup(id string) (Record, bool) {
	rec, ok := idx.records[id]
	return rec, ok
}

// Put inserts or replaces the record for rec.ID.
func (idx *Index) Put(rec Record) {
	idx.records[rec.ID] = rec
}

// Delete removes the record for id and reports whether it existed.
func (idx *Index) Delete(id string) bool {
	_, ok := idx.records[id]
	delete(idx.records, id)
	return ok
}

// All returns an iterator over records in identifier order.
func (idx *Index) All() iter.Seq[Record] {
	ids := make([]string, 0, len(idx.records))
	for id := range idx.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return func(yield func(Record) bool) {
		for _, id := range ids {
			rec, ok := idx.records[id]
			if !ok {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}
