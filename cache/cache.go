// Package cache defines the byte store behind the persistent asset tier.
//
// Keys are filesystem-safe identifier keys (no path separators or colons).
// Values are the decoded asset bytes with no header. Integrity is tracked
// separately by the cache index, so a Store only has to hold bytes.
package cache

// Store holds decoded asset bytes by key.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves content by key.
	// Returns nil, false if the key is not stored.
	Get(key string) ([]byte, bool)

	// Put stores content under key, replacing any previous content.
	Put(key string, content []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// Sizer is implemented by stores that can report their footprint.
type Sizer interface {
	// Size returns the number of bytes held by the store.
	Size() (int64, error)
}

// Pruner is implemented by stores that can shrink to a byte budget.
type Pruner interface {
	// Prune removes the oldest entries until at most targetBytes remain.
	// It returns the bytes freed and the bytes remaining.
	Prune(targetBytes int64) (freed, remaining int64, err error)
}
