// Package sizing provides safe size arithmetic and conversions to prevent overflow.
package sizing

import "math"

// Shift scales a stored 16-bit table value by an alignment shift.
// Returns overflowErr if the result does not fit in an int64.
func Shift(v uint16, shift uint16, overflowErr error) (int64, error) {
	if v == 0 {
		return 0, nil
	}
	// A uint16 occupies 16 bits; anything past 47 would spill the sign bit.
	if shift > 47 {
		return 0, overflowErr
	}
	return int64(v) << shift, nil
}

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// AddInt64 adds two non-negative int64 values, returning (result, false) on overflow.
func AddInt64(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// InRange reports whether [off, off+length) lies within a source of the given size.
func InRange(off, length, size int64) bool {
	end, ok := AddInt64(off, length)
	return ok && end <= size
}
