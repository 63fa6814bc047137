package sizing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOverflow = errors.New("overflow")

func TestShift(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		v       uint16
		shift   uint16
		want    int64
		wantErr bool
	}{
		{name: "no shift", v: 0x10, shift: 0, want: 0x10},
		{name: "sector shift", v: 0x10, shift: 4, want: 0x100},
		{name: "page shift", v: 0x2, shift: 9, want: 0x400},
		{name: "zero value ignores shift", v: 0, shift: 60, want: 0},
		{name: "too wide", v: 1, shift: 48, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Shift(tt.v, tt.shift, errOverflow)
			if tt.wantErr {
				require.ErrorIs(t, err, errOverflow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToInt(t *testing.T) {
	t.Parallel()

	got, err := ToInt(42, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = ToInt(math.MaxUint64, errOverflow)
	assert.ErrorIs(t, err, errOverflow)
}

func TestInRange(t *testing.T) {
	t.Parallel()

	assert.True(t, InRange(0, 10, 10))
	assert.True(t, InRange(5, 0, 5))
	assert.False(t, InRange(5, 6, 10))
	assert.False(t, InRange(-1, 1, 10))
	assert.False(t, InRange(math.MaxInt64, 1, math.MaxInt64))
}
