package gizmo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeIDRoundTrip(t *testing.T) {
	t.Parallel()

	id, err := MakeID("gizmo256", "bitmap", 100)
	require.NoError(t, err)
	assert.Equal(t, "gizmo256:bitmap:100", id.String())

	parsed, err := ParseID("gizmo256:bitmap:100")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.Equal(t, ID{Source: "gizmo256", Kind: KindBitmap, Number: 100}, parsed)
}

func TestParseIDInvalid(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"gizmo256",
		"gizmo256:bitmap",
		"gizmo256:bitmap:100:extra",
		":bitmap:100",
		"gizmo256::100",
		"gizmo256:texture:100",
		"gizmo256:bitmap:",
		"gizmo256:bitmap:-1",
		"gizmo256:bitmap:+1",
		"gizmo256:bitmap:0x10",
		"gizmo256:bitmap:4294967296",
		"gizmo256:Bitmap:1",
		"gizmo256:bitmap:09",
		"gizmo256:bitmap:00",
	}
	for _, s := range tests {
		_, err := ParseID(s)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, "ParseID(%q)", s)
	}
}

func TestParseIDZero(t *testing.T) {
	t.Parallel()

	id, err := ParseID("s:data:0")
	require.NoError(t, err)
	assert.Equal(t, "s:data:0", id.String())
}

func TestMakeIDInvalid(t *testing.T) {
	t.Parallel()

	_, err := MakeID("gizmo256", "bitmap", -1)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	_, err = MakeID("a:b", "data", 1)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	_, err = MakeID("", "data", 1)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	_, err = MakeID("s", "video", 1)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind    Kind
		name    string
		ext     string
		ordinal uint32
	}{
		{KindBitmap, "bitmap", ".bmp", 0},
		{KindSprite, "sprite", ".spr", 1},
		{KindSound, "sound", ".wav", 2},
		{KindMusic, "music", ".mid", 3},
		{KindData, "data", ".bin", 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.kind.String())
		assert.Equal(t, tt.ext, tt.kind.Extension())
		assert.Equal(t, tt.ordinal, uint32(tt.kind))
		k, err := ParseKind(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.kind, k)
	}
	assert.Len(t, Kinds(), len(tests))
	assert.False(t, Kind(9).Valid())
	assert.Equal(t, "kind(9)", Kind(9).String())
	assert.Empty(t, Kind(9).Extension())
}

func TestCacheFileName(t *testing.T) {
	t.Parallel()

	id := ID{Source: `dir/sub\file`, Kind: KindSound, Number: 7}
	assert.Equal(t, "dir_sub_file_sound_7", id.CacheKey())
	assert.Equal(t, "dir_sub_file_sound_7.cache", id.CacheFileName())

	id, err := ParseID("gizmo256:bitmap:100")
	require.NoError(t, err)
	assert.Equal(t, "gizmo256_bitmap_100.cache", id.CacheFileName())
}

func TestMatchGlob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"*", "gizmo:bitmap:1", true},
		{"gizmo:*", "gizmo:bitmap:1", true},
		{"gizmo:*", "other:bitmap:1", false},
		{"*:sound:?", "g:sound:5", true},
		{"*:sound:?", "g:sound:15", false},
		{"g.x:*", "gax:data:1", false},
		{"g.x:*", "g.x:data:1", true},
		{"[ab]*", "[ab]:data:1", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := MatchGlob(tt.pattern, tt.s)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "MatchGlob(%q, %q)", tt.pattern, tt.s)
	}
}
