package gizmo

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the closed set of asset kinds. The ordinal is persisted in the
// cache index.
type Kind uint32

const (
	KindBitmap Kind = iota
	KindSprite
	KindSound
	KindMusic
	KindData
)

var kindNames = [...]string{
	KindBitmap: "bitmap",
	KindSprite: "sprite",
	KindSound:  "sound",
	KindMusic:  "music",
	KindData:   "data",
}

var kindExtensions = [...]string{
	KindBitmap: ".bmp",
	KindSprite: ".spr",
	KindSound:  ".wav",
	KindMusic:  ".mid",
	KindData:   ".bin",
}

// Kinds lists every kind in ordinal order.
func Kinds() []Kind {
	return []Kind{KindBitmap, KindSprite, KindSound, KindMusic, KindData}
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil //nolint:gosec // k indexes a five-element table
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidIdentifier, s)
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return int(k) < len(kindNames)
}

func (k Kind) String() string {
	if !k.Valid() {
		return "kind(" + strconv.FormatUint(uint64(k), 10) + ")"
	}
	return kindNames[k]
}

// Extension returns the file extension hint for decoded bytes of this kind.
func (k Kind) Extension() string {
	if !k.Valid() {
		return ""
	}
	return kindExtensions[k]
}

// IsTexture reports whether k is rendered as an image.
func (k Kind) IsTexture() bool {
	return k == KindBitmap || k == KindSprite
}

// IsAudio reports whether k is played by the audio subsystem.
func (k Kind) IsAudio() bool {
	return k == KindSound || k == KindMusic
}

// ID addresses one asset: a source file (without extension), a kind and a
// resource or entry number. IDs are comparable values.
type ID struct {
	Source string
	Kind   Kind
	Number uint32
}

// MakeID builds an identifier from its parts.
func MakeID(source, kind string, number int) (ID, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return ID{}, err
	}
	if number < 0 || uint64(number) > uint64(^uint32(0)) {
		return ID{}, fmt.Errorf("%w: id %d out of range", ErrInvalidIdentifier, number)
	}
	if err := checkSource(source); err != nil {
		return ID{}, err
	}
	return ID{Source: source, Kind: k, Number: uint32(number)}, nil //nolint:gosec // range checked above
}

// ParseID parses "source:kind:id".
func ParseID(s string) (ID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return ID{}, fmt.Errorf("%w: %q: want source:kind:id", ErrInvalidIdentifier, s)
	}
	if err := checkSource(parts[0]); err != nil {
		return ID{}, err
	}
	k, err := ParseKind(parts[1])
	if err != nil {
		return ID{}, err
	}
	n, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil || (len(parts[2]) > 1 && parts[2][0] == '0') {
		return ID{}, fmt.Errorf("%w: %q: id must be a decimal number without leading zeros", ErrInvalidIdentifier, s)
	}
	return ID{Source: parts[0], Kind: k, Number: uint32(n)}, nil //nolint:gosec // ParseUint bounds n to 32 bits
}

// validate checks an ID built without ParseID or MakeID.
func (id ID) validate() error {
	if !id.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidIdentifier, int(id.Kind))
	}
	return checkSource(id.Source)
}

func checkSource(source string) error {
	if source == "" {
		return fmt.Errorf("%w: empty source", ErrInvalidIdentifier)
	}
	if strings.Contains(source, ":") {
		return fmt.Errorf("%w: source %q contains a colon", ErrInvalidIdentifier, source)
	}
	return nil
}

func (id ID) String() string {
	return id.Source + ":" + id.Kind.String() + ":" + strconv.FormatUint(uint64(id.Number), 10)
}

var keyReplacer = strings.NewReplacer(":", "_", "/", "_", `\`, "_")

// CacheKey returns the filesystem-safe form of the identifier used as the
// persistent store key.
func (id ID) CacheKey() string {
	return keyReplacer.Replace(id.String())
}

// CacheFileName returns the name of the per-asset file in the cache directory.
func (id ID) CacheFileName() string {
	return id.CacheKey() + ".cache"
}
