package testutil

import "encoding/binary"

// ArchiveLayout selects where the entry count is stored.
type ArchiveLayout int

const (
	// LayoutInline stores the count immediately after the header.
	LayoutInline ArchiveLayout = iota
	// LayoutOffset stores garbage after the header and the count at the
	// header's table offset.
	LayoutOffset
	// LayoutSecondOffset is LayoutOffset with the table offset in the second
	// header field and zero in the first.
	LayoutSecondOffset
)

var grpMagic = []byte{'G', 'R', 'P', 0x1A}

type archiveEntry struct {
	name   string
	flags  uint8
	stored []byte
	size   uint32
}

// ArchiveBuilder assembles a GRP archive in memory.
type ArchiveBuilder struct {
	Layout  ArchiveLayout
	entries []archiveEntry
}

// NewArchive returns a builder using layout.
func NewArchive(layout ArchiveLayout) *ArchiveBuilder {
	return &ArchiveBuilder{Layout: layout}
}

// Add appends an uncompressed entry.
func (b *ArchiveBuilder) Add(name string, data []byte) *ArchiveBuilder {
	return b.AddStored(name, 0, data, uint32(len(data))) //nolint:gosec // test fixture
}

// AddStored appends an entry with explicit flags, stored bytes and
// uncompressed size.
func (b *ArchiveBuilder) AddStored(name string, flags uint8, stored []byte, size uint32) *ArchiveBuilder {
	b.entries = append(b.entries, archiveEntry{name: name, flags: flags, stored: stored, size: size})
	return b
}

// Bytes renders the archive.
func (b *ArchiveBuilder) Bytes() []byte {
	const (
		headerLen = 16
		entryLen  = 26
		padLen    = 12
	)

	tableAt := headerLen
	if b.Layout != LayoutInline {
		tableAt = headerLen + padLen
	}
	dataAt := tableAt + 4 + len(b.entries)*entryLen

	size := dataAt
	for _, e := range b.entries {
		size += len(e.stored)
	}
	out := make([]byte, size)

	copy(out[0:], grpMagic)
	if b.Layout == LayoutSecondOffset {
		binary.LittleEndian.PutUint32(out[8:], uint32(tableAt)) //nolint:gosec // test fixture
	} else {
		binary.LittleEndian.PutUint32(out[4:], uint32(tableAt)) //nolint:gosec // test fixture
	}
	copy(out[12:], grpMagic)
	if b.Layout != LayoutInline {
		binary.LittleEndian.PutUint32(out[headerLen:], 0xFFFFFFF0)
	}

	binary.LittleEndian.PutUint32(out[tableAt:], uint32(len(b.entries))) //nolint:gosec // test fixture
	pos := tableAt + 4
	off := dataAt
	for _, e := range b.entries {
		copy(out[pos:pos+13], e.name)
		out[pos+13] = e.flags
		binary.LittleEndian.PutUint32(out[pos+14:], uint32(off)) //nolint:gosec // test fixture
		binary.LittleEndian.PutUint32(out[pos+18:], e.size)
		compressed := uint32(0)
		if e.flags != 0 {
			compressed = uint32(len(e.stored)) //nolint:gosec // test fixture
		}
		binary.LittleEndian.PutUint32(out[pos+22:], compressed)
		copy(out[off:], e.stored)
		pos += entryLen
		off += len(e.stored)
	}
	return out
}

// Sprite renders a sprite payload with raw pixels. A non-nil vga palette
// (6-bit RGB triplets) is appended and referenced from the header.
func Sprite(width, height uint16, hotX, hotY int16, pixels []byte, vga []byte) []byte {
	return spritePayload(width, height, hotX, hotY, pixels, vga)
}

// SpriteRLE renders a sprite payload whose pixel section is the given
// run-length stream.
func SpriteRLE(width, height uint16, stream []byte) []byte {
	return spritePayload(width, height, 0, 0, stream, nil)
}

func spritePayload(width, height uint16, hotX, hotY int16, body []byte, vga []byte) []byte {
	out := make([]byte, 12, 12+len(body)+len(vga))
	binary.LittleEndian.PutUint16(out[0:], width)
	binary.LittleEndian.PutUint16(out[2:], height)
	binary.LittleEndian.PutUint16(out[4:], uint16(hotX)) //nolint:gosec // two's complement
	binary.LittleEndian.PutUint16(out[6:], uint16(hotY)) //nolint:gosec // two's complement
	if vga != nil {
		binary.LittleEndian.PutUint16(out[10:], uint16(12+len(body))) //nolint:gosec // test fixture
	}
	out = append(out, body...)
	return append(out, vga...)
}

// EncodeRLE produces a run-length stream that DecompressRLE expands back to
// data: runs of three or more become repeat tokens, everything else literals.
func EncodeRLE(data []byte) []byte {
	var out []byte
	i := 0
	for i < len(data) {
		run := 1
		for i+run < len(data) && data[i+run] == data[i] && run < 128 {
			run++
		}
		if run >= 3 {
			out = append(out, 0x80|byte(run-1), data[i])
			i += run
			continue
		}
		start := i
		for i < len(data) && i-start < 128 {
			if i+2 < len(data) && data[i] == data[i+1] && data[i] == data[i+2] {
				break
			}
			i++
		}
		out = append(out, byte(i-start-1))
		out = append(out, data[start:i]...)
	}
	return out
}
