package testutil

import "encoding/binary"

const (
	neHeaderAt   = 0x40
	resTableAt   = 0x80
	resTableRel  = resTableAt - neHeaderAt
	typeEntryLen = 8
	nameEntryLen = 12
)

type containerResource struct {
	typeID uint16
	id     uint16
	flags  uint16
	offset int64 // 0 = place automatically
	data   []byte
}

// ContainerBuilder assembles a minimal NE-style container in memory.
//
// Resource data is padded to the alignment unit, so tests that need exact
// lengths should use lengths that are multiples of 1<<shift.
type ContainerBuilder struct {
	// HeaderShift is the alignment shift stored in the NE header.
	HeaderShift uint16
	// TableShift is the alignment shift stored at the start of the resource
	// table. Zero defers to HeaderShift.
	TableShift uint16

	resources []containerResource
}

// NewContainer returns a builder whose NE header carries shift.
func NewContainer(shift uint16) *ContainerBuilder {
	return &ContainerBuilder{HeaderShift: shift}
}

// Add appends a resource placed after the resource table.
func (b *ContainerBuilder) Add(typeID, id uint16, data []byte) *ContainerBuilder {
	b.resources = append(b.resources, containerResource{typeID: typeID, id: id, data: data})
	return b
}

// AddAt appends a resource at a fixed, alignment-multiple byte offset.
func (b *ContainerBuilder) AddAt(typeID, id uint16, offset int64, data []byte) *ContainerBuilder {
	b.resources = append(b.resources, containerResource{typeID: typeID, id: id, offset: offset, data: data})
	return b
}

// Shift returns the effective alignment shift.
func (b *ContainerBuilder) Shift() uint16 {
	if b.TableShift != 0 {
		return b.TableShift
	}
	return b.HeaderShift
}

// TableEnd returns the byte offset just past the resource table terminator.
func (b *ContainerBuilder) TableEnd() int64 {
	types := 0
	seen := map[uint16]bool{}
	for _, r := range b.resources {
		if !seen[r.typeID] {
			seen[r.typeID] = true
			types++
		}
	}
	return int64(resTableAt + 2 + types*typeEntryLen + len(b.resources)*nameEntryLen + 2)
}

// Bytes renders the container.
func (b *ContainerBuilder) Bytes() []byte {
	shift := b.Shift()
	unit := int64(1) << shift
	align := func(v int64) int64 { return (v + unit - 1) / unit * unit }

	// Resolve placement.
	offsets := make([]int64, len(b.resources))
	next := align(b.TableEnd())
	size := next
	for i, r := range b.resources {
		off := r.offset
		if off == 0 {
			off = next
			next = align(off + int64(len(r.data)))
		}
		offsets[i] = off
		if end := align(off + int64(len(r.data))); end > size {
			size = end
		}
	}

	out := make([]byte, size)
	out[0], out[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(out[0x3C:], neHeaderAt)
	out[neHeaderAt], out[neHeaderAt+1] = 'N', 'E'
	binary.LittleEndian.PutUint16(out[neHeaderAt+0x24:], resTableRel)
	binary.LittleEndian.PutUint16(out[neHeaderAt+0x32:], b.HeaderShift)

	// Group by type, preserving first-seen order.
	var order []uint16
	groups := map[uint16][]int{}
	for i, r := range b.resources {
		if _, ok := groups[r.typeID]; !ok {
			order = append(order, r.typeID)
		}
		groups[r.typeID] = append(groups[r.typeID], i)
	}

	pos := resTableAt
	binary.LittleEndian.PutUint16(out[pos:], b.TableShift)
	pos += 2
	for _, typeID := range order {
		idx := groups[typeID]
		binary.LittleEndian.PutUint16(out[pos:], typeID)
		binary.LittleEndian.PutUint16(out[pos+2:], uint16(len(idx))) //nolint:gosec // test fixture sizes are small
		pos += typeEntryLen
		for _, i := range idx {
			r := b.resources[i]
			units := (int64(len(r.data)) + unit - 1) / unit
			binary.LittleEndian.PutUint16(out[pos:], uint16(offsets[i]>>shift)) //nolint:gosec // test fixture
			binary.LittleEndian.PutUint16(out[pos+2:], uint16(units))           //nolint:gosec // test fixture
			binary.LittleEndian.PutUint16(out[pos+4:], r.flags)
			binary.LittleEndian.PutUint16(out[pos+6:], r.id)
			pos += nameEntryLen
		}
	}
	// Terminator (type id 0) is already zero.

	for i, r := range b.resources {
		copy(out[offsets[i]:], r.data)
	}
	return out
}

// Bitmap8 returns a bottom-up 8-bit bitmap resource (BITMAPINFOHEADER,
// palette, pixels) of the given size. Rows are padded to four bytes.
func Bitmap8(width, height int, palette [][3]byte, pixels []byte) []byte {
	stride := (width + 3) &^ 3
	out := make([]byte, 40+len(palette)*4+stride*height)
	binary.LittleEndian.PutUint32(out[0:], 40)
	binary.LittleEndian.PutUint32(out[4:], uint32(width))  //nolint:gosec // test fixture
	binary.LittleEndian.PutUint32(out[8:], uint32(height)) //nolint:gosec // test fixture
	binary.LittleEndian.PutUint16(out[12:], 1)
	binary.LittleEndian.PutUint16(out[14:], 8)
	binary.LittleEndian.PutUint32(out[32:], uint32(len(palette))) //nolint:gosec // test fixture
	pos := 40
	for _, c := range palette {
		// Stored as BGR0.
		out[pos], out[pos+1], out[pos+2] = c[2], c[1], c[0]
		pos += 4
	}
	for y := range height {
		copy(out[pos+y*stride:pos+y*stride+width], pixels[y*width:(y+1)*width])
	}
	return out
}
