package ne

import (
	"fmt"
	"strconv"
	"strings"
)

// intFlag marks built-in resource types and integer resource ids.
const intFlag = 0x8000

// Built-in resource types as stored in an NE resource table.
const (
	TypeCursor       uint16 = intFlag | 1
	TypeBitmap       uint16 = intFlag | 2
	TypeIcon         uint16 = intFlag | 3
	TypeMenu         uint16 = intFlag | 4
	TypeDialog       uint16 = intFlag | 5
	TypeString       uint16 = intFlag | 6
	TypeFontDir      uint16 = intFlag | 7
	TypeFont         uint16 = intFlag | 8
	TypeAccelerator  uint16 = intFlag | 9
	TypeRCData       uint16 = intFlag | 10
	TypeMessageTable uint16 = intFlag | 11
	TypeGroupCursor  uint16 = intFlag | 12
	TypeGroupIcon    uint16 = intFlag | 14
	TypeVersion      uint16 = intFlag | 16
)

var typeNames = map[uint16]string{
	TypeCursor:       "CURSOR",
	TypeBitmap:       "BITMAP",
	TypeIcon:         "ICON",
	TypeMenu:         "MENU",
	TypeDialog:       "DIALOG",
	TypeString:       "STRING",
	TypeFontDir:      "FONTDIR",
	TypeFont:         "FONT",
	TypeAccelerator:  "ACCELERATOR",
	TypeRCData:       "RCDATA",
	TypeMessageTable: "MESSAGETABLE",
	TypeGroupCursor:  "GROUP_CURSOR",
	TypeGroupIcon:    "GROUP_ICON",
	TypeVersion:      "VERSION",
}

// TypeName returns a human-readable name for a resource type id.
//
// Well-known types map to fixed names. Other ids with the high bit set are
// rendered as CUSTOM_<n>; ids without it point at a name string in the table
// and are reported as UNKNOWN.
func TypeName(typeID uint16) string {
	if name, ok := typeNames[typeID]; ok {
		return name
	}
	if typeID&intFlag != 0 {
		return fmt.Sprintf("CUSTOM_%d", typeID&^intFlag)
	}
	return "UNKNOWN"
}

// IsCustomType reports whether typeID is an integer type outside the
// well-known table. Games store sound and music payloads under such types.
func IsCustomType(typeID uint16) bool {
	_, known := typeNames[typeID]
	return !known && typeID&intFlag != 0
}

// ParseType resolves a type given as a well-known name, CUSTOM_<n>, or a
// number. Plain numbers below 0x8000 are treated as integer types.
func ParseType(s string) (uint16, bool) {
	name := strings.ToUpper(s)
	for id, known := range typeNames {
		if known == name {
			return id, true
		}
	}
	if n, ok := strings.CutPrefix(name, "CUSTOM_"); ok {
		v, err := strconv.ParseUint(n, 10, 15)
		if err != nil {
			return 0, false
		}
		return intFlag | uint16(v), true
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, false
	}
	if v < intFlag {
		v |= intFlag
	}
	return uint16(v), true
}
