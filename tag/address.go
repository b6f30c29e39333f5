// Package tag describes process-data locations: typed, named tags that
// address one bit, byte or multi-byte value in a driver connection's
// input, output or memory area.
package tag

import (
	"fmt"
	"strconv"
	"strings"
)

// Area is a named region of a connection's process image.
type Area uint8

const (
	Input Area = iota
	Output
	Memory
)

// Areas lists every area in layout order.
var Areas = []Area{Input, Output, Memory}

func (a Area) String() string {
	switch a {
	case Input:
		return "INPUT"
	case Output:
		return "OUTPUT"
	case Memory:
		return "MEMORY"
	default:
		return fmt.Sprintf("AREA(%d)", uint8(a))
	}
}

// letter is the single character used in textual addresses (I1.3, Q0, M12).
func (a Area) letter() string {
	switch a {
	case Input:
		return "I"
	case Output:
		return "Q"
	case Memory:
		return "M"
	default:
		return "?"
	}
}

// Valid reports whether a is one of the three known areas.
func (a Area) Valid() bool {
	return a <= Memory
}

// ParseArea accepts the area name or its address letter, case-insensitively.
func ParseArea(s string) (Area, error) {
	switch strings.ToUpper(s) {
	case "I", "INPUT":
		return Input, nil
	case "Q", "OUTPUT":
		return Output, nil
	case "M", "MEMORY":
		return Memory, nil
	}
	return Input, &Error{Code: ErrWrongArea, Msg: fmt.Sprintf("unknown area %q", s)}
}

// MaxBit is the highest valid bit address within a byte.
const MaxBit = 7

// Address is a process-data location: area, byte offset and bit offset.
// Bit is only meaningful for BIT tags and must be 0..7.
type Address struct {
	Area Area
	Byte uint
	Bit  uint
}

// String formats the address as area letter, byte and bit, e.g. "I1.3".
func (a Address) String() string {
	return fmt.Sprintf("%s%d.%d", a.Area.letter(), a.Byte, a.Bit)
}

// ParseAddress parses "I1.3", "Q4" or "M12.0". The bit part defaults to 0.
func ParseAddress(s string) (Address, error) {
	if len(s) < 2 {
		return Address{}, &Error{Code: ErrWrongArea, Msg: fmt.Sprintf("invalid address %q", s)}
	}
	area, err := ParseArea(s[:1])
	if err != nil {
		return Address{}, err
	}
	bytePart, bitPart, hasBit := strings.Cut(s[1:], ".")
	b, err := strconv.ParseUint(bytePart, 10, 32)
	if err != nil {
		return Address{}, &Error{Code: ErrByteAddressOutOfRange, Msg: fmt.Sprintf("invalid byte address in %q", s)}
	}
	addr := Address{Area: area, Byte: uint(b)}
	if hasBit {
		bit, err := strconv.ParseUint(bitPart, 10, 8)
		if err != nil || bit > MaxBit {
			return Address{}, &Error{Code: ErrBitAddressOutOfRange, Msg: fmt.Sprintf("invalid bit address in %q", s)}
		}
		addr.Bit = uint(bit)
	}
	return addr, nil
}
