package tag

import (
	"fmt"
	"regexp"
	"strings"
)

// Type is the declared data type of a tag.
type Type uint8

const (
	Bit Type = iota
	Byte
	Word
	DWord
	Int
	Real
)

func (t Type) String() string {
	switch t {
	case Bit:
		return "BIT"
	case Byte:
		return "BYTE"
	case Word:
		return "WORD"
	case DWord:
		return "DWORD"
	case Int:
		return "INT"
	case Real:
		return "REAL"
	default:
		return fmt.Sprintf("TYPE(%d)", uint8(t))
	}
}

// Size is the number of bytes a value of this type occupies in the process image.
func (t Type) Size() uint {
	switch t {
	case Word:
		return 2
	case DWord, Int, Real:
		return 4
	default:
		return 1
	}
}

// ParseType parses a type name such as "DWORD", case-insensitively.
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(s) {
	case "BIT":
		return Bit, nil
	case "BYTE":
		return Byte, nil
	case "WORD":
		return Word, nil
	case "DWORD":
		return DWord, nil
	case "INT":
		return Int, nil
	case "REAL":
		return Real, nil
	}
	return Bit, &Error{Code: ErrWrongType, Msg: fmt.Sprintf("unknown type %q", s)}
}

// MaxNameLength bounds tag names.
const MaxNameLength = 100

var validName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Tag describes one process-data location owned by a driver connection.
// Tags are values; the zero Tag is empty and every getter other than Type
// and Area fails with ErrNotExist.
type Tag struct {
	id           uint32
	connectionID uint32
	name         string
	typ          Type
	address      Address
}

// New validates and builds a tag.
func New(id, connectionID uint32, name string, typ Type, address Address) (Tag, error) {
	if err := checkName(name); err != nil {
		return Tag{}, err
	}
	if id == 0 {
		return Tag{}, &Error{Code: ErrWrongID, Tag: name, Msg: "tag id must be greater than 0"}
	}
	if connectionID == 0 {
		return Tag{}, &Error{Code: ErrWrongID, Tag: name, Msg: "connection id must be greater than 0"}
	}
	if typ > Real {
		return Tag{}, &Error{Code: ErrWrongType, Tag: name, Msg: fmt.Sprintf("unknown type %v", typ)}
	}
	if !address.Area.Valid() {
		return Tag{}, &Error{Code: ErrWrongArea, Tag: name, Msg: fmt.Sprintf("unknown area %v", address.Area)}
	}
	if address.Bit > MaxBit {
		return Tag{}, &Error{Code: ErrBitAddressOutOfRange, Tag: name, Msg: fmt.Sprintf("bit address %d exceeds %d", address.Bit, MaxBit)}
	}
	return Tag{id: id, connectionID: connectionID, name: name, typ: typ, address: address}, nil
}

func checkName(name string) error {
	if name == "" {
		return &Error{Code: ErrWrongName, Msg: "tag name is empty"}
	}
	if len(name) > MaxNameLength {
		return &Error{Code: ErrWrongName, Msg: fmt.Sprintf("tag name longer than %d characters", MaxNameLength)}
	}
	if !validName.MatchString(name) {
		return &Error{Code: ErrWrongName, Msg: fmt.Sprintf("tag name %q contains forbidden characters", name)}
	}
	return nil
}

// Empty reports whether t is the zero tag.
func (t Tag) Empty() bool {
	return t.id == 0
}

func (t Tag) emptyError() error {
	return &Error{Code: ErrNotExist, Msg: "tag is empty"}
}

func (t Tag) ID() (uint32, error) {
	if t.Empty() {
		return 0, t.emptyError()
	}
	return t.id, nil
}

func (t Tag) ConnectionID() (uint32, error) {
	if t.Empty() {
		return 0, t.emptyError()
	}
	return t.connectionID, nil
}

func (t Tag) Name() (string, error) {
	if t.Empty() {
		return "", t.emptyError()
	}
	return t.name, nil
}

func (t Tag) Address() (Address, error) {
	if t.Empty() {
		return Address{}, t.emptyError()
	}
	return t.address, nil
}

// Type returns the declared type; BIT for an empty tag.
func (t Tag) Type() Type {
	return t.typ
}

// Area returns the address area; INPUT for an empty tag.
func (t Tag) Area() Area {
	return t.address.Area
}

func (t Tag) String() string {
	if t.Empty() {
		return "<empty tag>"
	}
	return fmt.Sprintf("%s(%d) %v %v@%d", t.name, t.id, t.typ, t.address, t.connectionID)
}
