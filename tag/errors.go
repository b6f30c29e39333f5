package tag

import "fmt"

// ErrorCode classifies a tag error. Codes are errors themselves so callers
// can test with errors.Is(err, tag.ErrWrongType).
type ErrorCode uint8

const (
	ErrWrongName ErrorCode = iota + 1
	ErrWrongType
	ErrWrongArea
	ErrByteAddressOutOfRange
	ErrBitAddressOutOfRange
	ErrNotExist
	ErrWrongID
)

func (c ErrorCode) String() string {
	switch c {
	case ErrWrongName:
		return "WRONG_NAME"
	case ErrWrongType:
		return "WRONG_TYPE"
	case ErrWrongArea:
		return "WRONG_AREA"
	case ErrByteAddressOutOfRange:
		return "BYTE_ADDRESS_OUT_OF_RANGE"
	case ErrBitAddressOutOfRange:
		return "BIT_ADDRESS_OUT_OF_RANGE"
	case ErrNotExist:
		return "NOT_EXIST"
	case ErrWrongID:
		return "WRONG_ID"
	default:
		return fmt.Sprintf("TAG_ERROR(%d)", uint8(c))
	}
}

func (c ErrorCode) Error() string {
	return c.String()
}

// Error is a failure tied to one tag. Tag is empty when the tag has no
// name yet (construction failures, empty tags).
type Error struct {
	Code ErrorCode
	Tag  string
	Msg  string
}

func (e *Error) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("%v: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("tag %s: %v: %s", e.Tag, e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Code
}
