package driver

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a driver error. Codes are errors, so
// errors.Is(err, driver.ErrNoConnection) works on any wrapped *Error.
type ErrorCode uint8

const (
	ErrWrongArea ErrorCode = iota + 1
	ErrByteAddressOutOfRange
	ErrBitAddressOutOfRange
	ErrNoConnection
	ErrEmptyTags
	ErrShortResult
	ErrInvalidValue
	ErrTransport
	ErrNoDiagnostics
)

func (c ErrorCode) String() string {
	switch c {
	case ErrWrongArea:
		return "WRONG_AREA"
	case ErrByteAddressOutOfRange:
		return "BYTE_ADDRESS_OUT_OF_RANGE"
	case ErrBitAddressOutOfRange:
		return "BIT_ADDRESS_OUT_OF_RANGE"
	case ErrNoConnection:
		return "NO_CONNECTION"
	case ErrEmptyTags:
		return "EMPTY_TAGS"
	case ErrShortResult:
		return "SHORT_RESULT"
	case ErrInvalidValue:
		return "INVALID_VALUE"
	case ErrTransport:
		return "TRANSPORT"
	case ErrNoDiagnostics:
		return "NO_DIAGNOSTICS"
	default:
		return fmt.Sprintf("DRIVER_ERROR(%d)", uint8(c))
	}
}

func (c ErrorCode) Error() string {
	return c.String()
}

// Error is a driver failure: an address rejected by a backend, a tag whose
// connection does not exist, or a transport fault inside an updater.
// Tag is filled in by the process reader and writer.
type Error struct {
	Code       ErrorCode
	Tag        string
	Connection uint32
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Tag != "" {
		return "tag " + e.Tag + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Code}
	}
	return []error{e.Code, e.Err}
}

// withTag annotates err with the name of the tag being accessed.
func withTag(err error, name string) error {
	var de *Error
	if errors.As(err, &de) {
		annotated := *de
		annotated.Tag = name
		return &annotated
	}
	return fmt.Errorf("tag %s: %w", name, err)
}

// Configuration errors, only ever returned while building a Manager.
var (
	ErrDuplicateConnection = errors.New("duplicate connection id")
	ErrUnknownDriverType   = errors.New("unknown driver type")
	ErrInvalidConnection   = errors.New("invalid connection configuration")
)

// ConfigError is a fatal configuration problem found at Manager construction.
type ConfigError struct {
	Connection uint32
	Name       string
	Err        error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("driver connection %d (%s): %v", e.Connection, e.Name, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErrorf(c Connection, sentinel error, format string, args ...interface{}) *ConfigError {
	return &ConfigError{
		Connection: c.ID,
		Name:       c.Name,
		Err:        fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)),
	}
}
