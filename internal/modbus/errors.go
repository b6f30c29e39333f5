package modbus

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by client calls on a connection that has been shut down.
var ErrClosed = errors.New("modbus: connection closed")

// Error is a Modbus exception, either raised by a local server or reported by a remote one.
type Error struct {
	msg  string
	code uint8
}

func (err *Error) Error() string {
	return err.msg
}

// Code is the Modbus exception code
func (err *Error) Code() uint8 {
	return err.code
}

// asPDU returns the error in the form of a Modbus exception response PDU
func (err *Error) asPDU(function uint8) pdu {
	return pdu{function | 0x80, rtuFrame{err.code}}
}

// exceptionError decodes the exception code of a remote exception response.
func exceptionError(code byte) *Error {
	switch code {
	case 1:
		return &Error{"modbus illegal function", code}
	case 2:
		return &Error{"modbus illegal data address", code}
	case 3:
		return &Error{"modbus illegal data value", code}
	case 4:
		return &Error{"modbus server device failure", code}
	case 5:
		return &Error{"modbus ack only", code}
	case 6:
		return &Error{"modbus server busy", code}
	default:
		return &Error{fmt.Sprintf("modbus unknown exception code %v", code), code}
	}
}

// IllegalFunctionErrorF represents an invalid function code - Modbus error code 1
func IllegalFunctionErrorF(format string, args ...interface{}) *Error {
	return &Error{fmt.Sprintf(format, args...), 1}
}

// IllegalAddressErrorF represents an invalid address - Modbus error code 2
func IllegalAddressErrorF(format string, args ...interface{}) *Error {
	return &Error{fmt.Sprintf(format, args...), 2}
}

// IllegalValueErrorF represents an illegal data value - Modbus error code 3
func IllegalValueErrorF(format string, args ...interface{}) *Error {
	return &Error{fmt.Sprintf(format, args...), 3}
}

// ServerFailureErrorF represents an error that is not represented by the above types - Modbus error code 4
func ServerFailureErrorF(format string, args ...interface{}) *Error {
	return &Error{fmt.Sprintf(format, args...), 4}
}
