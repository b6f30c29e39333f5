package tag

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTag(t *testing.T) {
	tg, err := New(7, 2, "pump_1", Word, Address{Area: Output, Byte: 4})
	require.NoError(t, err)

	id, err := tg.ID()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), id)

	conn, err := tg.ConnectionID()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), conn)

	name, err := tg.Name()
	require.NoError(t, err)
	assert.Equal(t, "pump_1", name)

	addr, err := tg.Address()
	require.NoError(t, err)
	assert.Equal(t, Address{Area: Output, Byte: 4}, addr)
	assert.Equal(t, Word, tg.Type())
	assert.Equal(t, Output, tg.Area())
}

func TestNewTagValidation(t *testing.T) {
	tests := []struct {
		name    string
		id      uint32
		conn    uint32
		tagName string
		typ     Type
		addr    Address
		want    ErrorCode
	}{
		{"empty name", 1, 1, "", Bit, Address{}, ErrWrongName},
		{"bad charset", 1, 1, "pump 1", Bit, Address{}, ErrWrongName},
		{"too long", 1, 1, strings.Repeat("a", MaxNameLength+1), Bit, Address{}, ErrWrongName},
		{"zero id", 0, 1, "t", Bit, Address{}, ErrWrongID},
		{"zero connection", 1, 0, "t", Bit, Address{}, ErrWrongID},
		{"unknown type", 1, 1, "t", Type(42), Address{}, ErrWrongType},
		{"unknown area", 1, 1, "t", Bit, Address{Area: Area(9)}, ErrWrongArea},
		{"bit out of range", 1, 1, "t", Bit, Address{Bit: 8}, ErrBitAddressOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id, tt.conn, tt.tagName, tt.typ, tt.addr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestEmptyTag(t *testing.T) {
	var tg Tag
	assert.True(t, tg.Empty())

	_, err := tg.ID()
	assert.ErrorIs(t, err, ErrNotExist)
	_, err = tg.ConnectionID()
	assert.ErrorIs(t, err, ErrNotExist)
	_, err = tg.Name()
	assert.ErrorIs(t, err, ErrNotExist)
	_, err = tg.Address()
	assert.ErrorIs(t, err, ErrNotExist)

	assert.Equal(t, Bit, tg.Type())
	assert.Equal(t, Input, tg.Area())
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in   string
		want Address
	}{
		{"I1.3", Address{Area: Input, Byte: 1, Bit: 3}},
		{"Q4", Address{Area: Output, Byte: 4}},
		{"m12.7", Address{Area: Memory, Byte: 12, Bit: 7}},
	}
	for _, tt := range tests {
		got, err := ParseAddress(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseAddress("X1.0")
	assert.ErrorIs(t, err, ErrWrongArea)
	_, err = ParseAddress("I1.8")
	assert.ErrorIs(t, err, ErrBitAddressOutOfRange)
	_, err = ParseAddress("Iabc")
	assert.ErrorIs(t, err, ErrByteAddressOutOfRange)
	_, err = ParseAddress("I")
	assert.Error(t, err)

	assert.Equal(t, "Q4.2", Address{Area: Output, Byte: 4, Bit: 2}.String())
}

func TestParseType(t *testing.T) {
	for _, typ := range []Type{Bit, Byte, Word, DWord, Int, Real} {
		got, err := ParseType(strings.ToLower(typ.String()))
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseType("LREAL")
	assert.ErrorIs(t, err, ErrWrongType)

	assert.Equal(t, uint(1), Bit.Size())
	assert.Equal(t, uint(2), Word.Size())
	assert.Equal(t, uint(4), Real.Size())
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Code: ErrWrongType, Tag: "valve", Msg: "expected BIT"}
	assert.Equal(t, "tag valve: WRONG_TYPE: expected BIT", err.Error())
	assert.ErrorIs(t, err, ErrWrongType)
	assert.NotErrorIs(t, err, ErrWrongArea)
}
