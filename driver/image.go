package driver

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/rolfl/hmicore/tag"
)

// processImage is the byte image of one connection: input, output and
// memory areas, indexed by tag.Area.
type processImage struct {
	areas [3][]byte
}

func newProcessImage(inputs, outputs, memory int) processImage {
	return processImage{areas: [3][]byte{
		make([]byte, inputs),
		make([]byte, outputs),
		make([]byte, memory),
	}}
}

func (p processImage) clone() processImage {
	var c processImage
	for i, a := range p.areas {
		c.areas[i] = append([]byte(nil), a...)
	}
	return c
}

// copyFrom overwrites p with src. Both images have the same layout.
func (p processImage) copyFrom(src processImage) {
	for i := range p.areas {
		copy(p.areas[i], src.areas[i])
	}
}

func (p processImage) lengths() [3]int {
	return [3]int{len(p.areas[0]), len(p.areas[1]), len(p.areas[2])}
}

// access is the set of areas a transport can read and write.
type access struct {
	read  [3]bool
	write [3]bool
}

var (
	shmAccess    = access{read: [3]bool{true, true, true}, write: [3]bool{true, true, true}}
	modbusAccess = access{read: [3]bool{true, true, false}, write: [3]bool{false, true, false}}
)

// check validates an access of size bytes at addr. The first failing check
// wins: area, then the last byte touched, then the bit address.
func (acc access) check(lengths [3]int, addr tag.Address, size uint, write bool) error {
	if !addr.Area.Valid() {
		return &Error{Code: ErrWrongArea, Msg: fmt.Sprintf("unknown area %v", addr.Area)}
	}
	areaName := strings.ToLower(addr.Area.String())
	if !acc.read[addr.Area] {
		return &Error{Code: ErrWrongArea, Msg: areaName + " area not allowed"}
	}
	if write && !acc.write[addr.Area] {
		return &Error{Code: ErrWrongArea, Msg: "write to " + areaName + " area not allowed"}
	}
	last := addr.Byte + size - 1
	if last < addr.Byte || last >= uint(lengths[addr.Area]) {
		return &Error{
			Code: ErrByteAddressOutOfRange,
			Msg:  fmt.Sprintf("byte address %d out of range (%s area length %d)", last, areaName, lengths[addr.Area]),
		}
	}
	if addr.Bit > tag.MaxBit {
		return &Error{Code: ErrBitAddressOutOfRange, Msg: fmt.Sprintf("bit address %d out of range 0..%d", addr.Bit, tag.MaxBit)}
	}
	return nil
}

func (p processImage) span(addr tag.Address, size uint) []byte {
	return p.areas[addr.Area][addr.Byte : addr.Byte+size]
}

func (p processImage) bit(addr tag.Address) bool {
	return p.areas[addr.Area][addr.Byte]&(1<<addr.Bit) != 0
}

func (p processImage) setBit(addr tag.Address, v bool) {
	if v {
		p.areas[addr.Area][addr.Byte] |= 1 << addr.Bit
	} else {
		p.areas[addr.Area][addr.Byte] &^= 1 << addr.Bit
	}
}

func (p processImage) byteAt(addr tag.Address) uint8 {
	return p.areas[addr.Area][addr.Byte]
}

func (p processImage) setByte(addr tag.Address, v uint8) {
	p.areas[addr.Area][addr.Byte] = v
}

func (p processImage) word(addr tag.Address) uint16 {
	return binary.LittleEndian.Uint16(p.span(addr, 2))
}

func (p processImage) setWord(addr tag.Address, v uint16) {
	binary.LittleEndian.PutUint16(p.span(addr, 2), v)
}

func (p processImage) dword(addr tag.Address) uint32 {
	return binary.LittleEndian.Uint32(p.span(addr, 4))
}

func (p processImage) setDWord(addr tag.Address, v uint32) {
	binary.LittleEndian.PutUint32(p.span(addr, 4), v)
}

func (p processImage) real(addr tag.Address) float32 {
	return math.Float32frombits(p.dword(addr))
}

func (p processImage) setReal(addr tag.Address, v float32) {
	p.setDWord(addr, math.Float32bits(v))
}
