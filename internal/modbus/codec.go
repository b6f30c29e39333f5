package modbus

import (
	"encoding/binary"
	"fmt"
)

// dataBuilder accumulates the data part of an outgoing PDU.
type dataBuilder struct {
	data []byte
}

func (p *dataBuilder) payload() []byte {
	return p.data
}

func (p *dataBuilder) byte(b int) {
	p.data = append(p.data, bytePanic(b))
}

func (p *dataBuilder) word(w int) {
	p.data = binary.BigEndian.AppendUint16(p.data, wordPanic(w))
}

func (p *dataBuilder) words(wds ...int) {
	for _, w := range wds {
		p.word(w)
	}
}

// bits appends the byte count followed by the values packed eight to a
// byte, first value in the least significant bit.
func (p *dataBuilder) bits(bits ...bool) {
	packed := make([]byte, (len(bits)+7)/8)
	for i, v := range bits {
		if v {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	p.byte(len(packed))
	p.data = append(p.data, packed...)
}

// nbits prefixes bits with the point count, as coil writes need.
func (p *dataBuilder) nbits(bits ...bool) {
	p.word(len(bits))
	p.bits(bits...)
}

// dataReader consumes the data part of an incoming PDU.
type dataReader struct {
	cursor int
	data   []byte
}

func getReader(payload []byte) dataReader {
	return dataReader{data: payload}
}

func (p *dataReader) canRead(count int) error {
	if p.cursor+count > len(p.data) {
		return fmt.Errorf("short pdu: need %d bytes at offset %d, have %d", count, p.cursor, len(p.data))
	}
	return nil
}

func (p *dataReader) byte() (int, error) {
	if err := p.canRead(1); err != nil {
		return 0, err
	}
	b := p.data[p.cursor]
	p.cursor++
	return int(b), nil
}

func (p *dataReader) word() (int, error) {
	if err := p.canRead(2); err != nil {
		return 0, err
	}
	w := binary.BigEndian.Uint16(p.data[p.cursor:])
	p.cursor += 2
	return int(w), nil
}

func (p *dataReader) words(count int) ([]int, error) {
	if err := p.canRead(2 * count); err != nil {
		return nil, err
	}
	wds := make([]int, count)
	for i := range wds {
		wds[i], _ = p.word()
	}
	return wds, nil
}

// bits reads a byte count and count points packed as written by
// dataBuilder.bits.
func (p *dataReader) bits(count int) ([]bool, error) {
	n, err := p.byte()
	if err != nil {
		return nil, err
	}
	if want := (count + 7) / 8; n != want {
		return nil, fmt.Errorf("%d bits need %d bytes, pdu has %d", count, want, n)
	}
	if err := p.canRead(n); err != nil {
		return nil, err
	}
	packed := p.data[p.cursor : p.cursor+n]
	p.cursor += n
	bits := make([]bool, count)
	for i := range bits {
		bits[i] = packed[i/8]&(1<<(i%8)) != 0
	}
	return bits, nil
}

func (p *dataReader) remaining() error {
	if left := len(p.data) - p.cursor; left != 0 {
		return fmt.Errorf("%d unread bytes at end of pdu", left)
	}
	return nil
}
