package modbus

import (
	"encoding/binary"
	"fmt"
)

// wordPanic and bytePanic narrow an int for the wire. Out of range values
// are caller bugs.
func wordPanic(val int) uint16 {
	if val < 0 || val > 0xFFFF {
		panic(fmt.Sprintf("modbus: %d does not fit in a word", val))
	}
	return uint16(val)
}

func bytePanic(val int) byte {
	if val < 0 || val > 0xFF {
		panic(fmt.Sprintf("modbus: %d does not fit in a byte", val))
	}
	return byte(val)
}

// getWord and setWord access a big-endian word at index.
func getWord(data []byte, index int) uint16 {
	return binary.BigEndian.Uint16(data[index:])
}

func setWord(data []byte, index int, value uint16) {
	binary.BigEndian.PutUint16(data[index:], value)
}

// serverCheckAddress reports an illegal address exception unless
// address..address+count-1 lies within a table of limit points.
func serverCheckAddress(name string, address, count, limit int) error {
	if address >= 0 && count >= 0 && address+count <= limit {
		return nil
	}
	return IllegalAddressErrorF("%s: %d points at %d exceed table size %d", name, count, address, limit)
}
