package modbus

import (
	"fmt"
	"time"
)

// HoldingValues holds the registers read by ReadHoldings.
type HoldingValues struct {
	Address int
	Values  []int
}

func (c *client) ReadHoldings(from int, count int, tout time.Duration) (*HoldingValues, error) {
	p := dataBuilder{}
	p.word(from)
	p.word(count)
	ret := &HoldingValues{}
	tx := pdu{0x03, p.payload()}
	decode := func(r *dataReader) error {
		l, err := r.byte()
		if err != nil {
			return err
		}
		if l != count*2 {
			return fmt.Errorf("read holdings: got %d registers, want %d", l/2, count)
		}
		v, err := r.words(count)
		if err != nil {
			return err
		}
		ret.Address = from
		ret.Values = v
		return nil
	}
	err := <-c.query(tout, tx, decode)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// HoldingWrite is the echo of a single register write.
type HoldingWrite struct {
	Address int
	Value   int
}

func (c *client) WriteSingleHolding(address int, value int, tout time.Duration) (*HoldingWrite, error) {
	p := dataBuilder{}
	p.word(address)
	p.word(value)
	ret := &HoldingWrite{}
	tx := pdu{0x06, p.payload()}
	decode := func(r *dataReader) error {
		got, err := r.word()
		if err != nil {
			return err
		}
		if got != address {
			return fmt.Errorf("write holding: echoed address %d, want %d", got, address)
		}
		val, err := r.word()
		if err != nil {
			return err
		}
		if val != value {
			return fmt.Errorf("write holding: echoed value %d, want %d", val, value)
		}
		ret.Address = address
		ret.Value = val
		return nil
	}
	err := <-c.query(tout, tx, decode)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// HoldingsWrite is the device acknowledgement of a multiple register write.
type HoldingsWrite struct {
	Address int
	Count   int
}

func (c *client) WriteMultipleHoldings(address int, values []int, tout time.Duration) (*HoldingsWrite, error) {
	p := dataBuilder{}
	p.word(address)
	p.word(len(values))
	p.byte(len(values) * 2)
	p.words(values...)
	tx := pdu{0x10, p.payload()}
	ret := &HoldingsWrite{}
	decode := func(r *dataReader) error {
		got, err := r.word()
		if err != nil {
			return err
		}
		if got != address {
			return fmt.Errorf("write holdings: acknowledged address %d, want %d", got, address)
		}
		set, err := r.word()
		if err != nil {
			return err
		}
		if set != len(values) {
			return fmt.Errorf("write holdings: acknowledged %d registers, want %d", set, len(values))
		}
		ret.Address = address
		ret.Count = set
		return nil
	}
	err := <-c.query(tout, tx, decode)
	if err != nil {
		return nil, err
	}
	return ret, nil
}
