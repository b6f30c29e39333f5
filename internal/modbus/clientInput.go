package modbus

import (
	"fmt"
	"time"
)

// InputValues holds the input registers read by ReadInputs.
type InputValues struct {
	Address int
	Values  []int
}

func (c *client) ReadInputs(from int, count int, tout time.Duration) (*InputValues, error) {
	p := dataBuilder{}
	p.word(from)
	p.word(count)
	tx := pdu{0x04, p.payload()}
	ret := &InputValues{}
	decode := func(r *dataReader) error {
		l, err := r.byte()
		if err != nil {
			return err
		}
		if len(r.data) != l+1 {
			return fmt.Errorf("read inputs: byte count %d, payload %d", l, len(r.data)-1)
		}
		if l != count*2 {
			return fmt.Errorf("read inputs: got %d registers, want %d", l/2, count)
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
