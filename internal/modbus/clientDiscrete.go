package modbus

import "time"

// DiscreteValues holds the discrete inputs read by ReadDiscretes.
type DiscreteValues struct {
	Address   int
	Discretes []bool
}

func (c *client) ReadDiscretes(from int, count int, tout time.Duration) (*DiscreteValues, error) {
	p := dataBuilder{}
	p.word(from)
	p.word(count)
	tx := pdu{0x02, p.payload()}
	ret := &DiscreteValues{}
	decode := func(r *dataReader) error {
		bools, err := r.bits(count)
		if err != nil {
			return err
		}
		ret.Address = from
		ret.Discretes = bools

		return nil
	}
	err := <-c.query(tout, tx, decode)
	if err != nil {
		return nil, err
	}
	return ret, nil
}
