package modbus

import "time"

// CoilValues holds the coils read by ReadCoils, starting at Address.
type CoilValues struct {
	Address int
	Coils   []bool
}

func (c *client) ReadCoils(from int, count int, tout time.Duration) (*CoilValues, error) {
	p := dataBuilder{}
	p.word(from)
	p.word(count)
	tx := pdu{0x01, p.payload()}
	ret := &CoilValues{}
	decode := func(r *dataReader) error {
		coils, err := r.bits(count)
		if err != nil {
			return err
		}
		ret.Address = from
		ret.Coils = coils
		return nil
	}
	err := <-c.query(tout, tx, decode)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// CoilWrite is the echo of a single coil write.
type CoilWrite struct {
	Address int
	Value   bool
}

func (c *client) WriteSingleCoil(address int, value bool, tout time.Duration) (*CoilWrite, error) {
	p := dataBuilder{}
	p.word(address)
	if value {
		p.word(0xFF00)
	} else {
		p.word(0x0000)
	}
	tx := pdu{0x05, p.payload()}
	ret := &CoilWrite{}
	decode := func(r *dataReader) error {
		err := r.canRead(4)
		if err != nil {
			return err
		}
		a, _ := r.word()
		v, _ := r.word()
		ret.Address = a
		ret.Value = v == 0xff00
		return nil
	}
	err := <-c.query(tout, tx, decode)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// CoilsWrite is the device acknowledgement of a multiple coil write.
type CoilsWrite struct {
	Address int
	Count   int
}

func (c *client) WriteMultipleCoils(address int, values []bool, tout time.Duration) (*CoilsWrite, error) {
	p := dataBuilder{}
	p.word(address)
	p.nbits(values...)
	tx := pdu{0x0F, p.payload()}
	ret := &CoilsWrite{}
	decode := func(r *dataReader) error {
		err := r.canRead(4)
		if err != nil {
			return err
		}
		a, _ := r.word()
		c, _ := r.word()
		ret.Address = a
		ret.Count = c
		return nil
	}
	err := <-c.query(tout, tx, decode)
	if err != nil {
		return nil, err
	}
	return ret, nil
}
