package modbus

// Limits on the number of points one request may carry.
const (
	maxReadBits      = 2000
	maxWriteBits     = 1968
	maxReadRegisters = 125
	maxWriteRegister = 123
)

func (s *server) x02ReadDiscretes(request *dataReader, response *dataBuilder) error {
	addr, _ := request.word()
	count, _ := request.word()
	if err := checkCount("Discrete", count, maxReadBits); err != nil {
		return err
	}

	atomic := s.StartAtomic()
	defer atomic.Complete()
	discretes, err := s.ReadDiscretes(atomic, addr, count)
	if err != nil {
		return err
	}
	response.bits(discretes...)
	return nil
}

func (s *server) x01ReadCoils(request *dataReader, response *dataBuilder) error {
	addr, _ := request.word()
	count, _ := request.word()
	if err := checkCount("Coil", count, maxReadBits); err != nil {
		return err
	}

	atomic := s.StartAtomic()
	defer atomic.Complete()
	coils, err := s.ReadCoils(atomic, addr, count)
	if err != nil {
		return err
	}
	response.bits(coils...)
	return nil
}

func (s *server) coilsCommonWrite(atomic Atomic, addr int, values []bool) ([]bool, error) {
	current, err := s.ReadCoils(atomic, addr, len(values))
	if err != nil {
		return nil, err
	}
	var handler UpdateCoils
	got := make(chan struct{})
	atomic.execute(func() {
		handler = s.updateCoils
		close(got)
	})
	<-got
	replacement := values
	if handler != nil {
		replacement, err = handler(s, atomic, addr, values, current)
		if err != nil {
			return nil, err
		}
	}
	if err := s.WriteCoils(atomic, addr, replacement); err != nil {
		return nil, err
	}
	return replacement, nil
}

func (s *server) x05WriteSingleCoil(request *dataReader, response *dataBuilder) error {
	addr, _ := request.word()
	value, _ := request.word()
	if value != 0x0000 && value != 0xFF00 {
		return IllegalValueErrorF("Coil: single coil value must be 0x0000 or 0xff00, not 0x%04x", value)
	}

	atomic := s.StartAtomic()
	defer atomic.Complete()
	repl, err := s.coilsCommonWrite(atomic, addr, []bool{value != 0})
	if err != nil {
		return err
	}

	ret := 0x0000
	if repl[0] {
		ret = 0xff00
	}
	response.words(addr, ret)
	return nil
}

func (s *server) x0fWriteCoils(request *dataReader, response *dataBuilder) error {
	addr, _ := request.word()
	count, _ := request.word()
	if err := checkCount("Coil", count, maxWriteBits); err != nil {
		return err
	}
	coils, err := request.bits(count)
	if err != nil {
		return IllegalValueErrorF("%v", err)
	}

	atomic := s.StartAtomic()
	defer atomic.Complete()
	repl, err := s.coilsCommonWrite(atomic, addr, coils)
	if err != nil {
		return err
	}
	response.words(addr, len(repl))
	return nil
}

func (s *server) x04ReadInputRegisters(request *dataReader, response *dataBuilder) error {
	addr, _ := request.word()
	count, _ := request.word()
	if err := checkCount("Input", count, maxReadRegisters); err != nil {
		return err
	}

	atomic := s.StartAtomic()
	defer atomic.Complete()
	inputs, err := s.ReadInputs(atomic, addr, count)
	if err != nil {
		return err
	}
	response.byte(2 * len(inputs))
	response.words(inputs...)
	return nil
}

func (s *server) x03ReadHoldingRegisters(request *dataReader, response *dataBuilder) error {
	addr, _ := request.word()
	count, _ := request.word()
	if err := checkCount("Holding", count, maxReadRegisters); err != nil {
		return err
	}

	atomic := s.StartAtomic()
	defer atomic.Complete()
	registers, err := s.ReadHoldings(atomic, addr, count)
	if err != nil {
		return err
	}
	response.byte(2 * len(registers))
	response.words(registers...)
	return nil
}

func (s *server) holdingCommonWrite(atomic Atomic, addr int, values []int) error {
	current, err := s.ReadHoldings(atomic, addr, len(values))
	if err != nil {
		return err
	}
	var handler UpdateHoldings
	got := make(chan struct{})
	atomic.execute(func() {
		handler = s.updateHoldings
		close(got)
	})
	<-got
	replacement := values
	if handler != nil {
		replacement, err = handler(s, atomic, addr, values, current)
		if err != nil {
			return err
		}
	}
	return s.WriteHoldings(atomic, addr, replacement)
}

func (s *server) x06WriteSingleHoldingRegister(request *dataReader, response *dataBuilder) error {
	addr, _ := request.word()
	value, _ := request.word()

	atomic := s.StartAtomic()
	defer atomic.Complete()
	if err := s.holdingCommonWrite(atomic, addr, []int{value}); err != nil {
		return err
	}
	response.words(addr, value)
	return nil
}

func (s *server) x10WriteHoldingRegisters(request *dataReader, response *dataBuilder) error {
	addr, _ := request.word()
	count, _ := request.word()
	if err := checkCount("Holding", count, maxWriteRegister); err != nil {
		return err
	}
	bcnt, _ := request.byte()
	if bcnt != count*2 {
		return errCount("Holding", count*2, bcnt)
	}
	words, err := request.words(count)
	if err != nil {
		return IllegalValueErrorF("%v", err)
	}

	atomic := s.StartAtomic()
	defer atomic.Complete()
	if err := s.holdingCommonWrite(atomic, addr, words); err != nil {
		return err
	}
	response.words(addr, count)
	return nil
}
