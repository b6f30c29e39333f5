package modbus

type atomic struct {
	todo chan func()
	done chan bool
}

func (a *atomic) execute(fn func()) {
	a.todo <- fn
}

func (a *atomic) Complete() {
	close(a.todo)
	<-a.done
}

func (s *server) StartAtomic() Atomic {
	return <-s.atomics
}

// manageCache is run as a go-routine, it's the only one that accesses the discretes/coils/inputs/holdings cache
func (s *server) manageCache() {
	for {
		// seed the channel with a new atomic operation.
		a := &atomic{make(chan func(), 5), make(chan bool)}
		s.atomics <- a

		// while there are atomic operations, handle them.
		for fn := range a.todo {
			fn()
		}
		close(a.done)
	}
}

func grow[T any](table []T, count int) []T {
	if len(table) < count {
		table = append(table, make([]T, count-len(table))...)
	}
	return table
}

// readTable copies count values from the table selected by get, inside the atomic.
func readTable[T any](atomic Atomic, name string, get func() []T, address, count int) ([]T, error) {
	type result struct {
		values []T
		err    error
	}
	ret := make(chan result, 1)
	atomic.execute(func() {
		table := get()
		if err := serverCheckAddress(name, address, count, len(table)); err != nil {
			ret <- result{nil, err}
			return
		}
		ret <- result{append(make([]T, 0, count), table[address:address+count]...), nil}
	})
	got := <-ret
	return got.values, got.err
}

// writeTable copies values in to the table selected by get, inside the atomic.
func writeTable[T any](atomic Atomic, name string, get func() []T, address int, values []T) error {
	ret := make(chan error, 1)
	atomic.execute(func() {
		table := get()
		if err := serverCheckAddress(name, address, len(values), len(table)); err != nil {
			ret <- err
			return
		}
		copy(table[address:], values)
		ret <- nil
	})
	return <-ret
}

func (s *server) ReadDiscretes(atomic Atomic, address, count int) ([]bool, error) {
	return readTable(atomic, "Discrete", func() []bool { return s.discretes }, address, count)
}

func (s *server) WriteDiscretes(atomic Atomic, address int, values []bool) error {
	return writeTable(atomic, "Discrete", func() []bool { return s.discretes }, address, values)
}

func (s *server) ReadCoils(atomic Atomic, address, count int) ([]bool, error) {
	return readTable(atomic, "Coil", func() []bool { return s.coils }, address, count)
}

func (s *server) WriteCoils(atomic Atomic, address int, values []bool) error {
	return writeTable(atomic, "Coil", func() []bool { return s.coils }, address, values)
}

func (s *server) ReadInputs(atomic Atomic, address, count int) ([]int, error) {
	return readTable(atomic, "Input", func() []int { return s.inputs }, address, count)
}

func (s *server) WriteInputs(atomic Atomic, address int, values []int) error {
	return writeTable(atomic, "Input", func() []int { return s.inputs }, address, values)
}

func (s *server) ReadHoldings(atomic Atomic, address, count int) ([]int, error) {
	return readTable(atomic, "Holding", func() []int { return s.holdings }, address, count)
}

func (s *server) WriteHoldings(atomic Atomic, address int, values []int) error {
	return writeTable(atomic, "Holding", func() []int { return s.holdings }, address, values)
}
