package modbus

/*
Atomic allows locked access to the server's internal cache of coil, discrete, input and holding values.
An Atomic instance is created by calling StartAtomic() on the Server.

Do not Complete an atomic unless you started it. It's normal to `defer a.Complete()` immediately after starting it

	atomic := server.StartAtomic()
	defer atomic.Complete()
*/
type Atomic interface {
	// Complete indicates that all operations in the atomic set are queued. It returns when all operations have completed.
	Complete()

	execute(func())
}

// UpdateCoils is called when coils are written by a remote client. It returns the values to store.
// Do not Complete the atomic
type UpdateCoils func(server Server, atomic Atomic, address int, values []bool, current []bool) ([]bool, error)

// UpdateHoldings is called when holding registers are written by a remote client. It returns the values to store.
// Do not Complete the atomic
type UpdateHoldings func(server Server, atomic Atomic, address int, values []int, current []int) ([]int, error)

// Server represents a system that can handle an incoming request from a remote client
type Server interface {
	// StartAtomic grants access to the memory model of the Server (coils, discretes, inputs, holdings).
	// Only 1 transaction is active at a time, and is active until it is Completed.
	StartAtomic() Atomic

	// RegisterDiscretes indicates how many discretes to make available in the server memory model
	RegisterDiscretes(count int)
	// ReadDiscretes performs a discrete read operation as part of an existing atomic operation
	ReadDiscretes(atomic Atomic, address int, count int) ([]bool, error)
	// WriteDiscretes performs a discrete write operation as part of an existing atomic operation
	WriteDiscretes(atomic Atomic, address int, values []bool) error

	// RegisterCoils indicates how many coils to make available, and which function to call
	// when a remote client writes coils. A nil handler stores the written values unchanged.
	RegisterCoils(count int, handler UpdateCoils)
	// ReadCoils performs a coil read operation as part of an existing atomic operation
	ReadCoils(atomic Atomic, address int, count int) ([]bool, error)
	// WriteCoils performs a coil write operation as part of an existing atomic operation
	WriteCoils(atomic Atomic, address int, values []bool) error

	// RegisterInputs indicates how many input registers to make available in the server memory model
	RegisterInputs(count int)
	// ReadInputs performs an input read operation as part of an existing atomic operation
	ReadInputs(atomic Atomic, address int, count int) ([]int, error)
	// WriteInputs performs an input write operation as part of an existing atomic operation
	WriteInputs(atomic Atomic, address int, values []int) error

	// RegisterHoldings indicates how many holding registers to make available, and which function to call
	// when a remote client writes them. A nil handler stores the written values unchanged.
	RegisterHoldings(count int, handler UpdateHoldings)
	// ReadHoldings performs a holding register read operation as part of an existing atomic operation
	ReadHoldings(atomic Atomic, address int, count int) ([]int, error)
	// WriteHoldings performs a holding register write operation as part of an existing atomic operation
	WriteHoldings(atomic Atomic, address int, values []int) error

	// request is called from the modbus layer and instructs the server to handle a request.
	request(bus Modbus, unit byte, function byte, data []byte) ([]byte, error)
}

type requestHandler func(*dataReader, *dataBuilder) error

type requestHandlerMeta struct {
	minSize int
	handler requestHandler
}

type server struct {
	rhandlers      map[byte]requestHandlerMeta
	discretes      []bool
	coils          []bool
	inputs         []int
	holdings       []int
	atomics        chan Atomic
	updateCoils    UpdateCoils
	updateHoldings UpdateHoldings
}

// NewServer creates a Server instance that can be bound to a Modbus instance using modbus.SetServer(...).
func NewServer() Server {
	s := &server{}
	s.rhandlers = make(map[byte]requestHandlerMeta)
	s.atomics = make(chan Atomic)

	s.addRequestHandler(0x02, 4, s.x02ReadDiscretes)
	s.addRequestHandler(0x01, 4, s.x01ReadCoils)
	s.addRequestHandler(0x05, 4, s.x05WriteSingleCoil)
	s.addRequestHandler(0x0f, 5, s.x0fWriteCoils)
	s.addRequestHandler(0x04, 4, s.x04ReadInputRegisters)
	s.addRequestHandler(0x03, 4, s.x03ReadHoldingRegisters)
	s.addRequestHandler(0x06, 4, s.x06WriteSingleHoldingRegister)
	s.addRequestHandler(0x10, 5, s.x10WriteHoldingRegisters)

	go s.manageCache()

	return s
}

func (s *server) addRequestHandler(function byte, minsize int, handler requestHandler) {
	s.rhandlers[function] = requestHandlerMeta{minsize, handler}
}

func (s *server) RegisterDiscretes(count int) {
	atomic := s.StartAtomic()
	defer atomic.Complete()
	atomic.execute(func() { s.discretes = grow(s.discretes, count) })
}

func (s *server) RegisterCoils(count int, handler UpdateCoils) {
	atomic := s.StartAtomic()
	defer atomic.Complete()
	atomic.execute(func() {
		s.coils = grow(s.coils, count)
		s.updateCoils = handler
	})
}

func (s *server) RegisterInputs(count int) {
	atomic := s.StartAtomic()
	defer atomic.Complete()
	atomic.execute(func() { s.inputs = grow(s.inputs, count) })
}

func (s *server) RegisterHoldings(count int, handler UpdateHoldings) {
	atomic := s.StartAtomic()
	defer atomic.Complete()
	atomic.execute(func() {
		s.holdings = grow(s.holdings, count)
		s.updateHoldings = handler
	})
}

func (s *server) request(mb Modbus, unit byte, function byte, request []byte) ([]byte, error) {
	h, ok := s.rhandlers[function]
	if !ok {
		return nil, IllegalFunctionErrorF("function code 0x%02x not implemented", function)
	}

	req := getReader(request)
	res := dataBuilder{}

	if err := req.canRead(h.minSize); err != nil {
		return nil, IllegalValueErrorF("%v", err)
	}
	if err := h.handler(&req, &res); err != nil {
		return nil, err
	}
	if err := req.remaining(); err != nil {
		return nil, IllegalValueErrorF("%v", err)
	}
	return res.payload(), nil
}

func checkCount(name string, count, max int) error {
	if count < 1 || count > max {
		return IllegalValueErrorF("%v: count %v not in range 1..%v", name, count, max)
	}
	return nil
}

func errCount(name string, want, got int) error {
	return IllegalValueErrorF("%v: expected %v bytes, but got %v", name, want, got)
}
