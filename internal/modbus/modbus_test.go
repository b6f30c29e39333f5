package modbus

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tout = 2 * time.Second

func serve(t *testing.T, s Server) Client {
	t.Helper()
	l, err := NewTCPServer("127.0.0.1:0", ServeAllUnits(s), nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	mb, err := NewTCP(l.Addr().String(), tout, nil)
	require.NoError(t, err)
	t.Cleanup(func() { mb.Close() })
	return mb.GetClient(1)
}

func TestRegisters(t *testing.T) {
	s := NewServer()
	s.RegisterInputs(10)
	s.RegisterHoldings(10, nil)
	c := serve(t, s)

	func() {
		a := s.StartAtomic()
		defer a.Complete()
		require.NoError(t, s.WriteInputs(a, 2, []int{1, 0xffff, 300}))
	}()

	in, err := c.ReadInputs(1, 4, tout)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0xffff, 300}, in.Values)

	_, err = c.WriteMultipleHoldings(5, []int{7, 8, 9}, tout)
	require.NoError(t, err)
	one, err := c.WriteSingleHolding(0, 0x1234, tout)
	require.NoError(t, err)
	assert.Equal(t, 0x1234, one.Value)

	h, err := c.ReadHoldings(0, 10, tout)
	require.NoError(t, err)
	assert.Equal(t, []int{0x1234, 0, 0, 0, 0, 7, 8, 9, 0, 0}, h.Values)
}

func TestBits(t *testing.T) {
	s := NewServer()
	s.RegisterDiscretes(20)
	s.RegisterCoils(20, nil)
	c := serve(t, s)

	func() {
		a := s.StartAtomic()
		defer a.Complete()
		require.NoError(t, s.WriteDiscretes(a, 9, []bool{true, false, true}))
	}()
	d, err := c.ReadDiscretes(8, 5, tout)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false, true, false}, d.Discretes)

	_, err = c.WriteMultipleCoils(3, []bool{true, true, false, true, false, false, false, false, true}, tout)
	require.NoError(t, err)
	single, err := c.WriteSingleCoil(19, true, tout)
	require.NoError(t, err)
	assert.True(t, single.Value)

	coils, err := c.ReadCoils(0, 20, tout)
	require.NoError(t, err)
	want := make([]bool, 20)
	want[3], want[4], want[6], want[11], want[19] = true, true, true, true, true
	assert.Equal(t, want, coils.Coils)
}

func TestWriteHandler(t *testing.T) {
	s := NewServer()
	var gotAddr int
	var gotCurrent []int
	s.RegisterHoldings(4, func(_ Server, _ Atomic, address int, values []int, current []int) ([]int, error) {
		gotAddr = address
		gotCurrent = current
		clamped := make([]int, len(values))
		for i, v := range values {
			clamped[i] = min(v, 100)
		}
		return clamped, nil
	})
	c := serve(t, s)

	_, err := c.WriteMultipleHoldings(1, []int{50, 500}, tout)
	require.NoError(t, err)
	assert.Equal(t, 1, gotAddr)
	assert.Equal(t, []int{0, 0}, gotCurrent)

	h, err := c.ReadHoldings(0, 4, tout)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 50, 100, 0}, h.Values)
}

func TestExceptions(t *testing.T) {
	s := NewServer()
	s.RegisterInputs(4)
	s.RegisterCoils(4, func(Server, Atomic, int, []bool, []bool) ([]bool, error) {
		return nil, ServerFailureErrorF("coils are locked")
	})
	c := serve(t, s)

	_, err := c.ReadInputs(2, 4, tout)
	var mbe *Error
	require.True(t, errors.As(err, &mbe), "got %v", err)
	assert.Equal(t, uint8(2), mbe.Code())

	_, err = c.ReadHoldings(0, 1, tout)
	require.True(t, errors.As(err, &mbe), "got %v", err)
	assert.Equal(t, uint8(2), mbe.Code())

	_, err = c.WriteSingleCoil(0, true, tout)
	require.True(t, errors.As(err, &mbe), "got %v", err)
	assert.Equal(t, uint8(4), mbe.Code())
}

func TestDiagnostics(t *testing.T) {
	s := NewServer()
	s.RegisterInputs(1)
	l, err := NewTCPServer("127.0.0.1:0", ServeAllUnits(s), nil)
	require.NoError(t, err)
	defer l.Close()
	mb, err := NewTCP(l.Addr().String(), tout, nil)
	require.NoError(t, err)
	defer mb.Close()

	c := mb.GetClient(1)
	_, err = c.ReadInputs(0, 1, tout)
	require.NoError(t, err)
	_, err = c.ReadInputs(0, 2, tout)
	require.Error(t, err)

	d := mb.Diagnostics()
	assert.Equal(t, 2, d.Messages)
	assert.Zero(t, d.CommErrors)
}

func TestClosedSessionsRelease(t *testing.T) {
	s := NewServer()
	s.RegisterHoldings(2, nil)
	l, err := NewTCPServer("127.0.0.1:0", ServeAllUnits(s), nil)
	require.NoError(t, err)
	defer l.Close()
	before := runtime.NumGoroutine()

	var last Modbus
	for i := 0; i < 20; i++ {
		mb, err := NewTCP(l.Addr().String(), tout, nil)
		require.NoError(t, err)
		_, err = mb.GetClient(1).ReadHoldings(0, 1, tout)
		require.NoError(t, err)
		require.NoError(t, mb.Close())
		<-mb.Done()
		last = mb
	}

	_, err = last.GetClient(1).ReadHoldings(0, 1, tout)
	assert.ErrorIs(t, err, ErrClosed)

	srv := l.(*tcpServer)
	assert.Eventually(t, func() bool {
		return srv.connections() == 0 && runtime.NumGoroutine() <= before
	}, 5*time.Second, 10*time.Millisecond, "goroutines %d, before %d", runtime.NumGoroutine(), before)
}

func TestTCPFrame(t *testing.T) {
	a := adu{txid: 0x0102, unit: 7, pdu: pdu{0x03, rtuFrame{0x00, 0x10, 0x00, 0x02}}}
	frame := buildTCPFrame(a)
	assert.Equal(t, []byte{0x01, 0x02, 0x00, 0x00, 0x00, 0x06, 0x07, 0x03, 0x00, 0x10, 0x00, 0x02}, frame)

	back := decodeTCPFrame(frame)
	assert.Equal(t, a.txid, back.txid)
	assert.Equal(t, a.unit, back.unit)
	assert.Equal(t, a.pdu.function, back.pdu.function)
	assert.Equal(t, []byte(a.pdu.data), []byte(back.pdu.data))
}

func TestCodec(t *testing.T) {
	b := dataBuilder{}
	b.word(0x1234)
	b.nbits(true, false, true, true, false, false, false, false, true)
	assert.Equal(t, []byte{0x12, 0x34, 0x00, 0x09, 0x02, 0x0d, 0x01}, b.payload())

	r := getReader(b.payload())
	w, err := r.word()
	require.NoError(t, err)
	assert.Equal(t, 0x1234, w)
	n, err := r.word()
	require.NoError(t, err)
	bits, err := r.bits(n)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, true, false, false, false, false, true}, bits)
	assert.NoError(t, r.remaining())

	_, err = r.byte()
	assert.Error(t, err)
	assert.Panics(t, func() { b.word(0x10000) })
}
