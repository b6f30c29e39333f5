package driver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolfl/hmicore/internal/modbus"
	"github.com/rolfl/hmicore/tag"
)

type device struct {
	server   modbus.Server
	addr     string
	listener modbus.TCPServer
}

func newDevice(t *testing.T) *device {
	t.Helper()
	s := modbus.NewServer()
	s.RegisterInputs(8)
	s.RegisterHoldings(8, nil)
	s.RegisterDiscretes(32)
	s.RegisterCoils(32, nil)
	d := &device{server: s}
	d.listen(t, "127.0.0.1:0")
	return d
}

// listen serves the device tables on addr, which may be a previous address
// of the device to bring it back after a restart.
func (d *device) listen(t *testing.T, addr string) {
	t.Helper()
	l, err := modbus.NewTCPServer(addr, modbus.ServeAllUnits(d.server), nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	d.listener = l
	d.addr = l.Addr().String()
}

func (d *device) preset(t *testing.T, coils []bool, holdings []int) {
	t.Helper()
	a := d.server.StartAtomic()
	defer a.Complete()
	require.NoError(t, d.server.WriteCoils(a, 0, coils))
	require.NoError(t, d.server.WriteHoldings(a, 0, holdings))
}

func (d *device) holdings(t *testing.T, from, count int) []int {
	t.Helper()
	a := d.server.StartAtomic()
	defer a.Complete()
	v, err := d.server.ReadHoldings(a, from, count)
	require.NoError(t, err)
	return v
}

func (d *device) coils(t *testing.T, from, count int) []bool {
	t.Helper()
	a := d.server.StartAtomic()
	defer a.Complete()
	v, err := d.server.ReadCoils(a, from, count)
	require.NoError(t, err)
	return v
}

func modbusConnection(id uint32, addr string, kind string) Connection {
	count := 4
	if kind == KindBits {
		count = 32
	}
	return Connection{
		ID:      id,
		Name:    "plc",
		Type:    TypeModbus,
		Enabled: true,
		Modbus: &ModbusConfig{
			Address: addr,
			Unit:    1,
			Timeout: 2 * time.Second,
			Input:   ModbusArea{Kind: kind, Start: 0, Count: count},
			Output:  ModbusArea{Kind: kind, Start: 0, Count: count},
		},
	}
}

func TestModbusRegisters(t *testing.T) {
	dev := newDevice(t)
	func() {
		a := dev.server.StartAtomic()
		defer a.Complete()
		require.NoError(t, dev.server.WriteInputs(a, 0, []int{0x1234, 0xabcd, 0, 0xffff}))
		require.NoError(t, dev.server.WriteHoldings(a, 3, []int{0x0102}))
	}()

	m, err := NewManager([]Connection{modbusConnection(5, dev.addr, KindRegisters)}, nil)
	require.NoError(t, err)
	defer m.Close()
	u := m.ProcessUpdaters()[0]
	assert.Equal(t, uint32(5), u.ConnectionID)
	require.NoError(t, u.Updater.UpdateProcessData())

	r, w := m.ProcessReader(), m.ProcessWriter()
	require.NoError(t, r.UpdateProcessData())

	v, err := r.GetWord(mustTag(t, 5, tag.Word, "I0"))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v)
	b, err := r.GetByte(mustTag(t, 5, tag.Byte, "I2"))
	require.NoError(t, err)
	assert.Equal(t, uint8(0xcd), b)
	q, err := r.GetWord(mustTag(t, 5, tag.Word, "Q6"))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), q)

	require.NoError(t, w.WriteWord(mustTag(t, 5, tag.Word, "Q2"), 0xbeef))
	require.NoError(t, w.SetBit(mustTag(t, 5, tag.Bit, "Q0.0")))
	assert.Equal(t, []int{0, 0}, dev.holdings(t, 0, 2), "writes wait for the updater")

	require.NoError(t, u.Updater.UpdateProcessData())
	assert.Equal(t, []int{1, 0xbeef, 0, 0x0102}, dev.holdings(t, 0, 4))

	require.NoError(t, r.UpdateProcessData())
	q, err = r.GetWord(mustTag(t, 5, tag.Word, "Q2"))
	require.NoError(t, err)
	assert.Equal(t, uint16(0xbeef), q)

	diag, err := m.Diagnostics(5)
	require.NoError(t, err)
	assert.Positive(t, diag.Messages)
	assert.Zero(t, diag.Reconnects)
}

func TestModbusBits(t *testing.T) {
	dev := newDevice(t)
	func() {
		a := dev.server.StartAtomic()
		defer a.Complete()
		require.NoError(t, dev.server.WriteDiscretes(a, 9, []bool{true}))
	}()

	m, err := NewManager([]Connection{modbusConnection(2, dev.addr, KindBits)}, nil)
	require.NoError(t, err)
	defer m.Close()
	u := m.ProcessUpdaters()[0].Updater
	r, w := m.ProcessReader(), m.ProcessWriter()

	require.NoError(t, w.SetBits([]tag.Tag{
		mustTag(t, 2, tag.Bit, "Q1.2"),
		mustTag(t, 2, tag.Bit, "Q3.7"),
	}))
	require.NoError(t, u.UpdateProcessData())
	coils := dev.coils(t, 0, 32)
	for i, c := range coils {
		assert.Equal(t, i == 10 || i == 31, c, "coil %d", i)
	}

	require.NoError(t, r.UpdateProcessData())
	got, err := r.GetBitsValue([]tag.Tag{
		mustTag(t, 2, tag.Bit, "I1.1"),
		mustTag(t, 2, tag.Bit, "I1.2"),
		mustTag(t, 2, tag.Bit, "Q1.2"),
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, got)

	require.NoError(t, w.InvertBit(mustTag(t, 2, tag.Bit, "Q1.2")))
	require.NoError(t, u.UpdateProcessData())
	assert.False(t, dev.coils(t, 10, 1)[0])
}

func TestModbusAreaRules(t *testing.T) {
	m, err := NewManager([]Connection{modbusConnection(1, "127.0.0.1:1", KindRegisters)}, nil)
	require.NoError(t, err)
	defer m.Close()
	r, w := m.ProcessReader(), m.ProcessWriter()

	inBit := mustTag(t, 1, tag.Bit, "I0.0")
	inByte := mustTag(t, 1, tag.Byte, "I0")
	memBit := mustTag(t, 1, tag.Bit, "M0.0")
	memByte := mustTag(t, 1, tag.Byte, "M0")

	for _, err := range []error{w.SetBit(inBit), w.WriteByte(inByte, 1), w.ResetBit(inBit), w.SetBits([]tag.Tag{inBit})} {
		assert.ErrorIs(t, err, ErrWrongArea)
		assert.Contains(t, err.Error(), "write to input area not allowed")
	}
	for _, err := range []error{w.SetBit(memBit), w.WriteByte(memByte, 1)} {
		assert.ErrorIs(t, err, ErrWrongArea)
		assert.Contains(t, err.Error(), "memory area not allowed")
	}
	_, err = r.GetBitValue(memBit)
	assert.Contains(t, err.Error(), "memory area not allowed")

	// the same operations are fine on shared memory
	shm := newShmManager(t)
	sw := shm.ProcessWriter()
	assert.NoError(t, sw.SetBit(inBit))
	assert.NoError(t, sw.WriteByte(inByte, 1))
	assert.NoError(t, sw.SetBit(memBit))
	assert.NoError(t, sw.WriteByte(memByte, 1))
}

func TestModbusTransportError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	m, err := NewManager([]Connection{modbusConnection(3, addr, KindRegisters)}, nil)
	require.NoError(t, err)
	defer m.Close()

	w := m.ProcessWriter()
	require.NoError(t, w.WriteWord(mustTag(t, 3, tag.Word, "Q0"), 7))

	err = m.ProcessUpdaters()[0].Updater.UpdateProcessData()
	assert.ErrorIs(t, err, ErrTransport)
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, uint32(3), de.Connection)

	mb := m.backends[3].(*modbusBackend)
	assert.Equal(t, []byte{0xff, 0xff}, mb.dirty[:2], "unsent outputs stay dirty")
}

func TestModbusWritesKeepNeighbours(t *testing.T) {
	dev := newDevice(t)
	dev.preset(t, []bool{true, true, true, true, true, true, true, true}, []int{0xabcd, 0x1234})

	m, err := NewManager([]Connection{
		modbusConnection(1, dev.addr, KindBits),
		modbusConnection(2, dev.addr, KindRegisters),
	}, nil)
	require.NoError(t, err)
	defer m.Close()

	// written before anything was read from the device
	w := m.ProcessWriter()
	require.NoError(t, w.ResetBit(mustTag(t, 1, tag.Bit, "Q0.3")))
	require.NoError(t, w.SetBit(mustTag(t, 1, tag.Bit, "Q0.0")))
	require.NoError(t, w.WriteByte(mustTag(t, 2, tag.Byte, "Q0"), 0x11))
	for _, h := range m.ProcessUpdaters() {
		require.NoError(t, h.Updater.UpdateProcessData())
	}

	assert.Equal(t, []bool{true, true, true, false, true, true, true, true}, dev.coils(t, 0, 8))
	assert.Equal(t, []int{0xab11, 0x1234}, dev.holdings(t, 0, 2))

	r := m.ProcessReader()
	require.NoError(t, r.UpdateProcessData())
	got, err := r.GetBitsValue([]tag.Tag{
		mustTag(t, 1, tag.Bit, "Q0.0"),
		mustTag(t, 1, tag.Bit, "Q0.1"),
		mustTag(t, 1, tag.Bit, "Q0.3"),
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false}, got)
	word, err := r.GetWord(mustTag(t, 2, tag.Word, "Q0"))
	require.NoError(t, err)
	assert.Equal(t, uint16(0xab11), word)
}

func TestModbusReconnect(t *testing.T) {
	dev := newDevice(t)
	dev.preset(t, []bool{false}, []int{42})

	m, err := NewManager([]Connection{modbusConnection(4, dev.addr, KindRegisters)}, nil)
	require.NoError(t, err)
	defer m.Close()
	u := m.ProcessUpdaters()[0].Updater
	require.NoError(t, u.UpdateProcessData())

	require.NoError(t, dev.listener.Close())
	err = u.UpdateProcessData()
	assert.ErrorIs(t, err, ErrTransport)

	dev.listen(t, dev.addr)
	require.NoError(t, u.UpdateProcessData())

	r := m.ProcessReader()
	require.NoError(t, r.UpdateProcessData())
	v, err := r.GetWord(mustTag(t, 4, tag.Word, "Q0"))
	require.NoError(t, err)
	assert.Equal(t, uint16(42), v)

	diag, err := m.Diagnostics(4)
	require.NoError(t, err)
	assert.Equal(t, 1, diag.Reconnects)
}

func TestModbusEmptyTags(t *testing.T) {
	m, err := NewManager([]Connection{modbusConnection(1, "127.0.0.1:1", KindBits)}, nil)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.ProcessReader().GetBitsValue(nil)
	assert.ErrorIs(t, err, ErrEmptyTags)
	assert.EqualError(t, err, "Tags array is empty")

	err = m.ProcessWriter().SetBits([]tag.Tag{})
	assert.ErrorIs(t, err, ErrEmptyTags)
	assert.EqualError(t, err, "Tags array is empty")
}

func TestModbusInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		edit func(c *ModbusConfig)
	}{
		{"no address", func(c *ModbusConfig) { c.Address = "" }},
		{"bad unit", func(c *ModbusConfig) { c.Unit = 300 }},
		{"bad kind", func(c *ModbusConfig) { c.Input.Kind = "words" }},
		{"bad range", func(c *ModbusConfig) { c.Output.Start = 65535 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := modbusConnection(1, "127.0.0.1:502", KindRegisters)
			tt.edit(conn.Modbus)
			_, err := NewManager([]Connection{conn}, nil)
			assert.ErrorIs(t, err, ErrInvalidConnection)
		})
	}
}

func TestDirtyRuns(t *testing.T) {
	points := []bool{true, true, false, true, true, true, true, false, true}
	assert.Equal(t, []run{{0, 2}, {3, 3}, {6, 1}, {8, 1}}, dirtyRuns(points, 3))
	assert.Nil(t, dirtyRuns(make([]bool, 4), 3))
}
