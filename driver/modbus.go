package driver

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rolfl/hmicore/internal/modbus"
	"github.com/rolfl/hmicore/tag"
)

// ModbusArea kinds. An empty kind means registers.
const (
	KindRegisters = "registers"
	KindBits      = "bits"
)

// Per-request limits of the Modbus application protocol.
const (
	maxReadRegisters  = 125
	maxWriteRegisters = 123
	maxReadBits       = 2000
	maxWriteBits      = 1968
)

const defaultModbusTimeout = time.Second

// ModbusArea maps one process image area onto a range of Modbus points.
// Registers take two bytes each, low byte first; bits are packed eight
// to a byte, lowest address in bit 0.
type ModbusArea struct {
	Kind  string `yaml:"kind"`
	Start int    `yaml:"start"`
	Count int    `yaml:"count"`
}

func (a ModbusArea) bytes() int {
	if a.Kind == KindBits {
		return (a.Count + 7) / 8
	}
	return a.Count * 2
}

func (a ModbusArea) validate(name string) error {
	switch a.Kind {
	case "", KindRegisters, KindBits:
	default:
		return fmt.Errorf("%s area: unknown kind %q", name, a.Kind)
	}
	if a.Start < 0 || a.Count < 0 || a.Start+a.Count > 0x10000 {
		return fmt.Errorf("%s area: range %d+%d outside 0..65535", name, a.Start, a.Count)
	}
	return nil
}

// ModbusConfig describes a Modbus/TCP device. INPUT is backed by input
// registers or discrete inputs, OUTPUT by holding registers or coils.
type ModbusConfig struct {
	Address string        `yaml:"address"`
	Unit    int           `yaml:"unit"`
	Timeout time.Duration `yaml:"timeout"`
	Input   ModbusArea    `yaml:"input"`
	Output  ModbusArea    `yaml:"output"`
}

// BusDiagnostics are the Modbus counters of one connection, summed over
// every TCP session it has used.
type BusDiagnostics struct {
	Messages   int
	Broadcasts int
	CommErrors int
	Exceptions int
	Overruns   int
	// Reconnects counts sessions dropped after a transport failure.
	Reconnects int
}

func (d BusDiagnostics) add(b modbus.BusDiagnostics) BusDiagnostics {
	d.Messages += b.Messages
	d.Broadcasts += b.Broadcasts
	d.CommErrors += b.CommErrors
	d.Exceptions += b.Exceptions
	d.Overruns += b.Overruns
	return d
}

type modbusBackend struct {
	id  uint32
	cfg ModbusConfig
	log *slog.Logger

	// tick serializes updater cycles, the only users of the bus.
	tick sync.Mutex

	mu   sync.Mutex
	snap processImage

	// dirty masks the output bits written locally and not yet sent.
	dirty  []byte
	bus    modbus.Modbus
	client modbus.Client
	diag   BusDiagnostics
	closed bool
}

func newModbusBackend(conn Connection, log *slog.Logger) (*modbusBackend, error) {
	if conn.Modbus == nil {
		return nil, configErrorf(conn, ErrInvalidConnection, "missing modbus section")
	}
	cfg := *conn.Modbus
	if cfg.Address == "" {
		return nil, configErrorf(conn, ErrInvalidConnection, "missing modbus address")
	}
	if cfg.Unit < 0 || cfg.Unit > 255 {
		return nil, configErrorf(conn, ErrInvalidConnection, "unit id %d outside 0..255", cfg.Unit)
	}
	if err := cfg.Input.validate("input"); err != nil {
		return nil, configErrorf(conn, ErrInvalidConnection, "%v", err)
	}
	if err := cfg.Output.validate("output"); err != nil {
		return nil, configErrorf(conn, ErrInvalidConnection, "%v", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultModbusTimeout
	}
	outputs := cfg.Output.bytes()
	return &modbusBackend{
		id:    conn.ID,
		cfg:   cfg,
		log:   log,
		snap:  newProcessImage(cfg.Input.bytes(), outputs, 0),
		dirty: make([]byte, outputs),
	}, nil
}

func (b *modbusBackend) Reader() BackendReader {
	return newImageReader(b)
}

func (b *modbusBackend) Writer() BackendWriter {
	return imageWriter{b}
}

func (b *modbusBackend) Updater() BackendUpdater {
	return modbusUpdater{b}
}

func (b *modbusBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return b.dropLocked()
}

// Diagnostics returns the bus counters including those of the live session.
func (b *modbusBackend) Diagnostics() BusDiagnostics {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.diag
	if b.bus != nil {
		d = d.add(b.bus.Diagnostics())
	}
	return d
}

func (b *modbusBackend) lengths() [3]int {
	return b.snap.lengths()
}

func (b *modbusBackend) access() access {
	return modbusAccess
}

func (b *modbusBackend) snapshot(dst processImage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dst.copyFrom(b.snap)
}

// modify changes the snapshot only and marks the written output bits dirty;
// the next updater cycle sends them to the device.
func (b *modbusBackend) modify(addrs []tag.Address, size uint, bits bool, fn func(img processImage)) error {
	if err := checkAll(modbusAccess, b.lengths(), addrs, size); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.snap)
	for _, a := range addrs {
		if bits {
			b.dirty[a.Byte] |= 1 << a.Bit
			continue
		}
		for i := a.Byte; i < a.Byte+size; i++ {
			b.dirty[i] = 0xFF
		}
	}
	return nil
}

// merge returns device with the dirty bits taken from local.
func merge(device, local, dirty byte) byte {
	return device&^dirty | local&dirty
}

// connect returns the client of the current session, dialing a new one
// when there is none.
func (b *modbusBackend) connect() (modbus.Client, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errors.New("connection closed")
	}
	if b.client != nil {
		c := b.client
		b.mu.Unlock()
		return c, nil
	}
	b.mu.Unlock()

	bus, err := modbus.NewTCP(b.cfg.Address, b.cfg.Timeout, b.log)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		bus.Close()
		return nil, errors.New("connection closed")
	}
	b.bus = bus
	b.client = bus.GetClient(b.cfg.Unit)
	b.log.Info("modbus connected", "address", b.cfg.Address, "unit", b.cfg.Unit)
	return b.client, nil
}

// drop closes the current session so that the next cycle dials again.
func (b *modbusBackend) drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bus != nil {
		b.diag.Reconnects++
	}
	b.dropLocked()
}

func (b *modbusBackend) dropLocked() error {
	if b.bus == nil {
		return nil
	}
	b.diag = b.diag.add(b.bus.Diagnostics())
	err := b.bus.Close()
	b.bus = nil
	b.client = nil
	return err
}

func (b *modbusBackend) transportError(op string, err error) error {
	var exc *modbus.Error
	if !errors.As(err, &exc) {
		// Anything but a Modbus exception leaves the session in an unknown state.
		b.drop()
	}
	return &Error{Code: ErrTransport, Connection: b.id, Msg: fmt.Sprintf("modbus %s %s", b.cfg.Address, op), Err: err}
}

// update runs one cycle: flush dirty outputs, then read both areas.
func (b *modbusBackend) update() error {
	b.tick.Lock()
	defer b.tick.Unlock()

	c, err := b.connect()
	if err != nil {
		return &Error{Code: ErrTransport, Connection: b.id, Msg: fmt.Sprintf("modbus %s connect", b.cfg.Address), Err: err}
	}
	if err := b.flush(c); err != nil {
		return b.transportError("write outputs", err)
	}
	in, err := b.readArea(c, b.cfg.Input, true)
	if err != nil {
		return b.transportError("read inputs", err)
	}
	out, err := b.readArea(c, b.cfg.Output, false)
	if err != nil {
		return b.transportError("read outputs", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.snap.areas[tag.Input], in)
	local := b.snap.areas[tag.Output]
	for i, v := range out {
		// bits written while the read was in flight keep the newer value
		local[i] = merge(v, local[i], b.dirty[i])
	}
	return nil
}

func (b *modbusBackend) pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.dirty {
		if d != 0 {
			return true
		}
	}
	return false
}

// flush sends the dirty output bits to the device. The output area is read
// first and only the dirty bits of it are replaced, so points that share a
// register or a byte with a written one keep the device's value. On failure
// the bits are marked dirty again.
func (b *modbusBackend) flush(c modbus.Client) error {
	if !b.pending() {
		return nil
	}
	current, err := b.readArea(c, b.cfg.Output, false)
	if err != nil {
		return err
	}

	b.mu.Lock()
	mask := append([]byte(nil), b.dirty...)
	image := make([]byte, len(current))
	for i, v := range current {
		image[i] = merge(v, b.snap.areas[tag.Output][i], mask[i])
		b.dirty[i] = 0
	}
	b.mu.Unlock()

	err = b.writeArea(c, mask, image)
	if err != nil {
		b.mu.Lock()
		for i, d := range mask {
			b.dirty[i] |= d
		}
		b.mu.Unlock()
	}
	return err
}

func (b *modbusBackend) writeArea(c modbus.Client, mask []byte, image []byte) error {
	area := b.cfg.Output
	if area.Kind == KindBits {
		points := make([]bool, area.Count)
		for i := range points {
			points[i] = mask[i/8]&(1<<(i%8)) != 0
		}
		for _, r := range dirtyRuns(points, maxWriteBits) {
			values := make([]bool, r.count)
			for i := range values {
				p := r.from + i
				values[i] = image[p/8]&(1<<(p%8)) != 0
			}
			if _, err := c.WriteMultipleCoils(area.Start+r.from, values, b.cfg.Timeout); err != nil {
				return err
			}
		}
		return nil
	}
	points := make([]bool, area.Count)
	for i := range points {
		points[i] = mask[2*i]|mask[2*i+1] != 0
	}
	for _, r := range dirtyRuns(points, maxWriteRegisters) {
		values := make([]int, r.count)
		for i := range values {
			p := r.from + i
			values[i] = int(image[2*p]) | int(image[2*p+1])<<8
		}
		if _, err := c.WriteMultipleHoldings(area.Start+r.from, values, b.cfg.Timeout); err != nil {
			return err
		}
	}
	return nil
}

type run struct {
	from, count int
}

// dirtyRuns groups consecutive true points into runs of at most limit points.
func dirtyRuns(points []bool, limit int) []run {
	var runs []run
	for i := 0; i < len(points); {
		if !points[i] {
			i++
			continue
		}
		r := run{from: i}
		for i < len(points) && points[i] && r.count < limit {
			r.count++
			i++
		}
		runs = append(runs, r)
	}
	return runs
}

// readArea reads the whole area in protocol-sized chunks and returns its
// byte image. input selects input registers or discrete inputs.
func (b *modbusBackend) readArea(c modbus.Client, area ModbusArea, input bool) ([]byte, error) {
	buf := make([]byte, area.bytes())
	if area.Kind == KindBits {
		for from := 0; from < area.Count; from += maxReadBits {
			n := min(maxReadBits, area.Count-from)
			var bits []bool
			if input {
				res, err := c.ReadDiscretes(area.Start+from, n, b.cfg.Timeout)
				if err != nil {
					return nil, err
				}
				bits = res.Discretes
			} else {
				res, err := c.ReadCoils(area.Start+from, n, b.cfg.Timeout)
				if err != nil {
					return nil, err
				}
				bits = res.Coils
			}
			for i, v := range bits {
				if v {
					p := from + i
					buf[p/8] |= 1 << (p % 8)
				}
			}
		}
		return buf, nil
	}
	for from := 0; from < area.Count; from += maxReadRegisters {
		n := min(maxReadRegisters, area.Count-from)
		var regs []int
		if input {
			res, err := c.ReadInputs(area.Start+from, n, b.cfg.Timeout)
			if err != nil {
				return nil, err
			}
			regs = res.Values
		} else {
			res, err := c.ReadHoldings(area.Start+from, n, b.cfg.Timeout)
			if err != nil {
				return nil, err
			}
			regs = res.Values
		}
		for i, v := range regs {
			p := 2 * (from + i)
			buf[p] = byte(v)
			buf[p+1] = byte(v >> 8)
		}
	}
	return buf, nil
}

type modbusUpdater struct {
	b *modbusBackend
}

func (u modbusUpdater) UpdateProcessData() error {
	return u.b.update()
}
