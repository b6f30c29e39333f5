/*
Package modbus is the Modbus/TCP transport used by the Modbus process-data driver and by the device simulator.

A Modbus instance is a multiplexer on top of one TCP connection. Clients are obtained per remote unit id, and
servers can be attached per unit id so that the same connection may carry requests in both directions:

	mb, _ := modbus.NewTCP("plc.example.com:502", 5*time.Second, logger)
	client := mb.GetClient(1)
	regs, _ := client.ReadInputs(0, 8, 2*time.Second)

The wire carries 8-bit bytes and 16-bit big-endian words. The public surface is int and bool based; conversion to the
Modbus types panics when a value is out of range, which is always a programming error in the caller.
*/
package modbus

import (
	"errors"
	"log/slog"
	"sync"
)

type rtuFrame []byte

// pdu is the function and data sent on the Modbus.
type pdu struct {
	function byte
	data     rtuFrame
}

// adu is the data packet used to move Modbus data from a client to a specific server, and the response it gives.
type adu struct {
	request bool
	txid    uint16
	unit    byte
	pdu     pdu
}

// Modbus is a half or full duplex mechanism for talking to remote units. Use NewTCP or NewTCPConn to create one.
type Modbus interface {
	// GetClient creates a control instance for communicating with a specific server on the remote side of the Modbus
	GetClient(unitID int) Client
	// SetServer establishes a server instance on the given unitId
	SetServer(unitID int, server Server)
	// Close closes the communication channel under the Modbus protocol
	Close() error
	// Diagnostics returns the current diagnostic counters for the Modbus channel
	Diagnostics() BusDiagnostics
	// Done is closed once the underlying connection is shut down, by Close or by the remote side.
	Done() <-chan struct{}
}

type modbus struct {
	tx     chan adu
	rx     chan adu
	done   <-chan struct{}
	closer func() error
	diag   *busDiagnosticManager
	log    *slog.Logger

	mu      sync.Mutex
	clients map[byte]*client
	servers map[byte]Server
	pending map[uint16]byte
	txid    uint16
}

func newModbus(tx chan adu, rx chan adu, done <-chan struct{}, closer func() error, diag *busDiagnosticManager, log *slog.Logger) Modbus {
	m := &modbus{
		tx:      make(chan adu),
		rx:      rx,
		done:    done,
		closer:  closer,
		diag:    diag,
		log:     log,
		clients: make(map[byte]*client),
		servers: make(map[byte]Server),
		pending: make(map[uint16]byte),
	}
	go m.demuxRX()
	go m.associate(tx)
	return m
}

func (m *modbus) Close() error {
	return m.closer()
}

func (m *modbus) Done() <-chan struct{} {
	return m.done
}

func (m *modbus) Diagnostics() BusDiagnostics {
	return m.diag.getDiagnostics()
}

// GetClient establishes a client that talks to a remote unit.
func (m *modbus) GetClient(unitID int) Client {
	unit := bytePanic(unitID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.clients[unit]; c != nil {
		return c
	}
	c := &client{unit: unit, trans: m, rx: make(chan pdu, 5)}
	m.clients[unit] = c
	return c
}

// SetServer sets a handler for when remote units talk to us.
func (m *modbus) SetServer(unit int, server Server) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[bytePanic(unit)] = server
}

func (m *modbus) nextTxID() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txid++
	return m.txid
}

// associate records outgoing requests as pending and hands every ADU to the
// transport. It ends with the connection.
func (m *modbus) associate(to chan adu) {
	for {
		var a adu
		select {
		case <-m.done:
			return
		case a = <-m.tx:
		}
		if a.request {
			m.mu.Lock()
			m.pending[a.txid] = a.unit
			m.mu.Unlock()
		}
		select {
		case <-m.done:
			return
		case to <- a:
		}
	}
}

func (m *modbus) demuxRX() {
	for a := range m.rx {
		m.mu.Lock()
		_, isResponse := m.pending[a.txid]
		if isResponse {
			delete(m.pending, a.txid)
		}
		c := m.clients[a.unit]
		server := m.servers[a.unit]
		if server == nil {
			server = m.servers[0xff]
		}
		m.mu.Unlock()

		switch {
		case isResponse && c != nil:
			select {
			case c.rx <- a.pdu:
			default:
				m.log.Warn("dropping modbus response, client not reading", "unit", a.unit, "txid", a.txid)
			}
		case server != nil:
			go m.handleServer(server, a)
		case c != nil:
			m.log.Warn("modbus response not expected by client", "unit", a.unit, "txid", a.txid)
		default:
			m.log.Warn("modbus packet for unserved unit", "unit", a.unit)
		}
	}
}

func (m *modbus) handleServer(server Server, req adu) {
	data, err := server.request(m, req.unit, req.pdu.function, req.pdu.data)
	var p pdu
	if err != nil {
		var mError *Error
		if !errors.As(err, &mError) {
			mError = ServerFailureErrorF("%v", err)
		}
		m.log.Debug("modbus request failed", "unit", req.unit, "function", req.pdu.function, "error", mError)
		p = mError.asPDU(req.pdu.function)
	} else {
		p = pdu{req.pdu.function, data}
	}
	select {
	case m.tx <- adu{false, req.txid, req.unit, p}:
	case <-m.done:
		m.log.Debug("modbus response dropped, connection closed", "unit", req.unit, "txid", req.txid)
	}
}
