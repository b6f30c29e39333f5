package modbus

import (
	"io"
	"log/slog"
	"net"
	"sync"
)

// TCPServer represents a mechanism for receiving connections from remote clients.
// Note that this is not a Modbus server, but a TCP service, ready to accept connections
// and from each connection create a Modbus instance using NewTCPConn(...)
type TCPServer interface {
	io.Closer
	// Addr is the address the listener is bound to.
	Addr() net.Addr
	// WaitClosed will simply wait until the TCP server is closed.
	WaitClosed()
}

type tcpServer struct {
	tcpl    *net.TCPListener
	servers map[byte]Server
	closed  chan struct{}
	log     *slog.Logger

	mu    sync.Mutex
	conns []Modbus
}

// ServeAllUnits is a convenience function to map a Modbus Server instance on to all unitID addresses.
func ServeAllUnits(server Server) map[int]Server {
	return map[int]Server{0xFF: server}
}

/*
NewTCPServer establishes a listening socket to accept incoming TCP requests. Use ":{port}" style value to bind
to all interfaces on the host, "127.0.0.1:0" for an ephemeral local port.

Any connections to this server will be initialized with the supplied servers serving requests to the matching
UnitID. The 0xff UnitID serves every unit without a dedicated server, see ServeAllUnits.

	tcpserv, _ := modbus.NewTCPServer(":502", modbus.ServeAllUnits(server), logger)
*/
func NewTCPServer(host string, servers map[int]Server, log *slog.Logger) (TCPServer, error) {
	if log == nil {
		log = slog.Default()
	}
	laddr, err := net.ResolveTCPAddr("tcp", host)
	if err != nil {
		return nil, err
	}
	tcpl, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return nil, err
	}
	mservers := make(map[byte]Server)
	for u, s := range servers {
		mservers[bytePanic(u)] = s
	}
	t := &tcpServer{tcpl: tcpl, servers: mservers, closed: make(chan struct{}), log: log}
	go t.monitor()
	return t, nil
}

// Close stops accepting connections and closes every accepted connection.
func (t *tcpServer) Close() error {
	err := t.tcpl.Close()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.conns {
		c.Close()
	}
	t.conns = nil
	return err
}

func (t *tcpServer) Addr() net.Addr {
	return t.tcpl.Addr()
}

func (t *tcpServer) WaitClosed() {
	<-t.closed
}

func (t *tcpServer) monitor() {
	defer close(t.closed)
	for {
		conn, err := t.tcpl.AcceptTCP()
		if err != nil {
			t.log.Debug("modbus listener stopped", "address", t.tcpl.Addr().String(), "error", err)
			return
		}
		m, err := NewTCPConn(conn, t.log)
		if err != nil {
			t.log.Warn("unable to establish modbus connection", "remote", conn.RemoteAddr().String(), "error", err)
			continue
		}
		for u, s := range t.servers {
			m.SetServer(int(u), s)
		}
		t.mu.Lock()
		t.conns = append(t.conns, m)
		t.mu.Unlock()
		go t.forget(m)
	}
}

// forget drops m from the accepted connections once it is shut down.
func (t *tcpServer) forget(m Modbus) {
	<-m.Done()
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.conns {
		if c == m {
			t.conns = append(t.conns[:i], t.conns[i+1:]...)
			return
		}
	}
}

// connections is the number of live accepted connections.
func (t *tcpServer) connections() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}
