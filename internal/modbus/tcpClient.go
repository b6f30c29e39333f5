package modbus

import (
	"log/slog"
	"net"
	"time"
)

// NewTCP establishes a connection to a remote IP and port using TCP then returns a Modbus instance on that TCP channel
// using NewTCPConn(connection). The dial is bounded by timeout.
//
// e.g. NewTCP("192.168.1.10:502", 5*time.Second, logger)
func NewTCP(hostport string, timeout time.Duration, log *slog.Logger) (Modbus, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("tcp", hostport)
	if err != nil {
		return nil, err
	}
	return NewTCPConn(conn.(*net.TCPConn), log)
}
