package modbus

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

type tcp struct {
	name string
	conn *net.TCPConn
	log  *slog.Logger
	// Write to this channel to queue frames to send
	toTX chan adu
	// Frames off the wire will be readable from this channel
	toDemux chan adu
	// closed is closed once the connection is shut down
	closed    chan struct{}
	closeOnce sync.Once
	diag      *busDiagnosticManager
}

// NewTCPConn establishes a Modbus transceiver based on a TCP connection
func NewTCPConn(conn *net.TCPConn, log *slog.Logger) (Modbus, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := conn.SetKeepAlivePeriod(time.Second * 60); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.SetKeepAlive(true); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.SetNoDelay(true); err != nil {
		conn.Close()
		return nil, err
	}

	t := &tcp{
		name:    conn.RemoteAddr().String(),
		conn:    conn,
		toTX:    make(chan adu),
		toDemux: make(chan adu),
		closed:  make(chan struct{}),
		diag:    newBusDiagnosticManager(),
	}
	t.log = log.With("remote", t.name)

	go t.wireReader()
	go t.wireWriter()

	return newModbus(t.toTX, t.toDemux, t.closed, t.close, t.diag, t.log), nil
}

// close shuts down all communication over the given wires
func (t *tcp) close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.conn.Close()
	})
	return err
}

// wireReader takes data off the wire, and submits complete frames to the demux channel.
func (t *tcp) wireReader() {
	defer close(t.toDemux)
	noDeadline := time.Time{}
	buffer := make([]uint8, 300)

	if err := t.conn.SetReadDeadline(noDeadline); err != nil {
		t.log.Debug("shutting down modbus reader", "error", err)
		t.close()
		return
	}

	// Nearly always a TCP segment carries exactly one complete Modbus frame.
	got := 0
	expect := 7
	for {
		if got < expect {
			// there may be a deadline set on this read if there's more data needed to read a frame.
			n, err := t.conn.Read(buffer[got:])
			if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
				t.log.Debug("shutting down modbus reader", "error", err)
				t.close()
				return
			}
			if err := t.conn.SetReadDeadline(noDeadline); err != nil {
				t.log.Debug("shutting down modbus reader", "error", err)
				t.close()
				return
			}
			if err != nil {
				// partial frame timed out, drop it
				t.diag.commError()
				got = 0
				expect = 7
				continue
			}
			got += n
		}
		ok := true
		if got >= 7 {
			if ck := getWord(buffer, 2); ck != 0 {
				t.log.Warn("modbus protocol identifier must be 0", "protocol", ck)
				ok = false
				t.diag.commError()
			} else if pduszp := int(getWord(buffer, 4)) - 1; pduszp < 1 || pduszp > 253 {
				t.log.Warn("modbus PDU size out of range", "size", pduszp)
				ok = false
				t.diag.overrun()
			} else {
				expect = pduszp + 7
			}
		}
		if !ok {
			got = 0
			expect = 7
			continue
		}
		if got >= expect {
			frame := make([]uint8, expect)
			copy(frame, buffer)
			f := decodeTCPFrame(frame)
			t.diag.message(f.unit == 0)
			select {
			case t.toDemux <- f:
			case <-t.closed:
				return
			}
			// Copy any data to the beginning of the next frame
			copy(buffer, buffer[expect:got])
			got = got - expect
			expect = 7
		} else {
			// for the remaining data, we have a read timeout.
			t.conn.SetReadDeadline(time.Now().Add(time.Second))
		}
	}
}

// wireWriter takes queued ADUs and writes them as frames on the connection.
func (t *tcp) wireWriter() {
	for {
		select {
		case <-t.closed:
			return
		case ta := <-t.toTX:
			if !ta.request {
				t.diag.response(ta.pdu)
			}
			f := buildTCPFrame(ta)
			for len(f) > 0 {
				n, err := t.conn.Write(f)
				if err != nil {
					t.log.Debug("unable to send modbus frame", "error", err)
					break
				}
				f = f[n:]
			}
		}
	}
}

func decodeTCPFrame(tdata []byte) adu {
	// to keep things similar to RTU framing, we slice the data at pos 6, the unit address....
	p := pdu{tdata[7], tdata[8:]}
	tid := getWord(tdata, 0)
	return adu{false, tid, tdata[6], p}
}

func buildTCPFrame(td adu) []byte {
	pdu := td.pdu
	payload := 1 + len(pdu.data)
	data := make([]uint8, 7+payload) // MBAP header, function and data
	setWord(data, 0, td.txid)
	setWord(data, 2, 0) // protocol identifier - always 0 for Modbus
	setWord(data, 4, uint16(1+payload))
	data[6] = td.unit
	data[7] = pdu.function
	copy(data[8:], pdu.data)
	return data
}
