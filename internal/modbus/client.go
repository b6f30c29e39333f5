package modbus

import (
	"fmt"
	"time"
)

type client struct {
	unit  byte
	trans *modbus
	rx    chan pdu
}

// Client is able to drive a single modbus server (Send functions and get responses)
type Client interface {
	// UnitID retrieves the remote unitID we are communicating with
	UnitID() int

	// ReadDiscretes reads read-only discrete values from the remote unit
	ReadDiscretes(from int, count int, tout time.Duration) (*DiscreteValues, error)

	// ReadCoils reads coil values from the remote unit
	ReadCoils(from int, count int, tout time.Duration) (*CoilValues, error)
	// WriteSingleCoil writes a single coil values to the remote unit
	WriteSingleCoil(address int, value bool, tout time.Duration) (*CoilWrite, error)
	// WriteMultipleCoils writes multiple coil values to the remote unit
	WriteMultipleCoils(address int, values []bool, tout time.Duration) (*CoilsWrite, error)

	// ReadInputs reads multiple input values from the remote unit
	ReadInputs(from int, count int, tout time.Duration) (*InputValues, error)

	// ReadHoldings reads multiple holding register values from a remote unit
	ReadHoldings(from int, count int, tout time.Duration) (*HoldingValues, error)
	// WriteSingleHolding writes a single holding register to the remote unit
	WriteSingleHolding(from int, value int, tout time.Duration) (*HoldingWrite, error)
	// WriteMultipleHoldings writes multiple holding registers to the remote unit
	WriteMultipleHoldings(address int, values []int, tout time.Duration) (*HoldingsWrite, error)
}

func (c *client) UnitID() int {
	return int(c.unit)
}

type readDecoder func(*dataReader) error

// query is a reusable function that all client-operations use to coordinate the communication
// with the remote server.
func (c *client) query(tout time.Duration, tx pdu, callback readDecoder) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		timer := time.NewTimer(tout)
		defer timer.Stop()
		a := adu{true, c.trans.nextTxID(), c.unit, tx}
		select {
		case <-timer.C:
			errc <- fmt.Errorf("timeout exceeded waiting to send: %v", tout)
			return
		case <-c.trans.done:
			errc <- ErrClosed
			return
		case c.trans.tx <- a:
		}
		select {
		case <-timer.C:
			errc <- fmt.Errorf("timeout exceeded waiting to receive: %v", tout)
		case <-c.trans.done:
			errc <- ErrClosed
		case rx := <-c.rx:
			if rx.function >= 128 {
				ec := byte(0)
				if len(rx.data) > 0 {
					ec = rx.data[0]
				}
				errc <- exceptionError(ec)
				return
			}
			if rx.function != tx.function {
				errc <- fmt.Errorf("expected response to function 0x%02x, not 0x%02x", tx.function, rx.function)
				return
			}
			reader := getReader(rx.data)
			err := callback(&reader)
			if err == nil {
				err = reader.remaining()
			}
			errc <- err
		}
	}()
	return errc
}
