package modbus

/*
This file contains the storage for keeping track of Modbus diagnostic counts.
*/

import "sync"

// BusDiagnostics are values specific to the Modbus that summarize the bus status
type BusDiagnostics struct {
	// Messages represents the number of valid messages received on this Modbus
	Messages int
	// Broadcasts is the subset of Messages addressed to unit 0
	Broadcasts int
	// CommErrors represents the number of failed receptions (bad header, truncated frame)
	CommErrors int
	// Exceptions represents the number of exception responses this Modbus instance has sent
	Exceptions int
	// Overruns represents the number of incoming frames that were larger than the max Modbus payload size
	Overruns int
}

type busDiagnosticManager struct {
	mu          sync.Mutex
	diagnostics BusDiagnostics
}

func newBusDiagnosticManager() *busDiagnosticManager {
	return &busDiagnosticManager{}
}

func (bdm *busDiagnosticManager) getDiagnostics() BusDiagnostics {
	bdm.mu.Lock()
	defer bdm.mu.Unlock()
	return bdm.diagnostics
}

func (bdm *busDiagnosticManager) message(broadcast bool) {
	bdm.mu.Lock()
	defer bdm.mu.Unlock()
	bdm.diagnostics.Messages++
	if broadcast {
		bdm.diagnostics.Broadcasts++
	}
}

func (bdm *busDiagnosticManager) response(p pdu) {
	if p.function < 128 {
		return
	}
	bdm.mu.Lock()
	defer bdm.mu.Unlock()
	bdm.diagnostics.Exceptions++
}

func (bdm *busDiagnosticManager) commError() {
	bdm.mu.Lock()
	defer bdm.mu.Unlock()
	bdm.diagnostics.CommErrors++
}

func (bdm *busDiagnosticManager) overrun() {
	bdm.mu.Lock()
	defer bdm.mu.Unlock()
	bdm.diagnostics.Overruns++
}
