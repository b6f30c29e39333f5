// Package cycletime measures the duration of repeated work cycles and keeps
// the running minimum, maximum and most recent values.
package cycletime

import (
	"errors"
	"time"
)

// Timer misuse errors.
var (
	ErrAlreadyStarted = errors.New("cycletime: timer already started")
	ErrNotStarted     = errors.New("cycletime: timer not started")
)

// Data is the running summary of measured cycles. All fields are zero
// until the first cycle completes.
type Data struct {
	Min     time.Duration
	Max     time.Duration
	Current time.Duration
}

// add folds one measured cycle into d.
func (d Data) add(cycle time.Duration) Data {
	d.Current = cycle
	if cycle < d.Min {
		d.Min = cycle
	}
	if cycle > d.Max {
		d.Max = cycle
	}
	return d
}

// Timer measures cycles. Every Stop must be preceded by exactly one Start.
// A Timer is owned by the goroutine running the measured cycle; publish
// Data through a guarded container for other readers.
type Timer struct {
	now     func() time.Time
	started time.Time
	running bool
	cycles  uint64
	data    Data
}

// NewTimer returns a stopped timer with no measurements.
func NewTimer() *Timer {
	return &Timer{now: time.Now}
}

// Start begins a cycle.
func (t *Timer) Start() error {
	if t.running {
		return ErrAlreadyStarted
	}
	t.running = true
	t.started = t.now()
	return nil
}

// Stop ends the running cycle and returns its duration.
func (t *Timer) Stop() (time.Duration, error) {
	if !t.running {
		return 0, ErrNotStarted
	}
	t.running = false
	cycle := t.now().Sub(t.started)
	if t.cycles == 0 {
		t.data = Data{Min: cycle, Max: cycle, Current: cycle}
	} else {
		t.data = t.data.add(cycle)
	}
	t.cycles++
	return cycle, nil
}

// Running reports whether a cycle is in progress.
func (t *Timer) Running() bool {
	return t.running
}

// Cycles is the number of completed cycles.
func (t *Timer) Cycles() uint64 {
	return t.cycles
}

// Data returns the summary of all completed cycles.
func (t *Timer) Data() Data {
	return t.data
}
