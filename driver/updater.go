package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rolfl/hmicore/cycletime"
	"github.com/rolfl/hmicore/guarded"
)

// ProcessUpdater refreshes the snapshot of one connection from its transport.
type ProcessUpdater struct {
	id      uint32
	updater BackendUpdater
}

// ConnectionID is the connection this updater refreshes.
func (u *ProcessUpdater) ConnectionID() uint32 {
	return u.id
}

// UpdateProcessData runs one refresh. It may block on transport I/O.
func (u *ProcessUpdater) UpdateProcessData() error {
	if err := u.updater.UpdateProcessData(); err != nil {
		var de *Error
		if errors.As(err, &de) && de.Connection == 0 {
			annotated := *de
			annotated.Connection = u.id
			return &annotated
		}
		return err
	}
	return nil
}

// State of an UpdaterThread.
type State int32

const (
	Idle State = iota
	Updating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Updating:
		return "UPDATING"
	default:
		return fmt.Sprintf("STATE(%d)", int32(s))
	}
}

// UpdaterThread drives one ProcessUpdater on a fixed period and measures
// every cycle.
type UpdaterThread struct {
	updater *ProcessUpdater
	period  time.Duration
	exit    *guarded.Controller[bool]
	log     *slog.Logger

	state     atomic.Int32
	timer     *cycletime.Timer
	cycleTime *guarded.Controller[cycletime.Data]
}

// NewUpdaterThread prepares a thread for u. The thread stops once exit
// holds true; exit may be nil.
func NewUpdaterThread(u *ProcessUpdater, period time.Duration, exit *guarded.Controller[bool], log *slog.Logger) *UpdaterThread {
	if log == nil {
		log = slog.Default()
	}
	_, cycleTime := guarded.New(cycletime.Data{})
	return &UpdaterThread{
		updater:   u,
		period:    period,
		exit:      exit,
		log:       log.With("connection_id", u.ConnectionID()),
		timer:     cycletime.NewTimer(),
		cycleTime: cycleTime,
	}
}

// CycleTime returns a read-only view of the measured cycle times.
func (t *UpdaterThread) CycleTime() *guarded.Controller[cycletime.Data] {
	return t.cycleTime.ReadOnlyCopy()
}

func (t *UpdaterThread) ConnectionID() uint32 {
	return t.updater.ConnectionID()
}

func (t *UpdaterThread) State() State {
	return State(t.state.Load())
}

func (t *UpdaterThread) exiting() bool {
	return t.exit != nil && t.exit.GetData()
}

// Run updates once per period until ctx is done or the exit flag is set.
// Transport errors are logged and left to the next cycle; any other error
// ends the thread and is returned.
func (t *UpdaterThread) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()
	t.log.Info("updater started", "period", t.period)
	defer t.log.Info("updater stopped")
	for {
		if t.exiting() {
			return nil
		}
		if err := t.cycle(); err != nil {
			if !errors.Is(err, ErrTransport) {
				return err
			}
			t.log.Warn("process data update failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (t *UpdaterThread) cycle() error {
	if err := t.timer.Start(); err != nil {
		return err
	}
	t.state.Store(int32(Updating))
	err := t.updater.UpdateProcessData()
	t.state.Store(int32(Idle))
	if _, serr := t.timer.Stop(); serr != nil {
		return serr
	}
	if serr := t.cycleTime.SetData(t.timer.Data()); serr != nil {
		return serr
	}
	return err
}
