// Package driver gives typed, validated access to the process data of PLC
// connections, whatever transport carries it.
//
// A Manager owns one Backend per enabled Connection. Callers do not use
// backends directly; they use the ProcessReader and ProcessWriter, which
// route each tag to the backend of its connection, and run one
// ProcessUpdater per connection to keep the backends fresh:
//
//	m, err := driver.NewManager(cfg.Connections, logger)
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//	r := m.ProcessReader()
//	_ = r.UpdateProcessData()
//	v, err := r.GetWord(speedTag)
package driver

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Manager builds and owns the backends of the configured connections.
type Manager struct {
	backends map[uint32]Backend
	conns    []Connection
	log      *slog.Logger
}

// UpdaterHandle pairs a connection id with the updater of its backend.
type UpdaterHandle struct {
	ConnectionID uint32
	Updater      *ProcessUpdater
}

// NewManager creates one backend per enabled connection. Any configuration
// problem is returned as a *ConfigError and every backend built so far is
// released again.
func NewManager(conns []Connection, log *slog.Logger) (_ *Manager, err error) {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{backends: make(map[uint32]Backend), log: log}
	defer func() {
		if err != nil {
			m.Close()
		}
	}()

	seen := make(map[uint32]bool)
	for _, c := range conns {
		if c.ID == 0 {
			return nil, configErrorf(c, ErrInvalidConnection, "connection id must be greater than 0")
		}
		if seen[c.ID] {
			return nil, configErrorf(c, ErrDuplicateConnection, "id %d configured twice", c.ID)
		}
		seen[c.ID] = true
		if !c.Enabled {
			log.Info("driver connection disabled", "connection_id", c.ID, "name", c.Name)
			continue
		}
		b, err := newBackend(c, log.With("connection_id", c.ID, "connection", c.Name))
		if err != nil {
			return nil, err
		}
		m.backends[c.ID] = b
		m.conns = append(m.conns, c)
		log.Info("driver connection created", "connection_id", c.ID, "name", c.Name, "type", c.Type)
	}
	sort.Slice(m.conns, func(i, j int) bool { return m.conns[i].ID < m.conns[j].ID })
	return m, nil
}

func newBackend(c Connection, log *slog.Logger) (Backend, error) {
	switch c.Type {
	case TypeShm:
		return newShmBackend(c, log)
	case TypeModbus:
		return newModbusBackend(c, log)
	default:
		return nil, configErrorf(c, ErrUnknownDriverType, "%q", c.Type)
	}
}

// Connections returns the enabled connections ordered by id.
func (m *Manager) Connections() []Connection {
	return append([]Connection(nil), m.conns...)
}

// ProcessReader returns a new reader over every backend. Each goroutine
// should use its own reader, or a Clone of one.
func (m *Manager) ProcessReader() *ProcessReader {
	readers := make(map[uint32]BackendReader, len(m.backends))
	for id, b := range m.backends {
		readers[id] = b.Reader()
	}
	return &ProcessReader{readers: readers}
}

// ProcessWriter returns a writer over every backend.
func (m *Manager) ProcessWriter() *ProcessWriter {
	writers := make(map[uint32]BackendWriter, len(m.backends))
	for id, b := range m.backends {
		writers[id] = b.Writer()
	}
	return &ProcessWriter{writers: writers}
}

// ProcessUpdaters returns one updater per connection, ordered by id.
func (m *Manager) ProcessUpdaters() []UpdaterHandle {
	handles := make([]UpdaterHandle, 0, len(m.conns))
	for _, c := range m.conns {
		handles = append(handles, UpdaterHandle{
			ConnectionID: c.ID,
			Updater:      &ProcessUpdater{id: c.ID, updater: m.backends[c.ID].Updater()},
		})
	}
	return handles
}

// diagnoser is a backend that keeps bus counters.
type diagnoser interface {
	Diagnostics() BusDiagnostics
}

// Diagnostics returns the bus counters of a Modbus connection.
func (m *Manager) Diagnostics(id uint32) (BusDiagnostics, error) {
	b, ok := m.backends[id]
	if !ok {
		return BusDiagnostics{}, &Error{Code: ErrNoConnection, Connection: id, Msg: fmt.Sprintf("no connection with id %d", id)}
	}
	d, ok := b.(diagnoser)
	if !ok {
		return BusDiagnostics{}, &Error{Code: ErrNoDiagnostics, Connection: id, Msg: fmt.Sprintf("connection %d keeps no bus diagnostics", id)}
	}
	return d.Diagnostics(), nil
}

// Close releases every backend. Readers, writers and updaters must not be
// used afterwards.
func (m *Manager) Close() error {
	var errs []error
	for id, b := range m.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
