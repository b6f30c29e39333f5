package driver

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rolfl/hmicore/internal/shm"
	"github.com/rolfl/hmicore/tag"
)

// ShmConfig describes a process image kept in a named shared-memory
// segment, laid out as inputs, then outputs, then memory.
type ShmConfig struct {
	// Segment is the shared-memory object name shared with the simulator.
	Segment string `yaml:"segment"`
	// Dir overrides the shared-memory directory, /dev/shm by default.
	Dir     string `yaml:"dir,omitempty"`
	Inputs  int    `yaml:"inputs"`
	Outputs int    `yaml:"outputs"`
	Memory  int    `yaml:"memory"`
}

func (c ShmConfig) size() int {
	return c.Inputs + c.Outputs + c.Memory
}

func (c ShmConfig) offset(a tag.Area) int {
	switch a {
	case tag.Output:
		return c.Inputs
	case tag.Memory:
		return c.Inputs + c.Outputs
	default:
		return 0
	}
}

type shmBackend struct {
	cfg ShmConfig
	log *slog.Logger

	mu   sync.Mutex
	seg  *shm.Segment
	snap processImage
}

func newShmBackend(conn Connection, log *slog.Logger) (*shmBackend, error) {
	cfg := conn.Shm
	if cfg == nil {
		return nil, configErrorf(conn, ErrInvalidConnection, "missing shm section")
	}
	if cfg.Segment == "" {
		return nil, configErrorf(conn, ErrInvalidConnection, "missing shm segment name")
	}
	if cfg.Inputs < 0 || cfg.Outputs < 0 || cfg.Memory < 0 || cfg.size() == 0 {
		return nil, configErrorf(conn, ErrInvalidConnection, "invalid area lengths %d/%d/%d", cfg.Inputs, cfg.Outputs, cfg.Memory)
	}
	seg, err := shm.Open(cfg.Dir, cfg.Segment, cfg.size())
	if err != nil {
		return nil, &ConfigError{Connection: conn.ID, Name: conn.Name, Err: err}
	}
	b := &shmBackend{
		cfg:  *cfg,
		log:  log,
		seg:  seg,
		snap: newProcessImage(cfg.Inputs, cfg.Outputs, cfg.Memory),
	}
	if err := b.refresh(); err != nil {
		seg.Close()
		return nil, &ConfigError{Connection: conn.ID, Name: conn.Name, Err: err}
	}
	log.Debug("shared memory attached", "segment", seg.Path(), "size", seg.Size())
	return b, nil
}

func (b *shmBackend) Reader() BackendReader {
	return newImageReader(b)
}

func (b *shmBackend) Writer() BackendWriter {
	return imageWriter{b}
}

func (b *shmBackend) Updater() BackendUpdater {
	return shmUpdater{b}
}

func (b *shmBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seg.Close()
}

func (b *shmBackend) lengths() [3]int {
	return [3]int{b.cfg.Inputs, b.cfg.Outputs, b.cfg.Memory}
}

func (b *shmBackend) access() access {
	return shmAccess
}

func (b *shmBackend) snapshot(dst processImage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dst.copyFrom(b.snap)
}

// refresh copies the whole segment into the snapshot.
func (b *shmBackend) refresh() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.seg.Lock(); err != nil {
		return err
	}
	defer b.seg.Unlock()
	for _, a := range tag.Areas {
		if err := b.seg.ReadAt(b.snap.areas[a], b.cfg.offset(a)); err != nil {
			return err
		}
	}
	return nil
}

// modify reloads the touched bytes from the segment so that bits changed by
// other processes survive, applies fn and writes the bytes back.
func (b *shmBackend) modify(addrs []tag.Address, size uint, _ bool, fn func(img processImage)) error {
	if err := checkAll(shmAccess, b.lengths(), addrs, size); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.seg.Lock(); err != nil {
		return &Error{Code: ErrTransport, Msg: "lock shared memory", Err: err}
	}
	defer b.seg.Unlock()
	for _, a := range addrs {
		if err := b.seg.ReadAt(b.snap.span(a, size), b.cfg.offset(a.Area)+int(a.Byte)); err != nil {
			return &Error{Code: ErrTransport, Msg: "read shared memory", Err: err}
		}
	}
	fn(b.snap)
	for _, a := range addrs {
		if err := b.seg.WriteAt(b.snap.span(a, size), b.cfg.offset(a.Area)+int(a.Byte)); err != nil {
			return &Error{Code: ErrTransport, Msg: "write shared memory", Err: err}
		}
	}
	return nil
}

type shmUpdater struct {
	b *shmBackend
}

func (u shmUpdater) UpdateProcessData() error {
	if err := u.b.refresh(); err != nil {
		return &Error{Code: ErrTransport, Msg: fmt.Sprintf("refresh shared memory %s", u.b.cfg.Segment), Err: err}
	}
	return nil
}
