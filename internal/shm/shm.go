// Package shm maps a named shared-memory segment into the process.
//
// A segment is a file under a shared-memory directory (normally /dev/shm)
// mapped with MAP_SHARED, so every process opening the same name sees the
// same bytes. Cross-process exclusion uses an advisory flock on the file.
package shm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// DefaultDir is where POSIX shared memory objects live on Linux.
const DefaultDir = "/dev/shm"

// Segment is one mapped shared-memory region.
type Segment struct {
	name string
	path string
	fd   int
	data []byte
}

// Open maps the segment name under dir, creating it and growing it to
// size bytes when needed. Everything acquired is released again if Open fails.
func Open(dir, name string, size int) (seg *Segment, err error) {
	if name == "" || strings.ContainsRune(name, '/') {
		return nil, fmt.Errorf("shm: invalid segment name %q", name)
	}
	if size <= 0 {
		return nil, fmt.Errorf("shm: segment %s: invalid size %d", name, size)
	}
	if dir == "" {
		dir = DefaultDir
	}
	path := filepath.Join(dir, name)

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_CLOEXEC, 0o660)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	defer func() {
		if err != nil {
			unix.Close(fd)
		}
	}()

	var st unix.Stat_t
	if err = unix.Fstat(fd, &st); err != nil {
		return nil, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	if st.Size < int64(size) {
		if err = unix.Ftruncate(fd, int64(size)); err != nil {
			return nil, &os.PathError{Op: "truncate", Path: path, Err: err}
		}
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &os.PathError{Op: "mmap", Path: path, Err: err}
	}
	return &Segment{name: name, path: path, fd: fd, data: data}, nil
}

// Name returns the segment name it was opened with.
func (s *Segment) Name() string {
	return s.name
}

// Path returns the backing file.
func (s *Segment) Path() string {
	return s.path
}

// Size returns the mapped size in bytes.
func (s *Segment) Size() int {
	return len(s.data)
}

// Lock takes the cross-process exclusive lock.
func (s *Segment) Lock() error {
	return unix.Flock(s.fd, unix.LOCK_EX)
}

// Unlock releases the cross-process lock.
func (s *Segment) Unlock() error {
	return unix.Flock(s.fd, unix.LOCK_UN)
}

// ReadAt copies len(p) bytes starting at off into p.
func (s *Segment) ReadAt(p []byte, off int) error {
	if off < 0 || off+len(p) > len(s.data) {
		return fmt.Errorf("shm: segment %s: read of %d bytes at %d exceeds size %d", s.name, len(p), off, len(s.data))
	}
	copy(p, s.data[off:])
	return nil
}

// WriteAt copies p into the segment starting at off.
func (s *Segment) WriteAt(p []byte, off int) error {
	if off < 0 || off+len(p) > len(s.data) {
		return fmt.Errorf("shm: segment %s: write of %d bytes at %d exceeds size %d", s.name, len(p), off, len(s.data))
	}
	copy(s.data[off:], p)
	return nil
}

// Close unmaps the segment and closes its descriptor. The backing file is
// kept so that other processes keep their data.
func (s *Segment) Close() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	if cerr := unix.Close(s.fd); err == nil {
		err = cerr
	}
	return err
}

// Remove deletes the backing file of the named segment.
func Remove(dir, name string) error {
	if dir == "" {
		dir = DefaultDir
	}
	return os.Remove(filepath.Join(dir, name))
}
