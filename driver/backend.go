package driver

import (
	"github.com/rolfl/hmicore/tag"
)

// BackendReader reads one connection's process image. Each reader owns a
// private view that changes only when UpdateProcessData is called; a
// reader must not be shared between goroutines, Clone it instead.
type BackendReader interface {
	GetBitValue(addr tag.Address) (bool, error)
	GetByte(addr tag.Address) (uint8, error)
	GetWord(addr tag.Address) (uint16, error)
	GetDWord(addr tag.Address) (uint32, error)
	GetInt(addr tag.Address) (int32, error)
	GetReal(addr tag.Address) (float32, error)
	// UpdateProcessData copies the backend's latest snapshot into the view.
	UpdateProcessData() error
	Clone() BackendReader
}

// BackendWriter changes one connection's process image. Writes are
// validated completely before any byte changes. Writers are safe for
// concurrent use.
type BackendWriter interface {
	SetBit(addr tag.Address) error
	ResetBit(addr tag.Address) error
	InvertBit(addr tag.Address) error
	SetBits(addrs []tag.Address) error
	WriteByte(addr tag.Address, v uint8) error
	WriteWord(addr tag.Address, v uint16) error
	WriteDWord(addr tag.Address, v uint32) error
	WriteInt(addr tag.Address, v int32) error
	WriteReal(addr tag.Address, v float32) error
	// ValidateWrite runs the write checks for a value of type t at addr
	// without changing anything.
	ValidateWrite(addr tag.Address, t tag.Type) error
}

// BackendUpdater refreshes the backend's snapshot from its transport.
type BackendUpdater interface {
	UpdateProcessData() error
}

// Backend is one driver connection. The set of implementations is closed:
// shared memory and Modbus/TCP.
type Backend interface {
	Reader() BackendReader
	Writer() BackendWriter
	Updater() BackendUpdater
	Close() error
}

// store is the part a transport contributes to the shared reader and
// writer: its snapshot, guarded by the transport's own lock.
type store interface {
	// lengths returns the byte length of each area.
	lengths() [3]int
	access() access
	// snapshot copies the latest snapshot into dst.
	snapshot(dst processImage)
	// modify validates every address for a write of size bytes and then,
	// with the backend locked, applies fn and propagates the touched bytes.
	// bits reports that fn only changes the addressed bit of each byte.
	modify(addrs []tag.Address, size uint, bits bool, fn func(img processImage)) error
}

// checkAll validates each address for writing, first failure wins.
func checkAll(acc access, lengths [3]int, addrs []tag.Address, size uint) error {
	for _, a := range addrs {
		if err := acc.check(lengths, a, size, true); err != nil {
			return err
		}
	}
	return nil
}

type imageReader struct {
	st   store
	acc  access
	view processImage
}

func newImageReader(st store) *imageReader {
	l := st.lengths()
	return &imageReader{st: st, acc: st.access(), view: newProcessImage(l[0], l[1], l[2])}
}

func (r *imageReader) UpdateProcessData() error {
	r.st.snapshot(r.view)
	return nil
}

func (r *imageReader) Clone() BackendReader {
	return &imageReader{st: r.st, acc: r.acc, view: r.view.clone()}
}

func (r *imageReader) GetBitValue(addr tag.Address) (bool, error) {
	if err := r.acc.check(r.view.lengths(), addr, 1, false); err != nil {
		return false, err
	}
	return r.view.bit(addr), nil
}

func (r *imageReader) GetByte(addr tag.Address) (uint8, error) {
	if err := r.acc.check(r.view.lengths(), addr, 1, false); err != nil {
		return 0, err
	}
	return r.view.byteAt(addr), nil
}

func (r *imageReader) GetWord(addr tag.Address) (uint16, error) {
	if err := r.acc.check(r.view.lengths(), addr, 2, false); err != nil {
		return 0, err
	}
	return r.view.word(addr), nil
}

func (r *imageReader) GetDWord(addr tag.Address) (uint32, error) {
	if err := r.acc.check(r.view.lengths(), addr, 4, false); err != nil {
		return 0, err
	}
	return r.view.dword(addr), nil
}

func (r *imageReader) GetInt(addr tag.Address) (int32, error) {
	v, err := r.GetDWord(addr)
	return int32(v), err
}

func (r *imageReader) GetReal(addr tag.Address) (float32, error) {
	if err := r.acc.check(r.view.lengths(), addr, 4, false); err != nil {
		return 0, err
	}
	return r.view.real(addr), nil
}

type imageWriter struct {
	st store
}

func (w imageWriter) one(addr tag.Address, size uint, fn func(img processImage)) error {
	return w.st.modify([]tag.Address{addr}, size, false, fn)
}

func (w imageWriter) oneBit(addr tag.Address, fn func(img processImage)) error {
	return w.st.modify([]tag.Address{addr}, 1, true, fn)
}

func (w imageWriter) SetBit(addr tag.Address) error {
	return w.oneBit(addr, func(img processImage) { img.setBit(addr, true) })
}

func (w imageWriter) ResetBit(addr tag.Address) error {
	return w.oneBit(addr, func(img processImage) { img.setBit(addr, false) })
}

func (w imageWriter) InvertBit(addr tag.Address) error {
	return w.oneBit(addr, func(img processImage) { img.setBit(addr, !img.bit(addr)) })
}

func (w imageWriter) SetBits(addrs []tag.Address) error {
	if len(addrs) == 0 {
		return &Error{Code: ErrEmptyTags, Msg: "Tags array is empty"}
	}
	return w.st.modify(addrs, 1, true, func(img processImage) {
		for _, a := range addrs {
			img.setBit(a, true)
		}
	})
}

func (w imageWriter) WriteByte(addr tag.Address, v uint8) error {
	return w.one(addr, 1, func(img processImage) { img.setByte(addr, v) })
}

func (w imageWriter) WriteWord(addr tag.Address, v uint16) error {
	return w.one(addr, 2, func(img processImage) { img.setWord(addr, v) })
}

func (w imageWriter) WriteDWord(addr tag.Address, v uint32) error {
	return w.one(addr, 4, func(img processImage) { img.setDWord(addr, v) })
}

func (w imageWriter) WriteInt(addr tag.Address, v int32) error {
	return w.WriteDWord(addr, uint32(v))
}

func (w imageWriter) WriteReal(addr tag.Address, v float32) error {
	return w.one(addr, 4, func(img processImage) { img.setReal(addr, v) })
}

func (w imageWriter) ValidateWrite(addr tag.Address, t tag.Type) error {
	return w.st.access().check(w.st.lengths(), addr, t.Size(), true)
}
