package driver

import (
	"fmt"

	"github.com/rolfl/hmicore/tag"
)

// ProcessReader is the typed read side of every connection. It reads the
// view captured by its last UpdateProcessData call. A reader is owned by
// one goroutine; other goroutines take a Clone.
type ProcessReader struct {
	readers map[uint32]BackendReader
}

// resolve checks the declared type of t and finds its backend.
func (r *ProcessReader) resolve(t tag.Tag, want tag.Type) (BackendReader, tag.Address, error) {
	return resolve(r.readers, t, want)
}

func resolve[B any](backends map[uint32]B, t tag.Tag, want tag.Type) (B, tag.Address, error) {
	var zero B
	name, err := t.Name()
	if err != nil {
		return zero, tag.Address{}, err
	}
	if t.Type() != want {
		return zero, tag.Address{}, &tag.Error{
			Code: tag.ErrWrongType,
			Tag:  name,
			Msg:  fmt.Sprintf("tag type is %v, access needs %v", t.Type(), want),
		}
	}
	conn, _ := t.ConnectionID()
	b, ok := backends[conn]
	if !ok {
		return zero, tag.Address{}, &Error{
			Code:       ErrNoConnection,
			Tag:        name,
			Connection: conn,
			Msg:        fmt.Sprintf("no driver connection with id %d", conn),
		}
	}
	addr, _ := t.Address()
	return b, addr, nil
}

func tagName(t tag.Tag) string {
	name, _ := t.Name()
	return name
}

func (r *ProcessReader) GetBitValue(t tag.Tag) (bool, error) {
	b, addr, err := r.resolve(t, tag.Bit)
	if err != nil {
		return false, err
	}
	v, err := b.GetBitValue(addr)
	if err != nil {
		return false, withTag(err, tagName(t))
	}
	return v, nil
}

// GetBitsValue reads BIT tags in order, possibly from different connections.
// It fails as a whole on the first tag that cannot be read.
func (r *ProcessReader) GetBitsValue(tags []tag.Tag) ([]bool, error) {
	if len(tags) == 0 {
		return nil, &Error{Code: ErrEmptyTags, Msg: "Tags array is empty"}
	}
	values := make([]bool, 0, len(tags))
	for _, t := range tags {
		v, err := r.GetBitValue(t)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if len(values) != len(tags) {
		return nil, &Error{Code: ErrShortResult, Msg: fmt.Sprintf("read %d of %d bits", len(values), len(tags))}
	}
	return values, nil
}

func (r *ProcessReader) GetByte(t tag.Tag) (uint8, error) {
	b, addr, err := r.resolve(t, tag.Byte)
	if err != nil {
		return 0, err
	}
	v, err := b.GetByte(addr)
	if err != nil {
		return 0, withTag(err, tagName(t))
	}
	return v, nil
}

func (r *ProcessReader) GetWord(t tag.Tag) (uint16, error) {
	b, addr, err := r.resolve(t, tag.Word)
	if err != nil {
		return 0, err
	}
	v, err := b.GetWord(addr)
	if err != nil {
		return 0, withTag(err, tagName(t))
	}
	return v, nil
}

func (r *ProcessReader) GetDWord(t tag.Tag) (uint32, error) {
	b, addr, err := r.resolve(t, tag.DWord)
	if err != nil {
		return 0, err
	}
	v, err := b.GetDWord(addr)
	if err != nil {
		return 0, withTag(err, tagName(t))
	}
	return v, nil
}

func (r *ProcessReader) GetInt(t tag.Tag) (int32, error) {
	b, addr, err := r.resolve(t, tag.Int)
	if err != nil {
		return 0, err
	}
	v, err := b.GetInt(addr)
	if err != nil {
		return 0, withTag(err, tagName(t))
	}
	return v, nil
}

func (r *ProcessReader) GetReal(t tag.Tag) (float32, error) {
	b, addr, err := r.resolve(t, tag.Real)
	if err != nil {
		return 0, err
	}
	v, err := b.GetReal(addr)
	if err != nil {
		return 0, withTag(err, tagName(t))
	}
	return v, nil
}

// GetValue reads t with the accessor matching its declared type and
// formats the value as text.
func (r *ProcessReader) GetValue(t tag.Tag) (string, error) {
	var text string
	var err error
	switch t.Type() {
	case tag.Bit:
		var v bool
		v, err = r.GetBitValue(t)
		text = FormatBool(v)
	case tag.Byte:
		var v uint8
		v, err = r.GetByte(t)
		text = FormatUint(uint64(v))
	case tag.Word:
		var v uint16
		v, err = r.GetWord(t)
		text = FormatUint(uint64(v))
	case tag.DWord:
		var v uint32
		v, err = r.GetDWord(t)
		text = FormatUint(uint64(v))
	case tag.Int:
		var v int32
		v, err = r.GetInt(t)
		text = FormatInt(int64(v))
	case tag.Real:
		var v float32
		v, err = r.GetReal(t)
		text = FormatReal(v)
	default:
		err = &tag.Error{Code: tag.ErrWrongType, Tag: tagName(t), Msg: fmt.Sprintf("unknown type %v", t.Type())}
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// UpdateProcessData copies the latest snapshot of every backend into this
// reader's view.
func (r *ProcessReader) UpdateProcessData() error {
	for id, b := range r.readers {
		if err := b.UpdateProcessData(); err != nil {
			return &Error{Code: ErrTransport, Connection: id, Msg: fmt.Sprintf("update connection %d", id), Err: err}
		}
	}
	return nil
}

// Clone returns an independent reader with a copy of the current view.
func (r *ProcessReader) Clone() *ProcessReader {
	readers := make(map[uint32]BackendReader, len(r.readers))
	for id, b := range r.readers {
		readers[id] = b.Clone()
	}
	return &ProcessReader{readers: readers}
}
