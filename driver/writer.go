package driver

import (
	"fmt"

	"github.com/rolfl/hmicore/tag"
)

// ProcessWriter is the typed write side of every connection. It is safe
// for concurrent use. Writes reach the backend snapshot at once; readers
// observe them after their next UpdateProcessData.
type ProcessWriter struct {
	writers map[uint32]BackendWriter
}

func (w *ProcessWriter) bit(t tag.Tag, op func(BackendWriter, tag.Address) error) error {
	b, addr, err := resolve(w.writers, t, tag.Bit)
	if err != nil {
		return err
	}
	if err := op(b, addr); err != nil {
		return withTag(err, tagName(t))
	}
	return nil
}

func (w *ProcessWriter) SetBit(t tag.Tag) error {
	return w.bit(t, BackendWriter.SetBit)
}

func (w *ProcessWriter) ResetBit(t tag.Tag) error {
	return w.bit(t, BackendWriter.ResetBit)
}

func (w *ProcessWriter) InvertBit(t tag.Tag) error {
	return w.bit(t, BackendWriter.InvertBit)
}

// SetBits sets BIT tags, possibly on different connections. Every tag is
// validated before any bit changes; the bits of one connection are then set
// under a single lock, connections in order of first appearance.
func (w *ProcessWriter) SetBits(tags []tag.Tag) error {
	if len(tags) == 0 {
		return &Error{Code: ErrEmptyTags, Msg: "Tags array is empty"}
	}
	var order []uint32
	groups := make(map[uint32][]tag.Address)
	for _, t := range tags {
		b, addr, err := resolve(w.writers, t, tag.Bit)
		if err != nil {
			return err
		}
		if err := b.ValidateWrite(addr, tag.Bit); err != nil {
			return withTag(err, tagName(t))
		}
		conn, _ := t.ConnectionID()
		if _, ok := groups[conn]; !ok {
			order = append(order, conn)
		}
		groups[conn] = append(groups[conn], addr)
	}
	for _, conn := range order {
		if err := w.writers[conn].SetBits(groups[conn]); err != nil {
			return err
		}
	}
	return nil
}

func (w *ProcessWriter) WriteByte(t tag.Tag, v uint8) error {
	b, addr, err := resolve(w.writers, t, tag.Byte)
	if err != nil {
		return err
	}
	if err := b.WriteByte(addr, v); err != nil {
		return withTag(err, tagName(t))
	}
	return nil
}

func (w *ProcessWriter) WriteWord(t tag.Tag, v uint16) error {
	b, addr, err := resolve(w.writers, t, tag.Word)
	if err != nil {
		return err
	}
	if err := b.WriteWord(addr, v); err != nil {
		return withTag(err, tagName(t))
	}
	return nil
}

func (w *ProcessWriter) WriteDWord(t tag.Tag, v uint32) error {
	b, addr, err := resolve(w.writers, t, tag.DWord)
	if err != nil {
		return err
	}
	if err := b.WriteDWord(addr, v); err != nil {
		return withTag(err, tagName(t))
	}
	return nil
}

func (w *ProcessWriter) WriteInt(t tag.Tag, v int32) error {
	b, addr, err := resolve(w.writers, t, tag.Int)
	if err != nil {
		return err
	}
	if err := b.WriteInt(addr, v); err != nil {
		return withTag(err, tagName(t))
	}
	return nil
}

func (w *ProcessWriter) WriteReal(t tag.Tag, v float32) error {
	b, addr, err := resolve(w.writers, t, tag.Real)
	if err != nil {
		return err
	}
	if err := b.WriteReal(addr, v); err != nil {
		return withTag(err, tagName(t))
	}
	return nil
}

// WriteValue parses text for the declared type of t and writes it. A BIT
// tag is set for a true value and reset for a false one.
func (w *ProcessWriter) WriteValue(t tag.Tag, text string) error {
	invalid := func(err error) error {
		return &Error{Code: ErrInvalidValue, Tag: tagName(t), Msg: fmt.Sprintf("invalid %v value %q", t.Type(), text), Err: err}
	}
	switch t.Type() {
	case tag.Bit:
		v, err := ParseBool(text)
		if err != nil {
			return invalid(err)
		}
		if v {
			return w.SetBit(t)
		}
		return w.ResetBit(t)
	case tag.Byte:
		v, err := ParseUint(text, 8)
		if err != nil {
			return invalid(err)
		}
		return w.WriteByte(t, uint8(v))
	case tag.Word:
		v, err := ParseUint(text, 16)
		if err != nil {
			return invalid(err)
		}
		return w.WriteWord(t, uint16(v))
	case tag.DWord:
		v, err := ParseUint(text, 32)
		if err != nil {
			return invalid(err)
		}
		return w.WriteDWord(t, uint32(v))
	case tag.Int:
		v, err := ParseInt(text)
		if err != nil {
			return invalid(err)
		}
		return w.WriteInt(t, v)
	case tag.Real:
		v, err := ParseReal(text)
		if err != nil {
			return invalid(err)
		}
		return w.WriteReal(t, v)
	default:
		return &tag.Error{Code: tag.ErrWrongType, Tag: tagName(t), Msg: fmt.Sprintf("unknown type %v", t.Type())}
	}
}
