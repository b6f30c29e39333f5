package driver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolfl/hmicore/tag"
)

func TestManagerDuplicateConnection(t *testing.T) {
	dir := t.TempDir()
	a := shmConnection(t, 4, dir)
	b := shmConnection(t, 4, dir)
	b.Shm.Segment = "other"

	_, err := NewManager([]Connection{a, b}, nil)
	assert.ErrorIs(t, err, ErrDuplicateConnection)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, uint32(4), ce.Connection)

	// a disabled duplicate is still a duplicate
	b.Enabled = false
	_, err = NewManager([]Connection{a, b}, nil)
	assert.ErrorIs(t, err, ErrDuplicateConnection)
}

func TestManagerUnknownType(t *testing.T) {
	conn := shmConnection(t, 1, t.TempDir())
	conn.Type = "profinet"
	_, err := NewManager([]Connection{conn}, nil)
	assert.ErrorIs(t, err, ErrUnknownDriverType)
	assert.Contains(t, err.Error(), "profinet")
}

func TestManagerConnections(t *testing.T) {
	dir := t.TempDir()
	c3 := shmConnection(t, 3, dir)
	c1 := shmConnection(t, 1, dir)
	c1.Shm.Segment = "one"
	off := shmConnection(t, 2, dir)
	off.Enabled = false

	m, err := NewManager([]Connection{c3, off, c1}, nil)
	require.NoError(t, err)
	defer m.Close()

	var ids []uint32
	for _, c := range m.Connections() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []uint32{1, 3}, ids)

	var updaterIDs []uint32
	for _, u := range m.ProcessUpdaters() {
		updaterIDs = append(updaterIDs, u.ConnectionID)
		assert.Equal(t, u.ConnectionID, u.Updater.ConnectionID())
	}
	assert.Equal(t, []uint32{1, 3}, updaterIDs)

	_, err = m.Diagnostics(1)
	assert.ErrorIs(t, err, ErrNoDiagnostics)
	_, err = m.Diagnostics(2)
	assert.ErrorIs(t, err, ErrNoConnection)
}

func TestManagerMissingConnection(t *testing.T) {
	m := newShmManager(t)
	r, w := m.ProcessReader(), m.ProcessWriter()

	bit := mustTag(t, 9, tag.Bit, "I0.0")
	word := mustTag(t, 9, tag.Word, "I0")
	flt := mustTag(t, 9, tag.Real, "I0")

	_, rerr := r.GetBitValue(bit)
	_, berr := r.GetBitsValue([]tag.Tag{mustTag(t, 1, tag.Bit, "I0.1"), bit})
	_, werr := r.GetWord(word)
	_, ferr := r.GetReal(flt)
	errs := []error{
		rerr, berr, werr, ferr,
		w.SetBit(bit),
		w.ResetBit(bit),
		w.InvertBit(bit),
		w.SetBits([]tag.Tag{bit}),
		w.WriteWord(word, 1),
		w.WriteReal(flt, 1),
	}
	for i, err := range errs {
		require.Error(t, err, "case %d", i)
		assert.ErrorIs(t, err, ErrNoConnection, "case %d", i)
		assert.True(t, strings.Contains(err.Error(), "t_I0") && strings.Contains(err.Error(), "9"), "case %d: %v", i, err)
	}
}

func TestSetBitsValidatesAllFirst(t *testing.T) {
	dir := t.TempDir()
	c2 := shmConnection(t, 2, dir)
	c2.Shm.Segment = "two"
	m, err := NewManager([]Connection{shmConnection(t, 1, dir), c2}, nil)
	require.NoError(t, err)
	defer m.Close()
	w := m.ProcessWriter()

	good1 := mustTag(t, 1, tag.Bit, "Q0.0")
	good2 := mustTag(t, 2, tag.Bit, "Q0.1")
	bad := mustTag(t, 2, tag.Bit, "Q40.0")

	err = w.SetBits([]tag.Tag{good1, good2, bad})
	assert.ErrorIs(t, err, ErrByteAddressOutOfRange)
	assert.Equal(t, make([]byte, areaLen), image(t, m, 1).areas[tag.Output])
	assert.Equal(t, make([]byte, areaLen), image(t, m, 2).areas[tag.Output])

	require.NoError(t, w.SetBits([]tag.Tag{good1, good2}))
	r := m.ProcessReader()
	require.NoError(t, r.UpdateProcessData())
	got, err := r.GetBitsValue([]tag.Tag{good2, good1})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, got)
}

func TestEmptyTag(t *testing.T) {
	m := newShmManager(t)
	_, err := m.ProcessReader().GetByte(tag.Tag{})
	assert.ErrorIs(t, err, tag.ErrNotExist)
	assert.ErrorIs(t, m.ProcessWriter().SetBit(tag.Tag{}), tag.ErrNotExist)
}

func TestWriteValueInvalid(t *testing.T) {
	m := newShmManager(t)
	w := m.ProcessWriter()
	tests := []struct {
		typ  tag.Type
		text string
	}{
		{tag.Bit, "maybe"},
		{tag.Byte, "256"},
		{tag.Word, "-1"},
		{tag.DWord, "4294967296"},
		{tag.Int, "2147483648"},
		{tag.Real, "pi"},
	}
	for _, tt := range tests {
		err := w.WriteValue(mustTag(t, 1, tt.typ, "M0"), tt.text)
		assert.ErrorIs(t, err, ErrInvalidValue, "%v %q", tt.typ, tt.text)
	}
	assert.Equal(t, make([]byte, areaLen), image(t, m, 1).areas[tag.Memory])
}
