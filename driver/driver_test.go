package driver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rolfl/hmicore/tag"
)

const areaLen = 16

func shmConnection(t *testing.T, id uint32, dir string) Connection {
	t.Helper()
	return Connection{
		ID:      id,
		Name:    "sim",
		Type:    TypeShm,
		Enabled: true,
		Shm: &ShmConfig{
			Segment: "hmicore_test",
			Dir:     dir,
			Inputs:  areaLen,
			Outputs: areaLen,
			Memory:  areaLen,
		},
	}
}

func newShmManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager([]Connection{shmConnection(t, 1, t.TempDir())}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func mustTag(t *testing.T, conn uint32, typ tag.Type, addr string) tag.Tag {
	t.Helper()
	a, err := tag.ParseAddress(addr)
	require.NoError(t, err)
	tg, err := tag.New(1, conn, "t_"+addrName(addr), typ, a)
	require.NoError(t, err)
	return tg
}

func addrName(addr string) string {
	b := []byte(addr)
	for i, c := range b {
		if c == '.' {
			b[i] = '_'
		}
	}
	return string(b)
}

// image returns a copy of the backend snapshot of connection id.
func image(t *testing.T, m *Manager, id uint32) processImage {
	t.Helper()
	st, ok := m.backends[id].(store)
	require.True(t, ok)
	l := st.lengths()
	img := newProcessImage(l[0], l[1], l[2])
	st.snapshot(img)
	return img
}
