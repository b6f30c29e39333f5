package guarded

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterAndReaders(t *testing.T) {
	c, w := New(false)
	r1 := c.ReadOnly()
	r2 := w.ReadOnlyCopy()

	assert.False(t, w.ReadOnly())
	assert.True(t, r1.ReadOnly())
	assert.False(t, r1.GetData())

	require.NoError(t, w.SetData(true))
	assert.True(t, r1.GetData())
	assert.True(t, r2.GetData())
}

func TestReadOnlySetDataFails(t *testing.T) {
	c, _ := New(3)
	r := c.ReadOnly()

	assert.ErrorIs(t, r.SetData(4), ErrReadOnly)
	assert.ErrorIs(t, r.Update(func(v int) int { return v + 1 }), ErrReadOnly)
	assert.Equal(t, 3, r.GetData())
}

func TestConcurrentUpdate(t *testing.T) {
	c, w := New(0)
	r := c.ReadOnly()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = w.Update(func(v int) int { return v + 1 })
		}()
		go func() {
			defer wg.Done()
			_ = r.GetData()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, r.GetData())
}
