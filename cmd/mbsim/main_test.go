package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPattern(t *testing.T) {
	opts := Options{Inputs: 4, Holdings: 2, Coils: 2, Discretes: 3}
	server, err := newSimulator(opts, slog.Default())
	require.NoError(t, err)
	require.NoError(t, setPattern(server, opts, 2))

	atomic := server.StartAtomic()
	defer atomic.Complete()
	inputs, err := server.ReadInputs(atomic, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 258, 514, 770}, inputs)

	discretes, err := server.ReadDiscretes(atomic, 0, 3)
	require.NoError(t, err)
	// step 2: 2/1 even, 2/2 odd, 2/3 even
	assert.Equal(t, []bool{false, true, false}, discretes)

	holdings, err := server.ReadHoldings(atomic, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, holdings)
}
