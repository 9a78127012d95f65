package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenOrderLadderSlotExclusivity runs the canonical snap-and-occupy
// scenario: 3 slots between 100 and 70, long side.
func TestOpenOrderLadderSlotExclusivity(t *testing.T) {
	ladder, err := NewOpenOrderLadder(100, 70, 3, Long)
	require.NoError(t, err)

	first, err := NewVirtualOrder(95, 110, 1, Long, 1, 0.0002)
	require.NoError(t, err)

	// 95 rounds to slot 0 and snaps to the rung price 100
	added := ladder.AddOrder(first)
	require.NotNil(t, added)
	assert.Equal(t, 100.0, first.OpenPrice())
	assert.InDelta(t, 0.95, first.Quantity(), 1e-9, "snap rescales quantity to keep notional")
	assert.Equal(t, 1, ladder.Len())

	// 71 rounds to slot 3 and snaps to 70
	second, err := NewVirtualOrder(71, 110, 1, Long, 1, 0.0002)
	require.NoError(t, err)
	require.NotNil(t, ladder.AddOrder(second))
	assert.Equal(t, 70.0, second.OpenPrice())
	assert.Equal(t, 2, ladder.Len())

	// a second order aiming at an occupied slot is rejected without eviction
	third, err := NewVirtualOrder(95, 110, 1, Long, 1, 0.0002)
	require.NoError(t, err)
	assert.Nil(t, ladder.AddOrder(third))
	assert.Equal(t, 95.0, third.OpenPrice(), "rejected order is left untouched")
	assert.Same(t, first, ladder.CheckOrder(first))
	assert.Equal(t, 2, ladder.Len())
}

func TestOpenOrderLadderOutOfRange(t *testing.T) {
	ladder, err := NewOpenOrderLadder(100, 70, 3, Long)
	require.NoError(t, err)

	// above the band maps to a negative slot
	high, err := NewVirtualOrder(120, 130, 1, Long, 1, 0.0002)
	require.NoError(t, err)
	assert.Nil(t, ladder.AddOrder(high))

	// far below the band maps past the last slot
	low, err := NewVirtualOrder(40, 110, 1, Long, 1, 0.0002)
	require.NoError(t, err)
	assert.Nil(t, ladder.AddOrder(low))

	assert.Zero(t, ladder.Len())
}

func TestOpenOrderLadderRemove(t *testing.T) {
	ladder, err := NewOpenOrderLadder(100, 70, 3, Long)
	require.NoError(t, err)

	order, err := NewVirtualOrder(90, 110, 1, Long, 1, 0.0002)
	require.NoError(t, err)
	require.NotNil(t, ladder.AddOrder(order))

	removed := ladder.RemoveOrder(order)
	assert.Same(t, order, removed)
	assert.Zero(t, ladder.Len())
	assert.Nil(t, ladder.CheckOrder(order))

	// removing twice is a no-op
	assert.Nil(t, ladder.RemoveOrder(order))
}
