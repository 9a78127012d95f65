package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBook(t *testing.T) *VirtualOrderBook {
	t.Helper()
	b, err := NewVirtualOrderBook(BookParams{
		MaxOpenPrice:   100,
		MinOpenPrice:   70,
		MaxClosePrice:  110,
		MinClosePrice:  75,
		OpenSlotNum:    3,
		CloseSlotNum:   3,
		MinProfitPct:   0.002,
		CloseStepPct:   0.001,
		MaxProfitPct:   0.01,
		Direction:      Long,
		CommissionRate: 0.0002,
	})
	require.NoError(t, err)
	return b
}

// TestVirtualOrderBookLifecycle moves one order through all three containers
// and checks it lives in exactly one of them at every step.
func TestVirtualOrderBookLifecycle(t *testing.T) {
	b := newTestBook(t)

	order, err := NewVirtualOrder(95, 100, 1, Long, 1, 0.0002)
	require.NoError(t, err)

	require.NotNil(t, b.AddOrder(order))
	assert.Equal(t, 100.0, order.OpenPrice(), "open price snapped to the rung")
	assert.Equal(t, 1, b.OpenLadder().Len())
	assert.Zero(t, b.CloseLadder().Len())
	assert.Empty(t, b.ClosedOrders())

	// open fill: leaves the open ladder, close leg gets its rung price
	require.NotNil(t, b.UpdateOrderClosing(order))
	assert.Equal(t, StatusClosing, order.Status())
	assert.InDelta(t, 100.2, order.ClosePrice(), 1e-9)
	assert.Zero(t, b.OpenLadder().Len())
	assert.Equal(t, 1, b.CloseLadder().Len())
	assert.Empty(t, b.ClosedOrders())

	// close fill: leaves the close ladder, archived as closed
	require.NotNil(t, b.UpdateOrderClosed(order))
	assert.Equal(t, StatusClosed, order.Status())
	assert.Zero(t, b.OpenLadder().Len())
	assert.Zero(t, b.CloseLadder().Len())
	require.Len(t, b.ClosedOrders(), 1)
	assert.Same(t, order, b.ClosedOrders()[0])

	net, ok := order.ActualNetValue()
	require.True(t, ok)
	// snap rescaled quantity to 0.95; gross minus commission on both legs
	q := order.Quantity()
	assert.InDelta(t, 0.95, q, 1e-9)
	assert.InDelta(t, (0.2-(100.0+100.2)*0.0002)*q, net, 1e-9)
}

// TestVirtualOrderBookUnknownOrder verifies transitions on orders the book
// does not hold are rejected as no-ops, not panics.
func TestVirtualOrderBookUnknownOrder(t *testing.T) {
	b := newTestBook(t)

	stranger, err := NewVirtualOrder(90, 100, 1, Long, 1, 0.0002)
	require.NoError(t, err)

	assert.Nil(t, b.UpdateOrderClosing(stranger))
	assert.Nil(t, b.UpdateOrderClosed(stranger))
	assert.Nil(t, b.RemoveOpenOrder(stranger))
	assert.Equal(t, StatusOpening, stranger.Status(), "failed transition leaves status untouched")
}

func TestVirtualOrderBookRemoveOpenOrder(t *testing.T) {
	b := newTestBook(t)

	order, err := NewVirtualOrder(90, 100, 1, Long, 1, 0.0002)
	require.NoError(t, err)
	require.NotNil(t, b.AddOrder(order))

	removed := b.RemoveOpenOrder(order)
	assert.Same(t, order, removed)
	assert.Zero(t, b.OpenLadder().Len())

	// the book only removes; cancellation status is the caller's business
	assert.Equal(t, StatusOpening, order.Status())
}
