package scheduler

import (
	"testing"

	"maker-vol-bot-go/internal/book"
	"maker-vol-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type placedOrder struct {
	id       int64
	side     models.Side
	price    float64
	quantity float64
}

// mockVenue records placements and cancels and hands out sequential IDs.
type mockVenue struct {
	nextID   int64
	placed   []placedOrder
	canceled []int64
}

func (m *mockVenue) PlaceLimit(side models.Side, price, quantity float64) (int64, error) {
	m.nextID++
	m.placed = append(m.placed, placedOrder{id: m.nextID, side: side, price: price, quantity: quantity})
	return m.nextID, nil
}

func (m *mockVenue) Cancel(orderID int64) error {
	m.canceled = append(m.canceled, orderID)
	return nil
}

func (m *mockVenue) lastPlaced(t *testing.T) placedOrder {
	t.Helper()
	require.NotEmpty(t, m.placed)
	return m.placed[len(m.placed)-1]
}

func newSchedulerWithBook(t *testing.T) (*OrderScheduler, *mockVenue, *book.VirtualOrderBook) {
	t.Helper()
	venue := &mockVenue{}
	s := NewOrderScheduler(venue)
	b, err := book.NewVirtualOrderBook(book.BookParams{
		MaxOpenPrice:   100,
		MinOpenPrice:   70,
		MaxClosePrice:  110,
		MinClosePrice:  75,
		OpenSlotNum:    3,
		CloseSlotNum:   3,
		MinProfitPct:   0.002,
		CloseStepPct:   0.001,
		MaxProfitPct:   0.01,
		Direction:      book.Long,
		CommissionRate: 0.0002,
	})
	require.NoError(t, err)
	s.LinkOrderBook(b)
	return s, venue, b
}

func TestBindUnbind(t *testing.T) {
	s, _, _ := newSchedulerWithBook(t)

	order, err := book.NewVirtualOrder(100, 110, 1, book.Long, 1, 0.0002)
	require.NoError(t, err)

	require.NoError(t, s.Bind(order, 7))
	id, ok := s.Bound(order)
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Len(t, s.BoundOrders(), 1)

	s.Unbind(order)
	_, ok = s.Bound(order)
	assert.False(t, ok)
	assert.Empty(t, s.BoundOrders())
}

// TestReconcileReplacesChangedOrder runs the cancel-and-replace path: the
// virtual order's quantity changes after binding, so the stale venue order is
// canceled and a fresh one placed with the new parameters.
func TestReconcileReplacesChangedOrder(t *testing.T) {
	s, venue, _ := newSchedulerWithBook(t)

	order, err := book.NewVirtualOrder(100, 110, 1, book.Long, 1, 0.0002)
	require.NoError(t, err)

	venueID, err := venue.PlaceLimit(models.Buy, order.OpenPrice(), order.Quantity())
	require.NoError(t, err)
	require.NoError(t, s.Bind(order, venueID))

	require.NoError(t, order.UpdateQuantity(2, 1))
	require.NoError(t, s.Reconcile(order))

	assert.Equal(t, []int64{venueID}, venue.canceled)
	replacement := venue.lastPlaced(t)
	assert.Equal(t, models.Buy, replacement.side)
	assert.Equal(t, 100.0, replacement.price)
	assert.Equal(t, 2.0, replacement.quantity)
	assert.NotEqual(t, venueID, replacement.id)

	bound, ok := s.Bound(order)
	require.True(t, ok)
	assert.Equal(t, replacement.id, bound, "rebound to the replacement order")
}

func TestReconcileNoChange(t *testing.T) {
	s, venue, _ := newSchedulerWithBook(t)

	order, err := book.NewVirtualOrder(100, 110, 1, book.Long, 1, 0.0002)
	require.NoError(t, err)
	venueID, err := venue.PlaceLimit(models.Buy, order.OpenPrice(), order.Quantity())
	require.NoError(t, err)
	require.NoError(t, s.Bind(order, venueID))

	placements := len(venue.placed)
	require.NoError(t, s.Reconcile(order))
	assert.Empty(t, venue.canceled)
	assert.Len(t, venue.placed, placements, "unchanged order is not replaced")

	// generation bump without a parameter change only refreshes the snapshot
	require.NoError(t, order.UpdateQuantity(order.Quantity(), order.Leverage()))
	require.NoError(t, s.Reconcile(order))
	assert.Empty(t, venue.canceled)
	assert.Len(t, venue.placed, placements)
}

func TestReconcileUnbound(t *testing.T) {
	s, _, _ := newSchedulerWithBook(t)

	order, err := book.NewVirtualOrder(100, 110, 1, book.Long, 1, 0.0002)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Reconcile(order), ErrUnboundVenueOrder)
}

// TestOnOpenFilled verifies the buy fill handoff: the virtual order moves to
// the close ladder and its sell leg is placed at the laddered close price.
func TestOnOpenFilled(t *testing.T) {
	s, venue, b := newSchedulerWithBook(t)

	order, err := book.NewVirtualOrder(95, 100, 1, book.Long, 1, 0.0002)
	require.NoError(t, err)
	require.NotNil(t, b.AddOrder(order))

	buyID, err := venue.PlaceLimit(models.Buy, order.OpenPrice(), order.Quantity())
	require.NoError(t, err)
	require.NoError(t, s.Bind(order, buyID))

	filled, err := s.OnOpenFilled(buyID)
	require.NoError(t, err)
	assert.Same(t, order, filled)
	assert.Equal(t, book.StatusClosing, order.Status())

	sell := venue.lastPlaced(t)
	assert.Equal(t, models.Sell, sell.side)
	assert.InDelta(t, 100.2, sell.price, 1e-9, "sell leg at the laddered close price")
	assert.InDelta(t, order.Quantity(), sell.quantity, 1e-9)

	bound, ok := s.Bound(order)
	require.True(t, ok)
	assert.Equal(t, sell.id, bound, "rebound to the sell leg")

	// the sell leg fills: order archived, binding dropped
	closed, err := s.OnCloseFilled(sell.id)
	require.NoError(t, err)
	assert.Same(t, order, closed)
	assert.Equal(t, book.StatusClosed, order.Status())
	require.Len(t, b.ClosedOrders(), 1)
	_, stillBound := s.Bound(order)
	assert.False(t, stillBound)
}

func TestOnCanceledUnbindsOnly(t *testing.T) {
	s, venue, b := newSchedulerWithBook(t)

	order, err := book.NewVirtualOrder(90, 100, 1, book.Long, 1, 0.0002)
	require.NoError(t, err)
	require.NotNil(t, b.AddOrder(order))

	venueID, err := venue.PlaceLimit(models.Buy, order.OpenPrice(), order.Quantity())
	require.NoError(t, err)
	require.NoError(t, s.Bind(order, venueID))

	canceled, err := s.OnCanceled(venueID)
	require.NoError(t, err)
	assert.Same(t, order, canceled)
	_, ok := s.Bound(order)
	assert.False(t, ok)

	// the book is untouched, the caller decides what to do next
	assert.Equal(t, 1, b.OpenLadder().Len())
	assert.Equal(t, book.StatusOpening, order.Status())
}

// TestUnknownVenueOrder verifies events for IDs the scheduler never bound are
// reported as the fatal desync error.
func TestUnknownVenueOrder(t *testing.T) {
	s, _, _ := newSchedulerWithBook(t)

	_, err := s.OnOpenFilled(404)
	assert.ErrorIs(t, err, ErrUnboundVenueOrder)

	_, err = s.OnCloseFilled(404)
	assert.ErrorIs(t, err, ErrUnboundVenueOrder)

	_, err = s.OnCanceled(404)
	assert.ErrorIs(t, err, ErrUnboundVenueOrder)
}
