package exchange

import (
	"testing"
	"time"

	"maker-vol-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExchange() *BacktestExchange {
	return NewBacktestExchange(&models.Config{
		Symbol:         "BTCUSDT",
		InitialCash:    10000,
		CommissionRate: 0.001,
	})
}

func TestPlaceLimitValidation(t *testing.T) {
	e := newTestExchange()

	_, err := e.PlaceLimit(models.Buy, 0, 1)
	assert.Error(t, err)
	_, err = e.PlaceLimit(models.Buy, 100, -1)
	assert.Error(t, err)

	id, err := e.PlaceLimit(models.Buy, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	order, ok := e.Order(id)
	require.True(t, ok)
	assert.Equal(t, "NEW", order.Status)
	assert.Len(t, e.OpenOrders(), 1)
}

// TestBuyFillOnLowPath verifies a resting buy fills when the intra-bar path
// touches its limit price, settling at the limit price with maker commission.
func TestBuyFillOnLowPath(t *testing.T) {
	e := newTestExchange()
	var events []models.VenueEvent
	e.OnEvent(func(ev models.VenueEvent) { events = append(events, ev) })

	id, err := e.PlaceLimit(models.Buy, 95, 1)
	require.NoError(t, err)

	now := time.Now()
	e.SetPrice(100, 105, 90, 98, now)

	require.Len(t, events, 1)
	assert.Equal(t, models.VenueOrderFilled, events[0].Type)
	assert.Equal(t, id, events[0].OrderID)
	assert.Equal(t, models.Buy, events[0].Side)
	assert.Equal(t, 95.0, events[0].Price, "maker fill settles at the limit price")

	fee := 95.0 * 0.001
	assert.InDelta(t, 10000-95-fee, e.AvailableCash(), 1e-9)
	assert.InDelta(t, 1.0, e.Position(), 1e-9)
	assert.InDelta(t, fee, e.TotalFees(), 1e-9)
	assert.Equal(t, 98.0, e.CurrentPrice())

	order, ok := e.Order(id)
	require.True(t, ok)
	assert.Equal(t, "FILLED", order.Status)
	assert.Empty(t, e.OpenOrders())
}

func TestSellNotFilledBelowLimit(t *testing.T) {
	e := newTestExchange()

	_, err := e.PlaceLimit(models.Sell, 110, 1)
	require.NoError(t, err)

	e.SetPrice(100, 105, 90, 98, time.Now())
	assert.Len(t, e.OpenOrders(), 1, "sell above the bar high stays resting")
}

// TestSellChainingWithinBar verifies a sell placed by the fill handler can
// still fill at a later price point of the same bar.
func TestSellChainingWithinBar(t *testing.T) {
	e := newTestExchange()
	var fills []models.VenueEvent
	e.OnEvent(func(ev models.VenueEvent) {
		fills = append(fills, ev)
		if ev.Side == models.Buy && ev.Type == models.VenueOrderFilled {
			_, err := e.PlaceLimit(models.Sell, 96, ev.Quantity)
			require.NoError(t, err)
		}
	})

	_, err := e.PlaceLimit(models.Buy, 95, 1)
	require.NoError(t, err)

	// path O=100 -> L=90 (buy fills, handler posts sell 96) -> H=105 (sell fills)
	e.SetPrice(100, 105, 90, 98, time.Now())

	require.Len(t, fills, 2)
	assert.Equal(t, models.Buy, fills[0].Side)
	assert.Equal(t, models.Sell, fills[1].Side)
	assert.Equal(t, 96.0, fills[1].Price)
	assert.InDelta(t, 0.0, e.Position(), 1e-9, "round trip leaves a flat position")
}

func TestCancelIsSilent(t *testing.T) {
	e := newTestExchange()
	var events []models.VenueEvent
	e.OnEvent(func(ev models.VenueEvent) { events = append(events, ev) })

	id, err := e.PlaceLimit(models.Buy, 95, 1)
	require.NoError(t, err)
	require.NoError(t, e.Cancel(id))

	assert.Empty(t, events, "scheduler replace path gets no cancel event")
	order, _ := e.Order(id)
	assert.Equal(t, "CANCELED", order.Status)

	// double cancel and unknown IDs are errors
	assert.Error(t, e.Cancel(id))
	assert.Error(t, e.Cancel(404))
}

// TestCancelAllOpenOrders verifies the rebase path cancels everything and
// dispatches the cancel events in order-ID order.
func TestCancelAllOpenOrders(t *testing.T) {
	e := newTestExchange()
	var events []models.VenueEvent
	e.OnEvent(func(ev models.VenueEvent) { events = append(events, ev) })

	id1, _ := e.PlaceLimit(models.Buy, 95, 1)
	id2, _ := e.PlaceLimit(models.Buy, 90, 1)
	id3, _ := e.PlaceLimit(models.Sell, 110, 1)

	require.NoError(t, e.CancelAllOpenOrders())

	require.Len(t, events, 3)
	assert.Equal(t, []int64{id1, id2, id3}, []int64{events[0].OrderID, events[1].OrderID, events[2].OrderID})
	for _, ev := range events {
		assert.Equal(t, models.VenueOrderCanceled, ev.Type)
	}
	assert.Empty(t, e.OpenOrders())
}

func TestCashAndEquity(t *testing.T) {
	e := newTestExchange()

	e.AddCash(500)
	assert.Equal(t, 10500.0, e.AvailableCash())
	e.AddCash(-500)
	assert.Equal(t, 10000.0, e.AvailableCash())

	e.SetPrice(100, 100, 100, 100, time.Now())
	e.SetPrice(101, 101, 101, 101, time.Now())
	curve := e.EquityCurve()
	require.Len(t, curve, 2, "one equity point per bar")
	assert.Equal(t, 10000.0, curve[0])

	assert.Equal(t, 10000.0, e.TotalValue())
	assert.Equal(t, 10000.0, e.InitialCash())
}
