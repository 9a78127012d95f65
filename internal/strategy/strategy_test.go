package strategy

import (
	"sort"
	"testing"
	"time"

	"maker-vol-bot-go/internal/book"
	"maker-vol-bot-go/internal/exchange"
	"maker-vol-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorderStub counts records without touching any storage.
type recorderStub struct {
	statuses int
	actions  int
}

func (r *recorderStub) RecordStatus(*models.StatusRecord) error { r.statuses++; return nil }
func (r *recorderStub) RecordAction(*models.ActionRecord) error { r.actions++; return nil }
func (r *recorderStub) Close() error                            { return nil }

func testConfig() *models.Config {
	return &models.Config{
		Symbol:           "BTCUSDT",
		InitialCash:      10000,
		CommissionRate:   0.0002,
		CashSlotNum:      100,
		OpenPriceSlotNum: 10,
		PctMaxOpenPrice:  0.95,
		PctMinOpenPrice:  0.7,
		PctMaxClosePrice: 1.0,
		PctMinClosePrice: 0.7,
		MinProfitPct:     0.002,
		CloseStepPct:     0.001,
		MaxProfitPct:     0.01,
		OpeningOrderNum:  5,
		MaxLeverage:      100,
	}
}

func newTestStrategy(t *testing.T) (*Strategy, *exchange.BacktestExchange, *recorderStub) {
	t.Helper()
	cfg := testConfig()
	venue := exchange.NewBacktestExchange(cfg)
	rec := &recorderStub{}
	s := New(cfg, venue, rec)
	venue.OnEvent(s.HandleVenueEvent)
	return s, venue, rec
}

func bar(price float64) models.Kline {
	return models.Kline{
		OpenTime: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Open:     price, High: price, Low: price, Close: price,
	}
}

func openOrderPrices(venue *exchange.BacktestExchange) []float64 {
	orders := venue.OpenOrders()
	prices := make([]float64, 0, len(orders))
	for _, o := range orders {
		prices = append(prices, o.Price)
	}
	sort.Float64s(prices)
	return prices
}

// TestFirstBarPlacesOpeningLadder verifies the first bar seeds the book:
// top=100 gives an open band of [70,95] with 10 rungs of 2.5, and only the
// rungs at or below the current price get a buy order.
func TestFirstBarPlacesOpeningLadder(t *testing.T) {
	s, venue, rec := newTestStrategy(t)

	venue.SetPrice(100, 100, 100, 100, time.Now())
	require.NoError(t, s.Next(bar(100)))

	assert.Equal(t, []float64{90, 92.5, 95}, openOrderPrices(venue))
	assert.Equal(t, 3, s.Book().OpenLadder().Len())
	assert.Zero(t, s.Book().CloseLadder().Len())

	// leveraged funding was borrowed into the cash account
	assert.Greater(t, s.Loan(), 0.0)
	assert.InDelta(t, 10000+s.Loan(), venue.AvailableCash(), 1e-9)

	assert.Equal(t, 1, rec.statuses, "one status snapshot per bar")
	assert.Equal(t, 3, rec.actions, "one action record per placed order")
	assert.NotEmpty(t, s.Version())
}

// TestLeverageByPrice pins the leverage curve against the lower band:
// with min_open=70, an order at 80 gets 80/(80-70)=8x; at the band the
// leverage is undefined; close to the band it is capped.
func TestLeverageByPrice(t *testing.T) {
	s, venue, _ := newTestStrategy(t)
	venue.SetPrice(100, 100, 100, 100, time.Now())
	require.NoError(t, s.Next(bar(100)))

	lev, err := s.LeverageByPrice(80)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, lev, 1e-9)

	_, err = s.LeverageByPrice(70)
	assert.ErrorIs(t, err, ErrPriceBelowBand)
	_, err = s.LeverageByPrice(65)
	assert.ErrorIs(t, err, ErrPriceBelowBand)

	lev, err = s.LeverageByPrice(70.1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, lev, "leverage capped at max_leverage")
}

// TestOpenCloseRoundTrip drives one full cycle: buys fill on the way down,
// sell legs appear one profit step above, and a recovering price closes the
// lowest position and repays its loan.
func TestOpenCloseRoundTrip(t *testing.T) {
	s, venue, _ := newTestStrategy(t)

	venue.SetPrice(100, 100, 100, 100, time.Now())
	require.NoError(t, s.Next(bar(100)))

	// all three buys fill; handler posts the sell legs within the same bar
	venue.SetPrice(90, 90.1, 89, 89.5, time.Now())
	require.NoError(t, s.Err())

	assert.Zero(t, s.Book().OpenLadder().Len())
	assert.Equal(t, 3, s.Book().CloseLadder().Len())
	sellPrices := openOrderPrices(venue)
	require.Len(t, sellPrices, 3)
	assert.InDelta(t, 90*1.002, sellPrices[0], 1e-9)
	assert.InDelta(t, 92.5*1.002, sellPrices[1], 1e-9)
	assert.InDelta(t, 95*1.002, sellPrices[2], 1e-9)
	assert.Greater(t, venue.Position(), 0.0)

	loanBefore := s.Loan()
	positionBefore := venue.Position()

	// only the lowest sell leg (90.18) is inside this bar's range
	venue.SetPrice(90, 90.2, 89.9, 90, time.Now())
	require.NoError(t, s.Err())

	require.Len(t, s.Book().ClosedOrders(), 1)
	closed := s.Book().ClosedOrders()[0]
	assert.Equal(t, book.StatusClosed, closed.Status())
	assert.Equal(t, 90.0, closed.OpenPrice())
	assert.InDelta(t, 90*1.002, closed.ClosePrice(), 1e-9)

	assert.InDelta(t, loanBefore-closed.Loan(), s.Loan(), 1e-9, "loan repaid on close fill")
	assert.InDelta(t, positionBefore-closed.Quantity(), venue.Position(), 1e-9)
	assert.Equal(t, 2, s.Book().CloseLadder().Len())
}

// TestRebaseOnNewHigh verifies a new all-time high rebuilds the book around
// the new top and cancels every stale venue order.
func TestRebaseOnNewHigh(t *testing.T) {
	s, venue, _ := newTestStrategy(t)

	venue.SetPrice(100, 100, 100, 100, time.Now())
	require.NoError(t, s.Next(bar(100)))
	oldBook := s.Book()

	venue.SetPrice(105, 105, 105, 105, time.Now())
	require.NoError(t, s.Next(bar(105)))

	assert.NotSame(t, oldBook, s.Book(), "order book rebuilt around the new top")

	// old rungs are gone, the fresh ladder hangs off the new 99.75 band top
	prices := openOrderPrices(venue)
	require.Len(t, prices, 3)
	assert.InDelta(t, 94.5, prices[0], 1e-9)
	assert.InDelta(t, 97.125, prices[1], 1e-9)
	assert.InDelta(t, 99.75, prices[2], 1e-9)
}

func TestNoRebaseBelowTop(t *testing.T) {
	s, venue, _ := newTestStrategy(t)

	venue.SetPrice(100, 100, 100, 100, time.Now())
	require.NoError(t, s.Next(bar(100)))
	oldBook := s.Book()
	ordersBefore := len(venue.OpenOrders())

	venue.SetPrice(99, 99, 99, 99, time.Now())
	require.NoError(t, s.Next(bar(99)))

	assert.Same(t, oldBook, s.Book(), "book survives while below the top")
	assert.GreaterOrEqual(t, len(venue.OpenOrders()), ordersBefore,
		"existing rungs stay, lower rungs may be added")
}

// TestUnboundEventIsFatal verifies an event for an order the scheduler never
// bound latches a fatal error and stops the strategy.
func TestUnboundEventIsFatal(t *testing.T) {
	s, venue, _ := newTestStrategy(t)

	venue.SetPrice(100, 100, 100, 100, time.Now())
	require.NoError(t, s.Next(bar(100)))

	s.HandleVenueEvent(models.VenueEvent{
		Type:    models.VenueOrderFilled,
		OrderID: 404,
		Side:    models.Buy,
		Time:    time.Now(),
	})

	require.Error(t, s.Err())
	assert.ErrorIs(t, s.Next(bar(100)), s.Err())
}
