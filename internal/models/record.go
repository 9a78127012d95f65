package models

import "time"

// StatusRecord is a per-bar snapshot of the strategy's account and order-book
// totals, written to the analytics database once per bar.
type StatusRecord struct {
	OpenTime time.Time `json:"open_time"` // bar open time
	Version  string    `json:"version"`   // strategy run version
	Price    float64   `json:"price"`     // market price at snapshot time

	// Incremental tallies, reset every bar.
	Opening Tally `json:"opening"` // new open maker orders this bar
	Closing Tally `json:"closing"` // new close maker orders this bar
	Opened  Tally `json:"opened"`  // open orders filled this bar
	Closed  Tally `json:"closed"`  // close orders filled this bar

	// Cumulative tallies over the whole run.
	CumOpening Tally `json:"cum_opening"`
	CumClosing Tally `json:"cum_closing"`
	CumOpened  Tally `json:"cum_opened"`
	CumClosed  Tally `json:"cum_closed"`

	Cash            float64 `json:"cash"`             // cash balance, loaned funds included
	Loan            float64 `json:"loan"`             // outstanding loaned funds
	HoldingQuantity float64 `json:"holding_quantity"` // actual position size
	HoldingValue    float64 `json:"holding_value"`    // actual position market value
	TotalValue      float64 `json:"total_value"`      // cash + holding value

	ExpectedClosingProfit     float64 `json:"expected_closing_profit"`      // resting close value - resting close cost
	ActualClosedProfit        float64 `json:"actual_closed_profit"`         // filled close value - filled close cost
	ExpectedMarketCloseProfit float64 `json:"expected_market_close_profit"` // mark-to-market of resting closes
	ExpectedClosedProfit      float64 `json:"expected_closed_profit"`       // actual + expected closing profit
	ExpectedHoldingValue      float64 `json:"expected_holding_value"`       // resting close value
	ExpectedTotalValue        float64 `json:"expected_total_value"`         // cash + expected holding value
	ActualNetValue            float64 `json:"actual_net_value"`             // total value - loan
	ExpectedNetValue          float64 `json:"expected_net_value"`           // net value - mark-to-market loss
	AvgProfitPerClosedOrder   float64 `json:"avg_profit_per_closed_order"`
}

// Tally aggregates order counts, base quantity, quote value and open-side cost
// for one class of order activity.
type Tally struct {
	Num      int     `json:"num"`
	Quantity float64 `json:"quantity"`
	Value    float64 `json:"value"`
	Cost     float64 `json:"cost"` // quantity * open price; meaningful for close-side tallies
}

// Add accumulates one order into the tally.
func (t *Tally) Add(quantity, value, cost float64) {
	t.Num++
	t.Quantity += quantity
	t.Value += value
	t.Cost += cost
}

// Sub removes one order from the tally.
func (t *Tally) Sub(quantity, value, cost float64) {
	t.Num--
	t.Quantity -= quantity
	t.Value -= value
	t.Cost -= cost
}

// ActionRecord captures one virtual-order lifecycle event for the analytics
// database: a placement, fill, or cancellation with the order's economics at
// that moment.
type ActionRecord struct {
	Version    string    `json:"version"`
	ActionTime time.Time `json:"action_time"`
	// Order status code: 1 opening, 2 opened, 3 closing, 4 closed, 5 canceled, -1 unknown.
	Status             int     `json:"status"`
	OpenPrice          float64 `json:"open_price"`
	ClosePrice         float64 `json:"close_price"`
	Quantity           float64 `json:"quantity"`
	OpenCost           float64 `json:"open_cost"` // open price * quantity
	ExpectedGrossValue float64 `json:"expected_gross_value"`
	ActualGrossValue   float64 `json:"actual_gross_value"`
	ExpectedCommission float64 `json:"expected_commission"`
	ActualCommission   float64 `json:"actual_commission"`
}
