package exchange

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"maker-vol-bot-go/internal/logger"
	"maker-vol-bot-go/internal/models"
)

// BacktestExchange 实现了 Venue 接口，用于模拟订单执行场所以进行回测。
//
// 策略是maker-only，所有挂单都按挂单价成交并收取maker佣金。
// 借贷资金通过AddCash进出现金账户，借贷的追踪由策略负责。
type BacktestExchange struct {
	symbol       string
	initialCash  float64
	cash         float64
	position     float64 // 持仓币量
	currentPrice float64
	currentTime  time.Time

	orders      map[int64]*models.VenueOrder
	nextOrderID int64

	commissionRate float64 // maker佣金率
	totalFees      float64

	equityCurve []float64
	handler     func(models.VenueEvent)

	mu sync.Mutex
}

// NewBacktestExchange 创建一个新的 BacktestExchange 实例
func NewBacktestExchange(cfg *models.Config) *BacktestExchange {
	return &BacktestExchange{
		symbol:         cfg.Symbol,
		initialCash:    cfg.InitialCash,
		cash:           cfg.InitialCash,
		orders:         make(map[int64]*models.VenueOrder),
		nextOrderID:    1,
		commissionRate: cfg.CommissionRate,
		equityCurve:    make([]float64, 0, 10000),
	}
}

// OnEvent 注册订单事件回调。handler在SetPrice/CancelAllOpenOrders内
// 的锁外被调用，可以安全地再次调用场所方法。
func (e *BacktestExchange) OnEvent(handler func(models.VenueEvent)) {
	e.handler = handler
}

// SetPrice 是回测的核心，模拟价格变动并触发挂单成交检查。
// 按O->L->H->C的路径模拟K线内部价格行为，比只用高低点更精确。
// 每个价格点的成交事件在进入下一个价格点之前派发，
// 因此handler在本根K线内挂出的新平仓单仍有机会在后续价格点成交。
func (e *BacktestExchange) SetPrice(open, high, low, close float64, timestamp time.Time) {
	e.mu.Lock()
	e.currentTime = timestamp
	e.mu.Unlock()

	for _, price := range []float64{open, low, high, close} {
		e.fillLimitOrdersAt(price)
	}

	e.mu.Lock()
	e.currentPrice = close
	equity := e.cash + e.position*close
	e.equityCurve = append(e.equityCurve, equity)
	e.mu.Unlock()
}

// fillLimitOrdersAt 在指定价格点结算所有可成交的挂单，并在锁外派发事件
func (e *BacktestExchange) fillLimitOrdersAt(price float64) {
	e.mu.Lock()
	var orderedIDs []int64
	for id := range e.orders {
		orderedIDs = append(orderedIDs, id)
	}
	sort.Slice(orderedIDs, func(i, j int) bool { return orderedIDs[i] < orderedIDs[j] })

	var events []models.VenueEvent
	for _, orderID := range orderedIDs {
		order := e.orders[orderID]
		if order.Status != "NEW" {
			continue
		}
		shouldFill := (order.Side == models.Buy && price <= order.Price) ||
			(order.Side == models.Sell && price >= order.Price)
		if !shouldFill {
			continue
		}

		// maker成交 按挂单价结算
		order.Status = "FILLED"
		fee := order.Price * order.Quantity * e.commissionRate
		e.totalFees += fee
		if order.Side == models.Buy {
			e.cash -= order.Price*order.Quantity + fee
			e.position += order.Quantity
		} else {
			e.cash += order.Price*order.Quantity - fee
			e.position -= order.Quantity
		}

		events = append(events, models.VenueEvent{
			Type:     models.VenueOrderFilled,
			OrderID:  order.ID,
			Side:     order.Side,
			Price:    order.Price,
			Quantity: order.Quantity,
			Time:     e.currentTime,
		})
	}
	e.mu.Unlock()

	e.dispatch(events)
}

func (e *BacktestExchange) dispatch(events []models.VenueEvent) {
	if e.handler == nil {
		return
	}
	for _, ev := range events {
		e.handler(ev)
	}
}

// PlaceLimit 提交一笔限价单
func (e *BacktestExchange) PlaceLimit(side models.Side, price, quantity float64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if price <= 0 || quantity <= 0 {
		return 0, fmt.Errorf("invalid limit order: price=%v quantity=%v", price, quantity)
	}
	order := &models.VenueOrder{
		ID:       e.nextOrderID,
		Symbol:   e.symbol,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		Status:   "NEW",
	}
	e.orders[order.ID] = order
	e.nextOrderID++
	return order.ID, nil
}

// Cancel 撤销一笔挂单。调度器撤换挂单走这条路径，不派发事件，
// 因为调度器随后立即重新绑定新挂单。
func (e *BacktestExchange) Cancel(orderID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok {
		return fmt.Errorf("订单 ID %d 在回测中未找到", orderID)
	}
	if order.Status != "NEW" {
		return fmt.Errorf("订单 ID %d 状态为 %s 无法撤销", orderID, order.Status)
	}
	order.Status = "CANCELED"
	return nil
}

// CancelAllOpenOrders 撤销所有挂单并派发撤销事件。
// 订单簿重构时由策略调用，策略依赖撤销事件回补买单占用的借贷资金。
func (e *BacktestExchange) CancelAllOpenOrders() error {
	e.mu.Lock()
	var events []models.VenueEvent
	for _, order := range e.orders {
		if order.Status != "NEW" {
			continue
		}
		order.Status = "CANCELED"
		events = append(events, models.VenueEvent{
			Type:     models.VenueOrderCanceled,
			OrderID:  order.ID,
			Side:     order.Side,
			Price:    order.Price,
			Quantity: order.Quantity,
			Time:     e.currentTime,
		})
	}
	e.mu.Unlock()

	// 按订单号升序派发 保证回测结果可复现
	sort.Slice(events, func(i, j int) bool { return events[i].OrderID < events[j].OrderID })
	e.dispatch(events)
	return nil
}

func (e *BacktestExchange) CurrentPrice() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentPrice
}

func (e *BacktestExchange) AvailableCash() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cash
}

// AddCash 调整可用现金，delta为正表示借入资金，为负表示归还
func (e *BacktestExchange) AddCash(delta float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cash += delta
	if e.cash < 0 {
		logger.S().Warnf("现金余额为负: %v", e.cash)
	}
}

// Position 当前持仓币量
func (e *BacktestExchange) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// TotalValue 总资产 = 现金 + 持仓市值
func (e *BacktestExchange) TotalValue() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cash + e.position*e.currentPrice
}

// TotalFees 累计佣金支出
func (e *BacktestExchange) TotalFees() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFees
}

// InitialCash 初始资金
func (e *BacktestExchange) InitialCash() float64 { return e.initialCash }

// EquityCurve 返回每根K线收盘后的权益序列
func (e *BacktestExchange) EquityCurve() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]float64, len(e.equityCurve))
	copy(out, e.equityCurve)
	return out
}

// OpenOrders 返回当前所有NEW状态的挂单
func (e *BacktestExchange) OpenOrders() []models.VenueOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.VenueOrder, 0)
	for _, order := range e.orders {
		if order.Status == "NEW" {
			out = append(out, *order)
		}
	}
	return out
}

// Order 按订单号查找挂单副本
func (e *BacktestExchange) Order(orderID int64) (models.VenueOrder, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[orderID]
	if !ok {
		return models.VenueOrder{}, false
	}
	return *order, true
}
