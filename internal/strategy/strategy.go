package strategy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"maker-vol-bot-go/internal/book"
	"maker-vol-bot-go/internal/exchange"
	"maker-vol-bot-go/internal/logger"
	"maker-vol-bot-go/internal/models"
	"maker-vol-bot-go/internal/persistence"
	"maker-vol-bot-go/internal/scheduler"

	"github.com/jxskiss/base62"
)

// ErrPriceBelowBand open_price低于开仓最低价，杠杆率无定义。
// 这种价位在清算安全带之下，绝不能被调度挂单。
var ErrPriceBelowBand = errors.New("open price is below the liquidation-safe band")

// Strategy 只做Maker的做多波动率策略。
// 深度左侧交易：在盘口下方挂满开仓买单，成交后在上方按利润阶梯挂平仓卖单。
//
// 每根K线的操作逻辑：
// 1.状态数据落库 重置增量统计
// 2.价格创新高时重构订单簿并撤销所有场所挂单
// 3.在当前价格下方挂满开仓单
// 场所事件（成交/撤销）通过HandleVenueEvent驱动订单生命周期。
type Strategy struct {
	cfg   *models.Config
	venue exchange.Venue
	sched *scheduler.OrderScheduler
	book  *book.VirtualOrderBook
	rec   persistence.Recorder

	version   string
	direction book.Direction

	// 杠杆相关
	principal float64 // 本金
	loan      float64 // 借贷资金

	top    float64 // 顶部
	bottom float64 // 底部

	betCashSize float64 // 下单金额

	maxOpenPrice  float64
	minOpenPrice  float64
	maxClosePrice float64
	minClosePrice float64

	closeSlotNum int

	// 增量统计 每根K线重置
	opening models.Tally
	closing models.Tally
	opened  models.Tally
	closed  models.Tally
	// 累计统计
	cumOpening models.Tally
	cumClosing models.Tally
	cumOpened  models.Tally
	cumClosed  models.Tally

	now      time.Time
	fatalErr error
}

// New 构造策略实例。场所事件回调需要调用方注册：
// venue.OnEvent(strategy.HandleVenueEvent)
func New(cfg *models.Config, venue exchange.Venue, rec persistence.Recorder) *Strategy {
	s := &Strategy{
		cfg:       cfg,
		venue:     venue,
		sched:     scheduler.NewOrderScheduler(venue),
		rec:       rec,
		version:   generateVersion(),
		direction: book.Long,
		principal: venue.AvailableCash(),
	}
	logger.S().Infof("Strategy Version: %s", s.version)
	return s
}

// generateVersion 生成本次运行的随机版本号，用于区分分析数据
func generateVersion() string {
	return string(base62.FormatInt(time.Now().UnixNano()))
}

// Version 本次运行的版本号
func (s *Strategy) Version() string { return s.version }

// Book 当前虚拟订单簿
func (s *Strategy) Book() *book.VirtualOrderBook { return s.book }

// Scheduler 订单调度器
func (s *Strategy) Scheduler() *scheduler.OrderScheduler { return s.sched }

// Loan 当前借贷资金总额
func (s *Strategy) Loan() float64 { return s.loan }

// Next 处理一根K线。场所必须在调用之前完成本根K线的价格推进。
// 返回错误表示调度器与场所已失去同步，必须硬停止。
func (s *Strategy) Next(k models.Kline) error {
	if s.fatalErr != nil {
		return s.fatalErr
	}
	s.now = k.OpenTime

	s.logSummary()
	s.uploadStatus()
	s.resetIncremental()
	if err := s.updateParam(); err != nil {
		return err
	}
	if s.fatalErr != nil {
		// 撤单事件可能在updateParam内触发致命错误
		return s.fatalErr
	}

	// 向下挂满开单
	currentPrice := s.venue.CurrentPrice()
	index := s.book.OpenLadder().Index()
	currentSlot, err := index.PriceToSlot(currentPrice)
	if err != nil {
		return err
	}

	for diff := 0; diff < s.cfg.OpeningOrderNum; diff++ {
		slot := currentSlot + diff
		if !index.CheckSlot(slot) {
			continue
		}
		if s.venue.AvailableCash() < s.betCashSize {
			break
		}
		openPrice := index.SlotToPrice(slot)
		leverage, err := s.LeverageByPrice(openPrice)
		if err != nil {
			logger.S().Errorf("开仓价位越过安全带 跳过: %v", err)
			continue
		}
		loan := s.betCashSize * (leverage - 1)
		quantity := s.betCashSize / currentPrice * leverage

		order, err := book.NewVirtualOrder(openPrice, openPrice, quantity, s.direction, leverage, s.cfg.CommissionRate)
		if err != nil {
			return err
		}
		accepted := s.book.AddOrder(order)
		if accepted == nil {
			// 档位已被占用 本周期跳过该价位
			continue
		}

		// 借入杠杆资金
		s.loan += loan
		s.venue.AddCash(loan)

		venueID, err := s.venue.PlaceLimit(models.Buy, accepted.OpenPrice(), accepted.Quantity())
		if err != nil {
			return err
		}
		if err := s.sched.Bind(accepted, venueID); err != nil {
			return err
		}

		s.analysisOpeningOrder(accepted.OpenPrice(), accepted.Quantity())
		s.uploadAction(accepted)
	}
	return s.fatalErr
}

// HandleVenueEvent 处理场所推送的订单事件，由场所事件回调调用。
// 未注册订单号的事件说明调度器已与场所失去同步，记为致命错误。
func (s *Strategy) HandleVenueEvent(ev models.VenueEvent) {
	if s.fatalErr != nil {
		return
	}
	if !ev.Time.IsZero() {
		s.now = ev.Time
	}

	switch ev.Type {
	case models.VenueOrderFilled:
		if ev.Side == models.Buy {
			s.onOpenFilled(ev)
		} else {
			s.onCloseFilled(ev)
		}
	case models.VenueOrderCanceled, models.VenueOrderRejected:
		s.onCanceled(ev)
	}
}

// Err 返回致命错误（如有）
func (s *Strategy) Err() error { return s.fatalErr }

// onOpenFilled 开仓买单成交：转入平仓集合并挂出平仓卖单
func (s *Strategy) onOpenFilled(ev models.VenueEvent) {
	virtual, err := s.sched.OnOpenFilled(ev.OrderID)
	if err != nil {
		s.fatalErr = err
		return
	}
	if virtual == nil {
		return
	}
	s.uploadAction(virtual)
	s.analysisOpenedOrder(virtual.OpenPrice(), ev.Quantity)
	s.analysisClosingOrder(virtual.OpenPrice(), virtual.ClosePrice(), ev.Quantity)
}

// onCloseFilled 平仓卖单成交：归还借贷资金并归档订单
func (s *Strategy) onCloseFilled(ev models.VenueEvent) {
	virtual, err := s.sched.OnCloseFilled(ev.OrderID)
	if err != nil {
		s.fatalErr = err
		return
	}
	if virtual == nil {
		return
	}
	s.uploadAction(virtual)

	// 归还借贷资金
	loan := virtual.Loan()
	s.loan -= loan
	s.venue.AddCash(-loan)

	s.analysisClosedOrder(virtual.OpenPrice(), virtual.ClosePrice(), ev.Quantity)
}

// onCanceled 场所挂单被撤销或拒绝
func (s *Strategy) onCanceled(ev models.VenueEvent) {
	virtual, err := s.sched.OnCanceled(ev.OrderID)
	if err != nil {
		s.fatalErr = err
		return
	}
	if virtual == nil {
		return
	}
	if ev.Side == models.Buy {
		// 开仓单被撤销 归还占用的借贷资金
		s.book.RemoveOpenOrder(virtual)
		if err := virtual.UpdateStatusCanceled(); err != nil {
			logger.S().Warnf("撤销状态转换失败: %v", err)
		}
		s.uploadAction(virtual)
		loan := virtual.Loan()
		s.loan -= loan
		s.venue.AddCash(-loan)
	} else {
		// 平仓单被撤销只发生在订单簿重构时 持仓和借贷保持不变
		logger.S().Debugf("平仓挂单被撤销: venue=%d", ev.OrderID)
	}
}

// updateParam 更新所有参数。
// 当顶部不存在或当前价格创新高时，重算资金和价格带，
// 重构订单簿并撤销所有场所挂单。创新高时默认没有任何close order。
func (s *Strategy) updateParam() error {
	price := s.venue.CurrentPrice()
	if s.top != 0 && s.top >= price {
		return nil
	}

	cash := s.venue.AvailableCash()
	s.principal = cash - s.loan
	s.top = price
	s.bottom = price * 0.5
	s.betCashSize = cash / float64(s.cfg.CashSlotNum)

	s.maxOpenPrice = s.top * s.cfg.PctMaxOpenPrice
	s.minOpenPrice = s.top * s.cfg.PctMinOpenPrice
	s.maxClosePrice = s.top * s.cfg.PctMaxClosePrice
	s.minClosePrice = s.top * s.cfg.PctMinClosePrice

	// close档位数量与open档位保持相同的价格粒度
	s.closeSlotNum = int(math.Floor(
		(s.maxClosePrice - s.minClosePrice) * float64(s.cfg.OpenPriceSlotNum) / (s.maxOpenPrice - s.minOpenPrice)))

	newBook, err := book.NewVirtualOrderBook(book.BookParams{
		MaxOpenPrice:   s.maxOpenPrice,
		MinOpenPrice:   s.minOpenPrice,
		MaxClosePrice:  s.maxClosePrice,
		MinClosePrice:  s.minClosePrice,
		OpenSlotNum:    s.cfg.OpenPriceSlotNum,
		CloseSlotNum:   s.closeSlotNum,
		MinProfitPct:   s.cfg.MinProfitPct,
		CloseStepPct:   s.cfg.CloseStepPct,
		MaxProfitPct:   s.cfg.MaxProfitPct,
		Direction:      s.direction,
		CommissionRate: s.cfg.CommissionRate,
	})
	if err != nil {
		return fmt.Errorf("rebuild order book: %w", err)
	}
	s.book = newBook
	s.sched.LinkOrderBook(newBook)

	logger.S().Infof("价格创新高 重构订单簿: top=%v open=[%v,%v] close=[%v,%v] closeSlots=%d betCash=%v",
		s.top, s.minOpenPrice, s.maxOpenPrice, s.minClosePrice, s.maxClosePrice, s.closeSlotNum, s.betCashSize)

	// 清除所有场所挂单 撤销事件会回补买单占用的借贷资金
	return s.venue.CancelAllOpenOrders()
}

// LeverageByPrice 给定open_price计算杠杆率，上限为MaxLeverage
func (s *Strategy) LeverageByPrice(openPrice float64) (float64, error) {
	if openPrice <= s.minOpenPrice {
		return 0, fmt.Errorf("%w: %v <= %v", ErrPriceBelowBand, openPrice, s.minOpenPrice)
	}
	return math.Min(openPrice/(openPrice-s.minOpenPrice), s.cfg.MaxLeverage), nil
}

// resetIncremental 重置增量统计
func (s *Strategy) resetIncremental() {
	s.opening = models.Tally{}
	s.closing = models.Tally{}
	s.opened = models.Tally{}
	s.closed = models.Tally{}
}

// analysisOpeningOrder 新增开仓挂单
func (s *Strategy) analysisOpeningOrder(openPrice, quantity float64) {
	value := quantity * openPrice
	s.opening.Add(quantity, value, 0)
	s.cumOpening.Add(quantity, value, 0)
}

// analysisOpenedOrder 开仓挂单成交
func (s *Strategy) analysisOpenedOrder(openPrice, quantity float64) {
	value := quantity * openPrice
	s.opening.Sub(quantity, value, 0)
	s.cumOpening.Sub(quantity, value, 0)
	s.opened.Add(quantity, value, 0)
	s.cumOpened.Add(quantity, value, 0)
}

// analysisClosingOrder 新增平仓挂单
func (s *Strategy) analysisClosingOrder(openPrice, closePrice, quantity float64) {
	s.closing.Add(quantity, quantity*closePrice, quantity*openPrice)
	s.cumClosing.Add(quantity, quantity*closePrice, quantity*openPrice)
}

// analysisClosedOrder 平仓挂单成交
func (s *Strategy) analysisClosedOrder(openPrice, closePrice, quantity float64) {
	value := quantity * closePrice
	cost := quantity * openPrice
	s.closing.Sub(quantity, value, cost)
	s.cumClosing.Sub(quantity, value, cost)
	s.closed.Add(quantity, value, cost)
	s.cumClosed.Add(quantity, value, cost)
}

// --- 派生指标 ---

// ExpectedClosingProfit 期望未成交收益 = 平仓挂单总价 - 平仓挂单成本
func (s *Strategy) ExpectedClosingProfit() float64 {
	return s.cumClosing.Value - s.cumClosing.Cost
}

// ActualClosedProfit 实际已成交收益 = 平仓成交总价 - 平仓成交成本
func (s *Strategy) ActualClosedProfit() float64 {
	return s.cumClosed.Value - s.cumClosed.Cost
}

// ExpectedMarketCloseProfit 市价平仓期望亏损 = 平仓挂单量*市价 - 平仓挂单总价
func (s *Strategy) ExpectedMarketCloseProfit() float64 {
	return s.cumClosing.Quantity*s.venue.CurrentPrice() - s.cumClosing.Value
}

// ExpectedHoldingValue 期望持仓市值 = 平仓挂单总价
func (s *Strategy) ExpectedHoldingValue() float64 {
	return s.cumClosing.Value
}

// ActualNetValue 实际净资产 = 总资产 - 借贷资金。归零则视为爆仓。
func (s *Strategy) ActualNetValue() float64 {
	return s.venue.TotalValue() - s.loan
}

// ExpectedNetValue 期望净资产 = 净资产 - 平仓挂单亏损
func (s *Strategy) ExpectedNetValue() float64 {
	return s.ActualNetValue() - s.ExpectedMarketCloseProfit()
}

// AvgProfitPerClosedOrder 已成交订单平均每单盈利
func (s *Strategy) AvgProfitPerClosedOrder() float64 {
	if s.cumClosed.Num == 0 {
		return 0
	}
	return (s.cumClosed.Value - s.cumClosed.Cost) / float64(s.cumClosed.Num)
}

// uploadStatus 状态数据落库
func (s *Strategy) uploadStatus() {
	cash := s.venue.AvailableCash()
	totalValue := s.venue.TotalValue()

	status := &models.StatusRecord{
		OpenTime: s.now,
		Version:  s.version,
		Price:    s.venue.CurrentPrice(),

		Opening: s.opening,
		Closing: s.closing,
		Opened:  s.opened,
		Closed:  s.closed,

		CumOpening: s.cumOpening,
		CumClosing: s.cumClosing,
		CumOpened:  s.cumOpened,
		CumClosed:  s.cumClosed,

		Cash:            cash,
		Loan:            s.loan,
		HoldingQuantity: s.venue.Position(),
		HoldingValue:    totalValue - cash,
		TotalValue:      totalValue,

		ExpectedClosingProfit:     s.ExpectedClosingProfit(),
		ActualClosedProfit:        s.ActualClosedProfit(),
		ExpectedMarketCloseProfit: s.ExpectedMarketCloseProfit(),
		ExpectedClosedProfit:      s.ActualClosedProfit() + s.ExpectedClosingProfit(),
		ExpectedHoldingValue:      s.ExpectedHoldingValue(),
		ExpectedTotalValue:        cash + s.ExpectedHoldingValue(),
		ActualNetValue:            s.ActualNetValue(),
		ExpectedNetValue:          s.ExpectedNetValue(),
		AvgProfitPerClosedOrder:   s.AvgProfitPerClosedOrder(),
	}
	if err := s.rec.RecordStatus(status); err != nil {
		logger.S().Errorf("状态数据落库失败: %v", err)
	}
}

// uploadAction 订单动作数据落库
func (s *Strategy) uploadAction(order *book.VirtualOrder) {
	if order == nil {
		return
	}
	action := &models.ActionRecord{
		Version:            s.version,
		ActionTime:         s.now,
		Status:             actionStatusCode(order.Status()),
		OpenPrice:          order.OpenPrice(),
		ClosePrice:         order.ClosePrice(),
		Quantity:           order.Quantity(),
		OpenCost:           order.OpenPrice() * order.Quantity(),
		ExpectedGrossValue: order.ExpectedGrossValue(),
		ActualGrossValue:   order.ActualGrossValue(),
		ExpectedCommission: order.ExpectedCommission(),
		ActualCommission:   order.ActualCommission(),
	}
	if err := s.rec.RecordAction(action); err != nil {
		logger.S().Errorf("动作数据落库失败: %v", err)
	}
}

// actionStatusCode 订单状态编码:
// 1.开仓挂单opening 2.已开仓opened 3.平仓挂单closing 4.已平仓closed 5.已取消canceled -1.未知
func actionStatusCode(status book.Status) int {
	switch status {
	case book.StatusOpening:
		return 1
	case book.StatusOpened:
		return 2
	case book.StatusClosing:
		return 3
	case book.StatusClosed:
		return 4
	case book.StatusCanceled:
		return 5
	default:
		return -1
	}
}

// logSummary 每根K线输出一次账户摘要，净资产归零时输出爆仓告警
func (s *Strategy) logSummary() {
	actualNetValue := s.ActualNetValue()
	if actualNetValue <= 0 && s.top != 0 {
		logger.S().Errorf("WARNING 爆仓: 净资产=%v 借贷资金=%v", actualNetValue, s.loan)
	}
	logger.S().Infof(
		"价格:%.2f\t净资产:%.2f\t期望净资产:%.2f\t现金余额:%.2f\t本金:%.2f\t持仓数量:%.4f\t借贷资金:%.2f\t总资产:%.2f\t期望持仓市值:%.2f\t已成交订单数:%d\t平均每单盈利:%.5f",
		s.venue.CurrentPrice(), actualNetValue, s.ExpectedNetValue(),
		s.venue.AvailableCash(), s.principal, s.venue.Position(), s.loan,
		s.venue.TotalValue(), s.ExpectedHoldingValue(),
		s.cumClosed.Num, s.AvgProfitPerClosedOrder(),
	)
}
