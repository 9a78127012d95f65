package book

import "fmt"

// Status 订单状态
// 待开仓opening | 已开仓opened | 待平仓closing | 已平仓closed | 已取消canceled
type Status string

const (
	StatusOpening  Status = "opening"
	StatusOpened   Status = "opened"
	StatusClosing  Status = "closing"
	StatusClosed   Status = "closed"
	StatusCanceled Status = "canceled"
)

// VirtualOrder 虚拟订单：一笔带杠杆的多头敞口，先有开仓腿后有平仓腿。
//
// 期望值(expected)在挂单时按计划价格计算，实际值(actual)在成交时冻结。
// 每次open_price/close_price/quantity变更都会递增generation计数器，
// 调度器据此判断是否需要对场所挂单做撤换。
type VirtualOrder struct {
	openPrice  float64
	closePrice float64
	quantity   float64
	direction  Direction
	status     Status
	leverage   float64

	commissionRate float64

	principal              float64 // 本金 = quantity*openPrice/leverage
	loan                   float64 // 借贷资金 = quantity*openPrice - principal
	forcedLiquidationPrice float64 // 强平价格（只作为标记 不触发实际平仓操作）

	expectedGrossValue float64
	actualGrossValue   float64
	expectedCommission float64
	actualCommission   float64

	generation uint64
}

// NewVirtualOrder 创建一个处于opening状态的虚拟订单
func NewVirtualOrder(openPrice, closePrice, quantity float64, dir Direction, leverage, commissionRate float64) (*VirtualOrder, error) {
	if openPrice <= 0 {
		return nil, fmt.Errorf("open price: %w: %v", ErrPriceNotPositive, openPrice)
	}
	if closePrice <= 0 {
		return nil, fmt.Errorf("close price: %w: %v", ErrPriceNotPositive, closePrice)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrQuantityNotPositive, quantity)
	}
	if leverage <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrLeverageNotPositive, leverage)
	}
	if dir != Long && dir != Short {
		return nil, fmt.Errorf("direction must be %q or %q, not %q", Long, Short, dir)
	}

	o := &VirtualOrder{
		openPrice:      openPrice,
		closePrice:     closePrice,
		quantity:       quantity,
		direction:      dir,
		status:         StatusOpening,
		leverage:       leverage,
		commissionRate: commissionRate,
	}
	o.recomputeMargin()
	o.expectedGrossValue = (closePrice - openPrice) * quantity
	o.expectedCommission = (openPrice + closePrice) * commissionRate * quantity
	return o, nil
}

func (o *VirtualOrder) OpenPrice() float64              { return o.openPrice }
func (o *VirtualOrder) ClosePrice() float64             { return o.closePrice }
func (o *VirtualOrder) Quantity() float64               { return o.quantity }
func (o *VirtualOrder) Direction() Direction            { return o.direction }
func (o *VirtualOrder) Status() Status                  { return o.status }
func (o *VirtualOrder) Leverage() float64               { return o.leverage }
func (o *VirtualOrder) CommissionRate() float64         { return o.commissionRate }
func (o *VirtualOrder) Principal() float64              { return o.principal }
func (o *VirtualOrder) Loan() float64                   { return o.loan }
func (o *VirtualOrder) ForcedLiquidationPrice() float64 { return o.forcedLiquidationPrice }
func (o *VirtualOrder) ExpectedGrossValue() float64     { return o.expectedGrossValue }
func (o *VirtualOrder) ActualGrossValue() float64       { return o.actualGrossValue }
func (o *VirtualOrder) ExpectedCommission() float64     { return o.expectedCommission }
func (o *VirtualOrder) ActualCommission() float64       { return o.actualCommission }

// Generation 返回变更计数，每次价格或数量变更时递增
func (o *VirtualOrder) Generation() uint64 { return o.generation }

// IsBuy 当前挂单腿是否为买单。只在opening或closing状态下有意义。
func (o *VirtualOrder) IsBuy() (bool, error) {
	switch o.status {
	case StatusOpening:
		return o.direction == Long, nil
	case StatusClosing:
		return o.direction == Short, nil
	default:
		return false, fmt.Errorf("%w: is_buy undefined in status %q", ErrIllegalStateChange, o.status)
	}
}

// UpdateOpenPrice 修改开仓价格，只在opening状态下允许。
// 为保证订单总金额不变 按比例调整quantity 并重算保证金和期望值。
func (o *VirtualOrder) UpdateOpenPrice(price float64) error {
	if o.status != StatusOpening {
		return fmt.Errorf("%w: open price can not be updated in status %q", ErrIllegalStateChange, o.status)
	}
	if price <= 0 {
		return fmt.Errorf("%w: %v", ErrPriceNotPositive, price)
	}
	if o.openPrice == price {
		return nil
	}
	if err := o.UpdateQuantity(o.quantity*o.openPrice/price, o.leverage); err != nil {
		return err
	}
	o.openPrice = price
	o.expectedCommission = (o.openPrice + o.closePrice) * o.commissionRate * o.quantity
	o.expectedGrossValue = (o.closePrice - o.openPrice) * o.quantity
	o.recomputeMargin()
	o.generation++
	return nil
}

// UpdateClosePrice 修改平仓价格，closed状态下禁止。
// closing状态下需要重算期望佣金和期望毛利润。
func (o *VirtualOrder) UpdateClosePrice(price float64) error {
	if o.status == StatusClosed {
		return fmt.Errorf("%w: close price can not be updated in status %q", ErrIllegalStateChange, o.status)
	}
	if price <= 0 {
		return fmt.Errorf("%w: %v", ErrPriceNotPositive, price)
	}
	if o.closePrice == price {
		return nil
	}
	o.closePrice = price
	if o.status == StatusClosing {
		o.expectedCommission = o.actualCommission + o.closePrice*o.commissionRate*o.quantity
		o.expectedGrossValue = (o.closePrice - o.openPrice) * o.quantity
	}
	o.generation++
	return nil
}

// UpdateQuantity 修改挂单量和杠杆率，并重算本金/借贷/强平价格
func (o *VirtualOrder) UpdateQuantity(quantity, leverage float64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: %v", ErrQuantityNotPositive, quantity)
	}
	if leverage <= 0 {
		return fmt.Errorf("%w: %v", ErrLeverageNotPositive, leverage)
	}
	o.quantity = quantity
	o.leverage = leverage
	o.recomputeMargin()
	o.generation++
	return nil
}

// UpdateStatusOpened 开仓单成交 opening -> opened
func (o *VirtualOrder) UpdateStatusOpened() error {
	if o.status != StatusOpening {
		return fmt.Errorf("%w: %q -> %q", ErrIllegalStateChange, o.status, StatusOpened)
	}
	o.status = StatusOpened
	return nil
}

// UpdateStatusCanceled 开仓单被撤销 opening/opened -> canceled
func (o *VirtualOrder) UpdateStatusCanceled() error {
	if o.status != StatusOpening && o.status != StatusOpened {
		return fmt.Errorf("%w: %q -> %q", ErrIllegalStateChange, o.status, StatusCanceled)
	}
	o.status = StatusCanceled
	return nil
}

// UpdateStatusClosing 开仓单成交后进入待平仓状态。
// 冻结open阶段产生的实际佣金 并按当前close_price重算期望值。
func (o *VirtualOrder) UpdateStatusClosing() error {
	if o.status != StatusOpening && o.status != StatusOpened {
		return fmt.Errorf("%w: %q -> %q", ErrIllegalStateChange, o.status, StatusClosing)
	}
	o.status = StatusClosing
	o.actualCommission = o.openPrice * o.commissionRate * o.quantity
	o.expectedCommission = o.actualCommission + o.closePrice*o.commissionRate*o.quantity
	o.expectedGrossValue = (o.closePrice - o.openPrice) * o.quantity
	return nil
}

// UpdateStatusClosed 平仓单成交 closing -> closed。
// 冻结实际佣金和实际毛利润。
func (o *VirtualOrder) UpdateStatusClosed() error {
	if o.status != StatusClosing {
		return fmt.Errorf("%w: %q -> %q", ErrIllegalStateChange, o.status, StatusClosed)
	}
	o.status = StatusClosed
	o.actualCommission = o.expectedCommission
	o.actualGrossValue = o.expectedGrossValue
	return nil
}

// ActualNetValue 实际净收益 = 实际毛利润 - 实际佣金。只在closed状态下有定义。
func (o *VirtualOrder) ActualNetValue() (float64, bool) {
	if o.status != StatusClosed {
		return 0, false
	}
	return o.actualGrossValue - o.actualCommission, true
}

func (o *VirtualOrder) recomputeMargin() {
	o.principal = o.quantity * o.openPrice / o.leverage
	o.loan = o.quantity*o.openPrice - o.principal
	if o.direction == Long {
		o.forcedLiquidationPrice = o.openPrice * (1 - 1/o.leverage)
	} else {
		o.forcedLiquidationPrice = o.openPrice * (1 + 1/o.leverage)
	}
}

func (o *VirtualOrder) String() string {
	return fmt.Sprintf("VirtualOrder(%s,%v,%v,%v,%v,%v,%v,%v)",
		o.status, o.openPrice, o.closePrice, o.quantity,
		o.expectedCommission, o.actualCommission, o.expectedGrossValue, o.actualGrossValue)
}
