package book

// BookParams 虚拟订单簿的构造参数，在每次重构时由策略按新高价格重新计算
type BookParams struct {
	MaxOpenPrice  float64 // 开仓最高价格
	MinOpenPrice  float64 // 开仓最低价格
	MaxClosePrice float64 // 平仓最高价格
	MinClosePrice float64 // 平仓最低价格

	OpenSlotNum  int // open价格档位数量
	CloseSlotNum int // close价格档位数量

	MinProfitPct float64 // 最低利润百分比
	CloseStepPct float64 // close_price阶梯调整比例
	MaxProfitPct float64 // 最高利润百分比

	Direction      Direction
	CommissionRate float64
}

// VirtualOrderBook 虚拟订单簿：一个开仓挂单集合、一个平仓挂单集合、
// 一个已平仓订单列表。订单在三者之间原子转移，所有权始终唯一。
//
// 三个操作都是全函数：前置条件不满足时返回nil（无操作），
// 场所事件可能与订单簿重构竞争，调用方对nil应记录日志并继续。
type VirtualOrderBook struct {
	openLadder  *OpenOrderLadder
	closeLadder *CloseOrderLadder
	closed      []*VirtualOrder

	params BookParams
}

// NewVirtualOrderBook 构造虚拟订单簿
func NewVirtualOrderBook(p BookParams) (*VirtualOrderBook, error) {
	openLadder, err := NewOpenOrderLadder(p.MaxOpenPrice, p.MinOpenPrice, p.OpenSlotNum, p.Direction)
	if err != nil {
		return nil, err
	}
	closeLadder, err := NewCloseOrderLadder(p.MaxClosePrice, p.MinClosePrice, p.CloseSlotNum, p.Direction,
		p.MinProfitPct, p.CloseStepPct, p.MaxProfitPct)
	if err != nil {
		return nil, err
	}
	return &VirtualOrderBook{
		openLadder:  openLadder,
		closeLadder: closeLadder,
		params:      p,
	}, nil
}

// Params 返回构造参数
func (b *VirtualOrderBook) Params() BookParams { return b.params }

// OpenLadder 返回开仓挂单集合
func (b *VirtualOrderBook) OpenLadder() *OpenOrderLadder { return b.openLadder }

// CloseLadder 返回平仓挂单集合
func (b *VirtualOrderBook) CloseLadder() *CloseOrderLadder { return b.closeLadder }

// ClosedOrders 返回已平仓订单列表
func (b *VirtualOrderBook) ClosedOrders() []*VirtualOrder { return b.closed }

// AddOrder 插入一个open order，失败返回nil
func (b *VirtualOrderBook) AddOrder(order *VirtualOrder) *VirtualOrder {
	return b.openLadder.AddOrder(order)
}

// UpdateOrderClosing 将一个open order变为close order。
// 从开仓集合移出 转换订单状态 再按阶梯规则插入平仓集合。
func (b *VirtualOrderBook) UpdateOrderClosing(order *VirtualOrder) *VirtualOrder {
	removed := b.openLadder.RemoveOrder(order)
	if removed == nil {
		return nil
	}
	if err := removed.UpdateStatusClosing(); err != nil {
		return nil
	}
	return b.closeLadder.AddOrder(removed)
}

// UpdateOrderClosed 将一个close order变为closed order并移入已平仓列表
func (b *VirtualOrderBook) UpdateOrderClosed(order *VirtualOrder) *VirtualOrder {
	removed := b.closeLadder.RemoveOrder(order)
	if removed == nil {
		return nil
	}
	if err := removed.UpdateStatusClosed(); err != nil {
		return nil
	}
	b.closed = append(b.closed, removed)
	return removed
}

// RemoveOpenOrder 将一个open order从订单簿移出（撤单路径），失败返回nil
func (b *VirtualOrderBook) RemoveOpenOrder(order *VirtualOrder) *VirtualOrder {
	return b.openLadder.RemoveOrder(order)
}
