package book

// OrderGroup 订单组：在同一open价格档位下的平仓订单集合，按插入顺序排列
type OrderGroup struct {
	data []*VirtualOrder
}

func (g *OrderGroup) Add(order *VirtualOrder) {
	g.data = append(g.data, order)
}

// Remove 按对象标识删除，返回是否删除成功
func (g *OrderGroup) Remove(order *VirtualOrder) bool {
	for i, o := range g.data {
		if o == order {
			g.data = append(g.data[:i], g.data[i+1:]...)
			return true
		}
	}
	return false
}

// At 返回第index个订单，越界返回nil
func (g *OrderGroup) At(index int) *VirtualOrder {
	if index < 0 || index >= len(g.data) {
		return nil
	}
	return g.data[index]
}

// Last 返回末端订单，组为空时返回nil
func (g *OrderGroup) Last() *VirtualOrder {
	if len(g.data) == 0 {
		return nil
	}
	return g.data[len(g.data)-1]
}

func (g *OrderGroup) Len() int { return len(g.data) }

// Orders 返回组内订单快照
func (g *OrderGroup) Orders() []*VirtualOrder {
	out := make([]*VirtualOrder, len(g.data))
	copy(out, g.data)
	return out
}

// CloseOrderLadder 固定容量的平仓挂单集合。
//
// 按订单的open_price档位索引，每个档位一个OrderGroup，
// 存储在该价格开仓的所有平仓订单。
//
// 新增订单的close_price按组内阶梯确定：
// 组为空时 close_price = open_price * (1 + minProfitPct)；
// 否则 close_price = 末端订单close_price + open_price * closeStepPct；
// 若超出 open_price * (1 + maxProfitPct) 则回绕复用组内第一个订单的close_price。
// 同一价格档位的多笔持仓因此不会在场所里撞到同一个挂单价上。
type CloseOrderLadder struct {
	index  *PriceSlotIndex
	groups []*OrderGroup

	minProfitPct float64 // 最低利润百分比
	closeStepPct float64 // close_price阶梯调整比例
	maxProfitPct float64 // 最高利润百分比
}

// NewCloseOrderLadder 构造平仓挂单集合
func NewCloseOrderLadder(maxClosePrice, minClosePrice float64, slotCount int, dir Direction,
	minProfitPct, closeStepPct, maxProfitPct float64) (*CloseOrderLadder, error) {
	index, err := NewPriceSlotIndex(maxClosePrice, minClosePrice, slotCount, SideClose, dir)
	if err != nil {
		return nil, err
	}
	groups := make([]*OrderGroup, index.Slots())
	for i := range groups {
		groups[i] = &OrderGroup{}
	}
	return &CloseOrderLadder{
		index:        index,
		groups:       groups,
		minProfitPct: minProfitPct,
		closeStepPct: closeStepPct,
		maxProfitPct: maxProfitPct,
	}, nil
}

// Index 返回平仓侧的价格档位表
func (l *CloseOrderLadder) Index() *PriceSlotIndex { return l.index }

// AddOrder 插入一个order 并按组内阶梯规则改写其close_price。
// open_price对应档位越界时插入失败 返回nil。
func (l *CloseOrderLadder) AddOrder(order *VirtualOrder) *VirtualOrder {
	slot, err := l.index.PriceToSlot(order.OpenPrice())
	if err != nil || !l.index.CheckSlot(slot) {
		return nil
	}
	group := l.groups[slot]

	var closePrice float64
	if group.Len() == 0 {
		closePrice = order.OpenPrice() * (1 + l.minProfitPct)
	} else {
		closePrice = group.Last().ClosePrice() + order.OpenPrice()*l.closeStepPct
		// 单笔订单收益超过maxProfitPct时回绕 复用最低一档的价格
		maxPrice := order.OpenPrice() * (1 + l.maxProfitPct)
		if closePrice >= maxPrice {
			closePrice = group.At(0).ClosePrice()
		}
	}
	if err := order.UpdateClosePrice(closePrice); err != nil {
		return nil
	}
	group.Add(order)
	return order
}

// RemoveOrder 在open_price对应档位的组内按close_price匹配删除并返回订单
func (l *CloseOrderLadder) RemoveOrder(order *VirtualOrder) *VirtualOrder {
	slot, err := l.index.PriceToSlot(order.OpenPrice())
	if err != nil || !l.index.CheckSlot(slot) {
		return nil
	}
	group := l.groups[slot]
	for _, o := range group.Orders() {
		if o.ClosePrice() == order.ClosePrice() {
			group.Remove(o)
			return o
		}
	}
	return nil
}

// CheckOrder 不支持按档位查找平仓订单，调度器通过绑定表直接定位
func (l *CloseOrderLadder) CheckOrder(order *VirtualOrder) *VirtualOrder {
	return nil
}

// Group 返回第slot个订单组，越界返回nil
func (l *CloseOrderLadder) Group(slot int) *OrderGroup {
	if !l.index.CheckSlot(slot) {
		return nil
	}
	return l.groups[slot]
}

// Len 当前所有组内挂单总数
func (l *CloseOrderLadder) Len() int {
	n := 0
	for _, g := range l.groups {
		n += g.Len()
	}
	return n
}

// Orders 返回当前所有平仓挂单的快照
func (l *CloseOrderLadder) Orders() []*VirtualOrder {
	out := make([]*VirtualOrder, 0, l.Len())
	for _, g := range l.groups {
		out = append(out, g.data...)
	}
	return out
}
