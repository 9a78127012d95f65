package book

// OpenOrderLadder 固定容量的开仓挂单集合，每个价格档位最多一个订单。
//
// 插入时将订单的open_price吸附到档位标准价格，保证一个档位只对应一个价格。
// 无挤出逻辑：档位被占用时插入直接失败，由调用方决定跳过或换价重试。
type OpenOrderLadder struct {
	index  *PriceSlotIndex
	orders map[int]*VirtualOrder
}

// NewOpenOrderLadder 构造开仓挂单集合
func NewOpenOrderLadder(maxOpenPrice, minOpenPrice float64, slotCount int, dir Direction) (*OpenOrderLadder, error) {
	index, err := NewPriceSlotIndex(maxOpenPrice, minOpenPrice, slotCount, SideOpen, dir)
	if err != nil {
		return nil, err
	}
	return &OpenOrderLadder{
		index:  index,
		orders: make(map[int]*VirtualOrder),
	}, nil
}

// Index 返回开仓侧的价格档位表
func (l *OpenOrderLadder) Index() *PriceSlotIndex { return l.index }

// AddOrder 插入一个order。
// 档位越界或已被占用时插入失败 返回nil。
// 插入成功时order的open_price已被吸附到档位标准价格。
func (l *OpenOrderLadder) AddOrder(order *VirtualOrder) *VirtualOrder {
	slot, err := l.index.PriceToSlot(order.OpenPrice())
	if err != nil || !l.index.CheckSlot(slot) {
		return nil
	}
	if _, occupied := l.orders[slot]; occupied {
		return nil
	}
	if err := order.UpdateOpenPrice(l.index.SlotToPrice(slot)); err != nil {
		return nil
	}
	l.orders[slot] = order
	return order
}

// RemoveOrder 按open_price对应的档位删除并返回订单，不存在时返回nil
func (l *OpenOrderLadder) RemoveOrder(order *VirtualOrder) *VirtualOrder {
	slot, err := l.index.PriceToSlot(order.OpenPrice())
	if err != nil || !l.index.CheckSlot(slot) {
		return nil
	}
	stored, ok := l.orders[slot]
	if !ok {
		return nil
	}
	delete(l.orders, slot)
	return stored
}

// CheckOrder 按open_price对应的档位查找订单，不做任何修改
func (l *OpenOrderLadder) CheckOrder(order *VirtualOrder) *VirtualOrder {
	slot, err := l.index.PriceToSlot(order.OpenPrice())
	if err != nil {
		return nil
	}
	return l.orders[slot]
}

// Len 当前挂单数量
func (l *OpenOrderLadder) Len() int { return len(l.orders) }

// Orders 返回当前所有挂单的快照
func (l *OpenOrderLadder) Orders() []*VirtualOrder {
	out := make([]*VirtualOrder, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, o)
	}
	return out
}
