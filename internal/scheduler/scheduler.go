package scheduler

import (
	"errors"
	"fmt"

	"maker-vol-bot-go/internal/book"
	"maker-vol-bot-go/internal/logger"
	"maker-vol-bot-go/internal/models"
)

// ErrUnboundVenueOrder 场所推送了一个调度器从未注册过的订单事件，
// 说明调度器与场所已经失去同步，属于致命错误，调用方必须硬停止。
var ErrUnboundVenueOrder = errors.New("venue order is not bound to any virtual order")

// Venue 订单执行场所，成交/撤销/拒绝以它为准
type Venue interface {
	PlaceLimit(side models.Side, price, quantity float64) (int64, error)
	Cancel(orderID int64) error
}

// intent 绑定时记录的挂单意图快照，用于判断虚拟订单是否发生了变更
type intent struct {
	side       models.Side
	price      float64
	quantity   float64
	generation uint64
}

// OrderScheduler 订单调度器：维护虚拟订单与场所订单的双向绑定，
// 并在虚拟订单变更时对场所挂单做撤换。
//
// 不变量：每个虚拟订单至多绑定一个在场订单，反之亦然。
type OrderScheduler struct {
	virtual2venue map[*book.VirtualOrder]int64
	venue2virtual map[int64]*book.VirtualOrder
	intents       map[*book.VirtualOrder]intent

	venue Venue
	book  *book.VirtualOrderBook
}

// NewOrderScheduler 构造订单调度器
func NewOrderScheduler(venue Venue) *OrderScheduler {
	return &OrderScheduler{
		virtual2venue: make(map[*book.VirtualOrder]int64),
		venue2virtual: make(map[int64]*book.VirtualOrder),
		intents:       make(map[*book.VirtualOrder]intent),
		venue:         venue,
	}
}

// LinkOrderBook 关联当前的虚拟订单簿，订单簿重构后需要重新关联
func (s *OrderScheduler) LinkOrderBook(b *book.VirtualOrderBook) {
	s.book = b
}

// Bind 建立双向绑定并记录当前挂单意图
func (s *OrderScheduler) Bind(virtual *book.VirtualOrder, venueID int64) error {
	in, err := currentIntent(virtual)
	if err != nil {
		return err
	}
	s.virtual2venue[virtual] = venueID
	s.venue2virtual[venueID] = virtual
	s.intents[virtual] = in
	return nil
}

// Unbind 解除双向绑定
func (s *OrderScheduler) Unbind(virtual *book.VirtualOrder) {
	if venueID, ok := s.virtual2venue[virtual]; ok {
		delete(s.virtual2venue, virtual)
		delete(s.venue2virtual, venueID)
	}
	delete(s.intents, virtual)
}

// Bound 返回虚拟订单当前绑定的场所订单号
func (s *OrderScheduler) Bound(virtual *book.VirtualOrder) (int64, bool) {
	id, ok := s.virtual2venue[virtual]
	return id, ok
}

// BoundOrders 返回当前绑定的所有虚拟订单
func (s *OrderScheduler) BoundOrders() []*book.VirtualOrder {
	out := make([]*book.VirtualOrder, 0, len(s.virtual2venue))
	for v := range s.virtual2venue {
		out = append(out, v)
	}
	return out
}

// Reconcile 对比虚拟订单当前意图与绑定时的快照，
// 发生变更时撤销旧挂单、按新参数重新挂单并重新绑定。
// 平仓阶梯的价格调整就是通过这条路径传播到场所的。
// 调用方在对已绑定订单做任何变更操作之后负责调用本函数。
func (s *OrderScheduler) Reconcile(virtual *book.VirtualOrder) error {
	venueID, ok := s.virtual2venue[virtual]
	if !ok {
		return fmt.Errorf("%w: reconcile on unbound virtual order %s", ErrUnboundVenueOrder, virtual)
	}
	bound := s.intents[virtual]
	if virtual.Generation() == bound.generation {
		return nil
	}
	current, err := currentIntent(virtual)
	if err != nil {
		return err
	}
	if current.side == bound.side && current.price == bound.price && current.quantity == bound.quantity {
		// 只有generation变了 挂单参数没变 不需要撤换
		s.intents[virtual] = current
		return nil
	}

	logger.S().Debugf("挂单撤换: venue=%d %s price %v->%v qty %v->%v",
		venueID, current.side, bound.price, current.price, bound.quantity, current.quantity)
	if err := s.venue.Cancel(venueID); err != nil {
		return err
	}
	newID, err := s.venue.PlaceLimit(current.side, current.price, current.quantity)
	if err != nil {
		return err
	}
	s.Unbind(virtual)
	return s.Bind(virtual, newID)
}

// OnOpenFilled 开仓买单成交。
// 解除绑定 将虚拟订单转入平仓集合 并在场所按（可能被阶梯调整过的）
// close_price挂出平仓单 建立新绑定。
func (s *OrderScheduler) OnOpenFilled(venueID int64) (*book.VirtualOrder, error) {
	virtual, ok := s.venue2virtual[venueID]
	if !ok {
		return nil, fmt.Errorf("%w: open fill for venue order %d", ErrUnboundVenueOrder, venueID)
	}
	s.Unbind(virtual)
	if s.book == nil {
		return nil, nil
	}
	if s.book.UpdateOrderClosing(virtual) == nil {
		logger.S().Warnf("开仓成交的订单不在订单簿中: %s", virtual)
		return virtual, nil
	}
	closeSide := models.Sell
	if virtual.Direction() == book.Short {
		closeSide = models.Buy
	}
	newID, err := s.venue.PlaceLimit(closeSide, virtual.ClosePrice(), virtual.Quantity())
	if err != nil {
		return nil, err
	}
	if err := s.Bind(virtual, newID); err != nil {
		return nil, err
	}
	return virtual, nil
}

// OnCloseFilled 平仓卖单成交。解除绑定并将虚拟订单移入已平仓列表。
func (s *OrderScheduler) OnCloseFilled(venueID int64) (*book.VirtualOrder, error) {
	virtual, ok := s.venue2virtual[venueID]
	if !ok {
		return nil, fmt.Errorf("%w: close fill for venue order %d", ErrUnboundVenueOrder, venueID)
	}
	s.Unbind(virtual)
	if s.book == nil {
		return nil, nil
	}
	if s.book.UpdateOrderClosed(virtual) == nil {
		logger.S().Warnf("平仓成交的订单不在订单簿中: %s", virtual)
	}
	return virtual, nil
}

// OnCanceled 场所挂单被撤销或拒绝。只解除绑定 不触碰订单簿，
// 是否重试由调用方决定。
func (s *OrderScheduler) OnCanceled(venueID int64) (*book.VirtualOrder, error) {
	virtual, ok := s.venue2virtual[venueID]
	if !ok {
		return nil, fmt.Errorf("%w: cancel for venue order %d", ErrUnboundVenueOrder, venueID)
	}
	s.Unbind(virtual)
	return virtual, nil
}

// currentIntent 从虚拟订单当前状态推导挂单意图
func currentIntent(virtual *book.VirtualOrder) (intent, error) {
	isBuy, err := virtual.IsBuy()
	if err != nil {
		return intent{}, err
	}
	in := intent{
		side:       models.Sell,
		quantity:   virtual.Quantity(),
		generation: virtual.Generation(),
	}
	if isBuy {
		in.side = models.Buy
	}
	if virtual.Status() == book.StatusOpening {
		in.price = virtual.OpenPrice()
	} else {
		in.price = virtual.ClosePrice()
	}
	return in, nil
}
