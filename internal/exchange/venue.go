package exchange

import "maker-vol-bot-go/internal/models"

// Venue 定义了订单执行场所必须提供的通用方法。
// 策略只依赖这个接口，回测和实盘可以互换。
// 成交/撤销/拒绝事件通过注册的handler回调推送给策略。
type Venue interface {
	PlaceLimit(side models.Side, price, quantity float64) (int64, error)
	Cancel(orderID int64) error
	CancelAllOpenOrders() error

	CurrentPrice() float64
	AvailableCash() float64
	// AddCash 调整可用现金，用于借入/归还杠杆资金
	AddCash(delta float64)

	// Position 当前持仓币量
	Position() float64
	// TotalValue 总资产 = 现金 + 持仓市值
	TotalValue() float64

	// OnEvent 注册订单事件回调
	OnEvent(handler func(models.VenueEvent))
}
