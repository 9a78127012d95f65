package models

import "time"

// Config 结构体定义了策略的所有配置参数
type Config struct {
	Symbol string `json:"symbol"`  // 交易对，如 "BTCUSDT"
	DBPath string `json:"db_path"` // 分析数据库文件路径

	InitialCash    float64 `json:"initial_cash"`    // 初始资金 (USDT)
	CommissionRate float64 `json:"commission_rate"` // Maker佣金率

	// 虚拟订单簿参数
	CashSlotNum      int     `json:"cash_slot_num"`       // 资产分割粒度
	OpenPriceSlotNum int     `json:"open_price_slot_num"` // 开仓挂单价位粒度
	PctMaxOpenPrice  float64 `json:"pct_max_open_price"`  // 开仓最高价格（顶部的百分比）
	PctMinOpenPrice  float64 `json:"pct_min_open_price"`  // 开仓最低价格（顶部的百分比）
	PctMaxClosePrice float64 `json:"pct_max_close_price"` // 平仓最高价格（顶部的百分比）
	PctMinClosePrice float64 `json:"pct_min_close_price"` // 平仓最低价格（顶部的百分比）
	MinProfitPct     float64 `json:"min_profit_pct"`      // 最低利润百分比
	CloseStepPct     float64 `json:"close_step_pct"`      // close_price阶梯调整比例
	MaxProfitPct     float64 `json:"max_profit_pct"`      // 最高利润百分比
	OpeningOrderNum  int     `json:"opening_order_num"`   // 盘口下方的开单数量
	MaxLeverage      float64 `json:"max_leverage"`        // 杠杆率上限

	LiveWSURL string `json:"live_ws_url,omitempty"` // 行情WebSocket地址 (paper模式)

	LogConfig LogConfig `json:"log"` // 日志配置
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `json:"output"`      // 输出模式: "console", "file", "both"
	File       string `json:"file"`        // 日志文件路径
	MaxSize    int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}

// Side 定义了交易方向的类型
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Kline 代表一根K线
type Kline struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// VenueOrder 是挂在交易场所的一笔真实订单
type VenueOrder struct {
	ID       int64   `json:"id"`
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Status   string  `json:"status"` // NEW, FILLED, CANCELED, REJECTED
}

// VenueEventType 区分来自交易场所的订单事件类型
type VenueEventType int

const (
	VenueOrderFilled VenueEventType = iota
	VenueOrderCanceled
	VenueOrderRejected
)

// VenueEvent 是交易场所推送的订单事件
type VenueEvent struct {
	Type     VenueEventType
	OrderID  int64
	Side     Side
	Price    float64
	Quantity float64
	Time     time.Time
}
