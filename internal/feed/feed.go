package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"maker-vol-bot-go/internal/logger"

	"github.com/gorilla/websocket"
)

// PriceFeed 通过WebSocket订阅aggTrade行情流获取实时价格。
// 只做行情数据，不做任何订单连接；paper模式用它驱动策略时钟。
type PriceFeed struct {
	baseURL string
	symbol  string

	conn         *websocket.Conn
	currentPrice float64
	isRunning    bool
	mutex        sync.RWMutex
	stopChannel  chan bool
}

// NewPriceFeed 创建一个新的行情流实例
func NewPriceFeed(baseURL, symbol string) *PriceFeed {
	return &PriceFeed{
		baseURL:     baseURL,
		symbol:      symbol,
		stopChannel: make(chan bool),
	}
}

// Start 启动行情流守护进程，断线后自动重连
func (f *PriceFeed) Start() error {
	f.mutex.Lock()
	if f.isRunning {
		f.mutex.Unlock()
		return fmt.Errorf("行情流已在运行")
	}
	f.isRunning = true
	f.stopChannel = make(chan bool)
	f.mutex.Unlock()

	go f.loop()
	return nil
}

// Stop 停止行情流
func (f *PriceFeed) Stop() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if !f.isRunning {
		return
	}
	f.isRunning = false
	close(f.stopChannel)
}

// CurrentPrice 最近一次成交价，尚未收到行情时返回0
func (f *PriceFeed) CurrentPrice() float64 {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.currentPrice
}

// connect 连接WebSocket获取实时价格
func (f *PriceFeed) connect() error {
	wsURL := fmt.Sprintf("%s/ws/%s@aggTrade", f.baseURL, strings.ToLower(f.symbol))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("WebSocket连接失败: %v", err)
	}
	f.conn = conn
	return nil
}

// loop 是一个守护进程，负责维持WebSocket的连接和重连
func (f *PriceFeed) loop() {
	for {
		select {
		case <-f.stopChannel:
			logger.S().Info("行情流已停止")
			return
		default:
			if err := f.connect(); err != nil {
				logger.S().Errorf("WebSocket连接失败: %v。5秒后重试...", err)
				time.Sleep(5 * time.Second)
				continue
			}

			logger.S().Info("WebSocket连接成功")
			if err := f.readMessages(); err != nil {
				logger.S().Errorf("WebSocket处理时发生错误: %v", err)
			}
			if f.conn != nil {
				f.conn.Close()
			}
			logger.S().Info("WebSocket连接已断开，准备重连...")
			time.Sleep(5 * time.Second)
		}
	}
}

// readMessages 为一个已建立的连接处理消息，并实现心跳机制
func (f *PriceFeed) readMessages() error {
	const (
		pongWait   = 60 * time.Second
		pingPeriod = (pongWait * 9) / 10 // Must be less than pongWait
	)

	f.conn.SetReadDeadline(time.Now().Add(pongWait))
	f.conn.SetPongHandler(func(string) error {
		f.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	pingStop := make(chan struct{})
	defer close(pingStop)

	go func() {
		for {
			select {
			case <-pingTicker.C:
				if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					logger.S().Errorf("发送Ping失败: %v", err)
					return
				}
			case <-pingStop:
				return
			case <-f.stopChannel:
				return
			}
		}
	}()

	for {
		select {
		case <-f.stopChannel:
			err := f.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				return fmt.Errorf("发送WebSocket关闭帧失败: %v", err)
			}
			return nil
		default:
			_, message, err := f.conn.ReadMessage()
			if err != nil {
				// 任何读取错误都意味着连接已损坏 返回让守护进程重连
				return fmt.Errorf("读取消息失败: %v", err)
			}

			var trade struct {
				Price json.Number `json:"p"` // "p"代表价格
			}
			if err := json.Unmarshal(message, &trade); err != nil {
				logger.S().Errorf("解析价格信息失败: %v", err)
				continue
			}

			price, err := trade.Price.Float64()
			if err != nil {
				logger.S().Errorf("转换价格失败: %v", err)
				continue
			}

			f.mutex.Lock()
			f.currentPrice = price
			f.mutex.Unlock()
		}
	}
}
