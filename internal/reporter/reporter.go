package reporter

import (
	"fmt"
	"os"
	"time"

	"maker-vol-bot-go/internal/book"
	"maker-vol-bot-go/internal/exchange"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Metrics 存储计算出的所有回测性能指标
type Metrics struct {
	InitialBalance   float64
	FinalBalance     float64
	TotalProfit      float64
	ProfitPercentage float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64
	AvgProfitLoss    float64
	MaxDrawdown      float64
	TotalFees        float64
	EndingCash       float64
	EndingAssetValue float64
	TotalAssetQty    float64
	StartTime        time.Time
	EndTime          time.Time
}

// GenerateReport 根据回测场所的状态和已平仓订单计算并打印性能报告
func GenerateReport(be *exchange.BacktestExchange, closedOrders []*book.VirtualOrder, dataPath string, startTime, endTime time.Time) {
	m := calculateMetrics(be, closedOrders)
	m.StartTime = startTime
	m.EndTime = endTime

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("回测结果报告")
	t.AppendRows([]table.Row{
		{"数据文件", dataPath},
		{"回测周期", fmt.Sprintf("%s 到 %s",
			m.StartTime.Format("2006-01-02 15:04"), m.EndTime.Format("2006-01-02 15:04"))},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"初始资金", fmt.Sprintf("%.2f USDT", m.InitialBalance)},
		{"最终资金", fmt.Sprintf("%.2f USDT", m.FinalBalance)},
		{"总利润", fmt.Sprintf("%.2f USDT", m.TotalProfit)},
		{"收益率", fmt.Sprintf("%.2f%%", m.ProfitPercentage)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"完成交易次数", m.TotalTrades},
		{"盈利次数", m.WinningTrades},
		{"亏损次数", m.LosingTrades},
		{"胜率", fmt.Sprintf("%.2f%%", m.WinRate)},
		{"平均盈亏比", fmt.Sprintf("%.2f", m.AvgProfitLoss)},
		{"最大回撤", fmt.Sprintf("%.2f%%", m.MaxDrawdown)},
		{"累计佣金", fmt.Sprintf("%.2f USDT", m.TotalFees)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"期末现金", fmt.Sprintf("%.2f USDT", m.EndingCash)},
		{"期末持仓市值", fmt.Sprintf("%.2f USDT (共 %.4f)", m.EndingAssetValue, m.TotalAssetQty)},
	})
	t.Render()
}

func calculateMetrics(be *exchange.BacktestExchange, closedOrders []*book.VirtualOrder) *Metrics {
	m := &Metrics{}

	m.InitialBalance = be.InitialCash()
	m.TotalTrades = len(closedOrders)
	m.TotalFees = be.TotalFees()

	var totalProfit, totalLoss float64
	for _, order := range closedOrders {
		net, ok := order.ActualNetValue()
		if !ok {
			continue
		}
		if net > 0 {
			m.WinningTrades++
			totalProfit += net
		} else {
			m.LosingTrades++
			totalLoss += net
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	if m.LosingTrades > 0 && m.WinningTrades > 0 {
		avgWin := totalProfit / float64(m.WinningTrades)
		avgLoss := -totalLoss / float64(m.LosingTrades)
		if avgLoss > 0 {
			m.AvgProfitLoss = avgWin / avgLoss
		}
	}

	m.EndingCash = be.AvailableCash()
	m.TotalAssetQty = be.Position()
	m.EndingAssetValue = m.TotalAssetQty * be.CurrentPrice()
	m.FinalBalance = m.EndingCash + m.EndingAssetValue

	m.TotalProfit = m.FinalBalance - m.InitialBalance
	if m.InitialBalance != 0 {
		m.ProfitPercentage = (m.TotalProfit / m.InitialBalance) * 100
	}

	m.MaxDrawdown = calculateMaxDrawdown(be.EquityCurve()) * 100

	return m
}

func calculateMaxDrawdown(equityCurve []float64) float64 {
	if len(equityCurve) < 2 {
		return 0.0
	}
	peak := equityCurve[0]
	maxDrawdown := 0.0

	for _, equity := range equityCurve {
		if equity > peak {
			peak = equity
		}
		drawdown := (peak - equity) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}
