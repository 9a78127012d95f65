package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"maker-vol-bot-go/internal/config"
	"maker-vol-bot-go/internal/downloader"
	"maker-vol-bot-go/internal/exchange"
	"maker-vol-bot-go/internal/feed"
	"maker-vol-bot-go/internal/logger"
	"maker-vol-bot-go/internal/models"
	"maker-vol-bot-go/internal/persistence"
	"maker-vol-bot-go/internal/reporter"
	"maker-vol-bot-go/internal/strategy"

	"github.com/joho/godotenv"
)

// extractSymbolFromPath 从数据文件路径中提取交易对名称
// 例如: "data/BTCUSDT-2025-03-15-2025-06-15.csv" -> "BTCUSDT"
func extractSymbolFromPath(path string) string {
	name := strings.TrimSuffix(path, ".csv")
	parts := strings.Split(name, "/")
	fileName := parts[len(parts)-1]

	symbolParts := strings.Split(fileName, "-")
	if len(symbolParts) > 0 {
		return symbolParts[0]
	}
	return ""
}

func main() {
	// --- 命令行参数定义 ---
	configPath := flag.String("config", "config.json", "path to the config file")
	mode := flag.String("mode", "backtest", "running mode: backtest, paper or download")
	dataPath := flag.String("data", "", "path to historical data file for backtesting")
	symbol := flag.String("symbol", "", "symbol to download (e.g., BTCUSDT)")
	startDate := flag.String("start", "", "start date for downloading (YYYY-MM-DD)")
	endDate := flag.String("end", "", "end date for downloading (YYYY-MM-DD)")
	flag.Parse()

	// 加载配置前先用默认配置初始化日志
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	// --- 加载 .env 文件 ---
	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	// --- 加载 JSON 配置 ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("无法加载配置文件: %v", err)
	}

	// --- 使用文件中的配置重新初始化日志 ---
	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	switch *mode {
	case "backtest":
		finalDataPath, err := resolveDataPath(*symbol, *startDate, *endDate, *dataPath)
		if err != nil {
			logger.S().Fatal(err)
		}
		runBacktestMode(cfg, finalDataPath)
	case "paper":
		runPaperMode(cfg)
	case "download":
		if _, err := resolveDataPath(*symbol, *startDate, *endDate, ""); err != nil {
			logger.S().Fatal(err)
		}
	default:
		logger.S().Fatalf("未知的运行模式: %s。请选择 'backtest'、'paper' 或 'download'。", *mode)
	}
}

// resolveDataPath 确定回测数据文件，必要时先下载。
// 成功后返回数据文件路径，失败则返回错误。
func resolveDataPath(symbol, startDate, endDate, dataPath string) (string, error) {
	shouldDownload := symbol != "" && startDate != "" && endDate != ""

	if shouldDownload {
		startTime, err1 := time.Parse("2006-01-02", startDate)
		endTime, err2 := time.Parse("2006-01-02", endDate)
		if err1 != nil || err2 != nil {
			return "", fmt.Errorf("日期格式错误，请使用 YYYY-MM-DD 格式。start: %v, end: %v", err1, err2)
		}

		d := downloader.NewKlineDownloader()
		fileName := fmt.Sprintf("data/%s-%s-%s.csv", symbol, startDate, endDate)
		if err := d.DownloadKlines(symbol, fileName, startTime, endTime); err != nil {
			return "", fmt.Errorf("下载数据失败: %v", err)
		}
		return fileName, nil
	}

	if dataPath == "" {
		return "", fmt.Errorf("需要通过 --data 或 --symbol/start/end 参数指定数据源")
	}
	return dataPath, nil
}

// newRecorder 构造分析数据落库通道：badger存储外面包一层异步队列
func newRecorder(cfg *models.Config) persistence.Recorder {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "analytics_db"
	}
	inner, err := persistence.NewBadgerRecorder(dbPath)
	if err != nil {
		logger.S().Fatalf("无法打开分析数据库 %s: %v", dbPath, err)
	}
	return persistence.NewAsyncRecorder(inner)
}

// runBacktestMode 运行回测模式
func runBacktestMode(cfg *models.Config, dataPath string) {
	logger.S().Info("--- 启动回测模式 ---")

	// 从数据路径中提取 symbol 覆盖 config 中的值
	backtestSymbol := extractSymbolFromPath(dataPath)
	if backtestSymbol == "" {
		logger.S().Fatalf("无法从数据文件路径 %s 中提取交易对", dataPath)
	}
	cfg.Symbol = backtestSymbol

	klines, err := loadKlines(dataPath)
	if err != nil {
		logger.S().Fatal(err)
	}
	if len(klines) == 0 {
		logger.S().Fatal("历史数据文件为空或只有表头。")
	}

	rec := newRecorder(cfg)
	defer func() {
		if err := rec.Close(); err != nil {
			logger.S().Errorf("关闭分析数据库失败: %v", err)
		}
	}()

	backtestExchange := exchange.NewBacktestExchange(cfg)
	strat := strategy.New(cfg, backtestExchange, rec)
	backtestExchange.OnEvent(strat.HandleVenueEvent)

	logger.S().Info("开始回测...")
	for _, k := range klines {
		backtestExchange.SetPrice(k.Open, k.High, k.Low, k.Close, k.OpenTime)
		if err := strat.Next(k); err != nil {
			logger.S().Errorf("策略运行中止: %v", err)
			break
		}
	}
	logger.S().Info("回测结束。")

	// --- 生成并打印回测报告 ---
	closedOrders := strat.Book().ClosedOrders()
	reporter.GenerateReport(backtestExchange, closedOrders, dataPath,
		klines[0].OpenTime, klines[len(klines)-1].OpenTime)
}

// runPaperMode 运行模拟盘模式：真实行情驱动，订单依旧在模拟场所成交
func runPaperMode(cfg *models.Config) {
	logger.S().Info("--- 启动模拟盘模式 ---")

	wsURL := cfg.LiveWSURL
	if wsURL == "" {
		wsURL = "wss://stream.binance.com:9443"
	}
	priceFeed := feed.NewPriceFeed(wsURL, cfg.Symbol)
	if err := priceFeed.Start(); err != nil {
		logger.S().Fatalf("行情流启动失败: %v", err)
	}
	defer priceFeed.Stop()

	rec := newRecorder(cfg)
	defer func() {
		if err := rec.Close(); err != nil {
			logger.S().Errorf("关闭分析数据库失败: %v", err)
		}
	}()

	paperExchange := exchange.NewBacktestExchange(cfg)
	strat := strategy.New(cfg, paperExchange, rec)
	paperExchange.OnEvent(strat.HandleVenueEvent)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// 每分钟将行情流的最新价格作为一根K线驱动策略
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	logger.S().Info("等待行情数据...")
	for {
		select {
		case <-quit:
			logger.S().Info("收到退出信号，模拟盘已停止。")
			return
		case now := <-ticker.C:
			price := priceFeed.CurrentPrice()
			if price <= 0 {
				logger.S().Warn("尚未收到行情数据，跳过本周期")
				continue
			}
			paperExchange.SetPrice(price, price, price, price, now)
			k := models.Kline{OpenTime: now, Open: price, High: price, Low: price, Close: price}
			if err := strat.Next(k); err != nil {
				logger.S().Errorf("策略运行中止: %v", err)
				return
			}
		}
	}
}

// loadKlines 从CSV文件加载K线数据
func loadKlines(dataPath string) ([]models.Kline, error) {
	file, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("无法打开历史数据文件: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("无法读取CSV记录: %v", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}
	records = records[1:] // 移除表头

	klines := make([]models.Kline, 0, len(records))
	for _, record := range records {
		if len(record) < 5 {
			logger.S().Warnf("K线数据列数不足，跳过此条记录: %v", record)
			continue
		}
		timestampMs, errT := strconv.ParseInt(record[0], 10, 64)
		openPrice, errO := strconv.ParseFloat(record[1], 64)
		high, errH := strconv.ParseFloat(record[2], 64)
		low, errL := strconv.ParseFloat(record[3], 64)
		closePrice, errC := strconv.ParseFloat(record[4], 64)
		if errT != nil || errO != nil || errH != nil || errL != nil || errC != nil {
			logger.S().Warnf("无法解析K线数据，跳过此条记录: %v", record)
			continue
		}
		k := models.Kline{
			OpenTime: time.UnixMilli(timestampMs),
			Open:     openPrice,
			High:     high,
			Low:      low,
			Close:    closePrice,
		}
		if len(record) > 5 {
			k.Volume, _ = strconv.ParseFloat(record[5], 64)
		}
		klines = append(klines, k)
	}
	return klines, nil
}
