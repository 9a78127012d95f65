package config

import (
	"encoding/json"
	"fmt"
	"os"

	"maker-vol-bot-go/internal/models"
)

// LoadConfig 从指定路径加载JSON配置文件并解析到Config结构体中
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	config := &models.Config{}
	err = decoder.Decode(config)
	if err != nil {
		return nil, err
	}

	applyDefaults(config)
	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyDefaults 为未配置的策略参数填充默认值
func applyDefaults(c *models.Config) {
	if c.CashSlotNum == 0 {
		c.CashSlotNum = 2000
	}
	if c.OpenPriceSlotNum == 0 {
		c.OpenPriceSlotNum = 400
	}
	if c.PctMaxOpenPrice == 0 {
		c.PctMaxOpenPrice = 0.95
	}
	if c.PctMinOpenPrice == 0 {
		c.PctMinOpenPrice = 0.55
	}
	if c.PctMaxClosePrice == 0 {
		c.PctMaxClosePrice = 1.00
	}
	if c.PctMinClosePrice == 0 {
		c.PctMinClosePrice = 0.55
	}
	if c.MinProfitPct == 0 {
		c.MinProfitPct = 0.002
	}
	if c.CloseStepPct == 0 {
		c.CloseStepPct = 0.001
	}
	if c.MaxProfitPct == 0 {
		c.MaxProfitPct = 0.01
	}
	if c.OpeningOrderNum == 0 {
		c.OpeningOrderNum = 20
	}
	if c.MaxLeverage == 0 {
		c.MaxLeverage = 100
	}
}

// validate 检查参数之间的约束关系
func validate(c *models.Config) error {
	if c.Symbol == "" {
		return fmt.Errorf("config: symbol is required")
	}
	if c.InitialCash <= 0 {
		return fmt.Errorf("config: initial_cash must be positive, got %v", c.InitialCash)
	}
	if c.CommissionRate < 0 {
		return fmt.Errorf("config: commission_rate must not be negative, got %v", c.CommissionRate)
	}
	if c.PctMinOpenPrice >= c.PctMaxOpenPrice {
		return fmt.Errorf("config: pct_min_open_price (%v) must be below pct_max_open_price (%v)",
			c.PctMinOpenPrice, c.PctMaxOpenPrice)
	}
	if c.PctMinClosePrice >= c.PctMaxClosePrice {
		return fmt.Errorf("config: pct_min_close_price (%v) must be below pct_max_close_price (%v)",
			c.PctMinClosePrice, c.PctMaxClosePrice)
	}
	if c.MinProfitPct >= c.MaxProfitPct {
		return fmt.Errorf("config: min_profit_pct (%v) must be below max_profit_pct (%v)",
			c.MinProfitPct, c.MaxProfitPct)
	}
	if c.MaxLeverage < 1 {
		return fmt.Errorf("config: max_leverage must be at least 1, got %v", c.MaxLeverage)
	}
	return nil
}
