package config

import (
	"fmt"
	"strings"
	"time"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Data.validate(); err != nil {
		return err
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	if err := c.Trainer.validate(); err != nil {
		return err
	}
	if err := c.WalkForward.validate(); err != nil {
		return err
	}
	return nil
}

func (d *DataConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(d.Provider)) {
	case "stooq", "binance":
	default:
		return fmt.Errorf("data.provider 仅支持 stooq/binance，当前为 %s", d.Provider)
	}
	if strings.TrimSpace(d.CachePath) == "" {
		return fmt.Errorf("data.cache_path 不能为空")
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	if err := validateDateRange(b.StartDate, b.EndDate, "backtest"); err != nil {
		return err
	}
	if b.RiskPerTradePct <= 0 || b.RiskPerTradePct > 0.1 {
		return fmt.Errorf("backtest.risk_per_trade_pct 必须在 (0, 0.1] 内")
	}
	if b.MinProbability < 0 || b.MinProbability > 100 {
		return fmt.Errorf("backtest.min_probability 必须在 [0, 100] 内")
	}
	switch strings.ToLower(strings.TrimSpace(b.GapPolicy)) {
	case "market", "skip":
	default:
		return fmt.Errorf("backtest.gap_policy 仅支持 market/skip，当前为 %s", b.GapPolicy)
	}
	if !(b.TP1R < b.TP2R && b.TP2R < b.TP3R) {
		return fmt.Errorf("backtest 分批止盈档位必须满足 tp1_r < tp2_r < tp3_r")
	}
	if b.TP1Fraction <= 0 || b.TP1Fraction >= 1 || b.TP2Fraction <= 0 || b.TP2Fraction >= 1 {
		return fmt.Errorf("backtest.tp1_fraction/tp2_fraction 必须在 (0, 1) 内")
	}
	if b.TP1Fraction+b.TP2Fraction >= 1 {
		return fmt.Errorf("backtest 分批止盈比例之和必须小于 1，为 TP3 保留剩余仓位")
	}
	if b.ExitModelEnabled && strings.TrimSpace(b.ExitModelPath) == "" {
		return fmt.Errorf("backtest.exit_model_enabled 开启时必须配置 exit_model_path")
	}
	return nil
}

func (t *TrainerConfig) validate() error {
	if t.StartDate == "" && t.EndDate == "" {
		return nil
	}
	if err := validateDateRange(t.StartDate, t.EndDate, "trainer"); err != nil {
		return err
	}
	if t.HorizonDays < t.MaxTradeDays {
		return fmt.Errorf("trainer.horizon_days 不能小于 max_trade_days")
	}
	return nil
}

func (w *WalkForwardConfig) validate() error {
	if w.TrainDays <= w.TestDays {
		return fmt.Errorf("walkforward.train_days 必须大于 test_days")
	}
	return nil
}

func validateDateRange(start, end, section string) error {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return fmt.Errorf("%s.start_date/end_date 不能为空", section)
	}
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return fmt.Errorf("%s.start_date 格式错误 (要求 YYYY-MM-DD): %w", section, err)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return fmt.Errorf("%s.end_date 格式错误 (要求 YYYY-MM-DD): %w", section, err)
	}
	if !e.After(s) {
		return fmt.Errorf("%s.end_date 必须晚于 start_date", section)
	}
	return nil
}
