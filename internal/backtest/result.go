package backtest

import (
	"time"

	"swingbot/internal/config"
)

// EquityPoint 每个交易日收盘后的权益快照。
// Drawdown 为相对历史权益峰值的绝对回撤额（不为负），DrawdownPct 为对应比例。
type EquityPoint struct {
	Date          time.Time `json:"date"`
	Equity        float64   `json:"equity"`
	Cash          float64   `json:"cash"`
	OpenPositions int       `json:"open_positions"`
	Drawdown      float64   `json:"drawdown"`
	DrawdownPct   float64   `json:"drawdown_pct"`
	DailyPnL      float64   `json:"daily_pnl"`
	DailyReturn   float64   `json:"daily_return"`
}

// Result 一次回测的完整产出。
type Result struct {
	RunID       string                `json:"run_id"`
	Config      config.BacktestConfig `json:"config"`
	StartedAt   time.Time             `json:"started_at"`
	FinishedAt  time.Time             `json:"finished_at"`
	Stats       Metrics               `json:"stats"`
	Trades      []*Trade              `json:"trades"`
	EquityCurve []EquityPoint         `json:"equity_curve"`
	Attribution Attribution           `json:"attribution"`
	Calibration []CalibrationBucket   `json:"calibration"`
	Warnings    []string              `json:"warnings,omitempty"`
}
