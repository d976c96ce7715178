package backtest

import (
	"math"
	"strings"
	"time"

	"swingbot/internal/market"
	"swingbot/internal/pkg/trading"
)

// GapPolicy 跳空处理策略。
type GapPolicy string

const (
	// GapMarket 开盘跳空穿越止损时按开盘价市价离场。
	GapMarket GapPolicy = "market"
	// GapSkip 跳空幅度超过阈值时当日不执行止损，次日重新评估。
	GapSkip GapPolicy = "skip"
)

// ManagerConfig 交易管理器参数。
type ManagerConfig struct {
	GapPolicy           GapPolicy
	GapSkipThresholdPct float64
	MaxHoldingDays      int
	TrailingActivationR float64
	TrailingStopPct     float64
	TP1Fraction         float64
	TP2Fraction         float64
	SlippagePct         float64
	CommissionPerTrade  float64
}

// Fill 管理器在某交易日对一笔持仓产生的一次离场成交。
type Fill struct {
	Date   time.Time
	Shares int
	Price  float64
	Reason ExitReason
	Final  bool
}

// Manager 持仓离场状态机。
// 离场优先级固定：止损 > 持仓时限 > TP3 > TP2 > TP1 > 移动止损。
// 同一交易日允许多个止盈档位先后触发；任一全仓离场后停止后续评估。
type Manager struct {
	cfg ManagerConfig
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.GapSkipThresholdPct <= 0 {
		cfg.GapSkipThresholdPct = 0.03
	}
	if cfg.TP1Fraction <= 0 || cfg.TP1Fraction >= 1 {
		cfg.TP1Fraction = 1.0 / 3.0
	}
	if cfg.TP2Fraction <= 0 || cfg.TP2Fraction >= 1 {
		cfg.TP2Fraction = 1.0 / 3.0
	}
	if cfg.MaxHoldingDays <= 0 {
		cfg.MaxHoldingDays = 30
	}
	return &Manager{cfg: cfg}
}

// Evaluate 处理一笔持仓的一个交易日，按优先级产出离场成交并更新交易状态。
// 调用方负责把成交反映到现金账上。
func (m *Manager) Evaluate(t *Trade, bar market.Bar, day time.Time) []Fill {
	if t == nil || t.Status == TradeClosed {
		return nil
	}
	t.DaysHeld++
	t.UpdateExtremes(bar.High, bar.Low)

	var fills []Fill
	emit := func(shares int, price float64, reason ExitReason, final bool) {
		price = trading.ApplySlippage(price, m.cfg.SlippagePct, false)
		if final {
			_ = t.Close(day, price, reason, m.cfg.CommissionPerTrade)
		} else {
			_ = t.ApplyPartial(day, shares, price, reason, m.cfg.CommissionPerTrade)
		}
		fills = append(fills, Fill{Date: day, Shares: shares, Price: price, Reason: reason, Final: final})
	}

	// 1. 止损
	if trading.PriceLTE(bar.Open, t.StopLoss) {
		gapPct := 0.0
		if t.StopLoss > 0 {
			gapPct = (t.StopLoss - bar.Open) / t.StopLoss
		}
		if m.gapPolicy() == GapSkip && gapPct > m.cfg.GapSkipThresholdPct {
			// 跳空过深，当日搁置止损；仅保留持仓时限兜底
			if t.DaysHeld >= m.cfg.MaxHoldingDays {
				emit(t.Shares, bar.Close, ExitTime, true)
			}
			return fills
		}
		emit(t.Shares, bar.Open, ExitStopLoss, true)
		return fills
	}
	if trading.PriceLTE(bar.Low, t.StopLoss) {
		emit(t.Shares, t.StopLoss, ExitStopLoss, true)
		return fills
	}

	// 2. 持仓时限
	if t.DaysHeld >= m.cfg.MaxHoldingDays {
		emit(t.Shares, bar.Close, ExitTime, true)
		return fills
	}

	// 3. 分批止盈，高档位优先；档位股数按原始仓位计算，每档只触发一次
	if !t.TierFired[2] && tierHit(bar, t.TakeProfits[2]) {
		t.TierFired[2] = true
		emit(t.Shares, fillAtTarget(bar, t.TakeProfits[2]), ExitTP3, true)
		return fills
	}
	if !t.TierFired[1] && tierHit(bar, t.TakeProfits[1]) {
		t.TierFired[1] = true
		shares := tierShares(t, m.cfg.TP2Fraction)
		if shares >= t.Shares {
			emit(t.Shares, fillAtTarget(bar, t.TakeProfits[1]), ExitTP2, true)
			return fills
		}
		emit(shares, fillAtTarget(bar, t.TakeProfits[1]), ExitTP2, false)
	}
	if !t.TierFired[0] && tierHit(bar, t.TakeProfits[0]) {
		t.TierFired[0] = true
		shares := tierShares(t, m.cfg.TP1Fraction)
		if shares >= t.Shares {
			emit(t.Shares, fillAtTarget(bar, t.TakeProfits[0]), ExitTP1, true)
			return fills
		}
		emit(shares, fillAtTarget(bar, t.TakeProfits[0]), ExitTP1, false)
	}

	// 4. 移动止损：MFE 达到激活倍数后从 MFE 价位回撤一定比例离场
	if !t.TrailingActive && t.MFE >= m.cfg.TrailingActivationR && m.cfg.TrailingActivationR > 0 {
		t.TrailingActive = true
	}
	if t.TrailingActive && m.cfg.TrailingStopPct > 0 {
		level := t.MFEPrice * (1 - m.cfg.TrailingStopPct)
		if level > t.TrailingLevel {
			t.TrailingLevel = level
		}
		if t.TrailingLevel > 0 {
			switch {
			case trading.PriceLTE(bar.Open, t.TrailingLevel):
				emit(t.Shares, bar.Open, ExitTrailing, true)
				return fills
			case trading.PriceLTE(bar.Low, t.TrailingLevel):
				emit(t.Shares, math.Min(t.TrailingLevel, bar.High), ExitTrailing, true)
				return fills
			}
		}
	}
	return fills
}

// CloseAtMarket 以给定价格强制全平（回测结束、模型离场等场景）。
func (m *Manager) CloseAtMarket(t *Trade, day time.Time, price float64, reason ExitReason) (Fill, bool) {
	if t == nil || t.Status == TradeClosed || price <= 0 {
		return Fill{}, false
	}
	fill := Fill{
		Date:   day,
		Shares: t.Shares,
		Price:  trading.ApplySlippage(price, m.cfg.SlippagePct, false),
		Reason: reason,
		Final:  true,
	}
	_ = t.Close(day, fill.Price, reason, m.cfg.CommissionPerTrade)
	return fill, true
}

func (m *Manager) gapPolicy() GapPolicy {
	if strings.EqualFold(string(m.cfg.GapPolicy), string(GapSkip)) {
		return GapSkip
	}
	return GapMarket
}

// tierShares 档位股数按原始仓位乘以该档比例，向下取整但至少 1 股。
func tierShares(t *Trade, fraction float64) int {
	shares := int(math.Floor(float64(t.OriginalShares) * fraction))
	if shares < 1 {
		shares = 1
	}
	return shares
}

func tierHit(bar market.Bar, target float64) bool {
	if target <= 0 {
		return false
	}
	return trading.PriceGTE(bar.High, target)
}

// fillAtTarget 向上跳空越过目标价时按开盘价成交，否则按目标价成交。
func fillAtTarget(bar market.Bar, target float64) float64 {
	if trading.PriceGT(bar.Open, target) {
		return bar.Open
	}
	return target
}
