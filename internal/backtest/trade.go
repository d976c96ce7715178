package backtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"swingbot/internal/pkg/trading"
)

// TradeStatus 交易生命周期：OPEN -> PARTIALLY_CLOSED -> CLOSED。
type TradeStatus string

const (
	TradeOpen    TradeStatus = "OPEN"
	TradePartial TradeStatus = "PARTIALLY_CLOSED"
	TradeClosed  TradeStatus = "CLOSED"
)

// ExitReason 离场原因。
type ExitReason string

const (
	ExitStopLoss ExitReason = "STOP_LOSS"
	ExitTime     ExitReason = "TIME_EXIT"
	ExitTP1      ExitReason = "TAKE_PROFIT_1"
	ExitTP2      ExitReason = "TAKE_PROFIT_2"
	ExitTP3      ExitReason = "TAKE_PROFIT_3"
	ExitTrailing ExitReason = "TRAILING_STOP"
	ExitModel    ExitReason = "MODEL_EXIT"
)

// PartialExit 一次部分离场记录。
type PartialExit struct {
	Date   time.Time  `json:"date"`
	Shares int        `json:"shares"`
	Price  float64    `json:"price"`
	Reason ExitReason `json:"reason"`
	PnL    float64    `json:"pnl"`
}

// Trade 单笔回测交易。RiskBasis = 入场价 - 初始止损，必须为正。
// MFE/MAE 以 R 倍数表示，随每个持仓交易日滚动更新。
type Trade struct {
	ID             string        `json:"id"`
	Ticker         string        `json:"ticker"`
	Sector         string        `json:"sector"`
	Regime         string        `json:"regime"`
	EntryDate      time.Time     `json:"entry_date"`
	EntryPrice     float64       `json:"entry_price"`
	SignalPrice    float64       `json:"signal_price"`
	StopLoss       float64       `json:"stop_loss"`
	RiskBasis      float64       `json:"risk_basis"`
	Shares         int           `json:"shares"`
	OriginalShares int           `json:"original_shares"`
	Probability    float64       `json:"probability"`
	TakeProfits    [3]float64    `json:"take_profits"`
	TierFired      [3]bool       `json:"tier_fired"`
	TrailingActive bool          `json:"trailing_active"`
	TrailingLevel  float64       `json:"trailing_level"`
	MFE            float64       `json:"mfe"`
	MAE            float64       `json:"mae"`
	MFEPrice       float64       `json:"mfe_price"`
	DaysHeld       int           `json:"days_held"`
	Status         TradeStatus   `json:"status"`
	Partials       []PartialExit `json:"partials,omitempty"`
	ExitDate       time.Time     `json:"exit_date,omitempty"`
	ExitPrice      float64       `json:"exit_price,omitempty"`
	ExitReason     ExitReason    `json:"exit_reason,omitempty"`
	RealizedPnL    float64       `json:"realized_pnl"`
	Commission     float64       `json:"commission"`
}

// NewTrade 创建一笔持仓。风险距离非正视为脏数据，直接拒绝。
func NewTrade(ticker, sector, regime string, entryDate time.Time, entryPrice, signalPrice, stopLoss, probability float64, shares int, takeProfits [3]float64) (*Trade, error) {
	riskBasis := entryPrice - stopLoss
	if riskBasis <= 0 {
		return nil, fmt.Errorf("风险距离必须为正: entry=%.4f stop=%.4f (%s)", entryPrice, stopLoss, ticker)
	}
	if shares <= 0 {
		return nil, fmt.Errorf("股数必须为正: %d (%s)", shares, ticker)
	}
	return &Trade{
		ID:             uuid.NewString(),
		Ticker:         ticker,
		Sector:         sector,
		Regime:         regime,
		EntryDate:      entryDate,
		EntryPrice:     entryPrice,
		SignalPrice:    signalPrice,
		StopLoss:       stopLoss,
		RiskBasis:      riskBasis,
		Shares:         shares,
		OriginalShares: shares,
		Probability:    probability,
		TakeProfits:    takeProfits,
		MFEPrice:       entryPrice,
		Status:         TradeOpen,
	}, nil
}

// UpdateExtremes 用当日高低点滚动更新 MFE/MAE。
func (t *Trade) UpdateExtremes(high, low float64) {
	if t.Status == TradeClosed || t.RiskBasis <= 0 {
		return
	}
	if r := trading.RMultiple(t.EntryPrice, high, t.RiskBasis); r > t.MFE {
		t.MFE = r
		t.MFEPrice = high
	}
	if r := trading.RMultiple(t.EntryPrice, low, t.RiskBasis); r < t.MAE {
		t.MAE = r
	}
}

// ApplyPartial 执行部分离场。股数超出持仓时截断到剩余股数。
func (t *Trade) ApplyPartial(date time.Time, shares int, price float64, reason ExitReason, commission float64) error {
	if t.Status == TradeClosed {
		return fmt.Errorf("交易 %s 已关闭，拒绝部分离场", t.ID)
	}
	if shares <= 0 || price <= 0 {
		return fmt.Errorf("部分离场参数非法: shares=%d price=%.4f", shares, price)
	}
	if shares >= t.Shares {
		return t.Close(date, price, reason, commission)
	}
	pnl := float64(shares)*(price-t.EntryPrice) - commission
	t.Partials = append(t.Partials, PartialExit{
		Date:   date,
		Shares: shares,
		Price:  price,
		Reason: reason,
		PnL:    pnl,
	})
	t.Shares -= shares
	t.RealizedPnL += pnl
	t.Commission += commission
	t.Status = TradePartial
	return nil
}

// Close 全部离场并写入终态字段。终态字段只允许写一次。
func (t *Trade) Close(date time.Time, price float64, reason ExitReason, commission float64) error {
	if t.Status == TradeClosed {
		return fmt.Errorf("交易 %s 已关闭，拒绝重复关闭", t.ID)
	}
	if price <= 0 {
		return fmt.Errorf("离场价格非法: %.4f (%s)", price, t.Ticker)
	}
	pnl := float64(t.Shares)*(price-t.EntryPrice) - commission
	t.RealizedPnL += pnl
	t.Commission += commission
	t.Shares = 0
	t.ExitDate = date
	t.ExitPrice = price
	t.ExitReason = reason
	t.Status = TradeClosed
	return nil
}

// RealizedR 全仓口径的已实现 R 倍数。风险基数异常时返回 0。
func (t *Trade) RealizedR() float64 {
	denom := t.RiskBasis * float64(t.OriginalShares)
	if denom <= 0 {
		return 0
	}
	return t.RealizedPnL / denom
}

// UnrealizedR 给定现价下剩余仓位的浮动 R。
func (t *Trade) UnrealizedR(price float64) float64 {
	if t.RiskBasis <= 0 {
		return 0
	}
	return trading.RMultiple(t.EntryPrice, price, t.RiskBasis)
}

// MarketValue 剩余仓位市值。
func (t *Trade) MarketValue(price float64) float64 {
	return float64(t.Shares) * price
}
