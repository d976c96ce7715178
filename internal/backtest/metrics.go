package backtest

import "math"

// Metrics 回测汇总统计。R 口径基于 Trade.RealizedR。
type Metrics struct {
	TotalTrades    int     `json:"total_trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRate        float64 `json:"win_rate"`
	AvgR           float64 `json:"avg_r"`
	AvgWinR        float64 `json:"avg_win_r"`
	AvgLossR       float64 `json:"avg_loss_r"`
	Expectancy     float64 `json:"expectancy"`
	ProfitFactor   float64 `json:"profit_factor"`
	Sharpe         float64 `json:"sharpe"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalReturnPct float64 `json:"total_return_pct"`
	FinalEquity    float64 `json:"final_equity"`
}

// ComputeMetrics 从已关闭交易与权益曲线计算汇总统计。
// 无亏损样本时 profit_factor 记 0（避免无穷值进 JSON）。
func ComputeMetrics(trades []*Trade, curve []EquityPoint, initialEquity float64) Metrics {
	var m Metrics
	var sumR, sumWinR, sumLossR, grossWin, grossLoss float64
	for _, t := range trades {
		if t.Status != TradeClosed {
			continue
		}
		m.TotalTrades++
		r := t.RealizedR()
		sumR += r
		m.TotalPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			m.Wins++
			sumWinR += r
			grossWin += t.RealizedPnL
		} else {
			m.Losses++
			sumLossR += r
			grossLoss += -t.RealizedPnL
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.Wins) / float64(m.TotalTrades)
		m.AvgR = sumR / float64(m.TotalTrades)
		m.Expectancy = m.AvgR
	}
	if m.Wins > 0 {
		m.AvgWinR = sumWinR / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLossR = sumLossR / float64(m.Losses)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossWin / grossLoss
	}
	m.Sharpe = annualizedSharpe(curve)
	for _, p := range curve {
		if p.DrawdownPct > m.MaxDrawdown {
			m.MaxDrawdown = p.DrawdownPct
		}
	}
	if len(curve) > 0 {
		m.FinalEquity = curve[len(curve)-1].Equity
	} else {
		m.FinalEquity = initialEquity
	}
	if initialEquity > 0 {
		m.TotalReturnPct = (m.FinalEquity - initialEquity) / initialEquity
	}
	return m
}

// annualizedSharpe 基于日收益率序列计算年化夏普（假设 252 个交易日，无风险利率 0）。
func annualizedSharpe(curve []EquityPoint) float64 {
	if len(curve) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var varSum float64
	for _, r := range returns {
		d := r - mean
		varSum += d * d
	}
	std := math.Sqrt(varSum / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}
