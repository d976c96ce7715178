package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"swingbot/internal/market"
)

// Snapshot 某个交易日收盘后的点时指标值。
// 序列长度不足时取退化默认值：RSI=50（中性）、ATR/SMA=0。
type Snapshot struct {
	RSI14 float64 `json:"rsi14"`
	ATR14 float64 `json:"atr14"`
	SMA20 float64 `json:"sma20"`
	SMA50 float64 `json:"sma50"`
}

// Compute 基于截至当日（含）的日线序列计算指标。
// 只允许传入当日及之前的数据，未来数据泄漏由调用方保证。
func Compute(bars []market.Bar) Snapshot {
	snap := Snapshot{RSI14: 50}
	if len(bars) == 0 {
		return snap
	}
	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	if len(closes) > 14 {
		if v := lastValid(sanitizeSeries(talib.Rsi(closes, 14))); v > 0 {
			snap.RSI14 = v
		}
		snap.ATR14 = lastValid(sanitizeSeries(talib.Atr(highs, lows, closes, 14)))
	}
	if len(closes) >= 20 {
		snap.SMA20 = lastValid(sanitizeSeries(talib.Sma(closes, 20)))
	}
	if len(closes) >= 50 {
		snap.SMA50 = lastValid(sanitizeSeries(talib.Sma(closes, 50)))
	}
	return snap
}

func sanitizeSeries(src []float64) []float64 {
	out := make([]float64, 0, len(src))
	for _, v := range src {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}
