package features

import (
	"time"

	"swingbot/internal/analysis/indicator"
	"swingbot/internal/market"
)

// TradeState 提取特征所需的持仓状态，全部为截至当日收盘的已知信息。
type TradeState struct {
	Entry          float64
	RiskBasis      float64
	Close          float64
	Day            time.Time
	DaysHeld       int
	MaxHoldingDays int
	MFER           float64
	MAER           float64
}

// Extract 从持仓状态与截至当日（含）的日线序列生成特征向量。
// bars 与 benchmark 只允许包含当日及之前的数据；序列不足时使用退化指标值，
// benchmark 为空时基准收益记 0。
func Extract(state TradeState, bars, benchmark []market.Bar) Vector {
	snap := indicator.Compute(bars)

	v := Vector{
		MFER:  state.MFER,
		MAER:  state.MAER,
		RSI14: snap.RSI14,
	}
	if state.MaxHoldingDays > 0 {
		v.DaysHeldFrac = float64(state.DaysHeld) / float64(state.MaxHoldingDays)
	}
	if state.RiskBasis > 0 {
		v.UnrealizedR = (state.Close - state.Entry) / state.RiskBasis
	}
	if state.Entry > 0 {
		v.UnrealizedPct = (state.Close - state.Entry) / state.Entry
	}
	v.DrawdownFromMFER = v.MFER - v.UnrealizedR
	v.Ret1D = trailingReturn(bars, 1)
	v.Ret3D = trailingReturn(bars, 3)
	v.Ret5D = trailingReturn(bars, 5)
	if state.Close > 0 {
		v.ATRPct = snap.ATR14 / state.Close
	}
	if snap.SMA20 > 0 {
		v.CloseVsSMA20Pct = (state.Close - snap.SMA20) / snap.SMA20
	}
	if snap.SMA50 > 0 {
		v.CloseVsSMA50Pct = (state.Close - snap.SMA50) / snap.SMA50
	}
	v.BenchmarkRet5D = trailingReturn(benchmark, 5)
	v.BenchmarkRet10D = trailingReturn(benchmark, 10)

	day := state.Day
	if day.IsZero() && len(bars) > 0 {
		day = bars[len(bars)-1].Date
	}
	if !day.IsZero() {
		v.DayOfWeek = float64(day.Weekday())
		if day.AddDate(0, 0, 3).Month() != day.Month() {
			v.MonthEnd = 1
		}
	}

	v.ProfitZone0 = zoneFlag(v.UnrealizedR, 0)
	v.ProfitZone1 = zoneFlag(v.UnrealizedR, 1.0)
	v.ProfitZone15 = zoneFlag(v.UnrealizedR, 1.5)
	v.ProfitZone2 = zoneFlag(v.UnrealizedR, 2.0)
	return v
}

// trailingReturn 最近 n 个交易日的收盘收益率，序列不足时记 0。
func trailingReturn(bars []market.Bar, n int) float64 {
	if n <= 0 || len(bars) < n+1 {
		return 0
	}
	last := bars[len(bars)-1].Close
	base := bars[len(bars)-1-n].Close
	if base <= 0 {
		return 0
	}
	return (last - base) / base
}

func zoneFlag(r, threshold float64) float64 {
	if r >= threshold {
		return 1
	}
	return 0
}
