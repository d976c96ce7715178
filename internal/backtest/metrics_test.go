package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedTrade(t *testing.T, shares int, exitPrice float64) *Trade {
	t.Helper()
	tr := newTestTrade(t, shares)
	require.NoError(t, tr.Close(day("2024-01-15"), exitPrice, ExitTP2, 0))
	return tr
}

func TestComputeMetrics(t *testing.T) {
	winner := closedTrade(t, 10, 110) // +100, R=2.0
	loser := closedTrade(t, 10, 97.5) // -25, R=-0.5
	curve := []EquityPoint{
		{Equity: 100000},
		{Equity: 100100},
		{Equity: 99090, DrawdownPct: 0.1},
		{Equity: 100075, DrawdownPct: 0.05},
	}

	m := ComputeMetrics([]*Trade{winner, loser}, curve, 100000)
	assert.Equal(t, 2, m.TotalTrades)
	assert.Equal(t, 1, m.Wins)
	assert.Equal(t, 1, m.Losses)
	assert.InDelta(t, 0.5, m.WinRate, 1e-9)
	assert.InDelta(t, 0.75, m.AvgR, 1e-9)
	assert.InDelta(t, 2.0, m.AvgWinR, 1e-9)
	assert.InDelta(t, -0.5, m.AvgLossR, 1e-9)
	assert.InDelta(t, 4.0, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 75, m.TotalPnL, 1e-9)
	assert.InDelta(t, 0.1, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 100075, m.FinalEquity, 1e-9)
	assert.InDelta(t, 0.00075, m.TotalReturnPct, 1e-9)
}

func TestComputeMetricsNoLosses(t *testing.T) {
	winner := closedTrade(t, 10, 110)
	m := ComputeMetrics([]*Trade{winner}, nil, 100000)
	// 无亏损时不产生无穷值
	assert.Equal(t, 0.0, m.ProfitFactor)
	assert.InDelta(t, 100000, m.FinalEquity, 1e-9)
}

func TestComputeMetricsIgnoresOpenTrades(t *testing.T) {
	openTrade := newTestTrade(t, 10)
	m := ComputeMetrics([]*Trade{openTrade}, nil, 100000)
	assert.Equal(t, 0, m.TotalTrades)
}

func TestAnnualizedSharpeDegenerate(t *testing.T) {
	assert.Equal(t, 0.0, annualizedSharpe(nil))
	assert.Equal(t, 0.0, annualizedSharpe([]EquityPoint{{Equity: 100}, {Equity: 101}}))
	// 收益率恒定时标准差为零
	flat := []EquityPoint{{Equity: 100}, {Equity: 100}, {Equity: 100}, {Equity: 100}}
	assert.Equal(t, 0.0, annualizedSharpe(flat))
}

func TestComputeAttribution(t *testing.T) {
	a1 := closedTrade(t, 10, 110)
	a1.Regime = "Trending"
	a2 := closedTrade(t, 10, 97.5)
	a2.Regime = "trending"
	a2.Sector = ""

	a := ComputeAttribution([]*Trade{a1, a2})
	// regime 归一化到小写后合并
	require.Contains(t, a.ByRegime, "trending")
	assert.Equal(t, 2, a.ByRegime["trending"].Count)
	assert.Equal(t, 1, a.ByRegime["trending"].Wins)
	assert.InDelta(t, 0.5, a.ByRegime["trending"].WinRate, 1e-9)
	assert.InDelta(t, 0.75, a.ByRegime["trending"].AvgR, 1e-9)

	// 空行业落入 UNKNOWN
	require.Contains(t, a.BySector, "UNKNOWN")
	assert.Equal(t, 1, a.BySector["UNKNOWN"].Count)

	require.Contains(t, a.ByMonth, "2024-01")
	require.Contains(t, a.ByYear, "2024")
	assert.InDelta(t, 75, a.ByYear["2024"].TotalPnL, 1e-9)
}

func TestComputeCalibration(t *testing.T) {
	hit := closedTrade(t, 10, 110)
	hit.Probability = 62
	hit.MFE = 2.0
	miss := closedTrade(t, 10, 97.5)
	miss.Probability = 65
	miss.MFE = 0.5
	top := closedTrade(t, 10, 110)
	top.Probability = 100
	top.MFE = 3.0

	buckets := ComputeCalibration([]*Trade{hit, miss, top})
	require.Len(t, buckets, 10)

	assert.Equal(t, 2, buckets[6].Count)
	assert.InDelta(t, 63.5, buckets[6].AvgPredicted, 1e-9)
	assert.InDelta(t, 0.5, buckets[6].ActualRate, 1e-9)

	// 概率 100 归入最高桶
	assert.Equal(t, 1, buckets[9].Count)
	assert.InDelta(t, 1.0, buckets[9].ActualRate, 1e-9)

	// 空桶保留且边界完整
	assert.Equal(t, 0, buckets[0].Count)
	assert.InDelta(t, 0.0, buckets[0].LowerPct, 1e-9)
	assert.InDelta(t, 10.0, buckets[0].UpperPct, 1e-9)
}
