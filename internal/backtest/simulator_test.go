package backtest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingbot/internal/config"
	"swingbot/internal/market"
	"swingbot/internal/pricedata"
	"swingbot/internal/scan"
)

// fakeSource 返回预置日线，未知 ticker 报错。
type fakeSource struct {
	bars map[string][]market.Bar
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(_ context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
	all, ok := f.bars[ticker]
	if !ok {
		return nil, fmt.Errorf("无此标的: %s", ticker)
	}
	var out []market.Bar
	for _, b := range all {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

// scriptScorer 只在指定交易日给出可入场信号。
type scriptScorer struct {
	signalDay time.Time
}

func (s *scriptScorer) Score(_ context.Context, ticker string, asOf time.Time) (scan.Signal, error) {
	sig := scan.Signal{
		Ticker:    ticker,
		AsOf:      asOf,
		Price:     100,
		TradeType: "BUY",
		StopLoss:  95,
		Regime:    "trending",
	}
	if market.Normalize(asOf).Equal(s.signalDay) {
		sig.Probability = 80
	}
	return sig, nil
}

// flatBars 在 [from, to] 的每个交易日生成一根横盘日线，spikes 覆盖指定日期。
func flatBars(from, to time.Time, spikes map[string]market.Bar) []market.Bar {
	var bars []market.Bar
	for _, d := range market.TradingDays(from, to) {
		if b, ok := spikes[d.Format("2006-01-02")]; ok {
			b.Date = d
			bars = append(bars, b)
			continue
		}
		bars = append(bars, market.Bar{Date: d, Open: 100, High: 100, Low: 100, Close: 100, Volume: 1e6})
	}
	return bars
}

func testBacktestConfig() config.BacktestConfig {
	return config.BacktestConfig{
		StartDate:           "2024-01-02",
		EndDate:             "2024-01-31",
		InitialEquity:       100000,
		RiskPerTradePct:     0.01,
		MaxOpenPositions:    3,
		MinProbability:      60,
		MinRewardRisk:       1.0,
		GapPolicy:           "market",
		GapSkipThresholdPct: 0.03,
		MaxHoldingDays:      30,
		TrailingActivationR: 2.0,
		TrailingStopPct:     0.05,
		TP1R:                1.5,
		TP2R:                2.5,
		TP3R:                4.0,
		TP1Fraction:         1.0 / 3.0,
		TP2Fraction:         1.0 / 3.0,
	}
}

func newTestSimulator(t *testing.T, source pricedata.Source, scorer scan.Scorer, tickers []string) *Simulator {
	t.Helper()
	store, err := pricedata.NewStore(filepath.Join(t.TempDir(), "bars.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	provider := pricedata.NewProvider(source, store, pricedata.NewHistoryBudget(1000, 10, 1))
	universe := &market.Universe{
		Tickers: tickers,
		Sectors: map[string]string{"TEST": "TECHNOLOGY"},
	}
	return NewSimulator(scorer, provider, universe)
}

func TestSimulatorEndToEnd(t *testing.T) {
	// 2024-01-08 收盘出信号，次日开盘 100 入场（止损 95，风险 5），
	// 2024-01-16 冲高 108 触发 TP1，其余仓位在最后一日按收盘强平。
	spike := map[string]market.Bar{
		"2024-01-16": {Open: 100, High: 108, Low: 100, Close: 100, Volume: 1e6},
	}
	source := &fakeSource{bars: map[string][]market.Bar{
		"TEST": flatBars(day("2023-09-01"), day("2024-01-31"), spike),
	}}
	sim := newTestSimulator(t, source, &scriptScorer{signalDay: day("2024-01-08")}, []string{"TEST"})

	res, err := sim.Run(context.Background(), RunParams{RunID: "test-run", Config: testBacktestConfig()})
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, "TEST", tr.Ticker)
	assert.Equal(t, "TECHNOLOGY", tr.Sector)
	assert.Equal(t, day("2024-01-09"), tr.EntryDate)
	assert.InDelta(t, 100, tr.EntryPrice, 1e-9)
	// floor(100000×0.01/5) = 200 股
	assert.Equal(t, 200, tr.OriginalShares)
	assert.Equal(t, [3]float64{107.5, 112.5, 120}, tr.TakeProfits)

	require.Len(t, tr.Partials, 1)
	assert.Equal(t, ExitTP1, tr.Partials[0].Reason)
	assert.Equal(t, 66, tr.Partials[0].Shares)
	assert.InDelta(t, 107.5, tr.Partials[0].Price, 1e-9)

	assert.Equal(t, TradeClosed, tr.Status)
	assert.Equal(t, ExitTime, tr.ExitReason)
	assert.Equal(t, day("2024-01-31"), tr.ExitDate)

	// 66×7.5 止盈 + 剩余 134 股平价离场
	assert.InDelta(t, 495, tr.RealizedPnL, 1e-6)

	require.Len(t, res.EquityCurve, 22)
	last := res.EquityCurve[len(res.EquityCurve)-1]
	assert.InDelta(t, 100495, last.Equity, 1e-6)
	assert.InDelta(t, last.Equity, last.Cash, 1e-6)
	assert.Equal(t, 0, last.OpenPositions)
	// 强平日整笔落袋，当日无权益变动
	assert.InDelta(t, 495, last.DailyPnL, 1e-6)
	assert.Zero(t, last.DailyReturn)
	assert.Zero(t, last.Drawdown)

	// TP1 当日权益上行，日收益反映部分止盈
	tp1Day := equityPointOn(t, res.EquityCurve, day("2024-01-16"))
	assert.InDelta(t, 100495, tp1Day.Equity, 1e-6)
	assert.InDelta(t, 495.0/100000.0, tp1Day.DailyReturn, 1e-9)
	assert.Zero(t, tp1Day.DailyPnL)
	assert.Zero(t, tp1Day.Drawdown)
	assert.Zero(t, tp1Day.DrawdownPct)

	assert.Equal(t, 1, res.Stats.TotalTrades)
	assert.Equal(t, 1, res.Stats.Wins)
}

func TestSimulatorStopLossExit(t *testing.T) {
	spike := map[string]market.Bar{
		"2024-01-12": {Open: 98, High: 99, Low: 94, Close: 96, Volume: 1e6},
	}
	source := &fakeSource{bars: map[string][]market.Bar{
		"TEST": flatBars(day("2023-09-01"), day("2024-01-31"), spike),
	}}
	sim := newTestSimulator(t, source, &scriptScorer{signalDay: day("2024-01-08")}, []string{"TEST"})

	res, err := sim.Run(context.Background(), RunParams{RunID: "test-run", Config: testBacktestConfig()})
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, ExitStopLoss, tr.ExitReason)
	assert.Equal(t, day("2024-01-12"), tr.ExitDate)
	assert.InDelta(t, 95, tr.ExitPrice, 1e-9)
	assert.InDelta(t, -1.0, tr.RealizedR(), 1e-9)
	assert.InDelta(t, 99000, res.Stats.FinalEquity, 1e-6)

	// 止损日回撤同时以绝对额与比例记录
	stopDay := equityPointOn(t, res.EquityCurve, day("2024-01-12"))
	assert.InDelta(t, 1000, stopDay.Drawdown, 1e-6)
	assert.InDelta(t, 0.01, stopDay.DrawdownPct, 1e-9)
	assert.InDelta(t, -1000, stopDay.DailyPnL, 1e-6)
	assert.InDelta(t, -0.01, stopDay.DailyReturn, 1e-9)
}

// equityPointOn 在权益曲线上定位指定交易日的快照。
func equityPointOn(t *testing.T, curve []EquityPoint, d time.Time) EquityPoint {
	t.Helper()
	for _, p := range curve {
		if p.Date.Equal(d) {
			return p
		}
	}
	t.Fatalf("权益曲线缺少 %s", d.Format("2006-01-02"))
	return EquityPoint{}
}

func TestAdmitVolumeGate(t *testing.T) {
	cfg := testBacktestConfig()
	cfg.MinVolume = 5e5
	sig := scan.Signal{Ticker: "TEST", Price: 100, TradeType: "BUY", StopLoss: 95, Probability: 80}

	thin := market.Bar{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1e5}
	assert.False(t, admit(sig, thin, cfg))

	liquid := thin
	liquid.Volume = 1e6
	assert.True(t, admit(sig, liquid, cfg))

	// 门槛未配置时不设限
	cfg.MinVolume = 0
	assert.True(t, admit(sig, thin, cfg))
}

func TestAdmitMTFAlignmentGate(t *testing.T) {
	cfg := testBacktestConfig()
	cfg.RequireMTFAlignment = true
	b := market.Bar{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1e6}
	sig := scan.Signal{Ticker: "TEST", Price: 100, TradeType: "BUY", StopLoss: 95, Probability: 80}

	assert.False(t, admit(sig, b, cfg))

	sig.MTFAlignment = "Aligned"
	assert.True(t, admit(sig, b, cfg))
	sig.MTFAlignment = "bullish"
	assert.True(t, admit(sig, b, cfg))
	sig.MTFAlignment = "divergent"
	assert.False(t, admit(sig, b, cfg))

	// 未启用确认时忽略该字段
	cfg.RequireMTFAlignment = false
	assert.True(t, admit(sig, b, cfg))
}

func TestSimulatorMissingTickerWarnsAndContinues(t *testing.T) {
	source := &fakeSource{bars: map[string][]market.Bar{
		"TEST": flatBars(day("2023-09-01"), day("2024-01-31"), nil),
	}}
	sim := newTestSimulator(t, source, &scriptScorer{signalDay: day("2024-01-08")}, []string{"TEST", "GHOST"})

	res, err := sim.Run(context.Background(), RunParams{RunID: "test-run", Config: testBacktestConfig()})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "GHOST")
}

func TestSimulatorRejectsEmptyUniverse(t *testing.T) {
	source := &fakeSource{bars: map[string][]market.Bar{}}
	sim := newTestSimulator(t, source, &scriptScorer{}, []string{"GHOST"})

	_, err := sim.Run(context.Background(), RunParams{RunID: "test-run", Config: testBacktestConfig()})
	assert.Error(t, err)
}

func TestSimulatorBadDates(t *testing.T) {
	source := &fakeSource{bars: map[string][]market.Bar{}}
	sim := newTestSimulator(t, source, &scriptScorer{}, []string{"TEST"})

	cfg := testBacktestConfig()
	cfg.StartDate = "01/02/2024"
	_, err := sim.Run(context.Background(), RunParams{RunID: "test-run", Config: cfg})
	assert.Error(t, err)
}
