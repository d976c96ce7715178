package backtest

import (
	"context"
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

func TestBuildWindows(t *testing.T) {
	// 2024-01-01 是周一，6 周共 30 个交易日
	start := day("2024-01-01")
	end := day("2024-02-09")
	require.Len(t, market.TradingDays(start, end), 30)

	windows := BuildWindows(start, end, 10, 5, 5)
	require.Len(t, windows, 4)

	for i, w := range windows {
		assert.Equal(t, i, w.Index)
		// 训练段与测试段无重叠，测试段紧随训练段
		assert.True(t, w.TrainEnd.Before(w.TestStart), "窗口 %d 训练段侵入测试段", i)
		assert.Equal(t, market.NextTradingDay(w.TrainEnd), w.TestStart)
		assert.Len(t, market.TradingDays(w.TrainStart, w.TrainEnd), 10)
		assert.Len(t, market.TradingDays(w.TestStart, w.TestEnd), 5)
	}
	// 相邻窗口按步长前移
	assert.Equal(t, market.AddTradingDays(windows[0].TrainStart, 5), windows[1].TrainStart)
}

func TestBuildWindowsStepDefaultsToTestDays(t *testing.T) {
	windows := BuildWindows(day("2024-01-01"), day("2024-02-09"), 10, 5, 0)
	require.Len(t, windows, 4)
	assert.Equal(t, market.AddTradingDays(windows[0].TrainStart, 5), windows[1].TrainStart)
}

func TestBuildWindowsInsufficientRange(t *testing.T) {
	assert.Nil(t, BuildWindows(day("2024-01-01"), day("2024-01-05"), 10, 5, 5))
	assert.Nil(t, BuildWindows(day("2024-01-01"), day("2024-02-09"), 0, 5, 5))
	assert.Nil(t, BuildWindows(day("2024-02-09"), day("2024-01-01"), 10, 5, 5))
}

// steadyScorer 每个交易日都给出可入场信号。
type steadyScorer struct{}

func (steadyScorer) Score(_ context.Context, ticker string, asOf time.Time) (scan.Signal, error) {
	return scan.Signal{
		Ticker:      ticker,
		AsOf:        asOf,
		Price:       100,
		Probability: 80,
		TradeType:   "BUY",
		StopLoss:    95,
		Regime:      "trending",
	}, nil
}

// zigzagBars 生成 100/110 交替的日线，持有价值随日内位置摆动，
// 训练集因此天然包含持有与离场两类标签。
func zigzagBars(from, to time.Time) []market.Bar {
	var bars []market.Bar
	for i, d := range market.TradingDays(from, to) {
		p := 100.0
		if i%2 == 1 {
			p = 110
		}
		bars = append(bars, market.Bar{Date: d, Open: p, High: p, Low: p, Close: p, Volume: 1e6})
	}
	return bars
}

func TestWalkForwardTradesStayInsideTestWindows(t *testing.T) {
	source := &fakeSource{bars: map[string][]market.Bar{
		"TEST": zigzagBars(day("2023-08-01"), day("2024-03-29")),
	}}
	store, err := pricedata.NewStore(filepath.Join(t.TempDir(), "bars.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	provider := pricedata.NewProvider(source, store, pricedata.NewHistoryBudget(1000, 10, 1))
	universe := &market.Universe{Tickers: []string{"TEST"}, Sectors: map[string]string{"TEST": "TECHNOLOGY"}}
	scorer := steadyScorer{}
	wf := NewWalkForward(NewSimulator(scorer, provider, universe), scorer, provider, universe)

	cfg := &config.Config{
		Backtest: testBacktestConfig(),
		Trainer: config.TrainerConfig{
			MaxTradeDays:   5,
			HorizonDays:    10,
			ExitThresholdR: 0.3,
			Epochs:         50,
			LearningRate:   0.1,
			Momentum:       0.9,
			L2Lambda:       0.001,
			MinSamples:     10,
			Version:        "wf-test",
		},
		WalkForward: config.WalkForwardConfig{TrainDays: 20, TestDays: 5, StepDays: 5, Parallelism: 2},
	}
	cfg.Backtest.StartDate = "2024-01-01"
	cfg.Backtest.EndDate = "2024-02-09"

	report, err := wf.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, report.Windows, 2)

	for _, wr := range report.Windows {
		require.NotNil(t, wr.Model)
		require.NotNil(t, wr.Result)
		require.NotEmpty(t, wr.Result.Trades)
		// 样本外回测只允许在本窗口测试段内入场
		for _, tr := range wr.Result.Trades {
			assert.False(t, tr.EntryDate.Before(wr.Window.TestStart),
				"窗口 %d 的交易 %s 入场早于测试段", wr.Window.Index, tr.EntryDate.Format("2006-01-02"))
			assert.False(t, tr.EntryDate.After(wr.Window.TestEnd),
				"窗口 %d 的交易 %s 入场晚于测试段", wr.Window.Index, tr.EntryDate.Format("2006-01-02"))
		}
	}
	assert.Equal(t, report.OOSStats.TotalTrades, len(report.Windows[0].Result.Trades)+len(report.Windows[1].Result.Trades))
}
