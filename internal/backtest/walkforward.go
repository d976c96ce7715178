package backtest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"swingbot/internal/config"
	"swingbot/internal/logger"
	"swingbot/internal/market"
	"swingbot/internal/model"
	"swingbot/internal/pricedata"
	"swingbot/internal/scan"
)

// Window 一个滚动窗口：训练段与紧随其后的测试段，均为交易日闭区间。
// 测试段数据绝不参与该窗口的模型训练。
type Window struct {
	Index      int       `json:"index"`
	TrainStart time.Time `json:"train_start"`
	TrainEnd   time.Time `json:"train_end"`
	TestStart  time.Time `json:"test_start"`
	TestEnd    time.Time `json:"test_end"`
}

// BuildWindows 在 [start, end] 的交易日序列上切分滚动窗口。
func BuildWindows(start, end time.Time, trainDays, testDays, stepDays int) []Window {
	days := market.TradingDays(start, end)
	if trainDays <= 0 || testDays <= 0 || len(days) < trainDays+testDays {
		return nil
	}
	if stepDays <= 0 {
		stepDays = testDays
	}
	var windows []Window
	for offset := 0; offset+trainDays+testDays <= len(days); offset += stepDays {
		windows = append(windows, Window{
			Index:      len(windows),
			TrainStart: days[offset],
			TrainEnd:   days[offset+trainDays-1],
			TestStart:  days[offset+trainDays],
			TestEnd:    days[offset+trainDays+testDays-1],
		})
	}
	return windows
}

// WindowResult 单个窗口的训练产物与样本外回测结果。
type WindowResult struct {
	Window Window              `json:"window"`
	Model  *model.Coefficients `json:"model"`
	Result *Result             `json:"result"`
}

// WalkForwardReport 滚动优化汇总。OOSStats 基于全部样本外交易，
// 夏普与回撤按窗口单独统计（各窗口权益互不衔接）。
type WalkForwardReport struct {
	Windows         []WindowResult `json:"windows"`
	OOSStats        Metrics        `json:"oos_stats"`
	AvgWindowSharpe float64        `json:"avg_window_sharpe"`
	WorstWindowDD   float64        `json:"worst_window_dd"`
}

// WalkForward 滚动窗口优化器。窗口之间无共享可变状态，可并行执行。
type WalkForward struct {
	sim      *Simulator
	scorer   scan.Scorer
	provider *pricedata.Provider
	universe *market.Universe
}

func NewWalkForward(sim *Simulator, scorer scan.Scorer, provider *pricedata.Provider, universe *market.Universe) *WalkForward {
	return &WalkForward{sim: sim, scorer: scorer, provider: provider, universe: universe}
}

// Run 对每个窗口：用训练段构建数据集并训练离场模型，
// 再用该模型在测试段跑一次启用模型离场的回测。窗口并行执行。
func (w *WalkForward) Run(ctx context.Context, cfg *config.Config) (*WalkForwardReport, error) {
	start, err := time.Parse("2006-01-02", cfg.Backtest.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start_date 非法: %w", err)
	}
	end, err := time.Parse("2006-01-02", cfg.Backtest.EndDate)
	if err != nil {
		return nil, fmt.Errorf("end_date 非法: %w", err)
	}
	windows := BuildWindows(start, end, cfg.WalkForward.TrainDays, cfg.WalkForward.TestDays, cfg.WalkForward.StepDays)
	if len(windows) == 0 {
		return nil, fmt.Errorf("区间不足以切出任何滚动窗口 (%s ~ %s)", cfg.Backtest.StartDate, cfg.Backtest.EndDate)
	}
	logger.Infof("滚动优化: %d 个窗口, 并行度 %d", len(windows), cfg.WalkForward.Parallelism)

	results := make([]WindowResult, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.WalkForward.Parallelism)
	for i := range windows {
		win := windows[i]
		idx := i
		g.Go(func() error {
			wr, err := w.runWindow(gctx, cfg, win)
			if err != nil {
				return fmt.Errorf("窗口 %d 失败: %w", win.Index, err)
			}
			results[idx] = wr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &WalkForwardReport{Windows: results}
	var allTrades []*Trade
	var sharpeSum float64
	for _, wr := range results {
		allTrades = append(allTrades, wr.Result.Trades...)
		sharpeSum += wr.Result.Stats.Sharpe
		if wr.Result.Stats.MaxDrawdown > report.WorstWindowDD {
			report.WorstWindowDD = wr.Result.Stats.MaxDrawdown
		}
	}
	report.OOSStats = ComputeMetrics(allTrades, nil, cfg.Backtest.InitialEquity)
	report.AvgWindowSharpe = sharpeSum / float64(len(results))
	logger.Infof("滚动优化完成: OOS trades=%d winRate=%.2f%% expectancy=%.2fR",
		report.OOSStats.TotalTrades, report.OOSStats.WinRate*100, report.OOSStats.Expectancy)
	return report, nil
}

func (w *WalkForward) runWindow(ctx context.Context, cfg *config.Config, win Window) (WindowResult, error) {
	// 训练段数据集：每个窗口独享 RunCache
	cache := pricedata.NewRunCache(w.provider)
	samples, err := model.BuildDataset(ctx, w.scorer, cache, w.universe.Tickers, model.DatasetOptions{
		Start:          win.TrainStart,
		End:            win.TrainEnd,
		MaxTradeDays:   cfg.Trainer.MaxTradeDays,
		HorizonDays:    cfg.Trainer.HorizonDays,
		ExitThresholdR: cfg.Trainer.ExitThresholdR,
		MinProbability: cfg.Backtest.MinProbability,
		Benchmark:      cfg.Backtest.BenchmarkTicker,
	})
	if err != nil {
		return WindowResult{}, err
	}
	coef, err := model.Train(samples, model.TrainOptions{
		Epochs:       cfg.Trainer.Epochs,
		LearningRate: cfg.Trainer.LearningRate,
		Momentum:     cfg.Trainer.Momentum,
		L2Lambda:     cfg.Trainer.L2Lambda,
		MinSamples:   cfg.Trainer.MinSamples,
		Version:      fmt.Sprintf("%s-w%d", cfg.Trainer.Version, win.Index),
	})
	if err != nil {
		return WindowResult{}, err
	}
	ev, err := model.NewEvaluator(coef)
	if err != nil {
		return WindowResult{}, err
	}

	testCfg := cfg.Backtest
	testCfg.StartDate = win.TestStart.Format("2006-01-02")
	testCfg.EndDate = win.TestEnd.Format("2006-01-02")
	testCfg.ExitModelEnabled = true
	res, err := w.sim.Run(ctx, RunParams{
		RunID:     fmt.Sprintf("wf-%d", win.Index),
		Config:    testCfg,
		Evaluator: ev,
	})
	if err != nil {
		return WindowResult{}, err
	}
	logger.Infof("窗口 %d 完成: 样本 %d, OOS trades=%d", win.Index, len(samples), res.Stats.TotalTrades)
	return WindowResult{Window: win, Model: coef, Result: res}, nil
}
