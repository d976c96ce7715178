package model

import (
	"context"
	"strings"
	"time"

	"swingbot/internal/features"
	"swingbot/internal/logger"
	"swingbot/internal/market"
	"swingbot/internal/pricedata"
	"swingbot/internal/scan"
)

// DatasetOptions 标注数据集构建参数。
type DatasetOptions struct {
	Start          time.Time
	End            time.Time
	MaxTradeDays   int     // 每个信号最多采样的持仓天数
	HorizonDays    int     // 向前看的最大交易日数
	ExitThresholdR float64 // maxFutureR - curR 低于该值标注为离场
	MinProbability float64 // 信号准入门槛
	Benchmark      string  // 基准 ticker，空则基准特征记 0
}

// 指标预热需要的历史天数（SMA50 加缓冲）。
const warmupCalendarDays = 120

// BuildDataset 扫描历史信号并构造 (特征, 标签) 样本：
// 对每个被采纳的信号，从入场次日起逐日采样 1..MaxTradeDays；
// 若区间内后续最大可得 R 相比当前 R 的增量不超过阈值，标注应离场。
// 同一 ticker 同时只模拟一笔假想持仓，避免重叠信号刷样本。
func BuildDataset(ctx context.Context, scorer scan.Scorer, cache *pricedata.RunCache, tickers []string, opts DatasetOptions) ([]Sample, error) {
	if opts.MaxTradeDays <= 0 {
		opts.MaxTradeDays = 30
	}
	if opts.HorizonDays < opts.MaxTradeDays {
		opts.HorizonDays = 45
	}
	if opts.ExitThresholdR <= 0 {
		opts.ExitThresholdR = 0.3
	}

	benchmark := strings.ToUpper(strings.TrimSpace(opts.Benchmark))
	if benchmark != "" {
		from := opts.Start.AddDate(0, 0, -warmupCalendarDays)
		to := market.AddTradingDays(opts.End, opts.HorizonDays+2)
		if !cache.Preload(ctx, benchmark, from, to) {
			logger.Warnf("基准 %s 行情不可用，基准相关特征记 0", benchmark)
			benchmark = ""
		}
	}

	var samples []Sample
	days := market.TradingDays(opts.Start, opts.End)
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loadFrom := opts.Start.AddDate(0, 0, -warmupCalendarDays)
		loadTo := market.AddTradingDays(opts.End, opts.HorizonDays+2)
		if !cache.Preload(ctx, ticker, loadFrom, loadTo) {
			logger.Warnf("训练集跳过 %s: 行情不可用", ticker)
			continue
		}
		bars := cache.Bars(ticker)
		index := make(map[string]int, len(bars))
		for i, b := range bars {
			index[b.DayKey()] = i
		}

		skipUntil := -1
		for _, day := range days {
			signalIdx, ok := index[market.Normalize(day).Format("2006-01-02")]
			if !ok || signalIdx <= skipUntil {
				continue
			}
			sig, err := scorer.Score(ctx, ticker, day)
			if err != nil {
				logger.Debugf("训练集评分失败 %s@%s: %v", ticker, day.Format("2006-01-02"), err)
				continue
			}
			if sig.Probability < opts.MinProbability || sig.StopLoss <= 0 || sig.StopLoss >= sig.Price {
				continue
			}
			entryIdx := signalIdx + 1
			if entryIdx >= len(bars) {
				continue
			}
			entry := bars[entryIdx].Open
			riskBasis := entry - sig.StopLoss
			if riskBasis <= 0 {
				continue
			}
			added, lastIdx := sampleSignal(cache, ticker, benchmark, bars, entryIdx, entry, sig.StopLoss, riskBasis, opts)
			samples = append(samples, added...)
			skipUntil = lastIdx
		}
	}
	logger.Infof("训练集构建完成: %d 条样本", len(samples))
	return samples, nil
}

// sampleSignal 为单个信号生成逐日样本，返回样本与该笔假想持仓结束的序列下标。
func sampleSignal(cache *pricedata.RunCache, ticker, benchmark string, bars []market.Bar, entryIdx int, entry, stop, riskBasis float64, opts DatasetOptions) ([]Sample, int) {
	var out []Sample
	mfeR, maeR := 0.0, 0.0
	lastIdx := entryIdx
	for k := 1; k <= opts.MaxTradeDays; k++ {
		i := entryIdx + k
		if i >= len(bars) {
			break
		}
		lastIdx = i
		b := bars[i]
		if r := (b.High - entry) / riskBasis; r > mfeR {
			mfeR = r
		}
		if r := (b.Low - entry) / riskBasis; r < maeR {
			maeR = r
		}
		if b.Low <= stop {
			// 假想持仓已被止损打掉，后续不再有持有状态
			break
		}
		curR := (b.Close - entry) / riskBasis
		maxFutureR := curR
		horizonEnd := entryIdx + opts.HorizonDays
		if horizonEnd >= len(bars) {
			horizonEnd = len(bars) - 1
		}
		for j := i + 1; j <= horizonEnd; j++ {
			if r := (bars[j].High - entry) / riskBasis; r > maxFutureR {
				maxFutureR = r
			}
		}
		label := 0
		if maxFutureR-curR <= opts.ExitThresholdR {
			label = 1
		}
		var benchBars []market.Bar
		if benchmark != "" {
			benchBars = cache.BarsUntil(benchmark, b.Date)
		}
		vec := features.Extract(features.TradeState{
			Entry:          entry,
			RiskBasis:      riskBasis,
			Close:          b.Close,
			Day:            b.Date,
			DaysHeld:       k,
			MaxHoldingDays: opts.MaxTradeDays,
			MFER:           mfeR,
			MAER:           maeR,
		}, cache.BarsUntil(ticker, b.Date), benchBars)
		out = append(out, Sample{Vector: vec, Label: label})
	}
	return out, lastIdx
}
