package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"swingbot/internal/config"
	"swingbot/internal/features"
	"swingbot/internal/logger"
	"swingbot/internal/market"
	"swingbot/internal/model"
	"swingbot/internal/pkg/trading"
	"swingbot/internal/pricedata"
	"swingbot/internal/scan"
)

// 指标预热所需的额外历史（SMA50 加缓冲）。
const warmupCalendarDays = 120

// Simulator 事件驱动的日线回测引擎。
// 每个 Run 独享一份 RunCache，多次 Run 之间不共享可变状态。
type Simulator struct {
	scorer   scan.Scorer
	provider *pricedata.Provider
	universe *market.Universe
}

func NewSimulator(scorer scan.Scorer, provider *pricedata.Provider, universe *market.Universe) *Simulator {
	return &Simulator{scorer: scorer, provider: provider, universe: universe}
}

// RunParams 单次回测的输入。Evaluator 为空时不启用模型离场。
type RunParams struct {
	RunID     string
	Config    config.BacktestConfig
	Evaluator *model.Evaluator
	Progress  func(msg string)
}

// Run 执行一次完整回测：逐交易日推进，先成交前一日选出的入场，
// 再按优先级评估离场，收盘后扫描次日候选并记录权益快照。
func (s *Simulator) Run(ctx context.Context, params RunParams) (*Result, error) {
	cfg := params.Config
	start, err := time.Parse("2006-01-02", cfg.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start_date 非法: %w", err)
	}
	end, err := time.Parse("2006-01-02", cfg.EndDate)
	if err != nil {
		return nil, fmt.Errorf("end_date 非法: %w", err)
	}
	days := market.TradingDays(start, end)
	if len(days) == 0 {
		return nil, fmt.Errorf("回测区间内没有交易日 (%s ~ %s)", cfg.StartDate, cfg.EndDate)
	}
	progress := params.Progress
	if progress == nil {
		progress = func(string) {}
	}

	res := &Result{RunID: params.RunID, Config: cfg, StartedAt: time.Now()}

	cache := pricedata.NewRunCache(s.provider)
	warmupFrom := start.AddDate(0, 0, -warmupCalendarDays)
	benchmark := strings.ToUpper(strings.TrimSpace(cfg.BenchmarkTicker))
	if benchmark != "" && !cache.Preload(ctx, benchmark, warmupFrom, end) {
		msg := fmt.Sprintf("基准 %s 行情不可用，基准相关特征记 0", benchmark)
		logger.Warnf("%s", msg)
		res.Warnings = append(res.Warnings, msg)
		benchmark = ""
	}
	available := make([]string, 0, len(s.universe.Tickers))
	for _, ticker := range s.universe.Tickers {
		if cache.Preload(ctx, ticker, warmupFrom, end) {
			available = append(available, ticker)
		} else {
			msg := fmt.Sprintf("ticker %s 行情不可用，整轮回测跳过", ticker)
			logger.Warnf("%s", msg)
			res.Warnings = append(res.Warnings, msg)
		}
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("股票池内没有任何可用行情")
	}

	manager := NewManager(ManagerConfig{
		GapPolicy:           GapPolicy(cfg.GapPolicy),
		GapSkipThresholdPct: cfg.GapSkipThresholdPct,
		MaxHoldingDays:      cfg.MaxHoldingDays,
		TrailingActivationR: cfg.TrailingActivationR,
		TrailingStopPct:     cfg.TrailingStopPct,
		TP1Fraction:         cfg.TP1Fraction,
		TP2Fraction:         cfg.TP2Fraction,
		SlippagePct:         cfg.SlippagePct,
		CommissionPerTrade:  cfg.CommissionPerTrade,
	})

	cash := cfg.InitialEquity
	equity := cash
	peak := equity
	prevEquity := equity
	open := make(map[string]*Trade)
	lastClose := make(map[string]float64)
	var closed []*Trade
	var pending []scan.Signal

	for i, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		isLastDay := i == len(days)-1
		dayPnL := 0.0

		// 1. 前一日选出的候选按今日开盘价入场
		for _, sig := range pending {
			s.openPosition(cache, open, &cash, equity, day, sig, cfg, res)
		}
		pending = nil

		// 2. 离场评估（入场当日不评估）
		for ticker, t := range open {
			bar, ok := cache.BarOn(ticker, day)
			if !ok {
				logger.Debugf("%s 当日 %s 缺数据，跳过离场评估", ticker, day.Format("2006-01-02"))
				continue
			}
			lastClose[ticker] = bar.Close
			if market.Normalize(t.EntryDate).Equal(day) {
				continue
			}
			for _, f := range manager.Evaluate(t, bar, day) {
				cash += float64(f.Shares)*f.Price - cfg.CommissionPerTrade
			}
			if t.Status == TradeClosed {
				dayPnL += t.RealizedPnL
				closed = append(closed, t)
				delete(open, ticker)
				continue
			}
			// 3. 规则未离场时征询模型意见
			if cfg.ExitModelEnabled && params.Evaluator != nil {
				var benchBars []market.Bar
				if benchmark != "" {
					benchBars = cache.BarsUntil(benchmark, day)
				}
				vec := features.Extract(features.TradeState{
					Entry:          t.EntryPrice,
					RiskBasis:      t.RiskBasis,
					Close:          bar.Close,
					Day:            day,
					DaysHeld:       t.DaysHeld,
					MaxHoldingDays: cfg.MaxHoldingDays,
					MFER:           t.MFE,
					MAER:           t.MAE,
				}, cache.BarsUntil(ticker, day), benchBars)
				decision := params.Evaluator.Evaluate(vec, t.UnrealizedR(bar.Close),
					t.DaysHeld >= cfg.MaxHoldingDays, model.DefaultExitThreshold)
				if decision.ShouldExit {
					if fill, ok := manager.CloseAtMarket(t, day, bar.Close, ExitModel); ok {
						cash += float64(fill.Shares)*fill.Price - cfg.CommissionPerTrade
						logger.Debugf("模型离场 %s p=%.2f conf=%.2f 理由=%s",
							ticker, decision.Probability, decision.Confidence, strings.Join(decision.Reasons, "; "))
						dayPnL += t.RealizedPnL
						closed = append(closed, t)
						delete(open, ticker)
					}
				}
			}
		}

		// 4. 回测结束日强制平仓
		if isLastDay {
			for ticker, t := range open {
				price := lastClose[ticker]
				if price <= 0 {
					price = t.EntryPrice
				}
				if fill, ok := manager.CloseAtMarket(t, day, price, ExitTime); ok {
					cash += float64(fill.Shares)*fill.Price - cfg.CommissionPerTrade
				}
				dayPnL += t.RealizedPnL
				closed = append(closed, t)
				delete(open, ticker)
			}
		}

		// 5. 收盘扫描，为次日挑选入场候选
		if !isLastDay && len(open) < cfg.MaxOpenPositions {
			free := cfg.MaxOpenPositions - len(open)
			pending = s.scanCandidates(ctx, cache, day, open, cfg, free)
		}

		// 6. 权益快照
		equity = cash
		for ticker, t := range open {
			price := lastClose[ticker]
			if price <= 0 {
				price = t.EntryPrice
			}
			equity += t.MarketValue(price)
		}
		if equity > peak {
			peak = equity
		}
		dd := math.Max(0, peak-equity)
		ddPct := 0.0
		if peak > 0 {
			ddPct = dd / peak
		}
		dailyReturn := 0.0
		if prevEquity > 0 {
			dailyReturn = (equity - prevEquity) / prevEquity
		}
		res.EquityCurve = append(res.EquityCurve, EquityPoint{
			Date:          day,
			Equity:        trading.RoundCash(equity),
			Cash:          trading.RoundCash(cash),
			OpenPositions: len(open),
			Drawdown:      trading.RoundCash(dd),
			DrawdownPct:   ddPct,
			DailyPnL:      trading.RoundCash(dayPnL),
			DailyReturn:   dailyReturn,
		})
		prevEquity = equity
		if (i+1)%21 == 0 || isLastDay {
			progress(fmt.Sprintf("进度 %d/%d 交易日, 权益 %.2f, 持仓 %d, 已平仓 %d",
				i+1, len(days), equity, len(open), len(closed)))
		}
	}

	sort.Slice(closed, func(i, j int) bool { return closed[i].EntryDate.Before(closed[j].EntryDate) })
	res.Trades = closed
	res.Stats = ComputeMetrics(closed, res.EquityCurve, cfg.InitialEquity)
	res.Attribution = ComputeAttribution(closed)
	res.Calibration = ComputeCalibration(closed)
	res.FinishedAt = time.Now()
	logger.Infof("回测完成 run=%s: trades=%d winRate=%.2f%% expectancy=%.2fR maxDD=%.2f%%",
		params.RunID, res.Stats.TotalTrades, res.Stats.WinRate*100, res.Stats.Expectancy, res.Stats.MaxDrawdown*100)
	return res, nil
}

// openPosition 以当日开盘价尝试建仓。任何单信号失败只记日志，不影响整体运行。
func (s *Simulator) openPosition(cache *pricedata.RunCache, open map[string]*Trade, cash *float64, equity float64, day time.Time, sig scan.Signal, cfg config.BacktestConfig, res *Result) {
	if len(open) >= cfg.MaxOpenPositions {
		return
	}
	if _, held := open[sig.Ticker]; held {
		return
	}
	bar, ok := cache.BarOn(sig.Ticker, day)
	if !ok {
		logger.Debugf("%s 入场日 %s 缺数据，放弃该信号", sig.Ticker, day.Format("2006-01-02"))
		return
	}
	entry := trading.ApplySlippage(bar.Open, cfg.SlippagePct, true)
	if sig.StopLoss <= 0 || sig.StopLoss >= entry {
		logger.Warnf("%s 信号止损非法 (stop=%.4f entry=%.4f)，放弃", sig.Ticker, sig.StopLoss, entry)
		return
	}
	shares := trading.RiskShares(equity, cfg.RiskPerTradePct, entry, sig.StopLoss)
	if shares <= 0 {
		logger.Debugf("%s 风险仓位为 0，放弃", sig.Ticker)
		return
	}
	if affordable := int((*cash - cfg.CommissionPerTrade) / entry); shares > affordable {
		shares = affordable
	}
	if shares <= 0 {
		logger.Debugf("%s 现金不足，放弃", sig.Ticker)
		return
	}
	t, err := NewTrade(sig.Ticker, s.universe.Sector(sig.Ticker), sig.Regime, day,
		entry, sig.Price, sig.StopLoss, sig.Probability, shares, resolveTakeProfits(sig, entry, cfg))
	if err != nil {
		logger.Warnf("建仓失败: %v", err)
		return
	}
	t.Commission += cfg.CommissionPerTrade
	t.RealizedPnL -= cfg.CommissionPerTrade
	*cash -= float64(shares)*entry + cfg.CommissionPerTrade
	open[sig.Ticker] = t
	logger.Debugf("建仓 %s %d 股 @%.4f stop=%.4f prob=%.1f", sig.Ticker, shares, entry, sig.StopLoss, sig.Probability)
}

// resolveTakeProfits 优先使用信号自带的三档止盈价，不足时按 R 倍数推导。
func resolveTakeProfits(sig scan.Signal, entry float64, cfg config.BacktestConfig) [3]float64 {
	if len(sig.TakeProfits) >= 3 {
		tps := append([]float64(nil), sig.TakeProfits[:3]...)
		sort.Float64s(tps)
		if tps[0] > entry {
			return [3]float64{tps[0], tps[1], tps[2]}
		}
	}
	risk := entry - sig.StopLoss
	return [3]float64{
		entry + cfg.TP1R*risk,
		entry + cfg.TP2R*risk,
		entry + cfg.TP3R*risk,
	}
}

// scanCandidates 收盘后对股票池评分，按概率降序取前 free 个作为次日入场候选。
// 单个 ticker 评分失败只影响它自己当日的资格。
func (s *Simulator) scanCandidates(ctx context.Context, cache *pricedata.RunCache, day time.Time, open map[string]*Trade, cfg config.BacktestConfig, free int) []scan.Signal {
	var candidates []scan.Signal
	for _, ticker := range s.universe.Tickers {
		if _, held := open[ticker]; held {
			continue
		}
		bar, ok := cache.BarOn(ticker, day)
		if !ok {
			continue
		}
		sig, err := s.scorer.Score(ctx, ticker, day)
		if err != nil {
			logger.Debugf("评分失败 %s@%s: %v", ticker, day.Format("2006-01-02"), err)
			continue
		}
		if !admit(sig, bar, cfg) {
			continue
		}
		candidates = append(candidates, sig)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Probability > candidates[j].Probability
	})
	if len(candidates) > free {
		candidates = candidates[:free]
	}
	return candidates
}

// admit 信号准入：做多方向、概率门槛（市场状态调整后）、
// 量能与多周期确认（按配置启用）、止损与盈亏比合法。
func admit(sig scan.Signal, bar market.Bar, cfg config.BacktestConfig) bool {
	switch strings.ToUpper(strings.TrimSpace(sig.TradeType)) {
	case "BUY", "LONG":
	default:
		return false
	}
	regime := strings.ToLower(strings.TrimSpace(sig.Regime))
	if regime == "crash" {
		return false
	}
	minProb := cfg.MinProbability
	if regime == "choppy" {
		minProb += cfg.ChoppyProbBump
	}
	if sig.Probability < minProb {
		return false
	}
	if cfg.MinVolume > 0 && bar.Volume < cfg.MinVolume {
		return false
	}
	if cfg.RequireMTFAlignment && !mtfAligned(sig.MTFAlignment) {
		return false
	}
	if sig.StopLoss <= 0 || sig.StopLoss >= sig.Price {
		return false
	}
	risk := sig.Price - sig.StopLoss
	tp1 := sig.Price + cfg.TP1R*risk
	if len(sig.TakeProfits) > 0 && sig.TakeProfits[0] > sig.Price {
		tp1 = sig.TakeProfits[0]
	}
	if (tp1-sig.Price)/risk < cfg.MinRewardRisk {
		return false
	}
	return true
}

// mtfAligned 多周期共振确认。评分服务给出 aligned/bullish 视为通过。
func mtfAligned(alignment string) bool {
	switch strings.ToLower(strings.TrimSpace(alignment)) {
	case "aligned", "bullish":
		return true
	default:
		return false
	}
}
