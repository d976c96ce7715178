package app

import (
	"context"
	"fmt"
	"time"

	"swingbot/internal/backtest"
	swcfg "swingbot/internal/config"
	"swingbot/internal/logger"
	"swingbot/internal/market"
	"swingbot/internal/model"
	"swingbot/internal/pricedata"
	"swingbot/internal/scan"
	"swingbot/internal/transport/httpapi"
)

// AppBuilder 按依赖顺序组装应用。各环节可被选项替换，便于测试注入。
type AppBuilder struct {
	cfg *swcfg.Config

	universeFn func(string) (*market.Universe, error)
	sourceFn   func(*swcfg.Config) (pricedata.Source, error)
	scorerFn   func(*swcfg.Config) (scan.Scorer, error)

	scorerOverride scan.Scorer
}

type AppBuilderOption func(*AppBuilder)

// WithScorer 注入评分器实现，替代 HTTP 客户端。
func WithScorer(s scan.Scorer) AppBuilderOption {
	return func(b *AppBuilder) { b.scorerOverride = s }
}

func NewAppBuilder(cfg *swcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		universeFn: market.LoadUniverse,
		sourceFn:   buildSource,
		scorerFn:   buildScorer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildSource(cfg *swcfg.Config) (pricedata.Source, error) {
	switch cfg.Data.Provider {
	case "", "stooq":
		return pricedata.NewStooqSource(cfg.Data.StooqBaseURL), nil
	case "binance":
		return pricedata.NewBinanceSource(), nil
	default:
		return nil, fmt.Errorf("未知行情来源: %s", cfg.Data.Provider)
	}
}

func buildScorer(cfg *swcfg.Config) (scan.Scorer, error) {
	return scan.NewHTTPScorer(scan.HTTPScorerConfig{
		BaseURL:          cfg.Scan.ScorerURL,
		Timeout:          time.Duration(cfg.Scan.TimeoutSeconds) * time.Second,
		BreakerThreshold: cfg.Scan.BreakerThreshold,
		BreakerCooldown:  time.Duration(cfg.Scan.BreakerCooldown) * time.Second,
	})
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	universe, err := b.universeFn(cfg.Data.UniversePath)
	if err != nil {
		return nil, fmt.Errorf("加载标的清单失败: %w", err)
	}
	logger.Infof("✓ 已加载 %d 个标的, %d 个行业映射", len(universe.Tickers), len(universe.Sectors))

	source, err := b.sourceFn(cfg)
	if err != nil {
		return nil, err
	}
	barStore, err := pricedata.NewStore(cfg.Data.CachePath)
	if err != nil {
		return nil, fmt.Errorf("打开行情缓存失败: %w", err)
	}
	budget := pricedata.NewHistoryBudget(cfg.Data.FetchPerSec, cfg.Data.FetchBurst, cfg.Data.MaxRetries)
	provider := pricedata.NewProvider(source, barStore, budget)

	scorer := b.scorerOverride
	if scorer == nil {
		scorer, err = b.scorerFn(cfg)
		if err != nil {
			return nil, fmt.Errorf("初始化评分客户端失败: %w", err)
		}
	}

	var hot *model.HotEvaluator
	if cfg.Backtest.ExitModelEnabled {
		hot, err = model.NewHotEvaluator(cfg.Backtest.ExitModelPath)
		if err != nil {
			return nil, fmt.Errorf("加载离场模型工件失败: %w", err)
		}
		logger.Infof("✓ 离场模型已加载: version=%s", hot.Current().Version())
	}

	sim := backtest.NewSimulator(scorer, provider, universe)
	results, err := backtest.NewResultStore(cfg.App.ResultDB)
	if err != nil {
		return nil, err
	}
	evaluator := func() *model.Evaluator {
		if hot == nil {
			return nil
		}
		return hot.Current()
	}
	svc := backtest.NewService(sim, results, evaluator, cfg.Backtest, cfg.App.MaxRunSlots)
	server, err := httpapi.NewServer(httpapi.Config{
		Addr:    cfg.App.HTTPAddr,
		Service: svc,
		Results: results,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		server:   server,
		hot:      hot,
		sim:      sim,
		wf:       backtest.NewWalkForward(sim, scorer, provider, universe),
		results:  results,
		scorer:   scorer,
		provider: provider,
		universe: universe,
	}, nil
}
