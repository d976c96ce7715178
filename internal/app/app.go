package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"swingbot/internal/backtest"
	swcfg "swingbot/internal/config"
	"swingbot/internal/logger"
	"swingbot/internal/market"
	"swingbot/internal/model"
	"swingbot/internal/pricedata"
	"swingbot/internal/report"
	"swingbot/internal/scan"
	"swingbot/internal/transport/httpapi"
)

// App 负责应用级编排：加载配置→初始化依赖→按模式运行服务或一次性任务。
type App struct {
	cfg      *swcfg.Config
	server   *httpapi.Server
	hot      *model.HotEvaluator
	sim      *backtest.Simulator
	wf       *backtest.WalkForward
	results  *backtest.ResultStore
	scorer   scan.Scorer
	provider *pricedata.Provider
	universe *market.Universe
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *swcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务与模型工件热更新监听，阻塞直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.server == nil {
		return fmt.Errorf("http server not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if a.hot != nil {
		group.Go(func() error {
			return a.hot.Watch(ctx)
		})
	}

	logger.Infof("✓ 服务已启动 addr=%s universe=%d", a.cfg.App.HTTPAddr, len(a.universe.Tickers))
	return group.Wait()
}

// RunBacktest 以当前配置跑一次完整回测，落库并生成报告文件。
func (a *App) RunBacktest(ctx context.Context) error {
	id := uuid.NewString()
	if err := a.results.CreateRun(ctx, id, a.cfg.Backtest); err != nil {
		return fmt.Errorf("登记回测运行失败: %w", err)
	}
	var ev *model.Evaluator
	if a.cfg.Backtest.ExitModelEnabled {
		if a.hot == nil {
			return fmt.Errorf("已启用模型离场但评估器未初始化")
		}
		ev = a.hot.Current()
	}
	res, err := a.sim.Run(ctx, backtest.RunParams{
		RunID:     id,
		Config:    a.cfg.Backtest,
		Evaluator: ev,
		Progress:  func(msg string) { logger.Infof("回测进度: %s", msg) },
	})
	if err != nil {
		_ = a.results.MarkFailed(ctx, id, err)
		return err
	}
	if err := a.results.SaveResult(ctx, res); err != nil {
		return fmt.Errorf("保存回测结果失败: %w", err)
	}
	logger.Infof("回测完成 run=%s: trades=%d winRate=%.2f%% expectancy=%.2fR maxDD=%.2f%%",
		id, res.Stats.TotalTrades, res.Stats.WinRate*100, res.Stats.Expectancy, res.Stats.MaxDrawdown*100)
	return a.writeReport(id, res)
}

func (a *App) writeReport(id string, res *backtest.Result) error {
	dir := a.cfg.App.ReportDir
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	html, err := report.BuildHTML(res)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("backtest_%s.html", id))
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return err
	}
	logger.Infof("报告已生成: %s", path)
	return nil
}

// Train 构建训练集并训练离场模型，工件原子写入配置路径。
func (a *App) Train(ctx context.Context) error {
	start, err := time.Parse("2006-01-02", a.cfg.Trainer.StartDate)
	if err != nil {
		return fmt.Errorf("trainer.start_date 非法: %w", err)
	}
	end, err := time.Parse("2006-01-02", a.cfg.Trainer.EndDate)
	if err != nil {
		return fmt.Errorf("trainer.end_date 非法: %w", err)
	}
	cache := pricedata.NewRunCache(a.provider)
	samples, err := model.BuildDataset(ctx, a.scorer, cache, a.universe.Tickers, model.DatasetOptions{
		Start:          start,
		End:            end,
		MaxTradeDays:   a.cfg.Trainer.MaxTradeDays,
		HorizonDays:    a.cfg.Trainer.HorizonDays,
		ExitThresholdR: a.cfg.Trainer.ExitThresholdR,
		MinProbability: a.cfg.Backtest.MinProbability,
		Benchmark:      a.cfg.Backtest.BenchmarkTicker,
	})
	if err != nil {
		return err
	}
	coef, err := model.Train(samples, model.TrainOptions{
		Epochs:       a.cfg.Trainer.Epochs,
		LearningRate: a.cfg.Trainer.LearningRate,
		Momentum:     a.cfg.Trainer.Momentum,
		L2Lambda:     a.cfg.Trainer.L2Lambda,
		MinSamples:   a.cfg.Trainer.MinSamples,
		Version:      a.cfg.Trainer.Version,
	})
	if err != nil {
		return err
	}
	if err := coef.Save(a.cfg.Trainer.OutputPath); err != nil {
		return fmt.Errorf("写入模型工件失败: %w", err)
	}
	logger.Infof("训练完成: version=%s samples=%d auc=%.4f logloss=%.4f → %s",
		coef.Version, len(samples), coef.Metrics.AUC, coef.Metrics.LogLoss, a.cfg.Trainer.OutputPath)
	return nil
}

// RunWalkForward 执行滚动窗口优化，汇总报告写入报告目录。
func (a *App) RunWalkForward(ctx context.Context) error {
	rep, err := a.wf.Run(ctx, a.cfg)
	if err != nil {
		return err
	}
	dir := a.cfg.App.ReportDir
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("walkforward_%s.json", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return err
	}
	logger.Infof("滚动优化报告已生成: %s", path)
	return nil
}
