package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"swingbot/internal/config"
	"swingbot/internal/logger"
	"swingbot/internal/model"
)

// RunRequest HTTP 提交的回测请求，零值字段沿用基础配置。
type RunRequest struct {
	StartDate        string  `json:"start_date"`
	EndDate          string  `json:"end_date"`
	InitialEquity    float64 `json:"initial_equity"`
	RiskPerTradePct  float64 `json:"risk_per_trade_pct"`
	MaxOpenPositions int     `json:"max_open_positions"`
	MinProbability   float64 `json:"min_probability"`
	GapPolicy        string  `json:"gap_policy"`
	ExitModelEnabled *bool   `json:"exit_model_enabled"`
}

// Service 负责回测运行的受理与后台执行。
// 信号量限制并发运行数，每个运行独享模拟器状态。
type Service struct {
	sim       *Simulator
	store     *ResultStore
	evaluator func() *model.Evaluator
	baseCfg   config.BacktestConfig
	slots     chan struct{}
}

func NewService(sim *Simulator, store *ResultStore, evaluator func() *model.Evaluator, baseCfg config.BacktestConfig, maxSlots int) *Service {
	if maxSlots <= 0 {
		maxSlots = 2
	}
	return &Service{
		sim:       sim,
		store:     store,
		evaluator: evaluator,
		baseCfg:   baseCfg,
		slots:     make(chan struct{}, maxSlots),
	}
}

// Submit 受理一次回测：登记 PENDING 记录并转入后台执行，立即返回 run id。
func (s *Service) Submit(req RunRequest) (string, error) {
	cfg := s.mergeConfig(req)
	if _, err := time.Parse("2006-01-02", cfg.StartDate); err != nil {
		return "", fmt.Errorf("start_date 非法: %w", err)
	}
	if _, err := time.Parse("2006-01-02", cfg.EndDate); err != nil {
		return "", fmt.Errorf("end_date 非法: %w", err)
	}
	id := uuid.NewString()
	if err := s.store.CreateRun(context.Background(), id, cfg); err != nil {
		return "", fmt.Errorf("登记回测运行失败: %w", err)
	}
	go s.execute(id, cfg)
	return id, nil
}

func (s *Service) mergeConfig(req RunRequest) config.BacktestConfig {
	cfg := s.baseCfg
	if strings.TrimSpace(req.StartDate) != "" {
		cfg.StartDate = req.StartDate
	}
	if strings.TrimSpace(req.EndDate) != "" {
		cfg.EndDate = req.EndDate
	}
	if req.InitialEquity > 0 {
		cfg.InitialEquity = req.InitialEquity
	}
	if req.RiskPerTradePct > 0 {
		cfg.RiskPerTradePct = req.RiskPerTradePct
	}
	if req.MaxOpenPositions > 0 {
		cfg.MaxOpenPositions = req.MaxOpenPositions
	}
	if req.MinProbability > 0 {
		cfg.MinProbability = req.MinProbability
	}
	if strings.TrimSpace(req.GapPolicy) != "" {
		cfg.GapPolicy = req.GapPolicy
	}
	if req.ExitModelEnabled != nil {
		cfg.ExitModelEnabled = *req.ExitModelEnabled
	}
	return cfg
}

func (s *Service) execute(id string, cfg config.BacktestConfig) {
	ctx := context.Background()
	s.slots <- struct{}{}
	defer func() { <-s.slots }()

	if err := s.store.UpdateStatus(ctx, id, RunRunning, "回测执行中"); err != nil {
		logger.Errorf("更新运行状态失败 run=%s: %v", id, err)
	}
	var ev *model.Evaluator
	if cfg.ExitModelEnabled && s.evaluator != nil {
		ev = s.evaluator()
	}
	res, err := s.sim.Run(ctx, RunParams{
		RunID:     id,
		Config:    cfg,
		Evaluator: ev,
		Progress: func(msg string) {
			_ = s.store.UpdateStatus(ctx, id, RunRunning, msg)
		},
	})
	if err != nil {
		logger.Errorf("回测运行失败 run=%s: %v", id, err)
		_ = s.store.MarkFailed(ctx, id, err)
		return
	}
	if err := s.store.SaveResult(ctx, res); err != nil {
		logger.Errorf("保存回测结果失败 run=%s: %v", id, err)
		_ = s.store.MarkFailed(ctx, id, err)
	}
}
