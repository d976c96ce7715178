package config

import "strings"

// Config 汇总全部运行配置，按功能分节。
type Config struct {
	App         AppConfig         `toml:"app"`
	Data        DataConfig        `toml:"data"`
	Scan        ScanConfig        `toml:"scan"`
	Backtest    BacktestConfig    `toml:"backtest"`
	Trainer     TrainerConfig     `toml:"trainer"`
	WalkForward WalkForwardConfig `toml:"walkforward"`
}

// AppConfig 进程级配置。
type AppConfig struct {
	Env         string `toml:"env"`
	LogLevel    string `toml:"log_level"`
	LogPath     string `toml:"log_path"`
	HTTPAddr    string `toml:"http_addr"`
	ResultDB    string `toml:"result_db"`
	ReportDir   string `toml:"report_dir"`
	MaxRunSlots int    `toml:"max_run_slots"`
}

// DataConfig 行情数据来源与本地缓存。
type DataConfig struct {
	Provider     string  `toml:"provider"`
	StooqBaseURL string  `toml:"stooq_base_url"`
	CachePath    string  `toml:"cache_path"`
	UniversePath string  `toml:"universe_path"`
	FetchPerSec  float64 `toml:"fetch_per_sec"`
	FetchBurst   int     `toml:"fetch_burst"`
	MaxRetries   int     `toml:"max_retries"`
}

// ScanConfig 信号评分服务的访问配置。
type ScanConfig struct {
	ScorerURL        string `toml:"scorer_url"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	BreakerThreshold int    `toml:"breaker_threshold"`
	BreakerCooldown  int    `toml:"breaker_cooldown_seconds"`
}

// BacktestConfig 回测参数。日期使用 YYYY-MM-DD。
type BacktestConfig struct {
	StartDate           string  `toml:"start_date"`
	EndDate             string  `toml:"end_date"`
	InitialEquity       float64 `toml:"initial_equity"`
	RiskPerTradePct     float64 `toml:"risk_per_trade_pct"`
	MaxOpenPositions    int     `toml:"max_open_positions"`
	MinProbability      float64 `toml:"min_probability"`
	MinRewardRisk       float64 `toml:"min_reward_risk"`
	CommissionPerTrade  float64 `toml:"commission_per_trade"`
	SlippagePct         float64 `toml:"slippage_pct"`
	GapPolicy           string  `toml:"gap_policy"`
	GapSkipThresholdPct float64 `toml:"gap_skip_threshold_pct"`
	MaxHoldingDays      int     `toml:"max_holding_days"`
	TrailingActivationR float64 `toml:"trailing_activation_r"`
	TrailingStopPct     float64 `toml:"trailing_stop_pct"`
	TP1R                float64 `toml:"tp1_r"`
	TP2R                float64 `toml:"tp2_r"`
	TP3R                float64 `toml:"tp3_r"`
	TP1Fraction         float64 `toml:"tp1_fraction"`
	TP2Fraction         float64 `toml:"tp2_fraction"`
	ChoppyProbBump      float64 `toml:"choppy_prob_bump"`
	RequireMTFAlignment bool    `toml:"require_mtf_alignment"`
	MinVolume           float64 `toml:"min_volume"`
	BenchmarkTicker     string  `toml:"benchmark_ticker"`
	ExitModelPath       string  `toml:"exit_model_path"`
	ExitModelEnabled    bool    `toml:"exit_model_enabled"`
}

// TrainerConfig 离场模型训练参数。
type TrainerConfig struct {
	StartDate      string  `toml:"start_date"`
	EndDate        string  `toml:"end_date"`
	MaxTradeDays   int     `toml:"max_trade_days"`
	HorizonDays    int     `toml:"horizon_days"`
	ExitThresholdR float64 `toml:"exit_threshold_r"`
	Epochs         int     `toml:"epochs"`
	LearningRate   float64 `toml:"learning_rate"`
	Momentum       float64 `toml:"momentum"`
	L2Lambda       float64 `toml:"l2_lambda"`
	MinSamples     int     `toml:"min_samples"`
	OutputPath     string  `toml:"output_path"`
	Version        string  `toml:"version"`
}

// WalkForwardConfig 滚动窗口优化参数，单位为交易日。
type WalkForwardConfig struct {
	TrainDays   int `toml:"train_days"`
	TestDays    int `toml:"test_days"`
	StepDays    int `toml:"step_days"`
	Parallelism int `toml:"parallelism"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
