package config

import "strings"

// 默认值常量
const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":9992"
	defaultAppLogPath      = "/data/logs/swingbot.log"
	defaultAppResultDB     = "/data/db/backtest_results.db"
	defaultAppReportDir    = "/data/reports"
	defaultAppMaxRunSlots  = 2
	defaultDataProvider    = "stooq"
	defaultDataStooqURL    = "https://stooq.com"
	defaultDataCachePath   = "/data/db/bars.db"
	defaultDataUniverse    = "configs/universe.yaml"
	defaultDataFetchPerSec = 2.0
	defaultDataFetchBurst  = 4
	defaultDataMaxRetries  = 3
	defaultScanTimeout     = 15
	defaultScanThreshold   = 5
	defaultScanCooldown    = 60
	defaultBTEquity        = 100000
	defaultBTRiskPct       = 0.01
	defaultBTMaxOpen       = 5
	defaultBTMinProb       = 60
	defaultBTMinRR         = 1.5
	defaultBTSlippagePct   = 0.001
	defaultBTGapPolicy     = "market"
	defaultBTGapSkipPct    = 0.03
	defaultBTMaxHoldDays   = 30
	defaultBTTrailActR     = 2.0
	defaultBTTrailPct      = 0.05
	defaultBTTP1R          = 1.5
	defaultBTTP2R          = 2.5
	defaultBTTP3R          = 4.0
	defaultBTTP1Fraction   = 1.0 / 3.0
	defaultBTTP2Fraction   = 1.0 / 3.0
	defaultBTChoppyBump    = 5
	defaultTrainMaxDays    = 30
	defaultTrainHorizon    = 45
	defaultTrainExitR      = 0.3
	defaultTrainEpochs     = 400
	defaultTrainLR         = 0.05
	defaultTrainMomentum   = 0.9
	defaultTrainL2         = 0.001
	defaultTrainMinSamples = 200
	defaultTrainOutput     = "/data/models/exit_model.json"
	defaultWFTrainDays     = 252
	defaultWFTestDays      = 63
	defaultWFParallelism   = 4
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Scan.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
	c.Trainer.applyDefaults(keys)
	c.WalkForward.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.result_db", &a.ResultDB, defaultAppResultDB),
		stringFieldDefault("app.report_dir", &a.ReportDir, defaultAppReportDir),
		fieldDefault{
			key:   "app.max_run_slots",
			need:  func() bool { return a.MaxRunSlots <= 0 },
			apply: func() { a.MaxRunSlots = defaultAppMaxRunSlots },
		},
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.provider", &d.Provider, defaultDataProvider),
		stringFieldDefault("data.stooq_base_url", &d.StooqBaseURL, defaultDataStooqURL),
		stringFieldDefault("data.cache_path", &d.CachePath, defaultDataCachePath),
		stringFieldDefault("data.universe_path", &d.UniversePath, defaultDataUniverse),
		fieldDefault{
			key:   "data.fetch_per_sec",
			need:  func() bool { return d.FetchPerSec <= 0 },
			apply: func() { d.FetchPerSec = defaultDataFetchPerSec },
		},
		fieldDefault{
			key:   "data.fetch_burst",
			need:  func() bool { return d.FetchBurst <= 0 },
			apply: func() { d.FetchBurst = defaultDataFetchBurst },
		},
		fieldDefault{
			key:   "data.max_retries",
			need:  func() bool { return d.MaxRetries <= 0 },
			apply: func() { d.MaxRetries = defaultDataMaxRetries },
		},
	)
}

func (s *ScanConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "scan.timeout_seconds",
			need:  func() bool { return s.TimeoutSeconds <= 0 },
			apply: func() { s.TimeoutSeconds = defaultScanTimeout },
		},
		fieldDefault{
			key:   "scan.breaker_threshold",
			need:  func() bool { return s.BreakerThreshold <= 0 },
			apply: func() { s.BreakerThreshold = defaultScanThreshold },
		},
		fieldDefault{
			key:   "scan.breaker_cooldown_seconds",
			need:  func() bool { return s.BreakerCooldown <= 0 },
			apply: func() { s.BreakerCooldown = defaultScanCooldown },
		},
	)
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("backtest.gap_policy", &b.GapPolicy, defaultBTGapPolicy),
		fieldDefault{
			key:   "backtest.initial_equity",
			need:  func() bool { return b.InitialEquity <= 0 },
			apply: func() { b.InitialEquity = defaultBTEquity },
		},
		fieldDefault{
			key:   "backtest.risk_per_trade_pct",
			need:  func() bool { return b.RiskPerTradePct <= 0 },
			apply: func() { b.RiskPerTradePct = defaultBTRiskPct },
		},
		fieldDefault{
			key:   "backtest.max_open_positions",
			need:  func() bool { return b.MaxOpenPositions <= 0 },
			apply: func() { b.MaxOpenPositions = defaultBTMaxOpen },
		},
		fieldDefault{
			key:   "backtest.min_probability",
			need:  func() bool { return b.MinProbability <= 0 },
			apply: func() { b.MinProbability = defaultBTMinProb },
		},
		fieldDefault{
			key:   "backtest.min_reward_risk",
			need:  func() bool { return b.MinRewardRisk <= 0 },
			apply: func() { b.MinRewardRisk = defaultBTMinRR },
		},
		fieldDefault{
			key:   "backtest.slippage_pct",
			need:  func() bool { return b.SlippagePct < 0 },
			apply: func() { b.SlippagePct = defaultBTSlippagePct },
		},
		fieldDefault{
			key:   "backtest.gap_skip_threshold_pct",
			need:  func() bool { return b.GapSkipThresholdPct <= 0 },
			apply: func() { b.GapSkipThresholdPct = defaultBTGapSkipPct },
		},
		fieldDefault{
			key:   "backtest.max_holding_days",
			need:  func() bool { return b.MaxHoldingDays <= 0 },
			apply: func() { b.MaxHoldingDays = defaultBTMaxHoldDays },
		},
		fieldDefault{
			key:   "backtest.trailing_activation_r",
			need:  func() bool { return b.TrailingActivationR <= 0 },
			apply: func() { b.TrailingActivationR = defaultBTTrailActR },
		},
		fieldDefault{
			key:   "backtest.trailing_stop_pct",
			need:  func() bool { return b.TrailingStopPct <= 0 },
			apply: func() { b.TrailingStopPct = defaultBTTrailPct },
		},
		fieldDefault{
			key:   "backtest.tp1_r",
			need:  func() bool { return b.TP1R <= 0 },
			apply: func() { b.TP1R = defaultBTTP1R },
		},
		fieldDefault{
			key:   "backtest.tp2_r",
			need:  func() bool { return b.TP2R <= 0 },
			apply: func() { b.TP2R = defaultBTTP2R },
		},
		fieldDefault{
			key:   "backtest.tp3_r",
			need:  func() bool { return b.TP3R <= 0 },
			apply: func() { b.TP3R = defaultBTTP3R },
		},
		fieldDefault{
			key:   "backtest.tp1_fraction",
			need:  func() bool { return b.TP1Fraction <= 0 || b.TP1Fraction >= 1 },
			apply: func() { b.TP1Fraction = defaultBTTP1Fraction },
		},
		fieldDefault{
			key:   "backtest.tp2_fraction",
			need:  func() bool { return b.TP2Fraction <= 0 || b.TP2Fraction >= 1 },
			apply: func() { b.TP2Fraction = defaultBTTP2Fraction },
		},
		fieldDefault{
			key:   "backtest.choppy_prob_bump",
			need:  func() bool { return b.ChoppyProbBump <= 0 },
			apply: func() { b.ChoppyProbBump = defaultBTChoppyBump },
		},
	)
	if b.CommissionPerTrade < 0 {
		b.CommissionPerTrade = 0
	}
}

func (t *TrainerConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("trainer.output_path", &t.OutputPath, defaultTrainOutput),
		fieldDefault{
			key:   "trainer.max_trade_days",
			need:  func() bool { return t.MaxTradeDays <= 0 },
			apply: func() { t.MaxTradeDays = defaultTrainMaxDays },
		},
		fieldDefault{
			key:   "trainer.horizon_days",
			need:  func() bool { return t.HorizonDays <= 0 },
			apply: func() { t.HorizonDays = defaultTrainHorizon },
		},
		fieldDefault{
			key:   "trainer.exit_threshold_r",
			need:  func() bool { return t.ExitThresholdR <= 0 },
			apply: func() { t.ExitThresholdR = defaultTrainExitR },
		},
		fieldDefault{
			key:   "trainer.epochs",
			need:  func() bool { return t.Epochs <= 0 },
			apply: func() { t.Epochs = defaultTrainEpochs },
		},
		fieldDefault{
			key:   "trainer.learning_rate",
			need:  func() bool { return t.LearningRate <= 0 },
			apply: func() { t.LearningRate = defaultTrainLR },
		},
		fieldDefault{
			key:   "trainer.momentum",
			need:  func() bool { return t.Momentum < 0 || t.Momentum >= 1 },
			apply: func() { t.Momentum = defaultTrainMomentum },
		},
		fieldDefault{
			key:   "trainer.l2_lambda",
			need:  func() bool { return t.L2Lambda < 0 },
			apply: func() { t.L2Lambda = defaultTrainL2 },
		},
		fieldDefault{
			key:   "trainer.min_samples",
			need:  func() bool { return t.MinSamples <= 0 },
			apply: func() { t.MinSamples = defaultTrainMinSamples },
		},
	)
	if strings.TrimSpace(t.Version) == "" {
		t.Version = "v1"
	}
}

func (w *WalkForwardConfig) applyDefaults(keys keySet) {
	if w == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "walkforward.train_days",
			need:  func() bool { return w.TrainDays <= 0 },
			apply: func() { w.TrainDays = defaultWFTrainDays },
		},
		fieldDefault{
			key:   "walkforward.test_days",
			need:  func() bool { return w.TestDays <= 0 },
			apply: func() { w.TestDays = defaultWFTestDays },
		},
		fieldDefault{
			key:   "walkforward.parallelism",
			need:  func() bool { return w.Parallelism <= 0 },
			apply: func() { w.Parallelism = defaultWFParallelism },
		},
	)
	if w.StepDays <= 0 {
		w.StepDays = w.TestDays
	}
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
