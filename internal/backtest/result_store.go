package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// 运行状态
const (
	RunPending   = "PENDING"
	RunRunning   = "RUNNING"
	RunCompleted = "COMPLETED"
	RunFailed    = "FAILED"
)

// RunRecord 回测运行的持久化记录。结构化大字段以 JSON 列存储。
type RunRecord struct {
	ID          string         `gorm:"primaryKey;size:64" json:"id"`
	Status      string         `gorm:"size:16;index" json:"status"`
	Message     string         `json:"message"`
	Config      datatypes.JSON `json:"config"`
	Stats       datatypes.JSON `json:"stats,omitempty"`
	Attribution datatypes.JSON `json:"attribution,omitempty"`
	Calibration datatypes.JSON `json:"calibration,omitempty"`
	Warnings    datatypes.JSON `json:"warnings,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (RunRecord) TableName() string { return "backtest_runs" }

// TradeRecord 单笔交易的持久化记录。
type TradeRecord struct {
	ID          string         `gorm:"primaryKey;size:64" json:"id"`
	RunID       string         `gorm:"size:64;index" json:"run_id"`
	Ticker      string         `gorm:"size:16;index" json:"ticker"`
	Sector      string         `gorm:"size:64" json:"sector"`
	Regime      string         `gorm:"size:32" json:"regime"`
	EntryDate   time.Time      `json:"entry_date"`
	EntryPrice  float64        `json:"entry_price"`
	StopLoss    float64        `json:"stop_loss"`
	Shares      int            `json:"shares"`
	Probability float64        `json:"probability"`
	ExitDate    time.Time      `json:"exit_date"`
	ExitPrice   float64        `json:"exit_price"`
	ExitReason  string         `gorm:"size:24" json:"exit_reason"`
	RealizedPnL float64        `json:"realized_pnl"`
	RealizedR   float64        `json:"realized_r"`
	MFE         float64        `json:"mfe"`
	MAE         float64        `json:"mae"`
	DaysHeld    int            `json:"days_held"`
	Partials    datatypes.JSON `json:"partials,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (TradeRecord) TableName() string { return "backtest_trades" }

// EquityRecord 权益曲线点的持久化记录。
type EquityRecord struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID         string    `gorm:"size:64;index" json:"run_id"`
	Date          time.Time `json:"date"`
	Equity        float64   `json:"equity"`
	Cash          float64   `json:"cash"`
	OpenPositions int       `json:"open_positions"`
	Drawdown      float64   `json:"drawdown"`
	DrawdownPct   float64   `json:"drawdown_pct"`
	DailyPnL      float64   `json:"daily_pnl"`
	DailyReturn   float64   `json:"daily_return"`
}

func (EquityRecord) TableName() string { return "backtest_equity" }

// ResultStore 基于 gorm + sqlite 的回测结果存储。
type ResultStore struct {
	db *gorm.DB
}

func NewResultStore(path string) (*ResultStore, error) {
	if path == "" {
		return nil, fmt.Errorf("结果库路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开结果库失败: %w", err)
	}
	if err := db.AutoMigrate(&RunRecord{}, &TradeRecord{}, &EquityRecord{}); err != nil {
		return nil, fmt.Errorf("结果库迁移失败: %w", err)
	}
	return &ResultStore{db: db}, nil
}

// CreateRun 登记一条新运行。
func (s *ResultStore) CreateRun(ctx context.Context, id string, cfg any) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	rec := RunRecord{ID: id, Status: RunPending, Config: raw}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// UpdateStatus 更新运行状态与进度消息。
func (s *ResultStore) UpdateStatus(ctx context.Context, id, status, message string) error {
	return s.db.WithContext(ctx).Model(&RunRecord{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "message": message}).Error
}

// SaveResult 写入完整回测结果：更新运行记录并批量落交易与权益曲线。
func (s *ResultStore) SaveResult(ctx context.Context, res *Result) error {
	stats, err := json.Marshal(res.Stats)
	if err != nil {
		return err
	}
	attribution, err := json.Marshal(res.Attribution)
	if err != nil {
		return err
	}
	calibration, err := json.Marshal(res.Calibration)
	if err != nil {
		return err
	}
	warnings, err := json.Marshal(res.Warnings)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":      RunCompleted,
			"message":     fmt.Sprintf("完成: %d 笔交易", res.Stats.TotalTrades),
			"stats":       datatypes.JSON(stats),
			"attribution": datatypes.JSON(attribution),
			"calibration": datatypes.JSON(calibration),
			"warnings":    datatypes.JSON(warnings),
		}
		if err := tx.Model(&RunRecord{}).Where("id = ?", res.RunID).Updates(updates).Error; err != nil {
			return err
		}
		if len(res.Trades) > 0 {
			records := make([]TradeRecord, 0, len(res.Trades))
			for _, t := range res.Trades {
				partials, err := json.Marshal(t.Partials)
				if err != nil {
					return err
				}
				records = append(records, TradeRecord{
					ID:          t.ID,
					RunID:       res.RunID,
					Ticker:      t.Ticker,
					Sector:      t.Sector,
					Regime:      t.Regime,
					EntryDate:   t.EntryDate,
					EntryPrice:  t.EntryPrice,
					StopLoss:    t.StopLoss,
					Shares:      t.OriginalShares,
					Probability: t.Probability,
					ExitDate:    t.ExitDate,
					ExitPrice:   t.ExitPrice,
					ExitReason:  string(t.ExitReason),
					RealizedPnL: t.RealizedPnL,
					RealizedR:   t.RealizedR(),
					MFE:         t.MFE,
					MAE:         t.MAE,
					DaysHeld:    t.DaysHeld,
					Partials:    partials,
				})
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(records, 200).Error; err != nil {
				return err
			}
		}
		if len(res.EquityCurve) > 0 {
			points := make([]EquityRecord, 0, len(res.EquityCurve))
			for _, p := range res.EquityCurve {
				points = append(points, EquityRecord{
					RunID:         res.RunID,
					Date:          p.Date,
					Equity:        p.Equity,
					Cash:          p.Cash,
					OpenPositions: p.OpenPositions,
					Drawdown:      p.Drawdown,
					DrawdownPct:   p.DrawdownPct,
					DailyPnL:      p.DailyPnL,
					DailyReturn:   p.DailyReturn,
				})
			}
			if err := tx.CreateInBatches(points, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkFailed 标记运行失败。
func (s *ResultStore) MarkFailed(ctx context.Context, id string, cause error) error {
	return s.UpdateStatus(ctx, id, RunFailed, cause.Error())
}

// GetRun 读取单条运行记录。
func (s *ResultStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var rec RunRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRuns 按创建时间倒序列出运行。
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []RunRecord
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// ListTrades 列出某次运行的交易，按入场日升序。
func (s *ResultStore) ListTrades(ctx context.Context, runID string, limit int) ([]TradeRecord, error) {
	if limit <= 0 || limit > 2000 {
		limit = 500
	}
	var out []TradeRecord
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).
		Order("entry_date ASC").Limit(limit).Find(&out).Error
	return out, err
}

// ListEquity 列出某次运行的权益曲线，按日期升序。
func (s *ResultStore) ListEquity(ctx context.Context, runID string) ([]EquityRecord, error) {
	var out []EquityRecord
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).
		Order("date ASC").Find(&out).Error
	return out, err
}
