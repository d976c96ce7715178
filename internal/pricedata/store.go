package pricedata

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"swingbot/internal/market"
)

// Coverage 记录某个 ticker 在本地缓存中的连续覆盖区间。
type Coverage struct {
	Ticker     string `json:"ticker"`
	MinDay     string `json:"min_day"`
	MaxDay     string `json:"max_day"`
	Rows       int64  `json:"rows"`
	LastSyncAt int64  `json:"last_sync_at"`
}

// Store 单文件 sqlite 日线缓存，(ticker, day) 为主键。
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("缓存路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			ticker TEXT NOT NULL,
			day    TEXT NOT NULL,
			open   REAL NOT NULL,
			high   REAL NOT NULL,
			low    REAL NOT NULL,
			close  REAL NOT NULL,
			volume REAL NOT NULL,
			inserted_at INTEGER NOT NULL DEFAULT (strftime('%s','now') * 1000),
			PRIMARY KEY (ticker, day)
		);`,
		`CREATE TABLE IF NOT EXISTS coverage (
			ticker TEXT PRIMARY KEY,
			min_day TEXT,
			max_day TEXT,
			rows INTEGER DEFAULT 0,
			last_sync_at INTEGER
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertBars 批量写入日线，重复 (ticker, day) 覆盖旧值。
func (s *Store) UpsertBars(ctx context.Context, ticker string, bars []market.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (ticker, day, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, day) DO UPDATE SET
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, b := range bars {
		if !b.Valid() {
			continue
		}
		if _, err := stmt.ExecContext(ctx, ticker, b.DayKey(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if err := s.refreshCoverage(ctx, ticker); err != nil {
		return count, err
	}
	return count, nil
}

func (s *Store) refreshCoverage(ctx context.Context, ticker string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coverage (ticker, min_day, max_day, rows, last_sync_at)
		SELECT ?, MIN(day), MAX(day), COUNT(1), ? FROM bars WHERE ticker = ?
		ON CONFLICT(ticker) DO UPDATE SET
		    min_day=excluded.min_day,
		    max_day=excluded.max_day,
		    rows=excluded.rows,
		    last_sync_at=excluded.last_sync_at`, ticker, now, ticker)
	return err
}

// RangeBars 返回闭区间 [from, to] 内的日线，按日期升序。
func (s *Store) RangeBars(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker 不能为空")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, open, high, low, close, volume
		FROM bars
		WHERE ticker = ? AND day BETWEEN ? AND ?
		ORDER BY day ASC`,
		ticker, market.Normalize(from).Format("2006-01-02"), market.Normalize(to).Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []market.Bar
	for rows.Next() {
		var day string
		var b market.Bar
		if err := rows.Scan(&day, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		d, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		b.Date = market.Normalize(d)
		out = append(out, b)
	}
	return out, rows.Err()
}

// CoverageInfo 返回本地缓存覆盖信息；不存在时 ok=false。
func (s *Store) CoverageInfo(ctx context.Context, ticker string) (Coverage, bool, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	row := s.db.QueryRowContext(ctx,
		`SELECT ticker, COALESCE(min_day,''), COALESCE(max_day,''), rows, COALESCE(last_sync_at,0) FROM coverage WHERE ticker = ?`, ticker)
	var c Coverage
	if err := row.Scan(&c.Ticker, &c.MinDay, &c.MaxDay, &c.Rows, &c.LastSyncAt); err != nil {
		if err == sql.ErrNoRows {
			return Coverage{}, false, nil
		}
		return Coverage{}, false, err
	}
	return c, true, nil
}
