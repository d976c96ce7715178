package pricedata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"swingbot/internal/market"
)

// StooqSource 基于 Stooq 的日线 CSV 接口（/q/d/l/）。
type StooqSource struct {
	baseURL string
	client  *http.Client
}

func NewStooqSource(base string) *StooqSource {
	if base == "" {
		base = "https://stooq.com"
	}
	return &StooqSource{
		baseURL: base,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (s *StooqSource) Name() string { return "stooq" }

func (s *StooqSource) Fetch(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
	if strings.TrimSpace(ticker) == "" {
		return nil, fmt.Errorf("ticker 不能为空")
	}
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path = "/q/d/l/"
	q := u.Query()
	q.Set("s", strings.ToLower(ticker)+".us")
	q.Set("d1", from.Format("20060102"))
	q.Set("d2", to.Format("20060102"))
	q.Set("i", "d")
	u.RawQuery = q.Encode()

	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrThrottled
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stooq 返回状态码 %d (%s)", resp.StatusCode, ticker)
	}
	return parseDailyCSV(resp.Body, to)
}

// parseDailyCSV 解析 Date,Open,High,Low,Close,Volume 格式的日线 CSV。
// 截止日期为今天时丢弃当日未收盘的数据。
func parseDailyCSV(r io.Reader, to time.Time) ([]market.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析 CSV 失败: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}
	today := market.Normalize(time.Now())
	out := make([]market.Bar, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 6 {
			continue
		}
		day, err := time.Parse("2006-01-02", strings.TrimSpace(rec[0]))
		if err != nil {
			continue
		}
		day = market.Normalize(day)
		if !day.Before(today) {
			// 当日数据尚未收盘，跳过
			continue
		}
		bar := market.Bar{
			Date:   day,
			Open:   parseFloat(rec[1]),
			High:   parseFloat(rec[2]),
			Low:    parseFloat(rec[3]),
			Close:  parseFloat(rec[4]),
			Volume: parseFloat(rec[5]),
		}
		if !bar.Valid() {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
