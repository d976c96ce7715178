package market

import "time"

// Bar 表示单个交易日的日线行情。时间统一使用 UTC 零点。
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Valid 检查 OHLC 是否构成一根可用的日线。
func (b Bar) Valid() bool {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return false
	}
	if b.High < b.Low {
		return false
	}
	return !b.Date.IsZero()
}

// DayKey 返回 YYYY-MM-DD 形式的日期键。
func (b Bar) DayKey() string {
	return b.Date.Format("2006-01-02")
}

// Normalize 将日期裁剪到 UTC 零点，方便做 map 键比较。
func Normalize(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
