package pricedata

import (
	"context"
	"time"

	"swingbot/internal/market"
)

// Source 抽象日线行情来源。返回 [from, to] 区间内的日线，按日期升序；
// 未收盘的当日数据不返回。取数失败返回 error，由调用方按缺数据降级。
type Source interface {
	Name() string
	Fetch(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error)
}
