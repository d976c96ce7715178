package pricedata

import (
	"context"
	"sort"
	"time"

	"swingbot/internal/market"
)

// RunCache 单次回测/训练运行内的行情缓存。
// 每个运行实例各自持有一份，不做加锁，禁止跨运行共享。
type RunCache struct {
	provider *Provider
	series   map[string][]market.Bar
	byDay    map[string]map[string]market.Bar
	missing  map[string]bool
}

func NewRunCache(provider *Provider) *RunCache {
	return &RunCache{
		provider: provider,
		series:   make(map[string][]market.Bar),
		byDay:    make(map[string]map[string]market.Bar),
		missing:  make(map[string]bool),
	}
}

// Preload 一次性加载 ticker 在区间内的全部日线。
// 返回 false 表示该 ticker 在本次运行中不可用。
func (c *RunCache) Preload(ctx context.Context, ticker string, from, to time.Time) bool {
	if _, ok := c.series[ticker]; ok {
		return true
	}
	if c.missing[ticker] {
		return false
	}
	bars, err := c.provider.Bars(ctx, ticker, from, to)
	if err != nil || len(bars) == 0 {
		c.missing[ticker] = true
		return false
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	c.Put(ticker, bars)
	return true
}

// Put 直接写入已有序列（测试与离线数据集使用）。
func (c *RunCache) Put(ticker string, bars []market.Bar) {
	c.series[ticker] = bars
	index := make(map[string]market.Bar, len(bars))
	for _, b := range bars {
		index[b.DayKey()] = b
	}
	c.byDay[ticker] = index
}

// BarOn 返回 ticker 在指定交易日的日线。
func (c *RunCache) BarOn(ticker string, day time.Time) (market.Bar, bool) {
	index, ok := c.byDay[ticker]
	if !ok {
		return market.Bar{}, false
	}
	b, ok := index[market.Normalize(day).Format("2006-01-02")]
	return b, ok
}

// BarsUntil 返回 ticker 截至 day（含）的全部日线，供点时指标计算使用。
func (c *RunCache) BarsUntil(ticker string, day time.Time) []market.Bar {
	bars, ok := c.series[ticker]
	if !ok {
		return nil
	}
	cut := market.Normalize(day)
	n := sort.Search(len(bars), func(i int) bool { return bars[i].Date.After(cut) })
	return bars[:n]
}

// Bars 返回 ticker 的完整序列。
func (c *RunCache) Bars(ticker string) []market.Bar {
	return c.series[ticker]
}
