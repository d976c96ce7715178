package pricedata

import (
	"context"
	"time"

	"swingbot/internal/logger"
	"swingbot/internal/market"
)

// Provider 组合远端 Source 与本地 sqlite 缓存：
// 请求区间落在已覆盖范围内时直接读缓存，否则限速拉取后回填。
type Provider struct {
	source Source
	store  *Store
	budget *HistoryBudget
}

func NewProvider(source Source, store *Store, budget *HistoryBudget) *Provider {
	return &Provider{source: source, store: store, budget: budget}
}

// Bars 返回 [from, to] 内的日线，升序。取数失败时返回空切片，
// 调用方将该 ticker 当日视为缺数据处理。
func (p *Provider) Bars(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
	from = market.Normalize(from)
	to = market.Normalize(to)
	if p.store != nil {
		if covered, err := p.rangeCovered(ctx, ticker, from, to); err == nil && covered {
			return p.store.RangeBars(ctx, ticker, from, to)
		}
	}

	var fetched []market.Bar
	fetch := func(ctx context.Context) error {
		bars, err := p.source.Fetch(ctx, ticker, from, to)
		if err != nil {
			return err
		}
		fetched = bars
		return nil
	}
	var err error
	if p.budget != nil {
		err = p.budget.Do(ctx, fetch)
	} else {
		err = fetch(ctx)
	}
	if err != nil {
		logger.Warnf("拉取 %s 日线失败 (%s ~ %s): %v", ticker, from.Format("2006-01-02"), to.Format("2006-01-02"), err)
		return nil, err
	}
	if p.store != nil && len(fetched) > 0 {
		if _, err := p.store.UpsertBars(ctx, ticker, fetched); err != nil {
			logger.Warnf("写入 %s 日线缓存失败: %v", ticker, err)
		}
	}
	return fetched, nil
}

func (p *Provider) rangeCovered(ctx context.Context, ticker string, from, to time.Time) (bool, error) {
	cov, ok, err := p.store.CoverageInfo(ctx, ticker)
	if err != nil || !ok || cov.MinDay == "" || cov.MaxDay == "" {
		return false, err
	}
	minDay, err := time.Parse("2006-01-02", cov.MinDay)
	if err != nil {
		return false, nil
	}
	maxDay, err := time.Parse("2006-01-02", cov.MaxDay)
	if err != nil {
		return false, nil
	}
	return !from.Before(market.Normalize(minDay)) && !to.After(market.Normalize(maxDay)), nil
}
