package pricedata

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingbot/internal/market"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func sampleBars() []market.Bar {
	return []market.Bar{
		{Date: day("2024-01-08"), Open: 100, High: 102, Low: 99, Close: 101, Volume: 1e6},
		{Date: day("2024-01-09"), Open: 101, High: 103, Low: 100, Close: 102, Volume: 1.1e6},
		{Date: day("2024-01-10"), Open: 102, High: 104, Low: 101, Close: 103, Volume: 0.9e6},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "bars.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreUpsertAndRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.UpsertBars(ctx, "TEST", sampleBars())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	bars, err := store.RangeBars(ctx, "TEST", day("2024-01-08"), day("2024-01-09"))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, day("2024-01-08"), bars[0].Date)
	assert.InDelta(t, 101, bars[0].Close, 1e-9)

	// 重复写入幂等
	_, err = store.UpsertBars(ctx, "TEST", sampleBars())
	require.NoError(t, err)
	bars, err = store.RangeBars(ctx, "TEST", day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Len(t, bars, 3)
}

func TestStoreCoverage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.CoverageInfo(ctx, "TEST")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.UpsertBars(ctx, "TEST", sampleBars())
	require.NoError(t, err)

	cov, ok, err := store.CoverageInfo(ctx, "TEST")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-01-08", cov.MinDay)
	assert.Equal(t, "2024-01-10", cov.MaxDay)
}

func TestProviderUsesCacheWhenCovered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	calls := 0
	source := sourceFunc(func(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
		calls++
		return sampleBars(), nil
	})
	p := NewProvider(source, store, NewHistoryBudget(1000, 10, 1))

	bars, err := p.Bars(ctx, "TEST", day("2024-01-08"), day("2024-01-10"))
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Equal(t, 1, calls)

	// 覆盖范围内的第二次请求直接读缓存
	bars, err = p.Bars(ctx, "TEST", day("2024-01-09"), day("2024-01-10"))
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Equal(t, 1, calls)

	// 超出覆盖范围时重新拉取
	_, err = p.Bars(ctx, "TEST", day("2024-01-01"), day("2024-01-10"))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

type sourceFunc func(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error)

func (f sourceFunc) Name() string { return "func" }

func (f sourceFunc) Fetch(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
	return f(ctx, ticker, from, to)
}
