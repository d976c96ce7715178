package pricedata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrThrottled 表示数据源返回了限流响应。
var ErrThrottled = errors.New("数据源限流")

// HistoryBudget 控制历史数据拉取节奏：令牌桶限速 + 限流重试上限。
type HistoryBudget struct {
	limiter    *rate.Limiter
	maxRetries int
}

func NewHistoryBudget(perSec float64, burst, maxRetries int) *HistoryBudget {
	if perSec <= 0 {
		perSec = 2
	}
	if burst <= 0 {
		burst = 1
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &HistoryBudget{
		limiter:    rate.NewLimiter(rate.Limit(perSec), burst),
		maxRetries: maxRetries,
	}
}

// Do 在限速窗口内执行 fn；命中限流时指数退避重试，超过上限返回错误。
func (b *HistoryBudget) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrThrottled) {
			return lastErr
		}
		backoff := time.Duration(attempt+1) * 500 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("限流重试 %d 次后仍失败: %w", b.maxRetries, lastErr)
}
