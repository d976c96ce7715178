package pricedata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"swingbot/internal/market"
)

// BinanceSource 通过 Binance 现货 REST 拉取日线，用于加密标的回测。
type BinanceSource struct {
	client *binance.Client
}

func NewBinanceSource() *BinanceSource {
	return &BinanceSource{client: binance.NewClient("", "")}
}

func (b *BinanceSource) Name() string { return "binance" }

func (b *BinanceSource) Fetch(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return nil, fmt.Errorf("ticker 不能为空")
	}
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval("1d").
		StartTime(market.Normalize(from).UnixMilli()).
		EndTime(market.Normalize(to).AddDate(0, 0, 1).UnixMilli() - 1).
		Limit(1000).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance 拉取 %s 日线失败: %w", symbol, err)
	}
	nowMs := time.Now().UnixMilli()
	out := make([]market.Bar, 0, len(klines))
	for _, k := range klines {
		if k.CloseTime >= nowMs {
			// 当日 K 线未收盘，跳过
			continue
		}
		bar := market.Bar{
			Date:   market.Normalize(time.UnixMilli(k.OpenTime)),
			Open:   mustFloat(k.Open),
			High:   mustFloat(k.High),
			Low:    mustFloat(k.Low),
			Close:  mustFloat(k.Close),
			Volume: mustFloat(k.Volume),
		}
		if !bar.Valid() {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
