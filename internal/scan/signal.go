package scan

import (
	"context"
	"time"
)

// Signal 评分服务对单个 ticker 在某交易日给出的入场信号。
// Probability 取值 0~100。
type Signal struct {
	Ticker       string    `json:"ticker"`
	AsOf         time.Time `json:"as_of"`
	Price        float64   `json:"price"`
	Probability  float64   `json:"probability"`
	TradeType    string    `json:"trade_type"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfits  []float64 `json:"take_profits"`
	Sector       string    `json:"sector"`
	Regime       string    `json:"regime"`
	MTFAlignment string    `json:"mtf_alignment"`
}

// Scorer 信号评分接口。asOf 为零值时表示按最新数据评分。
// 评分失败只影响该 ticker 当日的候选资格，不中断整轮扫描。
type Scorer interface {
	Score(ctx context.Context, ticker string, asOf time.Time) (Signal, error)
}
