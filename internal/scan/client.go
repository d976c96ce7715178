package scan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"swingbot/internal/pkg/circuit"
)

// HTTPScorer 调用外部评分服务的 HTTP 客户端，熔断器保护下游。
type HTTPScorer struct {
	baseURL string
	client  *http.Client
	breaker *circuit.CircuitBreaker
}

type HTTPScorerConfig struct {
	BaseURL          string
	Timeout          time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func NewHTTPScorer(cfg HTTPScorerConfig) (*HTTPScorer, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("scorer 地址不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}
	return &HTTPScorer{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: circuit.NewCircuitBreaker("scorer", cfg.BreakerThreshold, cfg.BreakerCooldown),
	}, nil
}

// Score 请求 /api/score?ticker=...&as_of=...，gjson 解析返回体。
func (s *HTTPScorer) Score(ctx context.Context, ticker string, asOf time.Time) (Signal, error) {
	if !s.breaker.Allow() {
		return Signal{}, fmt.Errorf("scorer 熔断中，跳过 %s", ticker)
	}
	u, err := url.Parse(s.baseURL + "/api/score")
	if err != nil {
		return Signal{}, err
	}
	q := u.Query()
	q.Set("ticker", ticker)
	if !asOf.IsZero() {
		q.Set("as_of", asOf.Format("2006-01-02"))
	}
	u.RawQuery = q.Encode()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	resp, err := s.client.Do(req)
	if err != nil {
		s.breaker.RecordFailure()
		return Signal{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.breaker.RecordFailure()
		return Signal{}, fmt.Errorf("scorer 返回状态码 %d (%s)", resp.StatusCode, ticker)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.breaker.RecordFailure()
		return Signal{}, err
	}
	sig, err := parseSignal(ticker, asOf, body)
	if err != nil {
		s.breaker.RecordFailure()
		return Signal{}, err
	}
	s.breaker.RecordSuccess()
	return sig, nil
}

func parseSignal(ticker string, asOf time.Time, body []byte) (Signal, error) {
	root := gjson.ParseBytes(body)
	if !root.Get("price").Exists() || !root.Get("probability").Exists() {
		return Signal{}, fmt.Errorf("scorer 响应缺少 price/probability 字段 (%s)", ticker)
	}
	sig := Signal{
		Ticker:       ticker,
		AsOf:         asOf,
		Price:        root.Get("price").Float(),
		Probability:  root.Get("probability").Float(),
		TradeType:    root.Get("trade_type").String(),
		StopLoss:     root.Get("stop_loss").Float(),
		Sector:       root.Get("sector").String(),
		Regime:       root.Get("regime").String(),
		MTFAlignment: root.Get("mtf_alignment").String(),
	}
	for _, tp := range root.Get("take_profits").Array() {
		sig.TakeProfits = append(sig.TakeProfits, tp.Float())
	}
	if sig.Price <= 0 {
		return Signal{}, fmt.Errorf("scorer 返回非法价格 %.4f (%s)", sig.Price, ticker)
	}
	return sig, nil
}
