package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingbot/internal/backtest"
)

func TestBuildHTML(t *testing.T) {
	res := &backtest.Result{
		RunID: "run-1",
		Stats: backtest.Metrics{TotalTrades: 12, WinRate: 0.5, MaxDrawdown: 0.08},
		EquityCurve: []backtest.EquityPoint{
			{Date: time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), Equity: 100000},
			{Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Equity: 100500},
			{Date: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), Equity: 99800, Drawdown: 700, DrawdownPct: 0.007},
		},
	}
	html, err := BuildHTML(res)
	require.NoError(t, err)
	assert.Contains(t, string(html), "权益曲线")
	assert.Contains(t, string(html), "回撤曲线")
	assert.Contains(t, string(html), "run-1")
}

func TestBuildHTMLRejectsEmptyCurve(t *testing.T) {
	_, err := BuildHTML(nil)
	assert.Error(t, err)
	_, err = BuildHTML(&backtest.Result{RunID: "run-1"})
	assert.Error(t, err)
}
