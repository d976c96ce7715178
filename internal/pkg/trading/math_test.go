package trading

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceComparisons(t *testing.T) {
	assert.True(t, PriceLTE(95, 95))
	assert.True(t, PriceLTE(94.99, 95))
	assert.False(t, PriceLTE(95.01, 95))
	assert.True(t, PriceGTE(107.5, 107.5))
	assert.True(t, PriceGT(107.51, 107.5))
	assert.True(t, PriceLT(107.49, 107.5))
}

func TestApplySlippage(t *testing.T) {
	assert.InDelta(t, 100.1, ApplySlippage(100, 0.001, true), 1e-9)
	assert.InDelta(t, 99.9, ApplySlippage(100, 0.001, false), 1e-9)
	// 非法输入原样返回
	assert.Equal(t, 100.0, ApplySlippage(100, 0, true))
	assert.Equal(t, -1.0, ApplySlippage(-1, 0.001, true))
}

func TestRiskShares(t *testing.T) {
	// floor(100000×0.01/5) = 200
	assert.Equal(t, 200, RiskShares(100000, 0.01, 100, 95))
	// floor(10000×0.01/2.5) = 40
	assert.Equal(t, 40, RiskShares(10000, 0.01, 102.5, 100))
	// 不足一股取零
	assert.Equal(t, 0, RiskShares(100, 0.001, 100, 95))
	// 风险距离非正直接拒绝
	assert.Equal(t, 0, RiskShares(100000, 0.01, 95, 100))
	assert.Equal(t, 0, RiskShares(100000, 0.01, 95, 95))
	assert.Equal(t, 0, RiskShares(0, 0.01, 100, 95))
}

func TestRoundCash(t *testing.T) {
	assert.InDelta(t, 100.13, RoundCash(100.125), 1e-9)
	assert.InDelta(t, -0.13, RoundCash(-0.125), 1e-9)
}

func TestRMultiple(t *testing.T) {
	assert.InDelta(t, 2.0, RMultiple(100, 110, 5), 1e-9)
	assert.InDelta(t, -1.0, RMultiple(100, 95, 5), 1e-9)
	assert.Equal(t, 0.0, RMultiple(100, 110, 0))
	assert.Equal(t, 0.0, RMultiple(100, 110, -1))
	assert.False(t, math.IsNaN(RMultiple(100, math.NaN(), 5)))
}
