package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingbot/internal/features"
)

// flatCoefficients 构造权重全零、仅靠偏置输出固定概率的工件。
func flatCoefficients(bias float64) *Coefficients {
	names := features.Names()
	c := &Coefficients{
		Version:      "test",
		TrainedAt:    time.Now().UTC(),
		FeatureNames: names,
		Weights:      make(map[string]float64, len(names)),
		Bias:         bias,
		Means:        make(map[string]float64, len(names)),
		Stds:         make(map[string]float64, len(names)),
		Samples:      300,
	}
	for _, n := range names {
		c.Weights[n] = 0
		c.Means[n] = 0
		c.Stds[n] = 1
	}
	return c
}

func TestNewEvaluatorRejectsMismatch(t *testing.T) {
	_, err := NewEvaluator(nil)
	assert.Error(t, err)

	c := flatCoefficients(0)
	delete(c.Weights, "unrealized_r")
	_, err = NewEvaluator(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestEvaluateBaseThreshold(t *testing.T) {
	// bias 0.2 → p ≈ 0.55，超过常规阈值 0.5
	ev, err := NewEvaluator(flatCoefficients(0.2))
	require.NoError(t, err)

	d := ev.Evaluate(features.Vector{}, 0.5, false, DefaultExitThreshold)
	assert.True(t, d.ShouldExit)
	assert.InDelta(t, 0.5, d.Threshold, 1e-9)
	assert.InDelta(t, Sigmoid(0.2), d.Probability, 1e-9)
	assert.InDelta(t, (Sigmoid(0.2)-0.5)*2, d.Confidence, 1e-9)
}

func TestEvaluateCallerThreshold(t *testing.T) {
	// bias 0.2 → p ≈ 0.55：调用方抬高阈值后不再触发离场
	ev, err := NewEvaluator(flatCoefficients(0.2))
	require.NoError(t, err)

	d := ev.Evaluate(features.Vector{}, 0.5, false, 0.6)
	assert.False(t, d.ShouldExit)
	assert.InDelta(t, 0.6, d.Threshold, 1e-9)

	// 非正阈值回落到默认 0.5
	d = ev.Evaluate(features.Vector{}, 0.5, false, 0)
	assert.True(t, d.ShouldExit)
	assert.InDelta(t, DefaultExitThreshold, d.Threshold, 1e-9)
}

func TestEvaluateRichProfitLowersThreshold(t *testing.T) {
	// bias -0.2 → p ≈ 0.45：常规持有，浮盈 ≥ 2R 时阈值降到 0.40 触发离场
	ev, err := NewEvaluator(flatCoefficients(-0.2))
	require.NoError(t, err)

	hold := ev.Evaluate(features.Vector{}, 1.0, false, DefaultExitThreshold)
	assert.False(t, hold.ShouldExit)

	exit := ev.Evaluate(features.Vector{UnrealizedR: 2.5}, 2.5, false, DefaultExitThreshold)
	assert.True(t, exit.ShouldExit)
	assert.InDelta(t, 0.40, exit.Threshold, 1e-9)
}

func TestEvaluateMaxHoldLowersThresholdFurther(t *testing.T) {
	// bias -0.6 → p ≈ 0.354：只有触及持仓时限的 0.30 阈值才触发
	ev, err := NewEvaluator(flatCoefficients(-0.6))
	require.NoError(t, err)

	assert.False(t, ev.Evaluate(features.Vector{}, 2.5, false, DefaultExitThreshold).ShouldExit)

	d := ev.Evaluate(features.Vector{}, 0.5, true, DefaultExitThreshold)
	assert.True(t, d.ShouldExit)
	assert.InDelta(t, 0.30, d.Threshold, 1e-9)
}

func TestEvaluateReasons(t *testing.T) {
	c := flatCoefficients(0)
	c.Weights["unrealized_r"] = -1.0
	c.Weights["drawdown_from_mfe_r"] = 0.8
	ev, err := NewEvaluator(c)
	require.NoError(t, err)

	d := ev.Evaluate(features.Vector{UnrealizedR: -1.5, DrawdownFromMFER: 1.0}, -1.5, false, DefaultExitThreshold)
	require.True(t, d.ShouldExit)
	require.NotEmpty(t, d.Reasons)
	// 贡献最大的特征排在最前
	assert.Contains(t, d.Reasons[0], "unrealized_r")
	// 贡献低于阈值的零权重特征不出现
	for _, r := range d.Reasons {
		assert.NotContains(t, r, "rsi14")
	}
}
