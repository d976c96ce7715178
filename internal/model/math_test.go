package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-12)
	assert.InDelta(t, 1/(1+math.Exp(-2)), Sigmoid(2), 1e-12)
	// 超出钳制范围直接饱和，不溢出
	assert.Equal(t, 1.0, Sigmoid(600))
	assert.Equal(t, 0.0, Sigmoid(-600))
	assert.False(t, math.IsNaN(Sigmoid(math.Inf(1))))
}

func TestLogLoss(t *testing.T) {
	assert.InDelta(t, -math.Log(0.9), LogLoss(0.9, 1), 1e-12)
	assert.InDelta(t, -math.Log(0.9), LogLoss(0.1, 0), 1e-12)

	// 概率被钳制，极端输入不产生无穷
	assert.False(t, math.IsInf(LogLoss(0, 1), 0))
	assert.False(t, math.IsInf(LogLoss(1, 0), 0))
	assert.InDelta(t, -math.Log(1e-15), LogLoss(0, 1), 1e-6)
}
