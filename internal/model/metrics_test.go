package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluatePerfectClassifier(t *testing.T) {
	probs := []float64{0.9, 0.8, 0.2, 0.1}
	labels := []int{1, 1, 0, 0}

	m := Evaluate(probs, labels)
	assert.InDelta(t, 1.0, m.Accuracy, 1e-9)
	assert.InDelta(t, 1.0, m.Precision, 1e-9)
	assert.InDelta(t, 1.0, m.Recall, 1e-9)
	assert.InDelta(t, 1.0, m.F1, 1e-9)
	assert.InDelta(t, 1.0, m.AUC, 1e-9)
}

func TestEvaluateEmptyInput(t *testing.T) {
	m := Evaluate(nil, nil)
	assert.Zero(t, m.Accuracy)
	assert.Zero(t, m.AUC)

	m = Evaluate([]float64{0.5}, []int{1, 0})
	assert.Zero(t, m.Accuracy)
}

func TestTrapezoidAUC(t *testing.T) {
	// 完全反向的打分 AUC 为 0
	assert.InDelta(t, 0.0, trapezoidAUC([]float64{0.1, 0.2, 0.8, 0.9}, []int{1, 1, 0, 0}), 1e-9)

	// 全部并列打分等价于随机分类器
	assert.InDelta(t, 0.5, trapezoidAUC([]float64{0.5, 0.5, 0.5, 0.5}, []int{1, 1, 0, 0}), 1e-9)

	// 单一类别无法定义 ROC
	assert.Equal(t, 0.0, trapezoidAUC([]float64{0.5, 0.6}, []int{1, 1}))
}

func TestTrapezoidAUCPartialOrder(t *testing.T) {
	// 一个正样本排在一个负样本之后: 3 对中 2 对正确 + 并列修正
	probs := []float64{0.9, 0.4, 0.6, 0.3}
	labels := []int{1, 1, 0, 0}
	auc := trapezoidAUC(probs, labels)
	assert.InDelta(t, 0.75, auc, 1e-9)
}
