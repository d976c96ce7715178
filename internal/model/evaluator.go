package model

import (
	"fmt"
	"math"
	"sort"

	"swingbot/internal/features"
)

// DefaultExitThreshold 调用方未指定时使用的基准离场阈值。
const DefaultExitThreshold = 0.5

// 阈值调整：浮盈充裕时放宽到 0.40，触及持仓时限时压到 0.30。
const (
	richProfitThreshold   = 0.40
	richProfitActivationR = 2.0
	maxHoldThreshold      = 0.30
	reasonCutoff          = 0.5
)

// Decision 评估器输出。Confidence 为与决策边界的归一化距离。
type Decision struct {
	Probability float64  `json:"probability"`
	Confidence  float64  `json:"confidence"`
	ShouldExit  bool     `json:"should_exit"`
	Threshold   float64  `json:"threshold"`
	Reasons     []string `json:"reasons,omitempty"`
}

// Evaluator 加载后的离场模型，按特征 schema 顺序对齐权重。
type Evaluator struct {
	coef    *Coefficients
	weights []float64
	means   []float64
	stds    []float64
}

// NewEvaluator 从工件构造评估器，schema 不匹配直接失败。
func NewEvaluator(coef *Coefficients) (*Evaluator, error) {
	if coef == nil {
		return nil, fmt.Errorf("模型工件为空")
	}
	if err := coef.CheckSchema(); err != nil {
		return nil, err
	}
	names := features.Names()
	e := &Evaluator{
		coef:    coef,
		weights: make([]float64, len(names)),
		means:   make([]float64, len(names)),
		stds:    make([]float64, len(names)),
	}
	for i, name := range names {
		e.weights[i] = coef.Weights[name]
		e.means[i] = coef.Means[name]
		e.stds[i] = coef.Stds[name]
		if e.stds[i] == 0 {
			e.stds[i] = 1
		}
	}
	return e, nil
}

// Version 返回工件版本。
func (e *Evaluator) Version() string { return e.coef.Version }

// Evaluate 对持仓当前状态给出离场建议。threshold 为调用方提供的基准阈值，
// 非正值回落到 DefaultExitThreshold；unrealizedR 达到激活倍数时降低阈值，
// 触及持仓时限时进一步降低。
func (e *Evaluator) Evaluate(v features.Vector, unrealizedR float64, atMaxHold bool, threshold float64) Decision {
	values := v.Values()
	z := e.coef.Bias
	zs := make([]float64, len(values))
	for i, val := range values {
		zs[i] = (val - e.means[i]) / e.stds[i]
		z += e.weights[i] * zs[i]
	}
	p := Sigmoid(z)

	if threshold <= 0 {
		threshold = DefaultExitThreshold
	}
	if unrealizedR >= richProfitActivationR {
		threshold = richProfitThreshold
	}
	if atMaxHold {
		threshold = maxHoldThreshold
	}

	d := Decision{
		Probability: p,
		Confidence:  math.Abs(p-0.5) * 2,
		ShouldExit:  p >= threshold,
		Threshold:   threshold,
	}
	if d.ShouldExit {
		d.Reasons = e.reasons(zs)
	}
	return d
}

// reasons 按 |权重×z 值| 排序挑出主导特征，贡献低于阈值的忽略。
func (e *Evaluator) reasons(zs []float64) []string {
	names := features.Names()
	type contrib struct {
		name  string
		value float64
	}
	ranked := make([]contrib, 0, len(names))
	for i, name := range names {
		c := e.weights[i] * zs[i]
		if math.Abs(c) < reasonCutoff {
			continue
		}
		ranked = append(ranked, contrib{name: name, value: c})
	}
	sort.Slice(ranked, func(a, b int) bool {
		return math.Abs(ranked[a].value) > math.Abs(ranked[b].value)
	})
	out := make([]string, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, fmt.Sprintf("%s 贡献 %+.2f", c.name, c.value))
	}
	return out
}
