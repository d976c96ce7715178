package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"swingbot/internal/features"
	"swingbot/internal/logger"
)

// ErrInsufficientData 训练样本不足或只有单一类别，属致命错误。
var ErrInsufficientData = errors.New("训练数据不足")

// Sample 单条训练样本。Label: 1=应离场, 0=应持有。
type Sample struct {
	Vector features.Vector
	Label  int
}

// TrainOptions 逻辑回归训练参数。
type TrainOptions struct {
	Epochs       int
	LearningRate float64
	Momentum     float64
	L2Lambda     float64
	MinSamples   int
	Version      string
}

// Train 全量批梯度下降训练逻辑回归离场模型：
// z-score 标准化、动量、余弦退火学习率、仅对权重做 L2、
// 类别权重按频率倒数平衡。返回不可变工件。
func Train(samples []Sample, opts TrainOptions) (*Coefficients, error) {
	if opts.Epochs <= 0 {
		opts.Epochs = 400
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.05
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = 200
	}
	if len(samples) < opts.MinSamples {
		return nil, fmt.Errorf("%w: 仅 %d 条样本，至少需要 %d 条", ErrInsufficientData, len(samples), opts.MinSamples)
	}

	names := features.Names()
	dim := len(names)
	n := len(samples)

	X := make([][]float64, n)
	y := make([]int, n)
	var pos int
	for i, s := range samples {
		X[i] = s.Vector.Values()
		y[i] = s.Label
		if s.Label == 1 {
			pos++
		}
	}
	neg := n - pos
	if pos == 0 || neg == 0 {
		return nil, fmt.Errorf("%w: 样本只含单一类别 (pos=%d neg=%d)", ErrInsufficientData, pos, neg)
	}

	// z-score 标准化，方差为零的特征保留原值（std 记 1）
	means := make([]float64, dim)
	stds := make([]float64, dim)
	for j := 0; j < dim; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += X[i][j]
		}
		means[j] = sum / float64(n)
		var varSum float64
		for i := 0; i < n; i++ {
			d := X[i][j] - means[j]
			varSum += d * d
		}
		stds[j] = math.Sqrt(varSum / float64(n))
		if stds[j] == 0 {
			stds[j] = 1
		}
		for i := 0; i < n; i++ {
			X[i][j] = (X[i][j] - means[j]) / stds[j]
		}
	}

	// 类别权重：频率倒数，正负样本对损失的总贡献对齐
	wPos := float64(n) / (2 * float64(pos))
	wNeg := float64(n) / (2 * float64(neg))

	// 权重从小随机值起步；固定种子保证同一数据训练结果可复现
	rng := rand.New(rand.NewSource(1))
	weights := make([]float64, dim)
	for j := range weights {
		weights[j] = (rng.Float64()*2 - 1) * 0.01
	}
	velocity := make([]float64, dim)
	var bias, biasVelocity float64

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		// 余弦退火
		lr := opts.LearningRate * 0.5 * (1 + math.Cos(math.Pi*float64(epoch)/float64(opts.Epochs)))

		grad := make([]float64, dim)
		var gradBias float64
		for i := 0; i < n; i++ {
			z := bias
			for j := 0; j < dim; j++ {
				z += weights[j] * X[i][j]
			}
			p := Sigmoid(z)
			errTerm := p - float64(y[i])
			cw := wNeg
			if y[i] == 1 {
				cw = wPos
			}
			errTerm *= cw
			for j := 0; j < dim; j++ {
				grad[j] += errTerm * X[i][j]
			}
			gradBias += errTerm
		}
		for j := 0; j < dim; j++ {
			// L2 只作用在权重上，偏置不正则化
			grad[j] = grad[j]/float64(n) + opts.L2Lambda*weights[j]
			velocity[j] = opts.Momentum*velocity[j] - lr*grad[j]
			weights[j] += velocity[j]
		}
		gradBias /= float64(n)
		biasVelocity = opts.Momentum*biasVelocity - lr*gradBias
		bias += biasVelocity
	}

	probs := make([]float64, n)
	for i := 0; i < n; i++ {
		z := bias
		for j := 0; j < dim; j++ {
			z += weights[j] * X[i][j]
		}
		probs[i] = Sigmoid(z)
	}
	metrics := Evaluate(probs, y)
	logger.Infof("模型训练完成: samples=%d pos=%d neg=%d acc=%.4f auc=%.4f logloss=%.4f",
		n, pos, neg, metrics.Accuracy, metrics.AUC, metrics.LogLoss)

	coef := &Coefficients{
		Version:      opts.Version,
		TrainedAt:    time.Now().UTC(),
		FeatureNames: names,
		Weights:      make(map[string]float64, dim),
		Bias:         bias,
		Means:        make(map[string]float64, dim),
		Stds:         make(map[string]float64, dim),
		Samples:      n,
		Metrics:      metrics,
	}
	for j, name := range names {
		coef.Weights[name] = weights[j]
		coef.Means[name] = means[j]
		coef.Stds[name] = stds[j]
	}
	return coef, nil
}
