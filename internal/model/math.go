package model

import "math"

// sigmoidClamp 之外的输入直接饱和，避免 exp 溢出。
const sigmoidClamp = 500

// Sigmoid 数值稳定的 logistic 函数。
func Sigmoid(x float64) float64 {
	if x > sigmoidClamp {
		return 1
	}
	if x < -sigmoidClamp {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

// LogLoss 单样本交叉熵，概率钳制在 [1e-15, 1-1e-15] 内防止取对数爆炸。
func LogLoss(p float64, label int) float64 {
	const eps = 1e-15
	if p < eps {
		p = eps
	}
	if p > 1-eps {
		p = 1 - eps
	}
	if label == 1 {
		return -math.Log(p)
	}
	return -math.Log(1 - p)
}
