package model

import "sort"

// EvalMetrics 训练集/验证集上的分类指标。阈值指标固定取 0.5。
type EvalMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	AUC       float64 `json:"auc"`
	LogLoss   float64 `json:"log_loss"`
}

// Evaluate 计算 0.5 阈值下的混淆矩阵指标与梯形法 AUC。
func Evaluate(probs []float64, labels []int) EvalMetrics {
	var m EvalMetrics
	if len(probs) == 0 || len(probs) != len(labels) {
		return m
	}
	var tp, fp, tn, fn int
	var lossSum float64
	for i, p := range probs {
		lossSum += LogLoss(p, labels[i])
		predicted := p >= 0.5
		actual := labels[i] == 1
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && !actual:
			tn++
		default:
			fn++
		}
	}
	n := float64(len(probs))
	m.Accuracy = float64(tp+tn) / n
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.LogLoss = lossSum / n
	m.AUC = trapezoidAUC(probs, labels)
	return m
}

// trapezoidAUC 按打分降序扫描构造 ROC 曲线，梯形法求面积。
// 全正或全负样本时返回 0。
func trapezoidAUC(probs []float64, labels []int) float64 {
	var pos, neg int
	for _, l := range labels {
		if l == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0
	}
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })

	var auc, tpr, fpr, prevTPR, prevFPR float64
	i := 0
	for i < len(idx) {
		j := i
		// 相同打分的样本必须一起处理，否则并列会引入方向偏差
		for j < len(idx) && probs[idx[j]] == probs[idx[i]] {
			if labels[idx[j]] == 1 {
				tpr += 1 / float64(pos)
			} else {
				fpr += 1 / float64(neg)
			}
			j++
		}
		auc += (fpr - prevFPR) * (tpr + prevTPR) / 2
		prevTPR, prevFPR = tpr, fpr
		i = j
	}
	return auc
}
