package backtest

// CalibrationBucket 入场概率校准桶（10 个百分点一档）。
// ActualRate 为桶内交易最终 MFE 达到 1.5R 的比例。
type CalibrationBucket struct {
	LowerPct     float64 `json:"lower_pct"`
	UpperPct     float64 `json:"upper_pct"`
	Count        int     `json:"count"`
	AvgPredicted float64 `json:"avg_predicted"`
	ActualRate   float64 `json:"actual_rate"`
}

const calibrationTargetR = 1.5

// ComputeCalibration 将已关闭交易按入场概率分入 10 个桶，
// 对比预测概率与实际达标率。空桶保留，Count=0。
func ComputeCalibration(trades []*Trade) []CalibrationBucket {
	buckets := make([]CalibrationBucket, 10)
	for i := range buckets {
		buckets[i].LowerPct = float64(i * 10)
		buckets[i].UpperPct = float64((i + 1) * 10)
	}
	sums := make([]float64, 10)
	hits := make([]int, 10)
	for _, t := range trades {
		if t.Status != TradeClosed {
			continue
		}
		idx := int(t.Probability / 10)
		if idx < 0 {
			idx = 0
		}
		if idx > 9 {
			idx = 9 // 概率 100 归入最高桶
		}
		buckets[idx].Count++
		sums[idx] += t.Probability
		if t.MFE >= calibrationTargetR {
			hits[idx]++
		}
	}
	for i := range buckets {
		if buckets[i].Count > 0 {
			buckets[i].AvgPredicted = sums[i] / float64(buckets[i].Count)
			buckets[i].ActualRate = float64(hits[i]) / float64(buckets[i].Count)
		}
	}
	return buckets
}
