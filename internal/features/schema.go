package features

// Vector 离场模型的特征向量。字段顺序即特征顺序，
// 训练与在线评估共用同一份 schema 定义，禁止各自维护副本。
type Vector struct {
	DaysHeldFrac     float64 `json:"days_held_frac"`
	UnrealizedR      float64 `json:"unrealized_r"`
	UnrealizedPct    float64 `json:"unrealized_pct"`
	MFER             float64 `json:"mfe_r"`
	MAER             float64 `json:"mae_r"`
	DrawdownFromMFER float64 `json:"drawdown_from_mfe_r"`
	Ret1D            float64 `json:"ret_1d"`
	Ret3D            float64 `json:"ret_3d"`
	Ret5D            float64 `json:"ret_5d"`
	RSI14            float64 `json:"rsi14"`
	ATRPct           float64 `json:"atr_pct"`
	CloseVsSMA20Pct  float64 `json:"close_vs_sma20_pct"`
	CloseVsSMA50Pct  float64 `json:"close_vs_sma50_pct"`
	BenchmarkRet5D   float64 `json:"benchmark_ret_5d"`
	BenchmarkRet10D  float64 `json:"benchmark_ret_10d"`
	DayOfWeek        float64 `json:"day_of_week"`
	MonthEnd         float64 `json:"month_end"`
	ProfitZone0      float64 `json:"profit_zone_0"`
	ProfitZone1      float64 `json:"profit_zone_1"`
	ProfitZone15     float64 `json:"profit_zone_1_5"`
	ProfitZone2      float64 `json:"profit_zone_2"`
}

// Field 单个特征的名称与取值函数。
type Field struct {
	Name string
	Get  func(Vector) float64
}

// Schema 返回特征的固定顺序。新增特征只允许追加在末尾。
func Schema() []Field {
	return []Field{
		{Name: "days_held_frac", Get: func(v Vector) float64 { return v.DaysHeldFrac }},
		{Name: "unrealized_r", Get: func(v Vector) float64 { return v.UnrealizedR }},
		{Name: "unrealized_pct", Get: func(v Vector) float64 { return v.UnrealizedPct }},
		{Name: "mfe_r", Get: func(v Vector) float64 { return v.MFER }},
		{Name: "mae_r", Get: func(v Vector) float64 { return v.MAER }},
		{Name: "drawdown_from_mfe_r", Get: func(v Vector) float64 { return v.DrawdownFromMFER }},
		{Name: "ret_1d", Get: func(v Vector) float64 { return v.Ret1D }},
		{Name: "ret_3d", Get: func(v Vector) float64 { return v.Ret3D }},
		{Name: "ret_5d", Get: func(v Vector) float64 { return v.Ret5D }},
		{Name: "rsi14", Get: func(v Vector) float64 { return v.RSI14 }},
		{Name: "atr_pct", Get: func(v Vector) float64 { return v.ATRPct }},
		{Name: "close_vs_sma20_pct", Get: func(v Vector) float64 { return v.CloseVsSMA20Pct }},
		{Name: "close_vs_sma50_pct", Get: func(v Vector) float64 { return v.CloseVsSMA50Pct }},
		{Name: "benchmark_ret_5d", Get: func(v Vector) float64 { return v.BenchmarkRet5D }},
		{Name: "benchmark_ret_10d", Get: func(v Vector) float64 { return v.BenchmarkRet10D }},
		{Name: "day_of_week", Get: func(v Vector) float64 { return v.DayOfWeek }},
		{Name: "month_end", Get: func(v Vector) float64 { return v.MonthEnd }},
		{Name: "profit_zone_0", Get: func(v Vector) float64 { return v.ProfitZone0 }},
		{Name: "profit_zone_1", Get: func(v Vector) float64 { return v.ProfitZone1 }},
		{Name: "profit_zone_1_5", Get: func(v Vector) float64 { return v.ProfitZone15 }},
		{Name: "profit_zone_2", Get: func(v Vector) float64 { return v.ProfitZone2 }},
	}
}

// Names 返回特征名列表，顺序与 Schema 一致。
func Names() []string {
	fields := Schema()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Values 按 schema 顺序展开为数值切片。
func (v Vector) Values() []float64 {
	fields := Schema()
	out := make([]float64, len(fields))
	for i, f := range fields {
		out[i] = f.Get(v)
	}
	return out
}
