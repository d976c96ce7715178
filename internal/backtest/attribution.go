package backtest

import (
	"fmt"
	"strings"
)

// GroupStat 单个分组的归因统计。
type GroupStat struct {
	Count    int     `json:"count"`
	Wins     int     `json:"wins"`
	WinRate  float64 `json:"win_rate"`
	AvgR     float64 `json:"avg_r"`
	TotalPnL float64 `json:"total_pnl"`
}

// Attribution 按市场状态/行业/月份/年份的表现拆解。
type Attribution struct {
	ByRegime map[string]GroupStat `json:"by_regime"`
	BySector map[string]GroupStat `json:"by_sector"`
	ByMonth  map[string]GroupStat `json:"by_month"`
	ByYear   map[string]GroupStat `json:"by_year"`
}

// ComputeAttribution 对已关闭交易做分组归因。分组键取入场日。
func ComputeAttribution(trades []*Trade) Attribution {
	a := Attribution{
		ByRegime: make(map[string]GroupStat),
		BySector: make(map[string]GroupStat),
		ByMonth:  make(map[string]GroupStat),
		ByYear:   make(map[string]GroupStat),
	}
	type acc struct {
		count int
		wins  int
		sumR  float64
		pnl   float64
	}
	accumulate := func(dest map[string]GroupStat, key string, t *Trade) {
		if key == "" {
			key = "UNKNOWN"
		}
		s := dest[key]
		s.Count++
		if t.RealizedPnL > 0 {
			s.Wins++
		}
		s.AvgR += t.RealizedR() // 先累加，收尾再除
		s.TotalPnL += t.RealizedPnL
		dest[key] = s
	}
	for _, t := range trades {
		if t.Status != TradeClosed {
			continue
		}
		accumulate(a.ByRegime, strings.ToLower(strings.TrimSpace(t.Regime)), t)
		accumulate(a.BySector, t.Sector, t)
		accumulate(a.ByMonth, t.EntryDate.Format("2006-01"), t)
		accumulate(a.ByYear, fmt.Sprintf("%d", t.EntryDate.Year()), t)
	}
	finalize := func(dest map[string]GroupStat) {
		for k, s := range dest {
			if s.Count > 0 {
				s.WinRate = float64(s.Wins) / float64(s.Count)
				s.AvgR /= float64(s.Count)
			}
			dest[k] = s
		}
	}
	finalize(a.ByRegime)
	finalize(a.BySector)
	finalize(a.ByMonth)
	finalize(a.ByYear)
	return a
}
