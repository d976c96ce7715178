package report

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"swingbot/internal/backtest"
)

const (
	colorBackground = "#060c1b"
	colorEquity     = "#34d399"
	colorDrawdown   = "#f87171"

	chartWidthPx  = 1400
	chartHeightPx = 420
)

// BuildHTML 生成权益曲线与回撤曲线的报告页面。
func BuildHTML(res *backtest.Result) ([]byte, error) {
	if res == nil || len(res.EquityCurve) == 0 {
		return nil, fmt.Errorf("权益曲线为空，无法生成报告")
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(equityChart(res), drawdownChart(res))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("渲染报告页面失败: %w", err)
	}
	return buf.Bytes(), nil
}

func equityChart(res *backtest.Result) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("权益曲线 run=%s (交易 %d 笔, 胜率 %.1f%%)",
				res.RunID, res.Stats.TotalTrades, res.Stats.WinRate*100),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	dates := make([]string, 0, len(res.EquityCurve))
	values := make([]opts.LineData, 0, len(res.EquityCurve))
	for _, p := range res.EquityCurve {
		dates = append(dates, p.Date.Format("2006-01-02"))
		values = append(values, opts.LineData{Value: p.Equity})
	}
	line.SetXAxis(dates).AddSeries("equity", values,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity}))
	return line
}

func drawdownChart(res *backtest.Result) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("回撤曲线 (最大回撤 %.2f%%)", res.Stats.MaxDrawdown*100),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	dates := make([]string, 0, len(res.EquityCurve))
	values := make([]opts.LineData, 0, len(res.EquityCurve))
	for _, p := range res.EquityCurve {
		dates = append(dates, p.Date.Format("2006-01-02"))
		values = append(values, opts.LineData{Value: -p.DrawdownPct * 100})
	}
	line.SetXAxis(dates).AddSeries("drawdown%", values,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorDrawdown}))
	return line
}
