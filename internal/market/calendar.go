package market

import "time"

// 交易日历只剔除周末，不含节假日表；
// 节假日当天没有行情时按缺数据处理，由调用方跳过。

// IsTradingDay 判断给定日期是否为交易日（周一至周五）。
func IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// NextTradingDay 返回 t 之后最近的一个交易日。
func NextTradingDay(t time.Time) time.Time {
	d := Normalize(t).AddDate(0, 0, 1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// TradingDays 返回 [from, to] 闭区间内的全部交易日，升序。
func TradingDays(from, to time.Time) []time.Time {
	from = Normalize(from)
	to = Normalize(to)
	if to.Before(from) {
		return nil
	}
	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// AddTradingDays 从 t 起向后数 n 个交易日。
func AddTradingDays(t time.Time, n int) time.Time {
	d := Normalize(t)
	for i := 0; i < n; i++ {
		d = NextTradingDay(d)
	}
	return d
}
