package trading

import (
	"math"

	"github.com/shopspring/decimal"
)

// 价格比较统一走 decimal，避免 float 误差导致止损/止盈误判。

var decOne = decimal.NewFromInt(1)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

func decimalCompare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

// PriceLTE 判断 a <= b（价格语义）。
func PriceLTE(a, b float64) bool { return decimalCompare(a, b) <= 0 }

// PriceGTE 判断 a >= b（价格语义）。
func PriceGTE(a, b float64) bool { return decimalCompare(a, b) >= 0 }

// PriceLT 判断 a < b（价格语义）。
func PriceLT(a, b float64) bool { return decimalCompare(a, b) < 0 }

// PriceGT 判断 a > b（价格语义）。
func PriceGT(a, b float64) bool { return decimalCompare(a, b) > 0 }

// ApplySlippage 按不利方向施加滑点：买入抬价、卖出压价。
func ApplySlippage(price, slippagePct float64, buy bool) float64 {
	if price <= 0 || slippagePct <= 0 {
		return price
	}
	base := decFromFloat(price)
	pct := decFromFloat(slippagePct)
	if buy {
		return decToFloat(base.Mul(decOne.Add(pct)))
	}
	return decToFloat(base.Mul(decOne.Sub(pct)))
}

// RiskShares 固定比例风险仓位：floor(equity*riskPct/perShareRisk)。
// 风险距离非正时返回 0，由调用方跳过该信号。
func RiskShares(equity, riskPct, entry, stop float64) int {
	if equity <= 0 || riskPct <= 0 {
		return 0
	}
	perShare := decFromFloat(entry).Sub(decFromFloat(stop))
	if perShare.Sign() <= 0 {
		return 0
	}
	budget := decFromFloat(equity).Mul(decFromFloat(riskPct))
	return int(budget.Div(perShare).IntPart())
}

// RoundCash 现金金额保留两位小数。
func RoundCash(v float64) float64 {
	return decToFloat(decFromFloat(v).Round(2))
}

// RMultiple 计算以风险距离为单位的收益倍数。
func RMultiple(entry, price, riskBasis float64) float64 {
	if riskBasis <= 0 {
		return 0
	}
	return decToFloat(decFromFloat(price).Sub(decFromFloat(entry)).Div(decFromFloat(riskBasis)))
}
