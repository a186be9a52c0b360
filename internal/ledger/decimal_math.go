package ledger

import (
	"math"

	"github.com/shopspring/decimal"
)

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

// StopLossFor is entry*(1-pct) for a long position.
func StopLossFor(entry, pct float64) float64 {
	if entry <= 0 || pct <= 0 {
		return 0
	}
	return decToFloat(decFromFloat(entry).Mul(decOne.Sub(decFromFloat(pct))))
}

// TakeProfitFor is entry*(1+pct) for a long position.
func TakeProfitFor(entry, pct float64) float64 {
	if entry <= 0 || pct <= 0 {
		return 0
	}
	return decToFloat(decFromFloat(entry).Mul(decOne.Add(decFromFloat(pct))))
}

// HitStopLoss reports price <= stop. A zero stop never triggers.
func HitStopLoss(price, stop float64) bool {
	if stop <= 0 || price <= 0 {
		return false
	}
	return decFromFloat(price).Cmp(decFromFloat(stop)) <= 0
}

// HitTakeProfit reports price >= target. A zero target never triggers.
func HitTakeProfit(price, target float64) bool {
	if target <= 0 || price <= 0 {
		return false
	}
	return decFromFloat(price).Cmp(decFromFloat(target)) >= 0
}

// SizeFor returns floor(cash*fraction/price) whole shares.
func SizeFor(cash decimal.Decimal, fraction, price float64) int64 {
	if price <= 0 || fraction <= 0 || !cash.IsPositive() {
		return 0
	}
	budget := cash.Mul(decFromFloat(fraction))
	return budget.Div(decFromFloat(price)).Floor().IntPart()
}
