package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

// LotSize sizes a position so that a stop-loss hit costs riskFraction of
// balance:
//
//	lots = balance*riskFraction / (stopLossPips * pipSize * pipValuePerLot)
//
// pipValuePerLot is the number of quote units in one lot (100000 for FX), so
// the denominator is the account-currency loss of one lot over the stop when
// pipSize is already expressed in account currency. The result is clamped to
// minLot and rounded to precision decimal places. A non-positive denominator
// yields minLot.
func LotSize(stopLossPips, riskFraction, balance, pipSize, pipValuePerLot, minLot float64, precision int32) float64 {
	denom := stopLossPips * pipSize * pipValuePerLot
	if denom <= 0 || math.IsNaN(denom) {
		return roundLots(minLot, precision)
	}

	lots := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(riskFraction)).
		Div(decimal.NewFromFloat(denom))

	if lots.LessThan(decimal.NewFromFloat(minLot)) {
		lots = decimal.NewFromFloat(minLot)
	}
	f, _ := lots.Round(precision).Float64()
	return f
}

func roundLots(lots float64, precision int32) float64 {
	f, _ := decimal.NewFromFloat(lots).Round(precision).Float64()
	return f
}

// PlannedRisk is the account-currency loss if a position of volume lots is
// stopped out.
func PlannedRisk(volume, lotUnits, entry, stop, quoteToAccount float64) float64 {
	return volume * lotUnits * math.Abs(entry-stop) * quoteToAccount
}

// RR is the reward to risk ratio of a bracket.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / risk
}
