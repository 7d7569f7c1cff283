package sim

import "github.com/rustyeddy/scalper/broker"

// PL is the profit of volume lots moved from entry to exit, converted into
// the account currency with quoteToAccount.
func PL(side broker.Side, volume, lotUnits, entry, exit, quoteToAccount float64) float64 {
	units := volume * lotUnits
	return side.Sign() * units * (exit - entry) * quoteToAccount
}
