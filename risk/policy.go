package risk

// Sizing turns account balance into a lot size.
type Sizing struct {
	RiskFraction   float64 // 0.01
	StopLossPips   float64
	PipValuePerLot float64 // units per lot, 100000
	MinLot         float64 // 0.01
	Precision      int32   // 2
	FixedLot       float64 // > 0 bypasses the formula
}

// Lots sizes an entry. quoteToAccount converts the instrument's quote
// currency into the account currency (1.0 for EUR_USD in a USD account).
func (s Sizing) Lots(balance, pipSize, quoteToAccount float64) float64 {
	if s.FixedLot > 0 {
		return roundLots(max(s.FixedLot, s.MinLot), s.Precision)
	}
	return LotSize(s.StopLossPips, s.RiskFraction, balance, pipSize*quoteToAccount, s.PipValuePerLot, s.MinLot, s.Precision)
}

// Limits are the per-cycle position rules enforced by Manager.
type Limits struct {
	MaxConcurrent        int     // flatten above this, block entries at it
	MaxDailyLossFraction float64 // halt once today's realized loss reaches this share of balance
	ProfitTarget         float64 // close a position once |profit| reaches this; 0 disables
}
