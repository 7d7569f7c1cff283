package strategies

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/scalper/market"
)

// Signal is the outcome of one evaluation pass.
type Signal int

const (
	None Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "NONE"
	}
}

// Evaluator turns bar series into a Signal. Implementations are pure:
// identical inputs always yield the same Signal.
type Evaluator interface {
	Name() string

	// Lookback is the minimum number of bars each series must carry.
	Lookback() int

	// UsesSlow reports whether Evaluate reads the slow series at all.
	UsesSlow() bool

	Evaluate(fast, slow []market.Candle) Signal
}

// Params holds the tunables for every evaluator; each one reads only the
// fields it needs.
type Params struct {
	EMASpan           int
	MomentumLag       int
	MomentumThreshold float64

	// Trend
	ATRPeriod int
	MinATR    float64

	// Micro
	StdDevWindow int
	MaxStdDev    float64
}

// TrendDefaults are the fixed thresholds of the multi-timeframe filter.
func TrendDefaults() Params {
	return Params{
		EMASpan:           8,
		MomentumLag:       5,
		MomentumThreshold: 0.0002,
		ATRPeriod:         14,
		MinATR:            0.0003,
	}
}

// MicroDefaults mirror the tick scalper: EMA(3), 3-step momentum and a
// 5-sample volatility ceiling.
func MicroDefaults() Params {
	return Params{
		EMASpan:           3,
		MomentumLag:       3,
		MomentumThreshold: 0.0002,
		StdDevWindow:      5,
		MaxStdDev:         0.0005,
	}
}

// ByName returns the evaluator registered under name.
func ByName(name string, p Params) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trend", "":
		return NewTrend(p), nil
	case "micro", "tick":
		return NewMicro(p), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: trend, micro)", name)
	}
}
