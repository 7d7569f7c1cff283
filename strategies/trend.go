package strategies

import (
	"fmt"

	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/market"
)

// Trend is a multi-timeframe trend confirmation filter:
//   - ATR on the fast series must reach MinATR
//   - the last close must sit on the same side of EMA(EMASpan) on both series
//   - fast momentum over MomentumLag bars must clear the threshold in that direction
type Trend struct {
	p Params
}

func NewTrend(p Params) *Trend {
	return &Trend{p: p}
}

func (t *Trend) Name() string {
	return fmt.Sprintf("trend(ema=%d,lag=%d,atr=%d)", t.p.EMASpan, t.p.MomentumLag, t.p.ATRPeriod)
}

func (t *Trend) UsesSlow() bool { return true }

func (t *Trend) Lookback() int {
	n := t.p.ATRPeriod + 1
	if t.p.EMASpan > n {
		n = t.p.EMASpan
	}
	if t.p.MomentumLag+1 > n {
		n = t.p.MomentumLag + 1
	}
	return n
}

func (t *Trend) Evaluate(fast, slow []market.Candle) Signal {
	need := t.Lookback()
	if len(fast) < need || len(slow) < need {
		return None
	}

	atr, err := indicators.ATR(fast, t.p.ATRPeriod)
	if err != nil || atr < t.p.MinATR {
		return None
	}

	fastCloses := market.Closes(fast)
	slowCloses := market.Closes(slow)

	fastEMA, err := indicators.LastEMA(fastCloses, t.p.EMASpan)
	if err != nil {
		return None
	}
	slowEMA, err := indicators.LastEMA(slowCloses, t.p.EMASpan)
	if err != nil {
		return None
	}

	fastTrend := fastCloses[len(fastCloses)-1] > fastEMA
	slowTrend := slowCloses[len(slowCloses)-1] > slowEMA

	mom, err := indicators.Momentum(fastCloses, t.p.MomentumLag)
	if err != nil {
		return None
	}

	return decide(fastTrend, slowTrend, mom, t.p.MomentumThreshold)
}

func decide(fastTrend, slowTrend bool, momentum, threshold float64) Signal {
	switch {
	case fastTrend && slowTrend && momentum > threshold:
		return Buy
	case !fastTrend && !slowTrend && momentum < -threshold:
		return Sell
	default:
		return None
	}
}
