package strategies

import (
	"fmt"

	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/market"
)

// Micro is the high-frequency variant: one fast series, a short EMA, short
// momentum and a volatility ceiling instead of the ATR floor. The slow
// series is ignored.
type Micro struct {
	p Params
}

func NewMicro(p Params) *Micro {
	return &Micro{p: p}
}

func (m *Micro) Name() string {
	return fmt.Sprintf("micro(ema=%d,lag=%d,sd=%d)", m.p.EMASpan, m.p.MomentumLag, m.p.StdDevWindow)
}

func (m *Micro) UsesSlow() bool { return false }

func (m *Micro) Lookback() int {
	n := m.p.MomentumLag + 1
	if m.p.EMASpan > n {
		n = m.p.EMASpan
	}
	if m.p.StdDevWindow > n {
		n = m.p.StdDevWindow
	}
	return n
}

func (m *Micro) Evaluate(fast, _ []market.Candle) Signal {
	if len(fast) < m.Lookback() {
		return None
	}

	closes := market.Closes(fast)
	ema, err := indicators.LastEMA(closes, m.p.EMASpan)
	if err != nil {
		return None
	}
	mom, err := indicators.Momentum(closes, m.p.MomentumLag)
	if err != nil {
		return None
	}
	sd, err := indicators.StdDev(closes, m.p.StdDevWindow)
	if err != nil || sd >= m.p.MaxStdDev {
		return None
	}

	// A close sitting on the EMA has no side.
	last := closes[len(closes)-1]
	switch {
	case last > ema && mom > m.p.MomentumThreshold:
		return Buy
	case last < ema && mom < -m.p.MomentumThreshold:
		return Sell
	default:
		return None
	}
}
