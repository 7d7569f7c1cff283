package sim

import (
	"time"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/market"
)

// position is an open trade on the simulated book.
type position struct {
	ID         string
	Symbol     string
	Instrument market.Instrument
	Side       broker.Side
	Volume     float64 // lots
	OpenPrice  float64
	OpenTime   time.Time
	StopLoss   float64
	TakeProfit float64
	Magic      int
	Comment    string
}

// mark is the quote a position would close at: bid for longs, ask for shorts.
func (p *position) mark(t market.Tick) float64 {
	if p.Side == broker.Sell {
		return t.Ask
	}
	return t.Bid
}

// triggers reports whether a bar's range reached the stop or the target.
// high and low are already on the closing side of the book.
func (p *position) triggers(high, low float64) (stop, target bool) {
	if p.Side == broker.Buy {
		stop = p.StopLoss > 0 && low <= p.StopLoss
		target = p.TakeProfit > 0 && high >= p.TakeProfit
		return
	}
	stop = p.StopLoss > 0 && high >= p.StopLoss
	target = p.TakeProfit > 0 && low <= p.TakeProfit
	return
}

func (p *position) view(profit float64) broker.Position {
	return broker.Position{
		ID:        p.ID,
		Symbol:    p.Symbol,
		Side:      p.Side,
		Volume:    p.Volume,
		OpenPrice: p.OpenPrice,
		Profit:    profit,
		OpenTime:  p.OpenTime,
		Magic:     p.Magic,
	}
}
