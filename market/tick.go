package market

import "time"

// Tick is the latest bid/ask quote for an instrument.
type Tick struct {
	Instrument string
	Time       time.Time
	Bid        float64
	Ask        float64
}

func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// TickAt builds a quote around mid using a full spread expressed in price units.
func TickAt(instrument string, tm time.Time, mid, spread float64) Tick {
	return Tick{
		Instrument: instrument,
		Time:       tm,
		Bid:        mid - spread/2,
		Ask:        mid + spread/2,
	}
}
