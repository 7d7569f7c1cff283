package market

import "time"

// Candle is one OHLC bar. Time is the bar open time in UTC.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// CloseTime returns the instant the bar completes for the given timeframe.
func (c Candle) CloseTime(tf Timeframe) time.Time {
	return c.Time.Add(tf.Duration())
}

// Closes extracts the close prices of bars, oldest first.
func Closes(bars []Candle) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Last returns at most n bars from the end of bars.
func Last(bars []Candle, n int) []Candle {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
