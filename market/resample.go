package market

import (
	"fmt"
	"time"
)

// Resample aggregates bars of timeframe from into bars of timeframe to.
// Buckets are aligned to the UTC epoch. Only buckets whose close time is at
// or before asOf are returned, so a partially formed bar never leaks out.
func Resample(bars []Candle, from, to Timeframe, asOf time.Time) ([]Candle, error) {
	fd, td := from.Duration(), to.Duration()
	if fd == 0 || td == 0 {
		return nil, fmt.Errorf("resample %s -> %s: unknown timeframe", from, to)
	}
	if td < fd || td%fd != 0 {
		return nil, fmt.Errorf("resample %s -> %s: target must be a multiple of source", from, to)
	}
	if td == fd {
		out := make([]Candle, 0, len(bars))
		for _, b := range bars {
			if !b.CloseTime(from).After(asOf) {
				out = append(out, b)
			}
		}
		return out, nil
	}

	var out []Candle
	var cur Candle
	have := false
	for _, b := range bars {
		if b.CloseTime(from).After(asOf) {
			break
		}
		bucket := b.Time.UTC().Truncate(td)
		if have && !bucket.Equal(cur.Time) {
			out = append(out, cur)
			have = false
		}
		if !have {
			cur = Candle{Time: bucket, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			have = true
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	if have && !cur.CloseTime(to).After(asOf) {
		out = append(out, cur)
	}
	return out, nil
}
