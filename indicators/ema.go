package indicators

// EMA returns the exponential moving average of series using the smoothing
// factor alpha = 2/(span+1). The result has the same length as series and is
// seeded with the first value, so the first span-1 entries are warm-up values
// that callers should ignore.
func EMA(series []float64, span int) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 || span <= 0 {
		return out
	}

	alpha := 2.0 / float64(span+1)
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = alpha*series[i] + (1.0-alpha)*out[i-1]
	}
	return out
}

// LastEMA is EMA(series, span)[len-1], or an error for an empty series.
func LastEMA(series []float64, span int) (float64, error) {
	if span <= 0 || len(series) == 0 {
		return 0, insufficient(1, len(series))
	}
	e := EMA(series, span)
	return e[len(e)-1], nil
}
