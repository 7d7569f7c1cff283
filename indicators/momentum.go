package indicators

import (
	"fmt"
	"math"
)

// Momentum is the last value minus the value lag steps back.
func Momentum(series []float64, lag int) (float64, error) {
	if lag <= 0 {
		return 0, fmt.Errorf("lag must be positive, got %d", lag)
	}
	if len(series) < lag+1 {
		return 0, insufficient(lag+1, len(series))
	}
	last := len(series) - 1
	return series[last] - series[last-lag], nil
}

// StdDev is the sample standard deviation (n-1) of the last window values.
func StdDev(series []float64, window int) (float64, error) {
	if window < 2 {
		return 0, fmt.Errorf("window must be at least 2, got %d", window)
	}
	if len(series) < window {
		return 0, insufficient(window, len(series))
	}

	tail := series[len(series)-window:]
	mean := 0.0
	for _, v := range tail {
		mean += v
	}
	mean /= float64(window)

	ss := 0.0
	for _, v := range tail {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(window-1)), nil
}
