package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scalper/market"
)

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(current, previous market.Candle) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)

	return math.Max(highLow, math.Max(highClose, lowClose))
}

// ATR is the simple mean of the last period true ranges. It needs period+1
// candles because each true range depends on the previous close.
func ATR(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period+1 {
		return 0, insufficient(period+1, len(candles))
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += TrueRange(candles[i], candles[i-1])
	}
	return sum / float64(period), nil
}
