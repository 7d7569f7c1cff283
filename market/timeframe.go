package market

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe names a bar granularity using broker notation (S5, M1, M5, H1, D).
type Timeframe string

const (
	S5  Timeframe = "S5"
	S10 Timeframe = "S10"
	S30 Timeframe = "S30"
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D   Timeframe = "D"
)

var timeframes = map[Timeframe]time.Duration{
	S5:  5 * time.Second,
	S10: 10 * time.Second,
	S30: 30 * time.Second,
	M1:  time.Minute,
	M5:  5 * time.Minute,
	M15: 15 * time.Minute,
	M30: 30 * time.Minute,
	H1:  time.Hour,
	H4:  4 * time.Hour,
	D:   24 * time.Hour,
}

// ParseTimeframe validates a granularity string.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := timeframes[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe: %s", s)
	}
	return tf, nil
}

// Duration returns the bar length, or zero for an unknown timeframe.
func (tf Timeframe) Duration() time.Duration {
	return timeframes[tf]
}

func (tf Timeframe) String() string { return string(tf) }
