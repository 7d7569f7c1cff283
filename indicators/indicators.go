// Package indicators provides the technical analysis functions used by the
// signal evaluators. Every function is pure: it reads its input slice and
// returns a value without retaining or mutating anything.
package indicators

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when a series is too short for the
// requested period. Callers skip the decision rather than act on a
// misleading value.
var ErrInsufficientData = errors.New("insufficient data")

func insufficient(need, got int) error {
	return fmt.Errorf("%w: need %d, got %d", ErrInsufficientData, need, got)
}
