package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		side     Side
		name     string
		opposite Side
		sign     float64
	}{
		{Buy, "BUY", Sell, 1},
		{Sell, "SELL", Buy, -1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.name, tt.side.String())
			assert.Equal(t, tt.opposite, tt.side.Opposite())
			assert.Equal(t, tt.sign, tt.side.Sign())
		})
	}

	assert.Equal(t, "UNKNOWN", Side(0).String())
}
