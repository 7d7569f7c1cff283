// Package journal keeps the deal history and equity curve of the simulated
// gateway so daily P/L and backtest statistics can be queried with SQL.
package journal

import (
	"time"

	"github.com/rustyeddy/scalper/broker"
)

type EquitySnapshot struct {
	Time    time.Time
	Balance float64
	Equity  float64
}

type Journal interface {
	RecordDeal(broker.Deal) error
	RecordEquity(EquitySnapshot) error
	DealsClosedBetween(start, end time.Time) ([]broker.Deal, error)
	Close() error
}

// Stats summarises the deals closed in a time range.
type Stats struct {
	Trades      int
	Wins        int
	Losses      int
	GrossProfit float64
	GrossLoss   float64
	NetPL       float64
}

// WinRate is wins over trades in percent, zero when nothing traded.
func (s Stats) WinRate() float64 {
	if s.Trades == 0 {
		return 0
	}
	return 100 * float64(s.Wins) / float64(s.Trades)
}

// ProfitFactor is gross profit over gross loss, zero when there were no losses.
func (s Stats) ProfitFactor() float64 {
	if s.GrossLoss == 0 {
		return 0
	}
	return s.GrossProfit / s.GrossLoss
}
