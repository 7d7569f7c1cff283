// Package backtest replays historical bars through the same bot loop that
// trades live, against the simulated gateway.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/scalper/market"
)

// QuoteSource supplies the current quote. The sim engine is the usual one.
type QuoteSource interface {
	Tick(ctx context.Context, symbol string) (market.Tick, error)
}

// Feed serves historical bars as if they were arriving live. At cursor T it
// only returns bars that closed at or before T, and coarser timeframes are
// resampled from those bars so no forming bucket is ever visible.
type Feed struct {
	inst   market.Instrument
	tf     market.Timeframe
	bars   []market.Candle
	quotes QuoteSource

	cursor  time.Time
	visible int
}

func NewFeed(symbol string, tf market.Timeframe, bars []market.Candle, quotes QuoteSource) (*Feed, error) {
	inst, err := market.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	if tf.Duration() <= 0 {
		return nil, fmt.Errorf("unsupported timeframe %q", tf)
	}
	if quotes == nil {
		return nil, errors.New("backtest: feed needs a quote source")
	}
	if !sort.SliceIsSorted(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) }) {
		return nil, errors.New("backtest: bars are not in time order")
	}
	return &Feed{inst: inst, tf: tf, bars: bars, quotes: quotes}, nil
}

// Advance moves the cursor forward to t. Moving backwards is ignored.
func (f *Feed) Advance(t time.Time) {
	if t.Before(f.cursor) {
		return
	}
	f.cursor = t
	for f.visible < len(f.bars) && !f.bars[f.visible].CloseTime(f.tf).After(t) {
		f.visible++
	}
}

func (f *Feed) Cursor() time.Time { return f.cursor }

// Candles returns up to count completed bars of tf as of the cursor.
func (f *Feed) Candles(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error) {
	if market.NormalizeSymbol(symbol) != f.inst.Name {
		return nil, fmt.Errorf("feed has no data for %s", symbol)
	}
	seen := f.bars[:f.visible]

	if tf == f.tf {
		return clone(market.Last(seen, count)), nil
	}

	td, fd := tf.Duration(), f.tf.Duration()
	if td < fd {
		return nil, fmt.Errorf("cannot serve %s bars from %s data", tf, f.tf)
	}

	// Only the tail that can make up count buckets is resampled, starting on
	// a bucket boundary.
	start := 0
	if count > 0 {
		need := (count + 1) * int(td/fd)
		if len(seen) > need {
			start = len(seen) - need
		}
		for start > 0 && start < len(seen) &&
			seen[start].Time.Truncate(td).Equal(seen[start-1].Time.Truncate(td)) {
			start++
		}
	}

	out, err := market.Resample(seen[start:], f.tf, tf, f.cursor)
	if err != nil {
		return nil, err
	}
	return market.Last(out, count), nil
}

// Tick forwards to the quote source.
func (f *Feed) Tick(ctx context.Context, symbol string) (market.Tick, error) {
	return f.quotes.Tick(ctx, symbol)
}

func clone(bars []market.Candle) []market.Candle {
	out := make([]market.Candle, len(bars))
	copy(out, bars)
	return out
}
