package sim

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/market"
)

var t0 = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *journal.SQLite) {
	t.Helper()

	j, err := journal.NewSQLite(journal.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	e := NewEngine(Config{Balance: 10_000, SpreadPips: 1}, j, zerolog.Nop())
	require.NoError(t, e.Connect(context.Background()))
	return e, j
}

func quote(tm time.Time, bid float64) market.Tick {
	return market.Tick{Instrument: "EUR_USD", Time: tm, Bid: bid, Ask: bid + 0.0001}
}

func TestSubmitOrderFillsAtAskAndBid(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	require.NoError(t, e.UpdateTick(quote(t0, 1.1000)))

	buy, err := e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 0.1})
	require.NoError(t, err)
	assert.True(t, buy.Filled)
	assert.InDelta(t, 1.1001, buy.Price, 1e-9)

	sell, err := e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Sell, Volume: 0.1})
	require.NoError(t, err)
	assert.InDelta(t, 1.1000, sell.Price, 1e-9)

	pos, err := e.Positions(ctx, "EURUSD")
	require.NoError(t, err)
	require.Len(t, pos, 2)
	assert.Equal(t, buy.PositionID, pos[0].ID)
	assert.Equal(t, broker.Buy, pos[0].Side)
}

func TestSubmitOrderRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("not connected", func(t *testing.T) {
		e, _ := newTestEngine(t)
		require.NoError(t, e.Close())
		_, err := e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 0.1})
		assert.ErrorIs(t, err, broker.ErrNotConnected)
	})

	t.Run("no price", func(t *testing.T) {
		e, _ := newTestEngine(t)
		_, err := e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 0.1})
		assert.ErrorIs(t, err, broker.ErrRejected)
		assert.ErrorIs(t, err, ErrNoPrice)
	})

	t.Run("zero volume", func(t *testing.T) {
		e, _ := newTestEngine(t)
		require.NoError(t, e.UpdateTick(quote(t0, 1.1000)))
		_, err := e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Buy})
		assert.ErrorIs(t, err, broker.ErrRejected)
	})

	t.Run("price moved past deviation", func(t *testing.T) {
		e, _ := newTestEngine(t)
		require.NoError(t, e.UpdateTick(quote(t0, 1.1000)))
		// ask is 1.1001, requested 1.0990 with 10 points (1 pip) allowed
		res, err := e.SubmitOrder(ctx, broker.OrderRequest{
			Symbol: "EURUSD", Side: broker.Buy, Volume: 0.1, Price: 1.0990, Deviation: 10,
		})
		assert.ErrorIs(t, err, broker.ErrRejected)
		assert.False(t, res.Filled)
	})

	t.Run("within deviation", func(t *testing.T) {
		e, _ := newTestEngine(t)
		require.NoError(t, e.UpdateTick(quote(t0, 1.1000)))
		res, err := e.SubmitOrder(ctx, broker.OrderRequest{
			Symbol: "EURUSD", Side: broker.Buy, Volume: 0.1, Price: 1.1000, Deviation: 10,
		})
		require.NoError(t, err)
		assert.True(t, res.Filled)
	})
}

func TestClosePositionRealizesProfit(t *testing.T) {
	ctx := context.Background()
	e, j := newTestEngine(t)
	require.NoError(t, e.UpdateTick(quote(t0, 1.1000)))

	res, err := e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 0.1})
	require.NoError(t, err)

	// bid rises 20 pips above the 1.1001 fill
	require.NoError(t, e.UpdateTick(quote(t0.Add(time.Minute), 1.1021)))

	pos, err := e.Positions(ctx, "EURUSD")
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.InDelta(t, 20.0, pos[0].Profit, 1e-6)

	closed, err := e.ClosePosition(ctx, broker.CloseRequest{Position: pos[0], Side: broker.Sell, Comment: "SCALP-CLOSE"})
	require.NoError(t, err)
	assert.Equal(t, res.PositionID, closed.PositionID)
	assert.InDelta(t, 20.0, closed.Profit, 1e-6)

	acct, err := e.Account(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10_020.0, acct.Balance, 1e-6)
	assert.InDelta(t, acct.Balance, acct.Equity, 1e-6)

	deals, err := e.ClosedDeals(ctx, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, "SCALP-CLOSE", deals[0].Reason)

	stats, err := j.StatsBetween(t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Wins)

	_, err = e.ClosePosition(ctx, broker.CloseRequest{Position: pos[0]})
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestShortProfitUsesAsk(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	require.NoError(t, e.UpdateTick(quote(t0, 1.1000)))

	_, err := e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Sell, Volume: 1})
	require.NoError(t, err)

	// ask falls from 1.1001 to 1.0991, 9 pips below the 1.1000 fill
	require.NoError(t, e.UpdateTick(quote(t0.Add(time.Minute), 1.0990)))
	pos, err := e.Positions(ctx, "EURUSD")
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.InDelta(t, 90.0, pos[0].Profit, 1e-6)
}

func TestProcessBarStopsAndTargets(t *testing.T) {
	ctx := context.Background()

	open := func(t *testing.T, side broker.Side, sl, tp float64) *Engine {
		t.Helper()
		e, _ := newTestEngine(t)
		require.NoError(t, e.UpdateTick(quote(t0, 1.1000)))
		_, err := e.SubmitOrder(ctx, broker.OrderRequest{
			Symbol: "EURUSD", Side: side, Volume: 0.1, StopLoss: sl, TakeProfit: tp,
		})
		require.NoError(t, err)
		return e
	}
	bar := func(high, low, close float64) market.Candle {
		return market.Candle{Time: t0, Open: 1.1000, High: high, Low: low, Close: close}
	}
	reasons := func(t *testing.T, e *Engine) []string {
		t.Helper()
		deals, err := e.ClosedDeals(ctx, t0, t0.Add(time.Hour))
		require.NoError(t, err)
		var out []string
		for _, d := range deals {
			out = append(out, d.Reason)
		}
		return out
	}

	tests := []struct {
		name string
		side broker.Side
		bar  market.Candle
		want []string
	}{
		{"long take profit", broker.Buy, bar(1.1030, 1.0995, 1.1025), []string{ReasonTakeProfit}},
		{"long stop loss", broker.Buy, bar(1.1005, 1.0980, 1.0985), []string{ReasonStopLoss}},
		{"long both touched stops first", broker.Buy, bar(1.1030, 1.0980, 1.1000), []string{ReasonStopLoss}},
		{"long untouched", broker.Buy, bar(1.1010, 1.0995, 1.1005), nil},
		{"short take profit", broker.Sell, bar(1.1000, 1.0970, 1.0975), []string{ReasonTakeProfit}},
		{"short stop loss", broker.Sell, bar(1.1020, 1.0995, 1.1015), []string{ReasonStopLoss}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var e *Engine
			if tc.side == broker.Buy {
				// fill 1.1001
				e = open(t, broker.Buy, 1.0990, 1.1020)
			} else {
				// fill 1.1000
				e = open(t, broker.Sell, 1.1010, 1.0980)
			}
			require.NoError(t, e.ProcessBar("EURUSD", tc.bar, t0.Add(time.Minute)))
			assert.Equal(t, tc.want, reasons(t, e))

			tick, err := e.Tick(ctx, "EURUSD")
			require.NoError(t, err)
			assert.InDelta(t, tc.bar.Close, tick.Bid, 1e-9)
			assert.InDelta(t, tc.bar.Close+0.0001, tick.Ask, 1e-9)
		})
	}
}

func TestStopLossFillsAtStopPrice(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	require.NoError(t, e.UpdateTick(quote(t0, 1.1000)))

	_, err := e.SubmitOrder(ctx, broker.OrderRequest{
		Symbol: "EURUSD", Side: broker.Buy, Volume: 0.1, StopLoss: 1.0991,
	})
	require.NoError(t, err)

	require.NoError(t, e.ProcessBar("EURUSD", market.Candle{High: 1.1002, Low: 1.0980, Close: 1.0985}, t0.Add(time.Minute)))

	deals, err := e.ClosedDeals(ctx, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.InDelta(t, 1.0991, deals[0].ClosePrice, 1e-9)
	assert.InDelta(t, -10.0, deals[0].Profit, 1e-6)
}

func TestCloseAll(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	require.NoError(t, e.UpdateTick(quote(t0, 1.1000)))

	for i := 0; i < 3; i++ {
		_, err := e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 0.01})
		require.NoError(t, err)
	}
	require.NoError(t, e.CloseAll(ctx, ReasonEndOfReplay))

	pos, err := e.Positions(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, pos)

	deals, err := e.ClosedDeals(ctx, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, deals, 3)
}

func TestPLConvertsQuoteCurrency(t *testing.T) {
	// 1 lot USD_JPY up 0.10 yen at 150 is 10000 JPY, about 66.67 USD
	got := PL(broker.Buy, 1, 100_000, 150.00, 150.10, 1/150.05)
	assert.InDelta(t, 10_000/150.05, got, 1e-6)

	assert.InDelta(t, -got, PL(broker.Sell, 1, 100_000, 150.00, 150.10, 1/150.05), 1e-9)
}

type countingJournal struct {
	*journal.SQLite
	snapshots []journal.EquitySnapshot
}

func (c *countingJournal) RecordEquity(s journal.EquitySnapshot) error {
	c.snapshots = append(c.snapshots, s)
	return c.SQLite.RecordEquity(s)
}

func TestEquitySnapshotOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	db, err := journal.NewSQLite(journal.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	j := &countingJournal{SQLite: db}
	e := NewEngine(Config{Balance: 10_000, SpreadPips: 1}, j, zerolog.Nop())
	require.NoError(t, e.Connect(ctx))

	// flat book: repeated quotes leave balance and equity alone
	for i := 0; i < 5; i++ {
		require.NoError(t, e.UpdateTick(quote(t0.Add(time.Duration(i)*50*time.Millisecond), 1.1000)))
	}
	assert.Len(t, j.snapshots, 1)

	_, err = e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 0.1})
	require.NoError(t, err)

	require.NoError(t, e.UpdateTick(quote(t0.Add(time.Second), 1.1010)))
	require.NoError(t, e.UpdateTick(quote(t0.Add(2*time.Second), 1.1010)))
	require.Len(t, j.snapshots, 2)
	assert.InDelta(t, 10_009, j.snapshots[1].Equity, 1e-6)
	assert.Equal(t, 10_000.0, j.snapshots[1].Balance)
}
