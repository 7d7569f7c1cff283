package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scalper/bot"
	"github.com/rustyeddy/scalper/broker/sim"
	"github.com/rustyeddy/scalper/journal"
)

// Runner drives the bot over a Feed's bars, one bar close at a time.
type Runner struct {
	engine  *sim.Engine
	feed    *Feed
	bot     *bot.Bot
	journal *journal.SQLite
	log     zerolog.Logger
}

// NewRunner expects b to be wired with feed as its market data and engine
// as its gateway, and engine to record into j.
func NewRunner(engine *sim.Engine, feed *Feed, b *bot.Bot, j *journal.SQLite, log zerolog.Logger) (*Runner, error) {
	if engine == nil || feed == nil || b == nil || j == nil {
		return nil, errors.New("backtest: engine, feed, bot and journal are required")
	}
	return &Runner{
		engine:  engine,
		feed:    feed,
		bot:     b,
		journal: j,
		log:     log.With().Str("component", "backtest").Logger(),
	}, nil
}

// Run replays every bar:
//  1. advance the feed cursor to the bar close
//  2. let the engine fill stops and targets inside the bar and requote
//  3. step the bot at the bar close
//
// Positions still open at the end are closed at the last quote.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if len(r.feed.bars) == 0 {
		return Result{}, errors.New("backtest: no bars")
	}
	if err := r.engine.Connect(ctx); err != nil {
		return Result{}, err
	}
	defer r.engine.Close()

	acct, err := r.engine.Account(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Symbol:       r.feed.inst.Name,
		Timeframe:    r.feed.tf,
		Strategy:     r.bot.Strategy(),
		StartBalance: acct.Balance,
		Start:        r.feed.bars[0].Time,
	}

	for _, bar := range r.feed.bars {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		at := bar.CloseTime(r.feed.tf)

		r.feed.Advance(at)
		if err := r.engine.ProcessBar(res.Symbol, bar, at); err != nil {
			return res, fmt.Errorf("bar %s: %w", bar.Time.Format(time.RFC3339), err)
		}
		r.bot.Step(ctx, at)

		res.Bars++
		res.End = at
	}

	if err := r.engine.CloseAll(ctx, sim.ReasonEndOfReplay); err != nil {
		return res, err
	}

	// deals close at bar close times, so the last one sits exactly on End
	until := res.End.Add(time.Nanosecond)
	stats, err := r.journal.StatsBetween(res.Start, until)
	if err != nil {
		return res, err
	}
	dd, err := r.journal.MaxDrawdownPct(res.Start, until)
	if err != nil {
		return res, err
	}
	acct, err = r.engine.Account(ctx)
	if err != nil {
		return res, err
	}

	res.Trades = stats.Trades
	res.Wins = stats.Wins
	res.Losses = stats.Losses
	res.WinRate = stats.WinRate()
	res.ProfitFactor = stats.ProfitFactor()
	res.NetPL = stats.NetPL
	res.EndBalance = acct.Balance
	res.MaxDrawdownPct = dd

	r.log.Info().
		Int("bars", res.Bars).
		Int("trades", res.Trades).
		Float64("net_pl", res.NetPL).
		Msg("backtest finished")
	return res, nil
}
