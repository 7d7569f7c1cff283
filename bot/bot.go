// Package bot runs the trading loop: session gating, the risk pass, signal
// evaluation and entry submission, paced at a fixed cycle interval.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/execution"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/risk"
	"github.com/rustyeddy/scalper/strategies"
)

type Config struct {
	Symbol             string
	FastTimeframe      market.Timeframe
	SlowTimeframe      market.Timeframe
	Bars               int // bars requested per series, raised to the evaluator's lookback
	Session            Session
	CycleInterval      time.Duration
	OffSessionInterval time.Duration
	AccountCurrency    string
}

// Components are the collaborators one Bot drives.
type Components struct {
	MarketData broker.MarketData
	Gateway    broker.Gateway
	Evaluator  strategies.Evaluator
	Risk       *risk.Manager
	Executor   *execution.Executor
	Sizing     risk.Sizing
}

type Bot struct {
	cfg   Config
	c     Components
	inst  market.Instrument
	log   zerolog.Logger
	state State
	now   func() time.Time
}

// Outcome describes what one in-session cycle did.
type Outcome struct {
	Report risk.Report
	Signal strategies.Signal
	Volume float64
	Order  *broker.OrderResult
	Err    error
}

func New(cfg Config, c Components, log zerolog.Logger) (*Bot, error) {
	inst, err := market.Lookup(cfg.Symbol)
	if err != nil {
		return nil, err
	}
	if c.MarketData == nil || c.Gateway == nil || c.Evaluator == nil || c.Risk == nil || c.Executor == nil {
		return nil, errors.New("bot: missing component")
	}
	if cfg.Bars < c.Evaluator.Lookback() {
		cfg.Bars = c.Evaluator.Lookback()
	}
	return &Bot{
		cfg:   cfg,
		c:     c,
		inst:  inst,
		log:   log.With().Str("component", "bot").Str("symbol", cfg.Symbol).Logger(),
		state: Unknown,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// State is the session state at the last Step.
func (b *Bot) State() State { return b.state }

func (b *Bot) Strategy() string { return b.c.Evaluator.Name() }

// Run connects the gateway, steps until ctx is cancelled and releases the
// gateway on the way out. A failed connect is returned as is.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.c.Gateway.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := b.c.Gateway.Close(); err != nil {
			b.log.Error().Err(err).Msg("gateway close")
		}
	}()

	b.log.Info().
		Str("strategy", b.c.Evaluator.Name()).
		Int("session_start", b.cfg.Session.StartHour).
		Int("session_end", b.cfg.Session.EndHour).
		Msg("bot started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("bot stopped")
			return nil
		case <-timer.C:
		}

		wait := b.Step(ctx, b.now())
		timer.Reset(wait)
	}
}

// Step performs one iteration at now and returns how long to pause before
// the next one.
func (b *Bot) Step(ctx context.Context, now time.Time) time.Duration {
	started := time.Now()

	state := b.cfg.Session.State(now)
	if state != b.state {
		b.log.Info().
			Str("from", b.state.String()).
			Str("to", state.String()).
			Time("at", now).
			Msg("session state")
		b.state = state
	}
	if state == OutOfSession {
		return b.cfg.OffSessionInterval
	}

	out := b.Cycle(ctx, now)
	if out.Err != nil {
		b.log.Warn().Err(out.Err).Msg("cycle")
	}
	return Pace(b.cfg.CycleInterval, time.Since(started))
}

// Pace is the remainder of interval after elapsed, never negative.
func Pace(interval, elapsed time.Duration) time.Duration {
	if d := interval - elapsed; d > 0 {
		return d
	}
	return 0
}

// Cycle runs the in-session work once: risk pass, signal, and at most one
// entry. Fetch failures end the cycle early and are reported in Outcome.Err.
func (b *Bot) Cycle(ctx context.Context, now time.Time) Outcome {
	var out Outcome

	rep, err := b.c.Risk.Check(ctx, now)
	out.Report = rep
	if err != nil {
		out.Err = fmt.Errorf("risk check: %w", err)
		return out
	}

	fast, err := b.c.MarketData.Candles(ctx, b.cfg.Symbol, b.cfg.FastTimeframe, b.cfg.Bars)
	if err != nil {
		out.Err = fmt.Errorf("fast bars: %w", err)
		return out
	}
	var slow []market.Candle
	if b.c.Evaluator.UsesSlow() {
		slow, err = b.c.MarketData.Candles(ctx, b.cfg.Symbol, b.cfg.SlowTimeframe, b.cfg.Bars)
		if err != nil {
			out.Err = fmt.Errorf("slow bars: %w", err)
			return out
		}
	}

	need := b.c.Evaluator.Lookback()
	if len(fast) < need || (b.c.Evaluator.UsesSlow() && len(slow) < need) {
		b.log.Debug().Int("fast", len(fast)).Int("slow", len(slow)).Int("need", need).Msg("not enough bars")
		return out
	}

	out.Signal = b.c.Evaluator.Evaluate(fast, slow)
	if out.Signal == strategies.None {
		return out
	}

	if d := b.c.Risk.Decide(rep); !d.Allowed {
		b.log.Info().Str("signal", out.Signal.String()).Str("blocked", d.String()).Msg("entry blocked")
		return out
	}

	tick, err := b.c.MarketData.Tick(ctx, b.cfg.Symbol)
	if err != nil {
		out.Err = fmt.Errorf("quote: %w", err)
		return out
	}
	rate, err := market.QuoteToAccountRate(b.inst, b.cfg.AccountCurrency, tick.Mid())
	if err != nil {
		out.Err = err
		return out
	}

	out.Volume = b.c.Sizing.Lots(rep.Balance, b.inst.PipSize(), rate)

	side := broker.Buy
	if out.Signal == strategies.Sell {
		side = broker.Sell
	}
	res, err := b.c.Executor.Open(ctx, side, tick, out.Volume)
	if err != nil {
		out.Err = err
		return out
	}
	out.Order = &res
	return out
}
