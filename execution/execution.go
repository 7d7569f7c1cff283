// Package execution turns trading decisions into broker orders: bracketed
// entries at the current quote and opposite-side closes.
package execution

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/risk"
)

type Config struct {
	Symbol          string
	Magic           int
	CommentPrefix   string
	DeviationPoints int
	StopLossPips    float64 // 0 sends no stop
	TakeProfitPips  float64 // 0 sends no target
	LotUnits        float64
	AccountCurrency string
}

// Comment tags an order so positions opened by the bot can be recognised.
func (c Config) Comment(action string) string {
	if c.CommentPrefix == "" {
		return action
	}
	return c.CommentPrefix + "-" + action
}

// BuildEntry prices a market order off tick: a buy fills at the ask with the
// stop below and the target above, a sell fills at the bid with both mirrored.
func BuildEntry(cfg Config, inst market.Instrument, side broker.Side, tick market.Tick, volume float64) broker.OrderRequest {
	price := tick.Ask
	if side == broker.Sell {
		price = tick.Bid
	}

	pip := inst.PipSize()
	req := broker.OrderRequest{
		Symbol:    cfg.Symbol,
		Side:      side,
		Volume:    volume,
		Price:     price,
		Deviation: cfg.DeviationPoints,
		Magic:     cfg.Magic,
		Comment:   cfg.Comment(side.String()),
	}
	if cfg.StopLossPips > 0 {
		req.StopLoss = price - side.Sign()*cfg.StopLossPips*pip
	}
	if cfg.TakeProfitPips > 0 {
		req.TakeProfit = price + side.Sign()*cfg.TakeProfitPips*pip
	}
	return req
}

// BuildClose flattens p at the opposing quote: the bid closes a long, the
// ask closes a short.
func BuildClose(cfg Config, p broker.Position, tick market.Tick) broker.CloseRequest {
	price := tick.Bid
	if p.Side == broker.Sell {
		price = tick.Ask
	}
	return broker.CloseRequest{
		Position:  p,
		Side:      p.Side.Opposite(),
		Price:     price,
		Deviation: cfg.DeviationPoints,
		Magic:     cfg.Magic,
		Comment:   cfg.Comment("CLOSE"),
	}
}

// Executor submits entries and closes. Rejections are logged and returned,
// never retried.
type Executor struct {
	cfg  Config
	inst market.Instrument
	md   broker.MarketData
	gw   broker.Gateway
	log  zerolog.Logger
}

func New(cfg Config, md broker.MarketData, gw broker.Gateway, log zerolog.Logger) (*Executor, error) {
	inst, err := market.Lookup(cfg.Symbol)
	if err != nil {
		return nil, err
	}
	if cfg.LotUnits <= 0 {
		cfg.LotUnits = 100_000
	}
	return &Executor{
		cfg:  cfg,
		inst: inst,
		md:   md,
		gw:   gw,
		log:  log.With().Str("component", "execution").Str("symbol", cfg.Symbol).Logger(),
	}, nil
}

func (x *Executor) Instrument() market.Instrument { return x.inst }

// Open submits a bracketed market order for volume lots priced off tick.
func (x *Executor) Open(ctx context.Context, side broker.Side, tick market.Tick, volume float64) (broker.OrderResult, error) {
	req := BuildEntry(x.cfg, x.inst, side, tick, volume)

	ev := x.log.Info().
		Str("side", side.String()).
		Float64("volume", req.Volume).
		Float64("price", req.Price).
		Float64("sl", req.StopLoss).
		Float64("tp", req.TakeProfit)
	if req.StopLoss > 0 {
		if rate, err := market.QuoteToAccountRate(x.inst, x.cfg.AccountCurrency, tick.Mid()); err == nil {
			ev = ev.Float64("risk", risk.PlannedRisk(req.Volume, x.cfg.LotUnits, req.Price, req.StopLoss, rate))
		}
		if req.TakeProfit > 0 {
			ev = ev.Float64("rr", risk.RR(req.Price, req.StopLoss, req.TakeProfit))
		}
	}
	ev.Msg("submitting entry")

	res, err := x.gw.SubmitOrder(ctx, req)
	if err == nil && !res.Filled {
		err = fmt.Errorf("%w: %s", broker.ErrRejected, res.Reason)
	}
	if err != nil {
		x.log.Warn().Err(err).Str("side", side.String()).Msg("entry rejected")
		return res, err
	}

	x.log.Info().
		Str("position", res.PositionID).
		Float64("fill", res.Price).
		Msg("entry filled")
	return res, nil
}

// Close flattens p at the current quote.
func (x *Executor) Close(ctx context.Context, p broker.Position) (broker.OrderResult, error) {
	tick, err := x.md.Tick(ctx, x.cfg.Symbol)
	if err != nil {
		return broker.OrderResult{}, fmt.Errorf("quote for close: %w", err)
	}

	res, err := x.gw.ClosePosition(ctx, BuildClose(x.cfg, p, tick))
	if err == nil && !res.Filled {
		err = fmt.Errorf("%w: %s", broker.ErrRejected, res.Reason)
	}
	if err != nil {
		x.log.Warn().Err(err).Str("position", p.ID).Msg("close rejected")
		return res, err
	}
	return res, nil
}
