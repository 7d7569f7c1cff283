// Package sim is an in-process paper broker. It fills market orders at the
// current bid/ask, triggers stops and targets from bar ranges and writes
// every closed position to a journal.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/internal/id"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/market"
)

var (
	ErrPositionNotFound = errors.New("position not found")
	ErrNoPrice          = errors.New("no price")
)

const (
	ReasonStopLoss    = "StopLoss"
	ReasonTakeProfit  = "TakeProfit"
	ReasonEndOfReplay = "EndOfReplay"
)

type Config struct {
	AccountID  string
	Currency   string
	Balance    float64
	SpreadPips float64
	LotUnits   float64
}

type Engine struct {
	mu        sync.Mutex
	cfg       Config
	acct      broker.Account
	ticks     map[string]market.Tick
	positions map[string]*position
	journal   journal.Journal
	lastSnap  *journal.EquitySnapshot
	connected bool
	log       zerolog.Logger
}

var _ broker.Gateway = (*Engine)(nil)

func NewEngine(cfg Config, j journal.Journal, log zerolog.Logger) *Engine {
	if cfg.LotUnits <= 0 {
		cfg.LotUnits = 100_000
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.AccountID == "" {
		cfg.AccountID = "sim"
	}
	return &Engine{
		cfg: cfg,
		acct: broker.Account{
			ID:       cfg.AccountID,
			Currency: cfg.Currency,
			Balance:  cfg.Balance,
			Equity:   cfg.Balance,
		},
		ticks:     make(map[string]market.Tick),
		positions: make(map[string]*position),
		journal:   j,
		log:       log.With().Str("component", "sim").Logger(),
	}
}

func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = true
	return nil
}

// Close releases the session. The journal stays open so results can still be
// read after the loop exits.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = false
	return nil
}

// Tick returns the last quote seen for symbol.
func (e *Engine) Tick(ctx context.Context, symbol string) (market.Tick, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.ticks[market.NormalizeSymbol(symbol)]
	if !ok {
		return market.Tick{}, fmt.Errorf("%w for %s", ErrNoPrice, symbol)
	}
	return t, nil
}

// Spread is the configured full spread for inst in price units.
func (e *Engine) Spread(inst market.Instrument) float64 {
	return e.cfg.SpreadPips * inst.PipSize()
}

// UpdateTick installs a new quote, closes positions whose stop or target the
// quote crossed, revalues the account and records an equity snapshot when
// balance or equity moved.
func (e *Engine) UpdateTick(t market.Tick) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t.Instrument = market.NormalizeSymbol(t.Instrument)
	e.ticks[t.Instrument] = t

	for _, p := range e.sortedLocked(t.Instrument) {
		m := p.mark(t)
		stop, target := p.triggers(m, m)
		switch {
		case stop:
			if err := e.closeLocked(p, p.StopLoss, t.Time, ReasonStopLoss); err != nil {
				return err
			}
		case target:
			if err := e.closeLocked(p, p.TakeProfit, t.Time, ReasonTakeProfit); err != nil {
				return err
			}
		}
	}
	return e.snapshotLocked(t.Time)
}

// ProcessBar walks one completed bar (bid prices) for symbol. Stops and
// targets are checked against the bar's range, the stop first when both were
// touched, then the quote moves to the bar close.
func (e *Engine) ProcessBar(symbol string, bar market.Candle, closeTime time.Time) error {
	inst, err := market.Lookup(symbol)
	if err != nil {
		return err
	}
	spread := e.Spread(inst)

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range e.sortedLocked(inst.Name) {
		high, low := bar.High, bar.Low
		if p.Side == broker.Sell {
			high += spread
			low += spread
		}
		stop, target := p.triggers(high, low)
		switch {
		case stop:
			if err := e.closeLocked(p, p.StopLoss, closeTime, ReasonStopLoss); err != nil {
				return err
			}
		case target:
			if err := e.closeLocked(p, p.TakeProfit, closeTime, ReasonTakeProfit); err != nil {
				return err
			}
		}
	}

	e.ticks[inst.Name] = market.Tick{
		Instrument: inst.Name,
		Time:       closeTime,
		Bid:        bar.Close,
		Ask:        bar.Close + spread,
	}
	return e.snapshotLocked(closeTime)
}

func (e *Engine) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return broker.OrderResult{}, broker.ErrNotConnected
	}
	if req.Volume <= 0 {
		return broker.OrderResult{Reason: "invalid volume"}, fmt.Errorf("%w: volume %.2f", broker.ErrRejected, req.Volume)
	}

	inst, err := market.Lookup(req.Symbol)
	if err != nil {
		return broker.OrderResult{}, err
	}
	t, ok := e.ticks[inst.Name]
	if !ok {
		return broker.OrderResult{Reason: "no price"}, fmt.Errorf("%w: %w for %s", broker.ErrRejected, ErrNoPrice, req.Symbol)
	}

	fill := t.Ask
	if req.Side == broker.Sell {
		fill = t.Bid
	}
	if !withinDeviation(req.Price, fill, req.Deviation, inst) {
		return broker.OrderResult{Reason: "requote", Price: fill}, fmt.Errorf("%w: requote %.5f vs %.5f", broker.ErrRejected, fill, req.Price)
	}

	openTime := t.Time
	if openTime.IsZero() {
		openTime = time.Now().UTC()
	}

	p := &position{
		ID:         id.At(openTime),
		Symbol:     req.Symbol,
		Instrument: inst,
		Side:       req.Side,
		Volume:     req.Volume,
		OpenPrice:  fill,
		OpenTime:   openTime,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Magic:      req.Magic,
		Comment:    req.Comment,
	}
	e.positions[p.ID] = p

	e.log.Debug().
		Str("position", p.ID).
		Str("side", p.Side.String()).
		Float64("volume", p.Volume).
		Float64("price", fill).
		Msg("opened")

	return broker.OrderResult{
		OrderID:    p.ID,
		PositionID: p.ID,
		Filled:     true,
		Price:      fill,
		Volume:     p.Volume,
	}, nil
}

func (e *Engine) ClosePosition(ctx context.Context, req broker.CloseRequest) (broker.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return broker.OrderResult{}, broker.ErrNotConnected
	}

	p, ok := e.positions[req.Position.ID]
	if !ok {
		return broker.OrderResult{}, fmt.Errorf("close %q: %w", req.Position.ID, ErrPositionNotFound)
	}
	t, ok := e.ticks[p.Instrument.Name]
	if !ok {
		return broker.OrderResult{}, fmt.Errorf("close %q: %w for %s", p.ID, ErrNoPrice, p.Symbol)
	}

	fill := p.mark(t)
	if !withinDeviation(req.Price, fill, req.Deviation, p.Instrument) {
		return broker.OrderResult{Reason: "requote", Price: fill}, fmt.Errorf("%w: requote %.5f vs %.5f", broker.ErrRejected, fill, req.Price)
	}

	reason := req.Comment
	if reason == "" {
		reason = "Close"
	}
	closeTime := t.Time
	if closeTime.IsZero() {
		closeTime = time.Now().UTC()
	}

	profit, err := e.profitLocked(p, fill, t)
	if err != nil {
		return broker.OrderResult{}, err
	}
	if err := e.closeLocked(p, fill, closeTime, reason); err != nil {
		return broker.OrderResult{}, err
	}
	if err := e.snapshotLocked(closeTime); err != nil {
		return broker.OrderResult{}, err
	}

	return broker.OrderResult{
		OrderID:    id.At(closeTime),
		PositionID: p.ID,
		Filled:     true,
		Price:      fill,
		Volume:     p.Volume,
		Profit:     profit,
	}, nil
}

// CloseAll closes every open position at the current quotes.
func (e *Engine) CloseAll(ctx context.Context, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var last time.Time
	for _, p := range e.sortedLocked("") {
		t, ok := e.ticks[p.Instrument.Name]
		if !ok {
			return fmt.Errorf("close all: %w for %s", ErrNoPrice, p.Symbol)
		}
		if err := e.closeLocked(p, p.mark(t), t.Time, reason); err != nil {
			return err
		}
		if t.Time.After(last) {
			last = t.Time
		}
	}
	if last.IsZero() {
		return nil
	}
	return e.snapshotLocked(last)
}

// Positions lists open positions for symbol, oldest first, with profit
// marked to the current quote.
func (e *Engine) Positions(ctx context.Context, symbol string) ([]broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return nil, broker.ErrNotConnected
	}

	var out []broker.Position
	for _, p := range e.sortedLocked(market.NormalizeSymbol(symbol)) {
		var profit float64
		if t, ok := e.ticks[p.Instrument.Name]; ok {
			pl, err := e.profitLocked(p, p.mark(t), t)
			if err != nil {
				return nil, err
			}
			profit = pl
		}
		out = append(out, p.view(profit))
	}
	return out, nil
}

func (e *Engine) Account(ctx context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return broker.Account{}, broker.ErrNotConnected
	}
	return e.acct, nil
}

// ClosedDeals reads the journal for deals closed within [from, to).
func (e *Engine) ClosedDeals(ctx context.Context, from, to time.Time) ([]broker.Deal, error) {
	return e.journal.DealsClosedBetween(from, to)
}

func (e *Engine) profitLocked(p *position, price float64, t market.Tick) (float64, error) {
	rate, err := market.QuoteToAccountRate(p.Instrument, e.acct.Currency, t.Mid())
	if err != nil {
		return 0, err
	}
	return PL(p.Side, p.Volume, e.cfg.LotUnits, p.OpenPrice, price, rate), nil
}

func (e *Engine) closeLocked(p *position, price float64, at time.Time, reason string) error {
	t := e.ticks[p.Instrument.Name]
	if t.Bid == 0 {
		t = market.Tick{Bid: price, Ask: price}
	}
	profit, err := e.profitLocked(p, price, t)
	if err != nil {
		return err
	}

	delete(e.positions, p.ID)
	e.acct.Balance += profit

	e.log.Debug().
		Str("position", p.ID).
		Str("reason", reason).
		Float64("price", price).
		Float64("profit", profit).
		Msg("closed")

	return e.journal.RecordDeal(broker.Deal{
		ID:         id.At(at),
		PositionID: p.ID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		Volume:     p.Volume,
		OpenPrice:  p.OpenPrice,
		ClosePrice: price,
		Profit:     profit,
		OpenTime:   p.OpenTime,
		CloseTime:  at,
		Reason:     reason,
	})
}

func (e *Engine) snapshotLocked(at time.Time) error {
	equity := e.acct.Balance
	for _, p := range e.positions {
		t, ok := e.ticks[p.Instrument.Name]
		if !ok {
			continue
		}
		pl, err := e.profitLocked(p, p.mark(t), t)
		if err != nil {
			return err
		}
		equity += pl
	}
	e.acct.Equity = equity

	// An unchanged point adds nothing to the curve.
	if e.lastSnap != nil && e.lastSnap.Balance == e.acct.Balance && e.lastSnap.Equity == e.acct.Equity {
		return nil
	}
	snap := journal.EquitySnapshot{
		Time:    at,
		Balance: e.acct.Balance,
		Equity:  e.acct.Equity,
	}
	if err := e.journal.RecordEquity(snap); err != nil {
		return err
	}
	e.lastSnap = &snap
	return nil
}

// sortedLocked returns open positions on instrument (all when empty) by open time.
func (e *Engine) sortedLocked(instrument string) []*position {
	out := make([]*position, 0, len(e.positions))
	for _, p := range e.positions {
		if instrument == "" || p.Instrument.Name == instrument {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenTime.Equal(out[j].OpenTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenTime.Before(out[j].OpenTime)
	})
	return out
}

// withinDeviation reports whether fill is no more than deviation points from
// the requested price. A zero requested price accepts any fill.
func withinDeviation(requested, fill float64, deviation int, inst market.Instrument) bool {
	if requested == 0 {
		return true
	}
	allowed := float64(deviation) * inst.PointSize()
	return math.Abs(fill-requested) <= allowed+1e-12
}
