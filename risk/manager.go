// Package risk sizes entries and enforces the position limits: a cap on
// concurrent positions and a daily realized-loss halt that lifts at the next
// UTC day.
package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scalper/broker"
)

const (
	ReasonConcurrency  = "concurrency"
	ReasonDailyLoss    = "daily-loss"
	ReasonProfitTarget = "profit-target"
)

// Closer flattens one position with an opposite market order.
type Closer interface {
	Close(ctx context.Context, p broker.Position) (broker.OrderResult, error)
}

// Report is the outcome of one risk pass.
type Report struct {
	Open    []broker.Position // still open after the pass
	Closed  int
	Halted  bool
	DailyPL float64
	Balance float64
}

type Manager struct {
	symbol string
	limits Limits
	gw     broker.Gateway
	closer Closer
	log    zerolog.Logger

	halted  bool
	haltDay time.Time
}

func NewManager(symbol string, limits Limits, gw broker.Gateway, closer Closer, log zerolog.Logger) *Manager {
	return &Manager{
		symbol: symbol,
		limits: limits,
		gw:     gw,
		closer: closer,
		log:    log.With().Str("component", "risk").Logger(),
	}
}

// Halted reports whether new entries are blocked by the daily loss limit.
func (m *Manager) Halted() bool { return m.halted }

// DayStart is UTC midnight of the day containing t.
func DayStart(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// Check runs one risk pass at now: lift a halt from a previous UTC day,
// flatten when over the concurrency cap, halt and flatten on the daily loss
// limit, and take profit targets.
func (m *Manager) Check(ctx context.Context, now time.Time) (Report, error) {
	day := DayStart(now)
	if m.halted && day.After(m.haltDay) {
		m.log.Info().Time("halted_on", m.haltDay).Msg("new trading day, halt lifted")
		m.halted = false
		m.haltDay = time.Time{}
	}

	positions, err := m.gw.Positions(ctx, m.symbol)
	if err != nil {
		return Report{}, fmt.Errorf("positions: %w", err)
	}
	acct, err := m.gw.Account(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("account: %w", err)
	}

	r := Report{Balance: acct.Balance}
	open := positions

	if m.limits.MaxConcurrent > 0 && len(open) > m.limits.MaxConcurrent {
		m.log.Warn().
			Int("open", len(open)).
			Int("max", m.limits.MaxConcurrent).
			Msg("too many open positions, flattening")
		open = m.closeAll(ctx, open, ReasonConcurrency, &r)
	}

	deals, err := m.gw.ClosedDeals(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		r.Open = open
		r.Halted = m.halted
		return r, fmt.Errorf("closed deals: %w", err)
	}
	for _, d := range deals {
		r.DailyPL += d.Profit
	}

	if !m.halted && m.limits.MaxDailyLossFraction > 0 {
		limit := m.limits.MaxDailyLossFraction * acct.Balance
		if -r.DailyPL >= limit {
			m.halted = true
			m.haltDay = day
			m.log.Warn().
				Float64("daily_pl", r.DailyPL).
				Float64("limit", limit).
				Msg("daily loss limit reached, halting")
		}
	}
	if m.halted && len(open) > 0 {
		open = m.closeAll(ctx, open, ReasonDailyLoss, &r)
	}

	if m.limits.ProfitTarget > 0 {
		var keep []broker.Position
		for _, p := range open {
			if math.Abs(p.Profit) < m.limits.ProfitTarget {
				keep = append(keep, p)
				continue
			}
			if !m.close(ctx, p, ReasonProfitTarget) {
				keep = append(keep, p)
				continue
			}
			r.Closed++
		}
		open = keep
	}

	r.Open = open
	r.Halted = m.halted
	return r, nil
}

// Decide evaluates the entry rules against a report from Check.
func (m *Manager) Decide(r Report) Decision {
	return Evaluate(m.limits, r)
}

// EntryAllowed is false while halted or at the concurrency cap.
func (m *Manager) EntryAllowed(r Report) bool {
	return m.Decide(r).Allowed
}

// closeAll closes every position and returns the ones that failed to close.
func (m *Manager) closeAll(ctx context.Context, positions []broker.Position, reason string, r *Report) []broker.Position {
	var left []broker.Position
	for _, p := range positions {
		if m.close(ctx, p, reason) {
			r.Closed++
			continue
		}
		left = append(left, p)
	}
	return left
}

func (m *Manager) close(ctx context.Context, p broker.Position, reason string) bool {
	res, err := m.closer.Close(ctx, p)
	if err != nil || !res.Filled {
		m.log.Error().Err(err).
			Str("position", p.ID).
			Str("reason", reason).
			Msg("close failed")
		return false
	}
	m.log.Info().
		Str("position", p.ID).
		Str("reason", reason).
		Float64("profit", res.Profit).
		Msg("position closed")
	return true
}
