package risk

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/internal/brokertest"
)

func TestLotSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		slPips  float64
		risk    float64
		balance float64
		want    float64
	}{
		// 100 risked over 5 pips at $10 per pip per lot
		{"five pip stop", 5, 0.01, 10_000, 2.0},
		{"rounds to two places", 7, 0.01, 10_000, 1.43},
		{"clamped to min lot", 20, 0.01, 50, 0.01},
		{"zero stop yields min lot", 0, 0.01, 10_000, 0.01},
		{"negative stop yields min lot", -5, 0.01, 10_000, 0.01},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := LotSize(tt.slPips, tt.risk, tt.balance, 0.0001, 100_000, 0.01, 2)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestLotSizeMonotonic(t *testing.T) {
	t.Parallel()

	prev := 0.0
	for balance := 100.0; balance <= 100_000; balance *= 1.37 {
		got := LotSize(5, 0.01, balance, 0.0001, 100_000, 0.01, 2)
		assert.GreaterOrEqual(t, got, prev, "balance %.2f", balance)
		assert.GreaterOrEqual(t, got, 0.01)
		prev = got
	}

	prev = 1e9
	for sl := 1.0; sl <= 200; sl += 3 {
		got := LotSize(sl, 0.01, 10_000, 0.0001, 100_000, 0.01, 2)
		assert.LessOrEqual(t, got, prev, "stop %.0f", sl)
		assert.GreaterOrEqual(t, got, 0.01)
		prev = got
	}
}

func TestSizingLots(t *testing.T) {
	t.Parallel()

	s := Sizing{RiskFraction: 0.01, StopLossPips: 5, PipValuePerLot: 100_000, MinLot: 0.01, Precision: 2}
	assert.InDelta(t, 2.0, s.Lots(10_000, 0.0001, 1), 1e-12)

	// USD_JPY: a 0.01 yen pip is worth 1/150 USD per unit
	assert.InDelta(t, 3.0, s.Lots(10_000, 0.01, 1.0/150), 1e-12)

	s.FixedLot = 0.1
	assert.InDelta(t, 0.1, s.Lots(10_000, 0.0001, 1), 1e-12)
}

func TestPlannedRiskAndRR(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100.0, PlannedRisk(2, 100_000, 1.1000, 1.0995, 1), 1e-6)
	assert.InDelta(t, 2.0, RR(1.1000, 1.0995, 1.1010), 1e-9)
	assert.Zero(t, RR(1.1, 1.1, 1.2))
}

// fakeGateway keeps a small book; its closer removes positions from it.
type fakeGateway struct {
	positions []broker.Position
	deals     []broker.Deal
	balance   float64
	closed    []string
	failClose map[string]bool
}

func (g *fakeGateway) Connect(ctx context.Context) error { return nil }
func (g *fakeGateway) Close() error                      { return nil }

func (g *fakeGateway) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	return broker.OrderResult{}, errors.New("not used")
}

func (g *fakeGateway) ClosePosition(ctx context.Context, req broker.CloseRequest) (broker.OrderResult, error) {
	return g.closePosition(ctx, req.Position)
}

func (g *fakeGateway) Positions(ctx context.Context, symbol string) ([]broker.Position, error) {
	return append([]broker.Position(nil), g.positions...), nil
}

func (g *fakeGateway) Account(ctx context.Context) (broker.Account, error) {
	return broker.Account{Currency: "USD", Balance: g.balance, Equity: g.balance}, nil
}

func (g *fakeGateway) ClosedDeals(ctx context.Context, from, to time.Time) ([]broker.Deal, error) {
	var out []broker.Deal
	for _, d := range g.deals {
		if !d.CloseTime.Before(from) && d.CloseTime.Before(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

type closerFunc func(ctx context.Context, p broker.Position) (broker.OrderResult, error)

func (f closerFunc) Close(ctx context.Context, p broker.Position) (broker.OrderResult, error) {
	return f(ctx, p)
}

func (g *fakeGateway) closePosition(ctx context.Context, p broker.Position) (broker.OrderResult, error) {
	if g.failClose[p.ID] {
		return broker.OrderResult{}, broker.ErrRejected
	}
	for i, q := range g.positions {
		if q.ID == p.ID {
			g.positions = append(g.positions[:i], g.positions[i+1:]...)
			break
		}
	}
	g.closed = append(g.closed, p.ID)
	return broker.OrderResult{Filled: true, PositionID: p.ID, Profit: p.Profit}, nil
}

func openPositions(n int) []broker.Position {
	out := make([]broker.Position, n)
	for i := range out {
		out[i] = broker.Position{ID: fmt.Sprintf("P%d", i+1), Symbol: "EURUSD", Side: broker.Buy, Volume: 0.1}
	}
	return out
}

func newTestManager(g *fakeGateway, l Limits) *Manager {
	return NewManager("EURUSD", l, g, closerFunc(g.closePosition), zerolog.Nop())
}

func TestCheckFlattensAboveCap(t *testing.T) {
	t.Parallel()

	g := &fakeGateway{positions: openPositions(4), balance: 10_000}
	m := newTestManager(g, Limits{MaxConcurrent: 3, MaxDailyLossFraction: 0.02})

	r, err := m.Check(context.Background(), time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, []string{"P1", "P2", "P3", "P4"}, g.closed)
	assert.Equal(t, 4, r.Closed)
	assert.Empty(t, r.Open)
	assert.False(t, r.Halted)
	assert.True(t, m.EntryAllowed(r))
}

func TestCheckAtCapBlocksEntries(t *testing.T) {
	t.Parallel()

	g := &fakeGateway{positions: openPositions(3), balance: 10_000}
	m := newTestManager(g, Limits{MaxConcurrent: 3})

	r, err := m.Check(context.Background(), time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Empty(t, g.closed)
	assert.Len(t, r.Open, 3)
	assert.False(t, m.EntryAllowed(r))

	d := Evaluate(Limits{MaxConcurrent: 3}, r)
	require.Len(t, d.Violations, 1)
	assert.Equal(t, "TOO_MANY_OPEN_POSITIONS", d.Violations[0].Code)
}

func TestCheckDailyLossHaltsAndResetsNextDay(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	g := &fakeGateway{
		positions: openPositions(2),
		balance:   10_000,
		deals: []broker.Deal{
			{ID: "yesterday", Profit: -900, CloseTime: day.Add(-time.Hour)},
			{ID: "D1", Profit: -150, CloseTime: day.Add(8 * time.Hour)},
			{ID: "D2", Profit: -60, CloseTime: day.Add(9 * time.Hour)},
			{ID: "D3", Profit: 5, CloseTime: day.Add(9*time.Hour + 30*time.Minute)},
		},
	}
	m := newTestManager(g, Limits{MaxConcurrent: 3, MaxDailyLossFraction: 0.02})
	ctx := context.Background()

	// -205 today against a 200 limit
	r, err := m.Check(ctx, day.Add(10*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, -205.0, r.DailyPL, 1e-9)
	assert.True(t, r.Halted)
	assert.True(t, m.Halted())
	assert.Equal(t, []string{"P1", "P2"}, g.closed)
	assert.Empty(t, r.Open)
	assert.False(t, m.EntryAllowed(r))

	// a position that appears while halted is closed on the next pass
	g.positions = []broker.Position{{ID: "late", Symbol: "EURUSD"}}
	r, err = m.Check(ctx, day.Add(11*time.Hour))
	require.NoError(t, err)
	assert.True(t, r.Halted)
	assert.Contains(t, g.closed, "late")

	// still the same UTC day
	r, err = m.Check(ctx, day.Add(23*time.Hour+59*time.Minute))
	require.NoError(t, err)
	assert.True(t, r.Halted)

	// next UTC day: yesterday's losses no longer count
	r, err = m.Check(ctx, day.Add(24*time.Hour+time.Minute))
	require.NoError(t, err)
	assert.False(t, r.Halted)
	assert.False(t, m.Halted())
	assert.Zero(t, r.DailyPL)
	assert.True(t, m.EntryAllowed(r))
}

func TestCheckLossBelowLimit(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	g := &fakeGateway{
		positions: openPositions(1),
		balance:   10_000,
		deals:     []broker.Deal{{ID: "D1", Profit: -199.99, CloseTime: day.Add(time.Hour)}},
	}
	m := newTestManager(g, Limits{MaxConcurrent: 3, MaxDailyLossFraction: 0.02})

	r, err := m.Check(context.Background(), day.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, r.Halted)
	assert.Empty(t, g.closed)
	assert.True(t, m.EntryAllowed(r))
}

func TestCheckProfitTarget(t *testing.T) {
	t.Parallel()

	g := &fakeGateway{
		balance: 10_000,
		positions: []broker.Position{
			{ID: "win", Profit: 0.6},
			{ID: "flat", Profit: 0.1},
			{ID: "loss", Profit: -0.5},
		},
	}
	m := newTestManager(g, Limits{MaxConcurrent: 5, ProfitTarget: 0.5})

	r, err := m.Check(context.Background(), time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"win", "loss"}, g.closed)
	require.Len(t, r.Open, 1)
	assert.Equal(t, "flat", r.Open[0].ID)
}

func TestCheckKeepsPositionsThatFailToClose(t *testing.T) {
	t.Parallel()

	g := &fakeGateway{
		positions: openPositions(3),
		balance:   10_000,
		failClose: map[string]bool{"P2": true},
	}
	m := newTestManager(g, Limits{MaxConcurrent: 2})

	r, err := m.Check(context.Background(), time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Closed)
	require.Len(t, r.Open, 1)
	assert.Equal(t, "P2", r.Open[0].ID)
}

func TestCheckQueriesUTCDay(t *testing.T) {
	t.Parallel()

	gw := &brokertest.Terminal{}
	est := time.FixedZone("EST", -5*3600)
	// 21:30 EST on the 3rd is 02:30 UTC on the 4th
	now := time.Date(2024, 6, 3, 21, 30, 0, 0, est)
	dayStart := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)

	gw.On("Positions", mock.Anything, "EURUSD").Return([]broker.Position(nil), nil)
	gw.On("Account", mock.Anything).Return(broker.Account{Balance: 1000}, nil)
	gw.On("ClosedDeals", mock.Anything, dayStart, dayStart.Add(24*time.Hour)).Return([]broker.Deal(nil), nil)

	m := NewManager("EURUSD", Limits{MaxConcurrent: 1, MaxDailyLossFraction: 0.05}, gw, closerFunc((&fakeGateway{}).closePosition), zerolog.Nop())
	_, err := m.Check(context.Background(), now)
	require.NoError(t, err)
	gw.AssertExpectations(t)
}

func TestCheckFetchErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	gw := &brokertest.Terminal{}
	gw.On("Positions", mock.Anything, "EURUSD").Return([]broker.Position(nil), boom)
	m := NewManager("EURUSD", Limits{}, gw, closerFunc((&fakeGateway{}).closePosition), zerolog.Nop())

	_, err := m.Check(context.Background(), time.Now())
	assert.ErrorIs(t, err, boom)
}
