// Package brokertest provides a testify mock of a broker terminal.
package brokertest

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/market"
)

type Terminal struct {
	mock.Mock
}

var _ broker.Terminal = (*Terminal)(nil)

func (m *Terminal) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *Terminal) Close() error {
	return m.Called().Error(0)
}

func (m *Terminal) Candles(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error) {
	args := m.Called(ctx, symbol, tf, count)
	bars, _ := args.Get(0).([]market.Candle)
	return bars, args.Error(1)
}

func (m *Terminal) Tick(ctx context.Context, symbol string) (market.Tick, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(market.Tick), args.Error(1)
}

func (m *Terminal) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(broker.OrderResult), args.Error(1)
}

func (m *Terminal) ClosePosition(ctx context.Context, req broker.CloseRequest) (broker.OrderResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(broker.OrderResult), args.Error(1)
}

func (m *Terminal) Positions(ctx context.Context, symbol string) ([]broker.Position, error) {
	args := m.Called(ctx, symbol)
	pos, _ := args.Get(0).([]broker.Position)
	return pos, args.Error(1)
}

func (m *Terminal) Account(ctx context.Context) (broker.Account, error) {
	args := m.Called(ctx)
	return args.Get(0).(broker.Account), args.Error(1)
}

func (m *Terminal) ClosedDeals(ctx context.Context, from, to time.Time) ([]broker.Deal, error) {
	args := m.Called(ctx, from, to)
	deals, _ := args.Get(0).([]broker.Deal)
	return deals, args.Error(1)
}
