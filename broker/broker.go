// Package broker defines the market data and order gateway collaborators the
// bot talks to, plus the value types that cross that boundary.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/scalper/market"
)

var (
	// ErrRejected marks an order the gateway refused or could not fill.
	ErrRejected = errors.New("order rejected")

	// ErrNotConnected is returned by gateways used before Connect.
	ErrNotConnected = errors.New("gateway not connected")
)

type Side int

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite is the side that closes a position opened on s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Sign is +1 for Buy and -1 for Sell.
func (s Side) Sign() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

type Account struct {
	ID       string
	Currency string
	Balance  float64
	Equity   float64
}

// Position is an open trade owned by the gateway. Volume is in lots.
type Position struct {
	ID        string
	Symbol    string
	Side      Side
	Volume    float64
	OpenPrice float64
	Profit    float64
	OpenTime  time.Time
	Magic     int
}

// Deal is a closed position with its realized profit in account currency.
type Deal struct {
	ID         string
	PositionID string
	Symbol     string
	Side       Side
	Volume     float64
	OpenPrice  float64
	ClosePrice float64
	Profit     float64
	OpenTime   time.Time
	CloseTime  time.Time
	Reason     string
}

// OrderRequest is an immediate-or-cancel market order. Zero StopLoss or
// TakeProfit means none.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Volume     float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Deviation  int // points
	Magic      int
	Comment    string
}

// CloseRequest flattens one position with an opposite market order.
type CloseRequest struct {
	Position  Position
	Side      Side
	Price     float64
	Deviation int
	Magic     int
	Comment   string
}

type OrderResult struct {
	OrderID    string
	PositionID string
	Filled     bool
	Price      float64
	Volume     float64
	Profit     float64
	Reason     string
}

// MarketData supplies bars and quotes.
type MarketData interface {
	Candles(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error)
	Tick(ctx context.Context, symbol string) (market.Tick, error)
}

// Gateway submits and closes orders and reports account state. Connect is
// called once before the loop starts and Close on every exit path.
type Gateway interface {
	Connect(ctx context.Context) error
	Close() error

	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ClosePosition(ctx context.Context, req CloseRequest) (OrderResult, error)
	Positions(ctx context.Context, symbol string) ([]Position, error)
	Account(ctx context.Context) (Account, error)
	ClosedDeals(ctx context.Context, from, to time.Time) ([]Deal, error)
}

// Terminal is a broker connection that provides both halves.
type Terminal interface {
	MarketData
	Gateway
}
