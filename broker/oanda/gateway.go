package oanda

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/market"
)

var _ broker.Terminal = (*Client)(nil)

type accountSummary struct {
	Account struct {
		ID       string `json:"id"`
		Currency string `json:"currency"`
		Balance  string `json:"balance"`
		NAV      string `json:"NAV"`
	} `json:"account"`
}

// Connect checks the credentials against the account summary.
func (c *Client) Connect(ctx context.Context) error {
	acct, err := c.account(ctx)
	if err != nil {
		return fmt.Errorf("oanda connect: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.currency = acct.Currency
	c.mu.Unlock()

	c.log.Info().Str("account", acct.ID).Str("currency", acct.Currency).Float64("balance", acct.Balance).Msg("connected")
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return broker.ErrNotConnected
	}
	return nil
}

func (c *Client) Account(ctx context.Context) (broker.Account, error) {
	if err := c.ready(); err != nil {
		return broker.Account{}, err
	}
	return c.account(ctx)
}

func (c *Client) account(ctx context.Context) (broker.Account, error) {
	var resp accountSummary
	if err := c.do(ctx, http.MethodGet, c.accountPath("/summary"), nil, nil, &resp); err != nil {
		return broker.Account{}, err
	}
	bal, err := parsePrice(resp.Account.Balance)
	if err != nil {
		return broker.Account{}, fmt.Errorf("balance: %w", err)
	}
	nav, err := parsePrice(resp.Account.NAV)
	if err != nil {
		nav = bal
	}
	return broker.Account{
		ID:       resp.Account.ID,
		Currency: resp.Account.Currency,
		Balance:  bal,
		Equity:   nav,
	}, nil
}

type priceBucket struct {
	Price string `json:"price"`
}

type pricingResponse struct {
	Prices []struct {
		Instrument string        `json:"instrument"`
		Time       time.Time     `json:"time"`
		Tradeable  bool          `json:"tradeable"`
		Bids       []priceBucket `json:"bids"`
		Asks       []priceBucket `json:"asks"`
	} `json:"prices"`
}

// Tick returns the current top-of-book quote for symbol.
func (c *Client) Tick(ctx context.Context, symbol string) (market.Tick, error) {
	inst := market.NormalizeSymbol(symbol)

	q := url.Values{}
	q.Set("instruments", inst)

	var resp pricingResponse
	if err := c.do(ctx, http.MethodGet, c.accountPath("/pricing"), q, nil, &resp); err != nil {
		return market.Tick{}, err
	}
	for _, p := range resp.Prices {
		if p.Instrument != inst {
			continue
		}
		if len(p.Bids) == 0 || len(p.Asks) == 0 {
			return market.Tick{}, fmt.Errorf("no quote for %s", inst)
		}
		bid, err := parsePrice(p.Bids[0].Price)
		if err != nil {
			return market.Tick{}, fmt.Errorf("bid: %w", err)
		}
		ask, err := parsePrice(p.Asks[0].Price)
		if err != nil {
			return market.Tick{}, fmt.Errorf("ask: %w", err)
		}
		return market.Tick{Instrument: inst, Time: p.Time.UTC(), Bid: bid, Ask: ask}, nil
	}
	return market.Tick{}, fmt.Errorf("no quote for %s", inst)
}

type onFill struct {
	Price       string `json:"price"`
	TimeInForce string `json:"timeInForce,omitempty"`
}

type clientExtensions struct {
	ID      string `json:"id,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Comment string `json:"comment,omitempty"`
}

type marketOrder struct {
	Type                  string            `json:"type"`
	Instrument            string            `json:"instrument"`
	Units                 string            `json:"units"`
	TimeInForce           string            `json:"timeInForce"`
	PriceBound            string            `json:"priceBound,omitempty"`
	PositionFill          string            `json:"positionFill"`
	StopLossOnFill        *onFill           `json:"stopLossOnFill,omitempty"`
	TakeProfitOnFill      *onFill           `json:"takeProfitOnFill,omitempty"`
	ClientExtensions      *clientExtensions `json:"clientExtensions,omitempty"`
	TradeClientExtensions *clientExtensions `json:"tradeClientExtensions,omitempty"`
}

type orderResponse struct {
	OrderFillTransaction *struct {
		ID          string `json:"id"`
		Price       string `json:"price"`
		Units       string `json:"units"`
		PL          string `json:"pl"`
		TradeOpened *struct {
			TradeID string `json:"tradeID"`
			Units   string `json:"units"`
		} `json:"tradeOpened"`
	} `json:"orderFillTransaction"`
	OrderCancelTransaction *struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	} `json:"orderCancelTransaction"`
	OrderRejectTransaction *struct {
		RejectReason string `json:"rejectReason"`
	} `json:"orderRejectTransaction"`
}

// units converts lots into signed OANDA units.
func (c *Client) units(side broker.Side, lots float64) string {
	u := decimal.NewFromFloat(lots).Mul(decimal.NewFromFloat(c.lotUnits)).Round(0)
	if side == broker.Sell {
		u = u.Neg()
	}
	return u.String()
}

// magicTag is how the magic number travels in clientExtensions.tag.
func magicTag(magic int) string {
	if magic == 0 {
		return ""
	}
	return strconv.Itoa(magic)
}

// SubmitOrder places an immediate-or-cancel market order. The requested
// price and deviation become the order's priceBound.
func (c *Client) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	if err := c.ready(); err != nil {
		return broker.OrderResult{}, err
	}
	inst, err := market.Lookup(req.Symbol)
	if err != nil {
		return broker.OrderResult{}, err
	}

	o := marketOrder{
		Type:         "MARKET",
		Instrument:   inst.Name,
		Units:        c.units(req.Side, req.Volume),
		TimeInForce:  "IOC",
		PositionFill: "DEFAULT",
	}
	if req.Price > 0 {
		bound := req.Price + req.Side.Sign()*float64(req.Deviation)*inst.PointSize()
		o.PriceBound = formatPrice(bound, inst)
	}
	if req.StopLoss > 0 {
		o.StopLossOnFill = &onFill{Price: formatPrice(req.StopLoss, inst), TimeInForce: "GTC"}
	}
	if req.TakeProfit > 0 {
		o.TakeProfitOnFill = &onFill{Price: formatPrice(req.TakeProfit, inst), TimeInForce: "GTC"}
	}
	if req.Magic != 0 || req.Comment != "" {
		ext := &clientExtensions{Tag: magicTag(req.Magic), Comment: req.Comment}
		o.ClientExtensions = ext
		o.TradeClientExtensions = ext
	}

	var resp orderResponse
	err = c.do(ctx, http.MethodPost, c.accountPath("/orders"), nil, map[string]any{"order": o}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return broker.OrderResult{Reason: apiErr.Message}, fmt.Errorf("%w: %s", broker.ErrRejected, apiErr.Message)
		}
		return broker.OrderResult{}, err
	}

	if resp.OrderCancelTransaction != nil {
		reason := resp.OrderCancelTransaction.Reason
		return broker.OrderResult{OrderID: resp.OrderCancelTransaction.ID, Reason: reason},
			fmt.Errorf("%w: %s", broker.ErrRejected, reason)
	}
	fill := resp.OrderFillTransaction
	if fill == nil {
		return broker.OrderResult{Reason: "no fill"}, fmt.Errorf("%w: no fill transaction", broker.ErrRejected)
	}

	price, _ := parsePrice(fill.Price)
	res := broker.OrderResult{
		OrderID: fill.ID,
		Filled:  true,
		Price:   price,
		Volume:  req.Volume,
	}
	if fill.TradeOpened != nil {
		res.PositionID = fill.TradeOpened.TradeID
	}
	return res, nil
}

// ClosePosition closes the whole trade at market. OANDA fills trade closes
// without a price bound, so the deviation is not sent.
func (c *Client) ClosePosition(ctx context.Context, req broker.CloseRequest) (broker.OrderResult, error) {
	if err := c.ready(); err != nil {
		return broker.OrderResult{}, err
	}

	var resp orderResponse
	path := c.accountPath("/trades/%s/close", url.PathEscape(req.Position.ID))
	err := c.do(ctx, http.MethodPut, path, nil, map[string]string{"units": "ALL"}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return broker.OrderResult{Reason: apiErr.Message}, fmt.Errorf("%w: %s", broker.ErrRejected, apiErr.Message)
		}
		return broker.OrderResult{}, err
	}
	if resp.OrderCancelTransaction != nil {
		return broker.OrderResult{Reason: resp.OrderCancelTransaction.Reason},
			fmt.Errorf("%w: %s", broker.ErrRejected, resp.OrderCancelTransaction.Reason)
	}
	fill := resp.OrderFillTransaction
	if fill == nil {
		return broker.OrderResult{Reason: "no fill"}, fmt.Errorf("%w: no fill transaction", broker.ErrRejected)
	}

	price, _ := parsePrice(fill.Price)
	pl, _ := parsePrice(fill.PL)
	return broker.OrderResult{
		OrderID:    fill.ID,
		PositionID: req.Position.ID,
		Filled:     true,
		Price:      price,
		Volume:     req.Position.Volume,
		Profit:     pl,
	}, nil
}

type apiTrade struct {
	ID                string           `json:"id"`
	Instrument        string           `json:"instrument"`
	Price             string           `json:"price"`
	OpenTime          time.Time        `json:"openTime"`
	State             string           `json:"state"`
	InitialUnits      string           `json:"initialUnits"`
	CurrentUnits      string           `json:"currentUnits"`
	UnrealizedPL      string           `json:"unrealizedPL"`
	RealizedPL        string           `json:"realizedPL"`
	AverageClosePrice string           `json:"averageClosePrice"`
	CloseTime         time.Time        `json:"closeTime"`
	ClientExtensions  clientExtensions `json:"clientExtensions"`
}

type tradesResponse struct {
	Trades []apiTrade `json:"trades"`
}

func (c *Client) sideAndLots(units string) (broker.Side, float64) {
	u, _ := parsePrice(units)
	side := broker.Buy
	if u < 0 {
		side = broker.Sell
	}
	return side, math.Abs(u) / c.lotUnits
}

// Positions lists open trades on symbol, oldest first.
func (c *Client) Positions(ctx context.Context, symbol string) ([]broker.Position, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	inst := market.NormalizeSymbol(symbol)

	var resp tradesResponse
	if err := c.do(ctx, http.MethodGet, c.accountPath("/openTrades"), nil, nil, &resp); err != nil {
		return nil, err
	}

	var out []broker.Position
	for _, t := range resp.Trades {
		if t.Instrument != inst {
			continue
		}
		side, lots := c.sideAndLots(t.CurrentUnits)
		open, _ := parsePrice(t.Price)
		upl, _ := parsePrice(t.UnrealizedPL)
		magic, _ := strconv.Atoi(t.ClientExtensions.Tag)
		out = append(out, broker.Position{
			ID:        t.ID,
			Symbol:    symbol,
			Side:      side,
			Volume:    lots,
			OpenPrice: open,
			Profit:    upl,
			OpenTime:  t.OpenTime.UTC(),
			Magic:     magic,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out, nil
}

// closedPageSize is how many closed trades are requested per page.
const closedPageSize = 500

// closedLookback bounds how long before from a trade may have been opened
// and still close inside the window.
const closedLookback = 7 * 24 * time.Hour

// ClosedDeals returns trades closed within [from, to). Trades come back in
// trade-ID (open) order, so paging continues until a trade opened more than
// closedLookback before from.
func (c *Client) ClosedDeals(ctx context.Context, from, to time.Time) ([]broker.Deal, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	horizon := from.Add(-closedLookback)
	var out []broker.Deal
	beforeID := ""
	for {
		q := url.Values{}
		q.Set("state", "CLOSED")
		q.Set("count", strconv.Itoa(closedPageSize))
		if beforeID != "" {
			q.Set("beforeID", beforeID)
		}

		var resp tradesResponse
		if err := c.do(ctx, http.MethodGet, c.accountPath("/trades"), q, nil, &resp); err != nil {
			return nil, err
		}

		done := false
		for _, t := range resp.Trades {
			if t.OpenTime.Before(horizon) {
				done = true
			}
			ct := t.CloseTime.UTC()
			if ct.Before(from) || !ct.Before(to) {
				continue
			}
			side, lots := c.sideAndLots(t.InitialUnits)
			open, _ := parsePrice(t.Price)
			closePrice, _ := parsePrice(t.AverageClosePrice)
			pl, _ := parsePrice(t.RealizedPL)
			out = append(out, broker.Deal{
				ID:         t.ID,
				PositionID: t.ID,
				Symbol:     t.Instrument,
				Side:       side,
				Volume:     lots,
				OpenPrice:  open,
				ClosePrice: closePrice,
				Profit:     pl,
				OpenTime:   t.OpenTime.UTC(),
				CloseTime:  ct,
				Reason:     t.ClientExtensions.Comment,
			})
		}

		if done || len(resp.Trades) < closedPageSize {
			break
		}
		beforeID = resp.Trades[len(resp.Trades)-1].ID
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CloseTime.Before(out[j].CloseTime) })
	return out, nil
}
