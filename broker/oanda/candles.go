package oanda

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/scalper/market"
)

// MaxCandles is the largest count one candles request may ask for.
const MaxCandles = 5000

// PriceComponent selects which side of the book the candles describe.
type PriceComponent string

const (
	MidPrice PriceComponent = "M"
	BidPrice PriceComponent = "B"
	AskPrice PriceComponent = "A"
)

type CandlesRequest struct {
	Instrument  string
	Price       PriceComponent // default MidPrice
	Granularity market.Timeframe
	Count       int       // used when > 0
	From        time.Time // optional
	To          time.Time // optional
}

type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type apiCandle struct {
	Complete bool        `json:"complete"`
	Volume   int         `json:"volume"`
	Time     time.Time   `json:"time"`
	Mid      *candleData `json:"mid,omitempty"`
	Bid      *candleData `json:"bid,omitempty"`
	Ask      *candleData `json:"ask,omitempty"`
}

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

// GetCandles fetches one page of candles. The bar that is still forming is
// dropped, so callers only ever see completed bars.
func (c *Client) GetCandles(ctx context.Context, req CandlesRequest) ([]market.Candle, error) {
	if req.Instrument == "" {
		return nil, fmt.Errorf("instrument is required")
	}
	if req.Price == "" {
		req.Price = MidPrice
	}
	if req.Granularity == "" {
		req.Granularity = market.M1
	}

	q := url.Values{}
	q.Set("price", string(req.Price))
	q.Set("granularity", string(req.Granularity))
	if req.Count > 0 {
		if req.Count > MaxCandles {
			return nil, fmt.Errorf("count cannot exceed %d", MaxCandles)
		}
		q.Set("count", strconv.Itoa(req.Count))
	}
	if !req.From.IsZero() {
		q.Set("from", req.From.UTC().Format(time.RFC3339))
	}
	if !req.To.IsZero() && req.Count == 0 {
		q.Set("to", req.To.UTC().Format(time.RFC3339))
	}

	var resp candlesResponse
	path := "/v3/instruments/" + url.PathEscape(req.Instrument) + "/candles"
	if err := c.do(ctx, "GET", path, q, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]market.Candle, 0, len(resp.Candles))
	for _, ac := range resp.Candles {
		if !ac.Complete {
			continue
		}

		var d *candleData
		switch req.Price {
		case BidPrice:
			d = ac.Bid
		case AskPrice:
			d = ac.Ask
		default:
			d = ac.Mid
		}
		if d == nil {
			return nil, fmt.Errorf("candle %s has no %s prices", ac.Time, req.Price)
		}

		cd, err := parseOHLC(*d)
		if err != nil {
			return nil, fmt.Errorf("candle %s: %w", ac.Time, err)
		}
		cd.Time = ac.Time.UTC()
		cd.Volume = float64(ac.Volume)
		out = append(out, cd)
	}
	return out, nil
}

// Candles returns the last count completed bid bars for symbol.
func (c *Client) Candles(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error) {
	if count > MaxCandles {
		count = MaxCandles
	}
	return c.GetCandles(ctx, CandlesRequest{
		Instrument:  market.NormalizeSymbol(symbol),
		Price:       BidPrice,
		Granularity: tf,
		Count:       count,
	})
}

// CandlesRange pages through [from, to) in MaxCandles chunks.
func (c *Client) CandlesRange(ctx context.Context, symbol string, tf market.Timeframe, from, to time.Time) ([]market.Candle, error) {
	if tf.Duration() <= 0 {
		return nil, fmt.Errorf("unsupported timeframe %q", tf)
	}
	if !to.After(from) {
		return nil, fmt.Errorf("empty range %s..%s", from, to)
	}

	var out []market.Candle
	cursor := from
	for cursor.Before(to) {
		page, err := c.GetCandles(ctx, CandlesRequest{
			Instrument:  market.NormalizeSymbol(symbol),
			Price:       BidPrice,
			Granularity: tf,
			Count:       MaxCandles,
			From:        cursor,
		})
		if err != nil {
			return nil, err
		}

		next, done := cursor, false
		for _, cd := range page {
			if !cd.Time.Before(to) {
				done = true
				break
			}
			if cd.Time.Before(cursor) {
				continue
			}
			out = append(out, cd)
			next = cd.Time.Add(tf.Duration())
		}
		if done || len(page) < MaxCandles || !next.After(cursor) {
			break
		}
		cursor = next
		c.log.Debug().Time("cursor", cursor).Int("bars", len(out)).Msg("candles page")
	}
	return out, nil
}

func parseOHLC(d candleData) (market.Candle, error) {
	var cd market.Candle
	var err error
	if cd.Open, err = parsePrice(d.O); err != nil {
		return cd, fmt.Errorf("open: %w", err)
	}
	if cd.High, err = parsePrice(d.H); err != nil {
		return cd, fmt.Errorf("high: %w", err)
	}
	if cd.Low, err = parsePrice(d.L); err != nil {
		return cd, fmt.Errorf("low: %w", err)
	}
	if cd.Close, err = parsePrice(d.C); err != nil {
		return cd, fmt.Errorf("close: %w", err)
	}
	return cd, nil
}

// parsePrice reads OANDA's decimal strings exactly before converting.
func parsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// formatPrice renders p at the instrument's display precision.
func formatPrice(p float64, inst market.Instrument) string {
	return decimal.NewFromFloat(p).StringFixed(int32(inst.DisplayPrecision))
}
