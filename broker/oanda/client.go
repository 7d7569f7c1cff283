// Package oanda speaks the OANDA v20 REST API and implements the broker
// market data and gateway interfaces on top of it.
package oanda

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	PracticeURL = "https://api-fxpractice.oanda.com"
	LiveURL     = "https://api-fxtrade.oanda.com"
)

// BaseURL maps an environment name onto its REST host.
func BaseURL(env string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "practice", "demo", "":
		return PracticeURL, nil
	case "live":
		return LiveURL, nil
	default:
		return "", fmt.Errorf("unknown OANDA env %q (want practice|live)", env)
	}
}

type Config struct {
	Environment string
	BaseURL     string // overrides Environment when set
	AccountID   string
	Token       string
	Timeout     time.Duration
	LotUnits    float64
}

// APIError is a non-2xx response. OANDA puts a human readable reason in
// errorMessage and, for order endpoints, a reject transaction in the body.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("oanda http %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	accountID  string
	token      string
	lotUnits   float64
	httpClient *http.Client
	log        zerolog.Logger

	mu        sync.Mutex
	connected bool
	currency  string
}

func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		var err error
		if base, err = BaseURL(cfg.Environment); err != nil {
			return nil, err
		}
	}
	if cfg.Token == "" {
		return nil, errors.New("oanda: missing token")
	}
	if cfg.AccountID == "" {
		return nil, errors.New("oanda: missing account id")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.LotUnits <= 0 {
		cfg.LotUnits = 100_000
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		accountID:  cfg.AccountID,
		token:      cfg.Token,
		lotUnits:   cfg.LotUnits,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With().Str("component", "oanda").Logger(),
	}, nil
}

func (c *Client) accountPath(format string, args ...any) string {
	return "/v3/accounts/" + url.PathEscape(c.accountID) + fmt.Sprintf(format, args...)
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept-Datetime-Format", "RFC3339")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			ErrorMessage string `json:"errorMessage"`
		}
		_ = json.Unmarshal(data, &e)
		msg := e.ErrorMessage
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Body: data}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
