// Package brokerclient is a minimal HTTP adapter satisfying the
// auth/account/market/execution/health interface contracts. The
// brokerage HTTP/API client is explicitly out of scope for the trading
// and risk engine (spec.md §1): this package exists only so the engine
// has something concrete to call through those interfaces at
// composition time; it intentionally does not encode any particular
// brokerage's quirks, unlike the teacher's Tradier-specific
// internal/broker package which it replaces.
package brokerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
	"github.com/ridgecrest/sentrytrader/internal/retryx"
)

// authFailure tags a NonRetriableError as specifically a 401/403 response,
// distinct from other 4xx outcomes, so internal/health can tell an
// expired session apart from a rejected request.
type authFailure struct {
	retryx.NonRetriableError
}

// Client is a thin JSON-over-HTTP adapter. BaseURL and the HTTP client
// are injected; no brokerage-specific authentication scheme is baked in
// beyond passing the current session's bearer token.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	session    string
}

// New constructs a Client. httpClient may be nil to use a sane default
// with a bounded timeout per spec.md §5 ("every broker call must have a
// timeout").
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{BaseURL: baseURL, HTTPClient: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &retryx.NonRetriableError{Cause: err}
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return &retryx.NonRetriableError{Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.session != "" {
		req.Header.Set("Authorization", "Bearer "+c.session)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &retryx.RetriableError{Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &retryx.RateLimitError{Cause: fmt.Errorf("429 from %s", path)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &authFailure{retryx.NonRetriableError{Cause: fmt.Errorf("auth failure %d from %s", resp.StatusCode, path)}}
	case resp.StatusCode >= 500:
		return &retryx.RetriableError{Cause: fmt.Errorf("%d from %s", resp.StatusCode, path)}
	case resp.StatusCode >= 400:
		return &retryx.NonRetriableError{Cause: fmt.Errorf("%d from %s", resp.StatusCode, path)}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// IsAuthError reports whether err is the 401/403-class failure this
// client produces, used by internal/health to decide whether to
// re-authenticate rather than simply retrying.
func IsAuthError(err error) bool {
	var af *authFailure
	return errors.As(err, &af)
}

// --- auth.Broker ---

type authResponse struct {
	Token             string    `json:"token"`
	ExpiresAt         time.Time `json:"expires_at"`
	ChallengeRequired string    `json:"challenge_required"`
}

func (c *Client) Authenticate(ctx context.Context, creds models.Credentials) (AuthResultDTO, error) {
	var resp authResponse
	payload := map[string]string{"username": creds.Username, "password": creds.Password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", payload, &resp); err != nil {
		return AuthResultDTO{}, err
	}
	if resp.ChallengeRequired == "none" {
		c.session = resp.Token
	}
	return AuthResultDTO{
		Session: models.Session{Token: resp.Token, ExpiresAt: resp.ExpiresAt, CreatedAt: time.Now().UTC()},
		Needs:   resp.ChallengeRequired,
	}, nil
}

// AuthResultDTO mirrors internal/auth.AuthResult's fields without
// importing internal/auth (avoiding an import cycle); main.go adapts
// between the two.
type AuthResultDTO struct {
	Session models.Session
	Needs   string
}

func (c *Client) RespondToChallenge(ctx context.Context, code string) (models.Session, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/challenge", map[string]string{"code": code}, &resp); err != nil {
		return models.Session{}, err
	}
	c.session = resp.Token
	return models.Session{Token: resp.Token, ExpiresAt: resp.ExpiresAt, CreatedAt: time.Now().UTC()}, nil
}

func (c *Client) RespondToDeviceToken(ctx context.Context, token string) (models.Session, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/device", map[string]string{"device_token": token}, &resp); err != nil {
		return models.Session{}, err
	}
	c.session = resp.Token
	return models.Session{Token: resp.Token, ExpiresAt: resp.ExpiresAt, CreatedAt: time.Now().UTC()}, nil
}

func (c *Client) Logout(ctx context.Context, session models.Session) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) Refresh(ctx context.Context, session models.Session) (models.Session, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, &resp); err != nil {
		return models.Session{}, err
	}
	c.session = resp.Token
	return models.Session{Token: resp.Token, ExpiresAt: resp.ExpiresAt, CreatedAt: time.Now().UTC()}, nil
}

// --- health.Prober ---

func (c *Client) Probe(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/account/ping", nil, nil)
}

// --- account.Broker ---

func (c *Client) FetchBuyingPower(ctx context.Context) (money.D, error) {
	var resp struct {
		BuyingPower string `json:"buying_power"`
	}
	if err := c.do(ctx, http.MethodGet, "/account/buying_power", nil, &resp); err != nil {
		return money.Zero, err
	}
	v, err := money.FromString(resp.BuyingPower)
	if err != nil {
		return money.Zero, retryx.NewDataValidationError("buying_power", err.Error())
	}
	return v, nil
}

func (c *Client) FetchPositions(ctx context.Context) ([]models.Position, error) {
	var resp []struct {
		Symbol   string `json:"symbol"`
		Quantity int    `json:"quantity"`
		AvgPrice string `json:"average_buy_price"`
		LastPrice string `json:"current_price"`
	}
	if err := c.do(ctx, http.MethodGet, "/account/positions", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Position, 0, len(resp))
	for _, p := range resp {
		avg, err := money.FromString(p.AvgPrice)
		if err != nil {
			return nil, retryx.NewDataValidationError("average_buy_price", err.Error())
		}
		cur, err := money.FromString(p.LastPrice)
		if err != nil {
			return nil, retryx.NewDataValidationError("current_price", err.Error())
		}
		out = append(out, models.Position{Symbol: p.Symbol, Quantity: p.Quantity, AverageBuyPrice: avg, CurrentPrice: cur})
	}
	return out, nil
}

func (c *Client) FetchAccountBalance(ctx context.Context) (models.AccountBalance, error) {
	var resp struct {
		Cash        string `json:"cash"`
		Equity      string `json:"equity"`
		BuyingPower string `json:"buying_power"`
	}
	if err := c.do(ctx, http.MethodGet, "/account/balance", nil, &resp); err != nil {
		return models.AccountBalance{}, err
	}
	cash, err1 := money.FromString(resp.Cash)
	equity, err2 := money.FromString(resp.Equity)
	bp, err3 := money.FromString(resp.BuyingPower)
	if err1 != nil || err2 != nil || err3 != nil {
		return models.AccountBalance{}, retryx.NewDataValidationError("account_balance", "malformed decimal field")
	}
	return models.AccountBalance{Cash: cash, Equity: equity, BuyingPower: bp, LastUpdated: time.Now().UTC()}, nil
}

func (c *Client) FetchDayTradeCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"day_trade_count"`
	}
	if err := c.do(ctx, http.MethodGet, "/account/day_trade_count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// --- market.Broker ---

func (c *Client) FetchQuote(ctx context.Context, symbol string) (models.Quote, error) {
	var resp struct {
		Symbol    string    `json:"symbol"`
		Price     string    `json:"price"`
		Timestamp time.Time `json:"timestamp"`
		State     string    `json:"market_state"`
	}
	if err := c.do(ctx, http.MethodGet, "/market/quote?symbol="+symbol, nil, &resp); err != nil {
		return models.Quote{}, err
	}
	price, err := money.FromString(resp.Price)
	if err != nil {
		return models.Quote{}, retryx.NewDataValidationError("current_price", err.Error())
	}
	return models.Quote{
		Symbol:       resp.Symbol,
		CurrentPrice: price,
		TimestampUTC: resp.Timestamp.UTC(),
		MarketState:  models.MarketState(resp.State),
	}, nil
}

func (c *Client) FetchHistorical(ctx context.Context, symbol, interval string, span time.Duration) ([]models.PriceBar, error) {
	var resp []struct {
		Timestamp time.Time `json:"timestamp"`
		Open      string    `json:"open"`
		High      string    `json:"high"`
		Low       string    `json:"low"`
		Close     string    `json:"close"`
		Volume    int64     `json:"volume"`
	}
	path := fmt.Sprintf("/market/historical?symbol=%s&interval=%s&span=%d", symbol, interval, int64(span.Seconds()))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	bars := make([]models.PriceBar, 0, len(resp))
	for _, b := range resp {
		o, e1 := money.FromString(b.Open)
		h, e2 := money.FromString(b.High)
		l, e3 := money.FromString(b.Low)
		cl, e4 := money.FromString(b.Close)
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
			return nil, retryx.NewDataValidationError("ohlc", "malformed decimal field in historical bar")
		}
		bars = append(bars, models.PriceBar{TimestampUTC: b.Timestamp.UTC(), Open: o, High: h, Low: l, Close: cl, Volume: b.Volume})
	}
	return bars, nil
}

func (c *Client) FetchMarketStatus(ctx context.Context) (models.MarketStatus, error) {
	var resp struct {
		IsOpen    bool      `json:"is_open"`
		NextOpen  time.Time `json:"next_open"`
		NextClose time.Time `json:"next_close"`
	}
	if err := c.do(ctx, http.MethodGet, "/market/status", nil, &resp); err != nil {
		return models.MarketStatus{}, err
	}
	return models.MarketStatus{IsOpen: resp.IsOpen, NextOpen: resp.NextOpen.UTC(), NextClose: resp.NextClose.UTC()}, nil
}

// --- execution.OrderBroker ---

func (c *Client) SubmitOrder(ctx context.Context, symbol string, action models.TradeAction, shares int, price money.D, clientOrderID string) (string, money.D, error) {
	var resp struct {
		OrderID     string `json:"order_id"`
		FilledPrice string `json:"filled_price"`
	}
	payload := map[string]any{
		"symbol": symbol, "action": string(action), "shares": shares,
		"price": price.String(), "client_order_id": clientOrderID,
	}
	if err := c.do(ctx, http.MethodPost, "/orders", payload, &resp); err != nil {
		return "", money.Zero, err
	}
	filled, err := money.FromString(resp.FilledPrice)
	if err != nil {
		return "", money.Zero, retryx.NewDataValidationError("filled_price", err.Error())
	}
	return resp.OrderID, filled, nil
}
