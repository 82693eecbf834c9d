// Package binance is a minimal Binance spot REST client implementing the
// exchange port of the watch loop: market metadata, klines, the account
// balance and the system status.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"coindog/internal/model"
)

const (
	DefaultBaseURL = "https://api.binance.com"
	TestnetBaseURL = "https://testnet.binance.vision"

	klinesLimit = 1000
)

// APIError is an error payload returned by the exchange.
type APIError struct {
	Status int
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: http %d: code %d: %s", e.Status, e.Code, e.Msg)
}

// Client talks to the Binance spot REST API.
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	recvWindow time.Duration
	now        func() time.Time

	mu        sync.Mutex
	markets   map[string]model.MarketMeta // by unified symbol
	rateLimit int                         // request weight per minute
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. the testnet.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithHTTPClient replaces the default HTTP client (10s timeout).
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }

// WithClock replaces time.Now for request signing.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// NewClient creates a client. Empty keys give a public-only client whose
// FetchBalance returns model.ErrUnauthenticated.
func NewClient(apiKey, secretKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		recvWindow: 5 * time.Second,
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Authenticated reports whether private endpoints can be called.
func (c *Client) Authenticated() bool {
	return c.apiKey != "" && c.secretKey != ""
}

// RateLimit returns the request weight allowed per minute as reported by
// the last LoadMarkets, 0 before that.
func (c *Client) RateLimit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateLimit
}

func (c *Client) sign(params string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(params))
	return hex.EncodeToString(mac.Sum(nil))
}

// get performs a GET and decodes the JSON body into out. Signed requests
// carry timestamp, recvWindow and signature.
func (c *Client) get(ctx context.Context, path string, params url.Values, signed bool, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		params.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	}
	query := params.Encode()
	if signed {
		query += "&signature=" + c.sign(query)
	}

	reqURL := c.baseURL + path
	if query != "" {
		reqURL += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		if sonic.Unmarshal(body, apiErr) != nil || apiErr.Msg == "" {
			apiErr.Msg = string(body)
		}
		if resp.StatusCode == http.StatusUnauthorized || apiErr.Code == -2014 || apiErr.Code == -2015 {
			return errors.Wrap(model.ErrUnauthenticated, apiErr.Error())
		}
		return apiErr
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

// LoadMarkets returns every listed spot market keyed by unified symbol.
func (c *Client) LoadMarkets(ctx context.Context) (map[string]model.MarketMeta, error) {
	var info exchangeInfo
	if err := c.get(ctx, "/api/v3/exchangeInfo", nil, false, &info); err != nil {
		return nil, errors.Wrap(err, "load markets")
	}

	markets := make(map[string]model.MarketMeta, len(info.Symbols))
	for _, s := range info.Symbols {
		m, err := s.meta()
		if err != nil {
			return nil, errors.Wrapf(err, "market %s", s.Symbol)
		}
		markets[m.Symbol] = m
	}

	c.mu.Lock()
	c.markets = markets
	c.rateLimit = info.requestWeightPerMinute()
	c.mu.Unlock()

	out := make(map[string]model.MarketMeta, len(markets))
	for k, v := range markets {
		out[k] = v
	}
	return out, nil
}

// marketID maps a unified symbol to the exchange id, loading markets once.
func (c *Client) marketID(ctx context.Context, symbol string) (string, error) {
	c.mu.Lock()
	loaded := c.markets != nil
	m, ok := c.markets[symbol]
	c.mu.Unlock()
	if !loaded {
		if _, err := c.LoadMarkets(ctx); err != nil {
			return "", err
		}
		c.mu.Lock()
		m, ok = c.markets[symbol]
		c.mu.Unlock()
	}
	if !ok {
		return "", errors.Wrap(model.ErrUnknownSymbol, symbol)
	}
	return m.ID, nil
}

// FetchOHLCV returns up to 1000 candles opened at or after since (ms),
// oldest first. since <= 0 returns the most recent candles.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64) ([]model.OHLCV, error) {
	id, err := c.marketID(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("symbol", id)
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(klinesLimit))
	if since > 0 {
		params.Set("startTime", strconv.FormatInt(since, 10))
	}

	var raw [][]interface{}
	if err := c.get(ctx, "/api/v3/klines", params, false, &raw); err != nil {
		return nil, errors.Wrapf(err, "fetch ohlcv %s %s", symbol, timeframe)
	}

	rows := make([]model.OHLCV, 0, len(raw))
	for i, k := range raw {
		row, err := parseKline(k)
		if err != nil {
			return nil, errors.Wrapf(err, "kline %d of %s", i, symbol)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FetchBalance returns the spot balances with a non-zero total.
func (c *Client) FetchBalance(ctx context.Context) (model.Balance, error) {
	if !c.Authenticated() {
		return nil, model.ErrUnauthenticated
	}
	var acct account
	if err := c.get(ctx, "/api/v3/account", nil, true, &acct); err != nil {
		return nil, errors.Wrap(err, "fetch balance")
	}
	return acct.balance()
}

// FetchStatus reports "ok" or "maintenance".
func (c *Client) FetchStatus(ctx context.Context) (model.Status, error) {
	var st struct {
		Status int    `json:"status"` // 0 normal, 1 maintenance
		Msg    string `json:"msg"`
	}
	if err := c.get(ctx, "/sapi/v1/system/status", nil, false, &st); err != nil {
		return model.Status{}, errors.Wrap(err, "fetch status")
	}
	status := "ok"
	if st.Status != 0 {
		status = "maintenance"
	}
	return model.Status{Status: status, Updated: c.now().UnixMilli(), Message: st.Msg}, nil
}
