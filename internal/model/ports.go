package model

import (
	"context"
	"errors"
)

// ── Port Interfaces ──
// These interfaces decouple the watch loop from the concrete exchange client
// and storage implementations (JSON files, SQLite, Redis).

var (
	// ErrUnauthenticated is returned by private exchange calls without credentials.
	ErrUnauthenticated = errors.New("exchange: credentials required")

	// ErrUnknownSymbol is returned when a symbol is not listed by the exchange.
	ErrUnknownSymbol = errors.New("exchange: unknown symbol")
)

// Exchange is the subset of exchange capabilities the watch loop needs.
type Exchange interface {
	// LoadMarkets returns every listed market keyed by unified symbol.
	LoadMarkets(ctx context.Context) (map[string]MarketMeta, error)

	// FetchOHLCV returns candles for symbol opened at or after since (ms),
	// oldest first.
	FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64) ([]OHLCV, error)

	// FetchBalance returns the account balance. Returns ErrUnauthenticated
	// when the client has no credentials.
	FetchBalance(ctx context.Context) (Balance, error)

	// FetchStatus reports exchange health.
	FetchStatus(ctx context.Context) (Status, error)
}

// MarketStore persists the list of tracked markets.
type MarketStore interface {
	// LoadMarkets reads the tracked market list.
	LoadMarkets() ([]MarketMeta, error)

	// SaveMarkets replaces the tracked market list.
	SaveMarkets(markets []MarketMeta) error
}

// CandleStore persists candle snapshots keyed by symbol.
type CandleStore interface {
	// LoadCandles reads the last snapshot. Returns an empty map if none exists.
	LoadCandles() (map[string][]Candle, error)

	// SaveCandles replaces the snapshot.
	SaveCandles(snapshot map[string][]Candle) error
}

// OrderRecorder receives every executed simulated order.
type OrderRecorder interface {
	RecordOrder(o Order) error
}
