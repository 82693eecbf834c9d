package model

import "strings"

// Precision is the number of decimal places the exchange accepts.
type Precision struct {
	Amount int32 `json:"amount"`
	Price  int32 `json:"price"`
}

// MinMax bounds a quantity. A zero Max means unbounded.
type MinMax struct {
	Min float64 `json:"min"`
	Max float64 `json:"max,omitempty"`
}

// Limits are the exchange minimums an order must satisfy.
type Limits struct {
	Amount MinMax `json:"amount"`
	Price  MinMax `json:"price"`
	Cost   MinMax `json:"cost"`
}

// MarketMeta is the static descriptor of a tradeable symbol, as stored in
// the market list file.
type MarketMeta struct {
	Symbol    string    `json:"symbol"` // unified, e.g. "BTC/USDT"
	ID        string    `json:"id"`     // exchange native, e.g. "BTCUSDT"
	Base      string    `json:"base"`
	Quote     string    `json:"quote"`
	Active    bool      `json:"active"`
	Precision Precision `json:"precision"`
	Limits    Limits    `json:"limits"`
}

// Key returns the registry key for this market.
func (m *MarketMeta) Key() string {
	return m.Symbol
}

// UnifiedSymbol builds "BASE/QUOTE".
func UnifiedSymbol(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}
