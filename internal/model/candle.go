package model

import (
	"math"
	"time"
)

// Signal is the trading decision attached to an analysed candle.
type Signal string

const (
	SignalNone Signal = ""
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalWait Signal = "WAIT"
)

// Actionable reports whether the signal asks for an order.
func (s Signal) Actionable() bool {
	return s == SignalBuy || s == SignalSell
}

// OHLCV is a raw exchange row: [timestamp ms, open, high, low, close, volume].
type OHLCV [6]float64

// Candle is one OHLCV bar for a single symbol and timeframe.
// Timestamps are epoch milliseconds of the bar open.
//
// The analysis fields stay nil until the trend pass reaches the candle:
// ATR and Uptrend are set from index period, the bands from index period+1.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"` // rounded to 2 decimals

	ATR       *float64 `json:"atr,omitempty"`
	UpperBand *float64 `json:"upperBand,omitempty"`
	LowerBand *float64 `json:"lowerBand,omitempty"`
	Uptrend   *bool    `json:"uptrend,omitempty"`
	Signal    Signal   `json:"signal,omitempty"`
}

// NewCandle converts a raw exchange row.
func NewCandle(row OHLCV) Candle {
	return Candle{
		Timestamp: int64(row[0]),
		Open:      row[1],
		High:      row[2],
		Low:       row[3],
		Close:     row[4],
		Volume:    math.Round(row[5]*100) / 100,
	}
}

// Time returns the bar open time in UTC.
func (c *Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// HL2 is the bar midpoint (high+low)/2.
func (c *Candle) HL2() float64 {
	return (c.High + c.Low) / 2
}

// IsUptrend reports the trend flag, false when not yet analysed.
func (c *Candle) IsUptrend() bool {
	return c.Uptrend != nil && *c.Uptrend
}

// HasBands reports whether both Supertrend bands are assigned.
func (c *Candle) HasBands() bool {
	return c.UpperBand != nil && c.LowerBand != nil
}

// Float returns a pointer to v, used for the optional analysis fields.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
