// Package indicator computes trend indicators over a market's candle window.
//
// Indicators annotate the candles in place. They always recompute from the
// start of the window, so a pass over an unchanged window is idempotent.
package indicator

import "coindog/internal/model"

// Indicator is implemented by every window indicator.
type Indicator interface {
	// Name returns the indicator name (e.g. "SUPERTREND_14_3").
	Name() string

	// Apply annotates candles, rounding prices to pricePrecision decimals.
	// Returns false when the window is too short to produce any value.
	Apply(candles []model.Candle, pricePrecision int32) bool
}
