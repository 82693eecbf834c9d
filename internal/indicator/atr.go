package indicator

import (
	"github.com/markcheno/go-talib"

	"coindog/internal/model"
)

// ATR returns the Average True Range of candles using Wilder smoothing:
// the first value (index period) is the simple mean of the true ranges
// 1..period, each later value is (prev*(period-1) + tr) / period.
// Entries before index period are zero. Returns nil when len <= period.
func ATR(candles []model.Candle, period int) []float64 {
	if period < 1 || len(candles) <= period {
		return nil
	}
	high := make([]float64, len(candles))
	low := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i := range candles {
		high[i] = candles[i].High
		low[i] = candles[i].Low
		closes[i] = candles[i].Close
	}
	return talib.Atr(high, low, closes, period)
}
