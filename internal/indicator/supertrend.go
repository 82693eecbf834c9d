package indicator

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"coindog/internal/model"
)

// Default Supertrend parameters.
const (
	DefaultPeriod     = 14
	DefaultMultiplier = 3.0
)

// Supertrend flags each candle as up- or downtrend by comparing the close
// against ATR bands around the bar midpoint.
//
// For index >= period every candle gets atr and uptrend=true. For
// index > period the bands are hl2 ± multiplier*atr, rounded to the price
// precision, and the trend flips when the close crosses the previous band.
// While the trend holds, the lower band never falls (uptrend) and the upper
// band never rises (downtrend).
type Supertrend struct {
	period     int
	multiplier float64
}

// NewSupertrend creates a Supertrend with the given ATR period and band
// multiplier. Non-positive values fall back to the defaults.
func NewSupertrend(period int, multiplier float64) *Supertrend {
	if period < 1 {
		period = DefaultPeriod
	}
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}
	return &Supertrend{period: period, multiplier: multiplier}
}

func (s *Supertrend) Name() string {
	return "SUPERTREND_" + strconv.Itoa(s.period) + "_" + strconv.FormatFloat(s.multiplier, 'f', -1, 64)
}

// Period returns the ATR period.
func (s *Supertrend) Period() int { return s.period }

// Apply annotates candles in place. It is a no-op unless len > period.
func (s *Supertrend) Apply(candles []model.Candle, pricePrecision int32) bool {
	atr := ATR(candles, s.period)
	if atr == nil {
		return false
	}

	for i := range candles {
		c := &candles[i]
		if i < s.period {
			c.ATR, c.Uptrend = nil, nil
			c.UpperBand, c.LowerBand = nil, nil
			continue
		}
		c.ATR = model.Float(atr[i])
		c.Uptrend = model.Bool(true)
		c.UpperBand, c.LowerBand = nil, nil
	}

	for i := s.period + 1; i < len(candles); i++ {
		prev, cur := &candles[i-1], &candles[i]

		hl2 := cur.HL2()
		band := s.multiplier * atr[i]
		upper := roundPrice(hl2+band, pricePrecision)
		lower := roundPrice(hl2-band, pricePrecision)

		switch {
		case prev.UpperBand != nil && cur.Close > *prev.UpperBand:
			*cur.Uptrend = true
		case prev.LowerBand != nil && cur.Close < *prev.LowerBand:
			*cur.Uptrend = false
		default:
			*cur.Uptrend = prev.IsUptrend()
		}

		if prev.HasBands() && *cur.Uptrend == prev.IsUptrend() {
			if *cur.Uptrend {
				lower = math.Max(lower, *prev.LowerBand)
			} else {
				upper = math.Min(upper, *prev.UpperBand)
			}
		}

		cur.UpperBand = model.Float(upper)
		cur.LowerBand = model.Float(lower)
	}
	return true
}

func roundPrice(v float64, precision int32) float64 {
	return decimal.NewFromFloat(v).Round(precision).InexactFloat64()
}
