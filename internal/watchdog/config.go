package watchdog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"coindog/internal/indicator"
)

// Config holds the scheduler and analysis settings.
type Config struct {
	Timeframe    string        // exchange candle interval, e.g. "1m"
	Capacity     int           // candles kept per market
	Budget       int           // max exchange requests per minute
	TickInterval time.Duration // re-evaluation delay while nothing is due
	Lookback     time.Duration // history requested for an empty buffer
	Smoothing    float64       // EMA weight of the newest rate sample
	Period       int           // Supertrend ATR period
	Multiplier   float64       // Supertrend band multiplier
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Timeframe:    "1m",
		Capacity:     60,
		Budget:       60,
		TickInterval: time.Second,
		Lookback:     time.Hour,
		Smoothing:    0.25,
		Period:       indicator.DefaultPeriod,
		Multiplier:   indicator.DefaultMultiplier,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeframe == "" {
		c.Timeframe = d.Timeframe
	}
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.Budget <= 0 {
		c.Budget = d.Budget
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.Lookback <= 0 {
		c.Lookback = d.Lookback
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		c.Smoothing = d.Smoothing
	}
	if c.Period <= 0 {
		c.Period = d.Period
	}
	if c.Multiplier <= 0 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// ParseTimeframe converts an exchange interval ("30s", "1m", "4h", "1d",
// "1w") to a duration.
func ParseTimeframe(tf string) (time.Duration, error) {
	tf = strings.TrimSpace(tf)
	if len(tf) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	var unit time.Duration
	switch tf[len(tf)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid timeframe unit in %q", tf)
	}
	return time.Duration(n) * unit, nil
}
