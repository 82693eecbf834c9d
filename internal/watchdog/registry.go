package watchdog

import (
	"time"

	"coindog/internal/events"
	"coindog/internal/model"
	"coindog/internal/ringbuf"
)

// Market is a tracked symbol with its candle window and scheduling state.
type Market struct {
	model.MarketMeta

	Candles  *ringbuf.Buffer
	Position bool // holding the base asset

	LastFetchAt  time.Time
	RequestCount int
	RPM          float64 // smoothed requests per minute for this market
	LastAdded    int     // candles accepted by the last fetch
}

// stale reports whether the market needs a fetch: it has no candles or its
// newest candle is at least one timeframe old.
func (m *Market) stale(now time.Time, timeframe time.Duration) bool {
	last, ok := m.Candles.Last()
	if !ok {
		return true
	}
	return now.Sub(last.Time()) >= timeframe
}

// Summary describes the market for event sinks.
func (m *Market) Summary() events.MarketSummary {
	s := events.MarketSummary{
		Symbol:          m.Symbol,
		Candles:         m.Candles.Len(),
		Capacity:        m.Candles.Cap(),
		Added:           m.LastAdded,
		FillRatio:       m.Candles.FillRatio(),
		AverageInterval: m.Candles.AverageInterval(),
		Rate:            m.Candles.Rate(),
		Position:        m.Position,
		RequestCount:    m.RequestCount,
		RPM:             m.RPM,
		LastFetchAt:     m.LastFetchAt,
	}
	if first, ok := m.Candles.First(); ok {
		s.First = first.Timestamp
	}
	if last, ok := m.Candles.Last(); ok {
		s.Last = last.Timestamp
		s.Close = last.Close
		s.Uptrend = last.IsUptrend()
		s.Signal = last.Signal
		if last.HasBands() {
			s.UpperBand = *last.UpperBand
			s.LowerBand = *last.LowerBand
		}
	}
	return s
}

// registry owns the tracked markets: a slice arena plus a symbol index.
// Pointers returned by get are valid until the next add or remove.
type registry struct {
	markets []Market
	index   map[string]int
}

func newRegistry() *registry {
	return &registry{index: make(map[string]int)}
}

// add registers meta with an empty window. Returns false if already tracked.
func (r *registry) add(meta model.MarketMeta, capacity int) bool {
	if _, ok := r.index[meta.Symbol]; ok {
		return false
	}
	r.index[meta.Symbol] = len(r.markets)
	r.markets = append(r.markets, Market{MarketMeta: meta, Candles: ringbuf.New(capacity)})
	return true
}

func (r *registry) get(symbol string) (*Market, bool) {
	i, ok := r.index[symbol]
	if !ok {
		return nil, false
	}
	return &r.markets[i], true
}

// remove drops symbol, keeping the order of the others.
func (r *registry) remove(symbol string) bool {
	i, ok := r.index[symbol]
	if !ok {
		return false
	}
	r.markets = append(r.markets[:i], r.markets[i+1:]...)
	delete(r.index, symbol)
	for j := i; j < len(r.markets); j++ {
		r.index[r.markets[j].Symbol] = j
	}
	return true
}

func (r *registry) len() int { return len(r.markets) }

func (r *registry) symbols() []string {
	out := make([]string, len(r.markets))
	for i := range r.markets {
		out[i] = r.markets[i].Symbol
	}
	return out
}

func (r *registry) metas() []model.MarketMeta {
	out := make([]model.MarketMeta, len(r.markets))
	for i := range r.markets {
		out[i] = r.markets[i].MarketMeta
	}
	return out
}
