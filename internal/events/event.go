// Package events defines the records the watch loop emits and the sinks
// that consume them.
//
// The loop calls Sink.Notify synchronously between fetches, so sinks must
// return quickly; sinks that do I/O enqueue and drain on their own goroutine.
package events

import (
	"time"

	"coindog/internal/model"
)

// Kind names an event.
type Kind string

const (
	KindInitializing Kind = "initializing"
	KindInitialized  Kind = "initialized"
	KindFetching     Kind = "fetching"
	KindFetched      Kind = "fetched"
	KindAnalyzing    Kind = "analyzing"
	KindAnalyzed     Kind = "analyzed"
	KindPause        Kind = "pause"
	KindOrder        Kind = "order"
	KindRejected     Kind = "rejected"
	KindStopped      Kind = "stopped"
)

// MarketSummary is the per-market state attached to fetched/analyzed events.
type MarketSummary struct {
	Symbol          string       `json:"symbol"`
	Candles         int          `json:"candles"`
	Capacity        int          `json:"capacity"`
	Added           int          `json:"added"` // candles accepted by the last fetch
	FillRatio       float64      `json:"fillRatio"`
	AverageInterval float64      `json:"averageInterval"` // ms
	Rate            float64      `json:"rate"`            // candles per minute
	First           int64        `json:"first,omitempty"`
	Last            int64        `json:"last,omitempty"`
	Close           float64      `json:"close,omitempty"`
	Uptrend         bool         `json:"uptrend"`
	UpperBand       float64      `json:"upperBand,omitempty"`
	LowerBand       float64      `json:"lowerBand,omitempty"`
	Signal          model.Signal `json:"signal,omitempty"`
	Position        bool         `json:"position"`
	RequestCount    int          `json:"requestCount"`
	RPM             float64      `json:"rpm"`
	LastFetchAt     time.Time    `json:"lastFetchAt"`
}

// SchedulerStats is attached to pause events.
type SchedulerStats struct {
	Tracked    int           `json:"tracked"`
	QueueDepth int           `json:"queueDepth"`
	Budget     int           `json:"budget"` // requests per minute
	Share      float64       `json:"share"`  // budget per due market
	RPM        float64       `json:"rpm"`    // smoothed realized rate
	Requests   uint64        `json:"requests"`
	NextDelay  time.Duration `json:"nextDelay"`
}

// Event is one notification from the watch loop. Exactly one of the
// payload pointers is set, depending on Kind.
type Event struct {
	Kind      Kind             `json:"kind"`
	Symbol    string           `json:"symbol,omitempty"`
	At        time.Time        `json:"at"`
	TraceID   string           `json:"traceId,omitempty"`
	Market    *MarketSummary   `json:"market,omitempty"`
	Scheduler *SchedulerStats  `json:"scheduler,omitempty"`
	Order     *model.Order     `json:"order,omitempty"`
	Rejection *model.Rejection `json:"rejection,omitempty"`
}

// Sink receives events.
type Sink interface {
	Notify(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event)

func (f SinkFunc) Notify(e Event) { f(e) }

// Nop discards every event.
var Nop Sink = SinkFunc(func(Event) {})

// Multi delivers each event to every sink in order.
type Multi []Sink

func (m Multi) Notify(e Event) {
	for _, s := range m {
		s.Notify(e)
	}
}

// Filter forwards only the listed kinds to next.
func Filter(next Sink, kinds ...Kind) Sink {
	allowed := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	return SinkFunc(func(e Event) {
		if allowed[e.Kind] {
			next.Notify(e)
		}
	})
}
