// Package metrics exposes the watch loop as Prometheus metrics and serves
// /metrics and /healthz.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"coindog/internal/events"
)

// Metrics holds all Prometheus metrics for the watch loop. It implements
// events.Sink.
type Metrics struct {
	FetchesTotal     *prometheus.CounterVec // labels: symbol
	CandlesAdded     *prometheus.CounterVec // labels: symbol
	Candles          *prometheus.GaugeVec   // labels: symbol
	MarketRPM        *prometheus.GaugeVec   // labels: symbol
	Uptrend          *prometheus.GaugeVec   // labels: symbol; 1=up, 0=down
	FetchDur         prometheus.Histogram
	AnalyzeDur       prometheus.Histogram
	SchedulerRPM     prometheus.Gauge
	QueueDepth       prometheus.Gauge
	NextDelay        prometheus.Gauge
	OrdersTotal      *prometheus.CounterVec // labels: symbol, signal
	RejectionsTotal  *prometheus.CounterVec // labels: reason
	EventDropsTotal  *prometheus.CounterVec // labels: subscriber
	RedisBreaker     prometheus.Gauge       // 0=closed, 1=open, 2=half-open
	RedisBreakerTrip prometheus.Counter

	mu       sync.Mutex
	fetching map[string]time.Time
	analysis map[string]time.Time
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coindog_fetches_total",
			Help: "Candle fetches per market",
		}, []string{"symbol"}),
		CandlesAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coindog_candles_added_total",
			Help: "Candles accepted into a market window",
		}, []string{"symbol"}),
		Candles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coindog_candles",
			Help: "Candles currently held per market",
		}, []string{"symbol"}),
		MarketRPM: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coindog_market_requests_per_minute",
			Help: "Smoothed request rate per market",
		}, []string{"symbol"}),
		Uptrend: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coindog_uptrend",
			Help: "Supertrend direction of the newest candle (1=up, 0=down)",
		}, []string{"symbol"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coindog_fetch_duration_seconds",
			Help:    "Exchange OHLCV request latency",
			Buckets: prometheus.DefBuckets,
		}),
		AnalyzeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coindog_analyze_duration_seconds",
			Help:    "Trend and signal pass latency per market",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		SchedulerRPM: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coindog_requests_per_minute",
			Help: "Smoothed global request rate",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coindog_queue_depth",
			Help: "Markets waiting to be fetched",
		}),
		NextDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coindog_next_delay_seconds",
			Help: "Pause before the next tick",
		}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coindog_orders_total",
			Help: "Simulated orders executed",
		}, []string{"symbol", "signal"}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coindog_order_rejections_total",
			Help: "Simulated orders rejected",
		}, []string{"reason"}),
		EventDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coindog_event_drops_total",
			Help: "Events dropped by the event bus per subscriber",
		}, []string{"subscriber"}),
		RedisBreaker: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coindog_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisBreakerTrip: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coindog_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		fetching: make(map[string]time.Time),
		analysis: make(map[string]time.Time),
	}

	reg.MustRegister(
		m.FetchesTotal,
		m.CandlesAdded,
		m.Candles,
		m.MarketRPM,
		m.Uptrend,
		m.FetchDur,
		m.AnalyzeDur,
		m.SchedulerRPM,
		m.QueueDepth,
		m.NextDelay,
		m.OrdersTotal,
		m.RejectionsTotal,
		m.EventDropsTotal,
		m.RedisBreaker,
		m.RedisBreakerTrip,
	)
	return m
}

// Notify implements events.Sink.
func (m *Metrics) Notify(e events.Event) {
	switch e.Kind {
	case events.KindFetching:
		m.mu.Lock()
		m.fetching[e.Symbol] = e.At
		m.mu.Unlock()

	case events.KindFetched:
		m.FetchesTotal.WithLabelValues(e.Symbol).Inc()
		m.observeSince(m.fetching, e.Symbol, e.At, m.FetchDur)
		if s := e.Market; s != nil {
			m.CandlesAdded.WithLabelValues(s.Symbol).Add(float64(s.Added))
			m.Candles.WithLabelValues(s.Symbol).Set(float64(s.Candles))
			m.MarketRPM.WithLabelValues(s.Symbol).Set(s.RPM)
		}

	case events.KindAnalyzing:
		m.mu.Lock()
		m.analysis[e.Symbol] = e.At
		m.mu.Unlock()

	case events.KindAnalyzed:
		m.observeSince(m.analysis, e.Symbol, e.At, m.AnalyzeDur)
		if s := e.Market; s != nil {
			v := 0.0
			if s.Uptrend {
				v = 1
			}
			m.Uptrend.WithLabelValues(s.Symbol).Set(v)
		}

	case events.KindPause:
		if st := e.Scheduler; st != nil {
			m.SchedulerRPM.Set(st.RPM)
			m.QueueDepth.Set(float64(st.QueueDepth))
			m.NextDelay.Set(st.NextDelay.Seconds())
		}

	case events.KindOrder:
		if o := e.Order; o != nil {
			m.OrdersTotal.WithLabelValues(o.Symbol, string(o.Signal)).Inc()
		}

	case events.KindRejected:
		if r := e.Rejection; r != nil {
			m.RejectionsTotal.WithLabelValues(r.Reason).Inc()
		}
	}
}

func (m *Metrics) observeSince(starts map[string]time.Time, symbol string, at time.Time, h prometheus.Histogram) {
	m.mu.Lock()
	start, ok := starts[symbol]
	delete(starts, symbol)
	m.mu.Unlock()
	if ok && !at.Before(start) {
		h.Observe(at.Sub(start).Seconds())
	}
}

// EventDropped counts a dropped event; it matches events.Bus.OnDrop.
func (m *Metrics) EventDropped(subscriber int, _ events.Event) {
	m.EventDropsTotal.WithLabelValues(strconv.Itoa(subscriber)).Inc()
}

// BreakerStateChanged records a circuit breaker transition. States are the
// integer values of the redis breaker states.
func (m *Metrics) BreakerStateChanged(to int) {
	m.RedisBreaker.Set(float64(to))
	if to == 1 {
		m.RedisBreakerTrip.Inc()
	}
}
