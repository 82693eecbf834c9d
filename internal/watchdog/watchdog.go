// Package watchdog runs the candle polling loop.
//
// One Watchdog owns every tracked market. Each tick it enqueues the markets
// whose newest candle is at least one timeframe old, fetches exactly one of
// them, runs the trend and signal passes over its window, optionally hands
// the newest signal to the order simulator, and sleeps for a delay derived
// from the request budget. All market, balance and order mutation happens on
// the loop goroutine between fetches.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"coindog/internal/events"
	"coindog/internal/execution"
	"coindog/internal/indicator"
	"coindog/internal/logger"
	"coindog/internal/model"
	"coindog/internal/strategy"
)

// ErrNoMarkets is returned by Run when nothing is tracked.
var ErrNoMarkets = errors.New("watchdog: no tracked markets")

// Deps are the collaborators injected into a Watchdog.
type Deps struct {
	Exchange model.Exchange    // required
	Markets  model.MarketStore // required
	Candles  model.CandleStore // optional snapshot store
	Clock    Clock             // defaults to SystemClock
	Sink     events.Sink       // defaults to events.Nop
	Log      *zap.Logger

	// Simulator enables simulated orders when set.
	Simulator *execution.Simulator
}

// Watchdog is the polling scheduler and orchestrator.
type Watchdog struct {
	cfg       Config
	timeframe time.Duration

	exchange model.Exchange
	markets  model.MarketStore
	candles  model.CandleStore
	clock    Clock
	sink     events.Sink
	sim      *execution.Simulator
	engine   *strategy.Engine
	log      *zap.Logger

	registry *registry
	queue    *queue

	requests      uint64
	rpm           float64
	lastRequestAt time.Time

	stopped  atomic.Bool
	stopOnce sync.Once
	wake     chan struct{}
}

// New creates a Watchdog. Call Initialize before Tick or Run.
func New(cfg Config, deps Deps) (*Watchdog, error) {
	cfg = cfg.withDefaults()
	tf, err := ParseTimeframe(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	if deps.Exchange == nil || deps.Markets == nil {
		return nil, errors.New("watchdog: exchange and market store are required")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Sink == nil {
		deps.Sink = events.Nop
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	return &Watchdog{
		cfg:       cfg,
		timeframe: tf,
		exchange:  deps.Exchange,
		markets:   deps.Markets,
		candles:   deps.Candles,
		clock:     deps.Clock,
		sink:      deps.Sink,
		sim:       deps.Simulator,
		engine: strategy.NewEngine(
			indicator.NewSupertrend(cfg.Period, cfg.Multiplier),
			strategy.NewTrendFollow(cfg.Period),
		),
		log:      deps.Log.With(zap.String("component", "watchdog")),
		registry: newRegistry(),
		queue:    newQueue(),
		wake:     make(chan struct{}),
	}, nil
}

// Config returns the effective configuration.
func (w *Watchdog) Config() Config { return w.cfg }

// Initialize loads the tracked market list and, when a candle store is
// configured, the last candle snapshot. A missing or malformed file is
// returned as an error.
func (w *Watchdog) Initialize(ctx context.Context) error {
	w.emit(events.Event{Kind: events.KindInitializing})

	metas, err := w.markets.LoadMarkets()
	if err != nil {
		return fmt.Errorf("load market list: %w", err)
	}
	for _, meta := range metas {
		if !w.registry.add(meta, w.cfg.Capacity) {
			w.log.Warn("duplicate market in list", zap.String("symbol", meta.Symbol))
		}
	}

	if w.candles != nil {
		snapshot, err := w.candles.LoadCandles()
		if err != nil {
			return fmt.Errorf("load candle snapshot: %w", err)
		}
		for symbol, candles := range snapshot {
			if m, ok := w.registry.get(symbol); ok {
				m.Candles.Add(candles...)
			}
		}
	}

	if w.sim != nil {
		bal := w.sim.Balance()
		for i := range w.registry.markets {
			m := &w.registry.markets[i]
			free := bal.Get(m.Base).Free
			m.Position = free.IsPositive() && free.InexactFloat64() >= m.Limits.Amount.Min
		}
	}

	w.log.Info("initialized",
		zap.Int("markets", w.registry.len()),
		zap.String("timeframe", w.cfg.Timeframe),
		zap.Int("budget", w.cfg.Budget),
		zap.Bool("trading", w.sim != nil),
	)
	w.emit(events.Event{Kind: events.KindInitialized})
	return nil
}

// Run ticks until Stop is called, ctx is cancelled, or a fetch fails.
// A fetch error is returned as is; restarting is the caller's decision.
func (w *Watchdog) Run(ctx context.Context) error {
	if w.registry.len() == 0 {
		return ErrNoMarkets
	}
	defer w.emit(events.Event{Kind: events.KindStopped})

	for {
		if w.stopped.Load() || ctx.Err() != nil {
			return nil
		}
		delay, err := w.Tick(ctx)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-w.wake:
			return nil
		case <-w.clock.After(delay):
		}
	}
}

// Stop asks the loop to exit before its next tick. An in-flight fetch
// completes and is applied first.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() {
		w.stopped.Store(true)
		close(w.wake)
	})
}

// Tick runs one scheduling step and returns the delay before the next one.
func (w *Watchdog) Tick(ctx context.Context) (time.Duration, error) {
	now := w.clock.Now()

	for i := range w.registry.markets {
		m := &w.registry.markets[i]
		if m.stale(now, w.timeframe) {
			w.queue.push(m.Symbol)
		}
	}

	if symbol, ok := w.queue.pop(); ok {
		if m, ok := w.registry.get(symbol); ok {
			if err := w.process(ctx, m, now); err != nil {
				return 0, err
			}
		}
	}

	delay := w.nextDelay()
	depth := w.queue.len()
	w.emit(events.Event{Kind: events.KindPause, Scheduler: &events.SchedulerStats{
		Tracked:    w.registry.len(),
		QueueDepth: depth,
		Budget:     w.cfg.Budget,
		Share:      float64(w.cfg.Budget) / float64(max(1, depth)),
		RPM:        w.rpm,
		Requests:   w.requests,
		NextDelay:  delay,
	}})
	return delay, nil
}

// process fetches, analyses and re-queues one market.
func (w *Watchdog) process(ctx context.Context, m *Market, now time.Time) error {
	traceID := logger.GenerateTraceID(m.Symbol, now)
	ctx = logger.WithTraceID(ctx, traceID)

	since := now.Add(-w.cfg.Lookback).UnixMilli()
	if last, ok := m.Candles.Last(); ok {
		since = last.Timestamp
	}

	w.emit(events.Event{Kind: events.KindFetching, Symbol: m.Symbol, TraceID: traceID})

	// An in-flight fetch is never cancelled; Stop takes effect afterwards.
	rows, err := w.exchange.FetchOHLCV(context.WithoutCancel(ctx), m.Symbol, w.cfg.Timeframe, since)
	if err != nil {
		w.log.Error("fetch failed", append(logger.LogWithTrace(ctx), zap.String("symbol", m.Symbol), zap.Error(err))...)
		return fmt.Errorf("fetch %s: %w", m.Symbol, err)
	}

	m.LastAdded = m.Candles.AddRows(rows)
	w.recordRequest(m, now)

	summary := m.Summary()
	w.emit(events.Event{Kind: events.KindFetched, Symbol: m.Symbol, TraceID: traceID, Market: &summary})

	w.analyze(ctx, m, traceID)

	if m.stale(now, w.timeframe) {
		w.queue.push(m.Symbol)
	}
	return nil
}

// analyze recomputes the trend over the window, labels new candles and acts
// on the newest signal.
func (w *Watchdog) analyze(ctx context.Context, m *Market, traceID string) {
	w.emit(events.Event{Kind: events.KindAnalyzing, Symbol: m.Symbol, TraceID: traceID})

	res := w.engine.Analyze(m.Candles.Candles(), m.Precision.Price, m.Position)

	summary := m.Summary()
	w.emit(events.Event{Kind: events.KindAnalyzed, Symbol: m.Symbol, TraceID: traceID, Market: &summary})

	if w.sim == nil || !res.Latest.Actionable() {
		return
	}
	last, _ := m.Candles.Last()
	order, rej := w.sim.Execute(m.MarketMeta, res.Latest, last.Close, last.Timestamp)
	if rej != nil {
		w.log.Debug("order rejected", append(logger.LogWithTrace(ctx), zap.String("reason", rej.Reason), zap.String("symbol", m.Symbol))...)
		w.emit(events.Event{Kind: events.KindRejected, Symbol: m.Symbol, TraceID: traceID, Rejection: rej})
		return
	}
	m.Position = order.Signal == model.SignalBuy
	w.emit(events.Event{Kind: events.KindOrder, Symbol: m.Symbol, TraceID: traceID, Order: &order})
}

// recordRequest updates the per-market and global request counters.
func (w *Watchdog) recordRequest(m *Market, now time.Time) {
	m.RequestCount++
	m.RPM = w.smooth(m.RPM, m.LastFetchAt, now)
	m.LastFetchAt = now

	w.requests++
	w.rpm = w.smooth(w.rpm, w.lastRequestAt, now)
	w.lastRequestAt = now
}

// smooth folds the instantaneous rate implied by the gap since last into an
// exponential moving average. The first sample seeds the average.
func (w *Watchdog) smooth(prev float64, last, now time.Time) float64 {
	if last.IsZero() {
		return prev
	}
	gap := now.Sub(last)
	if gap < time.Millisecond {
		gap = time.Millisecond
	}
	sample := float64(time.Minute) / float64(gap)
	if prev == 0 {
		return sample
	}
	return w.cfg.Smoothing*sample + (1-w.cfg.Smoothing)*prev
}

// nextDelay spaces requests so the budget is never exceeded. With nothing
// queued the loop only re-evaluates due markets every TickInterval. When the
// measured rate runs above budget the spacing stretches proportionally.
func (w *Watchdog) nextDelay() time.Duration {
	if w.queue.len() == 0 {
		return w.cfg.TickInterval
	}
	budget := float64(w.cfg.Budget)
	spacing := time.Duration(float64(time.Minute) / budget)
	if w.rpm > budget {
		spacing = time.Duration(float64(spacing) * w.rpm / budget)
	}
	return spacing
}

func (w *Watchdog) emit(e events.Event) {
	if e.At.IsZero() {
		e.At = w.clock.Now()
	}
	w.sink.Notify(e)
}

// Markets returns the summaries of all tracked markets. Not safe to call
// while Run is active.
func (w *Watchdog) Markets() []events.MarketSummary {
	out := make([]events.MarketSummary, 0, w.registry.len())
	for i := range w.registry.markets {
		out = append(out, w.registry.markets[i].Summary())
	}
	return out
}

// Market returns the tracked market for symbol. Not safe to call while Run
// is active.
func (w *Watchdog) Market(symbol string) (*Market, bool) {
	return w.registry.get(symbol)
}

// Queued returns the symbols currently due, oldest first.
func (w *Watchdog) Queued() []string {
	return w.queue.snapshot()
}

// SaveCandles merges the current windows into the candle store. Stored
// candles older than a market's window are kept ahead of it; everything is
// bounded by the window capacity.
func (w *Watchdog) SaveCandles() error {
	if w.candles == nil {
		return nil
	}
	stored, err := w.candles.LoadCandles()
	if err != nil {
		return fmt.Errorf("load candle snapshot: %w", err)
	}
	if stored == nil {
		stored = make(map[string][]model.Candle)
	}
	for i := range w.registry.markets {
		m := &w.registry.markets[i]
		stored[m.Symbol] = mergeCandles(stored[m.Symbol], m.Candles.Snapshot(), m.Candles.Cap())
	}
	if err := w.candles.SaveCandles(stored); err != nil {
		return fmt.Errorf("save candle snapshot: %w", err)
	}
	return nil
}
