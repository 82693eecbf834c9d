package watchdog

import (
	"context"
	"sync"
	"time"

	"coindog/internal/events"
	"coindog/internal/model"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 30, 0, time.UTC)

// fakeClock advances only when told to; After advances by d and fires at once.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

type fetchCall struct {
	symbol string
	since  int64
}

// fakeExchange serves flat one-minute candles up to the fake clock's now.
type fakeExchange struct {
	clock   *fakeClock
	markets map[string]model.MarketMeta
	price   map[string]float64

	mu    sync.Mutex
	calls []fetchCall
	err   error
}

func newFakeExchange(clock *fakeClock, metas ...model.MarketMeta) *fakeExchange {
	ex := &fakeExchange{
		clock:   clock,
		markets: make(map[string]model.MarketMeta),
		price:   make(map[string]float64),
	}
	for _, m := range metas {
		ex.markets[m.Symbol] = m
		ex.price[m.Symbol] = 100
	}
	return ex
}

func (ex *fakeExchange) LoadMarkets(ctx context.Context) (map[string]model.MarketMeta, error) {
	return ex.markets, nil
}

func (ex *fakeExchange) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64) ([]model.OHLCV, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.calls = append(ex.calls, fetchCall{symbol: symbol, since: since})
	if ex.err != nil {
		return nil, ex.err
	}

	const minute = int64(60_000)
	start := (since + minute - 1) / minute * minute
	end := ex.clock.Now().UnixMilli()
	p := ex.price[symbol]

	var rows []model.OHLCV
	for ts := start; ts <= end; ts += minute {
		rows = append(rows, model.OHLCV{float64(ts), p, p, p, p, 1})
	}
	return rows, nil
}

func (ex *fakeExchange) FetchBalance(ctx context.Context) (model.Balance, error) {
	return nil, model.ErrUnauthenticated
}

func (ex *fakeExchange) FetchStatus(ctx context.Context) (model.Status, error) {
	return model.Status{Status: "ok"}, nil
}

func (ex *fakeExchange) symbols() []string {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	out := make([]string, len(ex.calls))
	for i, c := range ex.calls {
		out[i] = c.symbol
	}
	return out
}

type memMarkets struct {
	list  []model.MarketMeta
	err   error
	saves int
}

func (s *memMarkets) LoadMarkets() ([]model.MarketMeta, error) { return s.list, s.err }

func (s *memMarkets) SaveMarkets(m []model.MarketMeta) error {
	s.saves++
	s.list = append([]model.MarketMeta(nil), m...)
	return nil
}

type memCandles struct {
	data map[string][]model.Candle
	err  error
}

func (s *memCandles) LoadCandles() (map[string][]model.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string][]model.Candle, len(s.data))
	for k, v := range s.data {
		out[k] = append([]model.Candle(nil), v...)
	}
	return out, nil
}

func (s *memCandles) SaveCandles(m map[string][]model.Candle) error {
	s.data = m
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Notify(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) last(kind events.Kind) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return events.Event{}, false
}

func meta(symbol string) model.MarketMeta {
	base, quote := symbol[:3], symbol[4:]
	return model.MarketMeta{
		Symbol:    symbol,
		Base:      base,
		Quote:     quote,
		Precision: model.Precision{Amount: 4, Price: 2},
		Limits:    model.Limits{Amount: model.MinMax{Min: 0.001}, Price: model.MinMax{Min: 1}},
	}
}
