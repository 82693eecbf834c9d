// Package replay runs a stored candle snapshot back through the analysis
// path of the watch loop, candle by candle, to inspect the signals and the
// simulated orders it would have produced.
package replay

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"coindog/internal/events"
	"coindog/internal/execution"
	"coindog/internal/model"
	"coindog/internal/portfolio"
	"coindog/internal/ringbuf"
	"coindog/internal/strategy"
)

// maxGap caps the pause between two replayed candles.
const maxGap = 5 * time.Second

// Config controls a replay.
type Config struct {
	Capacity int     // window size per market, as in the live loop
	Speed    float64 // 0 = as fast as possible, 1 = real time, 100 = 100x
}

// Report summarises a replay.
type Report struct {
	Markets    int                     `json:"markets"`
	Candles    int                     `json:"candles"`
	Signals    map[model.Signal]int    `json:"signals"`
	Orders     int                     `json:"orders"`
	Rejections int                     `json:"rejections"`
	Last       map[string]model.Signal `json:"last"` // newest signal per market
	PnL        *portfolio.PnLSummary   `json:"pnl,omitempty"`
	Skipped    []string                `json:"skipped,omitempty"` // snapshot symbols not tracked
}

// Replayer feeds candles to the strategy engine and, when set, the
// simulator.
type Replayer struct {
	cfg    Config
	engine *strategy.Engine
	sim    *execution.Simulator
	sink   events.Sink
	log    *zap.Logger
}

// New creates a Replayer. sim and sink may be nil.
func New(cfg Config, engine *strategy.Engine, sim *execution.Simulator, sink events.Sink, log *zap.Logger) *Replayer {
	if sink == nil {
		sink = events.Nop
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Replayer{cfg: cfg, engine: engine, sim: sim, sink: sink, log: log.With(zap.String("component", "replay"))}
}

type step struct {
	market int
	candle model.Candle
}

type window struct {
	meta     model.MarketMeta
	buf      *ringbuf.Buffer
	position bool
}

// Run replays snapshot for the given markets in timestamp order. Analysis
// fields stored in the snapshot are discarded and recomputed.
func (r *Replayer) Run(ctx context.Context, markets []model.MarketMeta, snapshot map[string][]model.Candle) (Report, error) {
	rep := Report{
		Markets: len(markets),
		Signals: make(map[model.Signal]int),
		Last:    make(map[string]model.Signal),
	}

	windows := make([]window, len(markets))
	bySymbol := make(map[string]int, len(markets))
	var steps []step
	for i, m := range markets {
		windows[i] = window{meta: m, buf: ringbuf.New(r.cfg.Capacity)}
		bySymbol[m.Symbol] = i
		for _, c := range snapshot[m.Symbol] {
			steps = append(steps, step{market: i, candle: model.Candle{
				Timestamp: c.Timestamp, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
			}})
		}
	}
	for symbol := range snapshot {
		if _, ok := bySymbol[symbol]; !ok {
			rep.Skipped = append(rep.Skipped, symbol)
		}
	}
	sort.Strings(rep.Skipped)

	// Interleave markets; each market's own order is kept.
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].candle.Timestamp < steps[j].candle.Timestamp })

	if r.sim != nil {
		bal := r.sim.Balance()
		for i := range windows {
			free := bal.Get(windows[i].meta.Base).Free
			windows[i].position = free.IsPositive() && free.InexactFloat64() >= windows[i].meta.Limits.Amount.Min
		}
	}

	r.log.Info("replay started", zap.Int("markets", len(markets)), zap.Int("candles", len(steps)), zap.Float64("speed", r.cfg.Speed))

	var prevTS int64
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			r.log.Info("replay cancelled", zap.Int("candles", rep.Candles))
			return rep, err
		}
		if err := r.pause(ctx, prevTS, s.candle.Timestamp); err != nil {
			return rep, err
		}
		prevTS = s.candle.Timestamp

		w := &windows[s.market]
		if w.buf.Add(s.candle) == 0 {
			continue
		}
		rep.Candles++
		r.step(w, &rep)
	}

	if r.sim != nil {
		prices := make(map[string]float64, len(windows))
		for i := range windows {
			if last, ok := windows[i].buf.Last(); ok {
				prices[windows[i].meta.Symbol] = last.Close
			}
		}
		pnl := r.sim.Ledger().PnL().Summary(prices)
		rep.PnL = &pnl
	}

	r.log.Info("replay completed",
		zap.Int("candles", rep.Candles),
		zap.Int("orders", rep.Orders),
		zap.Int("rejections", rep.Rejections))
	return rep, nil
}

// step analyses w after one appended candle and acts on a new signal.
func (r *Replayer) step(w *window, rep *Report) {
	res := r.engine.Analyze(w.buf.Candles(), w.meta.Precision.Price, w.position)
	if res.Latest == model.SignalNone {
		return
	}
	rep.Signals[res.Latest]++
	rep.Last[w.meta.Symbol] = res.Latest
	if r.sim == nil || !res.Latest.Actionable() {
		return
	}

	last, _ := w.buf.Last()
	order, rej := r.sim.Execute(w.meta, res.Latest, last.Close, last.Timestamp)
	if rej != nil {
		rep.Rejections++
		r.sink.Notify(events.Event{Kind: events.KindRejected, Symbol: w.meta.Symbol, At: last.Time(), Rejection: rej})
		return
	}
	rep.Orders++
	w.position = order.Signal == model.SignalBuy
	r.sink.Notify(events.Event{Kind: events.KindOrder, Symbol: w.meta.Symbol, At: last.Time(), Order: &order})
}

// pause waits for the scaled gap between two candle timestamps.
func (r *Replayer) pause(ctx context.Context, prev, next int64) error {
	if r.cfg.Speed <= 0 || prev == 0 || next <= prev {
		return nil
	}
	gap := time.Duration(float64(time.Duration(next-prev)*time.Millisecond) / r.cfg.Speed)
	if gap > maxGap {
		gap = maxGap
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(gap):
		return nil
	}
}
