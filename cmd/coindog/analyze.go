package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coindog/config"
	"coindog/internal/events"
	"coindog/internal/execution"
	"coindog/internal/indicator"
	"coindog/internal/model"
	"coindog/internal/portfolio"
	"coindog/internal/replay"
	"coindog/internal/strategy"
)

// runAnalyze replays the stored candle snapshot of the tracked markets
// through the signal rules, simulating orders with --trade.
func runAnalyze(ctx context.Context, cfg *config.Config, log *zap.Logger, _ []string) error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if a.candles == nil {
		return errors.New("no candle snapshot configured (data.candles or data.sqlite)")
	}
	markets, err := a.markets.LoadMarkets()
	if err != nil {
		return err
	}
	snapshot, err := a.candles.LoadCandles()
	if err != nil {
		return err
	}

	var sim *execution.Simulator
	if cfg.Paper.Enabled {
		bal := model.Balance{}
		bal.Credit(cfg.Paper.Quote, decimal.NewFromFloat(cfg.Paper.Balance))
		sim = execution.NewSimulator(bal, decimal.NewFromFloat(cfg.Paper.Stake), portfolio.NewLedger(), execution.WithLogger(log))
	}

	engine := strategy.NewEngine(
		indicator.NewSupertrend(cfg.Trend.Period, cfg.Trend.Multiplier),
		strategy.NewTrendFollow(cfg.Trend.Period),
	)
	r := replay.New(replay.Config{Capacity: cfg.Watch.Capacity}, engine, sim, events.NewLogSink(log), log)
	rep, err := r.Run(ctx, markets, snapshot)
	if err != nil {
		return err
	}

	fmt.Printf("markets: %d  candles: %d  orders: %d  rejections: %d\n",
		rep.Markets, rep.Candles, rep.Orders, rep.Rejections)
	for _, s := range rep.Skipped {
		fmt.Printf("skipped %s: not tracked\n", s)
	}

	t := newTable("symbol", "candles", "last signal")
	counts := make(map[string]int, len(snapshot))
	for symbol, candles := range snapshot {
		counts[symbol] = len(candles)
	}
	for _, m := range markets {
		t.Row(m.Symbol, strconv.Itoa(counts[m.Symbol]), signal(rep.Last[m.Symbol]))
	}
	fmt.Println(t.Render())

	kinds := make([]string, 0, len(rep.Signals))
	for s := range rep.Signals {
		kinds = append(kinds, string(s))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("%-5s %d\n", k, rep.Signals[model.Signal(k)])
	}

	if rep.PnL != nil {
		fmt.Printf("\nrealized: %s  unrealized: %s  total: %s  open positions: %d\n",
			rep.PnL.RealizedPnL.StringFixed(2), rep.PnL.UnrealizedPnL.StringFixed(2),
			rep.PnL.TotalPnL.StringFixed(2), rep.PnL.OpenPositions)
		fmt.Print(formatBalance(sim.Balance()))
	}
	return nil
}
