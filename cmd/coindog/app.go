package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coindog/config"
	"coindog/internal/events"
	"coindog/internal/execution"
	"coindog/internal/model"
	"coindog/internal/store/jsonfile"
	"coindog/internal/store/sqlite"
	"coindog/internal/watchdog"
	"coindog/pkg/binance"
	"coindog/pkg/tracing"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	client   *binance.Client
	exchange model.Exchange
	markets  *jsonfile.Store
	candles  model.CandleStore
	sqlite   *sqlite.Store
	closers  []func() error
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	var opts []binance.Option
	switch {
	case cfg.Exchange.BaseURL != "":
		opts = append(opts, binance.WithBaseURL(cfg.Exchange.BaseURL))
	case cfg.Exchange.Testnet:
		opts = append(opts, binance.WithBaseURL(binance.TestnetBaseURL))
	}
	a.client = binance.NewClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, opts...)
	a.exchange = a.client

	if cfg.Tracing.Enabled {
		tracer, closer, err := tracing.Init(tracing.Config{
			ServiceName: cfg.Tracing.Service,
			Host:        cfg.Tracing.Host,
			Port:        cfg.Tracing.Port,
		})
		if err != nil {
			log.Warn("tracing disabled", zap.Error(err))
		} else {
			a.exchange = tracing.WrapExchange(a.client, tracer)
			a.closers = append(a.closers, closer.Close)
		}
	}

	candlesPath := cfg.Data.Candles
	if cfg.Data.SQLite != "" {
		candlesPath = ""
	}
	a.markets = jsonfile.New(cfg.Data.Markets, candlesPath)
	if candlesPath != "" {
		a.candles = a.markets
	}
	if cfg.Data.SQLite != "" {
		store, err := sqlite.New(sqlite.Config{DBPath: cfg.Data.SQLite}, log)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open candle database: %w", err)
		}
		a.sqlite = store
		a.candles = store
		a.closers = append(a.closers, store.Close)
	}
	return a, nil
}

// watchdog builds the scheduler over the shared collaborators.
func (a *app) watchdog(sink events.Sink, sim *execution.Simulator) (*watchdog.Watchdog, error) {
	return watchdog.New(a.cfg.Watchdog(), watchdog.Deps{
		Exchange:  a.exchange,
		Markets:   a.markets,
		Candles:   a.candles,
		Sink:      sink,
		Log:       a.log,
		Simulator: sim,
	})
}

// seedBalance returns the account balance, or the configured virtual quote
// balance when the exchange has no credentials.
func (a *app) seedBalance(ctx context.Context) (model.Balance, error) {
	bal, err := a.exchange.FetchBalance(ctx)
	if errors.Is(err, model.ErrUnauthenticated) {
		bal = model.Balance{}
		bal.Credit(a.cfg.Paper.Quote, decimal.NewFromFloat(a.cfg.Paper.Balance))
		a.log.Info("using virtual balance",
			zap.String("quote", a.cfg.Paper.Quote),
			zap.Float64("amount", a.cfg.Paper.Balance))
		return bal, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}
	return bal, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close", zap.Error(err))
		}
	}
	a.closers = nil
}
