package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coindog/config"
	"coindog/internal/api"
	"coindog/internal/events"
	"coindog/internal/execution"
	"coindog/internal/gateway"
	"coindog/internal/metrics"
	"coindog/internal/notification"
	"coindog/internal/portfolio"
	redisstore "coindog/internal/store/redis"
)

const (
	shutdownTimeout   = 5 * time.Second
	livenessInterval  = 15 * time.Second
	systemBroadcast   = 5 * time.Second
	viewBufferSize    = 256
	breakerMaxFailure = 5
	breakerReset      = 10 * time.Second
)

func runWatch(ctx context.Context, cfg *config.Config, log *zap.Logger, _ []string) error {
	start := time.Now()
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	background := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(runCtx)
		}()
	}

	m := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()
	hub := gateway.NewHub(cfg.HTTP.ReplaySize, log)
	sinks := events.Multi{events.NewLogSink(log), m, health, hub}

	// Redis
	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		cb := redisstore.NewCircuitBreaker(breakerMaxFailure, breakerReset)
		cb.OnStateChange = func(from, to redisstore.State) {
			m.BreakerStateChanged(int(to))
			log.Warn("redis circuit breaker", zap.Stringer("from", from), zap.Stringer("to", to))
		}
		pub, err := redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, cb, log)
		if err != nil {
			log.Warn("redis publisher disabled", zap.Error(err))
		} else {
			rdb = pub.Client()
			sinks = append(sinks, pub)
			background(pub.Run)
			a.closers = append(a.closers, pub.Close)
		}
	}

	// Notifications
	notifiers := []notification.Notifier{notification.NewLogNotifier(log)}
	if cfg.Notify.TelegramToken != "" {
		tg, err := notification.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, "", log)
		if err != nil {
			log.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, tg)
		}
	}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	dispatcher := notification.NewDispatcher(cfg.Notify.Queue, log, notifiers...)
	sinks = append(sinks, dispatcher)
	background(dispatcher.Run)

	// Paper trading
	var (
		sim     *execution.Simulator
		journal *execution.Journal
	)
	if cfg.Paper.Enabled {
		bal, err := a.seedBalance(ctx)
		if err != nil {
			return err
		}
		opts := []execution.Option{execution.WithLogger(log)}
		if cfg.Data.Journal != "" {
			journal, err = execution.NewJournal(cfg.Data.Journal)
			if err != nil {
				return err
			}
			a.closers = append(a.closers, journal.Close)
			opts = append(opts, execution.WithRecorder(journal))
		}
		sim = execution.NewSimulator(bal, decimal.NewFromFloat(cfg.Paper.Stake), portfolio.NewLedger(), opts...)
	}

	// Status view
	var (
		bus  *events.Bus
		feed <-chan events.Event
	)
	if cfg.Watch.TUI {
		bus = events.NewBus(viewBufferSize, log)
		bus.OnDrop = m.EventDropped
		feed = bus.Subscribe()
		sinks = append(sinks, bus)
	}

	// HTTP
	var servers []*http.Server
	if cfg.HTTP.MetricsAddr != "" {
		ms := metrics.NewServer(cfg.HTTP.MetricsAddr, health, log)
		ms.Start()
		defer stopWithTimeout(log, "metrics server", ms.Stop)
	}
	if cfg.HTTP.Addr != "" {
		mux := api.NewRouter(api.Deps{
			Markets:   hub,
			Simulator: sim,
			Journal:   journal,
			Health:    health,
			Metrics:   metrics.Handler(nil),
			Start:     start,
		})
		gateway.RegisterRoutes(mux, hub)
		srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}
		servers = append(servers, srv)
		go serve(log, srv)
		background(func(ctx context.Context) { hub.StartMetricsBroadcast(ctx, start, systemBroadcast) })
	}
	for _, srv := range servers {
		defer stopWithTimeout(log, "http server", srv.Shutdown)
	}

	var sqlDB *sql.DB
	if a.sqlite != nil {
		sqlDB = a.sqlite.DB()
	}
	health.StartLivenessChecker(runCtx, rdb, sqlDB, livenessInterval)

	wd, err := a.watchdog(sinks, sim)
	if err != nil {
		return err
	}
	if err := wd.Initialize(ctx); err != nil {
		return err
	}

	var runErr error
	if bus != nil {
		runErr = runWithView(runCtx, wd, feed, sim, bus)
	} else {
		runErr = wd.Run(runCtx)
	}
	if runErr != nil {
		health.SetError(runErr)
		log.Error("watch stopped", zap.Error(runErr))
	}

	if err := wd.SaveCandles(); err != nil {
		log.Error("save candles", zap.Error(err))
	}
	return runErr
}

// runWithView runs the loop in the background and the status view in the
// foreground. Quitting the view stops the loop.
func runWithView(ctx context.Context, wd watcher, feed <-chan events.Event, sim *execution.Simulator, bus *events.Bus) error {
	p := tea.NewProgram(newView(sim), tea.WithAltScreen(), tea.WithContext(ctx))

	done := make(chan error, 1)
	go func() {
		done <- wd.Run(ctx)
		p.Quit()
	}()
	go func() {
		for e := range feed {
			p.Send(eventMsg(e))
		}
	}()

	_, viewErr := p.Run()
	wd.Stop()
	err := <-done
	bus.Close()
	if err == nil && viewErr != nil && !errors.Is(viewErr, tea.ErrProgramKilled) {
		err = viewErr
	}
	return err
}

// watcher is the part of the watchdog the view loop drives.
type watcher interface {
	Run(ctx context.Context) error
	Stop()
}

func serve(log *zap.Logger, srv *http.Server) {
	log.Info("http server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server", zap.Error(err))
	}
}

func stopWithTimeout(log *zap.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		log.Warn("shutdown", zap.String("component", name), zap.Error(err))
	}
}
