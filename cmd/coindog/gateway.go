package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"coindog/config"
	"coindog/internal/api"
	"coindog/internal/events"
	"coindog/internal/gateway"
	"coindog/internal/metrics"
	redisstore "coindog/internal/store/redis"
)

const defaultGatewayAddr = ":8080"

// runGateway serves the websocket stream and the read-only market routes
// from the events a watch process publishes to redis.
func runGateway(ctx context.Context, cfg *config.Config, log *zap.Logger, _ []string) error {
	start := time.Now()
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	err := rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("gateway needs redis: %w", err)
	}

	hub := gateway.NewHub(cfg.HTTP.ReplaySize, log)
	health := metrics.NewHealthStatus()
	health.StartLivenessChecker(ctx, rdb, nil, livenessInterval)

	relay := gateway.NewRelay(events.Multi{hub, health}, rdb, redisstore.EventsChannel(cfg.Redis.Prefix), log)
	go relay.Run(ctx)
	go hub.StartMetricsBroadcast(ctx, start, systemBroadcast)

	mux := api.NewRouter(api.Deps{
		Markets: hub,
		Health:  health,
		Metrics: metrics.Handler(nil),
		Start:   start,
	})
	gateway.RegisterRoutes(mux, hub)

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = defaultGatewayAddr
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go serve(log, srv)

	<-ctx.Done()
	stopWithTimeout(log, "gateway", srv.Shutdown)
	return nil
}
