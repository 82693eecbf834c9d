// Package redis publishes watch loop events to Redis: every event on a
// pub/sub channel, the latest summary of each market under a key, and the
// simulated orders on a capped stream.
package redis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"coindog/internal/events"
)

const (
	defaultPrefix    = "coindog"
	defaultLatestTTL = 30 * time.Minute
	defaultQueueSize = 1024
	ordersMaxLen     = 10000
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
	Prefix   string // key prefix, default "coindog"
	Queue    int    // pending event buffer, default 1024
}

// EventsChannel is the pub/sub channel carrying every event.
func EventsChannel(prefix string) string {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return prefix + ":events"
}

// message is one pipelined write.
type message struct {
	channel string // PUBLISH target
	key     string // SET target, empty to skip
	stream  string // XADD target, empty to skip
	payload string
}

// Publisher is an events.Sink that mirrors events into Redis. Notify never
// blocks: events are queued and written by Run. While the circuit breaker
// is open events are dropped.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	prefix string
	queue  chan events.Event
	log    *zap.Logger

	send func(ctx context.Context, batch []message) error

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a Publisher and pings the server.
func New(cfg Config, cb *CircuitBreaker, log *zap.Logger) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	p := newPublisher(cfg, cb, log)
	p.client = client
	p.send = p.pipeline
	p.log.Info("redis connected", zap.String("addr", cfg.Addr))
	return p, nil
}

func newPublisher(cfg Config, cb *CircuitBreaker, log *zap.Logger) *Publisher {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.Queue <= 0 {
		cfg.Queue = defaultQueueSize
	}
	if cb == nil {
		cb = NewCircuitBreaker(5, 10*time.Second)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		cb:     cb,
		prefix: cfg.Prefix,
		queue:  make(chan events.Event, cfg.Queue),
		log:    log.With(zap.String("component", "redis")),
	}
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker returns the circuit breaker guarding writes.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// Notify implements events.Sink.
func (p *Publisher) Notify(e events.Event) {
	select {
	case p.queue <- e:
	default:
		p.dropped.Add(1)
	}
}

// Run drains queued events into Redis, one pipeline per drained batch.
// Blocks until ctx is cancelled; pending events are flushed before return.
func (p *Publisher) Run(ctx context.Context) {
	batch := make([]events.Event, 0, 64)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-p.queue:
					batch = append(batch, e)
				default:
					p.flush(context.WithoutCancel(ctx), batch)
					return
				}
			}
		case e := <-p.queue:
			batch = append(batch, e)
		drain:
			for len(batch) < cap(batch) {
				select {
				case e := <-p.queue:
					batch = append(batch, e)
				default:
					break drain
				}
			}
			p.flush(ctx, batch)
			batch = batch[:0]
		}
	}
}

// Published returns the number of events written.
func (p *Publisher) Published() uint64 { return p.published.Load() }

// Dropped returns the number of events lost to a full queue, an open
// breaker or a failed pipeline.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

func (p *Publisher) flush(ctx context.Context, batch []events.Event) {
	if len(batch) == 0 {
		return
	}
	msgs := make([]message, 0, len(batch))
	for i := range batch {
		m, err := p.encode(&batch[i])
		if err != nil {
			p.log.Warn("encode event", zap.String("kind", string(batch[i].Kind)), zap.Error(err))
			p.dropped.Add(1)
			continue
		}
		msgs = append(msgs, m)
	}

	err := p.cb.Execute(func() error { return p.send(ctx, msgs) })
	if err != nil {
		p.dropped.Add(uint64(len(msgs)))
		if err != ErrCircuitOpen {
			p.log.Warn("redis pipeline", zap.Int("events", len(msgs)), zap.Error(err))
		}
		return
	}
	p.published.Add(uint64(len(msgs)))
}

func (p *Publisher) encode(e *events.Event) (message, error) {
	data, err := sonic.MarshalString(e)
	if err != nil {
		return message{}, err
	}
	m := message{channel: EventsChannel(p.prefix), payload: data}
	switch e.Kind {
	case events.KindFetched, events.KindAnalyzed:
		if e.Market != nil {
			m.key = p.prefix + ":market:" + e.Market.Symbol
		}
	case events.KindOrder:
		m.stream = p.prefix + ":orders"
	}
	return m, nil
}

// pipeline writes a batch in one round trip: PUBLISH for every message,
// SET with TTL for market summaries and a capped XADD for orders.
func (p *Publisher) pipeline(ctx context.Context, batch []message) error {
	pipe := p.client.Pipeline()
	for _, m := range batch {
		pipe.Publish(ctx, m.channel, m.payload)
		if m.key != "" {
			pipe.Set(ctx, m.key, m.payload, defaultLatestTTL)
		}
		if m.stream != "" {
			pipe.XAdd(ctx, &goredis.XAddArgs{
				Stream: m.stream,
				MaxLen: ordersMaxLen,
				Approx: true,
				Values: map[string]interface{}{"data": m.payload},
			})
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
