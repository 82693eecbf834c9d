package gateway

import (
	"context"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"coindog/internal/events"
)

// Relay replays the Redis events channel written by the redis publisher
// into a sink, usually a Hub, so the gateway can run apart from the watch
// process.
type Relay struct {
	sink    events.Sink
	rdb     *goredis.Client
	channel string
	log     *zap.Logger
}

// NewRelay creates a Relay reading channel (e.g. "coindog:events").
func NewRelay(sink events.Sink, rdb *goredis.Client, channel string, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{sink: sink, rdb: rdb, channel: channel, log: log.With(zap.String("component", "relay"))}
}

// Run subscribes and forwards every message. Blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()
	r.log.Info("relay subscribed", zap.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.forward(msg.Payload)
		}
	}
}

func (r *Relay) forward(payload string) {
	var e events.Event
	if err := sonic.UnmarshalString(payload, &e); err != nil {
		r.log.Warn("relay decode", zap.Error(err))
		return
	}
	r.sink.Notify(e)
}
