// Package gateway streams watch loop events to WebSocket clients.
//
// The Hub is an events.Sink. Each event is routed to a channel, wrapped in
// an envelope carrying global and per-channel sequence numbers, kept in a
// per-channel replay buffer and fanned out to the clients subscribed to it:
//
//	market:{symbol}  fetched/analyzed market summaries
//	scheduler        pause statistics
//	orders           simulated orders and rejections
//	status           lifecycle events
//	system           runtime statistics (StartMetricsBroadcast)
package gateway

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"coindog/internal/events"
)

const (
	ChannelScheduler = "scheduler"
	ChannelOrders    = "orders"
	ChannelStatus    = "status"
	ChannelSystem    = "system"

	marketPrefix = "market:"
)

// MarketChannel returns the channel carrying summaries for symbol.
func MarketChannel(symbol string) string { return marketPrefix + symbol }

// Hub manages WebSocket clients and keeps the latest state per channel.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	// Per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64

	// Per-channel replay buffers for gap backfill
	replayBufs map[string]*ReplayBuffer
	replaySize int

	markets   map[string]events.MarketSummary
	scheduler *events.SchedulerStats

	// Event-to-broadcast latency
	Latency *LatencyTracker

	Broadcaster *Broadcaster

	now func() time.Time
	log *zap.Logger
}

type latestEntry struct {
	Data []byte
	TS   time.Time
	Seq  int64
}

// NewHub creates a Hub keeping replaySize envelopes per channel.
func NewHub(replaySize int, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		replaySize:  replaySize,
		markets:     make(map[string]events.MarketSummary),
		Latency:     NewLatencyTracker(10000),
		now:         time.Now,
		log:         log.With(zap.String("component", "gateway")),
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Notify implements events.Sink.
func (h *Hub) Notify(e events.Event) {
	var (
		channel string
		payload interface{} = e
	)
	switch e.Kind {
	case events.KindFetched, events.KindAnalyzed:
		if e.Market == nil {
			return
		}
		channel = MarketChannel(e.Market.Symbol)
		payload = e.Market
		h.mu.Lock()
		h.markets[e.Market.Symbol] = *e.Market
		h.mu.Unlock()
	case events.KindPause:
		if e.Scheduler == nil {
			return
		}
		channel = ChannelScheduler
		payload = e.Scheduler
		st := *e.Scheduler
		h.mu.Lock()
		h.scheduler = &st
		h.mu.Unlock()
	case events.KindOrder, events.KindRejected:
		channel = ChannelOrders
	case events.KindFetching, events.KindAnalyzing:
		return
	default:
		channel = ChannelStatus
	}

	data, err := sonic.Marshal(payload)
	if err != nil {
		h.log.Warn("encode event", zap.String("kind", string(e.Kind)), zap.Error(err))
		return
	}
	if !e.At.IsZero() {
		if lag := h.now().Sub(e.At); lag >= 0 {
			h.Latency.Record(float64(lag.Microseconds()) / 1000.0)
		}
	}
	h.Broadcaster.Broadcast(channel, data)
}

// Markets returns the latest summary of every market seen, sorted by symbol.
func (h *Hub) Markets() []events.MarketSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]events.MarketSummary, 0, len(h.markets))
	for _, m := range h.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Market returns the latest summary for symbol.
func (h *Hub) Market(symbol string) (events.MarketSummary, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.markets[symbol]
	return m, ok
}

// Scheduler returns the latest pause statistics, if any.
func (h *Hub) Scheduler() (events.SchedulerStats, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.scheduler == nil {
		return events.SchedulerStats{}, false
	}
	return *h.scheduler, true
}

// Register attaches an upgraded connection. Clients that sent lastTS only
// receive latest entries newer than it.
func (h *Hub) Register(conn *websocket.Conn, lastTS string) *Client {
	client := newClient(h, conn)
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info("ws client connected", zap.Int("clients", count))

	go client.sendInitialState(lastTS)
	go client.writePump()
	go client.readPump()
	return client
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// GetLatestAll returns a copy of the latest payload of every channel.
func (h *Hub) GetLatestAll() map[string][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string][]byte, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// Channels returns the known channel names, sorted.
func (h *Hub) Channels() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.channelSeqs))
	for ch := range h.channelSeqs {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// GetReplayRange returns buffered envelopes for a channel in [fromSeq, toSeq].
func (h *Hub) GetReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, exists := h.replayBufs[channel]
	h.mu.RUnlock()
	if !exists {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	result := make([][]byte, len(entries))
	for i, e := range entries {
		result[i] = e.Data
	}
	return result
}

// GetChannelSeq returns the current sequence number for a channel.
func (h *Hub) GetChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartMetricsBroadcast publishes runtime statistics on the system channel
// every interval until ctx is cancelled.
func (h *Hub) StartMetricsBroadcast(ctx context.Context, start time.Time, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := CollectMetrics(start, h.now())
			m.Clients = h.ClientCount()
			m.LatencyP50, m.LatencyP95, m.LatencyP99 = h.Latency.Percentiles()
			data, err := sonic.Marshal(m)
			if err != nil {
				continue
			}
			h.Broadcaster.Broadcast(ChannelSystem, data)
		}
	}
}
