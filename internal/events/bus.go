package events

import (
	"sync"

	"go.uber.org/zap"
)

// Bus broadcasts events to N subscriber channels. If a subscriber channel
// is full the event is dropped for that subscriber so a slow consumer never
// stalls the watch loop.
type Bus struct {
	mu      sync.RWMutex
	outputs []chan Event
	bufSize int
	closed  bool

	// OnDrop is called when an event is dropped for a subscriber.
	// subscriberIdx is the 0-based index of the slow consumer.
	OnDrop func(subscriberIdx int, e Event)

	log *zap.Logger
}

// NewBus creates a Bus with the given buffer size for output channels.
func NewBus(outputBufferSize int, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{bufSize: outputBufferSize, log: log}
}

// Subscribe creates and returns a new output channel.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, b.bufSize)
	b.mu.Lock()
	b.outputs = append(b.outputs, ch)
	b.mu.Unlock()
	return ch
}

// Notify implements Sink. It never blocks.
func (b *Bus) Notify(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for i, ch := range b.outputs {
		select {
		case ch <- e:
		default:
			if b.OnDrop != nil {
				b.OnDrop(i, e)
			} else {
				b.log.Warn("subscriber channel full, dropping event",
					zap.Int("subscriber", i), zap.String("kind", string(e.Kind)))
			}
		}
	}
}

// Close closes every subscriber channel. Later events are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.outputs {
		close(ch)
	}
}

// ChannelStat reports the saturation of one subscriber channel.
type ChannelStat struct {
	Len int
	Cap int
}

// ChannelStats returns (length, capacity) for each subscriber channel.
func (b *Bus) ChannelStats() []ChannelStat {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stats := make([]ChannelStat, len(b.outputs))
	for i, ch := range b.outputs {
		stats[i] = ChannelStat{Len: len(ch), Cap: cap(ch)}
	}
	return stats
}
