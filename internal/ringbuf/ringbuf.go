// Package ringbuf provides the bounded, timestamp-ordered candle window kept
// per market. Appends never reorder: a candle is accepted only when its
// timestamp is strictly after the newest one held, and the oldest candles are
// evicted once the window exceeds its capacity.
package ringbuf

import (
	"coindog/internal/model"
)

// Buffer is a FIFO window of candles with strictly increasing timestamps.
// It is not safe for concurrent use; the watch loop is its only writer.
type Buffer struct {
	buf      []model.Candle
	capacity int // 0 = unbounded

	evicted uint64
	dropped uint64 // rejected as duplicate or out of order
}

// New creates a buffer holding at most capacity candles.
// A capacity <= 0 keeps every candle.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	hint := capacity
	if hint == 0 || hint > 1024 {
		hint = 64
	}
	return &Buffer{
		buf:      make([]model.Candle, 0, hint),
		capacity: capacity,
	}
}

// Add appends candles whose timestamp is after the current last one, in the
// given order, then evicts from the front down to capacity. Returns the
// number of candles accepted. Empty or stale input is a no-op.
func (b *Buffer) Add(candles ...model.Candle) int {
	added := 0
	for _, c := range candles {
		if n := len(b.buf); n > 0 && c.Timestamp <= b.buf[n-1].Timestamp {
			b.dropped++
			continue
		}
		b.buf = append(b.buf, c)
		added++
	}
	if added > 0 {
		b.evict()
	}
	return added
}

// AddRows converts raw exchange rows and appends them like Add.
func (b *Buffer) AddRows(rows []model.OHLCV) int {
	if len(rows) == 0 {
		return 0
	}
	candles := make([]model.Candle, len(rows))
	for i, r := range rows {
		candles[i] = model.NewCandle(r)
	}
	return b.Add(candles...)
}

// evict drops the oldest candles until the window fits its capacity.
func (b *Buffer) evict() {
	if b.capacity == 0 || len(b.buf) <= b.capacity {
		return
	}
	over := len(b.buf) - b.capacity
	n := copy(b.buf, b.buf[over:])
	clear(b.buf[n:])
	b.buf = b.buf[:n]
	b.evicted += uint64(over)
}

// First returns the oldest candle.
func (b *Buffer) First() (model.Candle, bool) {
	if len(b.buf) == 0 {
		return model.Candle{}, false
	}
	return b.buf[0], true
}

// Last returns the newest candle.
func (b *Buffer) Last() (model.Candle, bool) {
	if len(b.buf) == 0 {
		return model.Candle{}, false
	}
	return b.buf[len(b.buf)-1], true
}

// Candles returns the window oldest first. The slice aliases the buffer so
// the analysis passes can annotate candles in place; it is invalidated by
// the next Add.
func (b *Buffer) Candles() []model.Candle {
	return b.buf
}

// Snapshot returns a copy of the window.
func (b *Buffer) Snapshot() []model.Candle {
	out := make([]model.Candle, len(b.buf))
	copy(out, b.buf)
	return out
}

// Len returns the current number of candles.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Cap returns the configured capacity, 0 when unbounded.
func (b *Buffer) Cap() int {
	return b.capacity
}

// Evicted returns the number of candles dropped from the front.
func (b *Buffer) Evicted() uint64 {
	return b.evicted
}

// Dropped returns the number of candles rejected as duplicate or stale.
func (b *Buffer) Dropped() uint64 {
	return b.dropped
}

// AverageInterval is the mean gap in milliseconds between consecutive
// candles, 0 with fewer than two.
func (b *Buffer) AverageInterval() float64 {
	n := len(b.buf)
	if n < 2 {
		return 0
	}
	return float64(b.buf[n-1].Timestamp-b.buf[0].Timestamp) / float64(n-1)
}

// FillRatio is Len/Cap, 0 for an unbounded buffer.
func (b *Buffer) FillRatio() float64 {
	if b.capacity == 0 {
		return 0
	}
	return float64(len(b.buf)) / float64(b.capacity)
}

// Rate is the number of candles per minute implied by AverageInterval.
func (b *Buffer) Rate() float64 {
	avg := b.AverageInterval()
	if avg <= 0 {
		return 0
	}
	return 60_000 / avg
}
