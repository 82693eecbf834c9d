package gateway

import (
	"sync"
	"time"
)

// replayEntry holds one broadcast envelope.
type replayEntry struct {
	Seq  int64
	TS   time.Time
	Data []byte
}

// ReplayBuffer is a fixed-size circular buffer of recent envelopes for one
// channel, queried by sequence range for client gap backfill.
type ReplayBuffer struct {
	mu   sync.RWMutex
	buf  []replayEntry
	pos  int // next write position
	full bool
}

// NewReplayBuffer creates a replay buffer with the given capacity.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &ReplayBuffer{buf: make([]replayEntry, capacity)}
}

// Push appends an envelope, overwriting the oldest entry when full.
// data is retained, not copied.
func (rb *ReplayBuffer) Push(seq int64, ts time.Time, data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.buf[rb.pos] = replayEntry{Seq: seq, TS: ts, Data: data}
	rb.pos = (rb.pos + 1) % len(rb.buf)
	if rb.pos == 0 {
		rb.full = true
	}
}

// Range returns the entries with seq in [fromSeq, toSeq], oldest first.
func (rb *ReplayBuffer) Range(fromSeq, toSeq int64) []replayEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	var result []replayEntry
	rb.each(func(e replayEntry) {
		if e.Seq >= fromSeq && e.Seq <= toSeq {
			result = append(result, e)
		}
	})
	return result
}

// After returns the entries stamped strictly after ts, oldest first.
func (rb *ReplayBuffer) After(ts time.Time) []replayEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	var result []replayEntry
	rb.each(func(e replayEntry) {
		if e.TS.After(ts) {
			result = append(result, e)
		}
	})
	return result
}

// Len returns the number of entries currently in the buffer.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.buf)
	}
	return rb.pos
}

func (rb *ReplayBuffer) each(fn func(replayEntry)) {
	if !rb.full {
		for _, e := range rb.buf[:rb.pos] {
			fn(e)
		}
		return
	}
	for i := 0; i < len(rb.buf); i++ {
		fn(rb.buf[(rb.pos+i)%len(rb.buf)])
	}
}
