package ringbuf

import (
	"testing"

	"coindog/internal/model"
)

func row(ts int64, close float64) model.OHLCV {
	return model.OHLCV{float64(ts), close, close + 1, close - 1, close, 1.234567}
}

func timestamps(b *Buffer) []int64 {
	out := make([]int64, 0, b.Len())
	for _, c := range b.Candles() {
		out = append(out, c.Timestamp)
	}
	return out
}

func equalTS(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuffer_AddAndEvict(t *testing.T) {
	b := New(3)

	if n := b.AddRows([]model.OHLCV{row(1, 10), row(2, 11), row(3, 12)}); n != 3 {
		t.Fatalf("expected 3 added, got %d", n)
	}
	if n := b.AddRows([]model.OHLCV{row(3, 12), row(4, 13)}); n != 1 {
		t.Fatalf("expected 1 added, got %d", n)
	}

	if got := timestamps(b); !equalTS(got, []int64{2, 3, 4}) {
		t.Fatalf("expected [2 3 4], got %v", got)
	}
	if b.Evicted() != 1 {
		t.Fatalf("expected evicted=1, got %d", b.Evicted())
	}
	if b.Dropped() != 1 {
		t.Fatalf("expected dropped=1, got %d", b.Dropped())
	}
	if b.FillRatio() != 1 {
		t.Fatalf("expected fill ratio 1, got %v", b.FillRatio())
	}
}

func TestBuffer_StaleInputIsNoop(t *testing.T) {
	b := New(5)
	b.AddRows([]model.OHLCV{row(10, 1), row(20, 2)})

	before := b.Snapshot()
	if n := b.AddRows(nil); n != 0 {
		t.Fatalf("empty add should return 0, got %d", n)
	}
	if n := b.AddRows([]model.OHLCV{row(5, 9), row(20, 9)}); n != 0 {
		t.Fatalf("stale add should return 0, got %d", n)
	}

	after := b.Candles()
	if len(after) != len(before) {
		t.Fatalf("len changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].Timestamp != after[i].Timestamp || before[i].Close != after[i].Close {
			t.Fatalf("candle %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestBuffer_OutOfOrderWithinBatch(t *testing.T) {
	b := New(0)
	b.AddRows([]model.OHLCV{row(1, 1), row(3, 3), row(2, 2), row(4, 4)})

	if got := timestamps(b); !equalTS(got, []int64{1, 3, 4}) {
		t.Fatalf("expected [1 3 4], got %v", got)
	}
	if b.Cap() != 0 || b.FillRatio() != 0 {
		t.Fatalf("unbounded buffer: cap=%d fill=%v", b.Cap(), b.FillRatio())
	}
}

func TestBuffer_StrictlyIncreasingUnderChurn(t *testing.T) {
	b := New(8)
	for round := 0; round < 20; round++ {
		base := int64(round * 5)
		b.AddRows([]model.OHLCV{row(base+3, 1), row(base, 1), row(base+6, 1), row(base+7, 1)})

		if b.Len() > b.Cap() {
			t.Fatalf("round %d: len %d exceeds cap %d", round, b.Len(), b.Cap())
		}
		cs := b.Candles()
		for i := 1; i < len(cs); i++ {
			if cs[i].Timestamp <= cs[i-1].Timestamp {
				t.Fatalf("round %d: not increasing at %d: %d <= %d", round, i, cs[i].Timestamp, cs[i-1].Timestamp)
			}
		}
	}
}

func TestBuffer_VolumeRounded(t *testing.T) {
	b := New(2)
	b.AddRows([]model.OHLCV{row(1, 10)})

	c, ok := b.Last()
	if !ok {
		t.Fatal("expected a last candle")
	}
	if c.Volume != 1.23 {
		t.Fatalf("expected volume 1.23, got %v", c.Volume)
	}
}

func TestBuffer_FirstLastEmpty(t *testing.T) {
	b := New(2)
	if _, ok := b.First(); ok {
		t.Fatal("first on empty should be false")
	}
	if _, ok := b.Last(); ok {
		t.Fatal("last on empty should be false")
	}
	if b.AverageInterval() != 0 || b.Rate() != 0 {
		t.Fatal("metrics on empty buffer should be zero")
	}
}

func TestBuffer_IntervalAndRate(t *testing.T) {
	b := New(10)
	b.AddRows([]model.OHLCV{row(0, 1), row(60_000, 1), row(120_000, 1), row(180_000, 1)})

	if got := b.AverageInterval(); got != 60_000 {
		t.Fatalf("expected interval 60000, got %v", got)
	}
	if got := b.Rate(); got != 1 {
		t.Fatalf("expected rate 1/min, got %v", got)
	}
	if got := b.FillRatio(); got != 0.4 {
		t.Fatalf("expected fill 0.4, got %v", got)
	}
	first, _ := b.First()
	last, _ := b.Last()
	if first.Timestamp != 0 || last.Timestamp != 180_000 {
		t.Fatalf("unexpected bounds %d..%d", first.Timestamp, last.Timestamp)
	}
}
