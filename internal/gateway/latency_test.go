package gateway

import (
	"math"
	"testing"
)

func TestLatencyTracker_Empty(t *testing.T) {
	lt := NewLatencyTracker(100)
	if s := lt.Summary(); s != (LatencySummary{}) {
		t.Fatalf("expected zero summary, got %+v", s)
	}
}

func TestLatencyTracker_SingleSample(t *testing.T) {
	lt := NewLatencyTracker(100)
	lt.Record(42.5)
	p50, p95, p99 := lt.Percentiles()
	if p50 != 42.5 || p95 != 42.5 || p99 != 42.5 {
		t.Fatalf("expected 42.5 everywhere, got %v %v %v", p50, p95, p99)
	}
}

func TestLatencyTracker_Percentiles(t *testing.T) {
	lt := NewLatencyTracker(1000)
	for i := 100; i >= 1; i-- {
		lt.Record(float64(i))
	}
	s := lt.Summary()
	if s.Count != 100 || s.Max != 100 {
		t.Fatalf("expected 100 samples with max 100, got %+v", s)
	}
	if math.Abs(s.P50-50.5) > 1e-9 {
		t.Fatalf("expected p50 50.5, got %v", s.P50)
	}
	if math.Abs(s.P95-95.05) > 1e-9 {
		t.Fatalf("expected p95 95.05, got %v", s.P95)
	}
	if math.Abs(s.P99-99.01) > 1e-9 {
		t.Fatalf("expected p99 99.01, got %v", s.P99)
	}
}

func TestLatencyTracker_Wraparound(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 1; i <= 20; i++ {
		lt.Record(float64(i))
	}
	if lt.Count() != 10 {
		t.Fatalf("expected 10 samples, got %d", lt.Count())
	}
	s := lt.Summary()
	if math.Abs(s.P50-15.5) > 1e-9 || s.Max != 20 {
		t.Fatalf("expected p50 15.5 and max 20 over 11..20, got %+v", s)
	}
}
