package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"coindog/internal/events"
	"coindog/internal/model"
)

func TestMetricsFollowEvents(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	m.Notify(events.Event{Kind: events.KindFetching, Symbol: "BTC/USDT", At: t0})
	m.Notify(events.Event{Kind: events.KindFetched, Symbol: "BTC/USDT", At: t0.Add(200 * time.Millisecond),
		Market: &events.MarketSummary{Symbol: "BTC/USDT", Candles: 42, Added: 3, RPM: 12.5}})
	m.Notify(events.Event{Kind: events.KindAnalyzed, Symbol: "BTC/USDT", At: t0,
		Market: &events.MarketSummary{Symbol: "BTC/USDT", Uptrend: true}})
	m.Notify(events.Event{Kind: events.KindPause, At: t0,
		Scheduler: &events.SchedulerStats{QueueDepth: 4, RPM: 55, NextDelay: 1500 * time.Millisecond}})
	m.Notify(events.Event{Kind: events.KindOrder, Order: &model.Order{Symbol: "BTC/USDT", Signal: model.SignalBuy}})
	m.Notify(events.Event{Kind: events.KindRejected, Rejection: &model.Rejection{Reason: "no funds"}})

	if v := testutil.ToFloat64(m.FetchesTotal.WithLabelValues("BTC/USDT")); v != 1 {
		t.Fatalf("expected 1 fetch, got %v", v)
	}
	if v := testutil.ToFloat64(m.CandlesAdded.WithLabelValues("BTC/USDT")); v != 3 {
		t.Fatalf("expected 3 candles added, got %v", v)
	}
	if v := testutil.ToFloat64(m.Candles.WithLabelValues("BTC/USDT")); v != 42 {
		t.Fatalf("expected 42 candles, got %v", v)
	}
	if v := testutil.ToFloat64(m.MarketRPM.WithLabelValues("BTC/USDT")); v != 12.5 {
		t.Fatalf("expected market rpm 12.5, got %v", v)
	}
	if v := testutil.ToFloat64(m.Uptrend.WithLabelValues("BTC/USDT")); v != 1 {
		t.Fatalf("expected uptrend 1, got %v", v)
	}
	if v := testutil.ToFloat64(m.QueueDepth); v != 4 {
		t.Fatalf("expected queue depth 4, got %v", v)
	}
	if v := testutil.ToFloat64(m.NextDelay); v != 1.5 {
		t.Fatalf("expected next delay 1.5, got %v", v)
	}
	if v := testutil.ToFloat64(m.OrdersTotal.WithLabelValues("BTC/USDT", "BUY")); v != 1 {
		t.Fatalf("expected 1 order, got %v", v)
	}
	if v := testutil.ToFloat64(m.RejectionsTotal.WithLabelValues("no funds")); v != 1 {
		t.Fatalf("expected 1 rejection, got %v", v)
	}
	if n := testutil.CollectAndCount(m.FetchDur); n != 1 {
		t.Fatalf("expected fetch histogram collected, got %d", n)
	}
}

func TestBreakerAndDrops(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.BreakerStateChanged(1)
	m.BreakerStateChanged(2)
	m.BreakerStateChanged(0)
	m.BreakerStateChanged(1)
	if v := testutil.ToFloat64(m.RedisBreakerTrip); v != 2 {
		t.Fatalf("expected 2 trips, got %v", v)
	}
	if v := testutil.ToFloat64(m.RedisBreaker); v != 1 {
		t.Fatalf("expected state 1, got %v", v)
	}

	m.EventDropped(2, events.Event{})
	if v := testutil.ToFloat64(m.EventDropsTotal.WithLabelValues("2")); v != 1 {
		t.Fatalf("expected 1 drop, got %v", v)
	}
}

func TestHealthz(t *testing.T) {
	h := NewHealthStatus()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.StartedAt = t0
	h.now = func() time.Time { return t0.Add(time.Minute) }

	get := func() (int, healthReport) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		var r healthReport
		if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return rec.Code, r
	}

	if code, r := get(); code != http.StatusServiceUnavailable || r.Status != "unhealthy" {
		t.Fatalf("expected unhealthy before start, got %d %s", code, r.Status)
	}

	h.Notify(events.Event{Kind: events.KindInitialized})
	h.Notify(events.Event{Kind: events.KindFetched, At: t0.Add(30 * time.Second)})
	code, r := get()
	if code != http.StatusOK || r.Status != "healthy" || r.FetchAge != "30s" {
		t.Fatalf("expected healthy with 30s fetch age, got %d %+v", code, r)
	}

	h.mu.Lock()
	h.RedisEnabled = true
	h.mu.Unlock()
	if code, r := get(); code != http.StatusServiceUnavailable || r.Status != "degraded" {
		t.Fatalf("expected degraded with redis down, got %d %s", code, r.Status)
	}

	h.SetError(errors.New("fetch BTC/USDT: timeout"))
	if _, r := get(); r.Status != "unhealthy" || r.LastError == "" {
		t.Fatalf("expected unhealthy with error, got %+v", r)
	}
}
