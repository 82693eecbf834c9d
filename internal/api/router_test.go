package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"coindog/internal/events"
	"coindog/internal/execution"
	"coindog/internal/model"
	"coindog/internal/portfolio"
)

type staticMarkets struct {
	markets []events.MarketSummary
	sched   *events.SchedulerStats
}

func (s staticMarkets) Markets() []events.MarketSummary { return s.markets }

func (s staticMarkets) Market(symbol string) (events.MarketSummary, bool) {
	for _, m := range s.markets {
		if m.Symbol == symbol {
			return m, true
		}
	}
	return events.MarketSummary{}, false
}

func (s staticMarkets) Scheduler() (events.SchedulerStats, bool) {
	if s.sched == nil {
		return events.SchedulerStats{}, false
	}
	return *s.sched, true
}

func get(t *testing.T, h http.Handler, path string, out interface{}) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s: decode %q: %v", path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testRouter() *http.ServeMux {
	ledger := portfolio.NewLedger()
	ledger.Record(model.Order{ID: "SIM-1", Symbol: "BTC/USDT", Signal: model.SignalBuy, Amount: d("1"), Price: d("100")})
	ledger.Record(model.Order{ID: "SIM-2", Symbol: "BTC/USDT", Signal: model.SignalSell, Amount: d("1"), Price: d("110")})
	ledger.Record(model.Order{ID: "SIM-3", Symbol: "BTC/USDT", Signal: model.SignalBuy, Amount: d("1"), Price: d("105")})

	sim := execution.NewSimulator(model.Balance{"USDT": {Free: d("50"), Total: d("50")}}, d("10"), ledger)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return NewRouter(Deps{
		Markets: staticMarkets{
			markets: []events.MarketSummary{{Symbol: "BTC/USDT", Close: 120}},
			sched:   &events.SchedulerStats{QueueDepth: 1, Budget: 60},
		},
		Simulator: sim,
		Health:    http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) }),
		Start:     t0,
		Now:       func() time.Time { return t0.Add(90 * time.Second) },
	})
}

func TestHealthAndMarkets(t *testing.T) {
	mux := testRouter()

	var health map[string]interface{}
	if code := get(t, mux, "/api/v1/health", &health); code != http.StatusOK || health["uptime_sec"].(float64) != 90 {
		t.Fatalf("unexpected health %d %v", code, health)
	}

	var markets []events.MarketSummary
	if code := get(t, mux, "/api/v1/markets", &markets); code != http.StatusOK || len(markets) != 1 {
		t.Fatalf("unexpected markets %d %v", code, markets)
	}

	var m events.MarketSummary
	if code := get(t, mux, "/api/v1/markets/BTC/USDT", &m); code != http.StatusOK || m.Close != 120 {
		t.Fatalf("unexpected market %d %+v", code, m)
	}
	if code := get(t, mux, "/api/v1/markets/DOGE/USDT", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown market, got %d", code)
	}

	var st events.SchedulerStats
	if code := get(t, mux, "/api/v1/scheduler", &st); code != http.StatusOK || st.Budget != 60 {
		t.Fatalf("unexpected scheduler %d %+v", code, st)
	}

	if code := get(t, mux, "/healthz", nil); code != http.StatusTeapot {
		t.Fatalf("expected health handler to be mounted, got %d", code)
	}
	if code := get(t, mux, "/metrics", nil); code != http.StatusNotFound {
		t.Fatalf("expected no metrics route without a handler, got %d", code)
	}
}

func TestOrdersAndPnL(t *testing.T) {
	mux := testRouter()

	var orders []model.Order
	if code := get(t, mux, "/api/v1/orders?limit=2", &orders); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if len(orders) != 2 || orders[0].ID != "SIM-3" || orders[1].ID != "SIM-2" {
		t.Fatalf("expected newest two orders, got %+v", orders)
	}
	if code := get(t, mux, "/api/v1/orders?limit=zero", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", code)
	}

	var pnl portfolio.PnLSummary
	if code := get(t, mux, "/api/v1/pnl", &pnl); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	// realized 10 on the round trip, unrealized 120-105 on the open buy
	if !pnl.RealizedPnL.Equal(d("10")) || !pnl.UnrealizedPnL.Equal(d("15")) || pnl.OpenPositions != 1 {
		t.Fatalf("unexpected pnl %+v", pnl)
	}

	var bal model.Balance
	if code := get(t, mux, "/api/v1/balance", &bal); code != http.StatusOK || !bal.Get("USDT").Free.Equal(d("50")) {
		t.Fatalf("unexpected balance %d %+v", code, bal)
	}
}
