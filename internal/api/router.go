// Package api serves the read-only HTTP status API of a running watch.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"coindog/internal/events"
	"coindog/internal/execution"
	"coindog/internal/model"
)

// MarketSource returns the latest market summaries; gateway.Hub satisfies it.
type MarketSource interface {
	Markets() []events.MarketSummary
	Market(symbol string) (events.MarketSummary, bool)
	Scheduler() (events.SchedulerStats, bool)
}

// Deps are the read models behind the routes. Nil fields disable their routes.
type Deps struct {
	Markets   MarketSource
	Simulator *execution.Simulator
	Journal   *execution.Journal
	Health    http.Handler // served at /healthz
	Metrics   http.Handler // served at /metrics
	Start     time.Time
	Now       func() time.Time
}

// NewRouter sets up the API routes:
//
//	GET /api/v1/health
//	GET /api/v1/markets
//	GET /api/v1/markets/{symbol...}
//	GET /api/v1/scheduler
//	GET /api/v1/balance
//	GET /api/v1/orders?limit=N
//	GET /api/v1/pnl
func NewRouter(d Deps) *http.ServeMux {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Start.IsZero() {
		d.Start = d.Now()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "ok",
			"uptime_sec": int64(d.Now().Sub(d.Start).Seconds()),
		})
	})

	if d.Markets != nil {
		mux.HandleFunc("GET /api/v1/markets", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, d.Markets.Markets())
		})
		mux.HandleFunc("GET /api/v1/markets/{symbol...}", func(w http.ResponseWriter, r *http.Request) {
			m, ok := d.Markets.Market(r.PathValue("symbol"))
			if !ok {
				writeError(w, http.StatusNotFound, "unknown market")
				return
			}
			writeJSON(w, http.StatusOK, m)
		})
		mux.HandleFunc("GET /api/v1/scheduler", func(w http.ResponseWriter, r *http.Request) {
			st, ok := d.Markets.Scheduler()
			if !ok {
				writeError(w, http.StatusNotFound, "no scheduler statistics yet")
				return
			}
			writeJSON(w, http.StatusOK, st)
		})
	}

	if d.Simulator != nil {
		mux.HandleFunc("GET /api/v1/balance", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, d.Simulator.Balance())
		})
		mux.HandleFunc("GET /api/v1/pnl", func(w http.ResponseWriter, r *http.Request) {
			prices := make(map[string]float64)
			if d.Markets != nil {
				for _, m := range d.Markets.Markets() {
					prices[m.Symbol] = m.Close
				}
			}
			writeJSON(w, http.StatusOK, d.Simulator.Ledger().PnL().Summary(prices))
		})
	}

	if d.Journal != nil || d.Simulator != nil {
		mux.HandleFunc("GET /api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
			limit := 100
			if s := r.URL.Query().Get("limit"); s != "" {
				n, err := strconv.Atoi(s)
				if err != nil || n <= 0 {
					writeError(w, http.StatusBadRequest, "limit must be a positive integer")
					return
				}
				limit = n
			}
			orders, err := recentOrders(d, limit)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, orders)
		})
	}

	if d.Health != nil {
		mux.Handle("GET /healthz", d.Health)
	}
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}
	return mux
}

// recentOrders returns up to limit orders, newest first. The journal wins
// over the in-memory ledger since it survives restarts.
func recentOrders(d Deps, limit int) ([]model.Order, error) {
	if d.Journal != nil {
		orders, err := d.Journal.GetOrders(limit)
		if orders == nil && err == nil {
			orders = []model.Order{}
		}
		return orders, err
	}
	all := d.Simulator.Ledger().Orders()
	out := make([]model.Order, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
