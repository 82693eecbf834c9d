package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"coindog/internal/events"
)

// HealthStatus tracks the watch loop and its dependencies. It implements
// events.Sink to follow fetch progress.
type HealthStatus struct {
	mu sync.RWMutex

	Running        bool
	LastFetchAt    time.Time
	LastError      string
	RedisEnabled   bool
	RedisConnected bool
	SQLiteEnabled  bool
	SQLiteOK       bool

	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time

	now func() time.Time
}

// NewHealthStatus returns a health status started now.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now(), now: time.Now}
}

// Notify implements events.Sink.
func (h *HealthStatus) Notify(e events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch e.Kind {
	case events.KindInitialized:
		h.Running = true
	case events.KindFetched:
		h.LastFetchAt = e.At
		h.LastError = ""
	case events.KindStopped:
		h.Running = false
	}
}

// SetError records the error that stopped the loop.
func (h *HealthStatus) SetError(err error) {
	h.mu.Lock()
	h.Running = false
	if err != nil {
		h.LastError = err.Error()
	}
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteEnabled = true
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
// Nil dependencies are skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	check := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}
	go func() {
		check()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}

type healthReport struct {
	Status          string  `json:"status"`
	Uptime          string  `json:"uptime"`
	Running         bool    `json:"running"`
	LastFetchAt     string  `json:"last_fetch_at,omitempty"`
	FetchAge        string  `json:"fetch_age,omitempty"`
	LastError       string  `json:"last_error,omitempty"`
	RedisConnected  bool    `json:"redis_connected"`
	RedisLatencyMs  float64 `json:"redis_latency_ms"`
	SQLiteOK        bool    `json:"sqlite_ok"`
	SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
	LastCheckAt     string  `json:"last_check_at,omitempty"`
}

func (h *HealthStatus) report() (healthReport, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	r := healthReport{
		Status:          "healthy",
		Uptime:          now.Sub(h.StartedAt).Round(time.Second).String(),
		Running:         h.Running,
		LastError:       h.LastError,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
	}
	if !h.LastFetchAt.IsZero() {
		r.LastFetchAt = h.LastFetchAt.Format(time.RFC3339)
		r.FetchAge = now.Sub(h.LastFetchAt).Round(time.Millisecond).String()
	}
	if !h.LastCheckAt.IsZero() {
		r.LastCheckAt = h.LastCheckAt.Format(time.RFC3339)
	}

	code := http.StatusOK
	if (h.RedisEnabled && !h.RedisConnected) || (h.SQLiteEnabled && !h.SQLiteOK) {
		r.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if !h.Running {
		r.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	return r, code
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	r, code := h.report()
	data, err := sonic.Marshal(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

// Handler returns the Prometheus handler for g, or the default gatherer when nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *zap.Logger
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(nil))
	mux.Handle("/healthz", health)
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
		log:  log,
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", zap.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("metrics server", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
