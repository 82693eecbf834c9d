package gateway

import (
	"runtime"
	"time"
)

// SystemMetrics is the payload of the system channel.
type SystemMetrics struct {
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	SysMB       float64 `json:"sys_mb"`
	GCRuns      uint32  `json:"gc_runs"`
	Goroutines  int     `json:"goroutines"`
	CPUCores    int     `json:"cpu_cores"`
	UptimeSec   int64   `json:"uptime_sec"`
	Clients     int     `json:"clients"`
	LatencyP50  float64 `json:"latency_p50_ms"`
	LatencyP95  float64 `json:"latency_p95_ms"`
	LatencyP99  float64 `json:"latency_p99_ms"`
	TS          string  `json:"ts"`
}

// CollectMetrics samples the Go runtime.
func CollectMetrics(start, now time.Time) SystemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return SystemMetrics{
		HeapAllocMB: float64(ms.HeapAlloc) / (1 << 20),
		SysMB:       float64(ms.Sys) / (1 << 20),
		GCRuns:      ms.NumGC,
		Goroutines:  runtime.NumGoroutine(),
		CPUCores:    runtime.NumCPU(),
		UptimeSec:   int64(now.Sub(start).Seconds()),
		TS:          now.UTC().Format(time.RFC3339Nano),
	}
}
