package monitoring

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Metrics is an in-process snapshot of request activity, served on /metrics.
type Metrics struct {
	RequestCount   int64            `json:"request_count"`
	ErrorCount     int64            `json:"error_count"`
	ActiveRequests int64            `json:"active_requests"`
	TotalLatencyMS int64            `json:"total_latency_ms"`
	StatusCodes    map[int]int64    `json:"status_codes"`
	Endpoints      map[string]int64 `json:"endpoints"`
	StartedAt      time.Time        `json:"started_at"`
}

type metricsState struct {
	mu sync.Mutex
	m  Metrics
}

var global = newMetricsState()

func newMetricsState() *metricsState {
	return &metricsState{
		m: Metrics{
			StatusCodes: make(map[int]int64),
			Endpoints:   make(map[string]int64),
			StartedAt:   time.Now(),
		},
	}
}

func resetGlobalMetrics() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.m = Metrics{
		StatusCodes: make(map[int]int64),
		Endpoints:   make(map[string]int64),
		StartedAt:   time.Now(),
	}
}

// GetMetrics returns a copy of the current counters.
func GetMetrics() Metrics {
	global.mu.Lock()
	defer global.mu.Unlock()

	snapshot := global.m
	snapshot.StatusCodes = make(map[int]int64, len(global.m.StatusCodes))
	for k, v := range global.m.StatusCodes {
		snapshot.StatusCodes[k] = v
	}
	snapshot.Endpoints = make(map[string]int64, len(global.m.Endpoints))
	for k, v := range global.m.Endpoints {
		snapshot.Endpoints[k] = v
	}
	return snapshot
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		global.mu.Lock()
		global.m.ActiveRequests++
		global.mu.Unlock()

		c.Next()

		status := c.Writer.Status()
		endpoint := c.Request.Method + " " + c.FullPath()

		global.mu.Lock()
		global.m.ActiveRequests--
		global.m.RequestCount++
		global.m.TotalLatencyMS += time.Since(start).Milliseconds()
		global.m.StatusCodes[status]++
		global.m.Endpoints[endpoint]++
		if status >= http.StatusInternalServerError {
			global.m.ErrorCount++
		}
		global.mu.Unlock()
	}
}

func MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		c.JSON(http.StatusOK, gin.H{
			"requests":       GetMetrics(),
			"goroutines":     runtime.NumGoroutine(),
			"heap_alloc_mb":  mem.HeapAlloc / 1024 / 1024,
			"gc_cycles":      mem.NumGC,
			"uptime_seconds": time.Since(GetMetrics().StartedAt).Seconds(),
		})
	}
}
