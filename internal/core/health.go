package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benvon/chronos-console/internal/store"
	"github.com/benvon/chronos-console/pkg/model"
)

// Pinger is implemented by sinks that can check their connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter exposes the upstream circuit breaker state
type BreakerReporter interface {
	BreakerState() string
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	backend BreakerReporter
	auth    model.AuthManager
	stores  *store.Stores
	sinks   []model.Sink
	mu      sync.RWMutex
	status  HealthStatus
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Status      string        `json:"status"` // "pass", "fail", "warn"
	Message     string        `json:"message,omitempty"`
	Duration    time.Duration `json:"duration_ms"`
	LastChecked time.Time     `json:"last_checked"`
}

// MarshalJSON reports the duration in milliseconds
func (c CheckResult) MarshalJSON() ([]byte, error) {
	type plain CheckResult
	return json.Marshal(struct {
		plain
		Duration int64 `json:"duration_ms"`
	}{plain: plain(c), Duration: c.Duration.Milliseconds()})
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(backend BreakerReporter, auth model.AuthManager, stores *store.Stores, sinks []model.Sink) *HealthChecker {
	return &HealthChecker{
		backend: backend,
		auth:    auth,
		stores:  stores,
		sinks:   sinks,
		status: HealthStatus{
			Status: "healthy",
			Checks: make(map[string]CheckResult),
		},
	}
}

// CheckHealth performs all health checks
func (h *HealthChecker) CheckHealth(ctx context.Context) HealthStatus {
	checks := make(map[string]CheckResult)
	checks["backend"] = h.checkBackend()
	if h.auth != nil {
		checks["auth"] = h.checkAuth(ctx)
	}
	for _, sink := range h.sinks {
		checks[fmt.Sprintf("sink_%s", sink.Info().Name)] = h.checkSink(ctx, sink)
	}

	// Determine overall status
	overallStatus := "healthy"
	for _, check := range checks {
		if check.Status == "fail" {
			overallStatus = "unhealthy"
			break
		} else if check.Status == "warn" {
			overallStatus = "degraded"
		}
	}

	status := HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    checks,
	}

	h.mu.Lock()
	h.status = status
	h.mu.Unlock()
	return status
}

// GetStatus returns the last computed health status
func (h *HealthChecker) GetStatus() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// checkBackend reports the poll link and the circuit breaker
func (h *HealthChecker) checkBackend() CheckResult {
	start := time.Now()
	result := func(status, msg string) CheckResult {
		return CheckResult{Status: status, Message: msg, Duration: time.Since(start), LastChecked: time.Now()}
	}

	if h.backend != nil && h.backend.BreakerState() == "open" {
		return result("fail", "Circuit breaker is open")
	}
	season := h.stores.Season.Snapshot()
	switch {
	case season.SystemStatus == model.StatusOnline:
		return result("pass", "Edge server is reachable")
	case season.LastUpdated.IsZero() && season.ConsecutiveFailures == 0:
		return result("warn", "No poll completed yet")
	case season.LastUpdated.IsZero():
		return result("fail", fmt.Sprintf("Edge server unreachable (%d consecutive failures)", season.ConsecutiveFailures))
	default:
		return result("warn", fmt.Sprintf("Edge server unreachable (%d consecutive failures), showing data from %s",
			season.ConsecutiveFailures, season.LastUpdated.Format(time.RFC3339)))
	}
}

// checkAuth is passive: it never triggers a refresh
func (h *HealthChecker) checkAuth(ctx context.Context) CheckResult {
	start := time.Now()
	if !h.auth.IsTokenValid(ctx) {
		return CheckResult{
			Status:      "warn",
			Message:     "No valid access token",
			Duration:    time.Since(start),
			LastChecked: time.Now(),
		}
	}
	return CheckResult{
		Status:      "pass",
		Message:     "Session is valid",
		Duration:    time.Since(start),
		LastChecked: time.Now(),
	}
}

// checkSink performs a health check on a sink
func (h *HealthChecker) checkSink(ctx context.Context, sink model.Sink) CheckResult {
	start := time.Now()

	if p, ok := sink.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return CheckResult{
				Status:      "warn",
				Message:     fmt.Sprintf("Sink unreachable: %v", err),
				Duration:    time.Since(start),
				LastChecked: time.Now(),
			}
		}
	}

	return CheckResult{
		Status:      "pass",
		Message:     "Sink is healthy",
		Duration:    time.Since(start),
		LastChecked: time.Now(),
	}
}

// ServeHealth provides an HTTP handler for health checks
func (h *HealthChecker) ServeHealth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := h.CheckHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
}

// Metrics are the console's prometheus collectors
type Metrics struct {
	registry        *prometheus.Registry
	polls           *prometheus.CounterVec
	pollDuration    prometheus.Histogram
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	online          prometheus.Gauge
	lockout         prometheus.Gauge
	sinkWrites      *prometheus.CounterVec
	sinkDocuments   *prometheus.CounterVec
	banners         *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronos",
			Name:      "polls_total",
			Help:      "Dashboard polls by result.",
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chronos",
			Name:      "poll_duration_seconds",
			Help:      "Dashboard poll latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronos",
			Name:      "backend_requests_total",
			Help:      "Backend calls by operation and result.",
		}, []string{"op", "result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chronos",
			Name:      "backend_request_duration_seconds",
			Help:      "Backend call latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chronos",
			Name:      "system_online",
			Help:      "1 when the last poll succeeded.",
		}),
		lockout: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chronos",
			Name:      "season_lockout_remaining_seconds",
			Help:      "Seconds until a new season switch is allowed.",
		}),
		sinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronos",
			Name:      "sink_writes_total",
			Help:      "Sink write batches by sink and result.",
		}, []string{"sink", "result"}),
		sinkDocuments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronos",
			Name:      "sink_documents_total",
			Help:      "Documents written by sink.",
		}, []string{"sink"}),
		banners: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronos",
			Name:      "banners_total",
			Help:      "Banners shown by level.",
		}, []string{"level"}),
	}
	m.registry.MustRegister(
		m.polls, m.pollDuration, m.requests, m.requestDuration,
		m.online, m.lockout, m.sinkWrites, m.sinkDocuments, m.banners,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest matches api.Observer
func (m *Metrics) ObserveRequest(op string, elapsed time.Duration, err error) {
	m.requests.WithLabelValues(op, resultLabel(err)).Inc()
	m.requestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObservePoll records one poll and the resulting link state
func (m *Metrics) ObservePoll(elapsed time.Duration, err error) {
	m.polls.WithLabelValues(resultLabel(err)).Inc()
	m.pollDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.online.Set(0)
	} else {
		m.online.Set(1)
	}
}

// SetLockoutRemaining publishes the season lockout countdown
func (m *Metrics) SetLockoutRemaining(d time.Duration) {
	m.lockout.Set(max(d, 0).Seconds())
}

// RecordSinkWrite records a sink write operation
func (m *Metrics) RecordSinkWrite(sinkName string, documentCount int) {
	m.sinkWrites.WithLabelValues(sinkName, "success").Inc()
	m.sinkDocuments.WithLabelValues(sinkName).Add(float64(documentCount))
}

// RecordSinkError records a sink error
func (m *Metrics) RecordSinkError(sinkName string) {
	m.sinkWrites.WithLabelValues(sinkName, "error").Inc()
}

// RecordBanner counts a banner by level
func (m *Metrics) RecordBanner(level string) {
	m.banners.WithLabelValues(level).Inc()
}

// ServeMetrics provides the prometheus exposition handler
func (m *Metrics) ServeMetrics() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
