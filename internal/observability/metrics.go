package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store operation results used as the "result" label.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultConflict = "conflict"
	ResultError    = "error"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Store calls by entity, operation and result. Watch for: conflict spikes, error ratio.
	StoreOperationsTotal *prometheus.CounterVec

	// Store latency per call. Watch for: p95 growth (pool exhaustion, missing index).
	StoreOperationDuration *prometheus.HistogramVec

	// Bearer-token verifications by outcome category ("ok", "cached", "invalid_token", ...).
	AuthVerificationsTotal *prometheus.CounterVec

	// Identity provider latency. Watch for: p95 > 1s (auth becomes the bottleneck for writes).
	IdentityProviderDuration *prometheus.HistogramVec

	// Principal cache hits. Misses = authVerificationsTotal{result!="cached"} for token-bearing requests.
	PrincipalCacheHitsTotal *prometheus.CounterVec

	// Rejected payloads per resource. Watch for: a broken client release.
	ValidationFailuresTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Identity provider breaker state: 0 closed, 1 half-open, 2 open.
	BreakerState prometheus.Gauge

	trafficGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeOperationsTotal",
			Help: "Total number of store operations by entity, operation and result",
		},
		[]string{"entity", "op", "result"},
	)
	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storeOperationDurationSeconds",
			Help:    "Store operation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"entity", "op"},
	)
	AuthVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authVerificationsTotal",
			Help: "Bearer token verifications by result",
		},
		[]string{"result"},
	)
	IdentityProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "identityProviderDurationSeconds",
			Help:    "Identity provider latency in seconds (per request)",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"status"},
	)
	PrincipalCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "principalCacheHitsTotal",
			Help: "Total number of principal cache hits",
		},
		[]string{"cacheType"},
	)
	ValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validationFailuresTotal",
			Help: "Payloads rejected by validation, by resource",
		},
		[]string{"resource"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	BreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "breakerState",
			Help: "Identity provider circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		StoreOperationsTotal, StoreOperationDuration,
		AuthVerificationsTotal, IdentityProviderDuration, PrincipalCacheHitsTotal,
		ValidationFailuresTotal, RateLimitDeniedTotal, BreakerState,
	)
}

// RecordStoreOperation records the outcome and latency of one store call.
func RecordStoreOperation(entity, op, result string, elapsed time.Duration) {
	StoreOperationsTotal.WithLabelValues(entity, op, result).Inc()
	StoreOperationDuration.WithLabelValues(entity, op).Observe(elapsed.Seconds())
}

// RegisterTrafficGauges exposes the sliding-window request and error counts used for
// the degraded health status. Call once from main after the tracker is built.
func RegisterTrafficGauges(requests, errors func() int) {
	trafficGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "requestsInWindow",
					Help: "Requests completed in the lifecycle sliding window",
				},
				func() float64 { return float64(requests()) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "errorsInWindow",
					Help: "5xx responses in the lifecycle sliding window",
				},
				func() float64 { return float64(errors()) },
			),
		)
	})
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
