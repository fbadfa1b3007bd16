package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// Label values for requests that produced no numeric status, keeping
// cardinality bounded.
const (
	// statusNone marks requests whose handler declined to produce a
	// response.
	statusNone = "none"

	// statusError marks requests that left the pipeline as a raised
	// failure before any classification layer translated it.
	statusError = "error"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestSize     *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
	relaysTotal     *prometheus.CounterVec
	relayFailures   *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	rateLimitHits   prometheus.Counter
	buildInfo       *prometheus.GaugeVec
	startTime       prometheus.Gauge
	registry        *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "relay"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of pipeline requests",
		},
		[]string{"method", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Pipeline request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "status"},
	)

	m.requestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_size_bytes",
			Help:      "Request body size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method"},
	)

	m.responseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_size_bytes",
			Help:      "Response body size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "status"},
	)

	m.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of requests currently in the pipeline",
		},
	)

	m.relaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relays_total",
			Help:      "Total number of relayed requests per rule",
		},
		[]string{"rule", "status"},
	)

	m.relayFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_failures_total",
			Help:      "Total number of failed relay attempts per rule",
		},
		[]string{"rule"},
	)

	m.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help: "Relay circuit breaker state " +
				"(0=closed, 1=half-open, 2=open)",
		},
		[]string{"rule"},
	)

	m.rateLimitHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of rate limit rejections",
		},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information for the relay",
		},
		[]string{"version", "commit", "build_time"},
	)

	m.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Start time of the relay in unix seconds",
		},
	)

	m.registerCollectors()

	m.startTime.SetToCurrentTime()

	return m
}

// registerCollectors registers all metric collectors with the
// Prometheus registry.
func (m *Metrics) registerCollectors() {
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.requestSize,
		m.responseSize,
		m.activeRequests,
		m.relaysTotal,
		m.relayFailures,
		m.breakerState,
		m.rateLimitHits,
		m.buildInfo,
		m.startTime,
	)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(
		collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{},
		),
	)
}

// RecordRequest records a completed pipeline invocation.
func (m *Metrics) RecordRequest(
	method, status string,
	duration time.Duration,
	reqSize, respSize int64,
) {
	m.requestsTotal.WithLabelValues(method, status).Inc()
	m.requestDuration.WithLabelValues(method, status).
		Observe(duration.Seconds())
	m.requestSize.WithLabelValues(method).Observe(float64(reqSize))
	m.responseSize.WithLabelValues(method, status).
		Observe(float64(respSize))
}

// RecordRelay records a relayed request for the given rule.
func (m *Metrics) RecordRelay(rule string, status int) {
	m.relaysTotal.WithLabelValues(rule, strconv.Itoa(status)).Inc()
}

// RecordRelayFailure records a transport failure for the given rule.
func (m *Metrics) RecordRelayFailure(rule string) {
	m.relayFailures.WithLabelValues(rule).Inc()
}

// SetBreakerState sets the circuit breaker state gauge for a rule.
func (m *Metrics) SetBreakerState(rule string, state int) {
	m.breakerState.WithLabelValues(rule).Set(float64(state))
}

// RecordRateLimitHit records a rate limit rejection.
func (m *Metrics) RecordRateLimitHit() {
	m.rateLimitHits.Inc()
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsMiddleware returns a middleware that records request metrics.
// It runs inside the classification layers, so raised failures are
// observed under the "error" status label.
func MetricsMiddleware(m *Metrics) pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			start := time.Now()

			m.activeRequests.Inc()
			resp, err := next(ctx, req)
			m.activeRequests.Dec()

			m.RecordRequest(
				req.Method,
				statusLabel(resp, err),
				time.Since(start),
				int64(len(req.Body)),
				responseSize(resp),
			)

			return resp, err
		}
	}
}

// statusLabel maps a pipeline result onto a bounded status label.
func statusLabel(resp *pipeline.Response, err error) string {
	switch {
	case err != nil:
		return statusError
	case resp == nil:
		return statusNone
	default:
		return strconv.Itoa(resp.StatusCode)
	}
}

// responseSize returns the body size of a possibly absent response.
func responseSize(resp *pipeline.Response) int64 {
	if resp == nil {
		return 0
	}
	return int64(len(resp.Body))
}
