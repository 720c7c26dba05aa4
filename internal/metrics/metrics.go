package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors. It is passed explicitly to the
// components that record; a nil *Metrics records nothing.
type Metrics struct {
	rpcCallsTotal   *prometheus.CounterVec
	rpcCallDuration *prometheus.HistogramVec
	confirmPolls    *prometheus.CounterVec
	scenarioCases   *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers all collectors. If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solprobe_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solprobe_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		confirmPolls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solprobe_confirm_polls_total",
				Help: "Signature status polls by outcome (pending, confirmed, failed, expired, timeout)",
			},
			[]string{"outcome"},
		),
		scenarioCases: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solprobe_scenario_cases_total",
				Help: "Scenario cases executed by suite, case and status",
			},
			[]string{"suite", "case", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solprobe_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solprobe_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// RecordRPCCall records one RPC round trip.
func (m *Metrics) RecordRPCCall(method, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.rpcCallsTotal.WithLabelValues(method, status).Inc()
	m.rpcCallDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordConfirmPoll records the outcome of one signature status poll.
func (m *Metrics) RecordConfirmPoll(outcome string) {
	if m == nil {
		return
	}
	m.confirmPolls.WithLabelValues(outcome).Inc()
}

// RecordScenarioCase records a finished scenario case.
func (m *Metrics) RecordScenarioCase(suite, name, status string) {
	if m == nil {
		return
	}
	m.scenarioCases.WithLabelValues(suite, name, status).Inc()
}

// RecordHTTPRequest records a served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) { r.status = code; r.ResponseWriter.WriteHeader(code) }

// unmatchedRoute labels requests no route claimed.
const unmatchedRoute = "unmatched"

// Middleware records request counts and latency. Routes are labelled by their
// chi pattern so path parameters don't explode cardinality; raw paths are
// never used as labels.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := unmatchedRoute
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.RecordHTTPRequest(r.Method, route, rec.status, time.Since(start))
	})
}
