package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the posting core.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	postingsTotal     prometheus.Counter
	reversalsTotal    prometheus.Counter
	approvalsPending  *prometheus.CounterVec
	chainAppendsTotal prometheus.Counter
	integrityFailures prometheus.Counter
	jobsTotal         *prometheus.CounterVec
}

// NewMetrics initializes the registry and the core metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	postings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_ledger_postings_total",
		Help: "Transactions posted to the ledger.",
	})
	reversals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_ledger_reversals_total",
		Help: "Posted transactions reversed.",
	})
	approvalsPending := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_approvals_suspended_total",
		Help: "Operations suspended awaiting approval, by approval type.",
	}, []string{"approval_type"})
	chainAppends := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_hashchain_appends_total",
		Help: "Links appended to hash chains.",
	})
	integrityFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_hashchain_integrity_failures_total",
		Help: "Chain or proof verifications that found tampering.",
	})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_jobs_total",
		Help: "Background jobs processed, by task and result.",
	}, []string{"task", "result"})
	registry.MustRegister(requests, duration, postings, reversals,
		approvalsPending, chainAppends, integrityFailures, jobs)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		postingsTotal:     postings,
		reversalsTotal:    reversals,
		approvalsPending:  approvalsPending,
		chainAppendsTotal: chainAppends,
		integrityFailures: integrityFailures,
		jobsTotal:         jobs,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// PostingCommitted counts a committed posting.
func (m *Metrics) PostingCommitted() {
	if m != nil {
		m.postingsTotal.Inc()
	}
}

// ReversalCommitted counts a committed reversal.
func (m *Metrics) ReversalCommitted() {
	if m != nil {
		m.reversalsTotal.Inc()
	}
}

// ApprovalSuspended counts an operation suspended pending approval.
func (m *Metrics) ApprovalSuspended(approvalType string) {
	if m != nil {
		m.approvalsPending.WithLabelValues(approvalType).Inc()
	}
}

// ChainAppended counts a link added to a hash chain.
func (m *Metrics) ChainAppended() {
	if m != nil {
		m.chainAppendsTotal.Inc()
	}
}

// IntegrityFailure counts a verification that detected tampering.
func (m *Metrics) IntegrityFailure() {
	if m != nil {
		m.integrityFailures.Inc()
	}
}

// JobProcessed counts a completed background job.
func (m *Metrics) JobProcessed(task, result string) {
	if m != nil {
		m.jobsTotal.WithLabelValues(task, result).Inc()
	}
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
