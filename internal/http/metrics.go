// Package http holds the pieces of the HTTP layer shared by middlewares,
// controllers and the server wiring: Prometheus metrics and their
// instrumentation middleware.
package http

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	// Trust-gateway metrics
	tokensIssuedTotal *prometheus.CounterVec
	tokenRejectsTotal *prometheus.CounterVec
	rateLimitedTotal  prometheus.Counter
	corsRejectsTotal  *prometheus.CounterVec
)

// RegisterMetrics initializes the metric vectors and returns the handler
// for /metrics. Safe to call more than once.
func RegisterMetrics(registry prometheus.Registerer) (http.Handler, error) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests processed",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "In-flight requests by method and path",
		}, []string{"method", "path"})

		tokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "antiforgery_tokens_issued_total",
			Help: "Anti-forgery tokens minted, by caller kind",
		}, []string{"authenticated"})

		tokenRejectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "antiforgery_rejects_total",
			Help: "Mutations rejected by the anti-forgery gate, by internal sub-reason",
		}, []string{"reason"})

		rateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the token-issuance rate limiter",
		})

		corsRejectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cors_rejects_total",
			Help: "Cross-origin requests rejected by the origin allowlist",
		}, []string{"origin"})

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, httpInflight,
			tokensIssuedTotal, tokenRejectsTotal, rateLimitedTotal, corsRejectsTotal,
		} {
			if err := registerCollector(registry, c); err != nil {
				metricsErr = err
				return
			}
		}
	})
	if metricsErr != nil {
		return nil, metricsErr
	}

	// The global gatherer is used because the metrics register there.
	return promhttp.Handler(), nil
}

// WithMetrics instruments requests with counters, latency and inflight gauges.
func WithMetrics(next http.Handler) http.Handler {
	if next == nil {
		return nil
	}
	if httpRequestsTotal == nil || httpRequestDuration == nil || httpInflight == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		pathLabel := normalizePath(r.URL.Path)

		httpInflight.WithLabelValues(method, pathLabel).Inc()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			httpInflight.WithLabelValues(method, pathLabel).Dec()
			httpRequestDuration.WithLabelValues(method, pathLabel).Observe(time.Since(start).Seconds())

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

// RecordTokenIssued counts a successful token-fetch response.
func RecordTokenIssued(authenticated bool) {
	if tokensIssuedTotal != nil {
		tokensIssuedTotal.WithLabelValues(strconv.FormatBool(authenticated)).Inc()
	}
}

// RecordTokenReject counts a gate rejection with its internal sub-reason.
func RecordTokenReject(reason string) {
	if tokenRejectsTotal != nil {
		tokenRejectsTotal.WithLabelValues(reason).Inc()
	}
}

// RecordRateLimited counts a throttled issuance request.
func RecordRateLimited() {
	if rateLimitedTotal != nil {
		rateLimitedTotal.Inc()
	}
}

// RecordCORSReject counts an origin-allowlist rejection.
func RecordCORSReject(origin string) {
	if corsRejectsTotal != nil {
		corsRejectsTotal.WithLabelValues(origin).Inc()
	}
}

// registerCollector registers on the given registry, ignoring duplicates.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// normalizePath keeps label cardinality bounded: anything that looks like
// an id or token segment collapses to :param.
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if isDynamicSegment(seg) {
			out = append(out, ":param")
		} else {
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

func isDynamicSegment(seg string) bool {
	if len(seg) > 48 {
		return true
	}
	if _, err := strconv.Atoi(seg); err == nil {
		return true
	}
	return false
}
