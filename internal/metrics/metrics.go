// Package metrics exposes the application's Prometheus instruments.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dashboard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by endpoint and result (hit or miss).",
		},
		[]string{"endpoint", "result"},
	)

	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Requests made to market-data providers.",
		},
		[]string{"provider", "endpoint", "outcome"},
	)

	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dashboard",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Duration of market-data provider requests.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"provider", "endpoint"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		cacheLookups,
		upstreamRequests,
		upstreamDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RegisterCacheSize exposes the cache entry count as a gauge. Called once
// at wiring time with the store's Len.
func RegisterCacheSize(sizeFn func() float64) {
	Registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Number of entries currently held in the response cache.",
		},
		sizeFn,
	))
}

// RecordCacheLookup records a cache hit or miss for an endpoint.
func RecordCacheLookup(endpoint string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(endpoint, result).Inc()
}

// RecordUpstreamRequest records one provider call and its duration.
func RecordUpstreamRequest(provider, endpoint string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamRequests.WithLabelValues(provider, endpoint, outcome).Inc()
	upstreamDuration.WithLabelValues(provider, endpoint).Observe(duration.Seconds())
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses path parameters so label cardinality stays
// bounded by the route table, not by the tickers and users requested.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")

	switch parts[0] {
	case "api":
		if len(parts) < 2 {
			return "/api"
		}
		switch parts[1] {
		case "ticker":
			if len(parts) == 2 {
				return "/api/ticker"
			}
			if len(parts) == 3 {
				return "/api/ticker/:ticker"
			}
			return "/api/ticker/:ticker/" + parts[3]
		case "user":
			if len(parts) > 2 {
				return "/api/user/:user"
			}
			return "/api/user"
		default:
			if len(parts) > 3 {
				parts = parts[:3]
			}
			return "/" + strings.Join(parts, "/")
		}
	case "auth":
		if len(parts) > 3 {
			parts = parts[:3]
		}
		return "/" + strings.Join(parts, "/")
	default:
		return "/" + parts[0]
	}
}
