// Package metrics provides Prometheus instrumentation for setu.
//
// It pre-defines the dispatch metrics the bridge records on every request
// plus registry-level gauges the kernel sets after initialization.
//
// Wire it up once when building the HTTP handler:
//
//	r.Use(metrics.Middleware())
//	r.Get("/metrics", metrics.Handler())
//
// Then scrape http://localhost:8080/metrics from Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DispatchTotal counts dispatched requests by method, path, and
	// response status.
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "setu",
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Total number of dispatched requests.",
		},
		[]string{"method", "path", "status"},
	)

	// DispatchDuration tracks how long each dispatch takes end to end.
	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "setu",
			Subsystem: "dispatch",
			Name:      "request_duration_seconds",
			Help:      "Duration of dispatched requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DispatchInFlight tracks requests currently inside the bridge.
	DispatchInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "setu",
		Subsystem: "dispatch",
		Name:      "requests_in_flight",
		Help:      "Number of requests currently being dispatched.",
	})

	// DispatchUnhandled counts requests the dispatcher answered with an
	// in-band failure (bad request, not initialized, not found, handler
	// panic), labelled by the status it produced.
	DispatchUnhandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "setu",
			Subsystem: "dispatch",
			Name:      "unhandled_total",
			Help:      "Total requests no handler answered.",
		},
		[]string{"status"},
	)

	// ResponseSize tracks response body sizes in bytes.
	ResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "setu",
			Subsystem: "dispatch",
			Name:      "response_size_bytes",
			Help:      "Response body sizes in bytes.",
			Buckets:   []float64{100, 1_000, 10_000, 100_000, 1_000_000},
		},
		[]string{"method", "path"},
	)

	// EndpointsRegistered mirrors the router's endpoint count. The kernel
	// sets it after Initialize and after late registrations it knows about.
	EndpointsRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "setu",
		Subsystem: "registry",
		Name:      "endpoints_registered",
		Help:      "Endpoints currently registered in the router.",
	})

	// ModulesRegistered mirrors the router's factory count.
	ModulesRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "setu",
		Subsystem: "registry",
		Name:      "modules_registered",
		Help:      "Module factories registered in the router.",
	})

	// ModulesActive counts modules that initialized successfully. The gap
	// between registered and active is the fail-soft skip count.
	ModulesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "setu",
		Subsystem: "registry",
		Name:      "modules_active",
		Help:      "Modules that constructed and registered successfully.",
	})

	// ServicesRegistered mirrors the service container's entry count.
	ServicesRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "setu",
		Subsystem: "registry",
		Name:      "services_registered",
		Help:      "Services registered in the container.",
	})

	// CacheHits / CacheMisses track cache effectiveness per driver.
	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "setu",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total cache hits.",
		},
		[]string{"driver"}, // "redis" | "memory"
	)
	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "setu",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total cache misses.",
		},
		[]string{"driver"},
	)

	// JobsDispatched counts jobs pushed onto the background queue.
	JobsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "setu",
			Subsystem: "queue",
			Name:      "jobs_dispatched_total",
			Help:      "Background jobs dispatched, by job name.",
		},
		[]string{"job"},
	)

	// JobsProcessed counts finished jobs. Outcome is "ok" for a
	// successful attempt, "failed" once retries are exhausted, and
	// "dropped" for envelopes that could not be decoded.
	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "setu",
			Subsystem: "queue",
			Name:      "jobs_processed_total",
			Help:      "Background jobs processed, by job name and outcome.",
		},
		[]string{"job", "outcome"},
	)

	// FailedJobsRetained mirrors the queue's in-memory failure list.
	// Refreshed by the scheduler's gauge job.
	FailedJobsRetained = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "setu",
		Subsystem: "queue",
		Name:      "failed_jobs_retained",
		Help:      "Failed jobs currently retained in memory.",
	})
)

// DefaultRegistry is the Prometheus registry used by setu. Register your
// own metrics against this.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(collectors.NewGoCollector())
	DefaultRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	DefaultRegistry.MustRegister(
		DispatchTotal,
		DispatchDuration,
		DispatchInFlight,
		DispatchUnhandled,
		ResponseSize,
		EndpointsRegistered,
		ModulesRegistered,
		ModulesActive,
		ServicesRegistered,
		CacheHits,
		CacheMisses,
		JobsDispatched,
		JobsProcessed,
		FailedJobsRetained,
	)
}

// Register adds a prometheus.Collector to the setu registry.
func Register(c prometheus.Collector) error {
	return DefaultRegistry.Register(c)
}

// MustRegister panics if registration fails.
func MustRegister(c ...prometheus.Collector) {
	DefaultRegistry.MustRegister(c...)
}

// responseRecorder wraps http.ResponseWriter to capture status and size.
type responseRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Middleware records the dispatch metrics for every request passing
// through the bridge: duration histogram, total counter, in-flight gauge,
// response size.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path // raw path; the dispatcher is exact-match, so cardinality equals the registry

			DispatchInFlight.Inc()
			defer DispatchInFlight.Dec()

			rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rr, r)

			status := strconv.Itoa(rr.status)
			DispatchDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			DispatchTotal.WithLabelValues(r.Method, path, status).Inc()
			ResponseSize.WithLabelValues(r.Method, path).Observe(float64(rr.size))
		})
	}
}

// Handler exposes the Prometheus metrics page. Mount it on GET /metrics.
func Handler() http.HandlerFunc {
	h := promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	return h.ServeHTTP
}
