// Package metrics exposes Prometheus collectors for the console backend.
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
			Namespace: "agencydesk",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agencydesk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agencydesk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agencydesk",
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Total store mutations forwarded by the gateway.",
		},
		[]string{"operation", "success"},
	)

	fanoutWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agencydesk",
			Subsystem: "store",
			Name:      "fanout_writes_total",
			Help:      "Individual writes issued by fan-out operations.",
		},
		[]string{"operation", "success"},
	)

	snapshotSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "agencydesk",
			Subsystem: "records",
			Name:      "snapshot_size",
			Help:      "Record count of the most recent collection snapshot.",
		},
		[]string{"collection"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		mutations,
		fanoutWrites,
		snapshotSize,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
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

// RecordMutation counts one gateway mutation.
func RecordMutation(operation string, success bool) {
	mutations.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
}

// RecordFanoutWrite counts one write inside a fan-out operation.
func RecordFanoutWrite(operation string, success bool) {
	fanoutWrites.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
}

// RecordSnapshotSize tracks the size of the latest collection snapshot.
func RecordSnapshotSize(collection string, size int) {
	snapshotSize.WithLabelValues(collection).Set(float64(size))
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

// canonicalPath collapses resource IDs so the label set stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "policies", "customers", "entries":
		if len(parts) == 1 {
			return "/" + parts[0]
		}
		if len(parts) >= 3 {
			return "/" + parts[0] + "/:id/" + parts[2]
		}
		return "/" + parts[0] + "/:id"
	default:
		return "/" + parts[0]
	}
}
