package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raine/survival-bro/internal/scan"
)

const namespace = "survival_bro"

// Metrics holds the collectors for scans and the HTTP API on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	now      func() time.Time

	scansTotal         prometheus.Counter
	analysesTotal      *prometheus.CounterVec
	analysisDuration   prometheus.Histogram
	notificationsTotal prometheus.Counter
	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		now:      time.Now,
		scansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Photos ingested.",
		}),
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Finished analyses by outcome (a risk level or a failure kind).",
		}, []string{"outcome"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time from ingestion to analysis outcome.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
		notificationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Threat notifications raised.",
		}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.scansTotal,
		m.analysesTotal,
		m.analysisDuration,
		m.notificationsTotal,
		m.requestTotal,
		m.requestDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records a store event. Pass it to scan.Store.Subscribe.
func (m *Metrics) Observe(ev scan.Event) {
	switch ev.Type {
	case scan.EventItemAdded:
		m.scansTotal.Inc()
	case scan.EventItemAnalyzed:
		outcome := "unknown"
		if ev.Item.Result != nil {
			outcome = string(ev.Item.Result.RiskLevel)
		}
		m.analysesTotal.WithLabelValues(outcome).Inc()
		m.observeDuration(ev.Item)
	case scan.EventItemFailed:
		m.analysesTotal.WithLabelValues("failed_" + ev.Item.Failure).Inc()
		m.observeDuration(ev.Item)
	case scan.EventNotificationCreated:
		m.notificationsTotal.Inc()
	}
}

func (m *Metrics) observeDuration(item scan.ScannedItem) {
	if item.CreatedAt.IsZero() {
		return
	}
	m.analysisDuration.Observe(m.now().Sub(item.CreatedAt).Seconds())
}

// Middleware records request counts and latency. route returns the label for
// a request, typically its matched route pattern; it is called after the
// handler has run.
func (m *Metrics) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(recorder, r)

			path := route(r)
			if path == "" {
				path = "unmatched"
			}
			m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
			m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
