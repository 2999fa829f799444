// Package metrics exposes Prometheus metrics for the HTTP layer and the item store.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"
	chiv5 "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors of the service on a private registry.
// ObserveStore, SetItems and ObserveDataFileEvent are no-ops on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	StoreOperationsTotal *prometheus.CounterVec
	DataFileEventsTotal  *prometheus.CounterVec
	Items                prometheus.Gauge
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itemstore_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "itemstore_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		StoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itemstore_store_operations_total",
				Help: "Total number of item file operations",
			},
			[]string{"operation", "status"},
		),
		DataFileEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itemstore_data_file_events_total",
				Help: "Changes of the data file made outside the service",
			},
			[]string{"event"},
		),
		Items: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "itemstore_items",
				Help: "Number of items in the last loaded or saved collection",
			},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StoreOperationsTotal,
		m.DataFileEventsTotal,
		m.Items,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WithMetrics returns HTTP middleware counting requests per matched chi route.
func (m *Metrics) WithMetrics() func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			h.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chiv5.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		}
		return http.HandlerFunc(fn)
	}
}

// ObserveStore counts one item file operation.
func (m *Metrics) ObserveStore(operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
}

// SetItems records the size of the collection.
func (m *Metrics) SetItems(n int) {
	if m == nil {
		return
	}
	m.Items.Set(float64(n))
}

// ObserveDataFileEvent counts an external change of the data file.
func (m *Metrics) ObserveDataFileEvent(event string) {
	if m == nil {
		return
	}
	m.DataFileEventsTotal.WithLabelValues(event).Inc()
}
