package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors the service exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	OrderAdmissions      *prometheus.CounterVec
	OrderCancellations   *prometheus.CounterVec
	OrderAdmissionTime   prometheus.Histogram
	LowStockProducts     prometheus.Gauge
	AuditEntriesArchived prometheus.Counter

	RequestDurationHistogram *prometheus.HistogramVec
	APIRequestCounter        *prometheus.CounterVec
	APIErrorCounter          *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry under namespace.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		OrderAdmissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_admissions_total",
				Help:      "Order creation attempts by outcome",
			},
			[]string{"outcome"},
		),
		OrderCancellations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_cancellations_total",
				Help:      "Order cancellation attempts by outcome",
			},
			[]string{"outcome"},
		),
		OrderAdmissionTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_admission_duration_seconds",
			Help:      "Duration of order admission including lock wait",
			Buckets:   prometheus.DefBuckets,
		}),
		LowStockProducts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "low_stock_products",
			Help:      "Products at or below their stock minimum at the last check",
		}),
		AuditEntriesArchived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_archived_total",
			Help:      "Audit entries exported to object storage",
		}),

		RequestDurationHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		APIRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "path"},
		),
		APIErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors",
			},
			[]string{"method", "path", "status"},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordAdmission(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.OrderAdmissions.WithLabelValues(outcome).Inc()
	m.OrderAdmissionTime.Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordCancellation(outcome string) {
	if m == nil {
		return
	}
	m.OrderCancellations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetLowStock(count int) {
	if m == nil {
		return
	}
	m.LowStockProducts.Set(float64(count))
}

func (m *Metrics) AddArchived(count int) {
	if m == nil {
		return
	}
	m.AuditEntriesArchived.Add(float64(count))
}

// Middleware tracks request metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			m.APIRequestCounter.With(prometheus.Labels{
				"method": c.Request().Method,
				"path":   c.Path(),
			}).Inc()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := strconv.Itoa(c.Response().Status)
			m.RequestDurationHistogram.With(prometheus.Labels{
				"method": c.Request().Method,
				"path":   c.Path(),
				"status": status,
			}).Observe(time.Since(start).Seconds())

			if c.Response().Status >= 400 {
				m.APIErrorCounter.With(prometheus.Labels{
					"method": c.Request().Method,
					"path":   c.Path(),
					"status": status,
				}).Inc()
			}

			return nil
		}
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
