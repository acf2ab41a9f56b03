// Package metrics exposes Prometheus metrics for the HTTP API, the ledger
// and the advice client on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Ledger metrics
	LedgerEvents *prometheus.CounterVec
	Goals        prometheus.Gauge

	// Advice metrics
	AdviceRequests *prometheus.CounterVec
	AdviceDuration prometheus.Histogram
}

// NewCollector creates a collector with its own registry, so tests can
// build as many as they like.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		LedgerEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_events_total",
				Help:      "Goals created, goals deleted and transactions recorded",
			},
			[]string{"event"},
		),
		Goals: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "goals",
				Help:      "Number of goals in the collection",
			},
		),
		AdviceRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "advice_requests_total",
				Help:      "Advice requests by outcome",
			},
			[]string{"outcome"},
		),
		AdviceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "advice_duration_seconds",
				Help:      "Time spent producing advice, cache hits included",
				Buckets:   []float64{.001, .01, .1, .5, 1, 2.5, 5, 10, 20},
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.LedgerEvents,
		c.Goals,
		c.AdviceRequests,
		c.AdviceDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) ObserveLedgerEvent(event string) {
	c.LedgerEvents.WithLabelValues(event).Inc()
}

func (c *Collector) SetGoalCount(n int) {
	c.Goals.Set(float64(n))
}

func (c *Collector) ObserveAdvice(outcome string, d time.Duration) {
	c.AdviceRequests.WithLabelValues(outcome).Inc()
	c.AdviceDuration.Observe(d.Seconds())
}

// RegisterGaugeFunc exposes a value computed at scrape time, such as a cache size.
func (c *Collector) RegisterGaugeFunc(name, help string, fn func() float64) error {
	return c.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, fn))
}
