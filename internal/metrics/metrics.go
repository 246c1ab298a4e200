// Package metrics exposes prometheus instruments for printing and the HTTP API
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ResultOK is the result label of a successful print
const ResultOK = "ok"

// Config sets the constant labels
type Config struct {
	ServiceName string
	Environment string
}

// Metrics holds the print and HTTP instruments. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	printAttempts *prometheus.CounterVec
	printDuration *prometheus.HistogramVec
	printInFlight prometheus.Gauge
	lockWait      prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New creates the instruments on a private registry
func New(cfg Config) *Metrics {
	return newMetrics(prometheus.NewRegistry(), cfg)
}

func newMetrics(registry *prometheus.Registry, cfg Config) *Metrics {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "printbridge"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	printAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "printbridge_print_attempts_total",
		Help:        "Print attempts by printer kind, transport and result code.",
		ConstLabels: constLabels,
	}, []string{"kind", "transport", "result"})
	printDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "printbridge_print_duration_seconds",
		Help:        "Time from lock acquisition to session close.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		ConstLabels: constLabels,
	}, []string{"kind", "transport"})
	printInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "printbridge_print_in_flight",
		Help:        "Print sessions currently open.",
		ConstLabels: constLabels,
	})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "printbridge_printer_lock_wait_seconds",
		Help:        "Time spent waiting for another job on the same printer.",
		Buckets:     []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "printbridge_http_requests_total",
		Help:        "HTTP requests by route and status.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "printbridge_http_request_duration_seconds",
		Help:        "HTTP request latency by route.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "route"})

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		printAttempts,
		printDuration,
		printInFlight,
		lockWait,
		httpRequests,
		httpDuration,
	)

	return &Metrics{
		registry:      registry,
		printAttempts: printAttempts,
		printDuration: printDuration,
		printInFlight: printInFlight,
		lockWait:      lockWait,
		httpRequests:  httpRequests,
		httpDuration:  httpDuration,
	}
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PrintStarted marks a session as open. Call the returned func when it closes.
func (m *Metrics) PrintStarted() func() {
	if m == nil {
		return func() {}
	}
	m.printInFlight.Inc()
	return m.printInFlight.Dec
}

// ObservePrint records one finished print attempt. result is ResultOK or an error code.
func (m *Metrics) ObservePrint(kind, transport, result string, d time.Duration) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.printAttempts.WithLabelValues(kind, transport, result).Inc()
	m.printDuration.WithLabelValues(kind, transport).Observe(d.Seconds())
}

// ObserveLockWait records how long a job waited for its printer
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

// GinMiddleware records request counts and latency by route template
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
