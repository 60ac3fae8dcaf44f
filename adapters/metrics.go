package adapters

import (
	"net/http"
	"strconv"
	"time"

	"github.com/advdv/bserve"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute labels requests that no route matched, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

// MetricsConfig configures the request metrics.
type MetricsConfig struct {
	Namespace string
	Subsystem string
	Buckets   []float64 // request duration buckets in seconds (default: prometheus.DefBuckets)
}

// Metrics tracks request metrics by route pattern.
//
// Metrics:
//   - <ns>_<sub>_requests_total: request count by route, method and status
//   - <ns>_<sub>_request_duration_seconds: handler duration histogram by route and method
//   - <ns>_<sub>_requests_in_flight: requests currently being handled
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// NewMetrics creates the request metrics and registers them with registry. A nil registry is
// replaced with a fresh one.
func NewMetrics(cfg MetricsConfig, registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "bserve"
	}

	if len(cfg.Buckets) == 0 {
		cfg.Buckets = prometheus.DefBuckets
	}

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP request handlers in seconds",
				Buckets:   cfg.Buckets,
			},
			[]string{"route", "method"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being handled",
			},
		),
	}

	registry.MustRegister(m.requestsTotal, m.requestDuration, m.inFlight)

	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns the Prometheus exposition endpoint for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Adapt implements [bserve.Adapter]. It must be installed outside the router so the matched
// pattern is known when the handler returns.
func (m *Metrics) Adapt(next bserve.Handler) bserve.Handler {
	return bserve.HandlerFunc(func(c *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		err := next.ServeBHTTP(c, w, r)

		route := c.Pattern()
		if route == "" {
			route = unmatchedRoute
		}

		method := c.Method().String()
		if method == "" {
			method = "OTHER"
		}

		m.requestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(statusOf(w, err))).Inc()

		return err
	})
}

// statusOf predicts the status the response will be sent with once err is rendered.
func statusOf(w bserve.ResponseWriter, err error) int {
	if err == nil {
		if s := w.Status(); s != 0 {
			return s
		}

		return http.StatusOK
	}

	var rerr *bserve.RedirectError
	if errors.As(err, &rerr) {
		return rerr.Code
	}

	return bserve.StatusOf(err)
}
