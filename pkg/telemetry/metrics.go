package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Module provides Prometheus HTTP metrics backed by the default registry, the
// same registry the GORM prometheus plugin reports into.
var Module = fx.Module("telemetry",
	fx.Provide(
		func() prometheus.Registerer { return prometheus.DefaultRegisterer },
		func() prometheus.Gatherer { return prometheus.DefaultGatherer },
		NewMetrics,
	),
)

// Metrics exposes Prometheus request metrics for the HTTP API.
type Metrics struct {
	apiRequests *prometheus.CounterVec
	apiDuration *prometheus.HistogramVec
	inFlight    prometheus.Gauge
}

// NewMetrics registers the API collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dormitory_api_requests_total",
		Help: "Counts API requests by method, route, and status.",
	}, []string{"method", "route", "status"})

	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dormitory_api_duration_seconds",
		Help:    "API request latency per method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dormitory_api_in_flight_requests",
		Help: "Requests currently being served.",
	})

	for _, c := range []prometheus.Collector{apiRequests, apiDuration, inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &Metrics{
		apiRequests: apiRequests,
		apiDuration: apiDuration,
		inFlight:    inFlight,
	}, nil
}

// ObserveAPIRequest records an API request and latency.
func (m *Metrics) ObserveAPIRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	methodLabel := sanitizeLabel(method)
	routeLabel := sanitizeLabel(route)
	m.apiRequests.WithLabelValues(methodLabel, routeLabel, strconv.Itoa(status)).Inc()
	m.apiDuration.WithLabelValues(methodLabel, routeLabel).Observe(duration.Seconds())
}

// GinMiddleware observes every request under its route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		c.Next()

		m.ObserveAPIRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// Handler serves the gathered metrics in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func sanitizeLabel(val string) string {
	if val == "" {
		return "unknown"
	}
	return val
}
