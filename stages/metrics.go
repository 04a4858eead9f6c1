package stages

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JeanGrijp/csrfchain/csrf"
	"github.com/JeanGrijp/csrfchain/pipeline"
)

// Collectors groups the metrics recorded by the Metrics stage.
type Collectors struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	CSRFRejections   prometheus.Counter
}

// NewCollectors registers the request metrics with reg. A nil reg uses the
// default registerer.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collectors{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csrfchain",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method and status code.",
		}, []string{"method", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "csrfchain",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),

		RequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "csrfchain",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed.",
		}),

		CSRFRejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: "csrfchain",
			Name:      "csrf_rejections_total",
			Help:      "Total requests rejected with an invalid CSRF token.",
		}),
	}
}

// Metrics returns a stage that records c for every request. An error that
// escapes the rest of the chain is counted as a 500.
func Metrics(c *Collectors) pipeline.Stage {
	return pipeline.StageFunc(func(req *pipeline.Request, next pipeline.Handler) (*pipeline.Response, error) {
		start := time.Now()

		c.RequestsInFlight.Inc()
		defer c.RequestsInFlight.Dec()

		res, err := next.Handle(req)

		status := http.StatusInternalServerError
		if err == nil {
			status = res.Status()
		}
		if status == csrf.StatusTokenInvalid {
			c.CSRFRejections.Inc()
		}
		c.RequestsTotal.WithLabelValues(req.Method(), strconv.Itoa(status)).Inc()
		c.RequestDuration.WithLabelValues(req.Method()).Observe(time.Since(start).Seconds())
		return res, err
	})
}
