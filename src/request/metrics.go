package request

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records pipeline activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocv",
			Subsystem: "request",
			Name:      "total",
			Help:      "Requests by profile, method and outcome code",
		}, []string{"profile", "method", "code"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ocv",
			Subsystem: "request",
			Name:      "duration_seconds",
			Help:      "Duration of a single attempt",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 6, 15, 60, 180},
		}, []string{"profile", "method"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocv",
			Subsystem: "request",
			Name:      "retries_total",
			Help:      "Retried attempts by profile",
		}, []string{"profile"}),
	}
}

func (m *Metrics) observe(profile, method string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(profile, method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(profile, method).Observe(seconds)
}

func (m *Metrics) retried(profile string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(profile).Inc()
}
