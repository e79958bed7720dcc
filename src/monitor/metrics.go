package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records monitor activity. A nil *Metrics records nothing.
type Metrics struct {
	checks  *prometheus.CounterVec
	running prometheus.Gauge
}

// NewMetrics registers the monitor collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		checks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocv",
			Subsystem: "monitor",
			Name:      "checks_total",
			Help:      "Status checks by outcome",
		}, []string{"outcome"}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "ocv",
			Subsystem: "monitor",
			Name:      "running",
			Help:      "1 while the monitor is running",
		}),
	}
}

func (m *Metrics) outcome(o Outcome) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) setRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
}
