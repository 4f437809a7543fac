package health

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports the latest result of every check.
type Metrics struct {
	checkStatus *prometheus.GaugeVec
}

// NewMetrics registers the health gauges with registerer.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "fxgateway"
	}

	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "check_status",
			Help:      "Current health check status (1=healthy, 0.5=degraded, 0=unhealthy)",
		},
		[]string{"check"},
	)

	if registerer != nil {
		if err := registerer.Register(gauge); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
					gauge = existing
				}
			}
		}
	}

	return &Metrics{checkStatus: gauge}
}

func (m *Metrics) setCheck(name string, status Status) {
	if m == nil {
		return
	}

	var v float64
	switch status {
	case StatusHealthy:
		v = 1
	case StatusDegraded:
		v = 0.5
	}
	m.checkStatus.WithLabelValues(name).Set(v)
}
