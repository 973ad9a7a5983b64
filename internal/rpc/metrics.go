package rpc

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks portal request statistics.
type RequestMetrics struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	startedTotal    *prometheus.CounterVec
	completedTotal  *prometheus.CounterVec
	inflight        prometheus.Gauge
	durationSeconds *prometheus.HistogramVec
}

// NewRequestMetrics creates the Prometheus collectors for portal requests.
// A nil registerer falls back to prometheus.DefaultRegisterer.
func NewRequestMetrics(registerer prometheus.Registerer) *RequestMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &RequestMetrics{
		registerer: registerer,
		startedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portalflow",
				Subsystem: "request",
				Name:      "started_total",
				Help:      "Total number of portal requests sent",
			},
			[]string{"interface", "method"},
		),
		completedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portalflow",
				Subsystem: "request",
				Name:      "completed_total",
				Help:      "Total number of portal requests completed, by outcome",
			},
			[]string{"interface", "method", "outcome"},
		),
		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "portalflow",
				Subsystem: "request",
				Name:      "inflight",
				Help:      "Number of portal requests currently awaiting a response",
			},
		),
		durationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "portalflow",
				Subsystem: "request",
				Name:      "duration_seconds",
				Help:      "Time from sending a portal request to its terminal outcome",
				Buckets:   []float64{.05, .1, .5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"interface", "method"},
		),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *RequestMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.startedTotal,
		m.completedTotal,
		m.inflight,
		m.durationSeconds,
	}
	for _, collector := range collectors {
		if err := m.registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

func (m *RequestMetrics) requestStarted(iface, method string) {
	m.startedTotal.WithLabelValues(iface, method).Inc()
	m.inflight.Inc()
}

func (m *RequestMetrics) requestCompleted(iface, method, outcome string, d time.Duration) {
	m.completedTotal.WithLabelValues(iface, method, outcome).Inc()
	m.inflight.Dec()
	m.durationSeconds.WithLabelValues(iface, method).Observe(d.Seconds())
}
