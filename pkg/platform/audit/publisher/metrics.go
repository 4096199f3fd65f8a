package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Delivered           prometheus.Counter
	Dropped             *prometheus.CounterVec
	Failures            prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Delivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "idmask_audit_delivered_total",
			Help: "Audit events accepted by the sink",
		}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idmask_audit_dropped_total",
			Help: "Audit events dropped before reaching the sink, by reason",
		}, []string{"reason"}),
		Failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "idmask_audit_sink_failures_total",
			Help: "Audit events the sink rejected",
		}),
		CircuitBreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "idmask_audit_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) IncDelivered() {
	m.Delivered.Inc()
}

func (m *Metrics) IncDropped(reason string) {
	m.Dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncFailures() {
	m.Failures.Inc()
}

func (m *Metrics) SetCircuitBreakerState(open bool) {
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
