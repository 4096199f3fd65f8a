package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SnapshotSaves      *prometheus.CounterVec
	SnapshotRecoveries prometheus.Counter
	Regenerations      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SnapshotSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idmask_snapshot_saves_total",
			Help: "Snapshots persisted, by origin",
		}, []string{"origin"}),
		SnapshotRecoveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "idmask_snapshot_recoveries_total",
			Help: "Loads that found a corrupt snapshot and fell back to the empty one",
		}),
		Regenerations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idmask_regenerations_total",
			Help: "Example-configuration regenerations, by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementSaves(origin string) {
	m.SnapshotSaves.WithLabelValues(origin).Inc()
}

func (m *Metrics) IncrementRecoveries() {
	m.SnapshotRecoveries.Inc()
}

func (m *Metrics) IncrementRegenerations(ok bool) {
	result := "failed"
	if ok {
		result = "ok"
	}
	m.Regenerations.WithLabelValues(result).Inc()
}
