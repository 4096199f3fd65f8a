package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	BindingsInstalled   *prometheus.CounterVec
	BindingsRejected    *prometheus.CounterVec
	SurfacesSkipped     *prometheus.CounterVec
	VerificationEntries *prometheus.CounterVec
	InstallDuration     prometheus.Histogram
}

// New registers the engine metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BindingsInstalled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idmask_bindings_installed_total",
			Help: "Overrides bound to an identity surface, by surface kind",
		}, []string{"kind"}),
		BindingsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idmask_bindings_rejected_total",
			Help: "Bind attempts the platform refused, by surface kind",
		}, []string{"kind"}),
		SurfacesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idmask_surfaces_skipped_total",
			Help: "Configured overrides left unbound because their surface is not reachable",
		}, []string{"legibility"}),
		VerificationEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idmask_verification_entries_total",
			Help: "Verification entries produced, by outcome",
		}, []string{"result"}),
		InstallDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "idmask_install_duration_seconds",
			Help:    "Time spent installing overrides",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}

func (m *Metrics) IncrementInstalled(kind string) {
	m.BindingsInstalled.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementRejected(kind string) {
	m.BindingsRejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementSkipped(legibility string) {
	m.SurfacesSkipped.WithLabelValues(legibility).Inc()
}

func (m *Metrics) ObserveVerification(passed bool) {
	result := "failed"
	if passed {
		result = "passed"
	}
	m.VerificationEntries.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveInstallDuration(seconds float64) {
	m.InstallDuration.Observe(seconds)
}
