package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Fetches        *prometheus.CounterVec
	FieldFallbacks *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idmask_example_fetches_total",
			Help: "Example-configuration fetches, by result (ok or failure category)",
		}, []string{"result"}),
		FieldFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idmask_example_field_fallbacks_total",
			Help: "Labelled fields missing from the example response, by attribute",
		}, []string{"field"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "idmask_example_fetch_duration_seconds",
			Help:    "Time spent fetching and parsing an example configuration",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) IncrementFetch(result string) {
	m.Fetches.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementFallback(field string) {
	m.FieldFallbacks.WithLabelValues(field).Inc()
}

func (m *Metrics) ObserveFetchDuration(seconds float64) {
	m.FetchDuration.Observe(seconds)
}
