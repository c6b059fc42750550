// Package metrics registers the prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector; a nil *Metrics is a valid no-op recorder.
type Metrics struct {
	Registry   *prometheus.Registry
	connector  *prometheus.CounterVec
	cache      *prometheus.CounterVec
	model      *prometheus.CounterVec
	mail       *prometheus.CounterVec
	references *prometheus.HistogramVec
}

// New creates collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		connector: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchdigest",
			Name:      "connector_calls_total",
			Help:      "Connector calls by source and outcome.",
		}, []string{"source", "outcome"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchdigest",
			Name:      "cache_lookups_total",
			Help:      "Connector cache lookups by result.",
		}, []string{"result"}),
		model: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchdigest",
			Name:      "model_calls_total",
			Help:      "Language model calls by model and outcome.",
		}, []string{"model", "outcome"}),
		mail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchdigest",
			Name:      "digest_mails_total",
			Help:      "Digest emails by outcome.",
		}, []string{"outcome"}),
		references: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "researchdigest",
			Name:      "answer_references",
			Help:      "References handed to the composer per answer.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6},
		}, []string{"mode"}),
	}
	m.Registry.MustRegister(m.connector, m.cache, m.model, m.mail, m.references)
	return m
}

// Connector records one connector outcome ("ok", "error", "timeout").
func (m *Metrics) Connector(source, outcome string) {
	if m == nil {
		return
	}
	m.connector.WithLabelValues(source, outcome).Inc()
}

// ConnectorCounter exposes one connector series for inspection.
func (m *Metrics) ConnectorCounter(source, outcome string) prometheus.Counter {
	return m.connector.WithLabelValues(source, outcome)
}

// CacheLookup records a hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}

// Model records a model call outcome.
func (m *Metrics) Model(model, outcome string) {
	if m == nil {
		return
	}
	m.model.WithLabelValues(model, outcome).Inc()
}

// Mail records a digest delivery outcome.
func (m *Metrics) Mail(outcome string) {
	if m == nil {
		return
	}
	m.mail.WithLabelValues(outcome).Inc()
}

// References observes how many references an answer used.
func (m *Metrics) References(mode string, n int) {
	if m == nil {
		return
	}
	m.references.WithLabelValues(mode).Observe(float64(n))
}

// ReferenceSamples reports how many answers were observed for mode.
func (m *Metrics) ReferenceSamples(mode string) uint64 {
	families, err := m.Registry.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		if mf.GetName() != "researchdigest_answer_references" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "mode" && label.GetValue() == mode {
					return metric.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}
