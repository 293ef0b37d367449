package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Failure kinds counted by gap_resolution_failures_total.
const (
	FailureAffiliationNoMatch    = "affiliation_no_match"
	FailureAffiliationAmbiguous  = "affiliation_ambiguous"
	FailureAffiliationNoCountry  = "affiliation_unknown_country"
	FailureVenueUnresolved       = "venue_unresolved"
	FailureNoPublicationType     = "no_publication_type"
	FailureDuplicatePublication  = "duplicate_publication"
	FailureUnresolvedAuthor      = "unresolved_author"
	FailureAuthorshipConflict    = "authorship_conflict"
	FailureResearchAreaUnmatched = "research_area_unmatched"
)

// Metrics is the per-run metric registry. A batch job has no scrape
// endpoint, so the registry is written to a textfile once the run ends.
type Metrics struct {
	registry *prometheus.Registry
	duration *prometheus.GaugeVec
	rows     *prometheus.GaugeVec
	failures *prometheus.CounterVec
}

// NewMetrics creates and registers the run metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gap_stage_duration_seconds",
			Help: "Wall time of each pipeline stage in the last run.",
		}, []string{"stage"}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gap_stage_rows",
			Help: "Rows written by each pipeline stage in the last run.",
		}, []string{"stage"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gap_resolution_failures_total",
			Help: "Values that could not be resolved and were left empty.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.duration, m.rows, m.failures)
	return m
}

func (m *Metrics) observeStage(name string, seconds float64, rows int64) {
	m.duration.WithLabelValues(name).Set(seconds)
	m.rows.WithLabelValues(name).Set(float64(rows))
}

// Failure adds n to the failure counter of kind.
func (m *Metrics) Failure(kind string, n int) {
	if n > 0 {
		m.failures.WithLabelValues(kind).Add(float64(n))
	}
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
