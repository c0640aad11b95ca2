package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the contact module.
type Metrics struct {
	ContactsCreated  prometheus.Counter
	ContactsDeleted  prometheus.Counter
	VersionConflicts prometheus.Counter
	SearchDuration   prometheus.Histogram
	SearchResultSize prometheus.Histogram
	ExportsRendered  prometheus.Counter
}

// New creates a Metrics instance with all contact module metrics
// registered on the default registry.
func New() *Metrics {
	return &Metrics{
		ContactsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contactdir_contacts_created_total",
			Help: "Total number of contacts created, including bulk items",
		}),
		ContactsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contactdir_contacts_deleted_total",
			Help: "Total number of contacts deleted, including bulk deletes",
		}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contactdir_version_conflicts_total",
			Help: "Updates rejected because the supplied version token was stale",
		}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "contactdir_search_duration_seconds",
			Help:    "Duration of contact search queries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SearchResultSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "contactdir_search_result_size",
			Help:    "Number of contacts returned per search page",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),
		ExportsRendered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contactdir_exports_rendered_total",
			Help: "Total number of export documents rendered",
		}),
	}
}

// ObserveSearch records the duration of a search operation.
func (m *Metrics) ObserveSearch(start time.Time) {
	m.SearchDuration.Observe(time.Since(start).Seconds())
}
