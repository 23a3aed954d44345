package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the dashboard service's operational metrics.
type Metrics struct {
	refreshes          *prometheus.CounterVec
	refreshDuration    prometheus.Histogram
	collectionFailures *prometheus.CounterVec
	lookups            *prometheus.CounterVec
}

// NewMetrics creates unregistered dashboard metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "org_dashboard_refresh_runs_total",
			Help: "Dashboard refresh runs by result.",
		}, []string{"result"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "org_dashboard_refresh_duration_seconds",
			Help:    "Duration of dashboard refresh runs.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		collectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "org_dashboard_collection_failures_total",
			Help: "Upstream collection fetch failures by collection.",
		}, []string{"collection"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "org_dashboard_aggregate_lookups_total",
			Help: "Aggregate lookups by the layer that served them.",
		}, []string{"served_by"}),
	}
}

// Collectors returns the collectors to register with a Prometheus registry.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.refreshes, m.refreshDuration, m.collectionFailures, m.lookups}
}

func (m *Metrics) observeRefresh(status RefreshStatus) {
	result := "success"
	switch {
	case status.Error != "":
		result = "failure"
	case len(status.FailedCollections) > 0:
		result = "partial"
	}
	m.refreshes.WithLabelValues(result).Inc()
	m.refreshDuration.Observe(status.Duration.Seconds())
}

func (m *Metrics) collectionFailed(collection string) {
	m.collectionFailures.WithLabelValues(collection).Inc()
}

func (m *Metrics) lookup(servedBy string) {
	m.lookups.WithLabelValues(servedBy).Inc()
}
