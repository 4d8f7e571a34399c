package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query pipeline Prometheus metrics.
var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsage",
			Name:      "queries_total",
			Help:      "Total queries processed, by routing decision",
		},
		[]string{"route"}, // "internal" / "web"
	)

	IngestedChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docsage",
			Name:      "ingested_chunks_total",
			Help:      "Total document chunks stored through ingestion",
		},
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers query pipeline metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(IngestedChunksTotal)
	queryMetricsRegistered = true
}
