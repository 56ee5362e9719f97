// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry every collector below is registered on.
var Registry = prometheus.NewRegistry()

var (
	// AskRequests counts /ask responses by HTTP status code.
	AskRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socratic_ask_requests_total",
		Help: "Questions answered, partitioned by HTTP status code.",
	}, []string{"code"})

	// AskDuration observes end-to-end /ask latency.
	AskDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "socratic_ask_duration_seconds",
		Help:    "End-to-end latency of /ask requests.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// ProviderCalls observes external provider latency by operation and outcome.
	ProviderCalls = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socratic_provider_call_duration_seconds",
		Help:    "Latency of embedding and completion provider calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "outcome"})

	// IndexedChunks reports the number of chunks in the live index.
	IndexedChunks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "socratic_index_chunks",
		Help: "Number of chunks held by the vector index.",
	})
)

func init() {
	Registry.MustRegister(
		AskRequests,
		AskDuration,
		ProviderCalls,
		IndexedChunks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
