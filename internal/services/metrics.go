package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Dispatch metrics
	DispatchRequests *prometheus.CounterVec
	DispatchLatency  prometheus.Histogram
	FallbackAttempts *prometheus.CounterVec
	VisionFailures   prometheus.Counter

	// Knowledge metrics
	DocumentsIngested prometheus.Counter
	ChunksIngested    prometheus.Counter
	RAGQueries        prometheus.Counter
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		// Dispatch requests by skill, provider, model and outcome
		DispatchRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shopkeeper_dispatch_requests_total",
			Help: "Total number of dispatch requests by provider, model and outcome",
		}, []string{"provider", "model", "outcome"}), // outcome: "success" or "error"

		// Dispatch latency histogram
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "shopkeeper_dispatch_duration_seconds",
			Help:    "Dispatch latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}, // up to 2 minutes for LLM responses
		}),

		// Fallback chain traversals
		FallbackAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shopkeeper_dispatch_fallback_total",
			Help: "Total number of fallback attempts after a transport failure",
		}, []string{"from_provider", "to_provider"}),

		// Vision pre-pass failures (recovered locally, never fatal)
		VisionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shopkeeper_vision_failures_total",
			Help: "Total number of vision pre-pass failures",
		}),

		DocumentsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shopkeeper_knowledge_documents_ingested_total",
			Help: "Total number of knowledge documents ingested",
		}),

		ChunksIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shopkeeper_knowledge_chunks_ingested_total",
			Help: "Total number of knowledge chunks embedded and stored",
		}),

		RAGQueries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shopkeeper_rag_queries_total",
			Help: "Total number of RAG queries served",
		}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordDispatch records one dispatch outcome with its latency
func (m *Metrics) RecordDispatch(provider, model string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.DispatchRequests.WithLabelValues(provider, model, outcome).Inc()
	m.DispatchLatency.Observe(duration.Seconds())
}

// RecordFallback records a fallback hop between providers
func (m *Metrics) RecordFallback(fromProvider, toProvider string) {
	if m == nil {
		return
	}
	m.FallbackAttempts.WithLabelValues(fromProvider, toProvider).Inc()
}

// RecordVisionFailure records a recovered vision pre-pass failure
func (m *Metrics) RecordVisionFailure() {
	if m == nil {
		return
	}
	m.VisionFailures.Inc()
}

// RecordIngestion records a completed document ingestion
func (m *Metrics) RecordIngestion(chunkCount int) {
	if m == nil {
		return
	}
	m.DocumentsIngested.Inc()
	m.ChunksIngested.Add(float64(chunkCount))
}

// RecordRAGQuery records one RAG query
func (m *Metrics) RecordRAGQuery() {
	if m == nil {
		return
	}
	m.RAGQueries.Inc()
}
