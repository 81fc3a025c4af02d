package metrics

import "github.com/prometheus/client_golang/prometheus"

// Document pipeline Prometheus metrics.
var (
	ExtractionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docmanagement",
			Name:      "extraction_requests_total",
			Help:      "Total number of text extraction requests",
		},
		[]string{"provider", "model", "status"},
	)

	ExtractionRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docmanagement",
			Name:      "extraction_request_duration_seconds",
			Help:      "Text extraction request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	ExtractionTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docmanagement",
			Name:      "extraction_tokens_total",
			Help:      "Total tokens consumed by extraction",
		},
		[]string{"provider", "model", "type"},
	)

	ExtractionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docmanagement",
			Name:      "extraction_errors_total",
			Help:      "Total extraction errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	DocumentsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docmanagement",
			Name:      "documents_ingested_total",
			Help:      "Uploads by outcome",
		},
		[]string{"status"}, // "ok" / "storage_error" / "queue_error"
	)

	JobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docmanagement",
			Name:      "jobs_processed_total",
			Help:      "Extraction jobs by outcome",
		},
		[]string{"outcome"}, // "extracted" / "skipped" / "dropped" / "retried" / "dead_lettered"
	)

	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docmanagement",
			Name:      "job_duration_seconds",
			Help:      "Extraction job processing time in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	IndexOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docmanagement",
			Name:      "index_operations_total",
			Help:      "Search index calls by operation and final status",
		},
		[]string{"op", "status"}, // status: "success" / "exhausted" / "permanent"
	)

	IndexRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docmanagement",
			Name:      "index_retries_total",
			Help:      "Search index retry attempts",
		},
		[]string{"op"},
	)

	SearchDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docmanagement",
			Name:      "search_degraded_total",
			Help:      "Searches answered with an empty page after retries were exhausted",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers the pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(ExtractionRequestsTotal)
	prometheus.MustRegister(ExtractionRequestDuration)
	prometheus.MustRegister(ExtractionTokensTotal)
	prometheus.MustRegister(ExtractionErrorsTotal)
	prometheus.MustRegister(DocumentsIngestedTotal)
	prometheus.MustRegister(JobsProcessedTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(IndexOperationsTotal)
	prometheus.MustRegister(IndexRetriesTotal)
	prometheus.MustRegister(SearchDegradedTotal)
	pipelineMetricsRegistered = true
}
