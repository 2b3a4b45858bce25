// Package observability provides OpenTelemetry metrics and tracing for the learning hub API.
package observability

// Metric names (OpenTelemetry, exported over OTLP).
const (
	MetricNameRequestDuration       = "learning_hub_http_request_duration_seconds"
	MetricNameRequestBodyTooLarge   = "learning_hub_request_body_too_large_total"
	MetricNameCacheLookups          = "learning_hub_cache_lookups_total"
	MetricNameVectorIndexOperations = "learning_hub_vector_index_operations_total"
	MetricNameVectorIndexDuration   = "learning_hub_vector_index_operation_duration_seconds"
	MetricNameLearningsIngested     = "learning_hub_learnings_ingested_total"
	MetricNameFeedbackRecorded      = "learning_hub_feedback_recorded_total"
	MetricNameReindexJobsEnqueued   = "learning_hub_reindex_jobs_enqueued_total"
	MetricNameReindexOutcomes       = "learning_hub_reindex_outcomes_total"
	MetricNameReindexDuration       = "learning_hub_reindex_duration_seconds"
)

// Attribute keys.
const (
	AttrCache        = "cache"
	AttrResult       = "result"
	AttrOperation    = "operation"
	AttrOutcome      = "outcome"
	AttrStatus       = "status"
	AttrIndexed      = "indexed"
	AttrFeedbackType = "feedback_type"
	AttrMethod       = "method"
	AttrRoute        = "route"
	AttrStatusClass  = "status_class"
)

// AllowedCacheNames for learning_hub_cache_lookups_total.
var AllowedCacheNames = map[string]bool{
	"query_embedding": true,
}

// AllowedVectorIndexOperations for learning_hub_vector_index_*.
var AllowedVectorIndexOperations = map[string]bool{
	"store":  true,
	"update": true,
	"delete": true,
	"search": true,
	"stats":  true,
}

// AllowedVectorIndexOutcomes for learning_hub_vector_index_*.
var AllowedVectorIndexOutcomes = map[string]bool{
	"success":  true,
	"error":    true,
	"timeout":  true,
	"disabled": true,
}

// AllowedFeedbackTypes for learning_hub_feedback_recorded_total.
var AllowedFeedbackTypes = map[string]bool{
	"thumbs_up":   true,
	"thumbs_down": true,
	"star_rating": true,
	"flag":        true,
	"comment":     true,
}

// AllowedReindexStatuses for learning_hub_reindex_outcomes_total and learning_hub_reindex_duration_seconds.
var AllowedReindexStatuses = map[string]bool{
	"success":      true,
	"skipped":      true,
	"retry":        true,
	"failed_final": true,
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeCacheName returns name if it is a known cache, otherwise "other".
func NormalizeCacheName(name string) string {
	return NormalizeReason(name, AllowedCacheNames)
}
