package observability

import "testing"

func TestNormalizeCacheName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"query embedding", "query_embedding", "query_embedding"},
		{"empty", "", "other"},
		{"unknown", "webhook_list", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeCacheName(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeCacheName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeReason(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		allowed  map[string]bool
		expected string
	}{
		{"vector op", "search", AllowedVectorIndexOperations, "search"},
		{"vector outcome", "timeout", AllowedVectorIndexOutcomes, "timeout"},
		{"feedback alias is not canonical", "approval", AllowedFeedbackTypes, "other"},
		{"reindex status", "failed_final", AllowedReindexStatuses, "failed_final"},
		{"unknown reindex status", "exploded", AllowedReindexStatuses, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeReason(tt.input, tt.allowed)
			if got != tt.expected {
				t.Errorf("NormalizeReason(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
