package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/chatpanel/learning-hub/internal/huberrors"
	"github.com/chatpanel/learning-hub/internal/vectorindex"
)

// Result count bounds for Search.
const (
	DefaultSearchResults = 5
	MaxSearchResults     = 50
)

// SearchWarningUnavailable marks a degraded (empty) search result.
const SearchWarningUnavailable = "vector index unavailable; returning no matches"

// SearchResult is the outcome of a similarity search. Warning is set when the index could not be queried;
// the result is then empty but otherwise identical in shape.
type SearchResult struct {
	Matches    []vectorindex.Match `json:"results"`
	Query      string              `json:"query"`
	TotalFound int                 `json:"total_found"`
	Warning    string              `json:"warning,omitempty"`
}

// RetrievalService answers similarity queries against the vector index.
type RetrievalService struct {
	index  vectorindex.Gateway
	logger *slog.Logger
}

// NewRetrievalService creates a RetrievalService. A nil index always degrades.
func NewRetrievalService(index vectorindex.Gateway, logger *slog.Logger) *RetrievalService {
	if logger == nil {
		logger = slog.Default()
	}

	if index == nil {
		index = vectorindex.Disabled{}
	}

	return &RetrievalService{index: index, logger: logger}
}

// Search returns up to resultCount learning records most similar to query, most similar first.
// resultCount <= 0 means DefaultSearchResults; larger values are capped at MaxSearchResults.
// Only an empty query is an error; index failures yield an empty result with Warning set.
func (s *RetrievalService) Search(ctx context.Context, query string, resultCount int, helpful *bool) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, huberrors.NewValidationError("query", "query is required and must be non-empty")
	}

	if resultCount <= 0 {
		resultCount = DefaultSearchResults
	}

	resultCount = min(resultCount, MaxSearchResults)

	resp, err := s.index.Search(ctx, vectorindex.SearchRequest{Query: query, Limit: resultCount, Helpful: helpful})
	if err != nil {
		logIndexFailure(ctx, s.logger, "vector index search failed", err, "n_results", resultCount)

		return SearchResult{Matches: []vectorindex.Match{}, Query: query, Warning: SearchWarningUnavailable}, nil
	}

	matches := resp.Matches
	if matches == nil {
		matches = []vectorindex.Match{}
	}

	// The gateway's own count is kept; it may exceed the returned matches.
	total := max(resp.TotalFound, len(matches))

	if len(matches) > resultCount {
		matches = matches[:resultCount]
		total = len(matches)
	}

	return SearchResult{Matches: matches, Query: query, TotalFound: total}, nil
}
