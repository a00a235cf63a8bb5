package db

import "github.com/kailas-cloud/scopedex/internal/domain/query"

// SearchQuery is the input for a filtered, paginated FT.SEARCH.
type SearchQuery struct {
	IndexName string
	// Schema maps attribute names to field types; clauses on other attributes are rejected.
	Schema  map[string]IndexFieldType
	Filters query.Compiled
	// DefaultSort applies when Filters carries neither ordering nor a search term.
	DefaultSort  *query.Ordering
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Fields map[string]string
}
