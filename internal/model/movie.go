package model

import "time"

// MatchStatus describes the outcome of a metadata lookup for a title.
type MatchStatus string

const (
	// StatusMatched means the API returned metadata for the title.
	StatusMatched MatchStatus = "matched"
	// StatusNotFound means the API answered and found no match.
	StatusNotFound MatchStatus = "not_found"
	// StatusError means the lookup failed after exhausting retries.
	// Errors are never cached so a later run can retry.
	StatusError MatchStatus = "error"
	// StatusBudgetExhausted means the daily call budget ran out before the
	// title could be looked up. Distinct from an API not-found.
	StatusBudgetExhausted MatchStatus = "budget_exhausted"
	// StatusNotEnriched means the title was never selected for enrichment.
	StatusNotEnriched MatchStatus = "not_enriched"
)

// MovieMetadata holds the structured fields returned by the metadata API.
type MovieMetadata struct {
	Title      string  `json:"title" yaml:"title"`
	Year       string  `json:"year,omitempty" yaml:"year,omitempty"`
	Rated      string  `json:"rated,omitempty" yaml:"rated,omitempty"`
	Released   string  `json:"released,omitempty" yaml:"released,omitempty"`
	Runtime    string  `json:"runtime,omitempty" yaml:"runtime,omitempty"`
	Genre      string  `json:"genre,omitempty" yaml:"genre,omitempty"`
	Director   string  `json:"director,omitempty" yaml:"director,omitempty"`
	Actors     string  `json:"actors,omitempty" yaml:"actors,omitempty"`
	Plot       string  `json:"plot,omitempty" yaml:"plot,omitempty"`
	Language   string  `json:"language,omitempty" yaml:"language,omitempty"`
	Country    string  `json:"country,omitempty" yaml:"country,omitempty"`
	Awards     string  `json:"awards,omitempty" yaml:"awards,omitempty"`
	PosterURL  string  `json:"poster_url,omitempty" yaml:"poster_url,omitempty"`
	Metascore  *int    `json:"metascore,omitempty" yaml:"metascore,omitempty"`
	IMDBRating *float64 `json:"imdb_rating,omitempty" yaml:"imdb_rating,omitempty"`
	IMDBVotes  *int    `json:"imdb_votes,omitempty" yaml:"imdb_votes,omitempty"`
	IMDBID     string  `json:"imdb_id,omitempty" yaml:"imdb_id,omitempty"`
	BoxOffice  string  `json:"box_office,omitempty" yaml:"box_office,omitempty"`
}

// EnrichmentResult is the outcome of one metadata lookup. Exactly one result
// exists per distinct queried title per run.
type EnrichmentResult struct {
	// Title is the original query title. Staging rows are keyed by it so
	// they stay joinable with the raw revenue rows.
	Title string `json:"title"`
	// MatchedTitle is the canonical title the API returned. It may differ
	// from the query title and is carried as an informational field only.
	MatchedTitle string         `json:"matched_title,omitempty"`
	Status       MatchStatus    `json:"match_status"`
	Metadata     *MovieMetadata `json:"metadata,omitempty"`
	FetchedAt    time.Time      `json:"fetched_at"`
	FromCache    bool           `json:"from_cache"`
}

// Enriched reports whether the result carries metadata.
func (r EnrichmentResult) Enriched() bool {
	return r.Status == StatusMatched && r.Metadata != nil
}

// CacheEntry is the persisted form of an EnrichmentResult, keyed by the
// normalized title. A present entry is authoritative for its key regardless
// of status; not-found entries are cached with the same durability as
// matches.
type CacheEntry struct {
	Key          string         `json:"key"`
	Title        string         `json:"title"`
	Status       MatchStatus    `json:"match_status"`
	MatchedTitle string         `json:"matched_title,omitempty"`
	Metadata     *MovieMetadata `json:"metadata,omitempty"`
	FetchedAt    time.Time      `json:"fetched_at"`
}

// Result converts the cache entry back into an EnrichmentResult for the
// given query title.
func (e CacheEntry) Result(title string) EnrichmentResult {
	return EnrichmentResult{
		Title:        title,
		MatchedTitle: e.MatchedTitle,
		Status:       e.Status,
		Metadata:     e.Metadata,
		FetchedAt:    e.FetchedAt,
		FromCache:    true,
	}
}
