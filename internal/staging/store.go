// Package staging loads pipeline output into the two staging tables with
// truncate-and-load semantics. Each replace runs in a single transaction so
// a failed load leaves the previous contents intact.
package staging

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/reeldata/marquee/internal/model"
)

// Store defines the persistence interface for the staging tables.
type Store interface {
	// ReplaceRevenues truncates stg_revenues_raw and loads the given records
	// in one transaction. Returns the number of rows loaded.
	ReplaceRevenues(ctx context.Context, records []model.RevenueRecord) (int, error)

	// ReplaceMovies truncates stg_movies_enriched and loads one row per
	// distinct title in one transaction. Returns the number of rows loaded.
	ReplaceMovies(ctx context.Context, results []model.EnrichmentResult) (int, error)

	// Validate runs sanity queries over both tables after a load.
	Validate(ctx context.Context) (*ValidationReport, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// RevenueValidation summarizes the loaded raw-revenue table.
type RevenueValidation struct {
	RowCount     int             `json:"row_count" yaml:"row_count"`
	UniqueTitles int             `json:"unique_titles" yaml:"unique_titles"`
	UniqueDates  int             `json:"unique_dates" yaml:"unique_dates"`
	MinDate      time.Time       `json:"min_date" yaml:"min_date"`
	MaxDate      time.Time       `json:"max_date" yaml:"max_date"`
	TotalRevenue decimal.Decimal `json:"total_revenue" yaml:"total_revenue"`
}

// MovieValidation summarizes the loaded enriched-movie table.
type MovieValidation struct {
	RowCount   int `json:"row_count" yaml:"row_count"`
	Matched    int `json:"matched" yaml:"matched"`
	WithRating int `json:"with_rating" yaml:"with_rating"`
}

// ValidationReport holds the post-load validation results for both tables.
type ValidationReport struct {
	Revenues RevenueValidation `json:"revenues" yaml:"revenues"`
	Movies   MovieValidation   `json:"movies" yaml:"movies"`
}

// DedupeResults collapses duplicate titles, keeping the result with the
// latest FetchedAt per title. The staging movie table is keyed by title, so
// the load must see at most one row per key. Output order is deterministic
// (title ascending).
func DedupeResults(results []model.EnrichmentResult) []model.EnrichmentResult {
	byTitle := make(map[string]model.EnrichmentResult, len(results))
	for _, r := range results {
		prev, ok := byTitle[r.Title]
		if !ok || r.FetchedAt.After(prev.FetchedAt) {
			byTitle[r.Title] = r
		}
	}

	out := make([]model.EnrichmentResult, 0, len(byTitle))
	for _, r := range byTitle {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// movieRow flattens an EnrichmentResult into the column values shared by
// both store implementations. Metadata columns are nil when the lookup did
// not match.
type movieRow struct {
	title        string
	matchedTitle *string
	matchStatus  string
	isEnriched   bool
	fetchedAt    time.Time

	year, rated, released, runtime *string
	genre, director, actors, plot  *string
	language, country, awards      *string
	posterURL, imdbID, boxOffice   *string
	metascore, imdbVotes           *int
	imdbRating                     *float64
}

func newMovieRow(r model.EnrichmentResult) movieRow {
	row := movieRow{
		title:       r.Title,
		matchStatus: string(r.Status),
		isEnriched:  r.Enriched(),
		fetchedAt:   r.FetchedAt.UTC(),
	}
	if r.MatchedTitle != "" {
		row.matchedTitle = &r.MatchedTitle
	}
	if m := r.Metadata; m != nil {
		row.year = optString(m.Year)
		row.rated = optString(m.Rated)
		row.released = optString(m.Released)
		row.runtime = optString(m.Runtime)
		row.genre = optString(m.Genre)
		row.director = optString(m.Director)
		row.actors = optString(m.Actors)
		row.plot = optString(m.Plot)
		row.language = optString(m.Language)
		row.country = optString(m.Country)
		row.awards = optString(m.Awards)
		row.posterURL = optString(m.PosterURL)
		row.imdbID = optString(m.IMDBID)
		row.boxOffice = optString(m.BoxOffice)
		row.metascore = m.Metascore
		row.imdbVotes = m.IMDBVotes
		row.imdbRating = m.IMDBRating
	}
	return row
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
