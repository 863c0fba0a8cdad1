package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reeldata/marquee/internal/cache"
	"github.com/reeldata/marquee/internal/model"
	"github.com/reeldata/marquee/internal/resilience"
	"github.com/reeldata/marquee/pkg/omdb"
)

// fakeAPI is a deterministic omdb.Client for tests.
type fakeAPI struct {
	mu           sync.Mutex
	movies       map[string]*omdb.Movie   // exact-title matches
	searches     map[string][]omdb.SearchHit
	failuresLeft int           // transient failures before ByTitle succeeds
	permanentErr error
	delay        time.Duration // simulated in-flight latency per ByTitle call

	byTitleCalls int
	searchCalls  int
}

func (f *fakeAPI) ByTitle(_ context.Context, title string, _ int) (*omdb.Result, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byTitleCalls++

	if f.permanentErr != nil {
		return nil, f.permanentErr
	}
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, resilience.NewTransientError(errors.New("service unavailable"), 503)
	}
	if m, ok := f.movies[title]; ok {
		return &omdb.Result{Found: true, Movie: m}, nil
	}
	return &omdb.Result{Found: false}, nil
}

func (f *fakeAPI) Search(_ context.Context, query string, _ int) ([]omdb.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	return f.searches[query], nil
}

func (f *fakeAPI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byTitleCalls + f.searchCalls
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func movie(title string) *omdb.Movie {
	return &omdb.Movie{Title: title, Year: "2008", Genre: "Drama"}
}

func candidate(title string) model.Candidate {
	return model.Candidate{Title: title}
}

func TestEnrichAll_Match_CachedAndBudgeted(t *testing.T) {
	api := &fakeAPI{movies: map[string]*omdb.Movie{"Inception": movie("Inception")}}
	store := cache.NewMemory()
	e := New(api, store, Config{Budget: 10, Retry: fastRetry()})

	results, err := e.EnrichAll(context.Background(), []model.Candidate{candidate("Inception")})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, model.StatusMatched, results[0].Status)
	assert.Equal(t, "Inception", results[0].MatchedTitle)
	require.NotNil(t, results[0].Metadata)
	assert.Equal(t, "Drama", results[0].Metadata.Genre)
	assert.False(t, results[0].FromCache)

	entry, ok, err := store.Get(context.Background(), cache.Key("Inception", 0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.StatusMatched, entry.Status)

	stats := e.Stats(results)
	assert.Equal(t, 1, stats.CallsMade)
	assert.Equal(t, 9, stats.CallsRemaining)
	assert.Equal(t, 1, stats.Matched)
}

func TestEnrichAll_CacheHit_NoCallNoBudget(t *testing.T) {
	api := &fakeAPI{}
	store := cache.NewMemory()
	require.NoError(t, store.Put(context.Background(), model.CacheEntry{
		Key:       cache.Key("Example Movie", 0),
		Title:     "Example Movie",
		Status:    model.StatusNotFound,
		FetchedAt: time.Now().UTC(),
	}))

	e := New(api, store, Config{Budget: 5, Retry: fastRetry()})
	results, err := e.EnrichAll(context.Background(), []model.Candidate{candidate("Example Movie")})
	require.NoError(t, err)

	// A cached not_found serves from cache with zero calls.
	assert.Equal(t, model.StatusNotFound, results[0].Status)
	assert.True(t, results[0].FromCache)
	assert.Equal(t, 0, api.totalCalls())
	assert.Equal(t, 5, e.Stats(results).CallsRemaining)
}

func TestEnrichAll_SameKeyTwice_OneCall(t *testing.T) {
	api := &fakeAPI{movies: map[string]*omdb.Movie{"WALL-E": movie("WALL-E")}}
	store := cache.NewMemory()
	e := New(api, store, Config{Budget: 10, Retry: fastRetry()})

	// Trivially-equivalent spellings normalize to one key; the second
	// candidate must be served without a second external call.
	results, err := e.EnrichAll(context.Background(), []model.Candidate{
		candidate("WALL-E"),
		candidate("wall e"),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, api.byTitleCalls)
	assert.Equal(t, model.StatusMatched, results[0].Status)
	assert.Equal(t, model.StatusMatched, results[1].Status)
	assert.Equal(t, "WALL-E", results[0].Title)
	assert.Equal(t, "wall e", results[1].Title, "each result keeps its own query title")
}

func TestEnrichAll_ConcurrentSameKey_Coalesced(t *testing.T) {
	// A slow lookup keeps the first call in flight while the equivalent
	// spellings arrive concurrently; they must join that call instead of
	// issuing their own and double-spending the budget.
	api := &fakeAPI{
		delay: 50 * time.Millisecond,
		movies: map[string]*omdb.Movie{
			"WALL-E":   movie("WALL-E"),
			"wall e":   movie("WALL-E"),
			"Wall, E.": movie("WALL-E"),
		},
	}
	store := cache.NewMemory()
	e := New(api, store, Config{Budget: 10, Concurrency: 4, Retry: fastRetry()})

	results, err := e.EnrichAll(context.Background(), []model.Candidate{
		candidate("WALL-E"),
		candidate("wall e"),
		candidate("Wall, E."),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, api.totalCalls(), "in-flight duplicates share one external call")
	for i, r := range results {
		assert.Equal(t, model.StatusMatched, r.Status, "result %d", i)
		assert.Equal(t, "WALL-E", r.MatchedTitle, "result %d", i)
	}

	stats := e.Stats(results)
	assert.Equal(t, 1, stats.CallsMade)
	assert.Equal(t, 9, stats.CallsRemaining)
}

func TestEnrichAll_YearOnlyTitle_SkipsFallbackSearch(t *testing.T) {
	api := &fakeAPI{} // nothing matches the direct lookup
	store := cache.NewMemory()
	e := New(api, store, Config{Budget: 5, Retry: fastRetry()})

	results, err := e.EnrichAll(context.Background(), []model.Candidate{candidate("2012")})
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotFound, results[0].Status)

	// The title strips to an empty search query once year noise is removed;
	// the fallback leg must not burn a budget unit on it.
	assert.Equal(t, 1, api.byTitleCalls)
	assert.Equal(t, 0, api.searchCalls)
	assert.Equal(t, 4, e.Stats(results).CallsRemaining)

	entry, ok, err := store.Get(context.Background(), cache.Key("2012", 0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.StatusNotFound, entry.Status)
}

func TestEnrichAll_BudgetInvariant(t *testing.T) {
	api := &fakeAPI{movies: map[string]*omdb.Movie{
		"A": movie("A"), "B": movie("B"), "C": movie("C"), "D": movie("D"), "E": movie("E"),
	}}
	store := cache.NewMemory()
	e := New(api, store, Config{Budget: 3, Concurrency: 4, Retry: fastRetry()})

	results, err := e.EnrichAll(context.Background(), []model.Candidate{
		candidate("A"), candidate("B"), candidate("C"), candidate("D"), candidate("E"),
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, api.totalCalls(), 3, "external calls never exceed the budget")

	stats := e.Stats(results)
	assert.Equal(t, 3, stats.Matched)
	assert.Equal(t, 2, stats.BudgetExhausted)
	assert.Equal(t, 0, stats.CallsRemaining)
}

func TestEnrichAll_BudgetExhausted_CachedStillServed(t *testing.T) {
	api := &fakeAPI{movies: map[string]*omdb.Movie{"Fresh": movie("Fresh")}}
	store := cache.NewMemory()
	require.NoError(t, store.Put(context.Background(), model.CacheEntry{
		Key:       cache.Key("Cached", 0),
		Title:     "Cached",
		Status:    model.StatusMatched,
		Metadata:  &model.MovieMetadata{Title: "Cached"},
		FetchedAt: time.Now().UTC(),
	}))

	e := New(api, store, Config{Budget: 0, Retry: fastRetry()})
	results, err := e.EnrichAll(context.Background(), []model.Candidate{
		candidate("Fresh"),
		candidate("Cached"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusBudgetExhausted, results[0].Status)
	assert.Equal(t, model.StatusMatched, results[1].Status)
	assert.True(t, results[1].FromCache)
	assert.Equal(t, 0, api.totalCalls())

	// Budget exhaustion is terminal for the run but must not be cached.
	_, ok, err := store.Get(context.Background(), cache.Key("Fresh", 0))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnrichAll_TransientFailure_RetriedThenSucceeds(t *testing.T) {
	api := &fakeAPI{
		movies:       map[string]*omdb.Movie{"Up": movie("Up")},
		failuresLeft: 2,
	}
	store := cache.NewMemory()
	e := New(api, store, Config{Budget: 10, Retry: fastRetry()})

	results, err := e.EnrichAll(context.Background(), []model.Candidate{candidate("Up")})
	require.NoError(t, err)
	assert.Equal(t, model.StatusMatched, results[0].Status)
	assert.Equal(t, 3, api.byTitleCalls)
}

func TestEnrichAll_RetriesExhausted_ErrorNotCached(t *testing.T) {
	api := &fakeAPI{failuresLeft: 100}
	store := cache.NewMemory()
	e := New(api, store, Config{Budget: 10, Retry: fastRetry()})

	results, err := e.EnrichAll(context.Background(), []model.Candidate{candidate("Flaky")})
	require.NoError(t, err, "per-candidate failures never abort the run")
	assert.Equal(t, model.StatusError, results[0].Status)

	_, ok, err := store.Get(context.Background(), cache.Key("Flaky", 0))
	require.NoError(t, err)
	assert.False(t, ok, "errors must not be cached so a future run can retry")
}

func TestEnrichAll_NotFound_NegativeCached(t *testing.T) {
	api := &fakeAPI{} // nothing matches, searches return nothing
	store := cache.NewMemory()
	e := New(api, store, Config{Budget: 10, Retry: fastRetry()})

	results, err := e.EnrichAll(context.Background(), []model.Candidate{candidate("Obscure Title")})
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotFound, results[0].Status)

	entry, ok, err := store.Get(context.Background(), cache.Key("Obscure Title", 0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.StatusNotFound, entry.Status)
}

func TestEnrichAll_FuzzyFallback(t *testing.T) {
	api := &fakeAPI{
		movies: map[string]*omdb.Movie{"The Polar Express": movie("The Polar Express")},
		searches: map[string][]omdb.SearchHit{
			"the polar express imax release": {
				{Title: "The Polar Express", Year: "2004", IMDBID: "tt0338348", Type: "movie"},
				{Title: "Unrelated Film", Year: "2010", IMDBID: "tt1", Type: "movie"},
			},
		},
	}
	store := cache.NewMemory()
	e := New(api, store, Config{Budget: 10, Retry: fastRetry()})

	results, err := e.EnrichAll(context.Background(), []model.Candidate{
		candidate("The Polar Express2017 IMAX Release"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusMatched, results[0].Status)
	assert.Equal(t, "The Polar Express", results[0].MatchedTitle)
	assert.Equal(t, "The Polar Express2017 IMAX Release", results[0].Title,
		"result stays keyed by the original query title")
	assert.Equal(t, 1, api.searchCalls)

	// Cached under the original key so the next run hits without a call.
	_, ok, err := store.Get(context.Background(), cache.Key("The Polar Express2017 IMAX Release", 0))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnrichAll_FuzzyBelowThreshold_NotFound(t *testing.T) {
	api := &fakeAPI{
		searches: map[string][]omdb.SearchHit{
			"some movie": {{Title: "Completely Different", Year: "1999"}},
		},
	}
	store := cache.NewMemory()
	e := New(api, store, Config{Budget: 10, FuzzyThreshold: 0.5, Retry: fastRetry()})

	results, err := e.EnrichAll(context.Background(), []model.Candidate{candidate("Some Movie")})
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotFound, results[0].Status)
}

func TestEnrichAll_OneResultPerCandidateInOrder(t *testing.T) {
	api := &fakeAPI{movies: map[string]*omdb.Movie{"B": movie("B")}}
	store := cache.NewMemory()
	e := New(api, store, Config{Budget: 10, Concurrency: 3, Retry: fastRetry()})

	cands := []model.Candidate{candidate("A"), candidate("B"), candidate("C")}
	results, err := e.EnrichAll(context.Background(), cands)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := range cands {
		assert.Equal(t, cands[i].Title, results[i].Title)
	}
}

func TestTitleSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, titleSimilarity("The Dark Knight", "the dark knight"))
	assert.Equal(t, 0.0, titleSimilarity("Alpha", "Beta"))
	assert.InDelta(t, 0.5, titleSimilarity("dark knight", "the dark knight rises"), 0.2)
	assert.Equal(t, 0.0, titleSimilarity("", "anything"))
}

func TestBestHit(t *testing.T) {
	hits := []omdb.SearchHit{
		{Title: "Polar Bears"},
		{Title: "The Polar Express"},
	}
	best, score := bestHit("Polar Express", hits)
	require.NotNil(t, best)
	assert.Equal(t, "The Polar Express", best.Title)
	assert.Greater(t, score, 0.5)

	best, _ = bestHit("anything", nil)
	assert.Nil(t, best)
}
