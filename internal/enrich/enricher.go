// Package enrich looks up metadata for selected titles through the external
// API, under a hard per-run call budget, consulting the durable cache before
// every call.
package enrich

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/reeldata/marquee/internal/cache"
	"github.com/reeldata/marquee/internal/model"
	"github.com/reeldata/marquee/internal/resilience"
	"github.com/reeldata/marquee/pkg/omdb"
)

// Config controls enrichment behavior.
type Config struct {
	// Budget is the maximum number of external API calls for the run.
	Budget int
	// Concurrency is the number of candidates looked up in parallel.
	// Defaults to 1 (sequential).
	Concurrency int
	// FuzzyThreshold is the minimum title similarity for accepting a
	// search-fallback match. Defaults to 0.5.
	FuzzyThreshold float64
	// ProgressInterval logs progress every N processed candidates.
	// Defaults to 100.
	ProgressInterval int
	// Retry is the backoff policy for transient API failures.
	Retry resilience.RetryConfig
}

// Stats reports what the enricher did during a run.
type Stats struct {
	Candidates      int `json:"candidates" yaml:"candidates"`
	CacheHits       int `json:"cache_hits" yaml:"cache_hits"`
	CallsMade       int `json:"calls_made" yaml:"calls_made"`
	CallsRemaining  int `json:"calls_remaining" yaml:"calls_remaining"`
	Matched         int `json:"matched" yaml:"matched"`
	NotFound        int `json:"not_found" yaml:"not_found"`
	Errors          int `json:"errors" yaml:"errors"`
	BudgetExhausted int `json:"budget_exhausted" yaml:"budget_exhausted"`
}

// Enricher resolves candidates to EnrichmentResults. Safe for use by a
// single run at a time.
type Enricher struct {
	api   omdb.Client
	cache cache.Cache
	cfg   Config

	remaining atomic.Int64 // budget units left; never goes negative
	calls     atomic.Int64
	hits      atomic.Int64
	processed atomic.Int64

	group singleflight.Group
}

// New creates an Enricher with the given API client and cache.
func New(api omdb.Client, store cache.Cache, cfg Config) *Enricher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = 0.5
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 100
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}

	e := &Enricher{api: api, cache: store, cfg: cfg}
	e.remaining.Store(int64(cfg.Budget))
	return e
}

// EnrichAll produces exactly one EnrichmentResult per candidate, in
// candidate order. Per-candidate failures are captured in the result status;
// the only returned error is context cancellation.
func (e *Enricher) EnrichAll(ctx context.Context, candidates []model.Candidate) ([]model.EnrichmentResult, error) {
	results := make([]model.EnrichmentResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i, cand := range candidates {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = e.enrichOne(gctx, cand)

			if n := e.processed.Add(1); n%int64(e.cfg.ProgressInterval) == 0 {
				zap.L().Info("enrich: progress",
					zap.Int64("processed", n),
					zap.Int("total", len(candidates)),
					zap.Int64("calls_remaining", e.remaining.Load()),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// enrichOne resolves a single candidate: cache first, then one budgeted
// external lookup with retry and a fuzzy search fallback.
func (e *Enricher) enrichOne(ctx context.Context, cand model.Candidate) model.EnrichmentResult {
	key := cache.Key(cand.Title, cand.YearHint)

	if entry, ok := e.cacheGet(ctx, key); ok {
		e.hits.Add(1)
		return entry.Result(cand.Title)
	}

	// Coalesce concurrent lookups for the same normalized key: the second
	// waiter consumes the first's result instead of issuing its own call.
	v, _, _ := e.group.Do(key, func() (any, error) {
		return e.lookup(ctx, cand, key), nil
	})

	result := v.(model.EnrichmentResult)
	result.Title = cand.Title
	return result
}

func (e *Enricher) lookup(ctx context.Context, cand model.Candidate, key string) model.EnrichmentResult {
	// Another goroutine may have populated the key while we waited.
	if entry, ok := e.cacheGet(ctx, key); ok {
		e.hits.Add(1)
		return entry.Result(cand.Title)
	}

	if !e.reserveCall() {
		zap.L().Warn("enrich: call budget exhausted",
			zap.String("title", cand.Title),
			zap.Int("budget", e.cfg.Budget),
		)
		// Not cached: the title may still be resolvable on a later run.
		return model.EnrichmentResult{
			Title:     cand.Title,
			Status:    model.StatusBudgetExhausted,
			FetchedAt: time.Now().UTC(),
		}
	}

	res, err := e.callByTitle(ctx, cand.Title, cand.YearHint)
	if err != nil {
		zap.L().Error("enrich: lookup failed after retries",
			zap.String("title", cand.Title),
			zap.Error(err),
		)
		// Errors are never cached so a future run retries the title.
		return model.EnrichmentResult{
			Title:     cand.Title,
			Status:    model.StatusError,
			FetchedAt: time.Now().UTC(),
		}
	}

	if res.Found {
		return e.matchedResult(ctx, cand, key, res.Movie)
	}

	return e.fuzzyFallback(ctx, cand, key)
}

// fuzzyFallback runs a free-text search and accepts the closest hit above
// the similarity threshold before declaring the title unmatched.
func (e *Enricher) fuzzyFallback(ctx context.Context, cand model.Candidate, key string) model.EnrichmentResult {
	query := searchQuery(cand.Title)
	if query == "" {
		// Titles that are pure year noise (e.g. "2012") strip to nothing;
		// searching on an empty query can never match, so skip the call.
		return e.notFoundResult(ctx, cand, key)
	}

	if !e.reserveCall() {
		// No budget left for the search leg; not cached, same reasoning as
		// budget exhaustion on the direct lookup.
		return model.EnrichmentResult{
			Title:     cand.Title,
			Status:    model.StatusBudgetExhausted,
			FetchedAt: time.Now().UTC(),
		}
	}

	hits, err := resilience.DoVal(ctx, e.retryConfig("search"), func(ctx context.Context) ([]omdb.SearchHit, error) {
		return e.api.Search(ctx, query, cand.YearHint)
	})
	e.calls.Add(1)
	if err != nil {
		zap.L().Warn("enrich: fallback search failed",
			zap.String("title", cand.Title),
			zap.Error(err),
		)
		return model.EnrichmentResult{
			Title:     cand.Title,
			Status:    model.StatusError,
			FetchedAt: time.Now().UTC(),
		}
	}

	best, score := bestHit(cand.Title, hits)
	if best == nil || score < e.cfg.FuzzyThreshold {
		return e.notFoundResult(ctx, cand, key)
	}

	zap.L().Info("enrich: fuzzy match",
		zap.String("title", cand.Title),
		zap.String("hit", best.Title),
		zap.Float64("similarity", score),
	)

	if !e.reserveCall() {
		return model.EnrichmentResult{
			Title:     cand.Title,
			Status:    model.StatusBudgetExhausted,
			FetchedAt: time.Now().UTC(),
		}
	}

	res, err := e.callByTitle(ctx, best.Title, 0)
	if err != nil {
		zap.L().Warn("enrich: fallback fetch failed",
			zap.String("title", cand.Title),
			zap.String("hit", best.Title),
			zap.Error(err),
		)
		return model.EnrichmentResult{
			Title:     cand.Title,
			Status:    model.StatusError,
			FetchedAt: time.Now().UTC(),
		}
	}
	if !res.Found {
		return e.notFoundResult(ctx, cand, key)
	}

	return e.matchedResult(ctx, cand, key, res.Movie)
}

func (e *Enricher) callByTitle(ctx context.Context, title string, year int) (*omdb.Result, error) {
	res, err := resilience.DoVal(ctx, e.retryConfig("by_title"), func(ctx context.Context) (*omdb.Result, error) {
		return e.api.ByTitle(ctx, title, year)
	})
	e.calls.Add(1)
	return res, err
}

func (e *Enricher) retryConfig(operation string) resilience.RetryConfig {
	cfg := e.cfg.Retry
	cfg.OnRetry = resilience.RetryLogger("omdb", operation)
	return cfg
}

func (e *Enricher) matchedResult(ctx context.Context, cand model.Candidate, key string, movie *omdb.Movie) model.EnrichmentResult {
	meta := toMetadata(movie)

	if movie.Title != cand.Title {
		// Canonical title differs from the query title. Staging stays keyed
		// by the query title; the canonical one rides along informationally.
		zap.L().Info("enrich: title mismatch",
			zap.String("queried", cand.Title),
			zap.String("canonical", movie.Title),
		)
	}

	result := model.EnrichmentResult{
		Title:        cand.Title,
		MatchedTitle: movie.Title,
		Status:       model.StatusMatched,
		Metadata:     meta,
		FetchedAt:    time.Now().UTC(),
	}
	e.cachePut(ctx, model.CacheEntry{
		Key:          key,
		Title:        cand.Title,
		Status:       model.StatusMatched,
		MatchedTitle: movie.Title,
		Metadata:     meta,
		FetchedAt:    result.FetchedAt,
	})
	return result
}

func (e *Enricher) notFoundResult(ctx context.Context, cand model.Candidate, key string) model.EnrichmentResult {
	zap.L().Info("enrich: no match", zap.String("title", cand.Title))

	result := model.EnrichmentResult{
		Title:     cand.Title,
		Status:    model.StatusNotFound,
		FetchedAt: time.Now().UTC(),
	}
	// Negative entries are cached with the same durability as matches, so
	// permanently-unmatched titles never burn budget again.
	e.cachePut(ctx, model.CacheEntry{
		Key:       key,
		Title:     cand.Title,
		Status:    model.StatusNotFound,
		FetchedAt: result.FetchedAt,
	})
	return result
}

// reserveCall claims one budget unit. Concurrent claims never push the
// remaining count negative.
func (e *Enricher) reserveCall() bool {
	for {
		cur := e.remaining.Load()
		if cur <= 0 {
			return false
		}
		if e.remaining.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

func (e *Enricher) cacheGet(ctx context.Context, key string) (*model.CacheEntry, bool) {
	entry, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		// Treat a broken cache read as a miss; the lookup path still works.
		zap.L().Warn("enrich: cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return entry, ok
}

func (e *Enricher) cachePut(ctx context.Context, entry model.CacheEntry) {
	if err := e.cache.Put(ctx, entry); err != nil {
		zap.L().Warn("enrich: cache write failed", zap.String("key", entry.Key), zap.Error(err))
	}
}

// Stats summarizes the run so far.
func (e *Enricher) Stats(results []model.EnrichmentResult) Stats {
	stats := Stats{
		Candidates:     len(results),
		CacheHits:      int(e.hits.Load()),
		CallsMade:      int(e.calls.Load()),
		CallsRemaining: int(e.remaining.Load()),
	}
	for _, r := range results {
		switch r.Status {
		case model.StatusMatched:
			stats.Matched++
		case model.StatusNotFound:
			stats.NotFound++
		case model.StatusError:
			stats.Errors++
		case model.StatusBudgetExhausted:
			stats.BudgetExhausted++
		}
	}
	return stats
}
