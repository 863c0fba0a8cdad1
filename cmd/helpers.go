package main

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/reeldata/marquee/internal/cache"
	"github.com/reeldata/marquee/internal/enrich"
	"github.com/reeldata/marquee/internal/resilience"
	"github.com/reeldata/marquee/internal/staging"
	"github.com/reeldata/marquee/pkg/omdb"
)

// initCache opens the enrichment cache configured in cfg.Cache.
func initCache() (cache.Cache, error) {
	switch cfg.Cache.Driver {
	case "sqlite", "":
		return cache.NewSQLite(cfg.Cache.Path)
	case "memory":
		return cache.NewMemory(), nil
	default:
		return nil, eris.Errorf("cache: unknown driver %q", cfg.Cache.Driver)
	}
}

// initStagingStore opens the staging store configured in cfg.Staging and
// runs migrations.
func initStagingStore(ctx context.Context) (staging.Store, error) {
	var (
		st  staging.Store
		err error
	)
	switch cfg.Staging.Driver {
	case "sqlite", "":
		st, err = staging.NewSQLite(cfg.Staging.Path)
	case "postgres":
		st, err = staging.NewPostgres(ctx, cfg.Staging.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("staging: unknown driver %q", cfg.Staging.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newEnricher builds the OMDb client and enricher from config.
func newEnricher(store cache.Cache) (*enrich.Enricher, error) {
	if cfg.OMDB.Key == "" {
		return nil, eris.New("omdb: api key not configured (MARQUEE_OMDB_KEY)")
	}

	opts := []omdb.Option{}
	if cfg.OMDB.BaseURL != "" {
		opts = append(opts, omdb.WithBaseURL(cfg.OMDB.BaseURL))
	}
	if cfg.OMDB.RequestsSec > 0 {
		opts = append(opts, omdb.WithLimiter(rate.NewLimiter(rate.Limit(cfg.OMDB.RequestsSec), 1)))
	}
	client := omdb.NewClient(cfg.OMDB.Key, opts...)

	retry := resilience.DefaultRetryConfig()
	if cfg.Enrich.MaxRetries > 0 {
		retry.MaxAttempts = cfg.Enrich.MaxRetries
	}

	return enrich.New(client, store, enrich.Config{
		Budget:           cfg.Enrich.DailyBudget,
		Concurrency:      cfg.Enrich.Concurrency,
		FuzzyThreshold:   cfg.Enrich.FuzzyThreshold,
		ProgressInterval: cfg.Enrich.ProgressInterval,
		Retry:            retry,
	}), nil
}
