// Package pipeline orchestrates the extract-enrich-load run: ingest the
// revenue extract, rank titles, enrich the top K against the metadata API,
// and replace the staging tables.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reeldata/marquee/internal/config"
	"github.com/reeldata/marquee/internal/enrich"
	"github.com/reeldata/marquee/internal/ingest"
	"github.com/reeldata/marquee/internal/model"
	"github.com/reeldata/marquee/internal/selector"
	"github.com/reeldata/marquee/internal/staging"
)

// Pipeline wires the run stages together. Row-level failures are counted and
// logged; a failed staging load aborts the run.
type Pipeline struct {
	cfg      *config.Config
	enricher *enrich.Enricher
	store    staging.Store
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, enricher *enrich.Enricher, store staging.Store) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		enricher: enricher,
		store:    store,
	}
}

// Run executes the full pipeline and returns the run report.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))
	started := time.Now()

	report := &RunReport{
		RunID:     runID,
		Input:     p.cfg.Input.Path,
		StartedAt: started.UTC(),
	}

	// Stage 1: ingest.
	log.Info("pipeline: ingesting", zap.String("input", p.cfg.Input.Path))
	stageStart := time.Now()
	records, summary, err := ingest.Load(ctx, p.cfg.Input.Path)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: ingest")
	}
	report.Quality = *summary
	report.Timings.IngestMS = time.Since(stageStart).Milliseconds()
	log.Info("pipeline: ingested",
		zap.Int("rows", summary.RowsParsed),
		zap.Int("failed", summary.RowsFailed),
	)

	// Stage 2: rank titles by total revenue and pick the enrichment set.
	stageStart = time.Now()
	candidates := selector.TopK(records, p.cfg.Enrich.TopK)
	allTitles := selector.TopK(records, 0)
	report.DistinctTitles = len(allTitles)
	report.Selected = len(candidates)
	report.Timings.SelectMS = time.Since(stageStart).Milliseconds()
	log.Info("pipeline: selected candidates",
		zap.Int("distinct_titles", len(allTitles)),
		zap.Int("selected", len(candidates)),
	)

	// Stage 3: enrich. Titles outside the top K still get a staging row so
	// the movie table covers every observed title.
	stageStart = time.Now()
	results, err := p.enricher.EnrichAll(ctx, candidates)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: enrich")
	}
	report.Enrichment = p.enricher.Stats(results)
	results = append(results, notEnrichedResults(candidates, allTitles)...)
	report.Timings.EnrichMS = time.Since(stageStart).Milliseconds()
	log.Info("pipeline: enriched",
		zap.Int("matched", report.Enrichment.Matched),
		zap.Int("not_found", report.Enrichment.NotFound),
		zap.Int("errors", report.Enrichment.Errors),
		zap.Int("budget_exhausted", report.Enrichment.BudgetExhausted),
		zap.Int("calls_made", report.Enrichment.CallsMade),
	)

	// Stage 4: load. Zero-revenue rows stay out of the staging table.
	stageStart = time.Now()
	loadable := ingest.Filter(records)
	revRows, err := p.store.ReplaceRevenues(ctx, loadable)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load revenues")
	}
	movieRows, err := p.store.ReplaceMovies(ctx, results)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load movies")
	}
	report.RevenueRowsLoaded = revRows
	report.MovieRowsLoaded = movieRows
	report.Timings.LoadMS = time.Since(stageStart).Milliseconds()
	log.Info("pipeline: loaded",
		zap.Int("revenue_rows", revRows),
		zap.Int("movie_rows", movieRows),
	)

	// Stage 5: validate.
	validation, err := p.store.Validate(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: validate")
	}
	report.Validation = *validation
	log.Info("pipeline: validated",
		zap.Int("revenue_rows", validation.Revenues.RowCount),
		zap.Int("movie_rows", validation.Movies.RowCount),
		zap.Int("matched", validation.Movies.Matched),
	)

	report.FinishedAt = time.Now().UTC()
	report.Timings.TotalMS = time.Since(started).Milliseconds()
	return report, nil
}

// notEnrichedResults builds placeholder results for distinct titles that the
// top-K cut excluded.
func notEnrichedResults(selected, all []model.Candidate) []model.EnrichmentResult {
	if len(all) <= len(selected) {
		return nil
	}
	chosen := make(map[string]bool, len(selected))
	for _, c := range selected {
		chosen[c.Title] = true
	}

	now := time.Now().UTC()
	var out []model.EnrichmentResult
	for _, c := range all {
		if chosen[c.Title] {
			continue
		}
		out = append(out, model.EnrichmentResult{
			Title:     c.Title,
			Status:    model.StatusNotEnriched,
			FetchedAt: now,
		})
	}
	return out
}
