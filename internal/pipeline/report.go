package pipeline

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/reeldata/marquee/internal/enrich"
	"github.com/reeldata/marquee/internal/model"
	"github.com/reeldata/marquee/internal/staging"
)

// StageTimings records per-stage wall time in milliseconds.
type StageTimings struct {
	IngestMS int64 `yaml:"ingest_ms"`
	SelectMS int64 `yaml:"select_ms"`
	EnrichMS int64 `yaml:"enrich_ms"`
	LoadMS   int64 `yaml:"load_ms"`
	TotalMS  int64 `yaml:"total_ms"`
}

// RunReport is the machine-readable summary written at the end of a run.
type RunReport struct {
	RunID      string    `yaml:"run_id"`
	Input      string    `yaml:"input"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`

	Quality        model.QualitySummary `yaml:"quality"`
	DistinctTitles int                  `yaml:"distinct_titles"`
	Selected       int                  `yaml:"selected"`
	Enrichment     enrich.Stats         `yaml:"enrichment"`

	RevenueRowsLoaded int                      `yaml:"revenue_rows_loaded"`
	MovieRowsLoaded   int                      `yaml:"movie_rows_loaded"`
	Validation        staging.ValidationReport `yaml:"validation"`

	Timings StageTimings `yaml:"timings"`
}

// Write serializes the report as YAML to the given path.
func (r *RunReport) Write(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal report")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return eris.Wrapf(err, "pipeline: write report %s", path)
	}
	return nil
}
