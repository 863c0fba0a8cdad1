package staging

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/reeldata/marquee/internal/model"
)

// pgxPool is the subset of pgxpool.Pool the store uses. Tests substitute a
// pgxmock pool.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgxPool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "staging: parse postgres config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "staging: create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "staging: ping postgres")
	}

	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS stg_revenues_raw (
	id                    TEXT PRIMARY KEY,
	date                  DATE NOT NULL,
	title                 TEXT NOT NULL,
	revenue               NUMERIC NOT NULL,
	theaters              INTEGER,
	distributor           TEXT,
	has_valid_theaters    BOOLEAN NOT NULL,
	has_valid_distributor BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS stg_movies_enriched (
	title         TEXT PRIMARY KEY,
	matched_title TEXT,
	match_status  TEXT NOT NULL,
	is_enriched   BOOLEAN NOT NULL,
	fetched_at    TIMESTAMPTZ NOT NULL,
	year          TEXT,
	rated         TEXT,
	released      TEXT,
	runtime       TEXT,
	genre         TEXT,
	director      TEXT,
	actors        TEXT,
	plot          TEXT,
	language      TEXT,
	country       TEXT,
	awards        TEXT,
	poster_url    TEXT,
	metascore     INTEGER,
	imdb_rating   DOUBLE PRECISION,
	imdb_votes    INTEGER,
	imdb_id       TEXT,
	box_office    TEXT
);

CREATE INDEX IF NOT EXISTS idx_stg_revenues_raw_title ON stg_revenues_raw(title);
CREATE INDEX IF NOT EXISTS idx_stg_revenues_raw_date ON stg_revenues_raw(date);
CREATE INDEX IF NOT EXISTS idx_stg_movies_enriched_status ON stg_movies_enriched(match_status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "staging: migrate postgres")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "staging: ping")
}

const postgresInsertRevenue = `INSERT INTO stg_revenues_raw
	(id, date, title, revenue, theaters, distributor, has_valid_theaters, has_valid_distributor)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (s *PostgresStore) ReplaceRevenues(ctx context.Context, records []model.RevenueRecord) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "staging: begin revenues tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM stg_revenues_raw`); err != nil {
		return 0, eris.Wrap(err, "staging: truncate stg_revenues_raw")
	}

	for _, rec := range records {
		_, err := tx.Exec(ctx, postgresInsertRevenue,
			rec.ID,
			rec.Date.UTC(),
			rec.Title,
			rec.Revenue.String(),
			rec.Theaters,
			rec.Distributor,
			!rec.Flags.Has(model.FlagEmptyTheaterCount),
			!rec.Flags.Has(model.FlagMissingDistributor),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "staging: insert revenue row %s", rec.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "staging: commit revenues")
	}
	return len(records), nil
}

const postgresInsertMovie = `INSERT INTO stg_movies_enriched
	(title, matched_title, match_status, is_enriched, fetched_at,
	 year, rated, released, runtime, genre, director, actors, plot,
	 language, country, awards, poster_url, metascore, imdb_rating,
	 imdb_votes, imdb_id, box_office)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
	        $14, $15, $16, $17, $18, $19, $20, $21, $22)`

func (s *PostgresStore) ReplaceMovies(ctx context.Context, results []model.EnrichmentResult) (int, error) {
	rows := DedupeResults(results)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "staging: begin movies tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM stg_movies_enriched`); err != nil {
		return 0, eris.Wrap(err, "staging: truncate stg_movies_enriched")
	}

	for _, res := range rows {
		row := newMovieRow(res)
		_, err := tx.Exec(ctx, postgresInsertMovie,
			row.title, row.matchedTitle, row.matchStatus, row.isEnriched, row.fetchedAt,
			row.year, row.rated, row.released, row.runtime, row.genre, row.director,
			row.actors, row.plot, row.language, row.country, row.awards, row.posterURL,
			row.metascore, row.imdbRating, row.imdbVotes, row.imdbID, row.boxOffice,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "staging: insert movie row %q", res.Title)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "staging: commit movies")
	}
	return len(rows), nil
}

func (s *PostgresStore) Validate(ctx context.Context) (*ValidationReport, error) {
	var report ValidationReport

	var minDate, maxDate *time.Time
	var totalRevenue string
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT title), COUNT(DISTINCT date),
		       MIN(date), MAX(date), COALESCE(SUM(revenue), 0)::text
		FROM stg_revenues_raw`,
	).Scan(
		&report.Revenues.RowCount,
		&report.Revenues.UniqueTitles,
		&report.Revenues.UniqueDates,
		&minDate, &maxDate, &totalRevenue,
	)
	if err != nil {
		return nil, eris.Wrap(err, "staging: validate revenues")
	}
	if minDate != nil {
		report.Revenues.MinDate = *minDate
	}
	if maxDate != nil {
		report.Revenues.MaxDate = *maxDate
	}
	if report.Revenues.TotalRevenue, err = decimal.NewFromString(totalRevenue); err != nil {
		return nil, eris.Wrap(err, "staging: parse total revenue")
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE match_status = $1),
		       COUNT(*) FILTER (WHERE imdb_rating IS NOT NULL)
		FROM stg_movies_enriched`,
		string(model.StatusMatched),
	).Scan(&report.Movies.RowCount, &report.Movies.Matched, &report.Movies.WithRating)
	if err != nil {
		return nil, eris.Wrap(err, "staging: validate movies")
	}

	return &report, nil
}
