package staging

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/reeldata/marquee/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "staging: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "staging: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS stg_revenues_raw (
	id                    TEXT PRIMARY KEY,
	date                  DATE NOT NULL,
	title                 TEXT NOT NULL,
	revenue               TEXT NOT NULL, -- exact decimal string; NUMERIC affinity would coerce to REAL
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
	fetched_at    DATETIME NOT NULL,
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
	imdb_rating   REAL,
	imdb_votes    INTEGER,
	imdb_id       TEXT,
	box_office    TEXT
);

CREATE INDEX IF NOT EXISTS idx_stg_revenues_raw_title ON stg_revenues_raw(title);
CREATE INDEX IF NOT EXISTS idx_stg_revenues_raw_date ON stg_revenues_raw(date);
CREATE INDEX IF NOT EXISTS idx_stg_movies_enriched_status ON stg_movies_enriched(match_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "staging: migrate sqlite")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertRevenue = `INSERT INTO stg_revenues_raw
	(id, date, title, revenue, theaters, distributor, has_valid_theaters, has_valid_distributor)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) ReplaceRevenues(ctx context.Context, records []model.RevenueRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "staging: begin revenues tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM stg_revenues_raw`); err != nil {
		return 0, eris.Wrap(err, "staging: truncate stg_revenues_raw")
	}

	stmt, err := tx.PrepareContext(ctx, sqliteInsertRevenue)
	if err != nil {
		return 0, eris.Wrap(err, "staging: prepare revenue insert")
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.ID,
			rec.Date.UTC().Format("2006-01-02"),
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

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "staging: commit revenues")
	}
	return len(records), nil
}

const sqliteInsertMovie = `INSERT INTO stg_movies_enriched
	(title, matched_title, match_status, is_enriched, fetched_at,
	 year, rated, released, runtime, genre, director, actors, plot,
	 language, country, awards, poster_url, metascore, imdb_rating,
	 imdb_votes, imdb_id, box_office)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) ReplaceMovies(ctx context.Context, results []model.EnrichmentResult) (int, error) {
	rows := DedupeResults(results)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "staging: begin movies tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM stg_movies_enriched`); err != nil {
		return 0, eris.Wrap(err, "staging: truncate stg_movies_enriched")
	}

	stmt, err := tx.PrepareContext(ctx, sqliteInsertMovie)
	if err != nil {
		return 0, eris.Wrap(err, "staging: prepare movie insert")
	}
	defer stmt.Close()

	for _, res := range rows {
		row := newMovieRow(res)
		_, err := stmt.ExecContext(ctx,
			row.title, row.matchedTitle, row.matchStatus, row.isEnriched, row.fetchedAt,
			row.year, row.rated, row.released, row.runtime, row.genre, row.director,
			row.actors, row.plot, row.language, row.country, row.awards, row.posterURL,
			row.metascore, row.imdbRating, row.imdbVotes, row.imdbID, row.boxOffice,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "staging: insert movie row %q", res.Title)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "staging: commit movies")
	}
	return len(rows), nil
}

func (s *SQLiteStore) Validate(ctx context.Context) (*ValidationReport, error) {
	var report ValidationReport

	var minDate, maxDate sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT title), COUNT(DISTINCT date),
		       MIN(date), MAX(date)
		FROM stg_revenues_raw`,
	).Scan(
		&report.Revenues.RowCount,
		&report.Revenues.UniqueTitles,
		&report.Revenues.UniqueDates,
		&minDate, &maxDate,
	)
	if err != nil {
		return nil, eris.Wrap(err, "staging: validate revenues")
	}
	if minDate.Valid {
		if report.Revenues.MinDate, err = time.Parse("2006-01-02", minDate.String); err != nil {
			return nil, eris.Wrap(err, "staging: parse min date")
		}
	}
	if maxDate.Valid {
		if report.Revenues.MaxDate, err = time.Parse("2006-01-02", maxDate.String); err != nil {
			return nil, eris.Wrap(err, "staging: parse max date")
		}
	}
	// Summing in SQL would go through REAL and lose cents on large sets;
	// accumulate the stored decimal strings exactly instead.
	if report.Revenues.TotalRevenue, err = s.sumRevenue(ctx); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN match_status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN imdb_rating IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM stg_movies_enriched`,
		string(model.StatusMatched),
	).Scan(&report.Movies.RowCount, &report.Movies.Matched, &report.Movies.WithRating)
	if err != nil {
		return nil, eris.Wrap(err, "staging: validate movies")
	}

	return &report, nil
}

func (s *SQLiteStore) sumRevenue(ctx context.Context) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT revenue FROM stg_revenues_raw`)
	if err != nil {
		return decimal.Zero, eris.Wrap(err, "staging: query revenues")
	}
	defer rows.Close() //nolint:errcheck

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, eris.Wrap(err, "staging: scan revenue")
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, eris.Wrap(err, "staging: parse revenue")
		}
		total = total.Add(d)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, eris.Wrap(err, "staging: iterate revenues")
	}
	return total, nil
}
