package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/reeldata/marquee/internal/model"
)

// SQLiteCache implements Cache on a local SQLite database so entries
// survive process restarts.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the cache database at path and
// configures WAL mode.
func NewSQLite(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	c := &SQLiteCache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS enrichment_cache (
	key           TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	match_status  TEXT NOT NULL,
	matched_title TEXT,
	metadata      TEXT,
	fetched_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_enrichment_cache_status ON enrichment_cache(match_status);
`

func (c *SQLiteCache) migrate() error {
	_, err := c.db.Exec(cacheMigration)
	return eris.Wrap(err, "cache: migrate")
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (*model.CacheEntry, bool, error) {
	var (
		entry        model.CacheEntry
		matchedTitle sql.NullString
		metadataJSON sql.NullString
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT key, title, match_status, matched_title, metadata, fetched_at
		 FROM enrichment_cache WHERE key = ?`, key,
	).Scan(&entry.Key, &entry.Title, &entry.Status, &matchedTitle, &metadataJSON, &entry.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", key)
	}

	entry.MatchedTitle = matchedTitle.String
	if metadataJSON.Valid && metadataJSON.String != "" {
		var meta model.MovieMetadata
		if err := json.Unmarshal([]byte(metadataJSON.String), &meta); err != nil {
			return nil, false, eris.Wrapf(err, "cache: unmarshal metadata for %s", key)
		}
		entry.Metadata = &meta
	}
	return &entry, true, nil
}

func (c *SQLiteCache) Put(ctx context.Context, entry model.CacheEntry) error {
	var metadataJSON any
	if entry.Metadata != nil {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return eris.Wrapf(err, "cache: marshal metadata for %s", entry.Key)
		}
		metadataJSON = string(b)
	}

	fetchedAt := entry.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO enrichment_cache (key, title, match_status, matched_title, metadata, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			title = excluded.title,
			match_status = excluded.match_status,
			matched_title = excluded.matched_title,
			metadata = excluded.metadata,
			fetched_at = excluded.fetched_at`,
		entry.Key, entry.Title, string(entry.Status), entry.MatchedTitle, metadataJSON, fetchedAt,
	)
	return eris.Wrapf(err, "cache: put %s", entry.Key)
}

func (c *SQLiteCache) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN match_status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN match_status = ? THEN 1 ELSE 0 END), 0)
		 FROM enrichment_cache`,
		string(model.StatusMatched), string(model.StatusNotFound),
	).Scan(&stats.Total, &stats.Matched, &stats.NotFound)
	if err != nil {
		return nil, eris.Wrap(err, "cache: stats")
	}
	return &stats, nil
}

func (c *SQLiteCache) Purge(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM enrichment_cache`)
	if err != nil {
		return 0, eris.Wrap(err, "cache: purge")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: purge rows affected")
	}
	return int(n), nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
