// Package sqlite persists cached prices and optimization runs using modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

// DefaultListLimit caps ListRuns when no limit is given
const DefaultListLimit = 50

// Store implements domain.PriceCache and domain.RunRepository.
type Store struct {
	db *sql.DB
}

// New opens a SQLite database at the given path and configures WAL mode.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS price_cache (
	cache_key    TEXT PRIMARY KEY,
	item         TEXT NOT NULL,
	store        TEXT NOT NULL,
	price        INTEGER NOT NULL,
	available    INTEGER NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	cached_at    INTEGER NOT NULL,
	expires_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	city       TEXT NOT NULL,
	strategy   TEXT NOT NULL,
	items      TEXT NOT NULL,
	stores     TEXT NOT NULL,
	plan       TEXT,
	comparison TEXT,
	sources    TEXT,
	summary    TEXT NOT NULL DEFAULT '',
	grand_total INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_cache_expires_at ON price_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached observation for key, or domain.ErrCacheMiss.
func (s *Store) Get(ctx context.Context, key string) (domain.Observation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT item, store, price, available, display_name FROM price_cache
		 WHERE cache_key = ? AND expires_at > ?`,
		key, time.Now().UnixNano(),
	)

	var (
		obs       domain.Observation
		item      string
		available int
	)
	err := row.Scan(&item, &obs.Store, &obs.Price, &available, &obs.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Observation{}, domain.ErrCacheMiss
	}
	if err != nil {
		return domain.Observation{}, eris.Wrapf(err, "sqlite: get cached price %s", key)
	}
	obs.Item = domain.Item(item)
	obs.Available = available != 0
	obs.Source = domain.SourceCache
	return obs, nil
}

// Set upserts an observation with the given TTL.
func (s *Store) Set(ctx context.Context, key string, obs domain.Observation, ttl time.Duration) error {
	now := time.Now()
	available := 0
	if obs.Available {
		available = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_cache (cache_key, item, store, price, available, display_name, cached_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
			item = excluded.item, store = excluded.store, price = excluded.price,
			available = excluded.available, display_name = excluded.display_name,
			cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, string(obs.Item), obs.Store, int64(obs.Price), available, obs.DisplayName,
		now.UnixNano(), now.Add(ttl).UnixNano(),
	)
	return eris.Wrapf(err, "sqlite: set cached price %s", key)
}

// Delete removes a cached observation.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM price_cache WHERE cache_key = ?`, key)
	return eris.Wrapf(err, "sqlite: delete cached price %s", key)
}

// DeleteExpiredPrices removes expired cache rows and reports how many were removed.
func (s *Store) DeleteExpiredPrices(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM price_cache WHERE expires_at <= ?`, time.Now().UnixNano())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired prices")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// SaveRun inserts a run, assigning an ID and timestamp when missing.
func (s *Store) SaveRun(ctx context.Context, run *domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var (
		itemsJSON, storesJSON []byte
		planJSON, cmpJSON     []byte
		sourcesJSON           []byte
		total                 domain.Money
		err                   error
	)
	if itemsJSON, err = json.Marshal(run.Items); err != nil {
		return eris.Wrap(err, "sqlite: marshal items")
	}
	if storesJSON, err = json.Marshal(run.Stores); err != nil {
		return eris.Wrap(err, "sqlite: marshal stores")
	}
	if run.Plan != nil {
		if planJSON, err = json.Marshal(run.Plan); err != nil {
			return eris.Wrap(err, "sqlite: marshal plan")
		}
		total = run.Plan.GrandTotal
	}
	if run.Comparison != nil {
		if cmpJSON, err = json.Marshal(run.Comparison); err != nil {
			return eris.Wrap(err, "sqlite: marshal comparison")
		}
	}
	if sourcesJSON, err = json.Marshal(run.Sources); err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, city, strategy, items, stores, plan, comparison, sources, summary, grand_total, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.City, string(run.Strategy), string(itemsJSON), string(storesJSON),
		nullString(planJSON), nullString(cmpJSON), nullString(sourcesJSON),
		run.Summary, int64(total), run.CreatedAt.UnixNano(),
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

// GetRun returns a run by ID, or domain.ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, city, strategy, items, stores, plan, comparison, sources, summary, created_at
		 FROM runs WHERE id = ?`,
		id,
	)
	return scanRun(row)
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, city, strategy, items, stores, plan, comparison, sources, summary, created_at
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	runs := []domain.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*domain.Run, error) {
	var (
		r                        domain.Run
		strategy                 string
		itemsJSON, storesJSON    string
		planJSON, cmpJSON, srcJS sql.NullString
		createdAt                int64
	)
	err := row.Scan(&r.ID, &r.City, &strategy, &itemsJSON, &storesJSON, &planJSON, &cmpJSON, &srcJS, &r.Summary, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Strategy = domain.Strategy(strategy)
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(itemsJSON), &r.Items); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal items")
	}
	if err := json.Unmarshal([]byte(storesJSON), &r.Stores); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal stores")
	}
	if planJSON.Valid {
		r.Plan = &domain.AllocationPlan{}
		if err := json.Unmarshal([]byte(planJSON.String), r.Plan); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal plan")
		}
	}
	if cmpJSON.Valid {
		r.Comparison = &domain.Comparison{}
		if err := json.Unmarshal([]byte(cmpJSON.String), r.Comparison); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal comparison")
		}
	}
	if srcJS.Valid {
		if err := json.Unmarshal([]byte(srcJS.String), &r.Sources); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal sources")
		}
	}
	return &r, nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
