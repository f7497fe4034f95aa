package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/bure-project/bure/internal/db"
	"github.com/bure-project/bure/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
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
		return nil, eris.Wrap(err, "postgres: parse config")
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Tests pass a pgxmock pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	district   TEXT NOT NULL,
	price      INTEGER NOT NULL,
	beds       DOUBLE PRECISION NOT NULL,
	baths      DOUBLE PRECISION NOT NULL,
	sqft       INTEGER NOT NULL,
	amenities  JSONB,
	lat        DOUBLE PRECISION,
	lon        DOUBLE PRECISION,
	scraped_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (url, beds, baths, sqft)
);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       JSONB,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS price_models (
	district   TEXT PRIMARY KEY,
	bundle     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_listings_district ON listings(district);
CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);
CREATE INDEX IF NOT EXISTS idx_scrape_runs_status ON scrape_runs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const upsertListingSQL = `
INSERT INTO listings (id, url, district, price, beds, baths, sqft, amenities, lat, lon, scraped_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (url, beds, baths, sqft) DO UPDATE SET
	district = EXCLUDED.district,
	price = EXCLUDED.price,
	amenities = EXCLUDED.amenities,
	lat = EXCLUDED.lat,
	lon = EXCLUDED.lon,
	scraped_at = EXCLUDED.scraped_at`

func (s *PostgresStore) UpsertListing(ctx context.Context, l model.Listing) (string, error) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.ScrapedAt.IsZero() {
		l.ScrapedAt = time.Now().UTC()
	}

	amenitiesJSON, err := json.Marshal(l.Amenities)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal amenities")
	}

	_, err = s.pool.Exec(ctx, upsertListingSQL,
		l.ID, l.URL, l.District, l.Price, l.Beds, l.Baths, l.Sqft,
		amenitiesJSON, l.Lat, l.Lon, l.ScrapedAt,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: upsert listing %s", l.URL)
	}
	return l.ID, nil
}

// BulkUpsertListings merges a batch of listings via the temp-table COPY path.
func (s *PostgresStore) BulkUpsertListings(ctx context.Context, ls []model.Listing) (int64, error) {
	if len(ls) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(ls))
	for _, l := range ls {
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		if l.ScrapedAt.IsZero() {
			l.ScrapedAt = time.Now().UTC()
		}
		amenitiesJSON, err := json.Marshal(l.Amenities)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal amenities")
		}
		rows = append(rows, []any{
			l.ID, l.URL, l.District, l.Price, l.Beds, l.Baths, l.Sqft,
			amenitiesJSON, l.Lat, l.Lon, l.ScrapedAt,
		})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "listings",
		Columns:      []string{"id", "url", "district", "price", "beds", "baths", "sqft", "amenities", "lat", "lon", "scraped_at"},
		ConflictKeys: []string{"url", "beds", "baths", "sqft"},
		UpdateCols:   []string{"district", "price", "amenities", "lat", "lon", "scraped_at"},
	}, rows)
}

func (s *PostgresStore) ListListings(ctx context.Context, f ListingFilter) ([]model.Listing, error) {
	query := `SELECT id, url, district, price, beds, baths, sqft, amenities, lat, lon, scraped_at FROM listings WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.District != "" {
		query += ` AND district = ` + arg(f.District)
	}
	if f.MinPrice > 0 {
		query += ` AND price >= ` + arg(f.MinPrice)
	}
	if f.MaxPrice > 0 {
		query += ` AND price <= ` + arg(f.MaxPrice)
	}
	if f.Beds > 0 {
		query += ` AND beds = ` + arg(f.Beds)
	}

	query += ` ORDER BY scraped_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += ` OFFSET ` + arg(f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list listings")
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		var l model.Listing
		var amenitiesJSON []byte
		if err := rows.Scan(&l.ID, &l.URL, &l.District, &l.Price, &l.Beds, &l.Baths,
			&l.Sqft, &amenitiesJSON, &l.Lat, &l.Lon, &l.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		if len(amenitiesJSON) > 0 {
			if err := json.Unmarshal(amenitiesJSON, &l.Amenities); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal amenities")
			}
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate listings")
}

func (s *PostgresStore) CountByDistrict(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT district, COUNT(*) FROM listings GROUP BY district`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by district")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var district string
		var n int64
		if err := rows.Scan(&district, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan district count")
		}
		counts[district] = int(n)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate district counts")
}

func (s *PostgresStore) CreateScrapeRun(ctx context.Context, source string) (*model.ScrapeRun, error) {
	run := &model.ScrapeRun{
		ID:        uuid.New().String(),
		Source:    source,
		Status:    model.ScrapeStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_runs (id, source, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Source, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert scrape run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteScrapeRun(ctx context.Context, runID string, status model.ScrapeStatus, stats model.ScrapeStats, errMsg string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal scrape stats")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_runs SET status = $1, stats = $2, error = $3, finished_at = $4 WHERE id = $5`,
		string(status), statsJSON, errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete scrape run %s", runID)
	}
	return checkTag(tag, "scrape run", runID)
}

func (s *PostgresStore) ListScrapeRuns(ctx context.Context, limit int) ([]model.ScrapeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, status, stats, error, started_at, finished_at
		 FROM scrape_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scrape runs")
	}
	defer rows.Close()

	var out []model.ScrapeRun
	for rows.Next() {
		var run model.ScrapeRun
		var status string
		var statsJSON []byte
		var errMsg *string
		var finished *time.Time
		if err := rows.Scan(&run.ID, &run.Source, &status, &statsJSON, &errMsg, &run.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scrape run")
		}
		run.Status = model.ScrapeStatus(status)
		if len(statsJSON) > 0 {
			if err := json.Unmarshal(statsJSON, &run.Stats); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal scrape stats")
			}
		}
		if errMsg != nil {
			run.Error = *errMsg
		}
		run.FinishedAt = finished
		out = append(out, run)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate scrape runs")
}

func (s *PostgresStore) SaveModel(ctx context.Context, district string, bundle []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_models (district, bundle, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (district) DO UPDATE SET bundle = EXCLUDED.bundle, updated_at = EXCLUDED.updated_at`,
		district, bundle, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save model %s", district)
}

func (s *PostgresStore) GetModel(ctx context.Context, district string) ([]byte, error) {
	var bundle []byte
	err := s.pool.QueryRow(ctx,
		`SELECT bundle FROM price_models WHERE district = $1`, district,
	).Scan(&bundle)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get model %s", district)
	}
	return bundle, nil
}

func (s *PostgresStore) ListModelDistricts(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT district FROM price_models ORDER BY district`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list model districts")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, eris.Wrap(err, "postgres: scan model district")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate model districts")
}

// checkTag converts a zero-row update into ErrNotFound.
func checkTag(tag pgconn.CommandTag, kind, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", kind, id)
	}
	return nil
}
