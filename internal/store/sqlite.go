package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/bure-project/bure/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
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
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	district   TEXT NOT NULL,
	price      INTEGER NOT NULL,
	beds       REAL NOT NULL,
	baths      REAL NOT NULL,
	sqft       INTEGER NOT NULL,
	amenities  TEXT,
	lat        REAL,
	lon        REAL,
	scraped_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (url, beds, baths, sqft)
);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       TEXT,
	error       TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS price_models (
	district   TEXT PRIMARY KEY,
	bundle     TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_listings_district ON listings(district);
CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);
CREATE INDEX IF NOT EXISTS idx_scrape_runs_status ON scrape_runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertListing(ctx context.Context, l model.Listing) (string, error) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.ScrapedAt.IsZero() {
		l.ScrapedAt = time.Now().UTC()
	}

	amenitiesJSON, err := json.Marshal(l.Amenities)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal amenities")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO listings (id, url, district, price, beds, baths, sqft, amenities, lat, lon, scraped_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (url, beds, baths, sqft) DO UPDATE SET
		   district = excluded.district,
		   price = excluded.price,
		   amenities = excluded.amenities,
		   lat = excluded.lat,
		   lon = excluded.lon,
		   scraped_at = excluded.scraped_at`,
		l.ID, l.URL, l.District, l.Price, l.Beds, l.Baths, l.Sqft,
		string(amenitiesJSON), l.Lat, l.Lon, l.ScrapedAt,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: upsert listing %s", l.URL)
	}
	return l.ID, nil
}

func (s *SQLiteStore) BulkUpsertListings(ctx context.Context, ls []model.Listing) (int64, error) {
	if len(ls) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin bulk upsert")
	}
	defer tx.Rollback()

	var n int64
	for _, l := range ls {
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		if l.ScrapedAt.IsZero() {
			l.ScrapedAt = time.Now().UTC()
		}
		amenitiesJSON, err := json.Marshal(l.Amenities)
		if err != nil {
			return n, eris.Wrap(err, "sqlite: marshal amenities")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO listings (id, url, district, price, beds, baths, sqft, amenities, lat, lon, scraped_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (url, beds, baths, sqft) DO UPDATE SET
			   district = excluded.district,
			   price = excluded.price,
			   amenities = excluded.amenities,
			   lat = excluded.lat,
			   lon = excluded.lon,
			   scraped_at = excluded.scraped_at`,
			l.ID, l.URL, l.District, l.Price, l.Beds, l.Baths, l.Sqft,
			string(amenitiesJSON), l.Lat, l.Lon, l.ScrapedAt,
		)
		if err != nil {
			return n, eris.Wrapf(err, "sqlite: bulk upsert listing %s", l.URL)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit bulk upsert")
	}
	return n, nil
}

func (s *SQLiteStore) ListListings(ctx context.Context, f ListingFilter) ([]model.Listing, error) {
	query := `SELECT id, url, district, price, beds, baths, sqft, amenities, lat, lon, scraped_at FROM listings WHERE 1=1`
	var args []any

	if f.District != "" {
		query += ` AND district = ?`
		args = append(args, f.District)
	}
	if f.MinPrice > 0 {
		query += ` AND price >= ?`
		args = append(args, f.MinPrice)
	}
	if f.MaxPrice > 0 {
		query += ` AND price <= ?`
		args = append(args, f.MaxPrice)
	}
	if f.Beds > 0 {
		query += ` AND beds = ?`
		args = append(args, f.Beds)
	}

	query += ` ORDER BY scraped_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list listings")
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate listings")
}

func (s *SQLiteStore) CountByDistrict(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT district, COUNT(*) FROM listings GROUP BY district`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by district")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var district string
		var n int
		if err := rows.Scan(&district, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan district count")
		}
		counts[district] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate district counts")
}

func (s *SQLiteStore) CreateScrapeRun(ctx context.Context, source string) (*model.ScrapeRun, error) {
	run := &model.ScrapeRun{
		ID:        uuid.New().String(),
		Source:    source,
		Status:    model.ScrapeStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Source, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert scrape run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteScrapeRun(ctx context.Context, runID string, status model.ScrapeStatus, stats model.ScrapeStats, errMsg string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal scrape stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE scrape_runs SET status = ?, stats = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), string(statsJSON), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete scrape run %s", runID)
	}
	return checkRowsAffected(res, "scrape run", runID)
}

func (s *SQLiteStore) ListScrapeRuns(ctx context.Context, limit int) ([]model.ScrapeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, status, stats, error, started_at, finished_at
		 FROM scrape_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scrape runs")
	}
	defer rows.Close()

	var out []model.ScrapeRun
	for rows.Next() {
		var run model.ScrapeRun
		var status, statsJSON string
		var errMsg sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.Source, &status, &statsJSON, &errMsg, &run.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scrape run")
		}
		run.Status = model.ScrapeStatus(status)
		if statsJSON != "" {
			if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal scrape stats")
			}
		}
		run.Error = errMsg.String
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		out = append(out, run)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate scrape runs")
}

func (s *SQLiteStore) SaveModel(ctx context.Context, district string, bundle []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_models (district, bundle, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (district) DO UPDATE SET bundle = excluded.bundle, updated_at = excluded.updated_at`,
		district, string(bundle), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save model %s", district)
}

func (s *SQLiteStore) GetModel(ctx context.Context, district string) ([]byte, error) {
	var bundle string
	err := s.db.QueryRowContext(ctx,
		`SELECT bundle FROM price_models WHERE district = ?`, district,
	).Scan(&bundle)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get model %s", district)
	}
	return []byte(bundle), nil
}

func (s *SQLiteStore) ListModelDistricts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT district FROM price_models ORDER BY district`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list model districts")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan model district")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate model districts")
}

// scanListing reads one listing row from either a *sql.Row or *sql.Rows.
func scanListing(row interface{ Scan(...any) error }) (model.Listing, error) {
	var l model.Listing
	var amenitiesJSON sql.NullString
	var lat, lon sql.NullFloat64
	if err := row.Scan(&l.ID, &l.URL, &l.District, &l.Price, &l.Beds, &l.Baths,
		&l.Sqft, &amenitiesJSON, &lat, &lon, &l.ScrapedAt); err != nil {
		return l, eris.Wrap(err, "sqlite: scan listing")
	}
	if amenitiesJSON.Valid && amenitiesJSON.String != "" && amenitiesJSON.String != "null" {
		if err := json.Unmarshal([]byte(amenitiesJSON.String), &l.Amenities); err != nil {
			return l, eris.Wrap(err, "sqlite: unmarshal amenities")
		}
	}
	l.Lat = lat.Float64
	l.Lon = lon.Float64
	return l, nil
}

// checkRowsAffected converts a zero-row update into ErrNotFound.
func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", kind, id)
	}
	return nil
}
