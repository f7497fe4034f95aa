// Package store persists listings, scrape runs, and trained pricing model
// bundles. Two backends: SQLite (default, single file) and Postgres.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/bure-project/bure/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// ListingFilter specifies criteria for listing queries.
type ListingFilter struct {
	District string  `json:"district,omitempty"`
	MinPrice int     `json:"min_price,omitempty"`
	MaxPrice int     `json:"max_price,omitempty"`
	Beds     float64 `json:"beds,omitempty"` // exact match when > 0
	Limit    int     `json:"limit,omitempty"`
	Offset   int     `json:"offset,omitempty"`
}

// Store defines the persistence interface for the rental service.
type Store interface {
	// Listings
	UpsertListing(ctx context.Context, l model.Listing) (string, error)
	BulkUpsertListings(ctx context.Context, ls []model.Listing) (int64, error)
	ListListings(ctx context.Context, f ListingFilter) ([]model.Listing, error)
	CountByDistrict(ctx context.Context) (map[string]int, error)

	// Scrape runs
	CreateScrapeRun(ctx context.Context, source string) (*model.ScrapeRun, error)
	CompleteScrapeRun(ctx context.Context, runID string, status model.ScrapeStatus, stats model.ScrapeStats, errMsg string) error
	ListScrapeRuns(ctx context.Context, limit int) ([]model.ScrapeRun, error)

	// Pricing model bundles, serialized JSON keyed by district code.
	SaveModel(ctx context.Context, district string, bundle []byte) error
	GetModel(ctx context.Context, district string) ([]byte, error)
	ListModelDistricts(ctx context.Context) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
