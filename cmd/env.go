package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bure-project/bure/internal/district"
	"github.com/bure-project/bure/internal/scraper"
	"github.com/bure-project/bure/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "bure.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initRegistry loads the embedded district catalog, plus boundary polygons
// when a shapefile is configured.
func initRegistry() (*district.Registry, error) {
	reg, err := district.NewRegistry()
	if err != nil {
		return nil, err
	}
	if cfg.Boundary.ShapefilePath != "" {
		n, err := district.LoadBoundaries(reg, cfg.Boundary.ShapefilePath, cfg.Boundary.CodeField)
		if err != nil {
			return nil, err
		}
		zap.L().Info("loaded district boundaries",
			zap.String("path", cfg.Boundary.ShapefilePath),
			zap.Int("polygons", n))
	}
	return reg, nil
}

// initScrapeEngine builds the engine over the configured sources. A
// non-empty onlyDistrict restricts the run to that single source.
func initScrapeEngine(st store.Store, onlyDistrict string) *scraper.Engine {
	client := scraper.NewClient(scraper.ClientConfig{
		CitySlug:       cfg.Scrape.CitySlug,
		RequestsPerSec: cfg.Scrape.RequestsPerSec,
		Timeout:        30 * time.Second,
	})
	var sources []scraper.Source
	for _, s := range cfg.Scrape.Sources {
		if onlyDistrict != "" && s.District != onlyDistrict {
			continue
		}
		sources = append(sources, scraper.Source{District: s.District, SearchURL: s.SearchURL})
	}
	return scraper.NewEngine(st, client, sources, scraper.EngineConfig{
		MaxPages:    cfg.Scrape.MaxPages,
		Concurrency: cfg.Scrape.Concurrency,
	})
}
