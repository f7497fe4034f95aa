package scraper

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bure-project/bure/internal/model"
	"github.com/bure-project/bure/internal/store"
)

// Source binds a district to the search URL whose results belong to it.
type Source struct {
	District  string `yaml:"district" mapstructure:"district"`
	SearchURL string `yaml:"search_url" mapstructure:"search_url"`
}

// EngineConfig controls a scrape run.
type EngineConfig struct {
	MaxPages    int // search pages per source
	Concurrency int // sources scraped in parallel
}

// Engine walks every configured source, scrapes its properties and upserts
// the resulting listings. Each invocation is recorded as a scrape run.
type Engine struct {
	store   store.Store
	client  *Client
	sources []Source
	cfg     EngineConfig
}

func NewEngine(st store.Store, client *Client, sources []Source, cfg EngineConfig) *Engine {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 2
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	return &Engine{store: st, client: client, sources: sources, cfg: cfg}
}

// Run scrapes all sources in parallel. Individual source failures are
// counted and logged without aborting the rest; the run fails only when no
// source produced listings or the context was cancelled.
func (e *Engine) Run(ctx context.Context, sourceName string) (*model.ScrapeRun, error) {
	log := zap.L().With(zap.String("component", "scraper.engine"))

	if len(e.sources) == 0 {
		return nil, eris.New("scraper: no sources configured")
	}

	run, err := e.store.CreateScrapeRun(ctx, sourceName)
	if err != nil {
		return nil, eris.Wrap(err, "scraper: create run")
	}

	var pages, listings, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for _, src := range e.sources {
		g.Go(func() error {
			sLog := log.With(zap.String("district", src.District))

			urls, err := e.client.CollectPropertyURLs(gctx, src.SearchURL, e.cfg.MaxPages)
			if err != nil {
				sLog.Error("search failed", zap.Error(err))
				failed.Add(1)
				return nil
			}
			pages.Add(int64(e.cfg.MaxPages))
			sLog.Info("collected property urls", zap.Int("count", len(urls)))

			var batch []model.Listing
			for _, u := range urls {
				rows, err := e.client.ScrapeProperty(gctx, u)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					sLog.Warn("property failed", zap.String("url", u), zap.Error(err))
					failed.Add(1)
					continue
				}
				if len(rows) == 0 {
					skipped.Add(1)
					continue
				}
				for i := range rows {
					rows[i].District = src.District
				}
				batch = append(batch, rows...)
			}

			if len(batch) == 0 {
				sLog.Info("no listings for district")
				return nil
			}
			n, err := e.store.BulkUpsertListings(gctx, batch)
			if err != nil {
				sLog.Error("upsert failed", zap.Error(err))
				failed.Add(1)
				return nil
			}
			listings.Add(n)
			return nil
		})
	}

	runErr := g.Wait()

	stats := model.ScrapeStats{
		Pages:    int(pages.Load()),
		Listings: int(listings.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
	}

	status := model.ScrapeStatusComplete
	errMsg := ""
	if runErr != nil {
		status = model.ScrapeStatusFailed
		errMsg = runErr.Error()
	} else if stats.Listings == 0 {
		status = model.ScrapeStatusFailed
		errMsg = "no listings scraped"
	}

	// Record the outcome even when the run's context is gone.
	if err := e.store.CompleteScrapeRun(context.WithoutCancel(ctx), run.ID, status, stats, errMsg); err != nil {
		log.Error("failed to record scrape run", zap.Error(err))
	}

	run.Status = status
	run.Stats = stats
	run.Error = errMsg

	log.Info("scrape run finished",
		zap.String("status", string(status)),
		zap.Int("listings", stats.Listings),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)

	if status == model.ScrapeStatusFailed {
		return run, eris.New("scraper: run failed: " + errMsg)
	}
	return run, nil
}
