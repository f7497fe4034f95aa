package estimate

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bure-project/bure/internal/district"
	"github.com/bure-project/bure/internal/model"
	"github.com/bure-project/bure/internal/store"
)

// Estimator serves rent estimates from stored per-district bundles and
// retrains them from listing data.
type Estimator struct {
	store    store.Store
	registry *district.Registry

	mu     sync.RWMutex
	cache  map[string]*Bundle
	splits int
}

// NewEstimator creates an estimator over the given store and registry.
func NewEstimator(st store.Store, reg *district.Registry) *Estimator {
	return &Estimator{
		store:    st,
		registry: reg,
		cache:    make(map[string]*Bundle),
		splits:   100,
	}
}

// Estimate predicts monthly rent for every requested district. Unknown
// district codes and districts without a trained model produce errors; the
// caller decides whether a partial result is acceptable.
func (e *Estimator) Estimate(ctx context.Context, req model.EstimateRequest) ([]model.Estimate, error) {
	if len(req.Locations) == 0 {
		return nil, eris.New("estimate: no locations requested")
	}

	features := req.FeatureMap()
	out := make([]model.Estimate, 0, len(req.Locations))
	for _, code := range req.Locations {
		if _, ok := e.registry.Get(code); !ok {
			return nil, eris.Errorf("estimate: unknown district %s", code)
		}
		bundle, err := e.bundle(ctx, code)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Estimate{
			District:   code,
			Price:      bundle.Predict(features),
			Confidence: bundle.Confidence(),
			Method:     bundle.Method,
			SampleSize: bundle.SampleSize,
			TrainedAt:  bundle.TrainedAt,
		})
	}
	return out, nil
}

// bundle loads a district's model, consulting the in-process cache first.
func (e *Estimator) bundle(ctx context.Context, code string) (*Bundle, error) {
	e.mu.RLock()
	b, ok := e.cache[code]
	e.mu.RUnlock()
	if ok {
		return b, nil
	}

	data, err := e.store.GetModel(ctx, code)
	if err != nil {
		return nil, eris.Wrapf(err, "estimate: load model %s", code)
	}
	b, err = Unmarshal(data)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[code] = b
	e.mu.Unlock()
	return b, nil
}

// TrainDistrict fits and persists one district's model: OLS when enough
// listings exist, KNN otherwise. Districts with no listings at all error.
func (e *Estimator) TrainDistrict(ctx context.Context, code string) (*Bundle, error) {
	if _, ok := e.registry.Get(code); !ok {
		return nil, eris.Errorf("estimate: unknown district %s", code)
	}

	listings, err := e.store.ListListings(ctx, store.ListingFilter{District: code})
	if err != nil {
		return nil, eris.Wrapf(err, "estimate: load listings for %s", code)
	}
	if len(listings) == 0 {
		return nil, eris.Errorf("estimate: no listings for %s", code)
	}

	bundle, err := Train(code, listings, nil)
	if err != nil {
		zap.L().Info("estimate: falling back to knn",
			zap.String("district", code),
			zap.Int("listings", len(listings)),
		)
		bundle, err = TrainKNN(code, listings, DefaultK)
		if err != nil {
			return nil, err
		}
	} else if report, evalErr := Evaluate(listings, bundle.Features, e.splits); evalErr == nil {
		zap.L().Info("estimate: evaluation",
			zap.String("district", code),
			zap.Int("splits", report.Splits),
			zap.Float64("train_r2", report.TrainR2Mean),
			zap.Float64("test_r2", report.TestR2Mean),
		)
	}

	data, err := bundle.Marshal()
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveModel(ctx, code, data); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[code] = bundle
	e.mu.Unlock()
	return bundle, nil
}

// TrainAll retrains every district that has listings. Districts that fail
// are logged and skipped; the return maps district code to sample size.
func (e *Estimator) TrainAll(ctx context.Context) (map[string]int, error) {
	counts, err := e.store.CountByDistrict(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "estimate: count listings")
	}

	trained := make(map[string]int)
	for _, code := range e.registry.Codes() {
		if counts[code] == 0 {
			continue
		}
		b, err := e.TrainDistrict(ctx, code)
		if err != nil {
			zap.L().Warn("estimate: train failed",
				zap.String("district", code),
				zap.Error(err),
			)
			continue
		}
		trained[code] = b.SampleSize
	}
	if len(trained) == 0 {
		return nil, eris.New("estimate: no district could be trained")
	}
	return trained, nil
}
