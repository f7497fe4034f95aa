// Package estimate trains and evaluates per-district rent pricing models
// from listing data: ordinary least squares over beds/baths/sqft/amenity
// features, with a k-nearest-neighbour fallback for thin districts.
package estimate

import (
	"encoding/json"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bure-project/bure/internal/model"
)

// MinTrainRows is the smallest listing count OLS is trained on; districts
// below it fall back to KNN.
const MinTrainRows = 10

const baseFeatureCount = 3 // beds, baths, sqft

// Bundle is one district's serialized pricing model.
type Bundle struct {
	District   string    `json:"district"`
	Method     string    `json:"method"` // "linear_regression" or "knn"
	Features   []string  `json:"features"`
	Coef       []float64 `json:"coef,omitempty"`
	Intercept  float64   `json:"intercept,omitempty"`
	R2         float64   `json:"r2,omitempty"`
	SampleSize int       `json:"sample_size"`
	TrainedAt  time.Time `json:"trained_at"`

	// KNN bundles carry their training rows instead of coefficients.
	Neighbors []knnRow `json:"neighbors,omitempty"`
	K         int      `json:"k,omitempty"`
}

// Marshal serializes the bundle for store persistence.
func (b *Bundle) Marshal() ([]byte, error) {
	data, err := json.Marshal(b)
	return data, eris.Wrap(err, "estimate: marshal bundle")
}

// Unmarshal deserializes a stored bundle.
func Unmarshal(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, eris.Wrap(err, "estimate: unmarshal bundle")
	}
	return &b, nil
}

// DefaultFeatures returns beds/baths/sqft plus every amenity slug that
// actually varies across the given listings, sorted for stable coefficient
// ordering. Constant columns carry no signal and break the normal equations.
func DefaultFeatures(listings []model.Listing) []string {
	features := []string{"beds", "baths", "sqft"}

	seen := make(map[string]int)
	for _, l := range listings {
		for _, a := range l.Amenities {
			seen[a]++
		}
	}
	var amenities []string
	for slug, n := range seen {
		if n > 0 && n < len(listings) {
			amenities = append(amenities, slug)
		}
	}
	sort.Strings(amenities)
	return append(features, amenities...)
}

// Train fits an OLS model for one district. Features defaults to
// DefaultFeatures when nil. Returns an error when the district has too few
// rows for a stable fit; callers then use TrainKNN.
func Train(district string, listings []model.Listing, features []string) (*Bundle, error) {
	if len(listings) < MinTrainRows {
		return nil, eris.Errorf("estimate: %s has %d listings, need %d", district, len(listings), MinTrainRows)
	}
	if features == nil {
		features = DefaultFeatures(listings)
	}
	if len(features) == 0 {
		return nil, eris.New("estimate: no features")
	}
	if len(listings) <= len(features) {
		return nil, eris.Errorf("estimate: %s has %d listings for %d features", district, len(listings), len(features))
	}

	X, y := designMatrix(listings, features)
	coef, err := solveOLS(X, y)
	if err != nil {
		return nil, eris.Wrapf(err, "estimate: fit %s", district)
	}

	b := &Bundle{
		District:   district,
		Method:     "linear_regression",
		Features:   features,
		Intercept:  coef[0],
		Coef:       coef[1:],
		R2:         rSquared(X, y, coef),
		SampleSize: len(listings),
		TrainedAt:  time.Now().UTC(),
	}
	return b, nil
}

// Predict returns the estimated monthly rent for a feature map. Features the
// model knows but the map lacks count as 0, matching the training export
// where absent amenities are 0-valued columns.
func (b *Bundle) Predict(features map[string]float64) float64 {
	if b.Method == "knn" {
		return b.predictKNN(features)
	}
	price := b.Intercept
	for i, f := range b.Features {
		price += b.Coef[i] * features[f]
	}
	return price
}

// Confidence scores the bundle on sample size and fit quality.
func (b *Bundle) Confidence() float64 {
	c := 0.5
	if b.Method == "knn" {
		c = 0.35
	}
	if b.SampleSize >= 30 {
		c += 0.1
	}
	if b.SampleSize >= 100 {
		c += 0.1
	}
	if b.R2 > 0 {
		c += 0.2 * math.Min(b.R2, 1)
	}
	return math.Min(c, 0.95)
}

// EvalReport summarizes repeated random-split evaluation.
type EvalReport struct {
	Splits      int     `json:"splits"`
	TrainR2Mean float64 `json:"train_r2_mean"`
	TrainR2Std  float64 `json:"train_r2_std"`
	TestR2Mean  float64 `json:"test_r2_mean"`
	TestR2Std   float64 `json:"test_r2_std"`
}

// Evaluate runs repeated shuffled 80/20 splits and reports mean/stddev R²
// on each side. Splits that fail to fit (degenerate subsamples) are skipped.
func Evaluate(listings []model.Listing, features []string, splits int) (*EvalReport, error) {
	if splits <= 0 {
		splits = 100
	}
	if features == nil {
		features = DefaultFeatures(listings)
	}
	testSize := len(listings) / 5
	if testSize == 0 || len(listings)-testSize <= len(features) {
		return nil, eris.Errorf("estimate: %d listings too few to evaluate", len(listings))
	}

	var trainScores, testScores []float64
	idx := make([]int, len(listings))
	for seed := 0; seed < splits; seed++ {
		rng := rand.New(rand.NewSource(int64(seed)))
		for i := range idx {
			idx[i] = i
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		test := make([]model.Listing, 0, testSize)
		train := make([]model.Listing, 0, len(listings)-testSize)
		for i, j := range idx {
			if i < testSize {
				test = append(test, listings[j])
			} else {
				train = append(train, listings[j])
			}
		}

		Xtr, ytr := designMatrix(train, features)
		coef, err := solveOLS(Xtr, ytr)
		if err != nil {
			continue
		}
		Xte, yte := designMatrix(test, features)
		trainScores = append(trainScores, rSquared(Xtr, ytr, coef))
		testScores = append(testScores, rSquared(Xte, yte, coef))
	}
	if len(trainScores) == 0 {
		return nil, eris.New("estimate: every evaluation split failed to fit")
	}

	trMean, trStd := meanStd(trainScores)
	teMean, teStd := meanStd(testScores)
	return &EvalReport{
		Splits:      len(trainScores),
		TrainR2Mean: trMean,
		TrainR2Std:  trStd,
		TestR2Mean:  teMean,
		TestR2Std:   teStd,
	}, nil
}

// designMatrix builds X (with a leading intercept column) and y.
func designMatrix(listings []model.Listing, features []string) ([][]float64, []float64) {
	X := make([][]float64, len(listings))
	y := make([]float64, len(listings))
	for i, l := range listings {
		row := make([]float64, len(features)+1)
		row[0] = 1
		for j, f := range features {
			row[j+1] = l.FeatureValue(f)
		}
		X[i] = row
		y[i] = float64(l.Price)
	}
	return X, y
}

// solveOLS solves the normal equations (XᵀX)β = Xᵀy with Gaussian
// elimination and partial pivoting.
func solveOLS(X [][]float64, y []float64) ([]float64, error) {
	n := len(X[0])

	// Build XᵀX and Xᵀy.
	A := make([][]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		A[i] = make([]float64, n)
	}
	for _, row := range X {
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				A[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			A[i][j] = A[j][i]
		}
	}
	for k, row := range X {
		for i := 0; i < n; i++ {
			b[i] += row[i] * y[k]
		}
	}

	// Forward elimination with partial pivoting.
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(A[r][col]) > math.Abs(A[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(A[pivot][col]) < 1e-10 {
			return nil, eris.New("estimate: singular design matrix")
		}
		A[col], A[pivot] = A[pivot], A[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			factor := A[r][col] / A[col][col]
			for c := col; c < n; c++ {
				A[r][c] -= factor * A[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	// Back substitution.
	coef := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= A[i][j] * coef[j]
		}
		coef[i] = sum / A[i][i]
	}
	return coef, nil
}

// rSquared computes the coefficient of determination of coef on (X, y).
func rSquared(X [][]float64, y []float64, coef []float64) float64 {
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	var ssRes, ssTot float64
	for i, row := range X {
		var pred float64
		for j, c := range coef {
			pred += c * row[j]
		}
		d := y[i] - pred
		ssRes += d * d
		t := y[i] - mean
		ssTot += t * t
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

func meanStd(xs []float64) (float64, float64) {
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
