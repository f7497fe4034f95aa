package estimate

import (
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bure-project/bure/internal/model"
)

// DefaultK is the neighbour count for KNN bundles.
const DefaultK = 5

// knnRow is one training listing reduced to the KNN feature space.
type knnRow struct {
	Beds  float64 `json:"beds"`
	Baths float64 `json:"baths"`
	Sqft  float64 `json:"sqft"`
	Price float64 `json:"price"`
}

// TrainKNN builds a KNN bundle for districts too thin for OLS. Distances are
// computed over z-scored beds/baths/sqft so square footage does not dominate.
func TrainKNN(district string, listings []model.Listing, k int) (*Bundle, error) {
	if len(listings) == 0 {
		return nil, eris.Errorf("estimate: no listings for %s", district)
	}
	if k <= 0 {
		k = DefaultK
	}
	if k > len(listings) {
		k = len(listings)
	}

	rows := make([]knnRow, len(listings))
	for i, l := range listings {
		rows[i] = knnRow{Beds: l.Beds, Baths: l.Baths, Sqft: float64(l.Sqft), Price: float64(l.Price)}
	}

	return &Bundle{
		District:   district,
		Method:     "knn",
		Features:   []string{"beds", "baths", "sqft"},
		K:          k,
		Neighbors:  rows,
		SampleSize: len(listings),
		TrainedAt:  time.Now().UTC(),
	}, nil
}

// predictKNN averages the prices of the k nearest training rows.
func (b *Bundle) predictKNN(features map[string]float64) float64 {
	if len(b.Neighbors) == 0 {
		return 0
	}

	bedsM, bedsS := knnStats(b.Neighbors, func(r knnRow) float64 { return r.Beds })
	bathsM, bathsS := knnStats(b.Neighbors, func(r knnRow) float64 { return r.Baths })
	sqftM, sqftS := knnStats(b.Neighbors, func(r knnRow) float64 { return r.Sqft })

	q := [3]float64{
		zscore(features["beds"], bedsM, bedsS),
		zscore(features["baths"], bathsM, bathsS),
		zscore(features["sqft"], sqftM, sqftS),
	}

	type scored struct {
		dist  float64
		price float64
	}
	candidates := make([]scored, len(b.Neighbors))
	for i, r := range b.Neighbors {
		db := zscore(r.Beds, bedsM, bedsS) - q[0]
		dt := zscore(r.Baths, bathsM, bathsS) - q[1]
		ds := zscore(r.Sqft, sqftM, sqftS) - q[2]
		candidates[i] = scored{dist: math.Sqrt(db*db + dt*dt + ds*ds), price: r.Price}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	k := b.K
	if k <= 0 || k > len(candidates) {
		k = len(candidates)
	}
	var sum float64
	for _, c := range candidates[:k] {
		sum += c.price
	}
	return sum / float64(k)
}

func knnStats(rows []knnRow, get func(knnRow) float64) (mean, std float64) {
	for _, r := range rows {
		mean += get(r)
	}
	mean /= float64(len(rows))
	for _, r := range rows {
		d := get(r) - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(rows)))
	return mean, std
}

func zscore(v, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (v - mean) / std
}
