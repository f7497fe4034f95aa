package estimate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bure-project/bure/internal/model"
)

// syntheticListings builds listings whose price is an exact linear function:
// price = 500 + 300*beds + 200*baths + 2*sqft + 150*elevator.
func syntheticListings(n int, seed int64) []model.Listing {
	rng := rand.New(rand.NewSource(seed))
	out := make([]model.Listing, n)
	for i := range out {
		beds := float64(rng.Intn(4))
		baths := 1 + float64(rng.Intn(2))
		sqft := 400 + rng.Intn(900)
		var amenities []string
		elevator := 0.0
		if rng.Intn(2) == 1 {
			amenities = []string{"Amenity_Elevator"}
			elevator = 1
		}
		price := 500 + 300*beds + 200*baths + 2*float64(sqft) + 150*elevator
		out[i] = model.Listing{
			URL:       "https://example.com/listing",
			District:  "fenway",
			Price:     int(price),
			Beds:      beds,
			Baths:     baths,
			Sqft:      sqft,
			Amenities: amenities,
		}
	}
	return out
}

func TestTrain_RecoversLinearFunction(t *testing.T) {
	listings := syntheticListings(60, 1)

	b, err := Train("fenway", listings, nil)
	require.NoError(t, err)

	assert.Equal(t, "linear_regression", b.Method)
	assert.Equal(t, []string{"beds", "baths", "sqft", "Amenity_Elevator"}, b.Features)
	assert.InDelta(t, 500, b.Intercept, 1)
	assert.InDelta(t, 300, b.Coef[0], 1)
	assert.InDelta(t, 200, b.Coef[1], 1)
	assert.InDelta(t, 2, b.Coef[2], 0.01)
	assert.InDelta(t, 150, b.Coef[3], 1)
	assert.Greater(t, b.R2, 0.99)
	assert.Equal(t, 60, b.SampleSize)
}

func TestTrain_TooFewListings(t *testing.T) {
	_, err := Train("fenway", syntheticListings(5, 1), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need")
}

func TestTrain_SingularMatrix(t *testing.T) {
	// Identical rows make beds/baths/sqft collinear with the intercept.
	listings := make([]model.Listing, 20)
	for i := range listings {
		listings[i] = model.Listing{Price: 2000, Beds: 2, Baths: 1, Sqft: 700}
	}
	_, err := Train("fenway", listings, []string{"beds", "baths", "sqft"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "singular")
}

func TestPredict_MissingFeaturesAreZero(t *testing.T) {
	b, err := Train("fenway", syntheticListings(60, 2), nil)
	require.NoError(t, err)

	full := b.Predict(map[string]float64{
		"beds": 2, "baths": 1, "sqft": 700, "Amenity_Elevator": 1,
	})
	assert.InDelta(t, 500+600+200+1400+150, full, 5)

	// Omitting the amenity behaves as a 0 column.
	partial := b.Predict(map[string]float64{"beds": 2, "baths": 1, "sqft": 700})
	assert.InDelta(t, full-150, partial, 5)

	// An empty map predicts the intercept.
	assert.InDelta(t, b.Intercept, b.Predict(nil), 0.001)
}

func TestDefaultFeatures_DropsConstantAmenities(t *testing.T) {
	listings := syntheticListings(30, 3)
	// An amenity present on every listing carries no signal.
	for i := range listings {
		listings[i].Amenities = append(listings[i].Amenities, "Amenity_Recycling")
	}

	features := DefaultFeatures(listings)
	assert.Contains(t, features, "beds")
	assert.NotContains(t, features, "Amenity_Recycling")
}

func TestEvaluate(t *testing.T) {
	report, err := Evaluate(syntheticListings(80, 4), nil, 20)
	require.NoError(t, err)

	assert.Equal(t, 20, report.Splits)
	// Noise-free linear data fits almost perfectly on both sides.
	assert.Greater(t, report.TrainR2Mean, 0.99)
	assert.Greater(t, report.TestR2Mean, 0.99)
	assert.Less(t, report.TrainR2Std, 0.01)
}

func TestEvaluate_TooFewListings(t *testing.T) {
	_, err := Evaluate(syntheticListings(4, 5), nil, 10)
	assert.Error(t, err)
}

func TestBundleRoundTrip(t *testing.T) {
	b, err := Train("fenway", syntheticListings(60, 6), nil)
	require.NoError(t, err)

	data, err := b.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, b.Features, got.Features)
	assert.InDelta(t, b.Intercept, got.Intercept, 1e-9)

	pred := map[string]float64{"beds": 1, "baths": 1, "sqft": 600}
	assert.InDelta(t, b.Predict(pred), got.Predict(pred), 1e-9)
}

func TestConfidence(t *testing.T) {
	small := &Bundle{Method: "linear_regression", SampleSize: 12, R2: 0.5}
	big := &Bundle{Method: "linear_regression", SampleSize: 150, R2: 0.9}
	knn := &Bundle{Method: "knn", SampleSize: 5}

	assert.Less(t, small.Confidence(), big.Confidence())
	assert.Less(t, knn.Confidence(), small.Confidence())
	assert.LessOrEqual(t, big.Confidence(), 0.95)
}
