package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bure-project/bure/internal/model"
)

func TestTrainKNN(t *testing.T) {
	listings := []model.Listing{
		{Price: 1800, Beds: 1, Baths: 1, Sqft: 500},
		{Price: 1900, Beds: 1, Baths: 1, Sqft: 550},
		{Price: 2600, Beds: 2, Baths: 1, Sqft: 800},
		{Price: 2700, Beds: 2, Baths: 2, Sqft: 850},
		{Price: 3400, Beds: 3, Baths: 2, Sqft: 1100},
	}

	b, err := TrainKNN("mission_hill", listings, 2)
	require.NoError(t, err)
	assert.Equal(t, "knn", b.Method)
	assert.Equal(t, 2, b.K)
	assert.Equal(t, 5, b.SampleSize)

	// A one-bed query lands nearest the two one-bed rows.
	price := b.Predict(map[string]float64{"beds": 1, "baths": 1, "sqft": 520})
	assert.InDelta(t, 1850, price, 1)

	// A three-bed query is pulled toward the large units.
	price = b.Predict(map[string]float64{"beds": 3, "baths": 2, "sqft": 1050})
	assert.Greater(t, price, 2700.0)
}

func TestTrainKNN_KClampedToSampleSize(t *testing.T) {
	listings := []model.Listing{
		{Price: 2000, Beds: 1, Baths: 1, Sqft: 600},
		{Price: 2200, Beds: 2, Baths: 1, Sqft: 700},
	}

	b, err := TrainKNN("north_end", listings, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, b.K)

	price := b.Predict(map[string]float64{"beds": 1, "baths": 1, "sqft": 650})
	assert.InDelta(t, 2100, price, 1)
}

func TestTrainKNN_Empty(t *testing.T) {
	_, err := TrainKNN("north_end", nil, 3)
	assert.Error(t, err)
}

func TestKNNRoundTrip(t *testing.T) {
	listings := []model.Listing{
		{Price: 2000, Beds: 1, Baths: 1, Sqft: 600},
		{Price: 2400, Beds: 2, Baths: 1, Sqft: 750},
		{Price: 2900, Beds: 2, Baths: 2, Sqft: 900},
	}
	b, err := TrainKNN("south_end", listings, 2)
	require.NoError(t, err)

	data, err := b.Marshal()
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)

	q := map[string]float64{"beds": 2, "baths": 1, "sqft": 760}
	assert.InDelta(t, b.Predict(q), got.Predict(q), 1e-9)
}
