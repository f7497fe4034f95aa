package model

import "time"

// SearchMode describes which input strategy produced a location selection.
type SearchMode string

const (
	SearchModeList SearchMode = "list"
	SearchModeMap  SearchMode = "map"
)

// EstimateRequest is a rent-estimate query for one or more districts.
type EstimateRequest struct {
	Locations []string   `json:"locations"`
	Mode      SearchMode `json:"mode"`
	Beds      float64    `json:"beds"`
	Baths     float64    `json:"baths"`
	Sqft      int        `json:"sqft"`
	Amenities []string   `json:"amenities,omitempty"`
}

// FeatureMap flattens the request into feature name -> value pairs for
// model prediction. Amenities become 1-valued entries; anything the model
// expects but the map lacks is treated as 0 by the predictor.
func (r EstimateRequest) FeatureMap() map[string]float64 {
	m := map[string]float64{
		"beds":  r.Beds,
		"baths": r.Baths,
		"sqft":  float64(r.Sqft),
	}
	for _, a := range r.Amenities {
		m[a] = 1
	}
	return m
}

// Estimate is a predicted monthly rent for one district.
type Estimate struct {
	District   string    `json:"district"`
	Price      float64   `json:"price"`
	Confidence float64   `json:"confidence"` // 0.0-1.0
	Method     string    `json:"method"`     // "linear_regression" or "knn"
	SampleSize int       `json:"sample_size"`
	TrainedAt  time.Time `json:"trained_at"`
}
