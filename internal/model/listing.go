package model

import (
	"time"
)

// ScrapeStatus represents the current state of a scrape run.
type ScrapeStatus string

const (
	ScrapeStatusRunning  ScrapeStatus = "running"
	ScrapeStatusComplete ScrapeStatus = "complete"
	ScrapeStatusFailed   ScrapeStatus = "failed"
)

// District is a neighborhood that listings are grouped under. Code is the
// opaque identifier used as map-marker key and form value (e.g. "back_bay").
type District struct {
	Code string  `json:"code" yaml:"code"`
	Name string  `json:"name" yaml:"name"`
	Lat  float64 `json:"lat" yaml:"lat"`
	Lon  float64 `json:"lon" yaml:"lon"`
	Zoom int     `json:"zoom,omitempty" yaml:"zoom,omitempty"`
}

// Listing is one rental floorplan scraped or imported from a listing site.
type Listing struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	District  string    `json:"district"`
	Price     int       `json:"price"` // monthly rent in dollars
	Beds      float64   `json:"beds"`  // 0 = studio
	Baths     float64   `json:"baths"`
	Sqft      int       `json:"sqft"`
	Amenities []string  `json:"amenities,omitempty"` // one-hot slugs, e.g. Amenity_Washer_Dryer
	Lat       float64   `json:"lat,omitempty"`
	Lon       float64   `json:"lon,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// HasAmenity reports whether the listing carries the given amenity slug.
func (l Listing) HasAmenity(slug string) bool {
	for _, a := range l.Amenities {
		if a == slug {
			return true
		}
	}
	return false
}

// FeatureValue returns the numeric value of a named model feature for this
// listing. Amenity features are 1/0; unknown features are 0.
func (l Listing) FeatureValue(name string) float64 {
	switch name {
	case "beds":
		return l.Beds
	case "baths":
		return l.Baths
	case "sqft":
		return float64(l.Sqft)
	}
	if l.HasAmenity(name) {
		return 1
	}
	return 0
}

// ScrapeRun records one execution of the listing scraper.
type ScrapeRun struct {
	ID         string       `json:"id"`
	Source     string       `json:"source"`
	Status     ScrapeStatus `json:"status"`
	Stats      ScrapeStats  `json:"stats"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// ScrapeStats holds counters accumulated during a scrape run.
type ScrapeStats struct {
	Pages    int `json:"pages"`
	Listings int `json:"listings"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}
