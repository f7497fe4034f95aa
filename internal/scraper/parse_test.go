package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"$2,350", 2350, true},
		{"$2,350 - $3,100", 2350, true},
		{"From $980/mo", 980, true},
		{"Call for Rent", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParsePrice(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseBeds(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"Studio , 1 Bath", 0, true},
		{"1 Bed , 1 Bath", 1, true},
		{"2 Beds , 2 Baths", 2, true},
		{"1 - 3 Beds , 1 - 2 Baths", 1, true},
		{"2.5 Beds", 2.5, true},
		{"1 Bath", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseBeds(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseBaths(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1 Bed , 1 Bath", 1, true},
		{"2 Beds , 1.5 Baths", 1.5, true},
		{"1 - 3 Beds , 1 - 2 Baths", 1, true},
		{"Studio", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseBaths(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseSqft(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"750 Sq Ft", 750, true},
		{"1,050 sq. ft.", 1050, true},
		{"680 SF", 680, true},
		{"900 square feet", 900, true},
		{" 1,200 ", 1200, true}, // bare digits column
		{"12", 0, false},        // too short to be a bare sqft value
		{"Studio", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseSqft(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
