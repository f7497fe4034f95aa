package model

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const amenityPrefix = "Amenity_"

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

var titleCaser = cases.Title(language.AmericanEnglish)

// AmenitySlug converts a scraped amenity label into its one-hot column slug,
// matching the export format listings are trained on:
// "Washer/Dryer" -> "Amenity_Washer_Dryer", "24 Hour Access" -> "Amenity_A_24_Hour_Access".
func AmenitySlug(label string) string {
	s := strings.TrimSpace(label)
	if s == "" {
		return ""
	}
	s = nonAlnum.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return ""
	}
	// Column names must not start with a digit.
	if s[0] >= '0' && s[0] <= '9' {
		s = "A_" + s
	}
	return amenityPrefix + s
}

// AmenityLabel converts a slug back into a human-readable display name.
func AmenityLabel(slug string) string {
	s := strings.TrimPrefix(slug, amenityPrefix)
	s = strings.TrimPrefix(s, "A_")
	s = strings.ReplaceAll(s, "_", " ")
	return titleCaser.String(strings.ToLower(s))
}

// IsAmenityFeature reports whether a feature name is an amenity one-hot column.
func IsAmenityFeature(name string) bool {
	return strings.HasPrefix(name, amenityPrefix)
}
