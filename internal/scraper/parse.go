package scraper

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRE      = regexp.MustCompile(`\$\s*([\d,]+)`)
	bedsRangeRE  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*-\s*\d+(?:\.\d+)?\s*beds?`)
	bedsRE       = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*beds?`)
	bathsRangeRE = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*-\s*\d+(?:\.\d+)?\s*baths?`)
	bathsRE      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*baths?`)
	sqftRE       = regexp.MustCompile(`(?i)([\d,]+)\s*(?:sq\s*\.?\s*ft|sf|ft2|ft²|square\s*feet)`)
	sqftBareRE   = regexp.MustCompile(`^\s*([\d,]{3,})\s*$`)
)

// ParsePrice extracts a dollar amount like "$2,350/mo" as 2350.
func ParsePrice(text string) (int, bool) {
	m := priceRE.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseBeds reads a bed count out of a details label. "Studio" counts as 0
// beds and ranges like "1 - 2 Beds" resolve to the low bound.
func ParseBeds(details string) (float64, bool) {
	txt := strings.ToLower(details)
	if txt == "" {
		return 0, false
	}
	if strings.Contains(txt, "studio") {
		return 0, true
	}
	for _, re := range []*regexp.Regexp{bedsRangeRE, bedsRE} {
		if m := re.FindStringSubmatch(txt); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

// ParseBaths reads a bath count, resolving ranges to the low bound the same
// way ParseBeds does.
func ParseBaths(details string) (float64, bool) {
	txt := strings.ToLower(details)
	if txt == "" {
		return 0, false
	}
	for _, re := range []*regexp.Regexp{bathsRangeRE, bathsRE} {
		if m := re.FindStringSubmatch(txt); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

// ParseSqft extracts square footage from strings like "750 Sq Ft" or
// "1,050 sq. ft.". Columns that hold only bare digits are accepted too.
func ParseSqft(text string) (int, bool) {
	if m := sqftRE.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			return n, true
		}
	}
	if m := sqftBareRE.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			return n, true
		}
	}
	return 0, false
}

// cleanText collapses runs of whitespace the way rendered HTML displays them.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
