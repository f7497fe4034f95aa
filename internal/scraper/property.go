package scraper

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/bure-project/bure/internal/model"
)

// Selectors on a property detail page. Floorplan rows hang off
// .detailsLabel; amenities live only under the amenitiesSectionV2 blocks.
const (
	selDetails   = ".detailsLabel"
	selRowCells  = ".rentLabel, .pricingColumn, .unitLabel.sqftColumn, .sqftColumn, .detailsLabel"
	selAmenities = ".amenitiesSection.amenitiesSectionV2"
)

// ScrapeProperty fetches one property page and returns a listing per
// distinct floorplan. Floorplans without a parseable price are dropped.
func (c *Client) ScrapeProperty(ctx context.Context, propertyURL string) ([]model.Listing, error) {
	doc, err := c.document(ctx, propertyURL)
	if err != nil {
		return nil, err
	}
	return ParseProperty(doc, propertyURL), nil
}

// ParseProperty extracts floorplan listings from a rendered property page.
func ParseProperty(doc *goquery.Document, propertyURL string) []model.Listing {
	amenities := parseAmenities(doc)
	now := time.Now().UTC()

	type sig struct {
		price int
		beds  float64
		baths float64
		sqft  int
	}
	seen := make(map[sig]struct{})

	var listings []model.Listing
	doc.Find(selDetails).Each(func(_ int, det *goquery.Selection) {
		row := floorplanRow(det)
		if row == nil {
			return
		}

		details := cleanText(det.Text())
		rentRaw := cleanText(row.Find(".rentLabel").First().Text())
		priceRaw := cleanText(row.Find(".pricingColumn").First().Text())
		sqftCell := row.Find(".unitLabel.sqftColumn").First()
		if sqftCell.Length() == 0 {
			sqftCell = row.Find(".sqftColumn").First()
		}
		sqftRaw := cleanText(sqftCell.Text())

		price, ok := ParsePrice(rentRaw)
		if !ok {
			price, ok = ParsePrice(priceRaw)
		}
		if !ok {
			return
		}
		beds, _ := ParseBeds(details)
		baths, _ := ParseBaths(details)
		sqft, ok := ParseSqft(sqftRaw)
		if !ok {
			sqft, _ = ParseSqft(details)
		}

		s := sig{price: price, beds: beds, baths: baths, sqft: sqft}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}

		listings = append(listings, model.Listing{
			URL:       propertyURL,
			Price:     price,
			Beds:      beds,
			Baths:     baths,
			Sqft:      sqft,
			Amenities: amenities,
			ScrapedAt: now,
		})
	})
	return listings
}

// floorplanRow climbs from a details label to the enclosing row element,
// giving up after a few levels.
func floorplanRow(det *goquery.Selection) *goquery.Selection {
	row := det
	for i := 0; i < 4; i++ {
		if row.Length() == 0 {
			return nil
		}
		if row.Is("tr, div") && row.Find(selRowCells).Length() > 0 {
			return row
		}
		row = row.Parent()
	}
	if row.Length() == 0 {
		return nil
	}
	return row
}

// parseAmenities collects amenity list items across every amenities section
// and returns their one-hot slugs, deduplicated in page order.
func parseAmenities(doc *goquery.Document) []string {
	var slugs []string
	seen := make(map[string]struct{})
	doc.Find(selAmenities).Each(func(_ int, section *goquery.Selection) {
		section.Find("li").Each(func(_ int, li *goquery.Selection) {
			label := cleanText(li.Text())
			if label == "" {
				return
			}
			slug := model.AmenitySlug(label)
			if _, dup := seen[slug]; dup {
				return
			}
			seen[slug] = struct{}{}
			slugs = append(slugs, slug)
		})
	})
	return slugs
}
