package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const propertyHTML = `<html><body>
<h1>Some Tower</h1>
<table>
  <tr>
    <td class="rentLabel">$2,350</td>
    <td class="detailsLabel">1 Bed , 1 Bath</td>
    <td class="unitLabel sqftColumn">650 Sq Ft</td>
  </tr>
  <tr>
    <td class="rentLabel">$3,100 - $3,400</td>
    <td class="detailsLabel">2 Beds , 2 Baths</td>
    <td class="sqftColumn">1,050</td>
  </tr>
  <tr>
    <td class="rentLabel">$3,100 - $3,400</td>
    <td class="detailsLabel">2 Beds , 2 Baths</td>
    <td class="sqftColumn">1,050</td>
  </tr>
  <tr>
    <td class="rentLabel">Call for Rent</td>
    <td class="detailsLabel">Studio , 1 Bath</td>
    <td class="sqftColumn">400</td>
  </tr>
</table>
<div class="amenitiesSection amenitiesSectionV2">
  <h3>Community Amenities</h3>
  <ul><li>Fitness Center</li><li>Elevator</li></ul>
</div>
<div class="amenitiesSection amenitiesSectionV2">
  <h3>Apartment Features</h3>
  <ul><li>Washer/Dryer</li><li>Elevator</li></ul>
</div>
</body></html>`

func TestParseProperty(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(propertyHTML))
	require.NoError(t, err)

	got := ParseProperty(doc, "https://example.com/some-tower-boston-ma/abc1")

	// Duplicate floorplan collapses, the priceless studio is dropped.
	require.Len(t, got, 2)

	assert.Equal(t, 2350, got[0].Price)
	assert.Equal(t, 1.0, got[0].Beds)
	assert.Equal(t, 1.0, got[0].Baths)
	assert.Equal(t, 650, got[0].Sqft)
	assert.Equal(t, "https://example.com/some-tower-boston-ma/abc1", got[0].URL)

	assert.Equal(t, 3100, got[1].Price)
	assert.Equal(t, 2.0, got[1].Beds)
	assert.Equal(t, 1050, got[1].Sqft)

	// Amenities come from both sections, deduplicated, as one-hot slugs.
	want := []string{"Amenity_Fitness_Center", "Amenity_Elevator", "Amenity_Washer_Dryer"}
	assert.Equal(t, want, got[0].Amenities)
	assert.Equal(t, want, got[1].Amenities)
}

func TestParseProperty_NoFloorplans(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body><h1>Lot</h1></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, ParseProperty(doc, "https://example.com/lot-boston-ma/xyz"))
}
