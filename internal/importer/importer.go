// Package importer loads listing exports (CSV or XLSX, one row per
// floorplan with amenity one-hot columns) into the store.
package importer

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/bure-project/bure/internal/model"
	"github.com/bure-project/bure/internal/scraper"
	"github.com/bure-project/bure/internal/store"
)

// Core export columns. Every other column is treated as an amenity flag.
const (
	colURL   = "listing_url"
	colPrice = "price"
	colBeds  = "beds"
	colBaths = "baths"
	colSqft  = "sqft"
)

// Result summarizes one import.
type Result struct {
	Rows     int   `json:"rows"`
	Imported int64 `json:"imported"`
	Skipped  int   `json:"skipped"`
}

// Importer writes export rows into the listing store.
type Importer struct {
	store store.Store
}

func New(st store.Store) *Importer {
	return &Importer{store: st}
}

// ImportCSV loads a one-row-per-floorplan CSV export. Every listing lands
// in the given district.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader, district string) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "importer: read csv header")
	}

	var rows [][]string
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "importer: context cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "importer: read csv row")
		}
		rows = append(rows, record)
	}

	return im.importRows(ctx, header, rows, district)
}

// ImportXLSX loads the same export format from a spreadsheet. SheetIndex 0
// is read.
func (im *Importer) ImportXLSX(ctx context.Context, path, district string) (*Result, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("importer: xlsx has no sheets")
	}

	var header []string
	var rows [][]string
	for i, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if i == 0 {
			header = cells
			continue
		}
		rows = append(rows, cells)
	}
	if header == nil {
		return nil, eris.New("importer: xlsx sheet is empty")
	}

	return im.importRows(ctx, header, rows, district)
}

func (im *Importer) importRows(ctx context.Context, header []string, rows [][]string, district string) (*Result, error) {
	cols := make(map[string]int, len(header))
	var amenityCols []int
	for i, name := range header {
		name = strings.TrimSpace(name)
		cols[name] = i
		if model.IsAmenityFeature(name) {
			amenityCols = append(amenityCols, i)
		}
	}
	if _, ok := cols[colURL]; !ok {
		return nil, eris.Errorf("importer: export is missing the %s column", colURL)
	}
	if _, ok := cols[colPrice]; !ok {
		return nil, eris.Errorf("importer: export is missing the %s column", colPrice)
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	now := time.Now().UTC()
	res := &Result{Rows: len(rows)}
	var listings []model.Listing
	for _, row := range rows {
		price, ok := parsePrice(cell(row, colPrice))
		if !ok {
			res.Skipped++
			continue
		}

		l := model.Listing{
			URL:       cell(row, colURL),
			District:  district,
			Price:     price,
			ScrapedAt: now,
		}
		if l.URL == "" {
			res.Skipped++
			continue
		}
		l.Beds, _ = strconv.ParseFloat(cell(row, colBeds), 64)
		l.Baths, _ = strconv.ParseFloat(cell(row, colBaths), 64)
		if sqft, ok := parseSqft(cell(row, colSqft)); ok {
			l.Sqft = sqft
		}
		for _, i := range amenityCols {
			if i < len(row) && isTruthy(strings.TrimSpace(row[i])) {
				l.Amenities = append(l.Amenities, strings.TrimSpace(header[i]))
			}
		}
		listings = append(listings, l)
	}

	if len(listings) == 0 {
		return res, eris.New("importer: no importable rows")
	}

	n, err := im.store.BulkUpsertListings(ctx, listings)
	if err != nil {
		return nil, eris.Wrap(err, "importer: upsert listings")
	}
	res.Imported = n

	zap.L().Info("import complete",
		zap.String("district", district),
		zap.Int("rows", res.Rows),
		zap.Int64("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// parsePrice accepts both plain integers and formatted amounts.
func parsePrice(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return int(f), true
	}
	return scraper.ParsePrice(s)
}

func parseSqft(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return int(f), true
	}
	return scraper.ParseSqft(s)
}

func isTruthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "1.0", "true", "yes":
		return true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f > 0
	}
	return false
}
