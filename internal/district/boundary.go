package district

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Boundary is a district's polygon outline in lon/lat order.
type Boundary struct {
	poly *geom.Polygon
}

// NewBoundary wraps a polygon. Returns an error when the polygon has no
// exterior ring.
func NewBoundary(poly *geom.Polygon) (*Boundary, error) {
	if poly == nil || poly.NumLinearRings() == 0 {
		return nil, eris.New("district: boundary polygon has no exterior ring")
	}
	return &Boundary{poly: poly}, nil
}

// Contains reports whether the point falls inside the exterior ring,
// using a bounding-box reject followed by a ray cast. go-geom carries the
// geometry types but no planar point-in-polygon predicate, so the cast is
// done here.
func (b *Boundary) Contains(lat, lon float64) bool {
	bounds := b.poly.Bounds()
	if lon < bounds.Min(0) || lon > bounds.Max(0) || lat < bounds.Min(1) || lat > bounds.Max(1) {
		return false
	}

	ring := b.poly.LinearRing(0).Coords()
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// LoadBoundaries reads district polygons from a shapefile and attaches them
// to matching registry codes. The attribute named by codeField supplies the
// district code; names are slugified the same way seed codes are written
// (lowercase, spaces to underscores). Unmatched shapes are skipped.
func LoadBoundaries(r *Registry, shpPath, codeField string) (int, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return 0, eris.Wrapf(err, "district: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := -1
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, codeField) {
			fieldIdx = i
			break
		}
	}
	if fieldIdx < 0 {
		return 0, eris.Errorf("district: shapefile has no %q attribute", codeField)
	}

	var loaded, skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || len(poly.Points) == 0 {
			skipped++
			continue
		}

		code := slugify(strings.TrimRight(reader.Attribute(fieldIdx), "\x00"))
		if _, known := r.Get(code); !known {
			skipped++
			continue
		}

		b, err := NewBoundary(polygonFromShape(poly))
		if err != nil {
			skipped++
			continue
		}
		if err := r.SetBoundary(code, b); err != nil {
			skipped++
			continue
		}
		loaded++
	}

	if skipped > 0 {
		zap.L().Debug("district: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	return loaded, nil
}

// polygonFromShape converts the first part of a shapefile polygon into a
// go-geom polygon. Holes and additional parts are not carried; Contains only
// consults the exterior ring.
func polygonFromShape(p *shp.Polygon) *geom.Polygon {
	end := len(p.Points)
	if len(p.Parts) > 1 {
		end = int(p.Parts[1])
	}
	coords := make([]geom.Coord, 0, end)
	for _, pt := range p.Points[:end] {
		coords = append(coords, geom.Coord{pt.X, pt.Y})
	}
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{coords})
}

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}
