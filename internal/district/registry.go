// Package district holds the neighborhood registry and the spatial lookup
// used to assign listings to a district.
package district

import (
	_ "embed"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/bure-project/bure/internal/model"
)

//go:embed districts.yaml
var seedYAML []byte

const (
	rtreeDims        = 2
	rtreeMinChildren = 2
	rtreeMaxChildren = 8
	pointTolerance   = 0.0001
)

// districtPoint adapts a district centroid to the rtreego.Spatial interface.
type districtPoint struct {
	code string
	rect *rtreego.Rect
}

func (p *districtPoint) Bounds() *rtreego.Rect { return p.rect }

// Registry is the set of known districts with a centroid R-tree for
// nearest-district queries. Boundaries are optional and enable exact
// point-in-polygon assignment.
type Registry struct {
	byCode     map[string]model.District
	order      []string
	tree       *rtreego.Rtree
	boundaries map[string]*Boundary
}

// NewRegistry builds a registry from the embedded district seed.
func NewRegistry() (*Registry, error) {
	var seed struct {
		Districts []model.District `yaml:"districts"`
	}
	if err := yaml.Unmarshal(seedYAML, &seed); err != nil {
		return nil, eris.Wrap(err, "district: parse embedded seed")
	}
	return NewRegistryFrom(seed.Districts)
}

// NewRegistryFrom builds a registry from an explicit district list.
func NewRegistryFrom(districts []model.District) (*Registry, error) {
	if len(districts) == 0 {
		return nil, eris.New("district: no districts configured")
	}

	r := &Registry{
		byCode:     make(map[string]model.District, len(districts)),
		tree:       rtreego.NewTree(rtreeDims, rtreeMinChildren, rtreeMaxChildren),
		boundaries: make(map[string]*Boundary),
	}
	for _, d := range districts {
		if d.Code == "" {
			return nil, eris.New("district: district with empty code")
		}
		if _, dup := r.byCode[d.Code]; dup {
			return nil, eris.Errorf("district: duplicate code %s", d.Code)
		}
		r.byCode[d.Code] = d
		r.order = append(r.order, d.Code)

		rect := rtreego.Point{d.Lon, d.Lat}.ToRect(pointTolerance)
		r.tree.Insert(&districtPoint{code: d.Code, rect: rect})
	}
	sort.Strings(r.order)
	return r, nil
}

// Get returns the district for a code.
func (r *Registry) Get(code string) (model.District, bool) {
	d, ok := r.byCode[code]
	return d, ok
}

// All returns every district sorted by code.
func (r *Registry) All() []model.District {
	out := make([]model.District, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.byCode[code])
	}
	return out
}

// Codes returns the sorted district codes.
func (r *Registry) Codes() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Nearest returns the district whose centroid is closest to the point.
func (r *Registry) Nearest(lat, lon float64) (model.District, bool) {
	obj := r.tree.NearestNeighbor(rtreego.Point{lon, lat})
	if obj == nil {
		return model.District{}, false
	}
	p, ok := obj.(*districtPoint)
	if !ok {
		return model.District{}, false
	}
	return r.byCode[p.code], true
}

// Locate assigns a point to a district: boundary containment first when
// boundaries are loaded, nearest centroid otherwise.
func (r *Registry) Locate(lat, lon float64) (model.District, bool) {
	for code, b := range r.boundaries {
		if b.Contains(lat, lon) {
			return r.byCode[code], true
		}
	}
	return r.Nearest(lat, lon)
}

// SetBoundary attaches a polygon boundary to a known district code.
func (r *Registry) SetBoundary(code string, b *Boundary) error {
	if _, ok := r.byCode[code]; !ok {
		return eris.Errorf("district: unknown code %s", code)
	}
	r.boundaries[code] = b
	return nil
}

// HasBoundaries reports whether any polygon boundaries are loaded.
func (r *Registry) HasBoundaries() bool { return len(r.boundaries) > 0 }
