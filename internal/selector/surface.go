package selector

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Style is the visual record applied to a district marker.
type Style struct {
	Radius       int     `json:"radius"`
	StrokeColor  string  `json:"stroke_color"`
	StrokeWeight int     `json:"stroke_weight"`
	FillColor    string  `json:"fill_color"`
	FillOpacity  float64 `json:"fill_opacity"`
}

// The two marker variants. Membership in the selection set decides which one
// a marker wears.
var (
	DefaultStyle = Style{
		Radius:       9,
		StrokeColor:  "#2c7fb8",
		StrokeWeight: 2,
		FillColor:    "#7fcdbb",
		FillOpacity:  0.45,
	}
	SelectedStyle = Style{
		Radius:       11,
		StrokeColor:  "#d7301f",
		StrokeWeight: 3,
		FillColor:    "#fc8d59",
		FillOpacity:  0.8,
	}
)

// Marker is the handle for one district's map point.
type Marker interface {
	SetStyle(Style)
}

// Surface is the capability slice of the mapping collaborator the selector
// depends on: bind to a container, add a tile layer, place stylable circular
// markers, and recompute layout size. Nothing else of the mapping library
// leaks into the component.
type Surface interface {
	Init(center LatLng, zoom int) error
	AddTileLayer(urlTemplate, attribution string)
	AddMarker(code string, at LatLng, s Style) (Marker, error)
	InvalidateSize()
}

// Host abstracts the page anchors the selector drives: the panel containers,
// the active-mode form field, the list-mode checkbox widgets, and the
// hidden-field container the selector fully owns. Implementations treat a
// missing individual anchor as a no-op.
type Host interface {
	ShowPanel(Mode)
	SetModeField(Mode)
	ClearListChecks()
	ReplaceHiddenFields(name string, values []string)
}
