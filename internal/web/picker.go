package web

import (
	"sort"
	"sync"
	"time"

	"github.com/bure-project/bure/internal/selector"
)

// markerView is the server-side handle for one district marker. Style
// changes made by the picker are what API clients render.
type markerView struct {
	At    selector.LatLng
	Style selector.Style
}

func (m *markerView) SetStyle(st selector.Style) { m.Style = st }

// pickerSurface implements selector.Surface for a browser-less session: it
// records the map state a client-side renderer would reproduce.
type pickerSurface struct {
	ready         bool
	center        selector.LatLng
	zoom          int
	tileURL       string
	attribution   string
	markers       map[string]*markerView
	invalidations int
}

func (s *pickerSurface) Init(center selector.LatLng, zoom int) error {
	s.ready = true
	s.center = center
	s.zoom = zoom
	s.markers = make(map[string]*markerView)
	return nil
}

func (s *pickerSurface) AddTileLayer(urlTemplate, attribution string) {
	s.tileURL = urlTemplate
	s.attribution = attribution
}

func (s *pickerSurface) AddMarker(code string, at selector.LatLng, st selector.Style) (selector.Marker, error) {
	m := &markerView{At: at, Style: st}
	s.markers[code] = m
	return m, nil
}

func (s *pickerSurface) InvalidateSize() { s.invalidations++ }

// pickerHost implements selector.Host; it holds the anchor state the picker
// drives so the view endpoint can report it.
type pickerHost struct {
	panel        selector.Mode
	modeField    selector.Mode
	hiddenFields map[string][]string
}

func (h *pickerHost) ShowPanel(m selector.Mode) { h.panel = m }

func (h *pickerHost) SetModeField(m selector.Mode) { h.modeField = m }

func (h *pickerHost) ClearListChecks() {}

func (h *pickerHost) ReplaceHiddenFields(name string, values []string) {
	if h.hiddenFields == nil {
		h.hiddenFields = make(map[string][]string)
	}
	h.hiddenFields[name] = values
}

// MarkerState is one marker in a picker view.
type MarkerState struct {
	Code     string          `json:"code"`
	At       selector.LatLng `json:"at"`
	Style    selector.Style  `json:"style"`
	Selected bool            `json:"selected"`
}

// MapState describes the initialized map surface of a session.
type MapState struct {
	Center        selector.LatLng `json:"center"`
	Zoom          int             `json:"zoom"`
	TileURL       string          `json:"tile_url"`
	Attribution   string          `json:"attribution"`
	Markers       []MarkerState   `json:"markers"`
	Invalidations int             `json:"invalidations"`
}

// PickerView is the JSON snapshot of one picker session.
type PickerView struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	Panel     string    `json:"panel"`
	Locations []string  `json:"locations"`
	Map       *MapState `json:"map,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Session is one picker instance. All selector access goes through the
// session mutex; the selector itself is not goroutine safe.
type Session struct {
	ID string

	mu       sync.Mutex
	sel      *selector.Selector
	host     *pickerHost
	surface  *pickerSurface
	lastSeen time.Time
}

// SetMode switches the session's input mode. Unknown modes are rejected
// before they reach the picker.
func (s *Session) SetMode(mode string) error {
	m := selector.Mode(mode)
	if m != selector.ModeList && m != selector.ModeMap {
		return errUnknownMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.SetMode(m)
	return nil
}

// Toggle flips one district in the session's selection set.
func (s *Session) Toggle(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.Toggle(code)
}

// Selected returns the session's selection in sorted order.
func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Selected()
}

// View snapshots the session for the API.
func (s *Session) View(ttl time.Duration) PickerView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := PickerView{
		ID:        s.ID,
		Mode:      string(s.sel.Mode()),
		Panel:     string(s.host.panel),
		Locations: s.host.hiddenFields[selector.FieldName],
		ExpiresAt: s.lastSeen.Add(ttl),
	}
	if v.Locations == nil {
		v.Locations = []string{}
	}

	if s.surface.ready {
		ms := &MapState{
			Center:        s.surface.center,
			Zoom:          s.surface.zoom,
			TileURL:       s.surface.tileURL,
			Attribution:   s.surface.attribution,
			Invalidations: s.surface.invalidations,
		}
		codes := make([]string, 0, len(s.surface.markers))
		for code := range s.surface.markers {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			m := s.surface.markers[code]
			ms.Markers = append(ms.Markers, MarkerState{
				Code:     code,
				At:       m.At,
				Style:    m.Style,
				Selected: s.sel.IsSelected(code),
			})
		}
		v.Map = ms
	}
	return v
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}
