// Package selector implements the list/map location picker state machine:
// a selection set of district codes, a marker registry, hidden form fields
// kept in sync with the selection, and the mode toggle between the two
// input panels.
package selector

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/bure-project/bure/internal/model"
)

// FieldName is the form field carrying each selected district code. Both
// input modes submit under the same name so the server reads one field set.
const FieldName = "locations"

// Mode identifies which input panel is active.
type Mode string

const (
	ModeList Mode = "list"
	ModeMap  Mode = "map"
)

// DefaultRefreshDelay is how long after entering map mode the deferred
// surface size refresh fires. The surface is created while its container is
// hidden, so the refresh must land after the layout that makes it visible.
const DefaultRefreshDelay = 150 * time.Millisecond

// ScheduleFunc defers fn by roughly d. The default implementation wraps
// time.AfterFunc; tests inject a synchronous version.
type ScheduleFunc func(d time.Duration, fn func())

// Config wires a Selector to its collaborators.
type Config struct {
	Districts       []model.District
	Center          LatLng
	Zoom            int
	TileURL         string
	TileAttribution string

	// Host provides the page anchors (panels, mode field, list checkboxes,
	// hidden-field container). A nil Host makes the selector inert: every
	// method becomes a no-op so the component is safe to construct on pages
	// without the picker markup.
	Host Host

	// Surface is the mapping collaborator. Nil means the mapping library is
	// unavailable; map mode still shows its panel but places no markers.
	Surface Surface

	Schedule     ScheduleFunc
	RefreshDelay time.Duration
}

// Selector owns the picker state. The selection set is the single source of
// truth; marker styles and hidden fields are derived from it.
type Selector struct {
	host    Host
	surface Surface

	districts []model.District
	center    LatLng
	zoom      int
	tileURL   string
	tileAttr  string

	schedule     ScheduleFunc
	refreshDelay time.Duration

	mode         Mode
	selected     map[string]struct{}
	markers      map[string]Marker
	surfaceReady bool
	inert        bool
}

// New constructs a Selector in list mode. A nil cfg.Host yields an inert
// selector rather than an error.
func New(cfg Config) *Selector {
	if cfg.Host == nil {
		zap.L().Debug("selector: host anchors missing, picker disabled")
		return &Selector{inert: true}
	}

	s := &Selector{
		host:         cfg.Host,
		surface:      cfg.Surface,
		districts:    cfg.Districts,
		center:       cfg.Center,
		zoom:         cfg.Zoom,
		tileURL:      cfg.TileURL,
		tileAttr:     cfg.TileAttribution,
		schedule:     cfg.Schedule,
		refreshDelay: cfg.RefreshDelay,
		mode:         ModeList,
		selected:     make(map[string]struct{}),
		markers:      make(map[string]Marker),
	}
	if s.schedule == nil {
		s.schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	if s.refreshDelay <= 0 {
		s.refreshDelay = DefaultRefreshDelay
	}

	s.host.SetModeField(ModeList)
	s.host.ShowPanel(ModeList)
	return s
}

// Mode returns the active input mode.
func (s *Selector) Mode() Mode {
	if s.inert {
		return ModeList
	}
	return s.mode
}

// Inert reports whether the selector was constructed without its anchors.
func (s *Selector) Inert() bool { return s.inert }

// SetMode switches the active panel. Entering list mode clears the map
// selection entirely; entering map mode initializes the surface once and
// schedules a deferred size refresh.
func (s *Selector) SetMode(m Mode) {
	if s.inert {
		return
	}
	if m != ModeList && m != ModeMap {
		zap.L().Warn("selector: ignoring unknown mode", zap.String("mode", string(m)))
		return
	}

	s.mode = m
	s.host.SetModeField(m)
	s.host.ShowPanel(m)
	s.host.ClearListChecks()

	switch m {
	case ModeList:
		s.clearSelection()
	case ModeMap:
		s.ensureSurface()
		if s.surface != nil {
			surface := s.surface
			s.schedule(s.refreshDelay, surface.InvalidateSize)
		}
	}
}

// Toggle flips membership of code in the selection set and restyles its
// marker. Toggling twice restores the original state. Codes without a
// registered marker are ignored.
func (s *Selector) Toggle(code string) {
	if s.inert {
		return
	}
	marker, ok := s.markers[code]
	if !ok {
		zap.L().Warn("selector: toggle for unregistered location", zap.String("code", code))
		return
	}

	if _, on := s.selected[code]; on {
		delete(s.selected, code)
		marker.SetStyle(DefaultStyle)
	} else {
		s.selected[code] = struct{}{}
		marker.SetStyle(SelectedStyle)
	}
	s.SyncHiddenFields()
}

// IsSelected reports membership of code in the selection set.
func (s *Selector) IsSelected(code string) bool {
	if s.inert {
		return false
	}
	_, ok := s.selected[code]
	return ok
}

// Selected returns the selection set in sorted order.
func (s *Selector) Selected() []string {
	if s.inert {
		return nil
	}
	out := make([]string, 0, len(s.selected))
	for code := range s.selected {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// SyncHiddenFields rewrites the hidden-field container to exactly one field
// per selected code, all under FieldName. The host absorbs a missing
// container as a no-op.
func (s *Selector) SyncHiddenFields() {
	if s.inert {
		return
	}
	s.host.ReplaceHiddenFields(FieldName, s.Selected())
}

// clearSelection empties the selection set, resets every registered marker
// to the default style, and clears the hidden fields.
func (s *Selector) clearSelection() {
	for code := range s.selected {
		delete(s.selected, code)
	}
	for _, m := range s.markers {
		m.SetStyle(DefaultStyle)
	}
	s.SyncHiddenFields()
}

// ensureSurface lazily creates the map surface and one marker per district.
// Safe to call repeatedly; a failed init is retried on the next entry into
// map mode.
func (s *Selector) ensureSurface() {
	if s.surfaceReady {
		return
	}
	if s.surface == nil {
		zap.L().Debug("selector: map surface unavailable, skipping init")
		return
	}

	if err := s.surface.Init(s.center, s.zoom); err != nil {
		zap.L().Warn("selector: map surface init failed", zap.Error(err))
		return
	}
	s.surface.AddTileLayer(s.tileURL, s.tileAttr)

	clear(s.markers)
	for _, d := range s.districts {
		m, err := s.surface.AddMarker(d.Code, LatLng{Lat: d.Lat, Lon: d.Lon}, DefaultStyle)
		if err != nil {
			zap.L().Warn("selector: add marker failed",
				zap.String("code", d.Code),
				zap.Error(err),
			)
			continue
		}
		s.markers[d.Code] = m
	}
	s.surfaceReady = true
}
