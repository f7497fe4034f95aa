package selector

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bure-project/bure/internal/model"
)

type fakeMarker struct {
	style Style
}

func (m *fakeMarker) SetStyle(s Style) { m.style = s }

type fakeSurface struct {
	initCalls    int
	initErr      error
	tileLayers   int
	markers      map[string]*fakeMarker
	invalidated  atomic.Int32
	markerErrFor string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{markers: make(map[string]*fakeMarker)}
}

func (f *fakeSurface) Init(center LatLng, zoom int) error {
	f.initCalls++
	return f.initErr
}

func (f *fakeSurface) AddTileLayer(url, attribution string) { f.tileLayers++ }

func (f *fakeSurface) AddMarker(code string, at LatLng, s Style) (Marker, error) {
	if code == f.markerErrFor {
		return nil, eris.New("marker rejected")
	}
	m := &fakeMarker{style: s}
	f.markers[code] = m
	return m, nil
}

func (f *fakeSurface) InvalidateSize() { f.invalidated.Add(1) }

type fakeHost struct {
	visiblePanel Mode
	modeField    Mode
	listClears   int
	fields       map[string][]string
	fieldWrites  int
}

func newFakeHost() *fakeHost {
	return &fakeHost{fields: make(map[string][]string)}
}

func (h *fakeHost) ShowPanel(m Mode)    { h.visiblePanel = m }
func (h *fakeHost) SetModeField(m Mode) { h.modeField = m }
func (h *fakeHost) ClearListChecks()    { h.listClears++ }

func (h *fakeHost) ReplaceHiddenFields(name string, values []string) {
	h.fieldWrites++
	h.fields[name] = values
}

func syncSchedule(d time.Duration, fn func()) { fn() }

func testDistricts() []model.District {
	return []model.District{
		{Code: "allston", Name: "Allston", Lat: 42.3539, Lon: -71.1337},
		{Code: "brighton", Name: "Brighton", Lat: 42.3464, Lon: -71.1627},
		{Code: "fenway", Name: "Fenway", Lat: 42.3429, Lon: -71.1003},
		{Code: "back_bay", Name: "Back Bay", Lat: 42.3503, Lon: -71.0810},
	}
}

func newTestSelector(t *testing.T) (*Selector, *fakeHost, *fakeSurface) {
	t.Helper()
	host := newFakeHost()
	surface := newFakeSurface()
	s := New(Config{
		Districts: testDistricts(),
		Center:    LatLng{Lat: 42.3601, Lon: -71.0589},
		Zoom:      13,
		TileURL:   "/tiles/{z}/{x}/{y}.png",
		Host:      host,
		Surface:   surface,
		Schedule:  syncSchedule,
	})
	require.False(t, s.Inert())
	return s, host, surface
}

func TestNew_StartsInListMode(t *testing.T) {
	s, host, surface := newTestSelector(t)

	assert.Equal(t, ModeList, s.Mode())
	assert.Equal(t, ModeList, host.visiblePanel)
	assert.Equal(t, ModeList, host.modeField)
	assert.Zero(t, surface.initCalls)
}

func TestNew_MissingHostIsInert(t *testing.T) {
	s := New(Config{Districts: testDistricts()})
	assert.True(t, s.Inert())

	// Every operation is a no-op rather than a panic.
	s.SetMode(ModeMap)
	s.Toggle("allston")
	s.SyncHiddenFields()
	assert.Empty(t, s.Selected())
	assert.Equal(t, ModeList, s.Mode())
}

func TestSetMode_MapInitializesSurfaceOnce(t *testing.T) {
	s, _, surface := newTestSelector(t)

	s.SetMode(ModeMap)
	s.SetMode(ModeMap)

	assert.Equal(t, 1, surface.initCalls)
	assert.Equal(t, 1, surface.tileLayers)
	assert.Len(t, surface.markers, 4)
	// Deferred refresh fired once per entry.
	assert.Equal(t, int32(2), surface.invalidated.Load())
}

func TestSetMode_MapAfterListReuse(t *testing.T) {
	s, _, surface := newTestSelector(t)

	s.SetMode(ModeMap)
	s.SetMode(ModeList)
	s.SetMode(ModeMap)

	assert.Equal(t, 1, surface.initCalls)
	assert.Len(t, surface.markers, 4)
}

func TestSetMode_InitFailureRetriesNextEntry(t *testing.T) {
	s, _, surface := newTestSelector(t)
	surface.initErr = eris.New("container not ready")

	s.SetMode(ModeMap)
	assert.Empty(t, surface.markers)

	surface.initErr = nil
	s.SetMode(ModeList)
	s.SetMode(ModeMap)
	assert.Equal(t, 2, surface.initCalls)
	assert.Len(t, surface.markers, 4)
}

func TestSetMode_NilSurfaceStillShowsPanel(t *testing.T) {
	host := newFakeHost()
	s := New(Config{
		Districts: testDistricts(),
		Host:      host,
		Schedule:  syncSchedule,
	})

	s.SetMode(ModeMap)

	assert.Equal(t, ModeMap, s.Mode())
	assert.Equal(t, ModeMap, host.visiblePanel)
	// Toggles are ignored without markers.
	s.Toggle("allston")
	assert.Empty(t, s.Selected())
}

func TestSetMode_ClearsListChecksBothDirections(t *testing.T) {
	s, host, _ := newTestSelector(t)

	s.SetMode(ModeMap)
	s.SetMode(ModeList)

	assert.Equal(t, 2, host.listClears)
}

func TestSetMode_UnknownModeIgnored(t *testing.T) {
	s, host, _ := newTestSelector(t)
	s.SetMode(ModeMap)

	s.SetMode(Mode("satellite"))

	assert.Equal(t, ModeMap, s.Mode())
	assert.Equal(t, ModeMap, host.visiblePanel)
}

func TestToggle_Involution(t *testing.T) {
	s, host, surface := newTestSelector(t)
	s.SetMode(ModeMap)

	s.Toggle("allston")
	assert.True(t, s.IsSelected("allston"))
	assert.Equal(t, SelectedStyle, surface.markers["allston"].style)
	assert.Equal(t, []string{"allston"}, host.fields[FieldName])

	s.Toggle("allston")
	assert.False(t, s.IsSelected("allston"))
	assert.Equal(t, DefaultStyle, surface.markers["allston"].style)
	assert.Empty(t, host.fields[FieldName])
}

func TestToggle_UnknownCodeIsNoop(t *testing.T) {
	s, host, _ := newTestSelector(t)
	s.SetMode(ModeMap)
	writes := host.fieldWrites

	s.Toggle("southie")

	assert.Empty(t, s.Selected())
	assert.Equal(t, writes, host.fieldWrites)
}

func TestHiddenFields_MatchSelectionSet(t *testing.T) {
	s, host, _ := newTestSelector(t)
	s.SetMode(ModeMap)

	s.Toggle("allston")
	s.Toggle("fenway")
	assert.ElementsMatch(t, []string{"allston", "fenway"}, host.fields[FieldName])

	s.Toggle("allston")
	assert.Equal(t, []string{"fenway"}, host.fields[FieldName])
	assert.Equal(t, s.Selected(), host.fields[FieldName])
}

func TestSetModeList_ClearsEverything(t *testing.T) {
	s, host, surface := newTestSelector(t)
	s.SetMode(ModeMap)
	s.Toggle("allston")
	s.Toggle("back_bay")

	s.SetMode(ModeList)

	assert.Empty(t, s.Selected())
	assert.Empty(t, host.fields[FieldName])
	for code, m := range surface.markers {
		assert.Equal(t, DefaultStyle, m.style, "marker %s", code)
	}
	assert.Equal(t, ModeList, host.visiblePanel)
	assert.Equal(t, ModeList, host.modeField)
}

func TestModeFieldTracksVisiblePanel(t *testing.T) {
	s, host, _ := newTestSelector(t)

	for _, m := range []Mode{ModeMap, ModeList, ModeMap, ModeMap, ModeList} {
		s.SetMode(m)
		assert.Equal(t, s.Mode(), host.visiblePanel)
		assert.Equal(t, s.Mode(), host.modeField)
	}
}

func TestAddMarkerFailure_SkipsCode(t *testing.T) {
	host := newFakeHost()
	surface := newFakeSurface()
	surface.markerErrFor = "fenway"
	s := New(Config{
		Districts: testDistricts(),
		Host:      host,
		Surface:   surface,
		Schedule:  syncSchedule,
	})

	s.SetMode(ModeMap)
	assert.Len(t, surface.markers, 3)

	// The failed code behaves like an unregistered one.
	s.Toggle("fenway")
	assert.Empty(t, s.Selected())
}

func TestScenario_MapSelectionRoundTrip(t *testing.T) {
	s, host, surface := newTestSelector(t)

	s.SetMode(ModeMap)
	require.Len(t, surface.markers, 4)
	for _, m := range surface.markers {
		assert.Equal(t, DefaultStyle, m.style)
	}

	s.Toggle("allston")
	assert.Equal(t, []string{"allston"}, host.fields[FieldName])

	s.Toggle("fenway")
	assert.ElementsMatch(t, []string{"allston", "fenway"}, host.fields[FieldName])

	s.Toggle("allston")
	assert.Equal(t, []string{"fenway"}, host.fields[FieldName])
	assert.Equal(t, DefaultStyle, surface.markers["allston"].style)
	assert.Equal(t, SelectedStyle, surface.markers["fenway"].style)

	s.SetMode(ModeList)
	assert.Empty(t, host.fields[FieldName])
	assert.Equal(t, DefaultStyle, surface.markers["fenway"].style)
}

func TestDefaultScheduleDefersRefresh(t *testing.T) {
	host := newFakeHost()
	surface := newFakeSurface()
	s := New(Config{
		Districts:    testDistricts(),
		Host:         host,
		Surface:      surface,
		RefreshDelay: time.Millisecond,
	})

	s.SetMode(ModeMap)
	assert.Eventually(t, func() bool { return surface.invalidated.Load() == 1 },
		time.Second, 5*time.Millisecond)
}
