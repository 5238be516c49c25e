package controller

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geostyle/internal/layer"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/rolemap"
	"github.com/joeblew999/geostyle/internal/service"
	"github.com/joeblew999/geostyle/internal/settings"
)

func testRoles() rolemap.RoleMap {
	return rolemap.New([]rolemap.Column{
		{DisplayName: "lat", Roles: []string{rolemap.Latitude}},
		{DisplayName: "lon", Roles: []string{rolemap.Longitude}},
		{DisplayName: "value", Roles: []string{rolemap.Color, rolemap.Size}, Aggregates: &rolemap.Aggregates{}},
	})
}

func testFeatures(n int, scale float64) []*geojson.Feature {
	out := make([]*geojson.Feature, n)
	for i := range out {
		lon, lat := float64(i), float64(i)
		f := geojson.NewFeature(orb.Point{lon, lat})
		f.ID = i
		f.Properties["lat"] = lat
		f.Properties["lon"] = lon
		f.Properties["value"] = float64(i) * scale
		out[i] = f
	}
	return out
}

func allVisible() settings.Settings {
	s := settings.Default()
	s.Heatmap.Show = true
	s.Raster.Show = true
	s.Raster.URL = "https://tiles.example.com/{z}/{x}/{y}.png"
	return s
}

func newReady(t *testing.T, s settings.Settings, opts ...Option) (*Controller, *mapengine.Memory) {
	t.Helper()
	m := mapengine.NewMemory(mapengine.WithBaseLayers(mapengine.BaseStyle()...))
	c := New(m, append(opts, WithSettings(s))...)
	require.NoError(t, c.MapLoaded())
	return c, m
}

func TestController_DefersUntilMapLoaded(t *testing.T) {
	m := mapengine.NewMemory(mapengine.WithBaseLayers(mapengine.BaseStyle()...))
	c := New(m)

	first := settings.Default()
	first.Circle.Show = false
	require.NoError(t, c.ApplySettings(first))
	require.NoError(t, c.Update(testFeatures(4, 1), testRoles()))
	latest := settings.Default()
	latest.Heatmap.Show = true
	require.NoError(t, c.ApplySettings(latest))

	assert.Empty(t, m.Ops(), "nothing reaches the engine before the map is loaded")
	assert.False(t, c.Ready())

	require.NoError(t, c.MapLoaded())

	assert.True(t, c.Ready())
	_, circle := m.GetLayer(layer.CircleID)
	_, heatmap := m.GetLayer(layer.HeatmapID)
	assert.True(t, circle, "the latest snapshot wins")
	assert.True(t, heatmap)
	assert.Equal(t, 1, m.Count(mapengine.OpSetData))

	require.NoError(t, c.MapLoaded())
	assert.Equal(t, 1, m.Count(mapengine.OpSetData), "a second load event is ignored")
}

func TestController_StackingOrderAndIdempotentReorder(t *testing.T) {
	c, m := newReady(t, allVisible())

	assert.Equal(t,
		[]string{"background", "water", "road", "heatmap", "circle", "circle-highlight", "raster", "waterway-label", "place-label"},
		m.LayerIDs())

	m.ResetOps()
	c.Reorder()
	assert.Zero(t, m.Count(mapengine.OpMoveLayer))
	c.Reorder()
	assert.Zero(t, m.Count(mapengine.OpMoveLayer))
}

func TestController_ReorderRepairsDisplacedLayers(t *testing.T) {
	c, m := newReady(t, allVisible())
	require.NoError(t, m.MoveLayer(layer.HeatmapID, ""))

	m.ResetOps()
	c.Reorder()
	assert.Positive(t, m.Count(mapengine.OpMoveLayer))
	assert.Equal(t,
		[]string{"background", "water", "road", "heatmap", "circle", "circle-highlight", "raster", "waterway-label", "place-label"},
		m.LayerIDs())

	m.ResetOps()
	c.Reorder()
	assert.Zero(t, m.Count(mapengine.OpMoveLayer))
}

func TestController_LabelsBelowStacksOnTop(t *testing.T) {
	s := allVisible()
	s.API.LabelPosition = settings.LabelsBelow
	_, m := newReady(t, s)

	assert.Equal(t,
		[]string{"background", "water", "road", "waterway-label", "place-label", "heatmap", "circle", "circle-highlight", "raster"},
		m.LayerIDs())
}

func TestController_RestyleIsConvergent(t *testing.T) {
	s := allVisible()
	c, m := newReady(t, s)
	require.NoError(t, c.Update(testFeatures(5, 1), testRoles()))
	before := m.Snapshot()

	m.ResetOps()
	require.NoError(t, c.ApplySettings(s))
	require.NoError(t, c.ApplySettings(s))

	assert.Zero(t, m.Count(mapengine.OpAddLayer))
	assert.Zero(t, m.Count(mapengine.OpRemoveLayer))
	assert.Zero(t, m.Count(mapengine.OpMoveLayer))
	assert.Equal(t, before.Layers, m.Snapshot().Layers)
}

func TestController_SharedSourceReferenceCounting(t *testing.T) {
	s := allVisible()
	s.Raster.Show = false
	c, m := newReady(t, s)
	require.NoError(t, c.Update(testFeatures(3, 1), testRoles()))

	s.Circle.Show = false
	require.NoError(t, c.ApplySettings(s))
	_, ok := m.GetSource("data")
	assert.True(t, ok, "heatmap still depends on the point source")
	assert.Zero(t, m.Count(mapengine.OpRemoveSource))

	s.Heatmap.Show = false
	require.NoError(t, c.ApplySettings(s))
	_, ok = m.GetSource("data")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Count(mapengine.OpRemoveSource))

	s.Circle.Show = true
	require.NoError(t, c.ApplySettings(s))
	_, ok = m.GetSource("data")
	assert.True(t, ok, "showing a layer recreates the source")
}

func TestController_DataWhileHiddenReachesShownLayer(t *testing.T) {
	hidden := settings.Default()
	hidden.Circle.Show = false
	c, m := newReady(t, hidden)

	require.NoError(t, c.Update(testFeatures(8, 1), testRoles()))
	_, ok := m.GetSource("data")
	assert.False(t, ok)
	assert.Zero(t, m.Count(mapengine.OpSetData))

	require.NoError(t, c.ApplySettings(settings.Default()))

	assert.Equal(t, 1, m.Count(mapengine.OpSetData))
	assert.Len(t, c.point.Features(), 8)
	l, ok := m.GetLayer(layer.CircleID)
	require.True(t, ok)
	color, err := l.Paint["circle-color"].MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(color), `["to-number",["get","value"]],0,`)

	m.ResetOps()
	require.NoError(t, c.ApplySettings(settings.Default()))
	assert.Zero(t, m.Count(mapengine.OpSetData), "a current source is not refreshed again")
}

func TestController_UpdateRecomputesStyles(t *testing.T) {
	c, m := newReady(t, settings.Default())

	require.NoError(t, c.Update(testFeatures(3, 1), testRoles()))
	l, _ := m.GetLayer(layer.CircleID)
	first, err := l.Paint["circle-color"].MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(first), `["to-number",["get","value"]],0,`)
	assert.Contains(t, string(first), `,2,`)

	require.NoError(t, c.Update(testFeatures(3, 100), testRoles()))
	l, _ = m.GetLayer(layer.CircleID)
	second, err := l.Paint["circle-color"].MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(second), `,200,`)
}

func TestController_SelectionCap(t *testing.T) {
	s := settings.Default()
	s.API.MaxSelection = 3
	c, m := newReady(t, s)
	features := testFeatures(10, 1)
	require.NoError(t, c.Update(features, testRoles()))

	selected := c.UpdateSelection(features)

	assert.Equal(t, features[:3], selected)
	assert.Len(t, c.Selected(), 3)
	hl, _ := m.GetLayer(layer.CircleHighlightID)
	data, err := hl.Filter.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t,
		`["any",["all",["==","lat",0],["==","lon",0]],["all",["==","lat",1],["==","lon",1]],["all",["==","lat",2],["==","lon",2]]]`,
		string(data))

	c.RemoveHighlight()
	assert.Empty(t, c.Selected())
	hl, _ = m.GetLayer(layer.CircleHighlightID)
	data, _ = hl.Filter.MarshalJSON()
	assert.JSONEq(t, `["==","lat",""]`, string(data))
}

func TestController_SelectBox(t *testing.T) {
	c, _ := newReady(t, settings.Default())
	features := testFeatures(10, 1)
	require.NoError(t, c.Update(features, testRoles()))

	got := c.SelectBox(orb.Bound{Min: orb.Point{2, 2}, Max: orb.Point{4, 4}})

	assert.Equal(t, features[2:5], got)
}

func TestController_SelectIDs(t *testing.T) {
	c, _ := newReady(t, settings.Default())
	features := testFeatures(5, 1)
	require.NoError(t, c.Update(features, testRoles()))

	got := c.SelectIDs([]any{float64(3), 1, "missing"})

	assert.Equal(t, []*geojson.Feature{features[1], features[3]}, got)
	f, ok := c.Feature(float64(4))
	require.True(t, ok)
	assert.Same(t, features[4], f)
}

func TestController_LegendsAndBounds(t *testing.T) {
	c, _ := newReady(t, settings.Default())
	_, ok := c.Bounds()
	assert.False(t, ok)

	require.NoError(t, c.Update(testFeatures(4, 1), testRoles()))

	legends := c.Legends()
	require.Len(t, legends, 1)
	assert.Equal(t, "value", legends[0].Title)

	b, ok := c.Bounds()
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{3, 3}}, b)
}

func TestController_State(t *testing.T) {
	c, _ := newReady(t, allVisible())
	require.NoError(t, c.Update(testFeatures(2, 1), testRoles()))

	st := c.State()
	assert.True(t, st.Ready)
	assert.Equal(t, 2, st.Features)
	require.Len(t, st.Layers, 3)
	assert.Equal(t, []string{layer.RasterID, layer.CircleID, layer.HeatmapID},
		[]string{st.Layers[0].ID, st.Layers[1].ID, st.Layers[2].ID})
	assert.Equal(t, []string{layer.CircleHighlightID, layer.CircleID}, st.Layers[1].SubLayers)
	require.Len(t, st.Sources, 2)
	assert.Equal(t, []string{layer.CircleID, layer.HeatmapID}, st.Sources[0].Holders)
	assert.True(t, st.Sources[1].Active)
	assert.Equal(t, allVisible().Fingerprint(), st.Fingerprint)
}

func TestController_RejectsInvalidSettings(t *testing.T) {
	c, _ := newReady(t, settings.Default())
	bad := settings.Default()
	bad.Circle.Radius = -1

	assert.Error(t, c.ApplySettings(bad))
	assert.Equal(t, settings.Default(), c.Settings())
}

func TestController_PublishesEvents(t *testing.T) {
	bus := service.NewEventBus()
	ch := bus.Subscribe()
	m := mapengine.NewMemory()
	c := New(m, WithEventBus(bus))

	require.NoError(t, c.MapLoaded())

	ready := <-ch
	assert.Equal(t, service.Event{Resource: service.ResourceMap, Action: service.ActionReady}, ready)
	added := <-ch
	assert.Equal(t, service.Event{Resource: service.ResourceLayer, Action: service.ActionAdded, ID: layer.CircleID}, added)
}
