package layer

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geostyle/internal/classify"
	"github.com/joeblew999/geostyle/internal/datasource"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/palette"
	"github.com/joeblew999/geostyle/internal/rolemap"
	"github.com/joeblew999/geostyle/internal/settings"
	"github.com/joeblew999/geostyle/internal/style"
)

type fixture struct {
	m       *mapengine.Memory
	point   *datasource.Point
	sel     *Selection
	circle  *Circle
	heatmap *Heatmap
	roles   rolemap.RoleMap
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := mapengine.NewMemory(mapengine.WithBaseLayers(mapengine.BaseStyle()...))
	d := Deps{Map: m, Log: zerolog.Nop()}
	p := datasource.NewPoint()
	sel := &Selection{}
	return &fixture{
		m:       m,
		point:   p,
		sel:     sel,
		circle:  NewCircle(d, p, sel, nil),
		heatmap: NewHeatmap(d, p),
		roles: rolemap.New([]rolemap.Column{
			{DisplayName: "lat", Roles: []string{rolemap.Latitude}},
			{DisplayName: "lon", Roles: []string{rolemap.Longitude}},
			{DisplayName: "pop", Roles: []string{rolemap.Color}, Aggregates: &rolemap.Aggregates{}},
		}),
	}
}

func features(n int) []*geojson.Feature {
	out := make([]*geojson.Feature, n)
	for i := range out {
		lon, lat := float64(i), float64(i)/2
		f := geojson.NewFeature(orb.Point{lon, lat})
		f.ID = i
		f.Properties["lat"] = lat
		f.Properties["lon"] = lon
		f.Properties["pop"] = float64(i * 10)
		out[i] = f
	}
	return out
}

func (fx *fixture) load(t *testing.T, s settings.Settings, n int) {
	t.Helper()
	require.NoError(t, fx.point.Ensure(fx.m, "loader", s))
	fx.point.Update(fx.m, features(n), fx.roles)
}

func exprJSON(t *testing.T, e style.Expr) string {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	return string(data)
}

func TestCircle_ShowAddsSubLayersBelowLabels(t *testing.T) {
	fx := newFixture(t)
	s := settings.Default()
	fx.load(t, s, 4)

	require.NoError(t, fx.circle.ApplySettings(s, fx.roles, "waterway-label"))

	assert.Equal(t,
		[]string{"background", "water", "road", "circle", "circle-highlight", "waterway-label", "place-label"},
		fx.m.LayerIDs())
	assert.True(t, fx.circle.Exists())
	assert.Contains(t, fx.point.Holders(), CircleID)

	main, _ := fx.m.GetLayer(CircleID)
	var color []any
	require.NoError(t, json.Unmarshal([]byte(exprJSON(t, main.Paint["circle-color"])), &color))
	require.Len(t, color, 3+2*4)
	assert.Equal(t, "interpolate", color[0])
	assert.Equal(t, []any{0.0, 10.0, 20.0, 30.0}, []any{color[3], color[5], color[7], color[9]})
	assert.Equal(t, style.Number(0.8), main.Paint["circle-opacity"])

	hl, _ := fx.m.GetLayer(CircleHighlightID)
	assert.JSONEq(t, `["==","lat",""]`, exprJSON(t, hl.Filter))
	assert.Equal(t, style.String("#000000"), hl.Paint["circle-color"])
}

func TestCircle_RestyleDoesNotReAdd(t *testing.T) {
	fx := newFixture(t)
	s := settings.Default()
	fx.load(t, s, 4)
	require.NoError(t, fx.circle.ApplySettings(s, fx.roles, ""))
	fx.m.ResetOps()

	s.Circle.Opacity = 40
	require.NoError(t, fx.circle.ApplySettings(s, fx.roles, ""))

	assert.Zero(t, fx.m.Count(mapengine.OpAddLayer))
	assert.Zero(t, fx.m.Count(mapengine.OpRemoveLayer))
	main, _ := fx.m.GetLayer(CircleID)
	assert.Equal(t, style.Number(0.4), main.Paint["circle-opacity"])
}

func TestCircle_HideRemovesAndReleases(t *testing.T) {
	fx := newFixture(t)
	s := settings.Default()
	require.NoError(t, fx.circle.ApplySettings(s, fx.roles, ""))
	require.NoError(t, fx.heatmap.ApplySettings(func() settings.Settings { s2 := s; s2.Heatmap.Show = true; return s2 }(), fx.roles, ""))
	require.Equal(t, []string{CircleID, HeatmapID}, fx.point.Holders())

	s.Circle.Show = false
	require.NoError(t, fx.circle.ApplySettings(s, fx.roles, ""))
	assert.False(t, fx.circle.Exists())
	assert.True(t, fx.point.Active(fx.m), "heatmap still holds the source")

	require.NoError(t, fx.heatmap.ApplySettings(s, fx.roles, ""))
	assert.False(t, fx.point.Active(fx.m))
	assert.Equal(t, 1, fx.m.Count(mapengine.OpRemoveSource))
}

func TestCircle_NoColorFieldIsConstant(t *testing.T) {
	fx := newFixture(t)
	fx.roles = rolemap.New([]rolemap.Column{{DisplayName: "lat", Roles: []string{rolemap.Latitude}}})
	s := settings.Default()
	fx.load(t, s, 3)

	require.NoError(t, fx.circle.ApplySettings(s, fx.roles, ""))

	main, _ := fx.m.GetLayer(CircleID)
	assert.Equal(t, style.String(s.Circle.MinColor), main.Paint["circle-color"])
	assert.JSONEq(t, `["interpolate",["linear"],["zoom"],0,3,18,15]`, exprJSON(t, main.Paint["circle-radius"]))
	_, ok := fx.circle.Legend(s, fx.roles)
	assert.False(t, ok)
}

func TestCircle_SelectionCap(t *testing.T) {
	fx := newFixture(t)
	s := settings.Default()
	s.API.MaxSelection = 2
	fx.load(t, s, 5)
	require.NoError(t, fx.circle.ApplySettings(s, fx.roles, ""))

	all := features(5)
	selected := fx.circle.UpdateSelection(all, fx.roles)

	assert.Equal(t, all[:2], selected)
	assert.Equal(t, []any{0, 1}, fx.sel.IDs())
	hl, _ := fx.m.GetLayer(CircleHighlightID)
	assert.JSONEq(t,
		`["any",["all",["==","lat",0],["==","lon",0]],["all",["==","lat",0.5],["==","lon",1]]]`,
		exprJSON(t, hl.Filter))
	main, _ := fx.m.GetLayer(CircleID)
	assert.Equal(t, style.Number(0.4), main.Paint["circle-opacity"])

	fx.sel.Clear()
	fx.circle.RemoveHighlight(fx.roles)
	hl, _ = fx.m.GetLayer(CircleHighlightID)
	assert.JSONEq(t, `["==","lat",""]`, exprJSON(t, hl.Filter))
	main, _ = fx.m.GetLayer(CircleID)
	assert.Equal(t, style.Number(0.8), main.Paint["circle-opacity"])
}

func TestCircle_HoverHighlight(t *testing.T) {
	fx := newFixture(t)
	s := settings.Default()
	fx.load(t, s, 3)
	require.NoError(t, fx.circle.ApplySettings(s, fx.roles, ""))

	fx.circle.HoverHighlight(features(3)[2], fx.roles)
	hl, _ := fx.m.GetLayer(CircleHighlightID)
	assert.JSONEq(t, `["all",["==","lat",1],["==","lon",2]]`, exprJSON(t, hl.Filter))

	fx.circle.HoverHighlight(geojson.NewFeature(orb.Point{0, 0}), fx.roles)
	hl2, _ := fx.m.GetLayer(CircleHighlightID)
	assert.Equal(t, hl.Filter, hl2.Filter, "features without coordinates are ignored")
}

func TestCircle_CategoryColorsArePinned(t *testing.T) {
	fx := newFixture(t)
	pal := palette.New(nil)
	fx.circle = NewCircle(Deps{Map: fx.m, Log: zerolog.Nop()}, fx.point, fx.sel, pal)
	fx.roles = rolemap.New([]rolemap.Column{
		{DisplayName: "lat", Roles: []string{rolemap.Latitude}},
		{DisplayName: "lon", Roles: []string{rolemap.Longitude}},
		{DisplayName: "kind", Roles: []string{rolemap.Color}},
	})
	fs := features(3)
	for i, kind := range []string{"a", "b", "a"} {
		fs[i].Properties["kind"] = kind
	}
	s := settings.Default()
	s.Circle.CategoryColors = map[string]string{"b": "#123456"}
	require.NoError(t, fx.point.Ensure(fx.m, "loader", s))
	fx.point.Update(fx.m, fs, fx.roles)

	require.NoError(t, fx.circle.ApplySettings(s, fx.roles, ""))

	main, _ := fx.m.GetLayer(CircleID)
	assert.Contains(t, exprJSON(t, main.Paint["circle-color"]), `"b","#123456"`)
	assert.Equal(t, []palette.Group{
		{Name: "a", Color: palette.Qualitative[0]},
		{Name: "b", Color: "#123456"},
	}, pal.Groups())

	s.Circle.CategoryColors = nil
	require.NoError(t, fx.circle.ApplySettings(s, fx.roles, ""))
	main, _ = fx.m.GetLayer(CircleID)
	assert.NotContains(t, exprJSON(t, main.Paint["circle-color"]), "#123456")
}

func TestCircle_Legend(t *testing.T) {
	fx := newFixture(t)
	s := settings.Default()
	s.Circle.ClassificationMethod = classify.Equidistant
	fx.load(t, s, 3)
	require.NoError(t, fx.circle.ApplySettings(s, fx.roles, ""))

	legend, ok := fx.circle.Legend(s, fx.roles)
	require.True(t, ok)
	assert.Equal(t, "pop", legend.Title)
	require.Len(t, legend.Items, 3)
	assert.Equal(t, "0", legend.Items[0].Label)
	assert.Equal(t, "20", legend.Items[2].Label)

	s.Circle.Legend = false
	_, ok = fx.circle.Legend(s, fx.roles)
	assert.False(t, ok)
}

func TestHeatmap_Paint(t *testing.T) {
	fx := newFixture(t)
	s := settings.Default()
	s.Heatmap.Show = true
	require.NoError(t, fx.heatmap.ApplySettings(s, fx.roles, ""))

	l, ok := fx.m.GetLayer(HeatmapID)
	require.True(t, ok)
	assert.JSONEq(t, `["interpolate",["exponential",1.2],["zoom"],0,5,14,125]`, exprJSON(t, l.Paint["heatmap-radius"]))
	assert.Equal(t, style.Number(1), l.Paint["heatmap-opacity"])
	assert.Equal(t, style.Number(1), l.Paint["heatmap-intensity"])
	_, legend := fx.heatmap.Legend(s, fx.roles)
	assert.False(t, legend)
}

func TestRaster_ShowAndHide(t *testing.T) {
	m := mapengine.NewMemory()
	r := NewRaster(Deps{Map: m, Log: zerolog.Nop()}, datasource.NewRaster())
	s := settings.Default()
	s.Raster.Show = true
	s.Raster.URL = "https://tiles.example.com/{z}/{x}/{y}.png"
	s.Raster.Opacity = 50

	require.NoError(t, r.ApplySettings(s, rolemap.RoleMap{}, ""))
	l, ok := m.GetLayer(RasterID)
	require.True(t, ok)
	assert.Equal(t, style.Number(0.5), l.Paint["raster-opacity"])

	s.Raster.Show = false
	require.NoError(t, r.ApplySettings(s, rolemap.RoleMap{}, ""))
	assert.Empty(t, m.LayerIDs())
	_, ok = m.GetSource(datasource.RasterSourceID)
	assert.False(t, ok)
}

func TestMove_SkipsLayersAlreadyInPlace(t *testing.T) {
	fx := newFixture(t)
	s := settings.Default()
	require.NoError(t, fx.circle.ApplySettings(s, fx.roles, ""))
	fx.m.ResetOps()

	last := fx.circle.Move("")
	assert.Equal(t, CircleID, last)
	assert.Zero(t, fx.m.Count(mapengine.OpMoveLayer))

	last = fx.circle.Move("waterway-label")
	assert.Equal(t, CircleID, last)
	assert.Equal(t, 2, fx.m.Count(mapengine.OpMoveLayer))
	assert.Equal(t,
		[]string{"background", "water", "road", "circle", "circle-highlight", "waterway-label", "place-label"},
		fx.m.LayerIDs())

	fx.circle.Move("waterway-label")
	assert.Equal(t, 2, fx.m.Count(mapengine.OpMoveLayer))
}

func TestEngineErrorsAreIgnored(t *testing.T) {
	fx := newFixture(t)
	assert.NotPanics(t, func() {
		fx.circle.Move("")
		fx.circle.RemoveHighlight(fx.roles)
		fx.circle.UpdateSelection(features(2), fx.roles)
	})
	assert.Equal(t, 2, fx.sel.Len())
}
