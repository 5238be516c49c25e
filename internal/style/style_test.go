package style

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geostyle/internal/classify"
	"github.com/joeblew999/geostyle/internal/limits"
	"github.com/joeblew999/geostyle/internal/palette"
)

func mustJSON(t *testing.T, e Expr) string {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	return string(data)
}

func ptr(f float64) *float64 { return &f }

func testLogger() zerolog.Logger { return zerolog.Nop() }

func TestColorStyle_NoFieldIsConstant(t *testing.T) {
	stops := ColorStops{{Value: limits.Number(1), Color: "#000000"}}

	got := ColorStyle(false, "", stops, "#ff0000")

	assert.Equal(t, String("#ff0000"), got)
	assert.Equal(t, `"#ff0000"`, mustJSON(t, got))
}

func TestColorStyle_Gradient(t *testing.T) {
	stops := ColorStops{
		{Value: limits.Number(0), Color: "#ffffff"},
		{Value: limits.Number(50), Color: "#888888"},
		{Value: limits.Number(100), Color: "#000000"},
	}

	got := ColorStyle(true, "pop", stops, "#ff0000")

	assert.JSONEq(t,
		`["interpolate",["linear"],["to-number",["get","pop"]],0,"#ffffff",50,"#888888",100,"#000000"]`,
		mustJSON(t, got))
}

func TestColorStyle_GradientOutOfOrderFallsBack(t *testing.T) {
	stops := ColorStops{
		{Value: limits.Number(10), Color: "#ffffff"},
		{Value: limits.Number(5), Color: "#000000"},
	}

	var reasons []string
	g := NewGenerator(testLogger(), func(r string) { reasons = append(reasons, r) })

	assert.Equal(t, String("#ff0000"), g.ColorStyle(true, "pop", stops, "#ff0000"))
	assert.Equal(t, []string{"interpolate"}, reasons)
}

func TestColorStyle_Categorical(t *testing.T) {
	stops := ColorStops{
		{Value: limits.String("a"), Color: "#111111"},
		{Value: limits.String("b"), Color: "#222222"},
	}

	got := ColorStyle(false, "kind", stops, "#ff0000")

	assert.JSONEq(t,
		`["match",["to-string",["get","kind"]],"a","#111111","b","#222222","rgba(255,0,0,255)"]`,
		mustJSON(t, got))
}

func TestColorStyle_CategoricalDefaultIsDistinct(t *testing.T) {
	stops := ColorStops{
		{Value: limits.String("a"), Color: CategoryDefaultColor},
		{Value: limits.Number(1), Color: "#222222"},
		{Value: limits.String("1"), Color: "#333333"},
	}

	got := ColorStyle(false, "kind", stops, "#ff0000")

	m, ok := got.(Match)
	require.True(t, ok)
	require.Len(t, m.Cases(), 2, "labels that stringify alike collapse")
	def := m.Default().(Literal).Value()
	for _, c := range m.Cases() {
		assert.NotEqual(t, c.Output.(Literal).Value(), def)
	}
}

func TestColorStyle_CategoricalDefaultSkipsEveryUsedColor(t *testing.T) {
	stops := ColorStops{
		{Value: limits.String("a"), Color: CategoryDefaultColor},
		{Value: limits.String("b"), Color: "rgba(0,0,0,0)"},
		{Value: limits.String("c"), Color: "rgba(255,0,1,255)"},
	}

	got := ColorStyle(false, "kind", stops, "#ff0000")

	assert.JSONEq(t,
		`["match",["to-string",["get","kind"]],"a","rgba(255,0,0,255)","b","rgba(0,0,0,0)","c","rgba(255,0,1,255)","rgba(255,0,2,255)"]`,
		mustJSON(t, got))
}

func TestSizeStyle_ZoomFallback(t *testing.T) {
	want := `["interpolate",["linear"],["zoom"],0,4,18,12]`

	assert.JSONEq(t, want, mustJSON(t, SizeStyle(limits.Zero(), 4, 3, "size")))
	l := limits.Compute(limits.Rows{{"s": 1}, {"s": 9}}, "s")
	assert.JSONEq(t, want, mustJSON(t, SizeStyle(l, 4, 3, "")))
}

func TestSizeStyle_ZeroClassCountFallsBack(t *testing.T) {
	// Single distinct value: non-degenerate after the min fix-up, but no classes.
	l := limits.Compute(limits.Rows{{"s": 3}, {"s": 3}}, "s")
	require.False(t, l.Degenerate())

	got := SizeStyle(l, 2, 5, "s")

	assert.JSONEq(t, `["interpolate",["linear"],["zoom"],0,2,18,10]`, mustJSON(t, got))
}

func TestSizeStyle_Quantile(t *testing.T) {
	l := limits.Compute(limits.Rows{{"s": 0}, {"s": 10}, {"s": 20}}, "s")

	got := SizeStyle(l, 2, 3, "s")

	assert.JSONEq(t,
		`["interpolate",["linear"],["to-number",["get","s"]],0,2,10,4,20,6]`,
		mustJSON(t, got))
}

func TestGenerator_GradientColorStops(t *testing.T) {
	l := limits.Compute(limits.Rows{{"v": 0}, {"v": 10}, {"v": 20}, {"v": 30}}, "v")
	ramp := palette.Ramp{Min: "#ffffff", Mid: "#808080", Max: "#000000"}

	stops := NewGenerator(testLogger(), nil).ColorStops(true, l, classify.Equidistant, ramp, nil)

	require.Len(t, stops, 4)
	assert.Equal(t, limits.Number(0), stops[0].Value)
	assert.Equal(t, limits.Number(30), stops[3].Value)
	assert.Equal(t, "#ffffff", stops[0].Color)
	assert.Equal(t, "#000000", stops[3].Color)
}

func TestGenerator_WindowedColorStops(t *testing.T) {
	l := limits.Compute(limits.Rows{{"v": 0}, {"v": 10}, {"v": 20}, {"v": 1000}}, "v")
	ramp := palette.Ramp{Min: "#ffffff", Max: "#000000"}

	stops := NewGenerator(testLogger(), nil).WindowedColorStops(true, l, classify.Equidistant, ramp, nil, nil, ptr(20))

	require.Len(t, stops, 3)
	assert.Equal(t, limits.Number(20), stops[2].Value)
}

func TestGenerator_CategoricalColorStops(t *testing.T) {
	l := limits.Compute(limits.Rows{{"c": "x"}, {"c": "y"}, {"c": "x"}}, "c")
	pal := palette.New(nil)

	stops := NewGenerator(testLogger(), nil).ColorStops(false, l, classify.Quantile, palette.Ramp{}, pal)

	assert.Equal(t, ColorStops{
		{Value: limits.String("x"), Color: palette.Qualitative[0]},
		{Value: limits.String("y"), Color: palette.Qualitative[1]},
	}, stops)
}

func TestGenerator_NoBreaksGivesNoStops(t *testing.T) {
	l := limits.Compute(limits.Rows{{"v": 5}}, "v")
	stops := NewGenerator(testLogger(), nil).ColorStops(true, l, classify.Quantile, palette.Ramp{Min: "#fff"}, nil)
	assert.Empty(t, stops)
	assert.Equal(t, String("#abcdef"), ColorStyle(true, "v", stops, "#abcdef"))
}

func TestHeatmapExpressions(t *testing.T) {
	assert.JSONEq(t, `["interpolate",["exponential",1.2],["zoom"],0,2,14,50]`, mustJSON(t, HeatmapRadius(2)))
	assert.JSONEq(t,
		`["interpolate",["linear"],["heatmap-density"],0,"rgba(0, 0, 255, 0)",0.1,"#a",0.5,"#b",1,"#c"]`,
		mustJSON(t, HeatmapColor("#a", "#b", "#c")))
}

func TestConstructorsRejectMalformedInput(t *testing.T) {
	_, err := NewInterpolate(Linear(), Zoom{})
	assert.Error(t, err)

	_, err = NewInterpolate(Linear(), Zoom{}, Stop{Input: 1, Output: Number(1)}, Stop{Input: 1, Output: Number(2)})
	var exprErr *ExprError
	require.ErrorAs(t, err, &exprErr)
	assert.Equal(t, "interpolate", exprErr.Op)

	_, err = NewMatch(Get{Property: "x"}, String("#000"))
	assert.Error(t, err)

	_, err = NewMatch(Get{Property: "x"}, nil, Case{Label: "a", Output: String("#fff")})
	assert.Error(t, err)

	_, err = NewMatch(Get{Property: "x"}, String("#000"),
		Case{Label: "a", Output: String("#fff")}, Case{Label: "a", Output: String("#eee")})
	assert.Error(t, err)
}

func TestFilters(t *testing.T) {
	f := Any{All{Eq{Property: "lat", Value: 1.5}, Eq{Property: "lon", Value: 2.5}}}
	assert.JSONEq(t, `["any",["all",["==","lat",1.5],["==","lon",2.5]]]`, mustJSON(t, f))
	assert.JSONEq(t, `["any"]`, mustJSON(t, Any{}))
}

func TestLegend(t *testing.T) {
	stops := ColorStops{
		{Value: limits.Number(1.23456), Color: "#111111"},
		{Value: limits.String("b"), Color: "#222222"},
	}

	got := Legend(stops, "Population")

	assert.Equal(t, LegendModel{
		Title: "Population",
		Items: []LegendItem{{Label: "1.23", Color: "#111111"}, {Label: "b", Color: "#222222"}},
	}, got)
}
