package layer

import (
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geostyle/internal/datasource"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/palette"
	"github.com/joeblew999/geostyle/internal/rolemap"
	"github.com/joeblew999/geostyle/internal/settings"
	"github.com/joeblew999/geostyle/internal/style"
)

const (
	CircleID          = "circle"
	CircleHighlightID = "circle-highlight"
)

// Circle draws one circle per point, colored and sized from the bound
// fields, with a highlight sibling above it for selection and hover.
type Circle struct {
	base
	selection *Selection
	palette   *palette.Palette
	gen       *style.Generator

	mu       sync.Mutex
	settings settings.Circle
	maxSel   int
	stops    style.ColorStops
}

// NewCircle creates the circle layer over the point datasource.
func NewCircle(d Deps, src datasource.Datasource, sel *Selection, pal *palette.Palette) *Circle {
	if pal == nil {
		pal = palette.New(nil, palette.WithLogger(d.Log))
	}
	c := &Circle{
		base:      newBase(d, CircleID, []string{CircleHighlightID, CircleID}, src),
		selection: sel,
		palette:   pal,
		settings:  settings.Default().Circle,
		maxSel:    settings.DefaultMaxSelection,
	}
	c.gen = style.NewGenerator(c.log, d.Metrics.Fallback)
	return c
}

func (c *Circle) Index() int { return CircleIndex }

func (c *Circle) Visible(s settings.Settings) bool { return s.Circle.Show }

func (c *Circle) specs(lat string) func() map[string]mapengine.LayerSpec {
	return func() map[string]mapengine.LayerSpec {
		return map[string]mapengine.LayerSpec{
			CircleID: {ID: CircleID, Type: mapengine.TypeCircle, Source: datasource.PointSourceID},
			CircleHighlightID: {
				ID:     CircleHighlightID,
				Type:   mapengine.TypeCircle,
				Source: datasource.PointSourceID,
				Filter: noneFilter(lat),
			},
		}
	}
}

func (c *Circle) ApplySettings(s settings.Settings, roles rolemap.RoleMap, before string) error {
	cs := s.Circle
	c.mu.Lock()
	c.settings = cs
	c.maxSel = s.API.MaxSelection
	c.mu.Unlock()

	existed := c.Exists()
	visible, err := c.toggle(cs.Show, s, c.specs(roles.Latitude()), before)
	if err != nil || !visible {
		return err
	}
	if !existed {
		c.paint(CircleHighlightID, "circle-opacity", style.Number(1))
		c.paint(CircleHighlightID, "circle-stroke-width", style.Number(1))
		c.paint(CircleHighlightID, "circle-stroke-color", style.String("black"))
	}

	colorField, hasColor := roles.Color(cs.ColorField)
	isGradient := hasColor && colorField.Continuous()
	colorName := ""
	if hasColor {
		colorName = colorField.DisplayName
	}
	colorLimits := c.source.ColorLimits(cs.ColorField)
	ramp := palette.Ramp{Min: cs.MinColor, Mid: cs.MidColor, Max: cs.MaxColor}
	c.palette.SetOverrides(cs.CategoryColors)
	stops := c.gen.WindowedColorStops(isGradient, colorLimits, cs.ClassificationMethod, ramp, c.palette, cs.MinValue, cs.MaxValue)
	var groups []string
	if !isGradient {
		for _, st := range stops {
			groups = append(groups, st.Value.String())
		}
	}
	c.palette.SetGroups(groups)
	colorStyle := c.gen.ColorStyle(isGradient, colorName, stops, cs.MinColor)

	sizeName := ""
	if f, ok := roles.Get(rolemap.Size, cs.SizeField); ok {
		sizeName = f.DisplayName
	}
	sizes := c.gen.SizeStyle(c.source.SizeLimits(cs.SizeField), cs.Radius, cs.ScaleFactor, sizeName)

	c.mu.Lock()
	if colorName != "" {
		c.stops = stops
	} else {
		c.stops = nil
	}
	c.mu.Unlock()

	c.paint(CircleID, "circle-radius", sizes)
	c.paint(CircleHighlightID, "circle-radius", sizes)
	c.paint(CircleHighlightID, "circle-color", style.String(cs.HighlightColor))
	c.paint(CircleID, "circle-color", colorStyle)
	c.zoomRange(CircleID, cs.MinZoom, cs.MaxZoom)
	c.zoomRange(CircleHighlightID, cs.MinZoom, cs.MaxZoom)
	c.paint(CircleID, "circle-blur", percent(cs.Blur))
	c.paint(CircleID, "circle-opacity", style.Number(c.selection.Opacity(cs.Opacity)))
	c.paint(CircleID, "circle-stroke-width", style.Number(cs.StrokeWidth))
	c.paint(CircleID, "circle-stroke-opacity", percent(cs.StrokeOpacity))
	c.paint(CircleID, "circle-stroke-color", style.String(cs.StrokeColor))
	return nil
}

// UpdateSelection highlights at most the configured maximum of features,
// dropping the rest, and dims the main layer. It returns the selected prefix.
func (c *Circle) UpdateSelection(features []*geojson.Feature, roles rolemap.RoleMap) []*geojson.Feature {
	c.mu.Lock()
	limit, opacity := c.maxSel, c.settings.Opacity
	c.mu.Unlock()

	filter, selected := selectionFilter(features, roles.Latitude(), roles.Longitude(), limit)
	ids := make([]any, len(selected))
	for i, f := range selected {
		ids[i] = f.ID
	}
	c.selection.Set(ids)

	if c.Exists() {
		c.filter(CircleHighlightID, filter)
		c.paint(CircleID, "circle-opacity", style.Number(c.selection.Opacity(opacity)))
	}
	return selected
}

// RemoveHighlight resets the highlight to match nothing and restores the
// base opacity. The selection itself is left to the caller.
func (c *Circle) RemoveHighlight(roles rolemap.RoleMap) {
	if !c.Exists() {
		return
	}
	c.mu.Lock()
	opacity := c.settings.Opacity
	c.mu.Unlock()

	c.filter(CircleHighlightID, noneFilter(roles.Latitude()))
	c.paint(CircleID, "circle-opacity", percent(opacity))
}

// HoverHighlight highlights the circles at the coordinates of f.
func (c *Circle) HoverHighlight(f *geojson.Feature, roles rolemap.RoleMap) {
	if !c.Exists() {
		return
	}
	if filter, ok := pointFilter(f, roles.Latitude(), roles.Longitude()); ok {
		c.filter(CircleHighlightID, filter)
	}
}

// Legend describes the color stops of the last apply when the legend is on
// and a color field is bound.
func (c *Circle) Legend(s settings.Settings, roles rolemap.RoleMap) (style.LegendModel, bool) {
	if !s.Circle.Show || !s.Circle.Legend {
		return style.LegendModel{}, false
	}
	field, ok := roles.Color(s.Circle.ColorField)
	if !ok {
		return style.LegendModel{}, false
	}
	c.mu.Lock()
	stops := append(style.ColorStops(nil), c.stops...)
	c.mu.Unlock()
	if len(stops) == 0 {
		return style.LegendModel{}, false
	}
	return style.Legend(stops, field.DisplayName), true
}

// ColorStops returns the stops computed by the last apply.
func (c *Circle) ColorStops() style.ColorStops {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(style.ColorStops(nil), c.stops...)
}
