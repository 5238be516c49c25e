package style

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/joeblew999/geostyle/internal/classify"
	"github.com/joeblew999/geostyle/internal/limits"
	"github.com/joeblew999/geostyle/internal/palette"
)

// CategoryDefaultColor is the trailing default of a categorical match.
const CategoryDefaultColor = "rgba(255,0,0,255)"

// alternateDefaultColor replaces CategoryDefaultColor when a category
// already uses it.
const alternateDefaultColor = "rgba(0,0,0,0)"

// categoryDefault returns the first of CategoryDefaultColor,
// alternateDefaultColor or a derived opaque color that no category uses.
func categoryDefault(used map[string]struct{}) string {
	for _, c := range []string{CategoryDefaultColor, alternateDefaultColor} {
		if _, clash := used[c]; !clash {
			return c
		}
	}
	for i := 1; i < 1<<24; i++ {
		c := fmt.Sprintf("rgba(%d,%d,%d,255)", 255-(i>>16)&0xff, (i>>8)&0xff, i&0xff)
		if _, clash := used[c]; !clash {
			return c
		}
	}
	return CategoryDefaultColor
}

// Zoom levels of the zoom-only radius fallback.
const (
	minRadiusZoom = 0
	maxRadiusZoom = 18
)

// ColorStop pairs a break or category with its color.
type ColorStop struct {
	Value limits.Value `json:"value"`
	Color string       `json:"color"`
}

// ColorStops is ordered exactly as it is fed into the color expression.
type ColorStops []ColorStop

// Generator builds color and size expressions. Construction failures are
// logged and degrade to constant or zoom-only styles.
type Generator struct {
	log        zerolog.Logger
	onFallback func(reason string)
}

// NewGenerator returns a Generator that logs to l and reports fallbacks to
// onFallback when it is not nil.
func NewGenerator(l zerolog.Logger, onFallback func(reason string)) *Generator {
	return &Generator{log: l, onFallback: onFallback}
}

var defaultGenerator = NewGenerator(zerolog.Nop(), nil)

func (g *Generator) fallback(reason string, err error) {
	if err != nil {
		g.log.Warn().Err(err).Str("reason", reason).Msg("style fallback")
	} else {
		g.log.Debug().Str("reason", reason).Msg("style fallback")
	}
	if g.onFallback != nil {
		g.onFallback(reason)
	}
}

// FilterValues keeps values inside the optional [lo, hi] window.
func FilterValues(values []float64, lo, hi *float64) []float64 {
	if lo == nil && hi == nil {
		return values
	}
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if lo != nil && v < *lo {
			continue
		}
		if hi != nil && v > *hi {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ColorStops pairs the domain with colors. Gradient domains are classified
// with method and colored from ramp; categorical domains get one stop per
// distinct value colored by pal.
func (g *Generator) ColorStops(isGradient bool, l limits.Limits, method classify.Method, ramp palette.Ramp, pal *palette.Palette) ColorStops {
	return g.colorStops(isGradient, l.Numbers(), l, method, ramp, pal)
}

// WindowedColorStops is ColorStops with the gradient domain limited to [lo, hi].
func (g *Generator) WindowedColorStops(isGradient bool, l limits.Limits, method classify.Method, ramp palette.Ramp, pal *palette.Palette, lo, hi *float64) ColorStops {
	return g.colorStops(isGradient, FilterValues(l.Numbers(), lo, hi), l, method, ramp, pal)
}

func (g *Generator) colorStops(isGradient bool, numbers []float64, l limits.Limits, method classify.Method, ramp palette.Ramp, pal *palette.Palette) ColorStops {
	if !isGradient {
		if pal == nil {
			pal = palette.New(nil)
		}
		stops := make(ColorStops, 0, len(l.Values))
		for _, v := range l.Values {
			stops = append(stops, ColorStop{Value: v, Color: pal.Color(v.String())})
		}
		return stops
	}

	breaks := classify.Breaks(numbers, method, classify.ClassCount(numbers))
	if len(breaks) == 0 {
		g.fallback("no-breaks", nil)
		return ColorStops{}
	}
	colors, err := ramp.Colors(len(breaks))
	if err != nil {
		g.fallback("ramp", err)
		return ColorStops{}
	}
	stops := make(ColorStops, 0, len(breaks))
	for i, b := range breaks {
		if i > 0 && b == breaks[i-1] {
			continue
		}
		stops = append(stops, ColorStop{Value: limits.Number(b), Color: colors[i]})
	}
	return stops
}

// ColorStyle builds the color expression for field.
//
// With no field the fallback color is returned as a constant. Gradient stops
// are passed through in the given order and must ascend. Categorical stops
// become match cases followed by a default distinct from every case color.
func (g *Generator) ColorStyle(isGradient bool, field string, stops ColorStops, fallback string) Expr {
	if field == "" {
		return String(fallback)
	}
	if len(stops) == 0 {
		g.fallback("no-color-stops", nil)
		return String(fallback)
	}

	if isGradient {
		ramp := make([]Stop, 0, len(stops))
		for _, s := range stops {
			f, ok := s.Value.Float()
			if !ok {
				g.fallback("non-numeric-stop", &ExprError{Op: "interpolate", Reason: "stop " + s.Value.String() + " is not a number"})
				return String(fallback)
			}
			ramp = append(ramp, Stop{Input: f, Output: String(s.Color)})
		}
		expr, err := NewInterpolate(Linear(), ToNumber{Input: Get{Property: field}}, ramp...)
		if err != nil {
			g.fallback("interpolate", err)
			return String(fallback)
		}
		return expr
	}

	cases := make([]Case, 0, len(stops))
	seen := make(map[string]struct{}, len(stops))
	used := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		label := s.Value.String()
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		used[s.Color] = struct{}{}
		cases = append(cases, Case{Label: label, Output: String(s.Color)})
	}
	def := categoryDefault(used)
	expr, err := NewMatch(ToString{Input: Get{Property: field}}, String(def), cases...)
	if err != nil {
		g.fallback("match", err)
		return String(fallback)
	}
	return expr
}

// SizeStyle builds the circle radius expression.
//
// Without a usable size field the radius grows with zoom from baseRadius at
// zoom 0 to baseRadius*scaleFactor at zoom 18. Otherwise radii are spread
// linearly over quantile breaks of the size values.
func (g *Generator) SizeStyle(l limits.Limits, baseRadius, scaleFactor float64, field string) Expr {
	if field == "" || l.Degenerate() {
		return g.zoomRadius(baseRadius, scaleFactor)
	}

	numbers := l.Numbers()
	classCount := classify.ClassCount(numbers)
	if classCount <= 0 {
		g.fallback("size-class-count", nil)
		return g.zoomRadius(baseRadius, scaleFactor)
	}
	breaks := classify.Breaks(numbers, classify.Quantile, classCount)
	delta := (baseRadius*scaleFactor - baseRadius) / float64(classCount)

	stops := make([]Stop, 0, len(breaks))
	for i, b := range breaks {
		if i > 0 && b == breaks[i-1] {
			continue
		}
		stops = append(stops, Stop{Input: b, Output: Number(baseRadius + float64(i)*delta)})
	}
	expr, err := NewInterpolate(Linear(), ToNumber{Input: Get{Property: field}}, stops...)
	if err != nil {
		g.fallback("size-interpolate", err)
		return g.zoomRadius(baseRadius, scaleFactor)
	}
	return expr
}

func (g *Generator) zoomRadius(baseRadius, scaleFactor float64) Expr {
	expr, err := NewInterpolate(Linear(), Zoom{},
		Stop{Input: minRadiusZoom, Output: Number(baseRadius)},
		Stop{Input: maxRadiusZoom, Output: Number(baseRadius * scaleFactor)},
	)
	if err != nil {
		return Number(baseRadius)
	}
	return expr
}

// HeatmapRadius grows the kernel radius exponentially with zoom.
func HeatmapRadius(radius float64) Expr {
	expr, err := NewInterpolate(Exponential(1.2), Zoom{},
		Stop{Input: 0, Output: Number(radius)},
		Stop{Input: 14, Output: Number(radius * 25)},
	)
	if err != nil {
		return Number(radius)
	}
	return expr
}

// HeatmapColor ramps density from transparent through min, mid and max.
func HeatmapColor(minColor, midColor, maxColor string) Expr {
	expr, err := NewInterpolate(Linear(), HeatmapDensity{},
		Stop{Input: 0, Output: String("rgba(0, 0, 255, 0)")},
		Stop{Input: 0.1, Output: String(minColor)},
		Stop{Input: 0.5, Output: String(midColor)},
		Stop{Input: 1, Output: String(maxColor)},
	)
	if err != nil {
		return String(maxColor)
	}
	return expr
}

// ColorStyle builds a color expression without logging.
func ColorStyle(isGradient bool, field string, stops ColorStops, fallback string) Expr {
	return defaultGenerator.ColorStyle(isGradient, field, stops, fallback)
}

// SizeStyle builds a radius expression without logging.
func SizeStyle(l limits.Limits, baseRadius, scaleFactor float64, field string) Expr {
	return defaultGenerator.SizeStyle(l, baseRadius, scaleFactor, field)
}
