package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geostyle/internal/classify"
	"github.com/joeblew999/geostyle/internal/controller"
	"github.com/joeblew999/geostyle/internal/layer"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/service"
	"github.com/joeblew999/geostyle/internal/settings"
	"github.com/joeblew999/geostyle/internal/style"
)

// StyleOutput is what the style command prints.
type StyleOutput struct {
	Features int                   `json:"features"`
	Skipped  int                   `json:"skipped"`
	Paint    map[string]style.Expr `json:"paint"`
	Legends  []style.LegendModel   `json:"legends"`
}

// styleFile runs a GeoJSON file through the controller against an in-memory
// map and returns the resulting circle paint.
func styleFile(path, settingsFile string, color, size []string) (StyleOutput, error) {
	s := settings.Default()
	if settingsFile != "" {
		loaded, err := settings.Load(settingsFile)
		if err != nil {
			return StyleOutput{}, err
		}
		s = loaded
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return StyleOutput{}, fmt.Errorf("read %q: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return StyleOutput{}, fmt.Errorf("parse %q: %w", path, err)
	}
	b := service.Binding{Color: color, Size: size}
	loaded := service.FromRows(service.GeoJSONRows(fc, b), b)

	m := mapengine.NewMemory(mapengine.WithBaseLayers(mapengine.BaseStyle()...))
	c := controller.New(m, controller.WithSettings(s))
	if err := c.MapLoaded(); err != nil {
		return StyleOutput{}, err
	}
	if err := c.Update(loaded.Features, loaded.Roles); err != nil {
		return StyleOutput{}, err
	}

	out := StyleOutput{Features: len(loaded.Features), Skipped: loaded.Skipped, Paint: map[string]style.Expr{}, Legends: c.Legends()}
	if l, ok := m.GetLayer(layer.CircleID); ok {
		for _, name := range []string{"circle-color", "circle-radius", "circle-opacity"} {
			if v, ok := l.Paint[name]; ok {
				out.Paint[name] = v
			}
		}
	}
	return out, nil
}

func breaksFor(args []string, method classify.Method, classes int) ([]float64, error) {
	values := make([]float64, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", a)
		}
		values = append(values, v)
	}
	if classes <= 0 {
		classes = classify.ClassCount(values)
	}
	return classify.Breaks(values, method, classes), nil
}
