// Package settings holds the immutable visual settings snapshot applied to
// the map on every apply cycle.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/geostyle/internal/classify"
	"github.com/joeblew999/geostyle/internal/palette"
)

// Label positions.
const (
	LabelsAbove = "above"
	LabelsBelow = "below"
)

// DefaultMaxSelection caps the number of features in a selection filter.
const DefaultMaxSelection = 1000

// API holds map-wide settings.
type API struct {
	Style         string `json:"style" yaml:"style" toml:"style" doc:"Basemap style URL or 'custom'"`
	LabelPosition string `json:"labelPosition" yaml:"labelPosition" toml:"labelPosition" enum:"above,below" doc:"Keep basemap labels above the data layers"`
	MaxSelection  int    `json:"maxSelection" yaml:"maxSelection" toml:"maxSelection" minimum:"1" doc:"Maximum number of selected features"`
}

// Circle holds settings for the circle layer.
type Circle struct {
	Show                 bool              `json:"show" yaml:"show" toml:"show"`
	MinZoom              float64           `json:"minZoom" yaml:"minZoom" toml:"minZoom"`
	MaxZoom              float64           `json:"maxZoom" yaml:"maxZoom" toml:"maxZoom"`
	Opacity              float64           `json:"opacity" yaml:"opacity" toml:"opacity" doc:"Percent, 0-100"`
	MinColor             string            `json:"minColor" yaml:"minColor" toml:"minColor"`
	MidColor             string            `json:"midColor" yaml:"midColor" toml:"midColor"`
	MaxColor             string            `json:"maxColor" yaml:"maxColor" toml:"maxColor"`
	Radius               float64           `json:"radius" yaml:"radius" toml:"radius"`
	ScaleFactor          float64           `json:"scaleFactor" yaml:"scaleFactor" toml:"scaleFactor"`
	ClassificationMethod classify.Method   `json:"classificationMethod" yaml:"classificationMethod" toml:"classificationMethod"`
	Legend               bool              `json:"legend" yaml:"legend" toml:"legend"`
	ColorField           int               `json:"colorField" yaml:"colorField" toml:"colorField" doc:"Index of the color role field"`
	SizeField            int               `json:"sizeField" yaml:"sizeField" toml:"sizeField" doc:"Index of the size role field"`
	Blur                 float64           `json:"blur" yaml:"blur" toml:"blur" doc:"Percent, 0-100"`
	StrokeWidth          float64           `json:"strokeWidth" yaml:"strokeWidth" toml:"strokeWidth"`
	StrokeOpacity        float64           `json:"strokeOpacity" yaml:"strokeOpacity" toml:"strokeOpacity" doc:"Percent, 0-100"`
	StrokeColor          string            `json:"strokeColor" yaml:"strokeColor" toml:"strokeColor"`
	HighlightColor       string            `json:"highlightColor" yaml:"highlightColor" toml:"highlightColor"`
	MinValue             *float64          `json:"minValue,omitempty" yaml:"minValue,omitempty" toml:"minValue,omitempty" doc:"Lower bound of the colored value window"`
	MaxValue             *float64          `json:"maxValue,omitempty" yaml:"maxValue,omitempty" toml:"maxValue,omitempty" doc:"Upper bound of the colored value window"`
	CategoryColors       map[string]string `json:"categoryColors,omitempty" yaml:"categoryColors,omitempty" toml:"categoryColors,omitempty" doc:"Pinned colors per category value"`
}

// Heatmap holds settings for the heatmap layer.
type Heatmap struct {
	Show      bool    `json:"show" yaml:"show" toml:"show"`
	MinZoom   float64 `json:"minZoom" yaml:"minZoom" toml:"minZoom"`
	MaxZoom   float64 `json:"maxZoom" yaml:"maxZoom" toml:"maxZoom"`
	Opacity   float64 `json:"opacity" yaml:"opacity" toml:"opacity" doc:"Percent, 0-100"`
	Radius    float64 `json:"radius" yaml:"radius" toml:"radius"`
	Intensity float64 `json:"intensity" yaml:"intensity" toml:"intensity"`
	MinColor  string  `json:"minColor" yaml:"minColor" toml:"minColor"`
	MidColor  string  `json:"midColor" yaml:"midColor" toml:"midColor"`
	MaxColor  string  `json:"maxColor" yaml:"maxColor" toml:"maxColor"`
}

// Raster holds settings for the raster tile layer.
type Raster struct {
	Show     bool    `json:"show" yaml:"show" toml:"show"`
	MinZoom  float64 `json:"minZoom" yaml:"minZoom" toml:"minZoom"`
	MaxZoom  float64 `json:"maxZoom" yaml:"maxZoom" toml:"maxZoom"`
	Opacity  float64 `json:"opacity" yaml:"opacity" toml:"opacity" doc:"Percent, 0-100"`
	URL      string  `json:"url" yaml:"url" toml:"url" doc:"XYZ tile URL template"`
	TileSize int     `json:"tileSize" yaml:"tileSize" toml:"tileSize"`
}

// Settings is a complete snapshot. It is passed by value; callers never
// mutate a snapshot that has been applied.
type Settings struct {
	API     API     `json:"api" yaml:"api" toml:"api"`
	Circle  Circle  `json:"circle" yaml:"circle" toml:"circle"`
	Heatmap Heatmap `json:"heatmap" yaml:"heatmap" toml:"heatmap"`
	Raster  Raster  `json:"raster" yaml:"raster" toml:"raster"`
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		API: API{
			Style:         "mapbox://styles/mapbox/light-v9?optimize=true",
			LabelPosition: LabelsAbove,
			MaxSelection:  DefaultMaxSelection,
		},
		Circle: Circle{
			Show:                 true,
			MaxZoom:              22,
			Opacity:              80,
			MinColor:             "#ffffcc",
			MidColor:             "#41b6c4",
			MaxColor:             "#253494",
			Radius:               3,
			ScaleFactor:          5,
			ClassificationMethod: classify.Quantile,
			Legend:               true,
			StrokeWidth:          1,
			StrokeOpacity:        50,
			StrokeColor:          "#bbbbbb",
			HighlightColor:       "#000000",
		},
		Heatmap: Heatmap{
			MaxZoom:   22,
			Opacity:   100,
			Radius:    5,
			Intensity: 1,
			MinColor:  "#0571b0",
			MidColor:  "#f7f7f7",
			MaxColor:  "#ca0020",
		},
		Raster: Raster{
			MaxZoom:  22,
			Opacity:  100,
			TileSize: 256,
		},
	}
}

// Load reads a settings file over Default. The format follows the file
// extension: .yaml/.yml, .toml or .json.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	s, err := Parse(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	if err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// Parse decodes data in format over Default and validates the result.
func Parse(data []byte, format string) (Settings, error) {
	s := Default()
	switch format {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
			return Settings{}, fmt.Errorf("decode yaml: %w", err)
		}
	case "toml":
		md, err := toml.Decode(string(data), &s)
		if err != nil {
			return Settings{}, fmt.Errorf("decode toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Settings{}, fmt.Errorf("decode toml: unknown key %q", undecoded[0].String())
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return Settings{}, fmt.Errorf("decode json: %w", err)
		}
	default:
		return Settings{}, fmt.Errorf("unsupported settings format %q", format)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ValidationError lists every invalid field of a snapshot.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid settings: " + strings.Join(e.Problems, "; ")
}

// Validate checks ranges and required values.
func (s Settings) Validate() error {
	var p []string
	add := func(format string, args ...any) { p = append(p, fmt.Sprintf(format, args...)) }

	zoom := func(layer string, lo, hi float64) {
		if lo < 0 || hi > 24 || lo > hi {
			add("%s zoom range [%g, %g] must lie within [0, 24] and be ordered", layer, lo, hi)
		}
	}
	percent := func(name string, v float64) {
		if v < 0 || v > 100 {
			add("%s %g must be a percentage", name, v)
		}
	}

	switch s.API.LabelPosition {
	case LabelsAbove, LabelsBelow:
	default:
		add("api.labelPosition %q must be %q or %q", s.API.LabelPosition, LabelsAbove, LabelsBelow)
	}
	if s.API.MaxSelection < 1 {
		add("api.maxSelection must be positive")
	}

	c := s.Circle
	zoom("circle", c.MinZoom, c.MaxZoom)
	percent("circle.opacity", c.Opacity)
	percent("circle.blur", c.Blur)
	percent("circle.strokeOpacity", c.StrokeOpacity)
	if c.Radius <= 0 {
		add("circle.radius must be positive")
	}
	if c.ScaleFactor <= 0 {
		add("circle.scaleFactor must be positive")
	}
	if c.ColorField < 0 || c.SizeField < 0 {
		add("circle field indexes must not be negative")
	}
	if c.MinValue != nil && c.MaxValue != nil && *c.MinValue > *c.MaxValue {
		add("circle.minValue %g above circle.maxValue %g", *c.MinValue, *c.MaxValue)
	}

	colors := func(layer string, named map[string]string) {
		for _, k := range []string{"minColor", "midColor", "maxColor"} {
			if named[k] == "" {
				continue
			}
			if _, err := palette.ParseColor(named[k]); err != nil {
				add("%s.%s %q is not a color", layer, k, named[k])
			}
		}
	}
	colors("circle", map[string]string{"minColor": c.MinColor, "midColor": c.MidColor, "maxColor": c.MaxColor})
	for category, color := range c.CategoryColors {
		if _, err := palette.ParseColor(color); err != nil {
			add("circle.categoryColors[%q] %q is not a color", category, color)
		}
	}

	h := s.Heatmap
	zoom("heatmap", h.MinZoom, h.MaxZoom)
	colors("heatmap", map[string]string{"minColor": h.MinColor, "midColor": h.MidColor, "maxColor": h.MaxColor})
	percent("heatmap.opacity", h.Opacity)
	if h.Radius <= 0 {
		add("heatmap.radius must be positive")
	}
	if h.Intensity < 0 {
		add("heatmap.intensity must not be negative")
	}

	r := s.Raster
	zoom("raster", r.MinZoom, r.MaxZoom)
	percent("raster.opacity", r.Opacity)
	if r.Show && r.URL == "" {
		add("raster.url is required when the raster layer is shown")
	}

	if len(p) > 0 {
		return &ValidationError{Problems: p}
	}
	return nil
}

// Fingerprint is a stable hash of the snapshot, usable as an ETag.
func (s Settings) Fingerprint() string {
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}
