// Package mapengine defines the rendering engine contract the styling core
// drives, and an in-process engine that keeps the resulting style in memory.
package mapengine

import (
	"errors"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geostyle/internal/style"
)

var (
	ErrLayerExists    = errors.New("mapengine: layer already exists")
	ErrLayerNotFound  = errors.New("mapengine: layer not found")
	ErrSourceExists   = errors.New("mapengine: source already exists")
	ErrSourceNotFound = errors.New("mapengine: source not found")
	ErrNotGeoJSON     = errors.New("mapengine: source does not accept GeoJSON data")
)

// Source types.
const (
	SourceGeoJSON = "geojson"
	SourceRaster  = "raster"
)

// Layer types.
const (
	TypeCircle  = "circle"
	TypeHeatmap = "heatmap"
	TypeRaster  = "raster"
	TypeSymbol  = "symbol"
	TypeFill    = "fill"
	TypeLine    = "line"
)

// SourceDescriptor describes a source to add.
type SourceDescriptor struct {
	Type     string                     `json:"type"`
	Data     *geojson.FeatureCollection `json:"data,omitempty"`
	Buffer   int                        `json:"buffer,omitempty"`
	Tiles    []string                   `json:"tiles,omitempty"`
	TileSize int                        `json:"tileSize,omitempty"`
}

// LayerSpec describes a style layer.
type LayerSpec struct {
	ID      string                `json:"id"`
	Type    string                `json:"type"`
	Source  string                `json:"source,omitempty"`
	Filter  style.Expr            `json:"filter,omitempty"`
	Paint   map[string]style.Expr `json:"paint,omitempty"`
	MinZoom float64               `json:"minzoom,omitempty"`
	MaxZoom float64               `json:"maxzoom,omitempty"`
}

// Source is a source present on the map.
type Source interface {
	ID() string
	Descriptor() SourceDescriptor
	// SetData replaces the features of a GeoJSON source.
	SetData(fc *geojson.FeatureCollection) error
}

// Map is the rendering engine surface. Layer order is bottom first; an empty
// before id means "on top".
type Map interface {
	AddSource(id string, d SourceDescriptor) error
	RemoveSource(id string) error
	GetSource(id string) (Source, bool)

	AddLayer(l LayerSpec, before string) error
	RemoveLayer(id string) error
	MoveLayer(id, before string) error
	GetLayer(id string) (LayerSpec, bool)
	SetLayerZoomRange(id string, minZoom, maxZoom float64) error

	SetPaintProperty(id, name string, value style.Expr) error
	SetFilter(id string, filter style.Expr) error

	// Layers returns the style layers, bottom first.
	Layers() []LayerSpec
}

// FirstSymbolLayer returns the id of the lowest symbol layer, or "" when the
// style has none.
func FirstSymbolLayer(m Map) string {
	for _, l := range m.Layers() {
		if l.Type == TypeSymbol {
			return l.ID
		}
	}
	return ""
}

// Above returns the id of the layer directly above id, "" when id is on top,
// and false when id is not in the style.
func Above(m Map, id string) (string, bool) {
	layers := m.Layers()
	for i, l := range layers {
		if l.ID != id {
			continue
		}
		if i+1 < len(layers) {
			return layers[i+1].ID, true
		}
		return "", true
	}
	return "", false
}
