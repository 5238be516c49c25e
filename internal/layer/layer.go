// Package layer implements the map layer variants. A Layer persists for the
// life of the map; its engine sub-layers come and go with visibility.
package layer

import (
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/joeblew999/geostyle/internal/datasource"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/metrics"
	"github.com/joeblew999/geostyle/internal/rolemap"
	"github.com/joeblew999/geostyle/internal/settings"
	"github.com/joeblew999/geostyle/internal/style"
)

// Stacking priorities. Higher renders above lower.
const (
	HeatmapIndex = 1
	CircleIndex  = 3
	RasterIndex  = 4
)

// Layer is one logical map layer.
type Layer interface {
	ID() string
	// LayerIDs lists the engine sub-layers, top-most first. The order is fixed.
	LayerIDs() []string
	Index() int
	Source() datasource.Datasource
	Visible(s settings.Settings) bool
	Exists() bool

	// ApplySettings adds, removes or restyles the layer for s. New sub-layers
	// are inserted below before ("" means on top).
	ApplySettings(s settings.Settings, roles rolemap.RoleMap, before string) error
	// Move stacks the sub-layers directly below before and returns the id of
	// the bottom sub-layer. Sub-layers already in place are not moved.
	Move(before string) string

	UpdateSelection(features []*geojson.Feature, roles rolemap.RoleMap) []*geojson.Feature
	RemoveHighlight(roles rolemap.RoleMap)
	HoverHighlight(f *geojson.Feature, roles rolemap.RoleMap)
	Legend(s settings.Settings, roles rolemap.RoleMap) (style.LegendModel, bool)
}

// Deps are the collaborators shared by every layer.
type Deps struct {
	Map     mapengine.Map
	Log     zerolog.Logger
	Metrics *metrics.Styling
}

// base carries the engine plumbing common to all variants. Engine errors on
// redundant calls are logged and ignored.
type base struct {
	id      string
	order   []string
	source  datasource.Datasource
	m       mapengine.Map
	log     zerolog.Logger
	metrics *metrics.Styling
}

func newBase(d Deps, id string, order []string, src datasource.Datasource) base {
	return base{
		id:      id,
		order:   order,
		source:  src,
		m:       d.Map,
		log:     d.Log.With().Str("layer", id).Logger(),
		metrics: d.Metrics,
	}
}

func (b *base) ID() string                    { return b.id }
func (b *base) LayerIDs() []string            { return append([]string(nil), b.order...) }
func (b *base) Source() datasource.Datasource { return b.source }

func (b *base) Exists() bool {
	_, ok := b.m.GetLayer(b.id)
	return ok
}

func (b *base) check(op, id string, err error) {
	b.metrics.EngineOp(op)
	if err == nil {
		return
	}
	b.metrics.EngineError(op)
	b.log.Warn().Err(err).Str("op", op).Str("id", id).Msg("engine call ignored")
}

func (b *base) paint(id, name string, v style.Expr) {
	b.check(mapengine.OpSetPaintProperty, id, b.m.SetPaintProperty(id, name, v))
}

func (b *base) filter(id string, f style.Expr) {
	b.check(mapengine.OpSetFilter, id, b.m.SetFilter(id, f))
}

func (b *base) zoomRange(id string, lo, hi float64) {
	b.check(mapengine.OpSetLayerZoomRange, id, b.m.SetLayerZoomRange(id, lo, hi))
}

// add ensures the datasource and adds specs (ordered like b.order) chained
// downwards from before.
func (b *base) add(s settings.Settings, specs map[string]mapengine.LayerSpec, before string) error {
	if err := b.source.Ensure(b.m, b.id, s); err != nil {
		return err
	}
	prev := before
	for _, id := range b.order {
		b.check(mapengine.OpAddLayer, id, b.m.AddLayer(specs[id], prev))
		prev = id
	}
	b.log.Debug().Str("before", before).Msg("layer added")
	return nil
}

// remove drops every sub-layer, then releases the datasource.
func (b *base) remove() error {
	for _, id := range b.order {
		b.check(mapengine.OpRemoveLayer, id, b.m.RemoveLayer(id))
	}
	b.log.Debug().Msg("layer removed")
	return b.source.Release(b.m, b.id)
}

// toggle handles the visibility transitions and reports whether the layer is
// visible afterwards.
func (b *base) toggle(visible bool, s settings.Settings, specs func() map[string]mapengine.LayerSpec, before string) (bool, error) {
	exists := b.Exists()
	switch {
	case visible && !exists:
		return true, b.add(s, specs(), before)
	case !visible && exists:
		return false, b.remove()
	}
	return visible, nil
}

func (b *base) Move(before string) string {
	prev := before
	for _, id := range b.order {
		if above, ok := mapengine.Above(b.m, id); !ok || above != prev {
			b.check(mapengine.OpMoveLayer, id, b.m.MoveLayer(id, prev))
		}
		prev = id
	}
	return prev
}

func (b *base) UpdateSelection([]*geojson.Feature, rolemap.RoleMap) []*geojson.Feature { return nil }
func (b *base) RemoveHighlight(rolemap.RoleMap)                                        {}
func (b *base) HoverHighlight(*geojson.Feature, rolemap.RoleMap)                       {}

func (b *base) Legend(settings.Settings, rolemap.RoleMap) (style.LegendModel, bool) {
	return style.LegendModel{}, false
}

// percent converts a 0-100 setting to a 0-1 paint value.
func percent(v float64) style.Literal { return style.Number(v / 100) }
