// Package controller orchestrates the map layers: it owns their stacking
// order, drives visibility transitions from settings snapshots and keeps the
// shared datasources up to date.
//
// All methods serialize on one mutex, so the controller behaves like a
// single-threaded event loop. Until MapLoaded is called, ApplySettings and
// Update only remember the latest snapshot and data; nothing is queued.
package controller

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/joeblew999/geostyle/internal/datasource"
	"github.com/joeblew999/geostyle/internal/layer"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/metrics"
	"github.com/joeblew999/geostyle/internal/palette"
	"github.com/joeblew999/geostyle/internal/rolemap"
	"github.com/joeblew999/geostyle/internal/service"
	"github.com/joeblew999/geostyle/internal/settings"
	"github.com/joeblew999/geostyle/internal/style"
)

// Controller is the map-level layer orchestrator.
type Controller struct {
	mu sync.Mutex

	m       mapengine.Map
	log     zerolog.Logger
	metrics *metrics.Styling
	bus     *service.EventBus
	palette *palette.Palette

	point     *datasource.Point
	raster    *datasource.Raster
	selection *layer.Selection
	layers    []layer.Layer // descending stacking priority

	settings    settings.Settings
	roles       rolemap.RoleMap
	features    []*geojson.Feature
	selected    []*geojson.Feature
	ready       bool
	pendingData bool

	// dataGen counts Update calls; srcGen records the generation each
	// datasource last received.
	dataGen uint64
	srcGen  map[string]uint64
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l zerolog.Logger) Option { return func(c *Controller) { c.log = l } }
func WithMetrics(s *metrics.Styling) Option { return func(c *Controller) { c.metrics = s } }
func WithEventBus(b *service.EventBus) Option { return func(c *Controller) { c.bus = b } }
func WithPalette(p *palette.Palette) Option { return func(c *Controller) { c.palette = p } }
func WithSettings(s settings.Settings) Option { return func(c *Controller) { c.settings = s } }

// New creates the controller with its circle, heatmap and raster layers.
// The layers exist for the life of the controller.
func New(m mapengine.Map, opts ...Option) *Controller {
	c := &Controller{
		m:         m,
		log:       zerolog.Nop(),
		settings:  settings.Default(),
		point:     datasource.NewPoint(),
		raster:    datasource.NewRaster(),
		selection: &layer.Selection{},
		srcGen:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.palette == nil {
		c.palette = palette.New(nil, palette.WithLogger(c.log))
	}

	d := layer.Deps{Map: m, Log: c.log, Metrics: c.metrics}
	c.layers = []layer.Layer{
		layer.NewHeatmap(d, c.point),
		layer.NewCircle(d, c.point, c.selection, c.palette),
		layer.NewRaster(d, c.raster),
	}
	slices.SortStableFunc(c.layers, func(a, b layer.Layer) int { return b.Index() - a.Index() })
	return c
}

// MapLoaded marks the engine ready and flushes the latest pending data and
// settings.
func (c *Controller) MapLoaded() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}
	c.ready = true
	c.publish(service.ResourceMap, service.ActionReady, "", 0)
	c.log.Info().Bool("pending_data", c.pendingData).Msg("map loaded")

	if c.pendingData {
		return c.update()
	}
	return c.apply()
}

// Ready reports whether MapLoaded has been called.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// ApplySettings converges the map to s. Before the map is ready only the
// latest snapshot is kept.
func (c *Controller) ApplySettings(s settings.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
	if !c.ready {
		c.publish(service.ResourceSettings, service.ActionQueued, s.Fingerprint(), 0)
		return nil
	}
	return c.apply()
}

// Update replaces the data. Active datasources recompute their limits before
// the current settings are re-applied.
func (c *Controller) Update(features []*geojson.Feature, roles rolemap.RoleMap) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.features = features
	c.roles = roles
	c.dataGen++
	if !c.ready {
		c.pendingData = true
		return nil
	}
	return c.update()
}

func (c *Controller) update() error {
	c.pendingData = false
	var errs []error
	for _, l := range c.layers {
		if !l.Visible(c.settings) {
			continue
		}
		if err := l.Source().Ensure(c.m, l.ID(), c.settings); err != nil {
			errs = append(errs, fmt.Errorf("layer %q: %w", l.ID(), err))
		}
	}
	for _, src := range c.sources() {
		if src.Active(c.m) {
			c.refresh(src)
		}
	}
	if err := c.apply(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// refresh hands the current data to src.
func (c *Controller) refresh(src datasource.Datasource) {
	src.Update(c.m, c.features, c.roles)
	c.srcGen[src.ID()] = c.dataGen
	c.metrics.Updated()
	c.publish(service.ResourceDatasource, service.ActionUpdated, src.ID(), len(c.features))
}

// catchUp ensures the source of every visible layer that missed data while
// it was hidden and hands it the current data before the layer is styled.
func (c *Controller) catchUp() []error {
	var errs []error
	for _, l := range c.layers {
		src := l.Source()
		if !l.Visible(c.settings) || c.srcGen[src.ID()] == c.dataGen {
			continue
		}
		if err := src.Ensure(c.m, l.ID(), c.settings); err != nil {
			errs = append(errs, fmt.Errorf("layer %q: %w", l.ID(), err))
			continue
		}
		c.refresh(src)
	}
	return errs
}

func (c *Controller) apply() error {
	before := c.insertionPoint()
	errs := c.catchUp()
	for _, l := range c.layers {
		existed := l.Exists()
		if err := l.ApplySettings(c.settings, c.roles, before); err != nil {
			errs = append(errs, fmt.Errorf("layer %q: %w", l.ID(), err))
			continue
		}
		switch exists := l.Exists(); {
		case exists && !existed:
			c.publish(service.ResourceLayer, service.ActionAdded, l.ID(), 0)
		case !exists && existed:
			c.publish(service.ResourceLayer, service.ActionRemoved, l.ID(), 0)
		case exists:
			c.publish(service.ResourceLayer, service.ActionStyled, l.ID(), 0)
		}
	}
	c.reorder()
	c.metrics.Sources(c.activeSources())
	return errors.Join(errs...)
}

// Reorder restacks the visible layers by priority. Layers already in place
// are not moved, so a second call issues no engine moves.
func (c *Controller) Reorder() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		c.reorder()
	}
}

func (c *Controller) reorder() {
	cursor := c.insertionPoint()
	for _, l := range c.layers {
		if l.Exists() {
			cursor = l.Move(cursor)
		}
	}
}

// insertionPoint is the layer data goes below: the lowest label layer when
// labels stay above the data, otherwise the top.
func (c *Controller) insertionPoint() string {
	if c.settings.API.LabelPosition == settings.LabelsAbove {
		return mapengine.FirstSymbolLayer(c.m)
	}
	return ""
}

// UpdateSelection selects features, capped at the configured maximum, and
// returns the selected prefix.
func (c *Controller) UpdateSelection(features []*geojson.Feature) []*geojson.Feature {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateSelection(features)
}

func (c *Controller) updateSelection(features []*geojson.Feature) []*geojson.Feature {
	var selected []*geojson.Feature
	for _, l := range c.layers {
		if got := l.UpdateSelection(features, c.roles); got != nil {
			selected = got
		}
	}
	c.selected = selected
	c.metrics.Selected(len(selected))
	c.publish(service.ResourceSelection, service.ActionUpdated, "", len(selected))
	return selected
}

// SelectBox selects the points inside b.
func (c *Controller) SelectBox(b orb.Bound) []*geojson.Feature {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateSelection(c.point.FeaturesIn(b))
}

// SelectIDs selects the features of the last update whose id is in ids.
// Ids are compared by their printed form, so JSON numbers match int ids.
func (c *Controller) SelectIDs(ids []any) []*geojson.Feature {
	c.mu.Lock()
	defer c.mu.Unlock()
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[fmt.Sprint(id)] = struct{}{}
	}
	var features []*geojson.Feature
	for _, f := range c.features {
		if _, ok := want[fmt.Sprint(f.ID)]; ok {
			features = append(features, f)
		}
	}
	return c.updateSelection(features)
}

// Feature returns the feature of the last update with the given id.
func (c *Controller) Feature(id any) (*geojson.Feature, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fmt.Sprint(id)
	for _, f := range c.features {
		if fmt.Sprint(f.ID) == key {
			return f, true
		}
	}
	return nil, false
}

// RemoveHighlight clears the selection and restores base styling.
func (c *Controller) RemoveHighlight() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Clear()
	c.selected = nil
	for _, l := range c.layers {
		l.RemoveHighlight(c.roles)
	}
	c.metrics.Selected(0)
	c.publish(service.ResourceSelection, service.ActionCleared, "", 0)
}

// HoverHighlight highlights the features sharing the coordinates of f.
func (c *Controller) HoverHighlight(f *geojson.Feature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.layers {
		l.HoverHighlight(f, c.roles)
	}
}

// Legends returns the legend models of the layers that show one.
func (c *Controller) Legends() []style.LegendModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []style.LegendModel
	for _, l := range c.layers {
		if lm, ok := l.Legend(c.settings, c.roles); ok {
			out = append(out, lm)
		}
	}
	return out
}

// Palette returns the categories currently colored by the circle layer.
func (c *Controller) Palette() []palette.Group {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.palette.Groups()
}

// Bounds is the extent of the data behind the visible layers.
func (c *Controller) Bounds() (orb.Bound, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b orb.Bound
	found := false
	for _, l := range c.layers {
		if !l.Visible(c.settings) {
			continue
		}
		lb, ok := l.Source().Bounds()
		if !ok {
			continue
		}
		if !found {
			b, found = lb, true
			continue
		}
		b = b.Union(lb)
	}
	return b, found
}

// Settings returns the current snapshot, applied or pending.
func (c *Controller) Settings() settings.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Roles returns the role binding of the last update.
func (c *Controller) Roles() rolemap.RoleMap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roles
}

// Selected returns the current selection.
func (c *Controller) Selected() []*geojson.Feature {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.selected)
}

func (c *Controller) sources() []datasource.Datasource {
	return []datasource.Datasource{c.point, c.raster}
}

func (c *Controller) activeSources() int {
	n := 0
	for _, src := range c.sources() {
		if src.Active(c.m) {
			n++
		}
	}
	return n
}

func (c *Controller) publish(resource, action, id string, count int) {
	c.bus.Publish(service.Event{Resource: resource, Action: action, ID: id, Count: count})
}
