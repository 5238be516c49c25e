package datasource

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geostyle/internal/limits"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/rolemap"
	"github.com/joeblew999/geostyle/internal/settings"
)

// RasterSourceID is the raster tile source.
const RasterSourceID = "raster"

// Raster is an XYZ raster tile datasource. It carries no features, so its
// limits are always the zero sentinel.
type Raster struct {
	holders holders
}

// NewRaster returns an absent raster datasource.
func NewRaster() *Raster {
	return &Raster{holders: make(holders)}
}

func (r *Raster) ID() string { return RasterSourceID }
func (r *Raster) Kind() Kind { return KindRaster }

func (r *Raster) Ensure(m mapengine.Map, holder string, s settings.Settings) error {
	added := r.holders.add(holder)
	if _, ok := m.GetSource(RasterSourceID); ok {
		return nil
	}
	err := m.AddSource(RasterSourceID, mapengine.SourceDescriptor{
		Type:     mapengine.SourceRaster,
		Tiles:    []string{s.Raster.URL},
		TileSize: s.Raster.TileSize,
	})
	if err != nil {
		if added {
			r.holders.remove(holder)
		}
		return fmt.Errorf("add source %q: %w", RasterSourceID, err)
	}
	return nil
}

func (r *Raster) Release(m mapengine.Map, holder string) error {
	if !r.holders.remove(holder) {
		return nil
	}
	if _, ok := m.GetSource(RasterSourceID); !ok {
		return nil
	}
	if err := m.RemoveSource(RasterSourceID); err != nil {
		return fmt.Errorf("remove source %q: %w", RasterSourceID, err)
	}
	return nil
}

// Update only checks the source precondition; tiles are fetched by the engine.
func (r *Raster) Update(m mapengine.Map, _ []*geojson.Feature, _ rolemap.RoleMap) {
	if _, ok := m.GetSource(RasterSourceID); !ok {
		panic(fmt.Errorf("%w: %q", ErrSourceAbsent, RasterSourceID))
	}
}

func (r *Raster) ColorLimits(int) limits.Limits { return limits.Zero() }
func (r *Raster) SizeLimits(int) limits.Limits  { return limits.Zero() }
func (r *Raster) Bounds() (orb.Bound, bool)     { return orb.Bound{}, false }

func (r *Raster) Active(m mapengine.Map) bool {
	_, ok := m.GetSource(RasterSourceID)
	return ok
}

func (r *Raster) Holders() []string { return r.holders.sorted() }
