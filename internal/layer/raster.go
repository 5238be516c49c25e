package layer

import (
	"github.com/joeblew999/geostyle/internal/datasource"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/rolemap"
	"github.com/joeblew999/geostyle/internal/settings"
	"github.com/joeblew999/geostyle/internal/style"
)

const RasterID = "raster"

// Raster overlays XYZ raster tiles above the data layers.
type Raster struct {
	base
}

// NewRaster creates the raster layer over the raster datasource.
func NewRaster(d Deps, src datasource.Datasource) *Raster {
	return &Raster{base: newBase(d, RasterID, []string{RasterID}, src)}
}

func (r *Raster) Index() int { return RasterIndex }

func (r *Raster) Visible(s settings.Settings) bool { return s.Raster.Show }

func (r *Raster) ApplySettings(s settings.Settings, _ rolemap.RoleMap, before string) error {
	rs := s.Raster
	specs := func() map[string]mapengine.LayerSpec {
		return map[string]mapengine.LayerSpec{
			RasterID: {
				ID:     RasterID,
				Type:   mapengine.TypeRaster,
				Source: datasource.RasterSourceID,
				Paint:  map[string]style.Expr{"raster-opacity": style.Number(1)},
			},
		}
	}
	visible, err := r.toggle(rs.Show, s, specs, before)
	if err != nil || !visible {
		return err
	}

	r.paint(RasterID, "raster-opacity", percent(rs.Opacity))
	r.zoomRange(RasterID, rs.MinZoom, rs.MaxZoom)
	return nil
}
