package layer

import (
	"github.com/joeblew999/geostyle/internal/datasource"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/rolemap"
	"github.com/joeblew999/geostyle/internal/settings"
	"github.com/joeblew999/geostyle/internal/style"
)

const HeatmapID = "heatmap"

// Heatmap renders point density. It shares the point datasource with Circle.
type Heatmap struct {
	base
}

// NewHeatmap creates the heatmap layer over the point datasource.
func NewHeatmap(d Deps, src datasource.Datasource) *Heatmap {
	return &Heatmap{base: newBase(d, HeatmapID, []string{HeatmapID}, src)}
}

func (h *Heatmap) Index() int { return HeatmapIndex }

func (h *Heatmap) Visible(s settings.Settings) bool { return s.Heatmap.Show }

func (h *Heatmap) ApplySettings(s settings.Settings, _ rolemap.RoleMap, before string) error {
	hs := s.Heatmap
	specs := func() map[string]mapengine.LayerSpec {
		return map[string]mapengine.LayerSpec{
			HeatmapID: {ID: HeatmapID, Type: mapengine.TypeHeatmap, Source: datasource.PointSourceID},
		}
	}
	visible, err := h.toggle(hs.Show, s, specs, before)
	if err != nil || !visible {
		return err
	}

	h.zoomRange(HeatmapID, hs.MinZoom, hs.MaxZoom)
	h.paint(HeatmapID, "heatmap-radius", style.HeatmapRadius(hs.Radius))
	h.paint(HeatmapID, "heatmap-intensity", style.Number(hs.Intensity))
	h.paint(HeatmapID, "heatmap-opacity", percent(hs.Opacity))
	h.paint(HeatmapID, "heatmap-color", style.HeatmapColor(hs.MinColor, hs.MidColor, hs.MaxColor))
	return nil
}
