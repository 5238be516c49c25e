package layer

import (
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geostyle/internal/style"
)

// selectedOpacity scales the main layer opacity while a selection exists.
const selectedOpacity = 0.5

// Selection holds the ids of the selected features, shared by the layers
// that highlight them.
type Selection struct {
	mu  sync.Mutex
	ids []any
}

// Set replaces the selected ids.
func (s *Selection) Set(ids []any) {
	s.mu.Lock()
	s.ids = append(s.ids[:0], ids...)
	s.mu.Unlock()
}

// Clear drops the selection.
func (s *Selection) Clear() { s.Set(nil) }

// Len returns the number of selected features.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// IDs returns a copy of the selected ids.
func (s *Selection) IDs() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.ids...)
}

// Opacity returns the paint opacity for a 0-100 base opacity, dimmed while
// anything is selected.
func (s *Selection) Opacity(base float64) float64 {
	if s.Len() > 0 {
		return base / 100 * selectedOpacity
	}
	return base / 100
}

// noneFilter matches no feature: latitudes are never the empty string.
func noneFilter(lat string) style.Expr {
	return style.Eq{Property: lat, Value: ""}
}

// pointFilter matches features at the coordinates of f.
func pointFilter(f *geojson.Feature, lat, lon string) (style.All, bool) {
	if f == nil || f.Properties == nil {
		return nil, false
	}
	latV, lonV := f.Properties[lat], f.Properties[lon]
	if latV == nil || lonV == nil {
		return nil, false
	}
	return style.All{
		style.Eq{Property: lat, Value: latV},
		style.Eq{Property: lon, Value: lonV},
	}, true
}

// selectionFilter matches any of features, capped at limit. It returns the
// filter and the features it covers.
func selectionFilter(features []*geojson.Feature, lat, lon string, limit int) (style.Any, []*geojson.Feature) {
	if limit >= 0 && len(features) > limit {
		features = features[:limit]
	}
	filter := make(style.Any, 0, len(features))
	for _, f := range features {
		if pf, ok := pointFilter(f, lat, lon); ok {
			filter = append(filter, pf)
		}
	}
	return filter, features
}
