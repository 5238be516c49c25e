// Package convert turns tabular rows into GeoJSON point features.
package convert

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geostyle/internal/rolemap"
)

// Features builds one point feature per row with valid WGS84 coordinates.
// Rows are keyed by column display name; properties keep every bound column.
// Rows without usable coordinates are skipped and counted.
func Features(rows []map[string]any, roles rolemap.RoleMap) ([]*geojson.Feature, int) {
	lat, lon := roles.Latitude(), roles.Longitude()
	columns := roles.Columns()

	out := make([]*geojson.Feature, 0, len(rows))
	skipped := 0
	for i, row := range rows {
		y, okY := Float(row[lat])
		x, okX := Float(row[lon])
		if !okY || !okX || y < -90 || y > 90 || x < -180 || x > 180 {
			skipped++
			continue
		}
		f := geojson.NewFeature(orb.Point{x, y})
		f.ID = i
		for _, c := range columns {
			if v, ok := row[c.DisplayName]; ok {
				f.Properties[c.DisplayName] = v
			}
		}
		out = append(out, f)
	}
	return out, skipped
}

// Float reads a coordinate from the scalar kinds tabular sources produce.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case nil:
		return 0, false
	default:
		f, err := strconv.ParseFloat(fmt.Sprint(n), 64)
		return f, err == nil
	}
}
