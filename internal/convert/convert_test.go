package convert

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geostyle/internal/rolemap"
)

func TestFeatures(t *testing.T) {
	roles := rolemap.New([]rolemap.Column{
		{DisplayName: "Lat", Roles: []string{rolemap.Latitude}},
		{DisplayName: "Lon", Roles: []string{rolemap.Longitude}},
		{DisplayName: "Pop", Roles: []string{rolemap.Color}},
	})
	rows := []map[string]any{
		{"Lat": 52.5, "Lon": 13.4, "Pop": 3.6, "ignored": true},
		{"Lat": "48.8", "Lon": json.Number("2.35"), "Pop": 2.1},
		{"Lat": 91.0, "Lon": 0.0},
		{"Lat": nil, "Lon": 1.0},
		{"Lat": "north", "Lon": 1.0},
	}

	got, skipped := Features(rows, roles)

	require.Len(t, got, 2)
	assert.Equal(t, 3, skipped)
	assert.Equal(t, orb.Point{13.4, 52.5}, got[0].Geometry)
	assert.Equal(t, 0, got[0].ID)
	assert.Equal(t, 3.6, got[0].Properties["Pop"])
	assert.NotContains(t, got[0].Properties, "ignored")
	assert.Equal(t, orb.Point{2.35, 48.8}, got[1].Geometry)
	assert.Equal(t, 1, got[1].ID)
}

func TestFloat(t *testing.T) {
	for _, v := range []any{int64(3), int32(3), float32(3), 3, "3", json.Number("3")} {
		f, ok := Float(v)
		assert.True(t, ok, "%T", v)
		assert.Equal(t, 3.0, f)
	}
	_, ok := Float(nil)
	assert.False(t, ok)
	_, ok = Float([]int{1})
	assert.False(t, ok)
}
