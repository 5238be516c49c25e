package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geostyle/internal/classify"
)

func TestBreaksFor(t *testing.T) {
	got, err := breaksFor([]string{"40", "0", "20", "10", "30"}, classify.Equidistant, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 20, 40}, got)

	_, err = breaksFor([]string{"1", "x"}, classify.Quantile, 0)
	assert.Error(t, err)
}

func TestStyleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[
{"type":"Feature","geometry":{"type":"Point","coordinates":[1,1]},"properties":{"pop":10}},
{"type":"Feature","geometry":{"type":"Point","coordinates":[2,2]},"properties":{"pop":20}},
{"type":"Feature","geometry":{"type":"Point","coordinates":[3,3]},"properties":{"pop":30}}
]}`), 0o644))

	out, err := styleFile(path, "", []string{"pop"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Features)
	require.Contains(t, out.Paint, "circle-color")
	data, err := json.Marshal(out.Paint["circle-color"])
	require.NoError(t, err)
	assert.Contains(t, string(data), `["to-number",["get","pop"]]`)
	require.Len(t, out.Legends, 1)
	assert.Equal(t, "pop", out.Legends[0].Title)
}
