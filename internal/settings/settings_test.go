package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geostyle/internal/classify"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  labelPosition: below
circle:
  radius: 4
  classificationMethod: jenks
  minValue: 10
heatmap:
  show: true
`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, LabelsBelow, s.API.LabelPosition)
	assert.Equal(t, 4.0, s.Circle.Radius)
	assert.Equal(t, classify.NaturalBreaks, s.Circle.ClassificationMethod)
	require.NotNil(t, s.Circle.MinValue)
	assert.Equal(t, 10.0, *s.Circle.MinValue)
	assert.True(t, s.Heatmap.Show)
	assert.Equal(t, Default().Circle.ScaleFactor, s.Circle.ScaleFactor, "unset keys keep defaults")
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[circle]
show = false
classificationMethod = "equidistant"

[raster]
show = true
url = "https://tiles.example.com/{z}/{x}/{y}.png"
`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.False(t, s.Circle.Show)
	assert.Equal(t, classify.Equidistant, s.Circle.ClassificationMethod)
	assert.True(t, s.Raster.Show)
	assert.Equal(t, 256, s.Raster.TileSize)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("circle:\n  radious: 3\n"), "yaml")
	assert.Error(t, err)

	_, err = Parse([]byte("[circle]\nradious = 3\n"), "toml")
	assert.Error(t, err)

	_, err = Parse([]byte(`{"circle":{"radious":3}}`), "json")
	assert.Error(t, err)

	_, err = Parse([]byte(`{}`), "ini")
	assert.Error(t, err)
}

func TestParse_EmptyYAMLIsDefault(t *testing.T) {
	s, err := Parse(nil, "yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestValidate_CollectsProblems(t *testing.T) {
	s := Default()
	s.API.LabelPosition = "sideways"
	s.Circle.MinZoom = 10
	s.Circle.MaxZoom = 5
	s.Circle.Opacity = 150
	s.Circle.Radius = 0
	s.Raster.Show = true

	err := s.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 5)
	assert.Contains(t, err.Error(), "raster.url")
}

func TestValidate_RampColors(t *testing.T) {
	s := Default()
	s.Circle.MinColor = "yellow"
	s.Circle.MidColor = ""
	s.Circle.MaxColor = "rgb(200, 0, 0)"
	require.NoError(t, s.Validate())

	s.Heatmap.MaxColor = "reddish"
	err := s.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{`heatmap.maxColor "reddish" is not a color`}, verr.Problems)
}

func TestFingerprint(t *testing.T) {
	a := Default()
	b := Default()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEmpty(t, a.Fingerprint())

	b.Circle.Radius = 9
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
