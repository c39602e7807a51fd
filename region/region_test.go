package region

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"cmrset-tools/scene"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const districts = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"Id": 1, "Name": "Berriquin"},
     "geometry": {"type": "Polygon", "coordinates": [[[145,-35],[146,-35],[146,-36],[145,-36],[145,-35]]]}},
    {"type": "Feature", "properties": {"Id": 2, "Name": "Wakool"},
     "geometry": {"type": "Polygon", "coordinates": [[[144,-35],[144.2,-35],[144.2,-35.2],[144,-35.2],[144,-35]]]}}
  ]
}`

func writeDistricts(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iios.geojson")
	require.NoError(t, os.WriteFile(path, []byte(districts), 0o644))
	return path
}

func TestGeometrySkipsNullGeometry(t *testing.T) {
	const withNull = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"Id": 2}, "geometry": null},
    {"type": "Feature", "properties": {"Id": 2},
     "geometry": {"type": "Polygon", "coordinates": [[[144,-35],[144.2,-35],[144.2,-35.2],[144,-35.2],[144,-35]]]}}
  ]
}`
	path := filepath.Join(t.TempDir(), "null.geojson")
	require.NoError(t, os.WriteFile(path, []byte(withNull), 0o644))
	fc, err := LoadFeatures(path)
	require.NoError(t, err)

	mp, err := Geometry(FilterEq(fc, "Id", 2))
	require.NoError(t, err)
	require.Len(t, mp, 1)
	assert.Equal(t, orb.Point{144, -35}, mp[0][0][0])

	only := FilterEq(fc, "Id", 2)
	only.Features = only.Features[:1]
	_, err = Geometry(only)
	assert.ErrorIs(t, err, ErrNoFeatures)
}

func TestLoadAndFilter(t *testing.T) {
	fc, err := LoadFeatures(writeDistricts(t))
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	wakool := FilterEq(fc, "Id", 2)
	require.Len(t, wakool.Features, 1)
	assert.Equal(t, "Wakool", wakool.Features[0].Properties["Name"])

	assert.Len(t, FilterEq(fc, "Name", "Berriquin").Features, 1)
	assert.Len(t, FilterEq(fc, "Id", 7).Features, 0)

	_, err = Geometry(FilterEq(fc, "Id", 7))
	assert.ErrorIs(t, err, ErrNoFeatures)
}

func TestRectangle(t *testing.T) {
	b := Rectangle(152.525, -24.575, 138.525, -37.725)
	assert.Equal(t, orb.Point{138.525, -37.725}, b.Min)
	assert.Equal(t, orb.Point{152.525, -24.575}, b.Max)
}

func TestReduceMean(t *testing.T) {
	fc, err := LoadFeatures(writeDistricts(t))
	require.NoError(t, err)
	geom, err := Geometry(FilterEq(fc, "Id", 2))
	require.NoError(t, err)

	// 4x1 pixels of 0.1 degrees from 144.0: the first two centres are inside.
	img := scene.NewImage(4, 1)
	img.GeoTransform = scene.GeoTransform{144, 0.1, 0, -35, 0, -0.1}
	require.NoError(t, img.AddBand("irrest", []float64{10, 20, 100, 100}))
	require.NoError(t, img.AddBand("masked", []float64{math.NaN(), math.NaN(), 1, 1}))

	got, err := ReduceMean(img, geom, []string{"irrest", "masked"})
	require.NoError(t, err)
	assert.InDelta(t, 15.0, got["irrest"], 1e-12)
	assert.True(t, math.IsNaN(got["masked"]))

	_, err = ReduceMean(img, geom, []string{"nope"})
	assert.Error(t, err)
}
