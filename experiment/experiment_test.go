package experiment

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cmrset-tools/config"
	"cmrset-tools/scene"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var grid = scene.GeoTransform{144, 0.1, 0, -35, 0, -0.1}

// landsatScene is a raw, cloud free, well vegetated 2x2 scene.
func landsatScene(t *testing.T, date time.Time) *scene.Image {
	t.Helper()
	img := scene.NewImage(2, 2)
	img.GeoTransform = grid
	img.TimeStart = date
	img.Index = "LC08_" + date.Format("20060102")
	raw := map[string]float64{
		"B1": 250, "B2": 300, "B3": 600, "B4": 400,
		"B5": 3500, "B6": 2000, "B7": 1000,
		"pixel_qa": 322,
	}
	for _, name := range []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7", "pixel_qa"} {
		require.NoError(t, img.AddBand(name, img.Constant(raw[name])))
	}
	return img
}

func era5Month(t *testing.T, month time.Month) *scene.Image {
	t.Helper()
	img := scene.NewImage(1, 1)
	img.GeoTransform = scene.GeoTransform{144, 0.2, 0, -35, 0, -0.2}
	img.TimeStart = time.Date(2015, month, 1, 0, 0, 0, 0, time.UTC)
	img.Index = img.TimeStart.Format("200601")
	require.NoError(t, img.AddBand("potential_evaporation", []float64{-0.005}))
	require.NoError(t, img.AddBand("total_precipitation", []float64{0.001}))
	require.NoError(t, img.AddBand("temperature_2m", []float64{300}))
	return img
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ROI:          []float64{138.525, -37.725, 152.525, -24.575},
		Start:        "2015-01-01",
		End:          "2015-04-01",
		Years:        1,
		SummerMonths: []int{12, 1, 2},
		DistrictKey:  "Id",
		DistrictID:   2,
		Output:       filepath.Join(t.TempDir(), "out"),
		MapScale:     2,
		Workers:      2,
		S2Level:      13,
		AggFunc:      "mean",
		MemLimitGB:   1,
	}
}

func testInputs(t *testing.T) *Inputs {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	wakool := geojson.NewFeature(orb.Polygon{{{144, -35}, {144.2, -35}, {144.2, -35.2}, {144, -35.2}, {144, -35}}})
	wakool.Properties["Id"] = 2.0
	other := geojson.NewFeature(orb.Polygon{{{150, -30}, {151, -30}, {151, -31}, {150, -31}, {150, -30}}})
	other.Properties["Id"] = 1.0
	fc.Append(wakool)
	fc.Append(other)

	return &Inputs{
		Landsat: scene.NewCollection(
			landsatScene(t, time.Date(2015, 1, 10, 0, 0, 0, 0, time.UTC)),
			landsatScene(t, time.Date(2015, 2, 12, 0, 0, 0, 0, time.UTC)),
			landsatScene(t, time.Date(2015, 3, 14, 0, 0, 0, 0, time.UTC)),
			// Outside the period.
			landsatScene(t, time.Date(2013, 1, 10, 0, 0, 0, 0, time.UTC)),
		),
		ERA5: scene.NewCollection(
			era5Month(t, time.January),
			era5Month(t, time.February),
			era5Month(t, time.March),
		),
		Districts: fc,
	}
}

func TestRMIKc(t *testing.T) {
	e := New(testConfig(t))
	p1, err := e.RMIKc(context.Background(), testInputs(t).Landsat)
	require.NoError(t, err)

	// One monthly image per month with scenes: January to March.
	require.Equal(t, 3, p1.Kc.Len())
	first := p1.Kc.Images()[0]
	assert.Equal(t, "201501", first.Index)
	for _, b := range []string{"EVI", "GVMI", "GVMI2", "NDVI", "RMI", "RMI2", "EVIr", "KE", "Kc", "Kc2", "Kc_kamble", "Kc_irrisat"} {
		assert.True(t, first.HasBand(b), b)
	}

	assert.Equal(t, []string{"GVMI", "RMI", "Kc"}, p1.Summer.BandNames())
	for _, b := range []string{"GVMI", "RMI", "Kc"} {
		data, err := p1.Summer.Band(b)
		require.NoError(t, err)
		assert.Greater(t, data[0], 0.0, b)
	}
	assert.Len(t, e.Map.Layers(), 2)
}

func TestRunWritesOutputs(t *testing.T) {
	cfg := testConfig(t)
	e := New(cfg)
	res, err := e.Run(context.Background(), testInputs(t))
	require.NoError(t, err)

	// Kc joins ERA5 for each of the three months.
	assert.Equal(t, 3, res.Part2.ETa.Len())
	irrest, err := res.Part2.Summer.Band("irrest")
	require.NoError(t, err)
	assert.False(t, math.IsNaN(irrest[0]))
	assert.Greater(t, irrest[0], 0.0)

	require.Len(t, res.Part2.Chart.Series, 4)
	assert.Equal(t, "IrriSAT", res.Part2.Chart.Series[0].Name)
	for _, s := range res.Part2.Chart.Series {
		assert.Len(t, s.Points, 3, s.Name)
	}

	for _, name := range []string{
		"map/map.png",
		"irrest_series.csv",
		"irrest_series.png",
		"summer_kc_diff.tif",
		"summer_irrest_diff.tif",
		"summer_RMI_diff_s2_13.parquet",
		"summer_Kc_diff_s2_13.parquet",
		"summer_irrest_diff_s2_13.parquet",
	} {
		_, err := os.Stat(filepath.Join(cfg.Output, name))
		assert.NoError(t, err, name)
	}
}

func TestRunDistrictWithoutPixels(t *testing.T) {
	cfg := testConfig(t)
	// District 1 lies outside every scene.
	cfg.DistrictID = 1
	res, err := New(cfg).Run(context.Background(), testInputs(t))
	require.NoError(t, err)

	for _, s := range res.Part2.Chart.Series {
		assert.Empty(t, s.Points, s.Name)
	}
	_, err = os.Stat(filepath.Join(cfg.Output, "irrest_series.png"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(cfg.Output, "summer_irrest_diff.tif"))
	assert.NoError(t, err)
}

func TestRunUnknownDistrict(t *testing.T) {
	cfg := testConfig(t)
	cfg.DistrictID = 9
	_, err := New(cfg).Run(context.Background(), testInputs(t))
	assert.Error(t, err)
}
