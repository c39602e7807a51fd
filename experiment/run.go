package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cmrset-tools/cellsio"
	"cmrset-tools/celltools"
	"cmrset-tools/chart"
	"cmrset-tools/region"
	"cmrset-tools/scene"
	"cmrset-tools/sceneio"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
)

type Inputs struct {
	Landsat   *scene.Collection
	ERA5      *scene.Collection
	Districts *geojson.FeatureCollection
}

// LoadInputs reads the Landsat and ERA5 manifests and the district polygons
// named in the configuration.
func (e *Experiment) LoadInputs(ctx context.Context) (*Inputs, error) {
	ls, err := sceneio.LoadCollection(ctx, e.cfg.Landsat, e.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("landsat: %w", err)
	}
	era5, err := sceneio.LoadCollection(ctx, e.cfg.ERA5, e.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("era5: %w", err)
	}
	districts, err := region.LoadFeatures(e.cfg.Districts)
	if err != nil {
		return nil, fmt.Errorf("districts: %w", err)
	}
	return &Inputs{Landsat: ls, ERA5: era5, Districts: districts}, nil
}

type Result struct {
	Part1 *Part1
	Part2 *Part2
}

// Run executes both parts and writes every output under the configured
// output directory.
func (e *Experiment) Run(ctx context.Context, in *Inputs) (*Result, error) {
	logrus.Debug("Entered Run")
	defer logrus.Debug("Exited Run")

	district, err := region.Geometry(region.FilterEq(in.Districts, e.cfg.DistrictKey, e.cfg.DistrictID))
	if err != nil {
		return nil, fmt.Errorf("district %s == %d: %w", e.cfg.DistrictKey, e.cfg.DistrictID, err)
	}

	p1, err := e.RMIKc(ctx, in.Landsat)
	if err != nil {
		return nil, fmt.Errorf("part 1: %w", err)
	}
	p2, err := e.Irrest(ctx, p1.Kc, in.ERA5, district)
	if err != nil {
		return nil, fmt.Errorf("part 2: %w", err)
	}
	res := &Result{Part1: p1, Part2: p2}
	if err := e.Save(res); err != nil {
		return nil, err
	}
	return res, nil
}

// Save writes the map, legends, chart, difference GeoTIFFs and the S2
// parquet exports of the summer differences.
func (e *Experiment) Save(res *Result) error {
	out := e.cfg.Output
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	if err := e.Map.Save(filepath.Join(out, "map")); err != nil {
		return err
	}
	if err := res.Part2.Chart.SaveCSV(filepath.Join(out, "irrest_series.csv")); err != nil {
		return err
	}
	err := res.Part2.Chart.Render(filepath.Join(out, "irrest_series.png"), ChartOpts)
	if errors.Is(err, chart.ErrNoPoints) {
		logrus.Warn("No valid district pixels in any month, skipping the irrest chart")
	} else if err != nil {
		return err
	}
	if err := sceneio.WriteGeoTIFF(res.Part1.Summer, filepath.Join(out, "summer_kc_diff.tif")); err != nil {
		return err
	}
	if err := sceneio.WriteGeoTIFF(res.Part2.Summer, filepath.Join(out, "summer_irrest_diff.tif")); err != nil {
		return err
	}

	exports := []struct {
		img  *scene.Image
		band string
	}{
		{res.Part1.Summer, "RMI"},
		{res.Part1.Summer, "Kc"},
		{res.Part2.Summer, "irrest"},
	}
	for _, x := range exports {
		path := filepath.Join(out, fmt.Sprintf("summer_%s_diff_s2_%d.parquet", x.band, e.cfg.S2Level))
		if err := e.exportS2(x.img, x.band, path); err != nil {
			return fmt.Errorf("exporting %s: %w", x.band, err)
		}
	}
	logrus.Infof("Outputs written to %s", out)
	return nil
}

func (e *Experiment) exportS2(img *scene.Image, band, path string) error {
	aggFunc, err := celltools.ParseAggFunc(e.cfg.AggFunc)
	if err != nil {
		return err
	}
	opts := celltools.ConfigOpts{
		NumWorkers: e.cfg.Workers,
		S2Lvl:      e.cfg.S2Level,
		AggFunc:    aggFunc,
	}
	return celltools.StreamBandToS2(img, band, opts, func(cells chan celltools.S2CellData) error {
		return cellsio.StreamToParquet(cells, path, e.cfg.Workers, e.cfg.MemLimitGB)
	})
}
