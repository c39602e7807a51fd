// Package experiment compares CMRSET crop coefficients and irrigation
// estimates computed with GVMI from SWIR1 against GVMI from SWIR2.
//
// Part 1 derives monthly RMI and Kc from Landsat 8 for both SWIR bands and
// maps the mean summer difference. Part 2 joins the monthly Kc with ERA5-Land
// evaporation and precipitation, estimates irrigation with each variant and
// charts them over an irrigation district.
package experiment

import (
	"context"
	"fmt"

	"cmrset-tools/config"
	"cmrset-tools/indices"
	"cmrset-tools/render"
	"cmrset-tools/scene"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

var (
	VisDiffRMI = render.VisParams{
		Min:     0,
		Max:     0.6,
		Palette: []string{"ffffff", "86a192", "509791", "307296", "2c4484", "000066"},
	}
	VisDiffKc = render.VisParams{
		Min: 0,
		Max: 0.6,
		Palette: []string{
			"FFFFFF", "CE7E45", "DF923D", "F1B555", "FCD163", "99B718",
			"74A901", "66A000", "529400", "3E8601", "207401", "056201",
			"004C00", "023B01", "012E01", "011D01", "011301",
		},
	}
	VisDiffIrrest = render.VisParams{
		Min:     0,
		Max:     300,
		Palette: []string{"white", "beige", "green", "yellow", "red"},
	}
)

type Experiment struct {
	cfg *config.Config
	Map *render.MapView
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{cfg: cfg, Map: render.NewMapView(cfg.MapScale)}
}

// mapCollection applies fn to every image of col on the configured number of
// workers, reporting progress on stderr when enabled.
func (e *Experiment) mapCollection(ctx context.Context, col *scene.Collection, desc string, fn scene.MapFunc) (*scene.Collection, error) {
	var bar *progressbar.ProgressBar
	if e.cfg.Progress {
		bar = progressbar.Default(int64(col.Len()), desc)
	} else {
		bar = progressbar.DefaultSilent(int64(col.Len()), desc)
	}
	out, err := col.Map(ctx, e.cfg.Workers, func(img *scene.Image) (*scene.Image, error) {
		res, err := fn(img)
		if err := bar.Add(1); err != nil {
			logrus.Debugf("progress: %v", err)
		}
		return res, err
	})
	if err := bar.Finish(); err != nil {
		logrus.Debugf("progress: %v", err)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", desc, err)
	}
	return out, nil
}

func (e *Experiment) mutate(ctx context.Context, col *scene.Collection, desc string, names []string, opts indices.Options) (*scene.Collection, error) {
	fn, err := indices.Mutate(names, opts)
	if err != nil {
		return nil, err
	}
	return e.mapCollection(ctx, col, desc, fn)
}

func (e *Experiment) transform(ctx context.Context, col *scene.Collection, desc string, statements []string, opts indices.Options) (*scene.Collection, error) {
	fn, err := indices.Transform(statements, opts)
	if err != nil {
		return nil, err
	}
	return e.mapCollection(ctx, col, desc, fn)
}
