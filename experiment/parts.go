package experiment

import (
	"context"
	"fmt"
	"time"

	"cmrset-tools/chart"
	"cmrset-tools/indices"
	"cmrset-tools/join"
	"cmrset-tools/landsat"
	"cmrset-tools/render"
	"cmrset-tools/scene"
	"cmrset-tools/temporal"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

var (
	Part1Indices  = []string{"EVI", "NDVI", "GVMI", "GVMI2"}
	MonthlyBands  = []string{"EVI", "GVMI", "GVMI2", "NDVI"}
	Part1KcChain  = []string{"RMI", "RMI2", "rescaled_evi", "PInterception", "Kc", "Kc2", "Kc_kamble", "Kc_irrisat"}
	Part2ETaChain = []string{
		"ETa_swir1", "ETa_swir2",
		"ETa_kamble", "ETa_irrisat",
		"irrest_swir1", "irrest_swir2",
		"irrest_irrisat", "irrest_kamble",
	}
	KcDifferences = []string{
		`GVMI = b("GVMI2") - b("GVMI")`,
		`RMI = b("RMI2") - b("RMI")`,
		`Kc = b("Kc2") - b("Kc")`,
	}
	IrrestDifference = []string{`irrest = b("irrest_swir2") - b("irrest_swir1")`}

	ChartBands  = []string{"irrest_irrisat", "ETa_kamble", "irrest_swir2", "irrest_swir1"}
	ChartSeries = []string{"IrriSAT", "Kamble", "CMRSET with SWIR2", "CMRSET with SWIR1"}
	ChartOpts   = chart.Options{
		Title:     "IIO2 Murray Irrigation Wakool (West)",
		HAxis:     "Date",
		VAxis:     "Irrest (mm per month)",
		Colors:    []string{"red", "orange", "blue", "cyan"},
		LineWidth: 5,
	}
)

type Part1 struct {
	// Kc holds the monthly indices together with every Kc variant.
	Kc *scene.Collection
	// Diff holds the masked SWIR2 minus SWIR1 differences of GVMI, RMI and Kc.
	Diff *scene.Collection
	// Summer is the mean of the calendar-month means of Diff over the summer months.
	Summer *scene.Image
}

type Part2 struct {
	ETa    *scene.Collection
	Diff   *scene.Collection
	Summer *scene.Image
	Chart  *chart.Chart
}

// summerMean averages the calendar-month means of col over the configured
// summer months.
func (e *Experiment) summerMean(col *scene.Collection) (*scene.Image, error) {
	months, err := temporal.CalendarMonthMeans(col, e.cfg.SummerMonths)
	if err != nil {
		return nil, err
	}
	mean, err := months.Mean()
	if err != nil {
		return nil, fmt.Errorf("summer months %v: %w", e.cfg.SummerMonths, err)
	}
	mean.Index = "summer"
	return mean, nil
}

// RMIKc runs part 1 over a raw Landsat 8 surface reflectance collection and
// adds the RMI and Kc difference layers to the map.
func (e *Experiment) RMIKc(ctx context.Context, raw *scene.Collection) (*Part1, error) {
	logrus.Debug("Entered RMIKc")
	defer logrus.Debug("Exited RMIKc")

	start, end, err := e.cfg.Period()
	if err != nil {
		return nil, err
	}
	bounds := e.cfg.Bounds()
	masked, err := landsat.Load(ctx, raw, landsat.Options{
		Period:  [2]time.Time{start, end},
		Bounds:  &bounds,
		Workers: e.cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	logrus.Infof("%d cloud masked Landsat scenes", masked.Len())

	vis, err := e.mutate(ctx, masked, "Vegetation indices", Part1Indices, indices.Options{})
	if err != nil {
		return nil, err
	}
	monthly, err := temporal.MonthlyMeans(vis, start, e.cfg.Years*12, MonthlyBands)
	if err != nil {
		return nil, err
	}
	kc, err := e.mutate(ctx, monthly, "Crop coefficients", Part1KcChain, indices.Options{IncludeOrigin: true})
	if err != nil {
		return nil, err
	}
	diff, err := e.transform(ctx, kc, "SWIR differences", KcDifferences, indices.Options{Func: indices.MaskPositive})
	if err != nil {
		return nil, err
	}
	summer, err := e.summerMean(diff)
	if err != nil {
		return nil, err
	}

	layers := []struct {
		band, title, name, position string
		vis                         render.VisParams
	}{
		{"RMI", "Mean summer months difference between RMI with SWIR2 and RMI with SWIR1", "Summer RMI difference", "bottom-left", VisDiffRMI},
		{"Kc", "Mean summer months difference between Kc with SWIR2 and Kc with SWIR1", "Summer Kc difference", "bottom-right", VisDiffKc},
	}
	for _, l := range layers {
		if err := e.addLayerWithLegend(summer, l.band, l.name, l.title, l.position, l.vis); err != nil {
			return nil, err
		}
	}
	return &Part1{Kc: kc, Diff: diff, Summer: summer}, nil
}

// Irrest runs part 2 over the monthly Kc of part 1 and an ERA5-Land monthly
// collection, charting the estimates over district.
func (e *Experiment) Irrest(ctx context.Context, kc, era5 *scene.Collection, district orb.Geometry) (*Part2, error) {
	logrus.Debug("Entered Irrest")
	defer logrus.Debug("Exited Irrest")

	start, end, err := e.cfg.Period()
	if err != nil {
		return nil, err
	}
	climate, err := era5.Select(indices.BandPET, indices.BandPrecipitation)
	if err != nil {
		return nil, err
	}
	climate = climate.FilterDate(start, end).FilterBounds(e.cfg.Bounds())

	joined, err := join.InnerJoin(kc, climate, join.TimeEquals())
	if err != nil {
		return nil, err
	}
	eta, err := e.mutate(ctx, joined, "Evapotranspiration", Part2ETaChain, indices.Options{})
	if err != nil {
		return nil, err
	}
	diff, err := e.transform(ctx, eta, "Irrigation difference", IrrestDifference, indices.Options{Func: indices.MaskPositive})
	if err != nil {
		return nil, err
	}
	summer, err := e.summerMean(diff)
	if err != nil {
		return nil, err
	}
	if err := e.addLayerWithLegend(summer, "irrest", "Summer Irrest difference",
		"Mean summer months difference between Irrest with SWIR2 and Irrest with SWIR1 (mm per month)",
		"bottom-center", VisDiffIrrest); err != nil {
		return nil, err
	}

	if err := e.Map.AddOutline("IIO Murray Wakool", district, "grey", 0.7); err != nil {
		return nil, err
	}
	series, err := eta.Select(ChartBands...)
	if err != nil {
		return nil, err
	}
	c, err := chart.ImageSeries(series, district, ChartBands, ChartSeries)
	if err != nil {
		return nil, err
	}
	return &Part2{ETa: eta, Diff: diff, Summer: summer, Chart: c}, nil
}

func (e *Experiment) addLayerWithLegend(img *scene.Image, band, name, title, position string, vis render.VisParams) error {
	if err := e.Map.AddLayer(name, img, band, vis, true, 1); err != nil {
		return err
	}
	legend, err := render.NewLegend(vis, title, render.LegendOptions{Position: position, FontPath: e.cfg.FontPath})
	if err != nil {
		return err
	}
	e.Map.AddLegend(legend)
	return nil
}
