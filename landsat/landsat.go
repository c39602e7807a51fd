// Package landsat prepares Landsat 8 Collection 1 surface reflectance
// scenes: band renaming and scaling, QA bitmask cloud masking and
// cloud-score masking.
package landsat

import (
	"context"
	"fmt"
	"math"
	"time"

	"cmrset-tools/indices"
	"cmrset-tools/scene"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

const (
	BandPixelQA = "pixel_qa"

	ReflectanceScale = 0.0001
	ThermalScale     = 0.1
	KelvinOffset     = 273.15

	CloudShadowBit = 3
	CloudBit       = 5

	// ScoreThreshold is the cloud score above which a pixel is masked.
	ScoreThreshold = 0.6
)

type bandMap struct {
	from, to string
}

var reflectanceBands = []bandMap{
	{"B1", "ultraBlue"},
	{"B2", indices.BandBlue},
	{"B3", "green"},
	{"B4", indices.BandRed},
	{"B5", indices.BandNIR},
	{"B6", indices.BandSWIR1},
	{"B7", indices.BandSWIR2},
}

var thermalBands = []bandMap{
	{"B10", "LST1"},
	{"B11", "LST2"},
}

var qaBands = []string{"sr_aerosol", BandPixelQA, "radsat_qa"}

func scaled(data []float64, scale, offset float64) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = v*scale + offset
	}
	return out
}

// Rename maps the sensor band names to ultraBlue..swir2 scaled to
// reflectance, the thermal bands to LST1/LST2 in degrees Celsius, and keeps
// the QA bands as they are. B1..B7 and pixel_qa are required; the thermal
// and remaining QA bands are carried when present.
func Rename(img *scene.Image) (*scene.Image, error) {
	out := scene.NewLike(img)
	for _, b := range reflectanceBands {
		data, err := img.Band(b.from)
		if err != nil {
			return nil, err
		}
		if err := out.AddBand(b.to, scaled(data, ReflectanceScale, 0)); err != nil {
			return nil, err
		}
	}
	for _, b := range thermalBands {
		data, err := img.Band(b.from)
		if err != nil {
			logrus.Debugf("Scene %q has no %s", img.Index, b.from)
			continue
		}
		if err := out.AddBand(b.to, scaled(data, ThermalScale, -KelvinOffset)); err != nil {
			return nil, err
		}
	}
	for _, name := range qaBands {
		data, err := img.Band(name)
		if err != nil {
			if name == BandPixelQA {
				return nil, err
			}
			continue
		}
		if err := out.AddBand(name, data); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MaskClouds masks pixels whose pixel_qa flags cloud shadow or cloud.
func MaskClouds(img *scene.Image) (*scene.Image, error) {
	qa, err := img.Band(BandPixelQA)
	if err != nil {
		return nil, err
	}
	const flags = 1<<CloudShadowBit | 1<<CloudBit
	mask := make([]bool, len(qa))
	for i, v := range qa {
		if math.IsNaN(v) {
			continue
		}
		mask[i] = int64(v)&flags == 0
	}
	return img.UpdateMask(mask)
}

// CloudScore is the minimum of the blue, visible, infrared and snow scores.
// Higher means cloudier.
func CloudScore(blue, green, red, nir, swir1, swir2 float64) float64 {
	blueScore := (blue - 0.1) / 0.2
	rgbScore := ((red + blue + green) - 0.2) / 0.6
	irScore := ((nir + swir1 + swir2) - 0.3) / 0.5
	ndsi := (green - swir1) / (green + swir1)
	ndsiScore := (ndsi - 0.8) / -0.2
	return math.Min(math.Min(blueScore, rgbScore), math.Min(irScore, ndsiScore))
}

// MaskScore further masks pixels whose cloud score exceeds ScoreThreshold.
// Pixels with no defined score are masked as well.
func MaskScore(img *scene.Image) (*scene.Image, error) {
	score, err := img.Pixelwise("score",
		[]string{indices.BandBlue, "green", indices.BandRed, indices.BandNIR, indices.BandSWIR1, indices.BandSWIR2},
		func(v []float64) float64 { return CloudScore(v[0], v[1], v[2], v[3], v[4], v[5]) })
	if err != nil {
		return nil, err
	}
	data, _ := score.Band("score")
	mask := make([]bool, len(data))
	for i, s := range data {
		mask[i] = !math.IsNaN(s) && !(s > ScoreThreshold)
	}
	return img.UpdateMask(mask)
}

// Prepare renames, then applies both masks.
func Prepare(img *scene.Image) (*scene.Image, error) {
	renamed, err := Rename(img)
	if err != nil {
		return nil, err
	}
	masked, err := MaskClouds(renamed)
	if err != nil {
		return nil, err
	}
	return MaskScore(masked)
}

type Options struct {
	// Period is [start, end); a zero end leaves the collection unfiltered by date.
	Period  [2]time.Time
	Bounds  *orb.Bound
	Workers int
}

// Load filters a raw Landsat 8 collection and prepares every scene.
func Load(ctx context.Context, col *scene.Collection, opts Options) (*scene.Collection, error) {
	logrus.Debug("Entered landsat.Load")
	if !opts.Period[1].IsZero() {
		col = col.FilterDate(opts.Period[0], opts.Period[1])
	}
	if opts.Bounds != nil {
		col = col.FilterBounds(*opts.Bounds)
	}
	logrus.Infof("Preparing %d Landsat scenes", col.Len())
	out, err := col.Map(ctx, opts.Workers, Prepare)
	if err != nil {
		return nil, fmt.Errorf("preparing landsat scenes: %w", err)
	}
	logrus.Debug("Exited landsat.Load")
	return out, nil
}
