// Package region loads area-of-interest polygons and reduces image bands
// over them.
package region

import (
	"errors"
	"fmt"
	"math"
	"os"

	"cmrset-tools/scene"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/sirupsen/logrus"
)

var ErrNoFeatures = errors.New("no matching features")

// Rectangle is the bound spanned by two lon/lat corners.
func Rectangle(minLon, minLat, maxLon, maxLat float64) orb.Bound {
	return orb.MultiPoint{{minLon, minLat}, {maxLon, maxLat}}.Bound()
}

func LoadFeatures(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	logrus.Infof("Loaded %d features from %s", len(fc.Features), path)
	return fc, nil
}

// FilterEq keeps the features whose property key equals value. Numbers
// decoded from GeoJSON compare equal to any Go numeric value.
func FilterEq(fc *geojson.FeatureCollection, key string, value any) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		v, ok := f.Properties[key]
		if !ok {
			continue
		}
		if equal(v, value) {
			out.Append(f)
		}
	}
	return out
}

func equal(a, b any) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// Geometry merges the polygonal features of fc into one multipolygon.
func Geometry(fc *geojson.FeatureCollection) (orb.MultiPolygon, error) {
	var mp orb.MultiPolygon
	for i, f := range fc.Features {
		if f.Geometry == nil {
			logrus.Warnf("Skipping feature %d without geometry", i)
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = append(mp, g)
		case orb.MultiPolygon:
			mp = append(mp, g...)
		case orb.Bound:
			mp = append(mp, g.ToPolygon())
		default:
			logrus.Warnf("Skipping non-polygonal %s feature", f.Geometry.GeoJSONType())
		}
	}
	if len(mp) == 0 {
		return nil, ErrNoFeatures
	}
	return mp, nil
}

// Contains reports whether the pixel centres of img fall inside geom.
func Contains(img *scene.Image, geom orb.Geometry) []bool {
	bound := geom.Bound()
	inside := make([]bool, img.Len())
	for row := 0; row < img.Height; row++ {
		for col := 0; col < img.Width; col++ {
			x, y := img.GeoTransform.PixelCentre(col, row)
			pt := orb.Point{x, y}
			if !bound.Contains(pt) {
				continue
			}
			inside[row*img.Width+col] = contains(geom, pt)
		}
	}
	return inside
}

func contains(geom orb.Geometry, pt orb.Point) bool {
	switch g := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	case orb.Bound:
		return g.Contains(pt)
	}
	return false
}

// ReduceMean returns, for each band, the mean of the valid pixels whose
// centre lies in geom. Bands with no valid pixel inside reduce to NaN.
func ReduceMean(img *scene.Image, geom orb.Geometry, bands []string) (map[string]float64, error) {
	inside := Contains(img, geom)
	out := make(map[string]float64, len(bands))
	for _, name := range bands {
		data, err := img.Band(name)
		if err != nil {
			return nil, err
		}
		var sum float64
		var n int
		for p, v := range data {
			if !inside[p] || math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			out[name] = math.NaN()
			continue
		}
		out[name] = sum / float64(n)
	}
	return out, nil
}
