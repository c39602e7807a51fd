// Package sceneio reads and writes images as GeoTIFFs through GDAL and loads
// collections from CSV manifests.
package sceneio

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"cmrset-tools/scene"
	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"
)

const (
	TimeStartKey = "TIME_START"
	IndexKey     = "INDEX"
)

func init() {
	godal.RegisterAll()
}

// ReadGeoTIFF loads every band of the raster at path as float64. Bands are
// named from bandNames when given, else from the band descriptions, else
// B1..Bn. Nodata pixels become NaN.
func ReadGeoTIFF(path string, bandNames []string) (img *scene.Image, err error) {
	logrus.Debug("Entered ReadGeoTIFF")
	defer logrus.Debug("Exited ReadGeoTIFF")

	ds, err := godal.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, ds.Close())
	}()

	st := ds.Structure()
	bands := ds.Bands()
	if len(bandNames) > 0 && len(bandNames) != len(bands) {
		return nil, fmt.Errorf("%s has %d bands, %d names given", path, len(bands), len(bandNames))
	}

	img = scene.NewImage(st.SizeX, st.SizeY)
	gt, err := ds.GeoTransform()
	if err != nil {
		logrus.Warnf("%s has no geotransform: %v", path, err)
		gt = [6]float64{0, 1, 0, 0, 0, 1}
	}
	img.GeoTransform = gt
	img.Projection = ds.Projection()
	img.Index = ds.Metadata(IndexKey)
	if ts := ds.Metadata(TimeStartKey); ts != "" {
		t, err := ParseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		img.TimeStart = t
	}

	for i, band := range bands {
		buf := make([]float64, st.SizeX*st.SizeY)
		if err := band.Read(0, 0, buf, st.SizeX, st.SizeY); err != nil {
			return nil, fmt.Errorf("reading band %d of %s: %w", i+1, path, err)
		}
		if noData, ok := band.NoData(); ok && !math.IsNaN(noData) {
			for p, v := range buf {
				if v == noData {
					buf[p] = math.NaN()
				}
			}
		}
		if err := img.AddBand(bandName(band, i, bandNames), buf); err != nil {
			return nil, err
		}
	}
	logrus.Infof("Read %dx%d image with %d bands from %s", img.Width, img.Height, img.NumBands(), path)
	return img, nil
}

func bandName(band godal.Band, i int, names []string) string {
	if len(names) > 0 {
		return names[i]
	}
	if d := strings.TrimSpace(band.Description()); d != "" {
		return d
	}
	return fmt.Sprintf("B%d", i+1)
}

// WriteGeoTIFF writes img as a tiled float64 GeoTIFF with one band per image
// band. Band names go to the band descriptions and masked pixels are stored
// as NaN nodata.
func WriteGeoTIFF(img *scene.Image, path string) (err error) {
	logrus.Debug("Entered WriteGeoTIFF")
	defer logrus.Debug("Exited WriteGeoTIFF")

	if img.NumBands() == 0 {
		return fmt.Errorf("image %q has no bands", img.Index)
	}
	ds, err := godal.Create(
		godal.GTiff,
		path,
		img.NumBands(),
		godal.Float64,
		img.Width,
		img.Height,
		godal.CreationOption("TILED=YES", "BLOCKXSIZE=256", "BLOCKYSIZE=256", "COMPRESS=DEFLATE"),
	)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, ds.Close())
	}()

	if err := ds.SetGeoTransform(img.GeoTransform); err != nil {
		return err
	}
	if img.Projection != "" {
		if err := ds.SetProjection(img.Projection); err != nil {
			return err
		}
	}
	if img.Index != "" {
		if err := ds.SetMetadata(IndexKey, img.Index); err != nil {
			return err
		}
	}
	if !img.TimeStart.IsZero() {
		if err := ds.SetMetadata(TimeStartKey, img.TimeStart.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}

	gdalBands := ds.Bands()
	for i, b := range img.Bands() {
		band := gdalBands[i]
		if err := band.SetDescription(b.Name); err != nil {
			return err
		}
		if err := band.SetNoData(math.NaN()); err != nil {
			return err
		}
		if err := band.Write(0, 0, b.Data, img.Width, img.Height); err != nil {
			return fmt.Errorf("writing band %q: %w", b.Name, err)
		}
	}
	logrus.Infof("Wrote %d bands of %q to %s", img.NumBands(), img.Index, path)
	return nil
}
