package sceneio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cmrset-tools/scene"
	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Acquisition dates come from several sources and do not share one format.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"20060102",
	"2006-01",
	"200601",
}

// ParseTime is time.Parse over every layout in timeLayouts, in UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("date could not be parsed by any expected time format: `%s`", s)
}

// ManifestRow describes one image of a collection. Bands is a
// semicolon-separated list of band names and may be empty.
type ManifestRow struct {
	Path  string `csv:"path"`
	Date  string `csv:"date"`
	Index string `csv:"index"`
	Bands string `csv:"bands"`
}

func (r *ManifestRow) BandNames() []string {
	if strings.TrimSpace(r.Bands) == "" {
		return nil
	}
	names := strings.Split(r.Bands, ";")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	return names
}

// ReadManifest parses the CSV at path. Relative image paths are resolved
// against the manifest's directory.
func ReadManifest(path string) ([]*ManifestRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []*ManifestRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for _, r := range rows {
		if r.Path == "" {
			return nil, fmt.Errorf("manifest %s: row with empty path", path)
		}
		if !filepath.IsAbs(r.Path) {
			r.Path = filepath.Join(dir, r.Path)
		}
	}
	return rows, nil
}

func loadRow(r *ManifestRow) (*scene.Image, error) {
	img, err := ReadGeoTIFF(r.Path, r.BandNames())
	if err != nil {
		return nil, err
	}
	if r.Date != "" {
		t, err := ParseTime(r.Date)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Path, err)
		}
		img.TimeStart = t
	}
	if r.Index != "" {
		img.Index = r.Index
	}
	if img.Index == "" {
		img.Index = strings.TrimSuffix(filepath.Base(r.Path), filepath.Ext(r.Path))
	}
	return img, nil
}

// LoadCollection reads every image listed in the manifest at path, at most
// workers at a time, and returns them in manifest order.
func LoadCollection(ctx context.Context, path string, workers int) (*scene.Collection, error) {
	logrus.Debug("Entered LoadCollection")
	defer logrus.Debug("Exited LoadCollection")

	rows, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	images := make([]*scene.Image, len(rows))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, r := range rows {
		i, r := i, r
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := loadRow(r)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logrus.Infof("Loaded %d images from %s", len(images), path)
	return scene.NewCollection(images...), nil
}
