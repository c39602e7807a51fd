// Package chart builds zonal-mean time series from image collections and
// renders them as CSV tables and line charts.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"cmrset-tools/region"
	"cmrset-tools/scene"
	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

const DateLayout = "2006-01-02"

type Point struct {
	Date  time.Time
	Value float64
}

type Series struct {
	Name   string
	Band   string
	Points []Point
}

// Row is one line of the long-format CSV export.
type Row struct {
	Date   string  `csv:"date"`
	Series string  `csv:"series"`
	Value  float64 `csv:"value"`
}

type Chart struct {
	Series []Series
}

// ImageSeries reduces every image of col over geom, one series per band.
// names relabels the series; when shorter than bands the band name is used.
// Images where the band has no valid pixel inside geom are left out of that
// series.
func ImageSeries(col *scene.Collection, geom orb.Geometry, bands, names []string) (*Chart, error) {
	logrus.Debug("Entered ImageSeries")
	defer logrus.Debug("Exited ImageSeries")

	if len(bands) == 0 {
		return nil, errors.New("no bands to chart")
	}
	c := &Chart{Series: make([]Series, len(bands))}
	for i, b := range bands {
		name := b
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		c.Series[i] = Series{Name: name, Band: b}
	}

	for _, img := range col.SortByTime().Images() {
		means, err := region.ReduceMean(img, geom, bands)
		if err != nil {
			return nil, fmt.Errorf("image %q: %w", img.Index, err)
		}
		for i, b := range bands {
			v := means[b]
			if math.IsNaN(v) {
				continue
			}
			c.Series[i].Points = append(c.Series[i].Points, Point{Date: img.TimeStart, Value: v})
		}
	}
	return c, nil
}

func (c *Chart) Rows() []*Row {
	var rows []*Row
	for _, s := range c.Series {
		for _, p := range s.Points {
			rows = append(rows, &Row{Date: p.Date.Format(DateLayout), Series: s.Name, Value: p.Value})
		}
	}
	return rows
}

func (c *Chart) WriteCSV(w io.Writer) error {
	rows := c.Rows()
	return gocsv.Marshal(&rows, w)
}

func (c *Chart) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// extent returns the time and value ranges over every point.
func (c *Chart) extent() (t0, t1 time.Time, lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range c.Series {
		for _, p := range s.Points {
			if !ok || p.Date.Before(t0) {
				t0 = p.Date
			}
			if !ok || p.Date.After(t1) {
				t1 = p.Date
			}
			ok = true
			lo = math.Min(lo, p.Value)
			hi = math.Max(hi, p.Value)
		}
	}
	return
}
