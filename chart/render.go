package chart

import (
	"errors"
	"math"
	"strconv"
	"time"

	"cmrset-tools/render"
	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Title     string
	HAxis     string
	VAxis     string
	Colors    []string
	LineWidth float64
	Width     int
	Height    int
	FontPath  string
}

// ErrNoPoints is returned by Render when no series has a valid point.
var ErrNoPoints = errors.New("chart has no points")

var defaultColors = []string{"blue", "red", "orange", "green", "purple", "cyan"}

const (
	padLeft   = 70.0
	padRight  = 160.0
	padTop    = 40.0
	padBottom = 50.0
	numTicks  = 5
)

// Render draws every series as a line against time and writes a PNG to path.
// A legend of series names is drawn to the right of the plot.
func (c *Chart) Render(path string, opts Options) error {
	logrus.Debug("Entered Render")
	defer logrus.Debug("Exited Render")

	t0, t1, lo, hi, ok := c.extent()
	if !ok {
		return ErrNoPoints
	}
	if opts.Width == 0 {
		opts.Width = 900
	}
	if opts.Height == 0 {
		opts.Height = 500
	}
	if opts.LineWidth == 0 {
		opts.LineWidth = 2
	}
	colors := opts.Colors
	if len(colors) == 0 {
		colors = defaultColors
	}
	if hi == lo {
		hi, lo = hi+1, lo-1
	}
	span := t1.Sub(t0).Seconds()
	if span == 0 {
		span = 1
	}

	w, h := float64(opts.Width), float64(opts.Height)
	plotW, plotH := w-padLeft-padRight, h-padTop-padBottom
	px := func(sec float64) float64 { return padLeft + sec/span*plotW }
	py := func(v float64) float64 { return padTop + (hi-v)/(hi-lo)*plotH }

	dc := gg.NewContext(opts.Width, opts.Height)
	if opts.FontPath != "" {
		if err := dc.LoadFontFace(opts.FontPath, 14); err != nil {
			logrus.Warnf("Could not load font %s: %v", opts.FontPath, err)
		}
	}
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Grid and value ticks.
	dc.SetLineWidth(1)
	for i := 0; i <= numTicks; i++ {
		v := lo + (hi-lo)*float64(i)/numTicks
		y := py(v)
		dc.SetRGB(0.85, 0.85, 0.85)
		dc.DrawLine(padLeft, y, padLeft+plotW, y)
		dc.Stroke()
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(tickLabel(v), padLeft-6, y, 1, 0.5)
	}
	for i := 0; i <= numTicks; i++ {
		sec := span * float64(i) / numTicks
		t := t0.Add(time.Duration(sec * float64(time.Second)))
		dc.DrawStringAnchored(t.Format("2006-01"), px(sec), padTop+plotH+14, 0.5, 0.5)
	}
	dc.SetRGB(0, 0, 0)
	dc.DrawRectangle(padLeft, padTop, plotW, plotH)
	dc.Stroke()

	dc.DrawStringAnchored(opts.Title, w/2, padTop/2, 0.5, 0.5)
	dc.DrawStringAnchored(opts.HAxis, padLeft+plotW/2, h-padBottom/3, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), padLeft/4, padTop+plotH/2)
	dc.DrawStringAnchored(opts.VAxis, padLeft/4, padTop+plotH/2, 0.5, 0.5)
	dc.Pop()

	for i, s := range c.Series {
		col, err := render.ParseColor(colors[i%len(colors)])
		if err != nil {
			return err
		}
		dc.SetColor(col)
		dc.SetLineWidth(opts.LineWidth)
		for j, p := range s.Points {
			x, y := px(p.Date.Sub(t0).Seconds()), py(p.Value)
			if j == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.Stroke()

		ly := padTop + 10 + float64(i)*22
		dc.DrawLine(padLeft+plotW+12, ly, padLeft+plotW+36, ly)
		dc.Stroke()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(s.Name, padLeft+plotW+42, ly, 0, 0.5)
	}

	if err := dc.SavePNG(path); err != nil {
		return err
	}
	logrus.Infof("Saved chart %q to %s", opts.Title, path)
	return nil
}

func tickLabel(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
