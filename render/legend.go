package render

import (
	"image"
	"image/color"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"
)

const (
	legendMargin    = 8.0
	legendBarHeight = 24.0
	legendFontSize  = 14.0
	minLegendWidth  = 2*legendMargin + 2
)

type LegendOptions struct {
	// Position is one of bottom-left, bottom-center, bottom-right, top-left,
	// top-center, top-right. Empty means bottom-left.
	Position string
	// Width in pixels, 400 when zero.
	Width int
	// FontPath is a TrueType font; the gg built-in face is used when empty.
	FontPath string
}

type Legend struct {
	Title    string
	Vis      VisParams
	Position string
	Image    image.Image
}

func formatLabel(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func setFont(dc *gg.Context, path string) {
	if path == "" {
		return
	}
	if err := dc.LoadFontFace(path, legendFontSize); err != nil {
		logrus.Warnf("Could not load font %s, using the built-in face: %v", path, err)
	}
}

// NewLegend draws a horizontal gradient legend: a bold title, the palette as
// a colour bar, and the labels min, max/2 and max under it.
func NewLegend(vis VisParams, title string, opts LegendOptions) (*Legend, error) {
	palette, err := ParsePalette(vis.Palette)
	if err != nil {
		return nil, err
	}
	width := opts.Width
	if width == 0 {
		width = 400
	}
	if width < minLegendWidth {
		width = minLegendWidth
	}
	position := opts.Position
	if position == "" {
		position = "bottom-left"
	}

	// Measure with a scratch context so the title can wrap.
	scratch := gg.NewContext(1, 1)
	setFont(scratch, opts.FontPath)
	inner := float64(width) - 2*legendMargin
	lines := scratch.WordWrap(title, inner)
	lineHeight := scratch.FontHeight() * 1.4
	titleHeight := lineHeight * float64(len(lines))
	height := int(legendMargin + titleHeight + legendMargin + legendBarHeight + legendMargin + lineHeight + legendMargin)

	dc := gg.NewContext(width, height)
	setFont(dc, opts.FontPath)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	y := legendMargin
	for _, line := range lines {
		// Drawn twice, one pixel apart, to embolden the built-in face.
		dc.DrawStringAnchored(line, legendMargin, y+lineHeight/2, 0, 0.5)
		dc.DrawStringAnchored(line, legendMargin+1, y+lineHeight/2, 0, 0.5)
		y += lineHeight
	}

	y += legendMargin
	for x := 0; x < int(inner); x++ {
		c := palette.At(float64(x) / (inner - 1))
		dc.SetColor(color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
		dc.DrawRectangle(legendMargin+float64(x), y, 1, legendBarHeight)
		dc.Fill()
	}

	y += legendBarHeight + legendMargin + lineHeight/2
	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(formatLabel(vis.Min), legendMargin, y, 0, 0.5)
	dc.DrawStringAnchored(formatLabel(vis.Max/2), float64(width)/2, y, 0.5, 0.5)
	dc.DrawStringAnchored(formatLabel(vis.Max), float64(width)-legendMargin, y, 1, 0.5)

	return &Legend{Title: title, Vis: vis, Position: position, Image: dc.Image()}, nil
}
