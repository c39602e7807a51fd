package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"cmrset-tools/scene"
	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// fileName turns a layer title into something safe to use as a file name.
func fileName(name string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_")
	if s == "" {
		return "layer"
	}
	return s
}

type Layer struct {
	Name    string
	Shown   bool
	Opacity float64
	Image   *image.NRGBA
}

type Outline struct {
	Name     string
	Geometry orb.Geometry
	Colour   color.RGBA
	Opacity  float64
}

// MapView collects layers on a common grid, the grid of the first layer
// added, and renders them to PNG files.
type MapView struct {
	// Scale is the number of output pixels per raster pixel.
	Scale int

	grid     *scene.Image
	layers   []Layer
	outlines []Outline
	legends  []*Legend
}

func NewMapView(scale int) *MapView {
	if scale < 1 {
		scale = 1
	}
	return &MapView{Scale: scale}
}

func (m *MapView) Layers() []Layer {
	return m.layers
}

// AddLayer colourises band of img. Images on a different grid from the first
// layer are regridded onto it.
func (m *MapView) AddLayer(name string, img *scene.Image, band string, vis VisParams, shown bool, opacity float64) error {
	logrus.Debug("Entered AddLayer")
	defer logrus.Debug("Exited AddLayer")

	if m.grid == nil {
		m.grid = scene.NewLike(img)
	} else if img.Width != m.grid.Width || img.Height != m.grid.Height || img.GeoTransform != m.grid.GeoTransform {
		sel, err := img.Select(band)
		if err != nil {
			return err
		}
		img, err = sel.Regrid(m.grid)
		if err != nil {
			return fmt.Errorf("layer %q: %w", name, err)
		}
	}
	rgba, err := Colorize(img, band, vis)
	if err != nil {
		return fmt.Errorf("layer %q: %w", name, err)
	}
	m.layers = append(m.layers, Layer{Name: name, Shown: shown, Opacity: opacity, Image: rgba})
	return nil
}

func (m *MapView) AddOutline(name string, geom orb.Geometry, colour string, opacity float64) error {
	c, err := ParseColor(colour)
	if err != nil {
		return err
	}
	m.outlines = append(m.outlines, Outline{Name: name, Geometry: geom, Colour: c, Opacity: opacity})
	return nil
}

func (m *MapView) AddLegend(l *Legend) {
	m.legends = append(m.legends, l)
}

// Composite draws the shown layers in order, then the outlines, then the
// legends at their positions.
func (m *MapView) Composite() (*image.RGBA, error) {
	if m.grid == nil {
		return nil, fmt.Errorf("map has no layers")
	}
	w, h := m.grid.Width*m.Scale, m.grid.Height*m.Scale
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for _, l := range m.layers {
		if !l.Shown {
			continue
		}
		mask := image.NewUniform(color.Alpha{A: alpha(l.Opacity)})
		draw.DrawMask(out, out.Bounds(), upscale(l.Image, m.Scale), image.Point{}, mask, image.Point{}, draw.Over)
	}

	dc := gg.NewContextForRGBA(out)
	for _, o := range m.outlines {
		m.drawOutline(dc, o)
	}
	m.placeLegends(out)
	return out, nil
}

func alpha(opacity float64) uint8 {
	if opacity <= 0 {
		return 0
	}
	if opacity >= 1 {
		return 255
	}
	return uint8(opacity*255 + 0.5)
}

func (m *MapView) drawOutline(dc *gg.Context, o Outline) {
	var polygons orb.MultiPolygon
	switch g := o.Geometry.(type) {
	case orb.Polygon:
		polygons = orb.MultiPolygon{g}
	case orb.MultiPolygon:
		polygons = g
	case orb.Bound:
		polygons = orb.MultiPolygon{g.ToPolygon()}
	default:
		logrus.Warnf("Outline %q: unsupported geometry %s", o.Name, o.Geometry.GeoJSONType())
		return
	}
	scale := float64(m.Scale)
	for _, poly := range polygons {
		for _, ring := range poly {
			for i, pt := range ring {
				fc, fr := m.grid.GeoTransform.Invert(pt[0], pt[1])
				if i == 0 {
					dc.MoveTo(fc*scale, fr*scale)
				} else {
					dc.LineTo(fc*scale, fr*scale)
				}
			}
			dc.ClosePath()
		}
	}
	a := float64(alpha(o.Opacity)) / 255
	dc.SetRGBA255(int(o.Colour.R), int(o.Colour.G), int(o.Colour.B), int(a*0.35*255))
	dc.FillPreserve()
	dc.SetRGBA255(int(o.Colour.R), int(o.Colour.G), int(o.Colour.B), int(a*255))
	dc.SetLineWidth(2)
	dc.Stroke()
}

// placeLegends stacks legends sharing a position away from the map edge.
func (m *MapView) placeLegends(out *image.RGBA) {
	const margin = 10
	offsets := make(map[string]int)
	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	for _, l := range m.legends {
		lb := l.Image.Bounds()
		vertical, horizontal, _ := strings.Cut(l.Position, "-")
		var x, y int
		switch horizontal {
		case "right":
			x = w - lb.Dx() - margin
		case "center":
			x = (w - lb.Dx()) / 2
		default:
			x = margin
		}
		off := offsets[l.Position]
		if vertical == "top" {
			y = margin + off
		} else {
			y = h - lb.Dy() - margin - off
		}
		offsets[l.Position] = off + lb.Dy() + margin
		r := image.Rect(x, y, x+lb.Dx(), y+lb.Dy())
		draw.Draw(out, r, l.Image, lb.Min, draw.Over)
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Save writes every shown layer, every legend and the composite map.png into
// dir, which is created when missing.
func (m *MapView) Save(dir string) error {
	logrus.Debug("Entered Save")
	defer logrus.Debug("Exited Save")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, l := range m.layers {
		if !l.Shown {
			continue
		}
		if err := writePNG(filepath.Join(dir, fileName(l.Name)+".png"), upscale(l.Image, m.Scale)); err != nil {
			return fmt.Errorf("writing layer %q: %w", l.Name, err)
		}
	}
	for i, l := range m.legends {
		name := fmt.Sprintf("legend_%d_%s.png", i, fileName(l.Title))
		if err := writePNG(filepath.Join(dir, name), l.Image); err != nil {
			return fmt.Errorf("writing legend %q: %w", l.Title, err)
		}
	}
	composite, err := m.Composite()
	if err != nil {
		return err
	}
	if err := writePNG(filepath.Join(dir, "map.png"), composite); err != nil {
		return err
	}
	logrus.Infof("Saved map with %d layers to %s", len(m.layers), dir)
	return nil
}
