package render

import (
	"image"
	"image/color"
	"math"

	"cmrset-tools/scene"
	"golang.org/x/image/draw"
)

// Colorize paints one band of img with vis. Masked pixels are transparent.
func Colorize(img *scene.Image, band string, vis VisParams) (*image.NRGBA, error) {
	data, err := img.Band(band)
	if err != nil {
		return nil, err
	}
	palette, err := ParsePalette(vis.Palette)
	if err != nil {
		return nil, err
	}
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for p, v := range data {
		if math.IsNaN(v) {
			continue
		}
		c := palette.At(vis.Normalise(v))
		out.SetNRGBA(p%img.Width, p/img.Width, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
	}
	return out, nil
}

// upscale enlarges src by factor with nearest-neighbour sampling.
func upscale(src *image.NRGBA, factor int) *image.NRGBA {
	if factor <= 1 {
		return src
	}
	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(out, out.Bounds(), src, b, draw.Src, nil)
	return out
}
