// Package render turns image bands into coloured map layers, gradient
// legends and map composites.
package render

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"math"
	"strings"

	"golang.org/x/image/colornames"
)

// VisParams stretches values between Min and Max over Palette.
type VisParams struct {
	Min     float64
	Max     float64
	Palette []string
}

// Palette is a list of colour stops spread evenly over [0, 1].
type Palette []color.RGBA

// ParseColor accepts "rgb", "rrggbb" (with or without '#') and CSS colour
// names.
func ParseColor(s string) (color.RGBA, error) {
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		return c, nil
	}
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("unrecognised colour %q", s)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("unrecognised colour %q: %w", s, err)
	}
	return color.RGBA{R: b[0], G: b[1], B: b[2], A: 255}, nil
}

func ParsePalette(colors []string) (Palette, error) {
	if len(colors) == 0 {
		colors = []string{"000000", "ffffff"}
	}
	p := make(Palette, len(colors))
	for i, s := range colors {
		c, err := ParseColor(s)
		if err != nil {
			return nil, err
		}
		p[i] = c
	}
	return p, nil
}

// At returns the colour at t in [0, 1], interpolating linearly between
// neighbouring stops. t is clamped.
func (p Palette) At(t float64) color.RGBA {
	if len(p) == 1 {
		return p[0]
	}
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(p)-1)
	i := int(math.Floor(pos))
	if i >= len(p)-1 {
		return p[len(p)-1]
	}
	f := pos - float64(i)
	a, b := p[i], p[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + f*(float64(y)-float64(x))))
	}
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 255}
}

// Normalise maps v from [vis.Min, vis.Max] to [0, 1] without clamping.
func (vis VisParams) Normalise(v float64) float64 {
	if vis.Max == vis.Min {
		return 0
	}
	return (v - vis.Min) / (vis.Max - vis.Min)
}
