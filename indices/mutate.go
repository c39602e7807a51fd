package indices

import (
	"math"

	"cmrset-tools/scene"
	"github.com/sirupsen/logrus"
)

type Options struct {
	// IncludeOrigin keeps the bands of the input image ahead of the new ones.
	IncludeOrigin bool
	// Func post-processes the produced image.
	Func scene.MapFunc
}

// Mutate resolves names against the registry and returns a function that
// adds each formula's band to an image, in order. Each formula sees the
// bands produced before it, so "rescaled_evi" must precede "Kc".
func Mutate(names []string, opts Options) (scene.MapFunc, error) {
	formulas := make([]Formula, len(names))
	for i, name := range names {
		f, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		formulas[i] = f
	}
	logrus.Debugf("Mutate resolved %v", names)

	return func(img *scene.Image) (*scene.Image, error) {
		work := img.Clone()
		added := scene.NewLike(img)
		for _, f := range formulas {
			res, err := f.Apply(work)
			if err != nil {
				return nil, err
			}
			data, err := res.Band(f.Output)
			if err != nil {
				return nil, err
			}
			if err := work.SetBand(f.Output, data); err != nil {
				return nil, err
			}
			if err := added.SetBand(f.Output, data); err != nil {
				return nil, err
			}
		}
		out := added
		if opts.IncludeOrigin {
			out = work
		}
		if opts.Func != nil {
			return opts.Func(out)
		}
		return out, nil
	}, nil
}

// MaskPositive masks, band by band, every pixel that is not strictly
// positive.
func MaskPositive(img *scene.Image) (*scene.Image, error) {
	out := scene.NewLike(img)
	for _, b := range img.Bands() {
		data := make([]float64, len(b.Data))
		for i, v := range b.Data {
			if v > 0 {
				data[i] = v
			} else {
				data[i] = math.NaN()
			}
		}
		if err := out.AddBand(b.Name, data); err != nil {
			return nil, err
		}
	}
	return out, nil
}
