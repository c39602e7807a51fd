// Package join pairs images of two collections by time or by property and
// merges the pairs into single images.
package join

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"cmrset-tools/scene"
	"github.com/sirupsen/logrus"
)

const Millis1d = 86400000

// Filter decides whether two images match and how well. Lower measures are
// better matches.
type Filter interface {
	Measure(left, right *scene.Image) (float64, bool)
}

type FilterFunc func(left, right *scene.Image) (float64, bool)

func (f FilterFunc) Measure(left, right *scene.Image) (float64, bool) {
	return f(left, right)
}

// TimeEquals matches images with identical start times.
func TimeEquals() Filter {
	return FilterFunc(func(left, right *scene.Image) (float64, bool) {
		return 0, left.TimeStart.Equal(right.TimeStart)
	})
}

// MaxDifference matches images whose start times are at most d apart; the
// measure is the absolute difference in milliseconds.
func MaxDifference(d time.Duration) Filter {
	return FilterFunc(func(left, right *scene.Image) (float64, bool) {
		diff := left.TimeStart.Sub(right.TimeStart)
		if diff < 0 {
			diff = -diff
		}
		return float64(diff.Milliseconds()), diff <= d
	})
}

// MaxDiff9d matches within nine days, the revisit window used to pair
// 8-day and 4-day products with daily forcing.
var MaxDiff9d = MaxDifference(9 * 24 * time.Hour)

// MaxDiff1y matches images whose "year" properties differ by at most 4.
var MaxDiff1y = PropertyMaxDifference("year", 4)

// PropertyMaxDifference matches numeric properties at most d apart.
func PropertyMaxDifference(field string, d float64) Filter {
	return FilterFunc(func(left, right *scene.Image) (float64, bool) {
		l, lok := numericProperty(left, field)
		r, rok := numericProperty(right, field)
		if !lok || !rok {
			return 0, false
		}
		diff := math.Abs(l - r)
		return diff, diff <= d
	})
}

// PropertyEquals matches images with the same property value. The field
// "system:index" compares image indices.
func PropertyEquals(field string) Filter {
	return FilterFunc(func(left, right *scene.Image) (float64, bool) {
		l, lok := property(left, field)
		r, rok := property(right, field)
		return 0, lok && rok && l == r
	})
}

func property(img *scene.Image, field string) (string, bool) {
	if field == "system:index" {
		return img.Index, img.Index != ""
	}
	return img.Get(field)
}

func numericProperty(img *scene.Image, field string) (float64, bool) {
	s, ok := property(img, field)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		logrus.Warnf("Property %s of %q is not numeric: %q", field, img.Index, s)
		return 0, false
	}
	return v, true
}

// merge returns left with the bands of right, regridded onto left's grid.
func merge(left, right *scene.Image) (*scene.Image, error) {
	regridded, err := right.Regrid(left)
	if err != nil {
		return nil, err
	}
	out := left.Clone()
	if err := out.AddBands(regridded); err != nil {
		return nil, fmt.Errorf("joining %q with %q: %w", left.Index, right.Index, err)
	}
	return out, nil
}

// InnerJoin merges every matching pair of primary and secondary images.
// A primary image matching several secondaries appears once per match.
func InnerJoin(primary, secondary *scene.Collection, filter Filter) (*scene.Collection, error) {
	if filter == nil {
		filter = TimeEquals()
	}
	logrus.Debug("Entered InnerJoin")
	var out []*scene.Image
	for _, left := range primary.Images() {
		for _, right := range secondary.Images() {
			if _, ok := filter.Measure(left, right); !ok {
				continue
			}
			joined, err := merge(left, right)
			if err != nil {
				return nil, err
			}
			out = append(out, joined)
		}
	}
	logrus.Infof("Inner join matched %d of %d primary images", len(out), primary.Len())
	return scene.NewCollection(out...), nil
}

type pair struct {
	left, right *scene.Image
}

func bestMatches(primary, secondary *scene.Collection, filter Filter) []pair {
	var pairs []pair
	for _, left := range primary.Images() {
		var best *scene.Image
		bestMeasure := math.Inf(1)
		for _, right := range secondary.Images() {
			m, ok := filter.Measure(left, right)
			if !ok || m >= bestMeasure {
				continue
			}
			best, bestMeasure = right, m
		}
		if best != nil {
			pairs = append(pairs, pair{left, best})
		}
	}
	return pairs
}

// SaveBest merges each primary image with its best matching secondary.
// Primary images without a match are dropped.
func SaveBest(primary, secondary *scene.Collection, filter Filter) (*scene.Collection, error) {
	if filter == nil {
		filter = TimeEquals()
	}
	var out []*scene.Image
	for _, p := range bestMatches(primary, secondary, filter) {
		joined, err := merge(p.left, p.right)
		if err != nil {
			return nil, err
		}
		out = append(out, joined)
	}
	return scene.NewCollection(out...), nil
}

// PairFunc combines a matched pair into one image.
type PairFunc func(left, right *scene.Image) (*scene.Image, error)

// ImgColFun applies fn to each primary image and its equal-time secondary.
// The result carries the primary image's metadata.
func ImgColFun(primary, secondary *scene.Collection, fn PairFunc) (*scene.Collection, error) {
	if fn == nil {
		fn = AbsDiff
	}
	var out []*scene.Image
	for _, p := range bestMatches(primary, secondary, TimeEquals()) {
		res, err := fn(p.left, p.right)
		if err != nil {
			return nil, err
		}
		res.CopyMetadata(p.left)
		out = append(out, res)
	}
	return scene.NewCollection(out...), nil
}

func bandwise(left, right *scene.Image, op func(a, b float64) float64) (*scene.Image, error) {
	if left.NumBands() != right.NumBands() {
		return nil, fmt.Errorf("%w: %d bands against %d", scene.ErrShapeMismatch, left.NumBands(), right.NumBands())
	}
	r, err := right.Regrid(left)
	if err != nil {
		return nil, err
	}
	out := scene.NewLike(left)
	rb := r.Bands()
	for i, lb := range left.Bands() {
		data := make([]float64, len(lb.Data))
		for p := range data {
			data[p] = op(lb.Data[p], rb[i].Data[p])
		}
		if err := out.AddBand(lb.Name, data); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AbsDiff is |left - right|, band by band in order.
func AbsDiff(left, right *scene.Image) (*scene.Image, error) {
	return bandwise(left, right, func(a, b float64) float64 { return math.Abs(a - b) })
}

// Diff is left - right, band by band in order.
func Diff(left, right *scene.Image) (*scene.Image, error) {
	return bandwise(left, right, func(a, b float64) float64 { return a - b })
}

// ResampleToDaily pairs each daily image with the nearest image of cols no
// more than days apart and returns the matched bands on the daily
// timestamps. days <= 0 means 9.
func ResampleToDaily(daily, cols *scene.Collection, days int) (*scene.Collection, error) {
	if days <= 0 {
		days = 9
	}
	filter := MaxDifference(time.Duration(days) * 24 * time.Hour)
	var out []*scene.Image
	for _, p := range bestMatches(daily, cols, filter) {
		res, err := p.right.Regrid(p.left)
		if err != nil {
			return nil, err
		}
		res.TimeStart = p.left.TimeStart
		res.Index = p.left.Index
		out = append(out, res)
	}
	return scene.NewCollection(out...), nil
}
