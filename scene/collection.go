package scene

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MapFunc transforms one image. Returning a nil image drops it from the
// mapped collection.
type MapFunc func(*Image) (*Image, error)

type Collection struct {
	images []*Image
}

func NewCollection(images ...*Image) *Collection {
	return &Collection{images: images}
}

func (c *Collection) Len() int {
	return len(c.images)
}

func (c *Collection) Images() []*Image {
	out := make([]*Image, len(c.images))
	copy(out, c.images)
	return out
}

func (c *Collection) First() (*Image, error) {
	if len(c.images) == 0 {
		return nil, ErrEmptyCollection
	}
	return c.images[0], nil
}

// Map applies fn to every image on at most workers goroutines. The order of
// the collection is kept and the first error cancels the remaining work.
func (c *Collection) Map(ctx context.Context, workers int, fn MapFunc) (*Collection, error) {
	logrus.Debug("Entered Collection.Map")
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	results := make([]*Image, len(c.images))
	for i, img := range c.images {
		i, img := i, img
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := fn(img)
			if err != nil {
				return fmt.Errorf("image %q: %w", img.Index, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Image, 0, len(results))
	for _, img := range results {
		if img != nil {
			out = append(out, img)
		}
	}
	logrus.Debug("Exited Collection.Map")
	return NewCollection(out...), nil
}

func (c *Collection) Filter(keep func(*Image) bool) *Collection {
	var out []*Image
	for _, img := range c.images {
		if keep(img) {
			out = append(out, img)
		}
	}
	return NewCollection(out...)
}

// FilterDate keeps images with start <= TimeStart < end.
func (c *Collection) FilterDate(start, end time.Time) *Collection {
	return c.Filter(func(img *Image) bool {
		return !img.TimeStart.Before(start) && img.TimeStart.Before(end)
	})
}

func (c *Collection) FilterBounds(bound orb.Bound) *Collection {
	return c.Filter(func(img *Image) bool {
		return img.Bounds().Intersects(bound)
	})
}

// FilterCalendarRange keeps images whose month lies in [start, end]. When
// start > end the range wraps through December, so (12, 2) is Dec to Feb.
func (c *Collection) FilterCalendarRange(start, end int) *Collection {
	return c.Filter(func(img *Image) bool {
		m := int(img.TimeStart.Month())
		if start <= end {
			return m >= start && m <= end
		}
		return m >= start || m <= end
	})
}

func (c *Collection) Select(names ...string) (*Collection, error) {
	out := make([]*Image, len(c.images))
	for i, img := range c.images {
		sel, err := img.Select(names...)
		if err != nil {
			return nil, err
		}
		out[i] = sel
	}
	return NewCollection(out...), nil
}

func (c *Collection) SortByTime() *Collection {
	out := c.Images()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimeStart.Before(out[j].TimeStart)
	})
	return NewCollection(out...)
}

func (c *Collection) Limit(n int) *Collection {
	if n >= len(c.images) {
		return NewCollection(c.Images()...)
	}
	return NewCollection(c.Images()[:n]...)
}

func (c *Collection) Merge(other *Collection) *Collection {
	return NewCollection(append(c.Images(), other.images...)...)
}

// Mean reduces the collection to the per-pixel mean of every band of the
// first image, skipping masked values. Pixels with no valid value stay
// masked. The result carries the grid of the first image but no time or
// properties.
func (c *Collection) Mean() (*Image, error) {
	first, err := c.First()
	if err != nil {
		return nil, err
	}
	out := NewImage(first.Width, first.Height)
	out.GeoTransform = first.GeoTransform
	out.Projection = first.Projection

	n := first.Len()
	for _, name := range first.BandNames() {
		sum := make([]float64, n)
		count := make([]int, n)
		for _, img := range c.images {
			if !img.SameShape(first) {
				return nil, fmt.Errorf("%w: %q is %dx%d, %q is %dx%d", ErrShapeMismatch,
					img.Index, img.Width, img.Height, first.Index, first.Width, first.Height)
			}
			data, err := img.Band(name)
			if err != nil {
				return nil, err
			}
			for p, v := range data {
				if math.IsNaN(v) {
					continue
				}
				sum[p] += v
				count[p]++
			}
		}
		for p := range sum {
			if count[p] == 0 {
				sum[p] = math.NaN()
				continue
			}
			sum[p] /= float64(count[p])
		}
		if err := out.AddBand(name, sum); err != nil {
			return nil, err
		}
	}
	return out, nil
}
