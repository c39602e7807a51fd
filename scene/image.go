// Package scene holds the in-memory raster model the rest of the tool works
// on: images made of named float64 bands sharing one grid, and time-ordered
// collections of them.
//
// Masked pixels are NaN. Band data is never written to after it has been
// added to an image, so images may share band slices freely; every operation
// that changes values allocates.
package scene

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

var (
	ErrBandNotFound    = errors.New("band not found")
	ErrDuplicateBand   = errors.New("duplicate band name")
	ErrShapeMismatch   = errors.New("image shapes differ")
	ErrEmptyCollection = errors.New("empty collection")
)

// GeoTransform follows the GDAL affine convention.
type GeoTransform [6]float64

// PixelCentre returns the georeferenced coordinates of the centre of pixel (col, row).
func (gt GeoTransform) PixelCentre(col, row int) (float64, float64) {
	fc := float64(col) + 0.5
	fr := float64(row) + 0.5
	return gt[0] + fc*gt[1] + fr*gt[2], gt[3] + fc*gt[4] + fr*gt[5]
}

// Invert maps georeferenced coordinates to fractional pixel coordinates.
// Rotation terms are ignored.
func (gt GeoTransform) Invert(x, y float64) (float64, float64) {
	return (x - gt[0]) / gt[1], (y - gt[3]) / gt[5]
}

func (gt GeoTransform) valid() bool {
	return gt[1] != 0 && gt[5] != 0
}

type Band struct {
	Name string
	Data []float64
}

type Image struct {
	Width        int
	Height       int
	GeoTransform GeoTransform
	Projection   string
	TimeStart    time.Time
	Index        string
	Properties   map[string]string
	bands        []Band
}

func NewImage(width, height int) *Image {
	return &Image{
		Width:      width,
		Height:     height,
		Properties: make(map[string]string),
	}
}

// NewLike returns an image with the grid and metadata of img and no bands.
func NewLike(img *Image) *Image {
	out := NewImage(img.Width, img.Height)
	out.CopyMetadata(img)
	return out
}

// Constant returns a band of the image's size filled with value.
func (img *Image) Constant(value float64) []float64 {
	data := make([]float64, img.Len())
	for i := range data {
		data[i] = value
	}
	return data
}

func (img *Image) Len() int {
	return img.Width * img.Height
}

func (img *Image) NumBands() int {
	return len(img.bands)
}

func (img *Image) BandNames() []string {
	names := make([]string, len(img.bands))
	for i, b := range img.bands {
		names[i] = b.Name
	}
	return names
}

func (img *Image) Bands() []Band {
	out := make([]Band, len(img.bands))
	copy(out, img.bands)
	return out
}

func (img *Image) bandIndex(name string) int {
	for i, b := range img.bands {
		if b.Name == name {
			return i
		}
	}
	return -1
}

func (img *Image) HasBand(name string) bool {
	return img.bandIndex(name) >= 0
}

func (img *Image) Band(name string) ([]float64, error) {
	i := img.bandIndex(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q in image %q", ErrBandNotFound, name, img.Index)
	}
	return img.bands[i].Data, nil
}

func (img *Image) AddBand(name string, data []float64) error {
	if len(data) != img.Len() {
		return fmt.Errorf("%w: band %q has %d values, image has %d pixels", ErrShapeMismatch, name, len(data), img.Len())
	}
	if img.HasBand(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateBand, name)
	}
	img.bands = append(img.bands, Band{Name: name, Data: data})
	return nil
}

// SetBand replaces the band called name, or appends it when absent.
func (img *Image) SetBand(name string, data []float64) error {
	if len(data) != img.Len() {
		return fmt.Errorf("%w: band %q has %d values, image has %d pixels", ErrShapeMismatch, name, len(data), img.Len())
	}
	if i := img.bandIndex(name); i >= 0 {
		img.bands[i].Data = data
		return nil
	}
	img.bands = append(img.bands, Band{Name: name, Data: data})
	return nil
}

// AddBands appends every band of others. The images must share the grid of img.
func (img *Image) AddBands(others ...*Image) error {
	for _, other := range others {
		if !img.SameShape(other) {
			return fmt.Errorf("%w: %dx%d and %dx%d", ErrShapeMismatch, img.Width, img.Height, other.Width, other.Height)
		}
		for _, b := range other.bands {
			if err := img.AddBand(b.Name, b.Data); err != nil {
				return err
			}
		}
	}
	return nil
}

func (img *Image) Select(names ...string) (*Image, error) {
	out := NewLike(img)
	for _, name := range names {
		data, err := img.Band(name)
		if err != nil {
			return nil, err
		}
		if err := out.AddBand(name, data); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (img *Image) RenameBand(from, to string) error {
	i := img.bandIndex(from)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrBandNotFound, from)
	}
	if from != to && img.HasBand(to) {
		return fmt.Errorf("%w: %q", ErrDuplicateBand, to)
	}
	img.bands[i].Name = to
	return nil
}

func (img *Image) Clone() *Image {
	out := NewLike(img)
	out.bands = img.Bands()
	return out
}

func (img *Image) CopyMetadata(from *Image) {
	img.GeoTransform = from.GeoTransform
	img.Projection = from.Projection
	img.TimeStart = from.TimeStart
	img.Index = from.Index
	if img.Properties == nil {
		img.Properties = make(map[string]string, len(from.Properties))
	}
	for k, v := range from.Properties {
		img.Properties[k] = v
	}
}

func (img *Image) Set(key, value string) {
	if img.Properties == nil {
		img.Properties = make(map[string]string)
	}
	img.Properties[key] = value
}

func (img *Image) Get(key string) (string, bool) {
	v, ok := img.Properties[key]
	return v, ok
}

func (img *Image) SameShape(other *Image) bool {
	return img.Width == other.Width && img.Height == other.Height
}

func (img *Image) sameGrid(other *Image) bool {
	return img.SameShape(other) && img.GeoTransform == other.GeoTransform
}

// UpdateMask masks every band where mask is false. Pixels already masked stay masked.
func (img *Image) UpdateMask(mask []bool) (*Image, error) {
	if len(mask) != img.Len() {
		return nil, fmt.Errorf("%w: mask has %d values, image has %d pixels", ErrShapeMismatch, len(mask), img.Len())
	}
	out := NewLike(img)
	for _, b := range img.bands {
		data := make([]float64, len(b.Data))
		for i, v := range b.Data {
			if mask[i] {
				data[i] = v
			} else {
				data[i] = math.NaN()
			}
		}
		out.bands = append(out.bands, Band{Name: b.Name, Data: data})
	}
	return out, nil
}

// Bounds returns the georeferenced extent of the image.
func (img *Image) Bounds() orb.Bound {
	x0, y0 := img.corner(0, 0)
	x1, y1 := img.corner(img.Width, img.Height)
	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

func (img *Image) corner(col, row int) (float64, float64) {
	gt := img.GeoTransform
	return gt[0] + float64(col)*gt[1] + float64(row)*gt[2], gt[3] + float64(col)*gt[4] + float64(row)*gt[5]
}

// Regrid resamples every band onto the grid of like with nearest-neighbour
// lookup. Both images are assumed to share a coordinate system. Target
// pixels outside img are masked.
func (img *Image) Regrid(like *Image) (*Image, error) {
	if img.sameGrid(like) {
		return img.Clone(), nil
	}
	if !img.GeoTransform.valid() || !like.GeoTransform.valid() {
		return nil, fmt.Errorf("%w: cannot regrid without a geotransform", ErrShapeMismatch)
	}
	if img.Projection != "" && like.Projection != "" && img.Projection != like.Projection {
		logrus.Warnf("Regridding %q across differing projections, assuming equivalent CRS", img.Index)
	}

	lookup := make([]int, like.Len())
	for row := 0; row < like.Height; row++ {
		for col := 0; col < like.Width; col++ {
			x, y := like.GeoTransform.PixelCentre(col, row)
			fc, fr := img.GeoTransform.Invert(x, y)
			sc, sr := int(math.Floor(fc)), int(math.Floor(fr))
			idx := -1
			if sc >= 0 && sc < img.Width && sr >= 0 && sr < img.Height {
				idx = sr*img.Width + sc
			}
			lookup[row*like.Width+col] = idx
		}
	}

	out := NewImage(like.Width, like.Height)
	out.CopyMetadata(img)
	out.GeoTransform = like.GeoTransform
	out.Projection = like.Projection
	for _, b := range img.bands {
		data := make([]float64, len(lookup))
		for i, src := range lookup {
			if src < 0 {
				data[i] = math.NaN()
				continue
			}
			data[i] = b.Data[src]
		}
		out.bands = append(out.bands, Band{Name: b.Name, Data: data})
	}
	return out, nil
}

// Pixelwise evaluates fn at every pixel over the named input bands and
// returns a single-band image called out carrying img's metadata. A pixel
// masked in any input is masked in the output without calling fn.
func (img *Image) Pixelwise(out string, inputs []string, fn func(v []float64) float64) (*Image, error) {
	src := make([][]float64, len(inputs))
	for i, name := range inputs {
		data, err := img.Band(name)
		if err != nil {
			return nil, err
		}
		src[i] = data
	}

	res := NewLike(img)
	data := make([]float64, img.Len())
	v := make([]float64, len(inputs))
pixels:
	for p := range data {
		for i := range src {
			v[i] = src[i][p]
			if math.IsNaN(v[i]) {
				data[p] = math.NaN()
				continue pixels
			}
		}
		data[p] = fn(v)
	}
	if err := res.AddBand(out, data); err != nil {
		return nil, err
	}
	return res, nil
}
