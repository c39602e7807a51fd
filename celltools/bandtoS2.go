// Package celltools indexes image bands onto S2 cells, aggregating the pixel
// values that fall in each cell.
package celltools

import (
	"fmt"
	"math"
	"sort"

	"cmrset-tools/scene"
	"github.com/gammazero/workerpool"
	"github.com/golang/geo/s2"
	"github.com/sirupsen/logrus"
)

const (
	EarthRadius = 6371000
	// DataDuplicationFactor is how many copies of a cell's data are held at
	// once between indexing and writing.
	DataDuplicationFactor = 2
	DefaultBlockSize      = 256
)

type S2CellData struct {
	Cell       s2.CellID
	Data       float64
	GeomString string
}

func (c S2CellData) String() string {
	return fmt.Sprintf("%v;%v;%s", int64(c.Cell), c.Data, c.GeomString)
}

type s2CellGeom struct {
	cell s2.CellID
	geom string
}

type AggFunc func(...float64) float64

type ConfigOpts struct {
	NumWorkers int
	S2Lvl      int
	AggFunc    AggFunc
	// BlockSize is the side of the square pixel blocks handed to workers.
	BlockSize int
	// AreaWeighted scales values of pixels larger than their S2 cell by the
	// cell's share of the pixel area. Only meaningful for lon/lat grids.
	AreaWeighted bool
}

func (o ConfigOpts) withDefaults() ConfigOpts {
	if o.NumWorkers < 1 {
		o.NumWorkers = 1
	}
	if o.BlockSize < 1 {
		o.BlockSize = DefaultBlockSize
	}
	if o.AggFunc == nil {
		o.AggFunc = Mean
	}
	return o
}

// Block is a window of an image band in pixel coordinates.
type Block struct {
	X0, Y0 int
	W, H   int
}

type bandContainer struct {
	data []float64
	img  *scene.Image
}

// BandToS2 indexes the valid pixels of band onto S2 cells at opts.S2Lvl and
// aggregates each cell with opts.AggFunc. Results are ordered by cell ID.
func BandToS2(img *scene.Image, band string, opts ConfigOpts) ([]S2CellData, error) {
	var out []S2CellData
	err := StreamBandToS2(img, band, opts, func(cells chan S2CellData) error {
		for c := range cells {
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cell < out[j].Cell })
	return out, nil
}

// StreamBandToS2 runs the indexing pipeline and hands the aggregated cells to
// sink as a channel. The channel is closed once every cell has been sent.
func StreamBandToS2(img *scene.Image, band string, opts ConfigOpts, sink func(chan S2CellData) error) error {
	if opts.S2Lvl < 0 || opts.S2Lvl > s2.MaxLevel {
		return fmt.Errorf("s2 level %d out of range [0, %d]", opts.S2Lvl, s2.MaxLevel)
	}
	opts = opts.withDefaults()
	data, err := img.Band(band)
	if err != nil {
		return err
	}
	bc := &bandContainer{data: data, img: img}

	blocks := genBlocks(img.Width, img.Height, opts.BlockSize)
	resMap := groupByCell(processBlocks(bc, blocks, opts))
	logrus.Infof("Indexed band %q onto %d S2 cells at level %d", band, len(resMap), opts.S2Lvl)

	out := make(chan S2CellData, opts.NumWorkers)
	go func() {
		defer close(out)
		for cellGeom, values := range resMap {
			out <- S2CellData{cellGeom.cell, opts.AggFunc(values...), cellGeom.geom}
		}
	}()
	err = sink(out)
	// Drain so the producer exits if sink returned early.
	for range out {
	}
	return err
}

// genBlocks tiles a width x height grid into blocks of at most size pixels
// per side, in row-major order.
func genBlocks(width, height, size int) []Block {
	logrus.Debug("Entered genBlocks")
	defer logrus.Debug("Exited genBlocks")

	var blocks []Block
	for y0 := 0; y0 < height; y0 += size {
		for x0 := 0; x0 < width; x0 += size {
			blocks = append(blocks, Block{
				X0: x0,
				Y0: y0,
				W:  min(size, width-x0),
				H:  min(size, height-y0),
			})
		}
	}
	return blocks
}

// processBlocks indexes blocks on a worker pool. The returned channel is
// closed once every block is done.
func processBlocks(bc *bandContainer, blocks []Block, opts ConfigOpts) <-chan S2CellData {
	logrus.Debug("Entered processBlocks")
	defer logrus.Debug("Exited processBlocks")

	resCh := make(chan S2CellData, opts.NumWorkers*opts.BlockSize)
	wp := workerpool.New(opts.NumWorkers)
	for _, block := range blocks {
		block := block
		wp.Submit(func() {
			logrus.Debugf("Processing block at [%v, %v]", block.X0, block.Y0)
			blockToS2(bc, block, opts, resCh)
		})
	}
	go func() {
		wp.StopWait()
		close(resCh)
	}()
	return resCh
}

func blockToS2(bc *bandContainer, block Block, opts ConfigOpts, resCh chan<- S2CellData) {
	gt := bc.img.GeoTransform
	for row := block.Y0; row < block.Y0+block.H; row++ {
		for col := block.X0; col < block.X0+block.W; col++ {
			value := bc.data[row*bc.img.Width+col]
			if math.IsNaN(value) {
				continue
			}
			lng, lat := gt.PixelCentre(col, row)
			s2Cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)).Parent(opts.S2Lvl)
			geomString := cellToWKT(s2.CellFromCellID(s2Cell))

			if opts.AreaWeighted {
				value *= cellAreaWeight(s2Cell, lat, math.Abs(gt[1]), math.Abs(gt[5]))
			}
			resCh <- S2CellData{s2Cell, value, geomString}
		}
	}
}

func groupByCell(resCh <-chan S2CellData) map[s2CellGeom][]float64 {
	logrus.Debug("Entered groupByCell")
	defer logrus.Debug("Exited groupByCell")

	outMap := make(map[s2CellGeom][]float64)
	for cellData := range resCh {
		key := s2CellGeom{cellData.Cell, cellData.GeomString}
		outMap[key] = append(outMap[key], cellData.Data)
	}
	return outMap
}

func pixelArea(latitude, xRes, yRes float64) float64 {
	pixWidth := haversinePixelWidth(latitude, xRes)
	pixHeight := (math.Pi / 180) * yRes * EarthRadius
	return pixWidth * pixHeight
}

func haversinePixelWidth(latitude float64, resolution float64) float64 {
	latRad := latitude * math.Pi / 180
	resRad := resolution * math.Pi / 180
	a := math.Pow(math.Cos(latRad), 2) * math.Pow(math.Sin(resRad/2), 2)
	return 2 * EarthRadius * math.Asin(math.Sqrt(a))
}
