// Package cellsio writes S2 cell tables to CSV and parquet.
package cellsio

import (
	"errors"
	"os"
	"sync"

	"cmrset-tools/celltools"
	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	CellRowSize = 8 + 8 + 19*5 + 11
	BytesInGB   = 1024 * 1024 * 1024
)

type CellRow struct {
	S2id  int64   `parquet:"s2_id" csv:"s2_id"`
	Value float64 `parquet:"value" csv:"value"`
	Geom  string  `parquet:"geom" csv:"geom"`
}

// rowBufferSize is the number of rows each worker buffers before flushing,
// sized so that all buffers together stay under memLimitGB.
func rowBufferSize(numWorkers, memLimitGB int) int {
	size := (memLimitGB * BytesInGB / CellRowSize) / ((celltools.DataDuplicationFactor*numWorkers + numWorkers) * 3)
	return max(size, 1)
}

// StreamToParquet drains cellData with numWorkers goroutines into a
// Snappy-compressed parquet file at path.
func StreamToParquet(cellData <-chan celltools.S2CellData, path string, numWorkers int, memLimitGB int) (err error) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	output, err := os.Create(path)
	if err != nil {
		return err
	}

	writer := parquet.NewGenericWriter[CellRow](output, parquet.Compression(&parquet.Snappy))
	defer func() {
		err = errors.Join(err, writer.Close(), output.Close())
	}()

	var mu sync.Mutex
	var written int
	flush := func(rows []CellRow) error {
		mu.Lock()
		defer mu.Unlock()
		if _, err := writer.Write(rows); err != nil {
			return err
		}
		written += len(rows)
		logrus.Infof("Written %d cells", written)
		return writer.Flush()
	}

	bufSize := rowBufferSize(numWorkers, memLimitGB)
	var g errgroup.Group
	for i := 0; i < numWorkers; i++ {
		g.Go(func() error {
			rowBuf := make([]CellRow, 0, bufSize)
			for cell := range cellData {
				rowBuf = append(rowBuf, CellRow{int64(cell.Cell), cell.Data, cell.GeomString})
				if len(rowBuf) == bufSize {
					if err := flush(rowBuf); err != nil {
						return err
					}
					rowBuf = rowBuf[:0]
				}
			}
			if len(rowBuf) > 0 {
				return flush(rowBuf)
			}
			return nil
		})
	}
	return g.Wait()
}
