package cellsio

import (
	"os"

	"cmrset-tools/celltools"
	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
)

func toRows(cellData []celltools.S2CellData) []*CellRow {
	rows := make([]*CellRow, len(cellData))
	for i, cell := range cellData {
		if i%10000 == 0 {
			logrus.Debugf("Converting cell %d", i)
		}
		rows[i] = &CellRow{int64(cell.Cell), cell.Data, cell.GeomString}
	}
	return rows
}

// WriteToCSV writes one row per cell with columns s2_id, value and geom.
func WriteToCSV(cellData []celltools.S2CellData, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	rows := toRows(cellData)
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return err
	}
	logrus.Infof("Wrote %d cells to %s", len(rows), path)
	return f.Sync()
}
