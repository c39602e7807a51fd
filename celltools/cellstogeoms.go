package celltools

import (
	"fmt"
	"strings"

	"github.com/golang/geo/s2"
)

func cellToWKT(cell s2.Cell) string {
	var sb strings.Builder
	sb.WriteString("POLYGON((")
	for k := 0; k < 4; k++ {
		latlng := s2.LatLngFromPoint(cell.Vertex(k))
		fmt.Fprintf(&sb, "%v %v, ", latlng.Lng.Degrees(), latlng.Lat.Degrees())
	}
	closingPoint := s2.LatLngFromPoint(cell.Vertex(0))
	fmt.Fprintf(&sb, "%v %v))", closingPoint.Lng.Degrees(), closingPoint.Lat.Degrees())
	return sb.String()
}

// cellArea is the area of the cell in square metres.
func cellArea(cell s2.CellID) float64 {
	return s2.CellFromCellID(cell).ExactArea() * EarthRadius * EarthRadius
}

// cellAreaWeight is the ratio of the cell area to the area of the pixel at
// latitude lat, capped at one.
func cellAreaWeight(cell s2.CellID, lat, xRes, yRes float64) float64 {
	pixArea := pixelArea(lat, xRes, yRes)
	if pixArea == 0 {
		return 1
	}
	if area := cellArea(cell); area < pixArea {
		return area / pixArea
	}
	return 1
}
