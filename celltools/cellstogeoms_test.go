package celltools

import (
	"math"
	"strings"
	"testing"

	"github.com/golang/geo/s2"
)

func TestCellToWKT(t *testing.T) {
	cell := s2.CellFromCellID(s2.CellIDFromLatLng(s2.LatLngFromDegrees(-35.1, 144.1)).Parent(11))
	wktString := cellToWKT(cell)

	if !strings.HasPrefix(wktString, "POLYGON((") || !strings.HasSuffix(wktString, "))") {
		t.Fatalf("not a WKT polygon: %s", wktString)
	}
	points := strings.Split(strings.TrimSuffix(strings.TrimPrefix(wktString, "POLYGON(("), "))"), ", ")
	if len(points) != 5 {
		t.Fatalf("got %d points, want 5", len(points))
	}
	if points[0] != points[4] {
		t.Errorf("ring not closed: %s != %s", points[0], points[4])
	}
}

func TestCellArea(t *testing.T) {
	// Six faces cover the sphere.
	face := s2.CellIDFromFace(0)
	want := 4 * math.Pi * EarthRadius * EarthRadius / 6
	if got := cellArea(face); math.Abs(got-want)/want > 1e-9 {
		t.Errorf("got %v, want %v", got, want)
	}
}
