package celltools

import (
	"math"
	"reflect"
	"testing"

	"cmrset-tools/scene"
	"github.com/golang/geo/s2"
)

func TestPointToS2(t *testing.T) {
	latLng := s2.LatLngFromDegrees(1.0, 2.0)
	s2Cell := s2.CellIDFromLatLng(latLng).Parent(11)

	if s2Cell.Level() != 11 {
		t.Errorf("got level %d, want 11", s2Cell.Level())
	}
	if !s2.CellFromCellID(s2Cell).ContainsPoint(s2.PointFromLatLng(latLng)) {
		t.Errorf("cell %v does not contain %v", s2Cell, latLng)
	}
}

func setUpImage(t testing.TB) *scene.Image {
	t.Helper()
	img := scene.NewImage(2, 2)
	img.GeoTransform = scene.GeoTransform{0.0, 1.0, 0.0, 0.0, 0.0, -1.0}
	if err := img.AddBand("irrest", []float64{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	return img
}

func TestBandToS2(t *testing.T) {
	img := setUpImage(t)
	opts := ConfigOpts{
		NumWorkers: 2,
		S2Lvl:      11,
		AggFunc:    Mean,
		BlockSize:  1,
	}
	s2Data, err := BandToS2(img, "irrest", opts)
	if err != nil {
		t.Fatal(err)
	}

	centres := [][2]float64{{-0.5, 0.5}, {-0.5, 1.5}, {-1.5, 0.5}, {-1.5, 1.5}}
	want := make(map[s2.CellID]float64)
	for i, c := range centres {
		cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(c[0], c[1])).Parent(11)
		want[cell] = float64(i + 1)
	}

	got := make(map[s2.CellID]float64)
	for i, d := range s2Data {
		if i > 0 && s2Data[i-1].Cell >= d.Cell {
			t.Errorf("cells not sorted at %d", i)
		}
		if d.GeomString != cellToWKT(s2.CellFromCellID(d.Cell)) {
			t.Errorf("geometry mismatch for cell %v", d.Cell)
		}
		got[d.Cell] = d.Data
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, \nwant %v", got, want)
	}
}

func TestBandToS2Aggregation(t *testing.T) {
	img := setUpImage(t)
	tests := []struct {
		name string
		agg  AggFunc
		want float64
	}{
		{"mean", Mean, 2.5},
		{"sum", Sum, 10},
		{"max", Max, 4},
		{"min", Min, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s2Data, err := BandToS2(img, "irrest", ConfigOpts{NumWorkers: 4, S2Lvl: 0, AggFunc: tt.agg})
			if err != nil {
				t.Fatal(err)
			}
			if len(s2Data) != 1 {
				t.Fatalf("got %d cells, want 1", len(s2Data))
			}
			if s2Data[0].Data != tt.want {
				t.Errorf("got %v, want %v", s2Data[0].Data, tt.want)
			}
		})
	}
}

func TestBandToS2SkipsMasked(t *testing.T) {
	img := scene.NewImage(2, 1)
	img.GeoTransform = scene.GeoTransform{0.0, 1.0, 0.0, 0.0, 0.0, -1.0}
	if err := img.AddBand("irrest", []float64{math.NaN(), 5}); err != nil {
		t.Fatal(err)
	}
	s2Data, err := BandToS2(img, "irrest", ConfigOpts{S2Lvl: 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(s2Data) != 1 || s2Data[0].Data != 5 {
		t.Errorf("got %v, want a single cell of 5", s2Data)
	}
}

func TestBandToS2Errors(t *testing.T) {
	img := setUpImage(t)
	if _, err := BandToS2(img, "nope", ConfigOpts{S2Lvl: 11}); err == nil {
		t.Error("expected an error for a missing band")
	}
	if _, err := BandToS2(img, "irrest", ConfigOpts{S2Lvl: 31}); err == nil {
		t.Error("expected an error for an invalid level")
	}
}

func TestGenBlocks(t *testing.T) {
	blocks := genBlocks(5, 3, 2)
	want := []Block{
		{0, 0, 2, 2}, {2, 0, 2, 2}, {4, 0, 1, 2},
		{0, 2, 2, 1}, {2, 2, 2, 1}, {4, 2, 1, 1},
	}
	if !reflect.DeepEqual(blocks, want) {
		t.Errorf("got %v, \nwant %v", blocks, want)
	}
}

func TestAreaWeighting(t *testing.T) {
	img := setUpImage(t)
	// Level 0 cells are far larger than a pixel, so nothing is scaled.
	s2Data, err := BandToS2(img, "irrest", ConfigOpts{S2Lvl: 0, AggFunc: Sum, AreaWeighted: true})
	if err != nil {
		t.Fatal(err)
	}
	if s2Data[0].Data != 10 {
		t.Errorf("got %v, want 10", s2Data[0].Data)
	}

	// Level 20 cells are a few square metres against a one degree pixel.
	s2Data, err = BandToS2(img, "irrest", ConfigOpts{S2Lvl: 20, AreaWeighted: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range s2Data {
		if d.Data <= 0 || d.Data >= 1e-6 {
			t.Errorf("cell %v: weighted value %v not in (0, 1e-6)", d.Cell, d.Data)
		}
	}
}

func TestAggFuncs(t *testing.T) {
	values := []float64{-3, -1, -2}
	if got := Max(values...); got != -1 {
		t.Errorf("Max got %v, want -1", got)
	}
	if got := Min(values...); got != -3 {
		t.Errorf("Min got %v, want -3", got)
	}
	if got := Mean(); !math.IsNaN(got) {
		t.Errorf("Mean of nothing got %v, want NaN", got)
	}
	for _, name := range []string{"mean", "SUM", "max", "min"} {
		if _, err := ParseAggFunc(name); err != nil {
			t.Errorf("ParseAggFunc(%q): %v", name, err)
		}
	}
	if _, err := ParseAggFunc("sumln"); err == nil {
		t.Error("expected an error for an unknown function")
	}
}
