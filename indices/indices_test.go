package indices

import (
	"errors"
	"math"
	"testing"
	"time"

	"cmrset-tools/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

func TestGVMISample(t *testing.T) {
	// ((0.30+0.1)-(0.10+0.02))/((0.30+0.1)+(0.10+0.02))
	want := (0.40 - 0.12) / (0.40 + 0.12)
	assert.InDelta(t, want, GVMI(0.30, 0.10), tol)
	assert.InDelta(t, 0.5385, GVMI(0.30, 0.10), 1e-4)
}

func TestEVIClamped(t *testing.T) {
	for _, nir := range []float64{0, 0.05, 0.1, 0.3, 0.6, 0.9, 1} {
		for _, red := range []float64{0, 0.02, 0.1, 0.4, 0.8} {
			for _, blue := range []float64{0, 0.01, 0.05, 0.2} {
				v := EVI(nir, red, blue)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
	}
	assert.InDelta(t, 2.5*(0.4-0.05)/(0.4+6*0.05-7.5*0.02+1), EVI(0.4, 0.05, 0.02), tol)
}

func TestRMI(t *testing.T) {
	cases := []struct {
		name      string
		gvmi, evi float64
		want      float64
	}{
		{"interior", 0.6, 0.5, 0.6 - (0.775*0.5 - 0.076)},
		{"floored", 0.1, 0.9, 0},
		{"capped", 1.0, -1.0, 1},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RMI(tt.gvmi, tt.evi), tol)
		})
	}
}

func TestKc(t *testing.T) {
	evir, rmi := 0.5, 0.2
	want := 0.680 * (1 - math.Exp(-14.12*math.Pow(evir, 2.482)-7.991*math.Pow(rmi, 0.890)))
	assert.InDelta(t, want, Kc(evir, rmi), tol)
	assert.Equal(t, 0.0, Kc(0, 0))
	assert.Less(t, Kc(1, 1), KcMax)
}

func TestLinearCropCoefficients(t *testing.T) {
	assert.InDelta(t, -0.086+1.37*0.5, KcKamble(0.5), tol)
	assert.Equal(t, 0.0, KcKamble(0.01))
	assert.InDelta(t, -0.1725+1.4571*0.5, KcIrrisat(0.5), tol)
	assert.Equal(t, 0.0, KcIrrisat(0.1))
}

func TestETaAndIrrest(t *testing.T) {
	kc, pet, ke, p := 0.5, -0.004, 0.1, 0.001
	eta := ETa(kc, pet, ke, p)
	assert.InDelta(t, 0.5*(0.004*1000*30.25)+0.1*1, eta, tol)
	assert.InDelta(t, 0.5*0.004*1000*30.25, ETaFromKc(kc, pet), tol)

	assert.InDelta(t, eta-1, Irrest(eta, p), tol)
	assert.Equal(t, 0.0, Irrest(10, 0.05), "rainfall above ETa floors at zero")
}

func TestRescaledEVIAndInterception(t *testing.T) {
	assert.InDelta(t, 0.45/0.9, RescaledEVI(0.45), tol)
	assert.Equal(t, 1.0, RescaledEVI(0.95))
	assert.Equal(t, 0.0, RescaledEVI(-0.1))
	assert.InDelta(t, 0.229*0.5, Interception(0.5), tol)
}

func TestNDVIAndSAVI(t *testing.T) {
	assert.InDelta(t, 0.5, NDVI(0.3, 0.1), tol)
	assert.Equal(t, 0.0, NDVI(0.1, 0.3))
	assert.InDelta(t, (0.3-0.1)*1.5/(0.3+0.1+0.5), SAVI(0.3, 0.1), tol)
	assert.InDelta(t, 2.5*0.2/(0.3+0.24+1), EVI2(0.3, 0.1), tol)
	assert.InDelta(t, 0.5, LSWI(0.3, 0.1), tol)
}

func TestLookup(t *testing.T) {
	f, err := Lookup("GVMI2")
	require.NoError(t, err)
	assert.Equal(t, []string{BandNIR, BandSWIR2}, f.Inputs)

	f, err = Lookup("evi")
	require.NoError(t, err)
	assert.Equal(t, "EVI", f.Output)

	f, err = Lookup("rescaled_evi")
	require.NoError(t, err)
	assert.Equal(t, "EVIr", f.Output)

	_, err = Lookup("NDWI")
	assert.True(t, errors.Is(err, ErrUnknownIndex))
	assert.Contains(t, Names(), "irrest_kamble")
}

func reflectanceImage(t *testing.T) *scene.Image {
	t.Helper()
	img := scene.NewImage(2, 1)
	img.TimeStart = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	img.Index = "201501"
	require.NoError(t, img.AddBand(BandBlue, []float64{0.03, 0.03}))
	require.NoError(t, img.AddBand(BandRed, []float64{0.05, math.NaN()}))
	require.NoError(t, img.AddBand(BandNIR, []float64{0.30, 0.30}))
	require.NoError(t, img.AddBand(BandSWIR1, []float64{0.10, 0.10}))
	require.NoError(t, img.AddBand(BandSWIR2, []float64{0.05, 0.05}))
	return img
}

func TestMutateChainsFormulas(t *testing.T) {
	fn, err := Mutate([]string{"EVI", "NDVI", "GVMI", "GVMI2", "RMI", "RMI2", "rescaled_evi", "Kc", "Kc2"}, Options{})
	require.NoError(t, err)
	out, err := fn(reflectanceImage(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"EVI", "NDVI", "GVMI", "GVMI2", "RMI", "RMI2", "EVIr", "Kc", "Kc2"}, out.BandNames())
	assert.Equal(t, "201501", out.Index)

	gvmi, _ := out.Band("GVMI")
	assert.InDelta(t, GVMI(0.30, 0.10), gvmi[0], tol)
	assert.InDelta(t, GVMI(0.30, 0.10), gvmi[1], tol, "GVMI does not depend on red")

	evi, _ := out.Band("EVI")
	assert.True(t, math.IsNaN(evi[1]), "masked red masks EVI")

	kc, _ := out.Band("Kc")
	rmi := RMI(GVMI(0.30, 0.10), EVI(0.30, 0.05, 0.03))
	assert.InDelta(t, Kc(RescaledEVI(EVI(0.30, 0.05, 0.03)), rmi), kc[0], tol)
	assert.True(t, math.IsNaN(kc[1]))

	kc2, _ := out.Band("Kc2")
	assert.Greater(t, kc2[0], kc[0], "SWIR2 is darker so GVMI2, RMI2 and Kc2 are higher")
}

func TestMutateIncludeOrigin(t *testing.T) {
	fn, err := Mutate([]string{"NDVI"}, Options{IncludeOrigin: true})
	require.NoError(t, err)
	out, err := fn(reflectanceImage(t))
	require.NoError(t, err)
	assert.Equal(t, []string{BandBlue, BandRed, BandNIR, BandSWIR1, BandSWIR2, "NDVI"}, out.BandNames())
}

func TestMutateErrors(t *testing.T) {
	_, err := Mutate([]string{"EVI", "nope"}, Options{})
	assert.True(t, errors.Is(err, ErrUnknownIndex))

	fn, err := Mutate([]string{"Kc"}, Options{})
	require.NoError(t, err)
	_, err = fn(reflectanceImage(t))
	assert.True(t, errors.Is(err, scene.ErrBandNotFound))
}

func TestTransformDifferences(t *testing.T) {
	img := scene.NewImage(3, 1)
	require.NoError(t, img.AddBand("RMI", []float64{0.1, 0.4, math.NaN()}))
	require.NoError(t, img.AddBand("RMI2", []float64{0.3, 0.2, 0.5}))

	fn, err := Transform([]string{`RMI = b("RMI2") - b("RMI")`}, Options{Func: MaskPositive})
	require.NoError(t, err)
	out, err := fn(img)
	require.NoError(t, err)

	assert.Equal(t, []string{"RMI"}, out.BandNames())
	data, _ := out.Band("RMI")
	assert.InDelta(t, 0.2, data[0], tol)
	assert.True(t, math.IsNaN(data[1]), "negative differences are masked")
	assert.True(t, math.IsNaN(data[2]), "masked inputs stay masked")
}

func TestTransformOperatorsAndIdentifiers(t *testing.T) {
	img := scene.NewImage(1, 1)
	require.NoError(t, img.AddBand("EVIr", []float64{0.5}))
	require.NoError(t, img.AddBand("RMI", []float64{0.2}))

	fn, err := Transform([]string{
		`Kc = 0.680 * (1 - exp(-14.12 * b('EVIr') ** 2.482 - 7.991 * RMI ** 0.890))`,
	}, Options{IncludeOrigin: true})
	require.NoError(t, err)
	out, err := fn(img)
	require.NoError(t, err)
	data, _ := out.Band("Kc")
	assert.InDelta(t, Kc(0.5, 0.2), data[0], 1e-12)
	assert.Equal(t, []string{"EVIr", "RMI", "Kc"}, out.BandNames())
}

func TestTransformCompilesOnce(t *testing.T) {
	// Type errors surface when the statements are parsed, before any image.
	_, err := Transform([]string{`x = b(1) + 1`}, Options{})
	assert.True(t, errors.Is(err, ErrBadExpression))

	fn, err := Transform([]string{`x = a * 2 + b("a")`}, Options{})
	require.NoError(t, err)

	first := scene.NewImage(1, 1)
	require.NoError(t, first.AddBand("a", []float64{1}))
	second := scene.NewImage(2, 1)
	require.NoError(t, second.AddBand("c", []float64{7, 7}))
	require.NoError(t, second.AddBand("a", []float64{2, 3}))

	out, err := fn(first)
	require.NoError(t, err)
	x, _ := out.Band("x")
	assert.Equal(t, []float64{3}, x)

	out, err = fn(second)
	require.NoError(t, err)
	x, _ = out.Band("x")
	assert.Equal(t, []float64{6, 9}, x)
}

func TestTransformErrors(t *testing.T) {
	_, err := Transform([]string{`b("a") - b("b")`}, Options{})
	assert.True(t, errors.Is(err, ErrBadExpression))

	_, err = Transform([]string{`x = (b("a") -`}, Options{})
	assert.True(t, errors.Is(err, ErrBadExpression))

	fn, err := Transform([]string{`x = b("missing") + 1`}, Options{})
	require.NoError(t, err)
	img := scene.NewImage(1, 1)
	require.NoError(t, img.AddBand("a", []float64{1}))
	_, err = fn(img)
	assert.True(t, errors.Is(err, scene.ErrBandNotFound))
}

func TestMaskPositiveIsPerBand(t *testing.T) {
	img := scene.NewImage(2, 1)
	require.NoError(t, img.AddBand("a", []float64{1, -1}))
	require.NoError(t, img.AddBand("b", []float64{-1, 1}))
	out, err := MaskPositive(img)
	require.NoError(t, err)
	a, _ := out.Band("a")
	b, _ := out.Band("b")
	assert.Equal(t, 1.0, a[0])
	assert.True(t, math.IsNaN(a[1]))
	assert.True(t, math.IsNaN(b[0]))
	assert.Equal(t, 1.0, b[1])
}
