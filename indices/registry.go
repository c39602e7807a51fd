package indices

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"cmrset-tools/scene"
)

var ErrUnknownIndex = errors.New("unknown index")

// Band names shared with the Landsat and ERA5 loaders.
const (
	BandBlue          = "blue"
	BandRed           = "red"
	BandNIR           = "nir"
	BandSWIR1         = "swir1"
	BandSWIR2         = "swir2"
	BandPET           = "potential_evaporation"
	BandPrecipitation = "total_precipitation"
)

// Formula produces the band Output from the bands Inputs, pixel by pixel.
type Formula struct {
	Name   string
	Output string
	Inputs []string
	Fn     func(v []float64) float64
}

// Apply evaluates the formula over img and returns a single-band image.
func (f Formula) Apply(img *scene.Image) (*scene.Image, error) {
	out, err := img.Pixelwise(f.Output, f.Inputs, f.Fn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return out, nil
}

var registry = map[string]Formula{}

// Register adds f to the registry, replacing any formula of the same name.
func Register(f Formula) {
	registry[f.Name] = f
}

// Lookup resolves name exactly first, then ignoring case.
func Lookup(name string) (Formula, error) {
	if f, ok := registry[name]; ok {
		return f, nil
	}
	for key, f := range registry {
		if strings.EqualFold(key, name) {
			return f, nil
		}
	}
	return Formula{}, fmt.Errorf("%w: %q", ErrUnknownIndex, name)
}

// Names lists the registered formula names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func gvmiFormula(name, swir string) Formula {
	return Formula{name, name, []string{BandNIR, swir}, func(v []float64) float64 { return GVMI(v[0], v[1]) }}
}

func rmiFormula(name, gvmi string) Formula {
	return Formula{name, name, []string{gvmi, "EVI"}, func(v []float64) float64 { return RMI(v[0], v[1]) }}
}

func kcFormula(name, rmi string) Formula {
	return Formula{name, name, []string{"EVIr", rmi}, func(v []float64) float64 { return Kc(v[0], v[1]) }}
}

func etaFormula(name, kc string) Formula {
	return Formula{name, name, []string{kc, BandPET, "KE", BandPrecipitation}, func(v []float64) float64 {
		return ETa(v[0], v[1], v[2], v[3])
	}}
}

func etaFromKcFormula(name, kc string) Formula {
	return Formula{name, name, []string{kc, BandPET}, func(v []float64) float64 { return ETaFromKc(v[0], v[1]) }}
}

func irrestFormula(name, eta string) Formula {
	return Formula{name, name, []string{eta, BandPrecipitation}, func(v []float64) float64 { return Irrest(v[0], v[1]) }}
}

func init() {
	for _, f := range []Formula{
		{"EVI", "EVI", []string{BandNIR, BandRed, BandBlue}, func(v []float64) float64 { return EVI(v[0], v[1], v[2]) }},
		{"EVI2", "EVI2", []string{BandNIR, BandRed}, func(v []float64) float64 { return EVI2(v[0], v[1]) }},
		{"NDVI", "NDVI", []string{BandNIR, BandRed}, func(v []float64) float64 { return NDVI(v[0], v[1]) }},
		{"SAVI", "SAVI", []string{BandNIR, BandRed}, func(v []float64) float64 { return SAVI(v[0], v[1]) }},
		{"LSWI", "LSWI", []string{BandNIR, BandSWIR1}, func(v []float64) float64 { return LSWI(v[0], v[1]) }},
		gvmiFormula("GVMI", BandSWIR1),
		gvmiFormula("GVMI2", BandSWIR2),
		rmiFormula("RMI", "GVMI"),
		rmiFormula("RMI2", "GVMI2"),
		{"rescaled_evi", "EVIr", []string{"EVI"}, func(v []float64) float64 { return RescaledEVI(v[0]) }},
		{"PInterception", "KE", []string{"EVIr"}, func(v []float64) float64 { return Interception(v[0]) }},
		kcFormula("Kc", "RMI"),
		kcFormula("Kc2", "RMI2"),
		{"Kc_kamble", "Kc_kamble", []string{"NDVI"}, func(v []float64) float64 { return KcKamble(v[0]) }},
		{"Kc_irrisat", "Kc_irrisat", []string{"NDVI"}, func(v []float64) float64 { return KcIrrisat(v[0]) }},
		etaFormula("ETa_swir1", "Kc"),
		etaFormula("ETa_swir2", "Kc2"),
		etaFromKcFormula("ETa_kamble", "Kc_kamble"),
		etaFromKcFormula("ETa_irrisat", "Kc_irrisat"),
		irrestFormula("irrest_swir1", "ETa_swir1"),
		irrestFormula("irrest_swir2", "ETa_swir2"),
		irrestFormula("irrest_kamble", "ETa_kamble"),
		irrestFormula("irrest_irrisat", "ETa_irrisat"),
	} {
		Register(f)
	}
}
