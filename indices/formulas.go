// Package indices implements the vegetation, moisture, crop coefficient and
// evapotranspiration formulas of the CMRSET model, a registry resolving
// formula names to band producing transforms, and the Mutate and Transform
// dispatchers that apply them over images.
//
// Equation numbers refer to Guerschman et al. (2009) and Bretreger et al.
// (2020).
package indices

import "math"

const (
	// SAVICanopyL is the canopy background adjustment factor.
	SAVICanopyL = 0.5

	GVMINirOffset  = 0.1
	GVMISwirOffset = 0.02

	// RMI, Equation (5).
	RMISlope     = 0.775
	RMIIntercept = -0.076

	// Rescaled EVI, Equation (8).
	EVIMin = 0.0
	EVIMax = 0.90

	// Rainfall interception, Equation (10).
	KEMax = 0.229

	// Crop coefficient, Equation (11).
	KcMax   = 0.680
	KcA     = 14.12
	KcB     = 7.991
	KcAlpha = 2.482
	KcBeta  = 0.890

	// Kamble and IrriSAT linear crop coefficients, Table 3.
	KambleA  = -0.086
	KambleB  = 1.37
	IrrisatA = -0.1725
	IrrisatB = 1.4571

	// ERA5-Land monthly accumulations are metres per day with evaporation
	// negative; ETa is reported in mm per month.
	MetresToMillimetres = 1000
	DaysPerMonth        = 30.25
)

// clamp limits v to [lo, hi]. NaN stays NaN.
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func floor0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func normalisedDifference(a, b float64) float64 {
	return (a - b) / (a + b)
}

func SAVI(nir, red float64) float64 {
	return (nir - red) * (1 + SAVICanopyL) / (nir + red + SAVICanopyL)
}

func NDVI(nir, red float64) float64 {
	return clamp(normalisedDifference(nir, red), 0, 1)
}

func EVI(nir, red, blue float64) float64 {
	return clamp(2.5*(nir-red)/(nir+6*red-7.5*blue+1), 0, 1)
}

func EVI2(nir, red float64) float64 {
	return clamp(2.5*(nir-red)/(nir+red*2.4+1), 0, 1)
}

// LSWI is the land surface water index.
func LSWI(nir, swir float64) float64 {
	return normalisedDifference(nir, swir)
}

// GVMI is the global vegetation moisture index, Equation (3). swir is either
// SWIR1 or SWIR2 depending on the variant.
func GVMI(nir, swir float64) float64 {
	n := nir + GVMINirOffset
	s := swir + GVMISwirOffset
	return clamp((n-s)/(n+s), 0, 1)
}

// RMI is the residual moisture index, Equation (5).
func RMI(gvmi, evi float64) float64 {
	return clamp(gvmi-(RMISlope*evi+RMIIntercept), 0, 1)
}

func RescaledEVI(evi float64) float64 {
	return clamp((evi-EVIMin)/(EVIMax-EVIMin), 0, 1)
}

// Interception is the rainfall interception fraction KE, Equation (10).
func Interception(evir float64) float64 {
	return KEMax * evir
}

// Kc is the crop coefficient, Equation (11).
func Kc(evir, rmi float64) float64 {
	return KcMax * (1 - math.Exp(-KcA*math.Pow(evir, KcAlpha)-KcB*math.Pow(rmi, KcBeta)))
}

func KcKamble(ndvi float64) float64 {
	return floor0(KambleA + KambleB*ndvi)
}

func KcIrrisat(ndvi float64) float64 {
	return floor0(IrrisatA + IrrisatB*ndvi)
}

func monthlyPET(pet float64) float64 {
	return pet * -1 * MetresToMillimetres * DaysPerMonth
}

// ETa is actual evapotranspiration in mm per month, Equation (9): crop
// transpiration plus intercepted rainfall.
func ETa(kc, pet, ke, precipitation float64) float64 {
	return kc*monthlyPET(pet) + ke*(precipitation*MetresToMillimetres)
}

// ETaFromKc is actual evapotranspiration without the interception term, as
// used with the Kamble and IrriSAT coefficients.
func ETaFromKc(kc, pet float64) float64 {
	return kc * monthlyPET(pet)
}

// Irrest is the irrigation requirement, Equation (2): ETa less rainfall,
// floored at zero.
func Irrest(eta, precipitation float64) float64 {
	return floor0(eta - precipitation*MetresToMillimetres)
}
