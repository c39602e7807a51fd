package celltools

import (
	"fmt"
	"math"
	"strings"
)

func Mean(inData ...float64) float64 {
	if len(inData) == 0 {
		return math.NaN()
	}
	sum := Sum(inData...)
	return sum / float64(len(inData))
}

func Sum(inData ...float64) float64 {
	var sum float64
	for _, val := range inData {
		sum += val
	}
	return sum
}

func Max(inData ...float64) float64 {
	max := math.Inf(-1)
	for _, val := range inData {
		if val > max {
			max = val
		}
	}
	if len(inData) == 0 {
		return math.NaN()
	}
	return max
}

func Min(inData ...float64) float64 {
	min := math.Inf(1)
	for _, val := range inData {
		if val < min {
			min = val
		}
	}
	if len(inData) == 0 {
		return math.NaN()
	}
	return min
}

// ParseAggFunc maps mean, sum, max or min to its AggFunc.
func ParseAggFunc(name string) (AggFunc, error) {
	switch strings.ToLower(name) {
	case "mean":
		return Mean, nil
	case "sum":
		return Sum, nil
	case "max":
		return Max, nil
	case "min":
		return Min, nil
	}
	return nil, fmt.Errorf("aggregation function %q not recognised, choose from: mean, sum, max, min", name)
}
