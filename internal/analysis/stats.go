package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes one numeric column.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Count  int     `json:"count"`
}

// CalculateStats computes basic stats for a numeric column. Std is the
// sample standard deviation; it is zero for a single value.
func CalculateStats(values []float64) (Stats, error) {
	if len(values) == 0 {
		return Stats{}, fmt.Errorf("no numeric values")
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	st := Stats{
		Min:   floats.Min(sorted),
		Max:   floats.Max(sorted),
		Mean:  stat.Mean(sorted, nil),
		Count: len(sorted),
	}
	if len(sorted)%2 == 0 {
		st.Median = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	} else {
		st.Median = sorted[len(sorted)/2]
	}
	if len(sorted) > 1 {
		st.Std = stat.StdDev(sorted, nil)
	}
	return st, nil
}

// Quantile returns the p-quantile of values, interpolating linearly between
// the two closest ranks. It returns NaN for an empty slice.
func Quantile(p float64, values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	hi := math.Ceil(h)
	return sorted[int(lo)] + (h-lo)*(sorted[int(hi)]-sorted[int(lo)])
}
