package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"goldenbatch/internal/models"
)

// NearestCentroid assigns the class whose mean feature vector is closest in
// standardized space. Classes absent from training keep a nil centroid.
type NearestCentroid struct {
	Features  []models.Parameter `json:"features"`
	Classes   int                `json:"classes"`
	Centroids [][]float64        `json:"centroids"`
	Scale     []float64          `json:"scale"`
}

// TrainNearestCentroid computes class means over features scaled by their
// overall standard deviation.
func TrainNearestCentroid(ds Dataset) (*NearestCentroid, error) {
	if len(ds.X) == 0 {
		return nil, fmt.Errorf("%w: no rows", models.ErrTrainingData)
	}
	nf := len(ds.Features)

	scale := make([]float64, nf)
	col := make([]float64, len(ds.X))
	for f := 0; f < nf; f++ {
		for i, row := range ds.X {
			col[i] = row[f]
		}
		sd := 0.0
		if len(col) > 1 {
			sd = stat.StdDev(col, nil)
		}
		if !(sd > 0) {
			sd = 1
		}
		scale[f] = sd
	}

	sums := make([][]float64, ds.Classes)
	counts := make([]int, ds.Classes)
	for i, row := range ds.X {
		c := ds.Y[i]
		if sums[c] == nil {
			sums[c] = make([]float64, nf)
		}
		floats.Add(sums[c], row)
		counts[c]++
	}

	nc := &NearestCentroid{
		Features:  append([]models.Parameter(nil), ds.Features...),
		Classes:   ds.Classes,
		Centroids: make([][]float64, ds.Classes),
		Scale:     scale,
	}
	for c := range sums {
		if counts[c] == 0 {
			continue
		}
		centroid := make([]float64, nf)
		floats.ScaleTo(centroid, 1/float64(counts[c]), sums[c])
		floats.Div(centroid, scale)
		nc.Centroids[c] = centroid
	}
	return nc, nil
}

// Predict returns the nearest class, preferring the lower id on ties.
func (nc *NearestCentroid) Predict(batch models.BatchRecord) int {
	x := batch.Vector(nc.Features)
	floats.Div(x, nc.Scale)

	best, bestDist := 0, math.Inf(1)
	for c, centroid := range nc.Centroids {
		if centroid == nil {
			continue
		}
		d := floats.Distance(x, centroid, 2)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func (nc *NearestCentroid) validate() error {
	if err := validateFeatures(nc.Features); err != nil {
		return err
	}
	if nc.Classes < 1 || len(nc.Centroids) != nc.Classes {
		return fmt.Errorf("centroid count %d does not match classes %d", len(nc.Centroids), nc.Classes)
	}
	if len(nc.Scale) != len(nc.Features) {
		return fmt.Errorf("scale has %d entries for %d features", len(nc.Scale), len(nc.Features))
	}
	for f, s := range nc.Scale {
		if !(s > 0) {
			return fmt.Errorf("scale of feature %d is %v", f, s)
		}
	}
	found := false
	for c, centroid := range nc.Centroids {
		if centroid == nil {
			continue
		}
		if len(centroid) != len(nc.Features) {
			return fmt.Errorf("centroid %d has %d values", c, len(centroid))
		}
		found = true
	}
	if !found {
		return fmt.Errorf("no centroids")
	}
	return nil
}
