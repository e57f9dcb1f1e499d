// Package ml holds the learned classifiers behind a single-method
// Predictor contract, plus their training and artifact encoding.
package ml

import (
	"fmt"

	"goldenbatch/internal/models"
)

// Predictor maps a batch to a class id. Implementations are pure and safe
// for concurrent use once trained.
type Predictor interface {
	Predict(batch models.BatchRecord) int
}

// Kind identifies a model family in persisted artifacts.
type Kind string

const (
	KindRandomForest    Kind = "random_forest"
	KindNearestCentroid Kind = "nearest_centroid"
)

// ParseKind validates a configured model family name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRandomForest, KindNearestCentroid:
		return Kind(s), nil
	case "":
		return KindRandomForest, nil
	}
	return "", fmt.Errorf("unknown model kind %q", s)
}

// Dataset is a dense feature matrix with integer class labels.
type Dataset struct {
	Features []models.Parameter
	X        [][]float64
	Y        []int
	Classes  int
}

// NewDataset extracts features from batches. Labels must be non-negative
// and aligned with batches.
func NewDataset(batches []models.BatchRecord, labels []int, features []models.Parameter) (Dataset, error) {
	if len(batches) == 0 {
		return Dataset{}, fmt.Errorf("%w: no rows", models.ErrTrainingData)
	}
	if len(labels) != len(batches) {
		return Dataset{}, fmt.Errorf("%w: %d labels for %d rows", models.ErrTrainingData, len(labels), len(batches))
	}
	if len(features) == 0 {
		return Dataset{}, fmt.Errorf("%w: no feature columns", models.ErrTrainingData)
	}

	ds := Dataset{
		Features: append([]models.Parameter(nil), features...),
		X:        make([][]float64, len(batches)),
		Y:        append([]int(nil), labels...),
	}
	for i, b := range batches {
		ds.X[i] = b.Vector(features)
		if labels[i] < 0 {
			return Dataset{}, fmt.Errorf("%w: negative label %d at row %d", models.ErrTrainingData, labels[i], i+1)
		}
		if labels[i]+1 > ds.Classes {
			ds.Classes = labels[i] + 1
		}
	}
	return ds, nil
}

// majority returns the most frequent class, preferring the lower id on ties.
func majority(counts []int) int {
	best := 0
	for c := 1; c < len(counts); c++ {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
