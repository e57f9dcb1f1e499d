package models

import (
	"fmt"
	"math"
	"time"
)

// ParamStats is the golden mean and allowed variation of one parameter.
type ParamStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// GoldenSignature is the reference profile derived from the dominant cluster
// of golden batches. It is read-only once built; a retrain produces a new
// signature with a new Version.
type GoldenSignature struct {
	Version   string                   `json:"version"`
	CreatedAt time.Time                `json:"created_at"`
	Stats     map[Parameter]ParamStats `json:"parameters"`
}

// NewGoldenSignature copies stats so later changes to the caller's map do
// not leak into the signature.
func NewGoldenSignature(version string, createdAt time.Time, stats map[Parameter]ParamStats) GoldenSignature {
	cp := make(map[Parameter]ParamStats, len(stats))
	for k, v := range stats {
		cp[k] = v
	}
	return GoldenSignature{Version: version, CreatedAt: createdAt, Stats: cp}
}

// Get returns the stats for p, failing with ErrInvalidSignature when they are
// missing or the std cannot be divided by.
func (s GoldenSignature) Get(p Parameter) (ParamStats, error) {
	st, ok := s.Stats[p]
	if !ok {
		return ParamStats{}, fmt.Errorf("%w: no entry for %s", ErrInvalidSignature, p)
	}
	if math.IsNaN(st.Mean) || math.IsInf(st.Mean, 0) {
		return ParamStats{}, fmt.Errorf("%w: mean of %s is %v", ErrInvalidSignature, p, st.Mean)
	}
	if !(st.Std > 0) || math.IsInf(st.Std, 0) {
		return ParamStats{}, fmt.Errorf("%w: std of %s is %v", ErrInvalidSignature, p, st.Std)
	}
	return st, nil
}

// Validate checks every parameter in params (all five when empty).
func (s GoldenSignature) Validate(params ...Parameter) error {
	if len(params) == 0 {
		params = Parameters
	}
	for _, p := range params {
		if _, err := s.Get(p); err != nil {
			return err
		}
	}
	return nil
}
