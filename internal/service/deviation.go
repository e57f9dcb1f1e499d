package service

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"goldenbatch/internal/models"
)

const (
	// DefaultDeviationThreshold is the two-sigma out-of-range rule.
	DefaultDeviationThreshold = 2.0
	// DefaultHealthPenalty is the score lost per unit of mean |z|.
	DefaultHealthPenalty = 15.0

	MaxHealthScore = 100.0
	// Tier boundaries: above OptimalHealthFloor is optimal, above
	// ModerateHealthFloor is moderate, anything else is high deviation.
	OptimalHealthFloor  = 80.0
	ModerateHealthFloor = 60.0
)

// DeviationEngine compares a batch against a golden signature.
type DeviationEngine struct {
	Threshold float64
	Penalty   float64
}

func NewDeviationEngine() *DeviationEngine {
	return &DeviationEngine{
		Threshold: DefaultDeviationThreshold,
		Penalty:   DefaultHealthPenalty,
	}
}

// Analyze computes z-scores for all five parameters, flags those beyond the
// threshold, suggests corrections for flagged process parameters and
// scores overall health.
func (e *DeviationEngine) Analyze(batch models.BatchRecord, sig models.GoldenSignature) (models.DeviationAnalysis, error) {
	report, err := Deviations(batch, sig)
	if err != nil {
		return models.DeviationAnalysis{}, err
	}

	out := models.DeviationAnalysis{
		Deviations:  report,
		OutOfRange:  []models.Parameter{},
		Suggestions: []models.Suggestion{},
		HealthScore: HealthScore(report, e.Penalty),
	}

	for _, p := range models.Parameters {
		if math.Abs(report[p]) <= e.Threshold {
			continue
		}
		out.OutOfRange = append(out.OutOfRange, p)
		if p == models.ParamEnergyUsed {
			continue
		}
		out.Suggestions = append(out.Suggestions, Suggest(p, batch.Value(p), sig.Stats[p].Mean))
	}
	return out, nil
}

// Deviations returns the z-score of every parameter. Non-finite readings
// and z-scores that overflow fail with ErrInvalidReading.
func Deviations(batch models.BatchRecord, sig models.GoldenSignature) (models.DeviationReport, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	report := make(models.DeviationReport, len(models.Parameters))
	for _, p := range models.Parameters {
		st, err := sig.Get(p)
		if err != nil {
			return nil, err
		}
		z := ZScore(batch.Value(p), st)
		if math.IsInf(z, 0) || math.IsNaN(z) {
			return nil, fmt.Errorf("%w: z-score of %s overflows", models.ErrInvalidReading, p)
		}
		report[p] = z
	}
	return report, nil
}

// ZScore standardizes value against st. Callers must have validated st.Std.
func ZScore(value float64, st models.ParamStats) float64 {
	return (value - st.Mean) / st.Std
}

// Suggest points value back toward mean.
func Suggest(p models.Parameter, value, mean float64) models.Suggestion {
	dir := models.DirectionIncrease
	if value > mean {
		dir = models.DirectionDecrease
	}
	return models.Suggestion{
		Parameter: p,
		Direction: dir,
		Magnitude: round2(math.Abs(value - mean)),
		Target:    round2(mean),
	}
}

// HealthScore is MaxHealthScore minus penalty times the mean |z|, floored
// at zero.
func HealthScore(report models.DeviationReport, penalty float64) float64 {
	if len(report) == 0 {
		return MaxHealthScore
	}
	abs := make([]float64, 0, len(report))
	for _, p := range models.Parameters {
		if z, ok := report[p]; ok {
			abs = append(abs, math.Abs(z))
		}
	}
	return math.Max(0, MaxHealthScore-penalty*stat.Mean(abs, nil))
}

// Tier buckets a health score for display.
func Tier(score float64) models.HealthTier {
	switch {
	case score > OptimalHealthFloor:
		return models.TierOptimal
	case score > ModerateHealthFloor:
		return models.TierModerate
	default:
		return models.TierHigh
	}
}

// round2 rounds to cents. Magnitudes too large for cents to matter are
// returned unchanged so the scaling cannot overflow.
func round2(v float64) float64 {
	if math.Abs(v) > 1e15 {
		return v
	}
	return math.Round(v*100) / 100
}
