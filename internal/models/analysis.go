package models

import (
	"fmt"
	"time"
)

// DeviationReport maps each parameter to its z-score against the signature.
type DeviationReport map[Parameter]float64

// Direction of a correction suggestion.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// Suggestion is a prescriptive adjustment toward the golden mean.
type Suggestion struct {
	Parameter Parameter `json:"param"`
	Direction Direction `json:"direction"`
	Magnitude float64   `json:"magnitude"`
	Target    float64   `json:"target"`
}

func (s Suggestion) String() string {
	return fmt.Sprintf("%s %s by %.2f (target %.2f)", s.Direction, s.Parameter, s.Magnitude, s.Target)
}

// HealthTier buckets a health score for display.
type HealthTier string

const (
	TierOptimal  HealthTier = "optimal"
	TierModerate HealthTier = "moderate deviation"
	TierHigh     HealthTier = "high deviation"
)

// DeviationAnalysis is the deterministic half of an analysis.
type DeviationAnalysis struct {
	Deviations  DeviationReport `json:"deviations"`
	OutOfRange  []Parameter     `json:"out_of_range"`
	Suggestions []Suggestion    `json:"suggestions"`
	HealthScore float64         `json:"health_score"`
}

// AnalysisResult is the combined per-request report.
type AnalysisResult struct {
	ID               string          `json:"id"`
	Batch            BatchRecord     `json:"batch"`
	QualityLabel     string          `json:"quality_label"`
	RiskLabel        string          `json:"risk_label"`
	RiskCode         int             `json:"risk_code"`
	Deviations       DeviationReport `json:"deviations"`
	OutOfRange       []Parameter     `json:"out_of_range"`
	Suggestions      []Suggestion    `json:"suggestions"`
	HealthScore      float64         `json:"health_score"`
	HealthTier       HealthTier      `json:"health_tier"`
	SignatureVersion string          `json:"signature_version"`
	AnalyzedAt       time.Time       `json:"analyzed_at"`
	Narrative        string          `json:"narrative,omitempty"`
}
