package models

import (
	"fmt"
	"math"
	"strings"
)

// Parameter names a monitored process parameter.
type Parameter string

const (
	ParamTemperature Parameter = "temperature"
	ParamPressure    Parameter = "pressure"
	ParamPH          Parameter = "ph"
	ParamMixingSpeed Parameter = "mixing_speed"
	ParamEnergyUsed  Parameter = "energy_used"
)

// Parameters lists every monitored parameter in report order.
var Parameters = []Parameter{
	ParamTemperature,
	ParamPressure,
	ParamPH,
	ParamMixingSpeed,
	ParamEnergyUsed,
}

// ProcessParameters are the adjustable set-points. Energy is an outcome,
// so it is clustered on and corrected against only through these four.
var ProcessParameters = []Parameter{
	ParamTemperature,
	ParamPressure,
	ParamPH,
	ParamMixingSpeed,
}

// ParseParameter matches a column or field name case-insensitively.
func ParseParameter(name string) (Parameter, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, " ", "_")
	for _, p := range Parameters {
		if string(p) == key {
			return p, true
		}
	}
	return "", false
}

// BatchRecord is one observed batch. Values are never modified after the
// record is built.
type BatchRecord struct {
	BatchID     string  `json:"batch_id,omitempty"`
	Temperature float64 `json:"temperature"`
	Pressure    float64 `json:"pressure"`
	PH          float64 `json:"ph"`
	MixingSpeed float64 `json:"mixing_speed"`
	EnergyUsed  float64 `json:"energy_used"`
}

// Value returns the reading for p, or 0 for an unknown parameter.
func (b BatchRecord) Value(p Parameter) float64 {
	switch p {
	case ParamTemperature:
		return b.Temperature
	case ParamPressure:
		return b.Pressure
	case ParamPH:
		return b.PH
	case ParamMixingSpeed:
		return b.MixingSpeed
	case ParamEnergyUsed:
		return b.EnergyUsed
	}
	return 0
}

// Vector returns the readings for params in the given order.
func (b BatchRecord) Vector(params []Parameter) []float64 {
	out := make([]float64, len(params))
	for i, p := range params {
		out[i] = b.Value(p)
	}
	return out
}

// Validate rejects NaN and infinite readings.
func (b BatchRecord) Validate() error {
	for _, p := range Parameters {
		if v := b.Value(p); math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is %v", ErrInvalidReading, p, v)
		}
	}
	return nil
}

// WithValue returns a copy of b with p set to v.
func (b BatchRecord) WithValue(p Parameter, v float64) BatchRecord {
	switch p {
	case ParamTemperature:
		b.Temperature = v
	case ParamPressure:
		b.Pressure = v
	case ParamPH:
		b.PH = v
	case ParamMixingSpeed:
		b.MixingSpeed = v
	case ParamEnergyUsed:
		b.EnergyUsed = v
	}
	return b
}

// HistoricalBatch is a past batch used for signature derivation and training.
type HistoricalBatch struct {
	BatchRecord
	QualityScore float64 `json:"quality_score"`
	// SeverityScore is nil when the source carried no severity column.
	SeverityScore *float64 `json:"severity_score,omitempty"`
}
