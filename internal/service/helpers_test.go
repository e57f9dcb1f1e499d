package service

import (
	"time"

	"goldenbatch/internal/models"
)

// testSignature is centred on the nominal operating point with round stds.
func testSignature() models.GoldenSignature {
	return models.NewGoldenSignature("test", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), map[models.Parameter]models.ParamStats{
		models.ParamTemperature: {Mean: 180, Std: 10},
		models.ParamPressure:    {Mean: 30, Std: 2},
		models.ParamPH:          {Mean: 7, Std: 0.1},
		models.ParamMixingSpeed: {Mean: 1200, Std: 50},
		models.ParamEnergyUsed:  {Mean: 500, Std: 25},
	})
}

func atMean() models.BatchRecord {
	return models.BatchRecord{Temperature: 180, Pressure: 30, PH: 7, MixingSpeed: 1200, EnergyUsed: 500}
}

// syntheticHistory builds 36 batches: six golden candidates around mixing
// speed 1000, three around 2000, and 27 hot, energy-hungry batches that
// fail both filters.
func syntheticHistory() []models.HistoricalBatch {
	var h []models.HistoricalBatch
	add := func(t, p, ph, mix, e float64) {
		h = append(h, models.HistoricalBatch{BatchRecord: models.BatchRecord{
			Temperature: t, Pressure: p, PH: ph, MixingSpeed: mix, EnergyUsed: e,
		}})
	}
	for i := 0; i < 6; i++ {
		f := float64(i)
		add(180+f*0.5, 30+f*0.1, 7+f*0.01, 1000+f*5, 100+f)
	}
	for i := 0; i < 3; i++ {
		f := float64(i)
		add(181+f*0.5, 30.2+f*0.1, 7.02+f*0.01, 2000+f*5, 106+f)
	}
	for i := 0; i < 27; i++ {
		f := float64(i)
		add(220+f, 35, 7.5, 1500+f, 500+f)
	}
	return h
}

// fixedPredictor always answers the same class.
type fixedPredictor int

func (p fixedPredictor) Predict(models.BatchRecord) int { return int(p) }
