package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"goldenbatch/internal/models"
)

func TestQualityScore(t *testing.T) {
	assert.Equal(t, 100.0, QualityScore(atMean()))

	b := atMean()
	b.Temperature = 190
	b.Pressure = 28
	b.PH = 6.8
	assert.InDelta(t, 100-10-2-1, QualityScore(b), 1e-9)
}

func TestSelectGoldenCandidates(t *testing.T) {
	var history []models.HistoricalBatch
	for _, r := range []struct{ temp, energy float64 }{
		{180, 100}, {181, 110}, {182, 400}, {190, 120},
		{200, 130}, {210, 500}, {220, 600}, {230, 700},
	} {
		history = append(history, models.HistoricalBatch{BatchRecord: models.BatchRecord{
			Temperature: r.temp, Pressure: 30, PH: 7, MixingSpeed: 1200, EnergyUsed: r.energy,
		}})
	}

	got := SelectGoldenCandidates(history)
	require.Len(t, got, 2)
	assert.Equal(t, 180.0, got[0].Temperature)
	assert.Equal(t, 181.0, got[1].Temperature)
	assert.Equal(t, 100.0, got[0].QualityScore)
	assert.Equal(t, 99.0, got[1].QualityScore)
}

func TestSelectGoldenCandidatesIgnoresStoredScore(t *testing.T) {
	history := []models.HistoricalBatch{
		{BatchRecord: models.BatchRecord{Temperature: 180, Pressure: 30, PH: 7, EnergyUsed: 100}, QualityScore: -5},
		{BatchRecord: models.BatchRecord{Temperature: 250, Pressure: 30, PH: 7, EnergyUsed: 900}, QualityScore: 1000},
		{BatchRecord: models.BatchRecord{Temperature: 240, Pressure: 30, PH: 7, EnergyUsed: 800}},
		{BatchRecord: models.BatchRecord{Temperature: 230, Pressure: 30, PH: 7, EnergyUsed: 700}},
	}
	got := SelectGoldenCandidates(history)
	require.Len(t, got, 1)
	assert.Equal(t, 180.0, got[0].Temperature)
}

func TestDeriveSignature(t *testing.T) {
	history := syntheticHistory()
	d, err := NewSignatureBuilder(nil).Derive(history, 2)
	require.NoError(t, err)

	assert.Len(t, d.Candidates, 9)
	assert.Len(t, d.Labels, 9)
	assert.ElementsMatch(t, []int{6, 3}, d.ClusterSizes)
	assert.Equal(t, 6, d.ClusterSizes[d.GoldenCluster])
	for i := 0; i < 6; i++ {
		assert.Equal(t, d.GoldenCluster, d.Labels[i], "candidate %d", i)
	}

	mix := []float64{1000, 1005, 1010, 1015, 1020, 1025}
	st, err := d.Signature.Get(models.ParamMixingSpeed)
	require.NoError(t, err)
	assert.InDelta(t, 1012.5, st.Mean, 1e-9)
	assert.InDelta(t, stat.StdDev(mix, nil), st.Std, 1e-9)

	energy, err := d.Signature.Get(models.ParamEnergyUsed)
	require.NoError(t, err)
	assert.InDelta(t, 102.5, energy.Mean, 1e-9)

	assert.NoError(t, d.Signature.Validate())
	assert.NotEmpty(t, d.Signature.Version)
}

func TestBuildIsDeterministic(t *testing.T) {
	b := NewSignatureBuilder(nil)
	first, err := b.Build(syntheticHistory(), 2)
	require.NoError(t, err)
	second, err := b.Build(syntheticHistory(), 2)
	require.NoError(t, err)
	assert.Equal(t, first.Stats, second.Stats)
}

func TestBuildDefaultsClusters(t *testing.T) {
	d, err := NewSignatureBuilder(nil).Derive(syntheticHistory(), 0)
	require.NoError(t, err)
	assert.Len(t, d.ClusterSizes, DefaultClusters)
}

func TestBuildErrors(t *testing.T) {
	b := NewSignatureBuilder(nil)

	_, err := b.Build(nil, 3)
	assert.True(t, errors.Is(err, models.ErrInsufficientData), "empty history: %v", err)

	same := make([]models.HistoricalBatch, 10)
	for i := range same {
		same[i].BatchRecord = atMean()
	}
	_, err = b.Build(same, 3)
	assert.True(t, errors.Is(err, models.ErrNoGoldenCandidates), "identical history: %v", err)

	// 9 candidates cannot fill 10 clusters
	_, err = b.Build(syntheticHistory(), 10)
	assert.True(t, errors.Is(err, models.ErrInsufficientData), "too many clusters: %v", err)
}
