package ml

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldenbatch/internal/models"
)

// threeGroups returns batches separated by mixing speed into classes 0, 1
// and 2, with small jitter on the other parameters.
func threeGroups() ([]models.BatchRecord, []int) {
	var batches []models.BatchRecord
	var labels []int
	for c := 0; c < 3; c++ {
		for i := 0; i < 10; i++ {
			f := float64(i)
			batches = append(batches, models.BatchRecord{
				Temperature: 178 + f*0.4,
				Pressure:    29 + float64((i*7)%5)*0.4,
				PH:          6.9 + float64((i*3)%4)*0.05,
				MixingSpeed: 1000 + float64(c)*500 + f*10,
				EnergyUsed:  400 + float64(c)*100 + f*2,
			})
			labels = append(labels, c)
		}
	}
	return batches, labels
}

func sampleFor(class int) models.BatchRecord {
	return models.BatchRecord{
		Temperature: 180,
		Pressure:    30,
		PH:          7,
		MixingSpeed: 1045 + float64(class)*500,
		EnergyUsed:  409 + float64(class)*100,
	}
}

func TestNewDatasetErrors(t *testing.T) {
	batches, labels := threeGroups()

	_, err := NewDataset(nil, nil, models.Parameters)
	assert.True(t, errors.Is(err, models.ErrTrainingData))

	_, err = NewDataset(batches, labels[:3], models.Parameters)
	assert.True(t, errors.Is(err, models.ErrTrainingData))

	_, err = NewDataset(batches, labels, nil)
	assert.True(t, errors.Is(err, models.ErrTrainingData))

	bad := append([]int(nil), labels...)
	bad[0] = -1
	_, err = NewDataset(batches, bad, models.Parameters)
	assert.True(t, errors.Is(err, models.ErrTrainingData))

	ds, err := NewDataset(batches, labels, models.Parameters)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Classes)
	assert.Len(t, ds.X, 30)
}

func TestRandomForestSeparable(t *testing.T) {
	batches, labels := threeGroups()
	ds, err := NewDataset(batches, labels, models.Parameters)
	require.NoError(t, err)

	f, err := TrainRandomForest(context.Background(), ds, ForestParams{Trees: 25, MinSamplesSplit: 2, Seed: 42})
	require.NoError(t, err)
	assert.Len(t, f.Trees, 25)

	correct := 0
	for i, b := range batches {
		if f.Predict(b) == labels[i] {
			correct++
		}
	}
	assert.GreaterOrEqual(t, correct, 28)
	for c := 0; c < 3; c++ {
		assert.Equal(t, c, f.Predict(sampleFor(c)), "class %d", c)
	}
}

func TestRandomForestDeterministic(t *testing.T) {
	batches, labels := threeGroups()
	ds, err := NewDataset(batches, labels, models.Parameters)
	require.NoError(t, err)

	p := ForestParams{Trees: 10, Seed: 7}
	a, err := TrainRandomForest(context.Background(), ds, p)
	require.NoError(t, err)
	b, err := TrainRandomForest(context.Background(), ds, p)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRandomForestCancelled(t *testing.T) {
	batches, labels := threeGroups()
	ds, err := NewDataset(batches, labels, models.Parameters)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = TrainRandomForest(ctx, ds, DefaultForestParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNearestCentroid(t *testing.T) {
	batches, labels := threeGroups()
	ds, err := NewDataset(batches, labels, models.Parameters)
	require.NoError(t, err)

	nc, err := TrainNearestCentroid(ds)
	require.NoError(t, err)
	for c := 0; c < 3; c++ {
		assert.Equal(t, c, nc.Predict(sampleFor(c)), "class %d", c)
	}
}

func TestMajorityTieBreak(t *testing.T) {
	assert.Equal(t, 0, majority([]int{2, 2, 1}))
	assert.Equal(t, 1, majority([]int{1, 3, 3}))
	assert.Equal(t, 2, majority([]int{0, 0, 1}))
}

func TestRiskThresholdsBucket(t *testing.T) {
	r := DefaultRiskThresholds()
	tests := []struct {
		severity float64
		want     int
	}{
		{0, RiskLow},
		{9.999, RiskLow},
		{10, RiskModerate},
		{19.99, RiskModerate},
		{20, RiskHigh},
		{120, RiskHigh},
		{-3, RiskLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Bucket(tt.severity), "severity=%v", tt.severity)
	}
}

func severityHistory() []models.HistoricalBatch {
	batches, labels := threeGroups()
	history := make([]models.HistoricalBatch, len(batches))
	for i, b := range batches {
		s := float64(labels[i])*10 + 5
		history[i] = models.HistoricalBatch{BatchRecord: b, SeverityScore: &s}
	}
	return history
}

func TestTrainerRiskModel(t *testing.T) {
	tr := NewTrainer(nil)
	tr.Forest.Trees = 15

	m, err := tr.TrainRiskModel(context.Background(), severityHistory())
	require.NoError(t, err)
	assert.Equal(t, PurposeRisk, m.Purpose)
	assert.Equal(t, KindRandomForest, m.Kind)
	assert.Nil(t, m.GoldenCluster)
	for c := 0; c < 3; c++ {
		assert.Equal(t, c, m.Predict(sampleFor(c)))
	}
}

func TestTrainerRiskModelKeepsThreeClasses(t *testing.T) {
	history := severityHistory()[:10] // only low severity
	tr := NewTrainer(nil)
	tr.Kind = KindNearestCentroid

	m, err := tr.TrainRiskModel(context.Background(), history)
	require.NoError(t, err)
	nc := m.predictor.(*NearestCentroid)
	assert.Equal(t, 3, nc.Classes)
	assert.Equal(t, RiskLow, m.Predict(sampleFor(2)))
}

func TestTrainerRiskModelRequiresSeverity(t *testing.T) {
	history := severityHistory()
	history[4].SeverityScore = nil

	_, err := NewTrainer(nil).TrainRiskModel(context.Background(), history)
	assert.True(t, errors.Is(err, models.ErrTrainingData))
	assert.Contains(t, err.Error(), "row 5")
}

func TestTrainerQualityModel(t *testing.T) {
	batches, labels := threeGroups()
	golden := make([]models.HistoricalBatch, len(batches))
	for i, b := range batches {
		golden[i] = models.HistoricalBatch{BatchRecord: b}
	}

	tr := NewTrainer(nil)
	tr.Forest.Trees = 15
	m, err := tr.TrainQualityModel(context.Background(), golden, labels, 1)
	require.NoError(t, err)
	require.NotNil(t, m.GoldenCluster)
	assert.Equal(t, 1, *m.GoldenCluster)
	assert.Equal(t, PurposeQuality, m.Purpose)
	assert.Equal(t, 1, m.Predict(sampleFor(1)))

	_, err = tr.TrainQualityModel(context.Background(), golden, labels[:5], 0)
	assert.True(t, errors.Is(err, models.ErrTrainingData))
}

func TestModelEncodeDecode(t *testing.T) {
	for _, kind := range []Kind{KindRandomForest, KindNearestCentroid} {
		t.Run(string(kind), func(t *testing.T) {
			batches, labels := threeGroups()
			golden := make([]models.HistoricalBatch, len(batches))
			for i, b := range batches {
				golden[i] = models.HistoricalBatch{BatchRecord: b}
			}
			tr := NewTrainer(nil)
			tr.Kind = kind
			tr.Forest.Trees = 10
			m, err := tr.TrainQualityModel(context.Background(), golden, labels, 2)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, m))

			got, err := Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, m.ID, got.ID)
			assert.Equal(t, kind, got.Kind)
			assert.Equal(t, 2, *got.GoldenCluster)
			assert.True(t, m.CreatedAt.Equal(got.CreatedAt))
			for _, b := range batches {
				assert.Equal(t, m.Predict(b), got.Predict(b))
			}
		})
	}
}

func TestDecodeRejectsCorruptModels(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", "garbage"},
		{"truncated", `{"kind":"random_forest","id":"x","model":{"features":["temperature"]`},
		{"no payload", `{"kind":"random_forest","id":"x"}`},
		{"unknown kind", `{"kind":"svm","id":"x","model":{}}`},
		{"empty forest", `{"kind":"random_forest","id":"x","model":{"features":["temperature"],"classes":2,"trees":[]}}`},
		{"bad feature", `{"kind":"nearest_centroid","id":"x","model":{"features":["humidity"],"classes":1,"centroids":[[1]],"scale":[1]}}`},
		{"class out of range", `{"kind":"random_forest","id":"x","model":{"features":["temperature"],"classes":2,"trees":[{"nodes":[{"f":0,"t":0,"l":-1,"r":-1,"c":5}]}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.in))
			assert.True(t, errors.Is(err, models.ErrArtifactLoad), "got %v", err)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindRandomForest, k)

	k, err = ParseKind("nearest_centroid")
	require.NoError(t, err)
	assert.Equal(t, KindNearestCentroid, k)

	_, err = ParseKind("svm")
	assert.Error(t, err)
}
