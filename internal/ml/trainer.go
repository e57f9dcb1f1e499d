package ml

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"goldenbatch/internal/models"
)

// Risk classes produced by RiskThresholds.Bucket.
const (
	RiskLow      = 0
	RiskModerate = 1
	RiskHigh     = 2
)

// Default severity cut points for risk labelling.
const (
	DefaultModerateSeverity = 10.0
	DefaultHighSeverity     = 20.0
)

// RiskThresholds bucket a severity score into a risk class.
type RiskThresholds struct {
	Moderate float64
	High     float64
}

// DefaultRiskThresholds returns the 10/20 cut points.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{Moderate: DefaultModerateSeverity, High: DefaultHighSeverity}
}

// Bucket maps severity < Moderate to low, < High to moderate, else high.
func (t RiskThresholds) Bucket(severity float64) int {
	switch {
	case severity < t.Moderate:
		return RiskLow
	case severity < t.High:
		return RiskModerate
	default:
		return RiskHigh
	}
}

// Trainer fits the quality and risk classifiers.
type Trainer struct {
	Kind   Kind
	Forest ForestParams
	Risk   RiskThresholds

	logger *slog.Logger
	now    func() time.Time
}

// NewTrainer returns a random forest trainer with default parameters.
func NewTrainer(logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{
		Kind:   KindRandomForest,
		Forest: DefaultForestParams(),
		Risk:   DefaultRiskThresholds(),
		logger: logger.With("component", "trainer"),
		now:    time.Now,
	}
}

// TrainQualityModel learns to place a batch into one of the golden-candidate
// clusters. goldenCluster is recorded so predictions can be labelled.
func (t *Trainer) TrainQualityModel(ctx context.Context, golden []models.HistoricalBatch, clusterLabels []int, goldenCluster int) (*Model, error) {
	ds, err := NewDataset(records(golden), clusterLabels, models.Parameters)
	if err != nil {
		return nil, fmt.Errorf("quality model: %w", err)
	}
	m, err := t.fit(ctx, ds, PurposeQuality)
	if err != nil {
		return nil, fmt.Errorf("quality model: %w", err)
	}
	gc := goldenCluster
	m.GoldenCluster = &gc
	return m, nil
}

// TrainRiskModel labels history with RiskThresholds and learns the buckets.
// Every row must carry a severity score.
func (t *Trainer) TrainRiskModel(ctx context.Context, history []models.HistoricalBatch) (*Model, error) {
	labels := make([]int, len(history))
	for i, hb := range history {
		if hb.SeverityScore == nil {
			return nil, fmt.Errorf("risk model: %w: row %d has no severity_score", models.ErrTrainingData, i+1)
		}
		labels[i] = t.Risk.Bucket(*hb.SeverityScore)
	}
	ds, err := NewDataset(records(history), labels, models.Parameters)
	if err != nil {
		return nil, fmt.Errorf("risk model: %w", err)
	}
	// keep all three risk classes addressable even if one is absent
	if ds.Classes < RiskHigh+1 {
		ds.Classes = RiskHigh + 1
	}
	m, err := t.fit(ctx, ds, PurposeRisk)
	if err != nil {
		return nil, fmt.Errorf("risk model: %w", err)
	}
	return m, nil
}

func (t *Trainer) fit(ctx context.Context, ds Dataset, purpose Purpose) (*Model, error) {
	start := t.now()
	m := &Model{
		ID:        uuid.NewString(),
		Kind:      t.Kind,
		Purpose:   purpose,
		CreatedAt: start.UTC(),
	}

	switch t.Kind {
	case KindRandomForest, "":
		m.Kind = KindRandomForest
		f, err := TrainRandomForest(ctx, ds, t.Forest)
		if err != nil {
			return nil, err
		}
		m.predictor = f
	case KindNearestCentroid:
		nc, err := TrainNearestCentroid(ds)
		if err != nil {
			return nil, err
		}
		m.predictor = nc
	default:
		return nil, fmt.Errorf("unknown model kind %q", t.Kind)
	}

	t.logger.Info("model trained",
		"purpose", purpose,
		"kind", m.Kind,
		"rows", len(ds.X),
		"classes", ds.Classes,
		"duration", t.now().Sub(start))
	return m, nil
}

func records(history []models.HistoricalBatch) []models.BatchRecord {
	out := make([]models.BatchRecord, len(history))
	for i, hb := range history {
		out[i] = hb.BatchRecord
	}
	return out
}
