package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"goldenbatch/internal/artifact"
	"goldenbatch/internal/models"
)

// Analyzer combines classifier labels and deviation analysis into one
// report. It keeps no state between calls.
type Analyzer struct {
	Engine *DeviationEngine

	newID func() string
	now   func() time.Time
}

func NewAnalyzer(engine *DeviationEngine) *Analyzer {
	if engine == nil {
		engine = NewDeviationEngine()
	}
	return &Analyzer{Engine: engine, newID: uuid.NewString, now: time.Now}
}

// Analyze evaluates batch against one artifact generation.
func (a *Analyzer) Analyze(batch models.BatchRecord, b *artifact.Bundle) (models.AnalysisResult, error) {
	if b == nil || b.Quality == nil || b.Risk == nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: no artifact bundle", models.ErrArtifactLoad)
	}

	dev, err := a.Engine.Analyze(batch, b.Signature)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	facade := InferenceFacade{GoldenCluster: b.GoldenCluster()}
	cls, err := facade.Classify(batch, b.Quality, b.Risk)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	return models.AnalysisResult{
		ID:               a.newID(),
		Batch:            batch,
		QualityLabel:     cls.QualityLabel,
		RiskLabel:        cls.RiskLabel,
		RiskCode:         cls.RiskCode,
		Deviations:       dev.Deviations,
		OutOfRange:       dev.OutOfRange,
		Suggestions:      dev.Suggestions,
		HealthScore:      dev.HealthScore,
		HealthTier:       Tier(dev.HealthScore),
		SignatureVersion: b.Signature.Version,
		AnalyzedAt:       a.now().UTC(),
	}, nil
}
