package config

import (
	"log/slog"

	"goldenbatch/internal/artifact"
	"goldenbatch/internal/llm"
	"goldenbatch/internal/ml"
	"goldenbatch/internal/service"
)

// Paths resolves the artifact file locations.
func (c ArtifactsConfig) Paths() artifact.Paths {
	return artifact.Paths{
		Dir:          c.Dir,
		Signature:    c.SignatureFile,
		QualityModel: c.QualityModelFile,
		RiskModel:    c.RiskModelFile,
	}
}

// DataSource converts the history section into a data source config.
func (c HistoryConfig) DataSource() service.DataSourceConfig {
	return service.DataSourceConfig{
		Type:  c.Source,
		Path:  c.Path,
		DSN:   c.DSN,
		Table: c.Table,
	}
}

// DeviationEngine returns an engine with the configured threshold and
// health penalty.
func (c AnalysisConfig) DeviationEngine() *service.DeviationEngine {
	return &service.DeviationEngine{Threshold: c.DeviationThreshold, Penalty: c.HealthPenalty}
}

// SignatureBuilder returns a builder seeded from the training section.
func (c TrainingConfig) SignatureBuilder(logger *slog.Logger) *service.SignatureBuilder {
	b := service.NewSignatureBuilder(logger)
	b.Seed = c.Seed
	b.Restarts = c.KMeansRestarts
	b.MaxIter = c.KMeansMaxIter
	return b
}

// Trainer returns a classifier trainer for the configured model family and
// risk thresholds.
func (c *Config) Trainer(logger *slog.Logger) (*ml.Trainer, error) {
	kind, err := ml.ParseKind(c.Training.ModelKind)
	if err != nil {
		return nil, err
	}
	t := ml.NewTrainer(logger)
	t.Kind = kind
	t.Forest = ml.ForestParams{
		Trees:           c.Training.Trees,
		MaxDepth:        c.Training.MaxDepth,
		MinSamplesSplit: c.Training.MinSamplesSplit,
		Seed:            c.Training.Seed,
	}
	t.Risk = ml.RiskThresholds{Moderate: c.Risk.ModerateThreshold, High: c.Risk.HighThreshold}
	return t, nil
}

// LLM returns the narrative client config.
func (c LLMConfig) LLM() llm.Config {
	return llm.Config{BaseURL: c.BaseURL, Model: c.Model, Timeout: c.Timeout}
}
