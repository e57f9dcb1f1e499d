package service

import (
	"fmt"

	"goldenbatch/internal/ml"
	"goldenbatch/internal/models"
)

// Quality labels.
const (
	QualityGoldenMatch = "Golden Match"
	QualityDeviation   = "Deviation Detected"
)

var riskLabels = map[int]string{
	ml.RiskLow:      "Low Risk",
	ml.RiskModerate: "Moderate Risk",
	ml.RiskHigh:     "High Risk",
}

// RiskLabel maps a risk class to its display label.
func RiskLabel(code int) (string, error) {
	label, ok := riskLabels[code]
	if !ok {
		return "", fmt.Errorf("%w: %d", models.ErrUnknownRiskCode, code)
	}
	return label, nil
}

// QualityLabel reports whether the predicted cluster is the golden one.
func QualityLabel(cluster, goldenCluster int) string {
	if cluster == goldenCluster {
		return QualityGoldenMatch
	}
	return QualityDeviation
}

// Classification is the labelled output of both classifiers.
type Classification struct {
	QualityClass int
	QualityLabel string
	RiskCode     int
	RiskLabel    string
}

// InferenceFacade runs the learned classifiers and owns label mapping.
type InferenceFacade struct {
	GoldenCluster int
}

// Classify predicts quality and risk for one batch.
func (f InferenceFacade) Classify(batch models.BatchRecord, quality, risk ml.Predictor) (Classification, error) {
	if quality == nil || risk == nil {
		return Classification{}, fmt.Errorf("%w: classifier not loaded", models.ErrArtifactLoad)
	}
	cluster := quality.Predict(batch)
	code := risk.Predict(batch)

	riskLabel, err := RiskLabel(code)
	if err != nil {
		return Classification{}, err
	}
	return Classification{
		QualityClass: cluster,
		QualityLabel: QualityLabel(cluster, f.GoldenCluster),
		RiskCode:     code,
		RiskLabel:    riskLabel,
	}, nil
}
