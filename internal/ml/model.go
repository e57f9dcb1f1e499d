package ml

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"goldenbatch/internal/models"
)

// Purpose says which question a model answers.
type Purpose string

const (
	PurposeQuality Purpose = "quality"
	PurposeRisk    Purpose = "risk"
)

// Model is a trained predictor with the metadata persisted alongside it.
type Model struct {
	ID        string
	Kind      Kind
	Purpose   Purpose
	CreatedAt time.Time
	// GoldenCluster is set on quality models: the cluster id the golden
	// signature was derived from.
	GoldenCluster *int

	predictor Predictor
}

// NewModel wraps an already trained predictor, such as one built outside
// the Trainer.
func NewModel(id string, kind Kind, purpose Purpose, p Predictor) *Model {
	return &Model{ID: id, Kind: kind, Purpose: purpose, CreatedAt: time.Now().UTC(), predictor: p}
}

// Predict delegates to the wrapped family.
func (m *Model) Predict(batch models.BatchRecord) int {
	return m.predictor.Predict(batch)
}

type envelope struct {
	Kind          Kind            `json:"kind"`
	ID            string          `json:"id"`
	Purpose       Purpose         `json:"purpose"`
	CreatedAt     time.Time       `json:"created_at"`
	GoldenCluster *int            `json:"golden_cluster,omitempty"`
	Model         json.RawMessage `json:"model"`
}

// Encode writes the model as a JSON envelope.
func Encode(w io.Writer, m *Model) error {
	payload, err := json.Marshal(m.predictor)
	if err != nil {
		return fmt.Errorf("encode %s model: %w", m.Kind, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope{
		Kind:          m.Kind,
		ID:            m.ID,
		Purpose:       m.Purpose,
		CreatedAt:     m.CreatedAt,
		GoldenCluster: m.GoldenCluster,
		Model:         payload,
	})
}

// Decode reads a model envelope. Any structural problem is reported as
// ErrArtifactLoad so a corrupt file is never half-used.
func Decode(r io.Reader) (*Model, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrArtifactLoad, err)
	}
	if len(env.Model) == 0 {
		return nil, fmt.Errorf("%w: model payload missing", models.ErrArtifactLoad)
	}

	m := &Model{
		ID:            env.ID,
		Kind:          env.Kind,
		Purpose:       env.Purpose,
		CreatedAt:     env.CreatedAt,
		GoldenCluster: env.GoldenCluster,
	}

	switch env.Kind {
	case KindRandomForest:
		var f RandomForest
		if err := json.Unmarshal(env.Model, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrArtifactLoad, err)
		}
		if err := f.validate(); err != nil {
			return nil, fmt.Errorf("%w: random forest: %v", models.ErrArtifactLoad, err)
		}
		m.predictor = &f
	case KindNearestCentroid:
		var nc NearestCentroid
		if err := json.Unmarshal(env.Model, &nc); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrArtifactLoad, err)
		}
		if err := nc.validate(); err != nil {
			return nil, fmt.Errorf("%w: nearest centroid: %v", models.ErrArtifactLoad, err)
		}
		m.predictor = &nc
	default:
		return nil, fmt.Errorf("%w: unknown model kind %q", models.ErrArtifactLoad, env.Kind)
	}
	return m, nil
}
