package models

import "time"

// CandidateRequest is the body of POST /api/analyze. Pointers let the
// validator tell a missing field from a zero reading.
type CandidateRequest struct {
	BatchID     string   `json:"batch_id"`
	Temperature *float64 `json:"temperature" validate:"required"`
	Pressure    *float64 `json:"pressure" validate:"required"`
	PH          *float64 `json:"ph" validate:"required"`
	MixingSpeed *float64 `json:"mixing_speed" validate:"required"`
	EnergyUsed  *float64 `json:"energy_used" validate:"required"`
}

// Record converts a validated request into a BatchRecord.
func (c CandidateRequest) Record() BatchRecord {
	return BatchRecord{
		BatchID:     c.BatchID,
		Temperature: deref(c.Temperature),
		Pressure:    deref(c.Pressure),
		PH:          deref(c.PH),
		MixingSpeed: deref(c.MixingSpeed),
		EnergyUsed:  deref(c.EnergyUsed),
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// ArtifactStatus describes the loaded artifact bundle.
type ArtifactStatus struct {
	Loaded           bool      `json:"loaded"`
	SignatureVersion string    `json:"signature_version,omitempty"`
	QualityModelID   string    `json:"quality_model_id,omitempty"`
	RiskModelID      string    `json:"risk_model_id,omitempty"`
	GoldenCluster    int       `json:"golden_cluster"`
	LoadedAt         time.Time `json:"loaded_at,omitempty"`
}

// SignatureRow is one line of the signature table.
type SignatureRow struct {
	Parameter Parameter `json:"parameter"`
	Mean      float64   `json:"mean"`
	Std       float64   `json:"std"`
}

// SignatureResponse is returned by GET /api/signature.
type SignatureResponse struct {
	Version   string         `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	Rows      []SignatureRow `json:"rows"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// NewSignatureResponse lays the signature out in parameter order.
func NewSignatureResponse(sig GoldenSignature) SignatureResponse {
	resp := SignatureResponse{Version: sig.Version, CreatedAt: sig.CreatedAt}
	for _, p := range Parameters {
		st, ok := sig.Stats[p]
		if !ok {
			continue
		}
		resp.Rows = append(resp.Rows, SignatureRow{Parameter: p, Mean: st.Mean, Std: st.Std})
	}
	return resp
}

// DerivationResponse previews a signature derived from the configured
// history without installing it.
type DerivationResponse struct {
	HistoryRows   int               `json:"history_rows"`
	Candidates    int               `json:"candidates"`
	ClusterSizes  []int             `json:"cluster_sizes"`
	GoldenCluster int               `json:"golden_cluster"`
	Signature     SignatureResponse `json:"signature"`
}

// TablesResponse lists tables of a SQL history source.
type TablesResponse struct {
	Tables []string `json:"tables"`
}

// ReloadResponse reports the bundle installed by POST /api/reload.
type ReloadResponse struct {
	Status string         `json:"status"`
	Active ArtifactStatus `json:"active"`
}
