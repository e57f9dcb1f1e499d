package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"

	"goldenbatch/internal/metrics"
	"goldenbatch/internal/models"
	"goldenbatch/internal/service"
	"goldenbatch/internal/state"
)

const (
	// MaxBodySize bounds a candidate batch request body.
	MaxBodySize = 64 * 1024

	DefaultCacheTTL    = 10 * time.Minute
	DefaultMetricsPath = "/metrics"
)

var validate = validator.New()

// Narrator produces free-text commentary for a finished analysis.
type Narrator interface {
	Narrate(ctx context.Context, result models.AnalysisResult) (string, error)
}

// Options wires a Handler. Store and Analyzer are required.
type Options struct {
	Store    *state.Store
	Analyzer *service.Analyzer
	// Reload rebuilds the artifact bundle from disk and installs it.
	Reload   func() error
	Narrator Narrator
	Metrics  *metrics.Metrics
	// MetricsPath defaults to DefaultMetricsPath.
	MetricsPath string
	CacheTTL    time.Duration
	Logger      *slog.Logger

	// History and Builder back the history preview routes. A zero
	// History.Type disables them.
	History  service.DataSourceConfig
	Builder  *service.SignatureBuilder
	Clusters int
}

type Handler struct {
	store       *state.Store
	analyzer    *service.Analyzer
	reload      func() error
	narrator    Narrator
	metrics     *metrics.Metrics
	metricsPath string
	results     *cache.Cache
	logger      *slog.Logger

	history  service.DataSourceConfig
	builder  *service.SignatureBuilder
	clusters int
}

func NewHandler(opts Options) *Handler {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	builder := opts.Builder
	if builder == nil {
		builder = service.NewSignatureBuilder(logger)
	}
	metricsPath := opts.MetricsPath
	if metricsPath == "" {
		metricsPath = DefaultMetricsPath
	}
	return &Handler{
		store:       opts.Store,
		analyzer:    opts.Analyzer,
		reload:      opts.Reload,
		narrator:    opts.Narrator,
		metrics:     opts.Metrics,
		metricsPath: metricsPath,
		results:     cache.New(ttl, 2*ttl),
		logger:      logger.With("component", "api"),
		history:     opts.History,
		builder:     builder,
		clusters:    opts.Clusters,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	r.Get("/api/status", h.GetStatus)
	r.Get("/api/signature", h.GetSignature)
	r.Post("/api/analyze", h.Analyze)
	r.Get("/api/analyses/{id}", h.GetAnalysis)
	r.Post("/api/reload", h.Reload)

	r.Get("/api/history/tables", h.ListTables)
	r.Post("/api/history/signature", h.PreviewSignature)

	if h.metrics != nil {
		r.Method(http.MethodGet, h.metricsPath, h.metrics.Handler())
	}
}

// ============================================================================
// Health and status
// ============================================================================

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// GetStatus reports which artifact generation is active.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Status())
}

// GetSignature returns the active golden signature.
func (h *Handler) GetSignature(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSignatureResponse(b.Signature))
}

// ============================================================================
// Analysis
// ============================================================================

// Analyze scores one candidate batch against the active artifacts.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.CandidateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.metrics.RecordAnalysisError("invalid_json")
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("invalid JSON: %v", err)})
		return
	}
	if err := validate.Struct(req); err != nil {
		h.metrics.RecordAnalysisError("invalid_input")
		writeJSON(w, http.StatusBadRequest, validationResponse(err))
		return
	}

	b, err := h.store.Current()
	if err != nil {
		h.metrics.RecordAnalysisError("not_loaded")
		h.writeError(w, err)
		return
	}

	result, err := h.analyzer.Analyze(req.Record(), b)
	if err != nil {
		h.metrics.RecordAnalysisError(errorReason(err))
		h.writeError(w, err)
		return
	}

	if narrate, _ := strconv.ParseBool(r.URL.Query().Get("narrate")); narrate && h.narrator != nil {
		text, err := h.narrator.Narrate(r.Context(), result)
		if err != nil {
			h.logger.Warn("narrative unavailable", "analysis_id", result.ID, "error", err)
		} else {
			result.Narrative = text
		}
	}

	h.results.Set(result.ID, result, cache.DefaultExpiration)
	h.metrics.RecordAnalysis(result)
	h.logger.Debug("batch analyzed",
		"analysis_id", result.ID,
		"risk", result.RiskLabel,
		"quality", result.QualityLabel,
		"health", result.HealthScore)

	writeJSON(w, http.StatusOK, result)
}

// GetAnalysis returns a recent analysis by id.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, ok := h.results.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: fmt.Sprintf("analysis %q not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, v.(models.AnalysisResult))
}

// ============================================================================
// Artifacts
// ============================================================================

// Reload re-reads the artifact directory. A failed reload keeps the
// current bundle active.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reload == nil {
		writeJSON(w, http.StatusNotImplemented, models.ErrorResponse{Error: "reload is not configured"})
		return
	}
	if err := h.reload(); err != nil {
		h.logger.Error("artifact reload failed", "error", err)
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ReloadResponse{Status: "reloaded", Active: h.store.Status()})
}

// ============================================================================
// History
// ============================================================================

// ListTables lists tables of the configured SQL history database.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	src, ok := h.openHistory(w)
	if !ok {
		return
	}
	defer src.Close()

	ds, ok := src.(service.DataSource)
	if !ok {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("%s history source has no tables", h.history.Type)})
		return
	}
	tables, err := ds.ListTables(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("error listing tables: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, models.TablesResponse{Tables: tables})
}

// PreviewSignature derives a signature from the configured history and
// returns it without touching the active artifacts. ?clusters=K overrides
// the configured cluster count.
func (h *Handler) PreviewSignature(w http.ResponseWriter, r *http.Request) {
	k := h.clusters
	if raw := r.URL.Query().Get("clusters"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("invalid clusters %q", raw)})
			return
		}
		k = n
	}

	src, ok := h.openHistory(w)
	if !ok {
		return
	}
	defer src.Close()

	history, err := src.LoadHistory(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	d, err := h.builder.Derive(history, k)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.DerivationResponse{
		HistoryRows:   len(history),
		Candidates:    len(d.Candidates),
		ClusterSizes:  d.ClusterSizes,
		GoldenCluster: d.GoldenCluster,
		Signature:     models.NewSignatureResponse(d.Signature),
	})
}

func (h *Handler) openHistory(w http.ResponseWriter) (service.HistorySource, bool) {
	if h.history.Type == "" {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "no history source configured"})
		return nil, false
	}
	src, err := service.OpenHistorySource(h.history)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{Error: fmt.Sprintf("failed to open history: %v", err)})
		return nil, false
	}
	return src, true
}

// ============================================================================
// Responses
// ============================================================================

// StatusFor maps an error to the HTTP status the API answers with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrTrainingData),
		errors.Is(err, models.ErrInvalidReading),
		errors.Is(err, models.ErrInsufficientData),
		errors.Is(err, models.ErrNoGoldenCandidates):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidSignature),
		errors.Is(err, models.ErrUnknownRiskCode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, state.ErrNotLoaded),
		errors.Is(err, models.ErrArtifactLoad):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidReading):
		return "invalid_input"
	case errors.Is(err, models.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, models.ErrUnknownRiskCode):
		return "unknown_risk_code"
	case errors.Is(err, models.ErrArtifactLoad):
		return "artifact"
	}
	return "internal"
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, models.ErrorResponse{Error: err.Error()})
}

func validationResponse(err error) models.ErrorResponse {
	resp := models.ErrorResponse{Error: "invalid candidate batch"}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			resp.Fields[jsonField(fe.StructField())] = fe.Tag()
		}
	}
	return resp
}

// jsonField maps a CandidateRequest field to its JSON name.
func jsonField(structField string) string {
	switch structField {
	case "Temperature":
		return string(models.ParamTemperature)
	case "Pressure":
		return string(models.ParamPressure)
	case "PH":
		return string(models.ParamPH)
	case "MixingSpeed":
		return string(models.ParamMixingSpeed)
	case "EnergyUsed":
		return string(models.ParamEnergyUsed)
	}
	return structField
}

// writeJSON encodes v before writing the header so an unencodable value
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
		status = http.StatusInternalServerError
		buf.Reset()
		json.NewEncoder(&buf).Encode(models.ErrorResponse{Error: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
