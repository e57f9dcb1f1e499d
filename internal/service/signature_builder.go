package service

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"goldenbatch/internal/analysis"
	"goldenbatch/internal/models"
)

// Nominal operating point used by the quality score.
const (
	NominalTemperature = 180.0
	NominalPressure    = 30.0
	NominalPH          = 7.0
	// PHWeight scales the pH term relative to temperature and pressure.
	PHWeight = 5.0

	// GoldenQualityQuantile and GoldenEnergyQuantile select batches that
	// are in the top quality quartile and the bottom energy half.
	GoldenQualityQuantile = 0.75
	GoldenEnergyQuantile  = 0.50

	DefaultClusters = 3
)

// QualityScore rewards closeness to the nominal operating point.
func QualityScore(b models.BatchRecord) float64 {
	return 100 -
		math.Abs(b.Temperature-NominalTemperature) -
		math.Abs(b.Pressure-NominalPressure) -
		PHWeight*math.Abs(b.PH-NominalPH)
}

// Derivation is the full outcome of signature derivation. Labels align with
// Candidates and are only meant to feed quality-model training.
type Derivation struct {
	Signature     models.GoldenSignature
	Candidates    []models.HistoricalBatch
	Labels        []int
	ClusterSizes  []int
	GoldenCluster int
}

// SignatureBuilder derives the golden signature from batch history.
type SignatureBuilder struct {
	Seed     uint64
	Restarts int
	MaxIter  int

	logger *slog.Logger
	now    func() time.Time
}

func NewSignatureBuilder(logger *slog.Logger) *SignatureBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignatureBuilder{
		Seed:     42,
		Restarts: 10,
		MaxIter:  300,
		logger:   logger.With("component", "signature"),
		now:      time.Now,
	}
}

// Build returns only the golden signature for history clustered into k
// groups; k <= 0 means DefaultClusters.
func (b *SignatureBuilder) Build(history []models.HistoricalBatch, k int) (models.GoldenSignature, error) {
	d, err := b.Derive(history, k)
	if err != nil {
		return models.GoldenSignature{}, err
	}
	return d.Signature, nil
}

// Derive scores history, keeps the high-quality low-energy batches,
// clusters them on the process parameters and summarizes the largest
// cluster.
func (b *SignatureBuilder) Derive(history []models.HistoricalBatch, k int) (Derivation, error) {
	if k <= 0 {
		k = DefaultClusters
	}
	if len(history) == 0 {
		return Derivation{}, fmt.Errorf("%w: history is empty", models.ErrInsufficientData)
	}

	candidates := SelectGoldenCandidates(history)
	if len(candidates) == 0 {
		return Derivation{}, models.ErrNoGoldenCandidates
	}

	points := make([][]float64, len(candidates))
	for i, c := range candidates {
		points[i] = c.Vector(models.ProcessParameters)
	}
	km := KMeans{K: k, Seed: b.Seed, Restarts: b.Restarts, MaxIter: b.MaxIter}
	clustering, err := km.Fit(points)
	if err != nil {
		return Derivation{}, fmt.Errorf("cluster golden candidates: %w", err)
	}

	golden := clustering.Largest()
	var members []models.HistoricalBatch
	for i, l := range clustering.Labels {
		if l == golden {
			members = append(members, candidates[i])
		}
	}
	if len(members) < 2 {
		return Derivation{}, fmt.Errorf("%w: golden cluster has %d member(s), need 2 for a std", models.ErrInsufficientData, len(members))
	}

	stats := make(map[models.Parameter]models.ParamStats, len(models.Parameters))
	values := make([]float64, len(members))
	for _, p := range models.Parameters {
		for i, m := range members {
			values[i] = m.Value(p)
		}
		mean, std := stat.MeanStdDev(values, nil)
		stats[p] = models.ParamStats{Mean: mean, Std: std}
	}

	sig := models.NewGoldenSignature(uuid.NewString(), b.now().UTC(), stats)
	if err := sig.Validate(); err != nil {
		return Derivation{}, err
	}

	sizes := clustering.Sizes()
	b.logger.Info("golden signature derived",
		"history", len(history),
		"candidates", len(candidates),
		"clusters", k,
		"cluster_sizes", sizes,
		"golden_cluster", golden,
		"version", sig.Version)

	return Derivation{
		Signature:     sig,
		Candidates:    candidates,
		Labels:        clustering.Labels,
		ClusterSizes:  sizes,
		GoldenCluster: golden,
	}, nil
}

// SelectGoldenCandidates recomputes quality scores and keeps batches
// strictly above the quality upper quartile and strictly below the energy
// median.
func SelectGoldenCandidates(history []models.HistoricalBatch) []models.HistoricalBatch {
	if len(history) == 0 {
		return nil
	}
	scored := make([]models.HistoricalBatch, len(history))
	quality := make([]float64, len(history))
	energy := make([]float64, len(history))
	for i, hb := range history {
		hb.QualityScore = QualityScore(hb.BatchRecord)
		scored[i] = hb
		quality[i] = hb.QualityScore
		energy[i] = hb.EnergyUsed
	}

	qCut := analysis.Quantile(GoldenQualityQuantile, quality)
	eCut := analysis.Quantile(GoldenEnergyQuantile, energy)

	var out []models.HistoricalBatch
	for _, hb := range scored {
		if hb.QualityScore > qCut && hb.EnergyUsed < eCut {
			out = append(out, hb)
		}
	}
	return out
}
