package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldenbatch/internal/ml"
	"goldenbatch/internal/models"
)

func testModel(id string, purpose ml.Purpose, golden *int) *ml.Model {
	nc := &ml.NearestCentroid{
		Features:  models.Parameters,
		Classes:   3,
		Centroids: [][]float64{{18, 15, 70, 24, 20}, nil, {22, 17, 72, 40, 30}},
		Scale:     []float64{10, 2, 0.1, 50, 25},
	}
	m := ml.NewModel(id, ml.KindNearestCentroid, purpose, nc)
	m.GoldenCluster = golden
	return m
}

func testBundle() *Bundle {
	golden := 0
	return &Bundle{
		Signature: testSignature(),
		Quality:   testModel("quality-1", ml.PurposeQuality, &golden),
		Risk:      testModel("risk-1", ml.PurposeRisk, nil),
	}
}

func TestSaveLoadBundle(t *testing.T) {
	p := DefaultPaths(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, SaveBundle(p, testBundle()))

	for _, path := range p.Paths() {
		assert.FileExists(t, path)
	}
	leftovers, err := filepath.Glob(filepath.Join(p.Dir, ".*tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	b, err := LoadBundle(p)
	require.NoError(t, err)
	assert.Equal(t, "sig-1", b.Signature.Version)
	assert.Equal(t, "quality-1", b.Quality.ID)
	assert.Equal(t, "risk-1", b.Risk.ID)
	assert.Equal(t, 0, b.GoldenCluster())
	assert.WithinDuration(t, time.Now(), b.LoadedAt, time.Minute)

	candidate := models.BatchRecord{Temperature: 220, Pressure: 34, PH: 7.2, MixingSpeed: 2000, EnergyUsed: 750}
	assert.Equal(t, 2, b.Risk.Predict(candidate))

	st := b.Status()
	assert.True(t, st.Loaded)
	assert.Equal(t, "quality-1", st.QualityModelID)
}

func TestLoadBundleMissingFile(t *testing.T) {
	p := DefaultPaths(t.TempDir())
	require.NoError(t, SaveBundle(p, testBundle()))
	require.NoError(t, os.Remove(p.RiskModelPath()))

	_, err := LoadBundle(p)
	assert.True(t, errors.Is(err, models.ErrArtifactLoad), "got %v", err)
}

func TestLoadBundleCorruptModel(t *testing.T) {
	p := DefaultPaths(t.TempDir())
	require.NoError(t, SaveBundle(p, testBundle()))
	require.NoError(t, os.WriteFile(p.QualityModelPath(), []byte(`{"kind":"random_forest"`), 0o644))

	_, err := LoadBundle(p)
	assert.True(t, errors.Is(err, models.ErrArtifactLoad), "got %v", err)
}

func TestLoadBundleQualityWithoutGoldenCluster(t *testing.T) {
	p := DefaultPaths(t.TempDir())
	b := testBundle()
	b.Quality.GoldenCluster = nil
	require.NoError(t, SaveBundle(p, b))

	_, err := LoadBundle(p)
	assert.True(t, errors.Is(err, models.ErrArtifactLoad), "got %v", err)
}

func TestPathsResolve(t *testing.T) {
	p := Paths{Dir: "/srv/artifacts", Signature: "sig.csv", QualityModel: "/opt/q.json", RiskModel: "r.json"}
	assert.Equal(t, filepath.Join("/srv/artifacts", "sig.csv"), p.SignaturePath())
	assert.Equal(t, "/opt/q.json", p.QualityModelPath())
	assert.Equal(t, []string{filepath.Join("/srv/artifacts", "sig.csv"), "/opt/q.json", filepath.Join("/srv/artifacts", "r.json")}, p.Paths())
}

func TestNilBundleStatus(t *testing.T) {
	var b *Bundle
	assert.False(t, b.Status().Loaded)
	assert.Equal(t, 0, b.GoldenCluster())
}
