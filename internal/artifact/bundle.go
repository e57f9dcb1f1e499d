package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"goldenbatch/internal/ml"
	"goldenbatch/internal/models"
)

// Default artifact file names.
const (
	DefaultSignatureFile    = "golden_signature.csv"
	DefaultQualityModelFile = "golden_batch_model.json"
	DefaultRiskModelFile    = "risk_model.json"
)

// Paths locates the artifact files. Relative names resolve under Dir.
type Paths struct {
	Dir          string
	Signature    string
	QualityModel string
	RiskModel    string
}

// DefaultPaths uses the default file names under dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		Dir:          dir,
		Signature:    DefaultSignatureFile,
		QualityModel: DefaultQualityModelFile,
		RiskModel:    DefaultRiskModelFile,
	}
}

func (p Paths) resolve(name string) string {
	if filepath.IsAbs(name) || p.Dir == "" {
		return name
	}
	return filepath.Join(p.Dir, name)
}

func (p Paths) SignaturePath() string    { return p.resolve(p.Signature) }
func (p Paths) QualityModelPath() string { return p.resolve(p.QualityModel) }
func (p Paths) RiskModelPath() string    { return p.resolve(p.RiskModel) }

// Paths returns the resolved paths of all artifact files.
func (p Paths) Paths() []string {
	return []string{p.SignaturePath(), p.QualityModelPath(), p.RiskModelPath()}
}

// Bundle is one immutable generation of inference artifacts. Reloading
// builds a new Bundle; an existing one is never modified.
type Bundle struct {
	Signature models.GoldenSignature
	Quality   *ml.Model
	Risk      *ml.Model
	LoadedAt  time.Time
}

// GoldenCluster is the cluster id recorded on the quality model.
func (b *Bundle) GoldenCluster() int {
	if b == nil || b.Quality == nil || b.Quality.GoldenCluster == nil {
		return 0
	}
	return *b.Quality.GoldenCluster
}

// Status summarizes the bundle for the API; a nil bundle reports not loaded.
func (b *Bundle) Status() models.ArtifactStatus {
	if b == nil {
		return models.ArtifactStatus{}
	}
	st := models.ArtifactStatus{
		Loaded:           true,
		SignatureVersion: b.Signature.Version,
		GoldenCluster:    b.GoldenCluster(),
		LoadedAt:         b.LoadedAt,
	}
	if b.Quality != nil {
		st.QualityModelID = b.Quality.ID
	}
	if b.Risk != nil {
		st.RiskModelID = b.Risk.ID
	}
	return st
}

// LoadBundle reads all three artifacts. Any missing or corrupt file fails
// the whole load with ErrArtifactLoad.
func LoadBundle(p Paths) (*Bundle, error) {
	sig, err := LoadSignature(p.SignaturePath())
	if err != nil {
		return nil, err
	}
	quality, err := LoadModel(p.QualityModelPath())
	if err != nil {
		return nil, err
	}
	if quality.GoldenCluster == nil {
		return nil, fmt.Errorf("%w: %s: quality model has no golden cluster", models.ErrArtifactLoad, p.QualityModelPath())
	}
	risk, err := LoadModel(p.RiskModelPath())
	if err != nil {
		return nil, err
	}
	return &Bundle{
		Signature: sig,
		Quality:   quality,
		Risk:      risk,
		LoadedAt:  time.Now().UTC(),
	}, nil
}

// SaveBundle writes all three artifacts, each through a temp file and
// rename so a watcher never sees a half-written file.
func SaveBundle(p Paths, b *Bundle) error {
	if err := SaveSignature(p.SignaturePath(), b.Signature); err != nil {
		return err
	}
	if err := SaveModel(p.QualityModelPath(), b.Quality); err != nil {
		return err
	}
	return SaveModel(p.RiskModelPath(), b.Risk)
}

// LoadSignature reads a signature CSV file.
func LoadSignature(path string) (models.GoldenSignature, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.GoldenSignature{}, fmt.Errorf("%w: %v", models.ErrArtifactLoad, err)
	}
	defer f.Close()

	sig, err := ReadSignature(f)
	if err != nil {
		return models.GoldenSignature{}, fmt.Errorf("%s: %w", path, err)
	}
	return sig, nil
}

// SaveSignature writes a signature CSV file.
func SaveSignature(path string, sig models.GoldenSignature) error {
	return writeAtomic(path, func(f *os.File) error {
		return WriteSignature(f, sig)
	})
}

// LoadModel reads a model envelope file.
func LoadModel(path string) (*ml.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrArtifactLoad, err)
	}
	defer f.Close()

	m, err := ml.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// SaveModel writes a model envelope file.
func SaveModel(path string, m *ml.Model) error {
	if m == nil {
		return fmt.Errorf("save %s: nil model", path)
	}
	return writeAtomic(path, func(f *os.File) error {
		return ml.Encode(f, m)
	})
}

func writeAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
