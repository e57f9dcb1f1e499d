// Package config loads goldenbatch settings from a YAML file, environment
// variables and built-in defaults, in decreasing order of precedence after
// explicit flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. GOLDENBATCH_SERVER_PORT.
const EnvPrefix = "GOLDENBATCH"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	Training  TrainingConfig  `mapstructure:"training" yaml:"training"`
	Analysis  AnalysisConfig  `mapstructure:"analysis" yaml:"analysis"`
	Risk      RiskConfig      `mapstructure:"risk" yaml:"risk"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

type ServerConfig struct {
	Port        int           `mapstructure:"port" yaml:"port"`
	CORSOrigins []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

type ArtifactsConfig struct {
	Dir              string `mapstructure:"dir" yaml:"dir"`
	SignatureFile    string `mapstructure:"signature_file" yaml:"signature_file"`
	QualityModelFile string `mapstructure:"quality_model_file" yaml:"quality_model_file"`
	RiskModelFile    string `mapstructure:"risk_model_file" yaml:"risk_model_file"`
	Watch            bool   `mapstructure:"watch" yaml:"watch"`
}

type TrainingConfig struct {
	Clusters        int    `mapstructure:"clusters" yaml:"clusters"`
	Seed            uint64 `mapstructure:"seed" yaml:"seed"`
	ModelKind       string `mapstructure:"model_kind" yaml:"model_kind"`
	Trees           int    `mapstructure:"trees" yaml:"trees"`
	MaxDepth        int    `mapstructure:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int    `mapstructure:"min_samples_split" yaml:"min_samples_split"`
	KMeansRestarts  int    `mapstructure:"kmeans_restarts" yaml:"kmeans_restarts"`
	KMeansMaxIter   int    `mapstructure:"kmeans_max_iter" yaml:"kmeans_max_iter"`
}

type AnalysisConfig struct {
	DeviationThreshold float64 `mapstructure:"deviation_threshold" yaml:"deviation_threshold"`
	HealthPenalty      float64 `mapstructure:"health_penalty" yaml:"health_penalty"`
}

type RiskConfig struct {
	ModerateThreshold float64 `mapstructure:"moderate_threshold" yaml:"moderate_threshold"`
	HighThreshold     float64 `mapstructure:"high_threshold" yaml:"high_threshold"`
}

type HistoryConfig struct {
	Source string `mapstructure:"source" yaml:"source"`
	Path   string `mapstructure:"path" yaml:"path"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
	Table  string `mapstructure:"table" yaml:"table"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

type LLMConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Model   string        `mapstructure:"model" yaml:"model"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:        8001,
			CORSOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			CacheTTL:    10 * time.Minute,
		},
		Artifacts: ArtifactsConfig{
			Dir:              "./artifacts",
			SignatureFile:    "golden_signature.csv",
			QualityModelFile: "golden_batch_model.json",
			RiskModelFile:    "risk_model.json",
			Watch:            true,
		},
		Training: TrainingConfig{
			Clusters:        3,
			Seed:            42,
			ModelKind:       "random_forest",
			Trees:           100,
			MaxDepth:        0,
			MinSamplesSplit: 2,
			KMeansRestarts:  10,
			KMeansMaxIter:   300,
		},
		Analysis: AnalysisConfig{
			DeviationThreshold: 2.0,
			HealthPenalty:      15.0,
		},
		Risk: RiskConfig{
			ModerateThreshold: 10,
			HighThreshold:     20,
		},
		History: HistoryConfig{
			Source: "csv",
			Path:   "./data/batches.csv",
			Table:  "batches",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		LLM: LLMConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen3-vl:2b",
			Timeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// New returns a viper instance with defaults, env binding and search paths
// set. Callers may bind flags to it before calling Load.
func New(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".goldenbatch"))
		}
	}
	return v
}

// Load reads the config file (absence is fine unless it was named
// explicitly), unmarshals and validates.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Training.Clusters < 1 {
		errs = append(errs, fmt.Errorf("training.clusters must be >= 1, got %d", c.Training.Clusters))
	}
	if c.Training.Trees < 1 {
		errs = append(errs, fmt.Errorf("training.trees must be >= 1, got %d", c.Training.Trees))
	}
	switch c.Training.ModelKind {
	case "random_forest", "nearest_centroid":
	default:
		errs = append(errs, fmt.Errorf("training.model_kind %q is not supported", c.Training.ModelKind))
	}
	if c.Analysis.DeviationThreshold <= 0 {
		errs = append(errs, fmt.Errorf("analysis.deviation_threshold must be > 0"))
	}
	if c.Analysis.HealthPenalty <= 0 {
		errs = append(errs, fmt.Errorf("analysis.health_penalty must be > 0"))
	}
	if c.Risk.ModerateThreshold >= c.Risk.HighThreshold {
		errs = append(errs, fmt.Errorf("risk.moderate_threshold (%v) must be below risk.high_threshold (%v)",
			c.Risk.ModerateThreshold, c.Risk.HighThreshold))
	}
	switch c.History.Source {
	case "csv", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("history.source %q is not supported", c.History.Source))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not supported", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not supported", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// WriteDefault writes the default configuration as YAML. An existing file
// is left alone unless overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.cache_ttl", d.Server.CacheTTL)

	v.SetDefault("artifacts.dir", d.Artifacts.Dir)
	v.SetDefault("artifacts.signature_file", d.Artifacts.SignatureFile)
	v.SetDefault("artifacts.quality_model_file", d.Artifacts.QualityModelFile)
	v.SetDefault("artifacts.risk_model_file", d.Artifacts.RiskModelFile)
	v.SetDefault("artifacts.watch", d.Artifacts.Watch)

	v.SetDefault("training.clusters", d.Training.Clusters)
	v.SetDefault("training.seed", d.Training.Seed)
	v.SetDefault("training.model_kind", d.Training.ModelKind)
	v.SetDefault("training.trees", d.Training.Trees)
	v.SetDefault("training.max_depth", d.Training.MaxDepth)
	v.SetDefault("training.min_samples_split", d.Training.MinSamplesSplit)
	v.SetDefault("training.kmeans_restarts", d.Training.KMeansRestarts)
	v.SetDefault("training.kmeans_max_iter", d.Training.KMeansMaxIter)

	v.SetDefault("analysis.deviation_threshold", d.Analysis.DeviationThreshold)
	v.SetDefault("analysis.health_penalty", d.Analysis.HealthPenalty)

	v.SetDefault("risk.moderate_threshold", d.Risk.ModerateThreshold)
	v.SetDefault("risk.high_threshold", d.Risk.HighThreshold)

	v.SetDefault("history.source", d.History.Source)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("history.dsn", d.History.DSN)
	v.SetDefault("history.table", d.History.Table)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	v.SetDefault("llm.enabled", d.LLM.Enabled)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.timeout", d.LLM.Timeout)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
}
