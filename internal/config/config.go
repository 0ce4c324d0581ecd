// Package config provides configuration loading for clausevaultd: a YAML
// file overlaid with a fixed set of recognized environment variables, the
// environment always winning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the retrieval core.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Intake    IntakeConfig    `yaml:"intake"`
}

// ServerConfig holds the diagnostic HTTP API's listen settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the service's on-disk layout.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	VectorStorePath string `yaml:"vector_store_path"`
	BM25IndexPath   string `yaml:"bm25_index_path"`
	TableExportDir  string `yaml:"table_export_dir"`
	RawDir          string `yaml:"raw_dir"`
	ProcessedDir    string `yaml:"processed_dir"`
	// QdrantAddr, when set, selects the persistent Qdrant vector store
	// backend instead of the in-memory one. Empty means "memory".
	QdrantAddr       string `yaml:"qdrant_addr"`
	QdrantCollection string `yaml:"qdrant_collection"`
}

// EmbeddingConfig holds the local embedding model's settings.
type EmbeddingConfig struct {
	ModelID    string `yaml:"model_id"` // EMBED_MODEL_ID
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// RetrievalConfig holds hybrid-retriever tuning knobs. The routing weight
// pairs and similarity floors are deliberately exposed, not hardcoded.
type RetrievalConfig struct {
	TopKCandidates         int     `yaml:"top_k_candidates"`
	RRFConstantK           int     `yaml:"rrf_constant_k"`
	DefaultMinSimilarity   float64 `yaml:"default_min_similarity"`
	ExclusionMinSimilarity float64 `yaml:"exclusion_min_similarity"`
	NumericWeightSparse    float64 `yaml:"numeric_weight_sparse"`  // 0.8
	NumericWeightDense     float64 `yaml:"numeric_weight_dense"`   // 0.2
	QuestionWeightSparse   float64 `yaml:"question_weight_sparse"` // 0.2
	QuestionWeightDense    float64 `yaml:"question_weight_dense"`  // 0.8
	DefaultWeightSparse    float64 `yaml:"default_weight_sparse"`  // 0.4
	DefaultWeightDense     float64 `yaml:"default_weight_dense"`   // 0.6
}

// RateLimitConfig holds the crawler rate limiter's settings.
type RateLimitConfig struct {
	GlobalQPS                 float64 `yaml:"global_qps"`
	PerDomainQPS              float64 `yaml:"per_domain_qps"`
	CircuitBreakerEnabled     *bool   `yaml:"circuit_breaker_enabled"`
	CircuitBreakerCooldownSec int     `yaml:"circuit_breaker_cooldown_sec"`
}

// CircuitBreakerEnabledOrDefault returns whether the circuit breaker is
// enabled; defaults to true when unset.
func (r *RateLimitConfig) CircuitBreakerEnabledOrDefault() bool {
	if r.CircuitBreakerEnabled != nil {
		return *r.CircuitBreakerEnabled
	}
	return true
}

// IntakeConfig holds the raw-PDF intake watch settings: the watched
// directories and the rate-table extraction toggle.
type IntakeConfig struct {
	Directories           []string `yaml:"directories"`
	Recursive             *bool    `yaml:"recursive"`
	EnableTableSeparation *bool    `yaml:"enable_table_separation"`
}

// EnableTableSeparationOrDefault returns whether rate-table extraction is
// enabled; defaults to true when unset.
func (w *IntakeConfig) EnableTableSeparationOrDefault() bool {
	if w.EnableTableSeparation != nil {
		return *w.EnableTableSeparation
	}
	return true
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true
// when unset.
func (w *IntakeConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults, expands
// paths (see expandPath), then applies the environment overrides (which
// always win over both the file and the defaults).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorStorePath = expandPath(cfg.Storage.VectorStorePath, configDir)
	cfg.Storage.BM25IndexPath = expandPath(cfg.Storage.BM25IndexPath, configDir)
	cfg.Storage.TableExportDir = expandPath(cfg.Storage.TableExportDir, configDir)
	cfg.Storage.RawDir = expandPath(cfg.Storage.RawDir, configDir)
	cfg.Storage.ProcessedDir = expandPath(cfg.Storage.ProcessedDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Intake.Directories {
		cfg.Intake.Directories[i] = expandPath(cfg.Intake.Directories[i], configDir)
	}

	ApplyEnvOverrides(&cfg)
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies the recognized environment-variable keys on
// top of cfg, the environment always winning over the YAML file and its
// defaults.
func ApplyEnvOverrides(cfg *Config) {
	if v, ok := envFloat("GLOBAL_QPS"); ok {
		cfg.RateLimit.GlobalQPS = v
	}
	if v, ok := envFloat("PER_DOMAIN_QPS"); ok {
		cfg.RateLimit.PerDomainQPS = v
	}
	if v, ok := envBool("CIRCUIT_BREAKER_ENABLED"); ok {
		cfg.RateLimit.CircuitBreakerEnabled = &v
	}
	if v, ok := envInt("CIRCUIT_BREAKER_COOLDOWN_SEC"); ok {
		cfg.RateLimit.CircuitBreakerCooldownSec = v
	}
	if v, ok := envBool("ENABLE_TABLE_SEPARATION"); ok {
		cfg.Intake.EnableTableSeparation = &v
	}
	if v := os.Getenv("EMBED_MODEL_ID"); v != "" {
		cfg.Embedding.ModelID = v
	}
	if v := os.Getenv("VECTOR_STORE_PATH"); v != "" {
		cfg.Storage.VectorStorePath = v
	}
	if v := os.Getenv("BM25_INDEX_PATH"); v != "" {
		cfg.Storage.BM25IndexPath = v
	}
	if v := os.Getenv("TABLE_EXPORT_DIR"); v != "" {
		cfg.Storage.TableExportDir = v
	}
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
