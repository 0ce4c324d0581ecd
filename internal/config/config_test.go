package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./data/db/catalog.db"
intake:
  directories: ["./dev/sample"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "catalog.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Intake.Directories) != 1 {
		t.Fatalf("intake directories: got %d", len(cfg.Intake.Directories))
	}
	wantWatch := filepath.Join(dir, "dev", "sample")
	if cfg.Intake.Directories[0] != wantWatch {
		t.Errorf("intake directory = %s, want %s", cfg.Intake.Directories[0], wantWatch)
	}
}

func TestLoad_envOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
rate_limit:
  global_qps: 5
embedding:
  model_id: "file-model"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GLOBAL_QPS", "12.5")
	t.Setenv("EMBED_MODEL_ID", "env-model")
	t.Setenv("CIRCUIT_BREAKER_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RateLimit.GlobalQPS != 12.5 {
		t.Errorf("GlobalQPS = %v, want 12.5 (env should win)", cfg.RateLimit.GlobalQPS)
	}
	if cfg.Embedding.ModelID != "env-model" {
		t.Errorf("ModelID = %s, want env-model", cfg.Embedding.ModelID)
	}
	if cfg.RateLimit.CircuitBreakerEnabledOrDefault() {
		t.Error("circuit breaker should be disabled by env override")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Retrieval.RRFConstantK != 60 {
		t.Errorf("default RRF constant: got %d, want 60", cfg.Retrieval.RRFConstantK)
	}
	if cfg.Retrieval.DefaultMinSimilarity != 0.7 {
		t.Errorf("default min similarity: got %f, want 0.7", cfg.Retrieval.DefaultMinSimilarity)
	}
	if cfg.Retrieval.ExclusionMinSimilarity != 0.75 {
		t.Errorf("exclusion min similarity: got %f, want 0.75", cfg.Retrieval.ExclusionMinSimilarity)
	}
	if cfg.Retrieval.NumericWeightSparse != 0.8 || cfg.Retrieval.NumericWeightDense != 0.2 {
		t.Errorf("numeric-query weights: got sparse=%f dense=%f", cfg.Retrieval.NumericWeightSparse, cfg.Retrieval.NumericWeightDense)
	}
	if cfg.Retrieval.QuestionWeightSparse != 0.2 || cfg.Retrieval.QuestionWeightDense != 0.8 {
		t.Errorf("question-query weights: got sparse=%f dense=%f", cfg.Retrieval.QuestionWeightSparse, cfg.Retrieval.QuestionWeightDense)
	}
	if cfg.Retrieval.DefaultWeightSparse != 0.4 || cfg.Retrieval.DefaultWeightDense != 0.6 {
		t.Errorf("default-query weights: got sparse=%f dense=%f", cfg.Retrieval.DefaultWeightSparse, cfg.Retrieval.DefaultWeightDense)
	}
	if cfg.Embedding.Dimensions != 512 {
		t.Errorf("default embedding dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if !cfg.RateLimit.CircuitBreakerEnabledOrDefault() {
		t.Error("circuit breaker should default to enabled")
	}
	if cfg.RateLimit.CircuitBreakerCooldownSec != 300 {
		t.Errorf("default cooldown: got %d, want 300", cfg.RateLimit.CircuitBreakerCooldownSec)
	}
	if cfg.RateLimit.GlobalQPS != 0.8 {
		t.Errorf("default global QPS: got %f, want 0.8", cfg.RateLimit.GlobalQPS)
	}
	if cfg.RateLimit.PerDomainQPS != 0.8 {
		t.Errorf("default per-domain QPS: got %f, want 0.8", cfg.RateLimit.PerDomainQPS)
	}
}

func TestApplyDefaults_IntakeRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Intake: IntakeConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Intake.Recursive == nil || !*cfg.Intake.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestIntakeConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &IntakeConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("true_returns_true", func(t *testing.T) {
		v := true
		w := &IntakeConfig{Recursive: &v}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &IntakeConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestRateLimitConfig_CircuitBreakerEnabledOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		r := &RateLimitConfig{}
		if !r.CircuitBreakerEnabledOrDefault() {
			t.Error("CircuitBreakerEnabledOrDefault() = false, want true")
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		r := &RateLimitConfig{CircuitBreakerEnabled: &f}
		if r.CircuitBreakerEnabledOrDefault() {
			t.Error("CircuitBreakerEnabledOrDefault() = true, want false")
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
