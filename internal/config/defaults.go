package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/clausevault/data/db/catalog.db"
	}
	if cfg.Storage.VectorStorePath == "" {
		cfg.Storage.VectorStorePath = "/usr/local/var/clausevault/data/indices/vector"
	}
	if cfg.Storage.BM25IndexPath == "" {
		cfg.Storage.BM25IndexPath = "/usr/local/var/clausevault/data/indices/bleve"
	}
	if cfg.Storage.TableExportDir == "" {
		cfg.Storage.TableExportDir = "/usr/local/var/clausevault/data/ratetables"
	}
	if cfg.Storage.RawDir == "" {
		cfg.Storage.RawDir = "/usr/local/var/clausevault/data/raw"
	}
	if cfg.Storage.ProcessedDir == "" {
		cfg.Storage.ProcessedDir = "/usr/local/var/clausevault/data/processed"
	}
	if cfg.Storage.QdrantCollection == "" {
		cfg.Storage.QdrantCollection = "clausevault_chunks"
	}
	if cfg.Embedding.ModelID == "" {
		cfg.Embedding.ModelID = "bge-small-zh-v1.5"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/clausevault/data/models/bge-small-zh-v1.5.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 512
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Retrieval.TopKCandidates == 0 {
		cfg.Retrieval.TopKCandidates = 100
	}
	if cfg.Retrieval.RRFConstantK == 0 {
		cfg.Retrieval.RRFConstantK = 60
	}
	if cfg.Retrieval.DefaultMinSimilarity == 0 {
		cfg.Retrieval.DefaultMinSimilarity = 0.7
	}
	if cfg.Retrieval.ExclusionMinSimilarity == 0 {
		cfg.Retrieval.ExclusionMinSimilarity = 0.75
	}
	if cfg.Retrieval.NumericWeightSparse == 0 && cfg.Retrieval.NumericWeightDense == 0 {
		cfg.Retrieval.NumericWeightSparse = 0.8
		cfg.Retrieval.NumericWeightDense = 0.2
	}
	if cfg.Retrieval.QuestionWeightSparse == 0 && cfg.Retrieval.QuestionWeightDense == 0 {
		cfg.Retrieval.QuestionWeightSparse = 0.2
		cfg.Retrieval.QuestionWeightDense = 0.8
	}
	if cfg.Retrieval.DefaultWeightSparse == 0 && cfg.Retrieval.DefaultWeightDense == 0 {
		cfg.Retrieval.DefaultWeightSparse = 0.4
		cfg.Retrieval.DefaultWeightDense = 0.6
	}
	if cfg.RateLimit.GlobalQPS == 0 {
		cfg.RateLimit.GlobalQPS = 0.8
	}
	if cfg.RateLimit.PerDomainQPS == 0 {
		cfg.RateLimit.PerDomainQPS = 0.8
	}
	if cfg.RateLimit.CircuitBreakerCooldownSec == 0 {
		cfg.RateLimit.CircuitBreakerCooldownSec = 300
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Intake.Directories) > 0 && cfg.Intake.Recursive == nil {
		t := true
		cfg.Intake.Recursive = &t
	}
}
