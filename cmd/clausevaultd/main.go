// Package main is the clausevaultd CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/clausevault/clausevault/internal/catalog"
	"github.com/clausevault/clausevault/internal/chunk"
	"github.com/clausevault/clausevault/internal/clauseerr"
	"github.com/clausevault/clausevault/internal/config"
	"github.com/clausevault/clausevault/internal/docid"
	"github.com/clausevault/clausevault/internal/embedding"
	"github.com/clausevault/clausevault/internal/httpapi"
	"github.com/clausevault/clausevault/internal/ingest"
	"github.com/clausevault/clausevault/internal/models"
	"github.com/clausevault/clausevault/internal/ratetable"
	"github.com/clausevault/clausevault/internal/retriever"
	"github.com/clausevault/clausevault/internal/sparseindex"
	"github.com/clausevault/clausevault/internal/tools"
	"github.com/clausevault/clausevault/internal/vectorstore"
	"github.com/clausevault/clausevault/internal/watchintake"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/clausevault/config.yaml"

// loadConfig loads config from path. If path is the default and the file
// does not exist, it tries config.yaml in the current directory.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if path == defaultConfigPath {
			if unwrap := errors.Unwrap(err); unwrap != nil && os.IsNotExist(unwrap) {
				if cwd, cwdErr := os.Getwd(); cwdErr == nil {
					fallback := filepath.Join(cwd, "config.yaml")
					if _, statErr := os.Stat(fallback); statErr == nil {
						return config.Load(fallback)
					}
				}
			}
		}
		return nil, err
	}
	return cfg, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve-mcp":
		runServeMCP()
	case "serve-http":
		runServeHTTP()
	case "register":
		runRegister()
	case "review":
		runReview()
	case "ingest":
		runIngest()
	case "reindex":
		runReindex()
	case "search":
		runSearch()
	case "stats":
		runStats()
	case "export-tables":
		runExportTables()
	case "version", "--version", "-v":
		fmt.Printf("clausevaultd version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds the wired retrieval core.
type Components struct {
	Catalog   *catalog.Catalog
	Embedder  embedding.Embedder
	Dense     vectorstore.VectorStore
	Sparse    sparseindex.SparseIndex
	Retriever *retriever.Retriever
	Service   *tools.Service
	Pipeline  *ingest.Pipeline
}

// Close releases all component resources.
func (c *Components) Close() {
	if c.Sparse != nil {
		_ = c.Sparse.Close()
	}
	if c.Dense != nil {
		_ = c.Dense.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	cat, err := catalog.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	var embedder embedding.Embedder
	onnxEmbedder, err := embedding.NewONNXEmbedder(
		cfg.Embedding.ModelPath,
		cfg.Embedding.ModelID,
		cfg.Embedding.Dimensions,
		cfg.Embedding.MaxTokens,
		cfg.Embedding.CacheSize,
	)
	if err != nil {
		logger.Warn("ONNX embedder unavailable, using deterministic fallback", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = onnxEmbedder
	}

	if err := checkModelMarker(cfg.Storage.VectorStorePath, embedder); err != nil {
		return nil, err
	}

	var dense vectorstore.VectorStore
	if cfg.Storage.QdrantAddr != "" {
		dense, err = vectorstore.NewQdrantStore(cfg.Storage.QdrantAddr, cfg.Storage.QdrantCollection, embedder.Dimensions())
	} else {
		dense, err = vectorstore.NewMemoryStore(embedder.Dimensions())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	sparse, err := sparseindex.NewBleveIndex(cfg.Storage.BM25IndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sparse index: %w", err)
	}

	rcfg := retriever.Config{
		RRFConstantK:   cfg.Retrieval.RRFConstantK,
		NumericSparse:  cfg.Retrieval.NumericWeightSparse,
		NumericDense:   cfg.Retrieval.NumericWeightDense,
		QuestionSparse: cfg.Retrieval.QuestionWeightSparse,
		QuestionDense:  cfg.Retrieval.QuestionWeightDense,
		DefaultSparse:  cfg.Retrieval.DefaultWeightSparse,
		DefaultDense:   cfg.Retrieval.DefaultWeightDense,
	}
	r := retriever.New(dense, sparse, embedder, cat, rcfg, retriever.WithLogger(logger))
	svc := tools.NewService(r, cat, tools.Config{
		DefaultMinSimilarity:   cfg.Retrieval.DefaultMinSimilarity,
		ExclusionMinSimilarity: cfg.Retrieval.ExclusionMinSimilarity,
	}, tools.WithLogger(logger))
	pipeline := ingest.New(cat, embedder, dense, sparse, chunk.New(chunk.DefaultConfig()),
		cfg.Storage.TableExportDir, cfg.Storage.ProcessedDir,
		ingest.WithLogger(logger),
		ingest.WithTableSeparation(cfg.Intake.EnableTableSeparationOrDefault()))

	return &Components{
		Catalog:   cat,
		Embedder:  embedder,
		Dense:     dense,
		Sparse:    sparse,
		Retriever: r,
		Service:   svc,
		Pipeline:  pipeline,
	}, nil
}

// modelMarker records which embedding model built the persisted indices so
// a query from an incompatible model is refused instead of silently
// compared against foreign vectors.
type modelMarker struct {
	ModelID    string `json:"model_id"`
	Dimensions int    `json:"dimensions"`
}

func checkModelMarker(vectorStorePath string, embedder embedding.Embedder) error {
	if vectorStorePath == "" {
		return nil
	}
	markerPath := filepath.Join(vectorStorePath, "model.json")
	data, err := os.ReadFile(markerPath)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(vectorStorePath, 0o755); err != nil {
			return err
		}
		out, err := json.Marshal(modelMarker{ModelID: embedder.ModelID(), Dimensions: embedder.Dimensions()})
		if err != nil {
			return err
		}
		return os.WriteFile(markerPath, out, 0o644)
	}
	if err != nil {
		return err
	}
	var marker modelMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return fmt.Errorf("parse model marker: %w", err)
	}
	if marker.ModelID != embedder.ModelID() || marker.Dimensions != embedder.Dimensions() {
		return clauseerr.New(clauseerr.IndexMismatch, "main.checkModelMarker",
			fmt.Errorf("index built with %s/%d, query model is %s/%d; reindex required",
				marker.ModelID, marker.Dimensions, embedder.ModelID(), embedder.Dimensions()))
	}
	return nil
}

func mustInit(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, _ := zap.NewProduction()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runServeMCP() {
	fs := flag.NewFlagSet("serve-mcp", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	rebuild := fs.Bool("rebuild", true, "rebuild indices from the catalog before serving")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := mustInit(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *rebuild {
		indexed, failed, err := components.Pipeline.RebuildAll(ctx)
		if err != nil {
			logger.Fatal("Index rebuild failed", zap.Error(err))
		}
		logger.Info("Index rebuilt", zap.Int("indexed", indexed), zap.Int("failed", failed))
	}

	server := tools.NewMCPServer(components.Service, version)
	logger.Info("Serving MCP over stdio")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("MCP server failed", zap.Error(err))
	}
}

func runServeHTTP() {
	fs := flag.NewFlagSet("serve-http", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	watch := fs.Bool("watch", true, "watch the raw intake tree for new PDFs")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := mustInit(*configPath)
	defer logger.Sync()
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if *watch {
		roots := cfg.Intake.Directories
		if len(roots) == 0 {
			roots = []string{cfg.Storage.RawDir}
		}
		w := watchintake.New(roots, components.Catalog, components.Pipeline,
			watchintake.WithLogger(logger))
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start intake watcher", zap.Error(err))
		}
		defer w.Stop()
		go w.SyncExisting(watchCtx)
	}

	srv := httpapi.NewServer(components.Service, components.Catalog, components.Pipeline,
		cfg.Server.Host, cfg.Server.Port, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Server stopped", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runRegister() {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: clausevaultd register [flags] <pdf-path>")
		os.Exit(1)
	}
	_, logger, components := mustInit(*configPath)
	defer logger.Sync()
	defer components.Close()

	id, err := components.Pipeline.RegisterPDF(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Printf("Register failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document registered (PENDING review): %s\n", id)
}

func runReview() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: clausevaultd review <verify|reject|resubmit> <document-id> [flags]")
		os.Exit(1)
	}
	action := os.Args[2]
	id := os.Args[3]
	fs := flag.NewFlagSet("review", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	notes := fs.String("notes", "", "reviewer notes")
	_ = fs.Parse(os.Args[4:])

	_, logger, components := mustInit(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	var err error
	switch action {
	case "verify":
		err = components.Catalog.MarkVerified(ctx, id, *notes)
	case "reject":
		err = components.Catalog.MarkRejected(ctx, id, *notes)
	case "resubmit":
		err = components.Catalog.Resubmit(ctx, id)
	default:
		fmt.Printf("Unknown review action: %s\n", action)
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Review failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document %s: %s applied\n", id, action)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: clausevaultd ingest [flags] <document-id|pdf-path>")
		os.Exit(1)
	}
	arg := fs.Arg(0)

	_, logger, components := mustInit(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	id := arg
	if filepath.Ext(arg) != "" {
		abs, err := filepath.Abs(arg)
		if err == nil {
			id = docid.FromPath(abs)
		}
	}
	if err := components.Pipeline.IngestDocument(ctx, id); err != nil {
		fmt.Printf("Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document ingested: %s\n", id)
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Swap-on-success: the sparse index is rebuilt at a temp path and only
	// renamed over the live one once the whole batch (and the id-set check)
	// has succeeded, so a crashed rebuild leaves the old index readable.
	livePath := cfg.Storage.BM25IndexPath
	rebuildPath := livePath + ".rebuild"
	if err := os.RemoveAll(rebuildPath); err != nil {
		logger.Fatal("Failed to clear rebuild path", zap.Error(err))
	}
	cfg.Storage.BM25IndexPath = rebuildPath

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}

	indexed, failed, err := components.Pipeline.RebuildAll(context.Background())
	if err != nil {
		components.Close()
		_ = os.RemoveAll(rebuildPath)
		logger.Fatal("Rebuild failed, previous index left in place", zap.Error(err))
	}
	components.Close()

	if err := os.RemoveAll(livePath); err != nil {
		logger.Fatal("Failed to remove previous index", zap.Error(err))
	}
	if err := os.Rename(rebuildPath, livePath); err != nil {
		logger.Fatal("Failed to swap index into place", zap.Error(err))
	}
	fmt.Printf("Reindex complete: %d documents indexed, %d failed\n", indexed, failed)
}

// searchArgsReorder moves flags that appear after the query to the front so
// flag.Parse sees them (the flag package stops at the first non-flag arg).
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	topK := fs.Int("top-k", 5, "number of results")
	minSim := fs.Float64("min-similarity", -1, "similarity floor (-1 = configured default)")
	company := fs.String("company", "", "filter by company")
	productCode := fs.String("product-code", "", "filter by product code")
	category := fs.String("category", "", "filter by category (Liability/Exclusion/Process/Definition/General)")
	rebuild := fs.Bool("rebuild", true, "rebuild indices from the catalog before searching")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: clausevaultd search [flags] <query>")
		os.Exit(1)
	}
	query := fs.Arg(0)

	_, logger, components := mustInit(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if *rebuild {
		if _, _, err := components.Pipeline.RebuildAll(ctx); err != nil {
			fmt.Printf("Index rebuild failed: %v\n", err)
			os.Exit(1)
		}
	}

	results, err := components.Service.SearchPolicyClause(ctx, models.SearchPolicyClauseInput{
		Query:         query,
		Company:       *company,
		ProductCode:   *productCode,
		Category:      *category,
		TopK:          *topK,
		MinSimilarity: *minSim,
	})
	if err != nil {
		fmt.Printf("Search failed: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No clauses met the similarity floor.")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%s] %s (%.3f)\n", i+1, r.SectionID, r.SectionTitle, r.SimilarityScore)
		fmt.Printf("   %s | %s | %s\n", r.SourceReference.Company, r.SourceReference.ProductName, r.SourceReference.DocType)
		content := r.Content
		if len(content) > 300 {
			content = content[:300] + "..."
		}
		fmt.Printf("   %s\n\n", content)
	}
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := mustInit(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	docs, _ := components.Catalog.CountDocuments(ctx)
	chunks, _ := components.Catalog.CountChunks(ctx)
	pending, _ := components.Catalog.ListDocumentsByStatus(ctx, models.StatusPending)
	sparseCount, _ := components.Sparse.DocCount()
	denseStats, _ := components.Dense.Stats(ctx)

	fmt.Printf("Documents:          %d (%d pending review)\n", docs, len(pending))
	fmt.Printf("Chunks:             %d\n", chunks)
	fmt.Printf("Sparse index docs:  %d\n", sparseCount)
	fmt.Printf("Dense index points: %d (%d-dim, %s)\n", denseStats.Count, denseStats.Dimensions, denseStats.Distance)
	fmt.Printf("Embedding model:    %s\n", components.Embedder.ModelID())
}

func runExportTables() {
	fs := flag.NewFlagSet("export-tables", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.String("out", "ratetables.xlsx", "output workbook path")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	store := ratetable.NewStore(cfg.Storage.TableExportDir)
	if err := store.ExportWorkbook(*out); err != nil {
		fmt.Printf("Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Rate tables exported to %s\n", *out)
}

func printUsage() {
	fmt.Println(`clausevaultd - insurance policy clause retrieval service

Usage:
  clausevaultd serve-mcp [flags]                Serve the four retrieval tools over MCP stdio
  clausevaultd serve-http [flags]               Serve the admin/diagnostic HTTP API
  clausevaultd register [flags] <pdf>           Register a raw PDF as a PENDING document
  clausevaultd review <verify|reject|resubmit> <id> [flags]
                                                Apply a verification decision
  clausevaultd ingest [flags] <id|pdf>          Ingest one VERIFIED document
  clausevaultd reindex [flags]                  Full rebuild of both indices (swap-on-success)
  clausevaultd search [flags] <query>           Diagnostic hybrid search from the terminal
  clausevaultd stats [flags]                    Corpus statistics
  clausevaultd export-tables [flags]            Export rate-table sidecars to one xlsx workbook
  clausevaultd version                          Show version
  clausevaultd help                             Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/clausevault/config.yaml)

Environment overrides (always win over the config file):
  GLOBAL_QPS, PER_DOMAIN_QPS, CIRCUIT_BREAKER_ENABLED, CIRCUIT_BREAKER_COOLDOWN_SEC,
  ENABLE_TABLE_SEPARATION, EMBED_MODEL_ID, VECTOR_STORE_PATH, BM25_INDEX_PATH, TABLE_EXPORT_DIR`)
}
