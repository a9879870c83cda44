package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/custodia-labs/mnemo/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mnemo/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/mnemo/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/mnemo/internal/adapters/driven/metrics"
	"github.com/custodia-labs/mnemo/internal/adapters/driven/qdrant"
	"github.com/custodia-labs/mnemo/internal/adapters/driven/redis"
	"github.com/custodia-labs/mnemo/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mnemo/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/mnemo/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mnemo/internal/adapters/driven/surreal"
	"github.com/custodia-labs/mnemo/internal/adapters/driving/cli"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/core/services"
	"github.com/custodia-labs/mnemo/internal/logger"
	"github.com/custodia-labs/mnemo/internal/pipeline"
	"github.com/custodia-labs/mnemo/internal/pipeline/embedding"
	"github.com/custodia-labs/mnemo/internal/providers/docx"
	"github.com/custodia-labs/mnemo/internal/providers/filesystem"
	"github.com/custodia-labs/mnemo/internal/providers/github"
	"github.com/custodia-labs/mnemo/internal/providers/openapi"
	"github.com/custodia-labs/mnemo/internal/providers/pdf"
	"github.com/custodia-labs/mnemo/internal/providers/segment"
	"github.com/custodia-labs/mnemo/internal/workerpool"
)

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c *closers) add(fn func() error) {
	*c = append(*c, fn)
}

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// bootstrap builds every adapter and service from the configuration.
func bootstrap(ctx context.Context, configPath string) (svc *cli.Services, release func() error, err error) {
	cfg, err := file.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, nil, fmt.Errorf("apply environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	var cs closers
	defer func() {
		if err != nil {
			cs.close() //nolint:errcheck
		}
	}()

	meta, err := openMetadata(ctx, cfg.Metadata)
	if err != nil {
		return nil, nil, err
	}
	cs.add(meta.Close)

	embedder := newEmbedder(cfg.Models)
	vectors, err := newVectorStore(cfg, &cs)
	if err != nil {
		return nil, nil, err
	}
	graph, err := newGraphStore(ctx, cfg.Graph, &cs)
	if err != nil {
		return nil, nil, err
	}

	var (
		cache driven.CacheStore = memory.NewCacheStore()
		sink  driven.ProgressSink
	)
	if cfg.Cache.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		cs.add(client.Close)
		cache = redis.NewCache(client, "")
		progress := redis.NewProgressSink(client, cfg.Progress.RedisChannel)
		cs.add(func() error { progress.Close(); return nil })
		sink = progress
	}

	pool, err := workerpool.New(cfg.Ingestion.Workers)
	if err != nil {
		return nil, nil, err
	}
	cs.add(func() error { pool.Release(); return nil })

	registry, err := pipeline.DefaultRegistry(ctx, pipeline.Dependencies{
		Fingerprints: meta,
		Rules:        meta,
		Embedder:     embedder,
		Vectors:      vectors,
		Graph:        graph,
		Router: embedding.Router{
			Default:       cfg.Models.Default,
			Rust:          cfg.Models.Rust,
			Markdown:      cfg.Models.Markdown,
			OpenAPI:       cfg.Models.OpenAPI,
			LargeDocument: cfg.Models.LargeDocument,
		},
		Runner:     pool,
		Dimensions: cfg.Models.Dimensions,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build pipeline: %w", err)
	}

	recorder := metrics.New()
	opts := []pipeline.ExecutorOption{pipeline.WithMetricsRecorder(recorder)}
	if sink != nil {
		opts = append(opts, pipeline.WithProgressSink(sink))
	}
	executor := pipeline.NewExecutor(registry, opts...)

	fs, providers, err := newProviders(ctx, cfg.Ingestion)
	if err != nil {
		return nil, nil, err
	}
	cs.add(fs.Close)

	retrieval := services.NewRetrievalService(vectors, graph, cache, embedder, meta, services.RetrievalConfig{
		Namespace:         cfg.RetrievalNamespace(),
		TopK:              cfg.Retrieval.TopK,
		GraphDepth:        cfg.Retrieval.GraphDepth,
		ResultTTL:         cfg.Retrieval.ResultTTL.Std(),
		ChunkTTL:          cfg.Retrieval.ChunkTTL.Std(),
		Model:             cfg.Models.Default,
		Dimensions:        cfg.Models.Dimensions,
		StrategySelection: cfg.Retrieval.StrategySelection,
	})

	svc = &cli.Services{
		Ingestion:      services.NewIngestionService(executor, meta, services.NewProviderRegistry(providers...), sink),
		Retrieval:      retrieval,
		Sessions:       meta,
		Rules:          meta,
		Metrics:        recorder,
		MetricsHandler: recorder.Handler(),
		Watch:          fs.Watch,
		Namespace:      cfg.Ingestion.Namespace,
		MetricsAddr:    cfg.Metrics.ListenAddr,
	}
	logger.Debug("bootstrap: metadata=%s vectors=%d cluster(s) graph=%q cache=%q providers=%d",
		cfg.Metadata.Driver, len(cfg.Vector.URLs), cfg.Graph.URL, cfg.Cache.RedisURL, len(providers))
	return svc, cs.close, nil
}

func openMetadata(ctx context.Context, cfg file.MetadataConfig) (driven.MetadataStore, error) {
	switch cfg.Driver {
	case file.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres metadata store: %w", err)
		}
		return store, nil
	case file.DriverMemory:
		return memory.NewMetadataStore(), nil
	default:
		store, err := sqlite.NewStore(cfg.SQLiteDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite metadata store: %w", err)
		}
		return store, nil
	}
}

func newEmbedder(cfg file.ModelsConfig) driven.Embedder {
	if cfg.Backend == "ollama" {
		url := cfg.EmbeddingURL
		if url == file.DefaultEmbeddingURL {
			url = ""
		}
		return ollama.New(ollama.Config{BaseURL: url, Dimensions: cfg.Dimensions})
	}
	return openai.New(openai.Config{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.EmbeddingURL,
		DefaultModel: cfg.Default,
		Dimensions:   cfg.Dimensions,
	})
}

func newVectorStore(cfg file.Config, cs *closers) (driven.VectorStore, error) {
	if len(cfg.Vector.URLs) == 0 {
		return memory.NewVectorStore(), nil
	}
	store, err := qdrant.New(qdrant.Config{
		URLs:       cfg.Vector.URLs,
		Collection: cfg.Vector.Collection,
		Dimensions: cfg.Models.Dimensions,
		APIKey:     cfg.Vector.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	cs.add(store.Close)
	return store, nil
}

func newGraphStore(ctx context.Context, cfg file.GraphConfig, cs *closers) (driven.GraphStore, error) {
	if cfg.URL == "" {
		return memory.NewGraphStore(), nil
	}
	store, err := surreal.Open(ctx, surreal.Config{
		URL:       cfg.URL,
		User:      cfg.User,
		Pass:      cfg.Pass,
		Namespace: cfg.NS,
		Database:  cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("graph store: %w", err)
	}
	cs.add(store.Close)
	return store, nil
}

// newProviders builds the filesystem provider, which is always present, and
// the optional GitHub, PDF, DOCX and OpenAPI providers.
func newProviders(ctx context.Context, cfg file.IngestionConfig) (*filesystem.Provider, []driven.Provider, error) {
	segments := segment.Options{LargeThreshold: cfg.LargeThreshold, SegmentSize: cfg.SegmentSize}

	roots := cfg.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}
	fs := filesystem.New(roots,
		filesystem.WithNamespace(cfg.Namespace),
		filesystem.WithSegmentOptions(segments),
	)
	providers := []driven.Provider{fs}

	if cfg.GitHubRepo != "" {
		client := github.NewClient(ctx, cfg.GitHubToken)
		gp, err := github.New(cfg.GitHubRepo, client, github.WithSegmentOptions(segments))
		if err != nil {
			return nil, nil, fmt.Errorf("github provider %q: %w", cfg.GitHubRepo, err)
		}
		providers = append(providers, gp)
	}
	if len(cfg.PDFPaths) > 0 {
		providers = append(providers, pdf.New(cfg.PDFPaths, cfg.Namespace, nil))
	}
	if len(cfg.DOCXPaths) > 0 {
		providers = append(providers, docx.New(cfg.DOCXPaths, cfg.Namespace))
	}
	if cfg.OpenAPISource != "" {
		providers = append(providers, openapi.New(cfg.OpenAPISource))
	}
	return fs, providers, nil
}
