// Package cli provides the cobra command tree of the mnemo binary.
package cli

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/core/ports/driving"
	"github.com/custodia-labs/mnemo/internal/logger"
)

// Services are the ports the commands drive. The entry point builds them
// through a Bootstrap once flags are parsed.
type Services struct {
	Ingestion driving.IngestionService
	Retrieval driving.RetrievalService
	Sessions  driven.SessionStore
	Rules     driven.OntologyRuleStore
	Metrics   driven.MetricsRecorder

	// MetricsHandler serves Prometheus metrics. Optional.
	MetricsHandler http.Handler

	// Watch streams changed paths for ingest --watch. Optional.
	Watch func(ctx context.Context) (<-chan string, error)

	// Namespace is ingested when no --namespace is given.
	Namespace string

	// MetricsAddr is where metrics --serve listens.
	MetricsAddr string
}

// Bootstrap builds the services from the configuration file at path.
// The returned function releases them.
type Bootstrap func(ctx context.Context, configPath string) (*Services, func() error, error)

var (
	version    = "dev"
	verbose    bool
	configPath string

	mu        sync.Mutex
	services  *Services
	bootstrap Bootstrap
	release   func() error
)

var rootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "Ingest documents and assemble hybrid RAG context",
	Long: `mnemo ingests files, repositories, PDFs, Word documents and OpenAPI specs
into a vector index and a file/chunk graph, and answers queries with context
ranked by vector similarity, keyword overlap, graph links and ontology tags.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		mu.Lock()
		defer mu.Unlock()
		if release == nil {
			return nil
		}
		err := release()
		release = nil
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.mnemo/config.toml)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap registers how services are built on first use.
func SetBootstrap(b Bootstrap) {
	mu.Lock()
	defer mu.Unlock()
	bootstrap = b
}

// SetServices injects ready-made services, bypassing the bootstrap.
func SetServices(s *Services) {
	mu.Lock()
	defer mu.Unlock()
	services = s
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadServices returns the injected services or builds them once.
func loadServices(cmd *cobra.Command) (*Services, error) {
	mu.Lock()
	defer mu.Unlock()
	if services != nil {
		return services, nil
	}
	if bootstrap == nil {
		return nil, errors.New("services not configured")
	}
	s, closer, err := bootstrap(cmd.Context(), configPath)
	if err != nil {
		return nil, err
	}
	services, release = s, closer
	return services, nil
}
