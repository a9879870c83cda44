package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var metricsServe bool

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show ingestion metrics",
	Long: `Prints the metrics of the most recent ingestion run in this process.
With --serve, exposes Prometheus metrics on /metrics until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runMetrics,
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsServe, "serve", false, "serve Prometheus metrics over HTTP")
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}

	if !metricsServe {
		if svc.Metrics == nil {
			return errors.New("metrics recorder not configured")
		}
		data, err := json.MarshalIndent(svc.Metrics.Last(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal metrics: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if svc.MetricsHandler == nil {
		return errors.New("metrics handler not configured")
	}
	cmd.Printf("Serving metrics on http://%s/metrics\n", svc.MetricsAddr)
	return serveMetrics(cmd.Context(), svc.MetricsAddr, svc.MetricsHandler)
}

// serveMetrics blocks until ctx is done.
func serveMetrics(ctx context.Context, addr string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
