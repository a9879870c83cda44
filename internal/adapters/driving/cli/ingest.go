package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driving"
)

// watchDebounce groups bursts of file events into one run.
const watchDebounce = 500 * time.Millisecond

var (
	ingestNamespace string
	ingestWatch     bool
	ingestJSON      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest documents from all configured sources",
	Long: `Loads documents from the configured providers, skips unchanged content
and runs chunking, classification, embedding and vector/graph upserts.
With --watch, ingestion re-runs whenever a watched file changes.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestNamespace, "namespace", "n", "", "namespace to ingest into")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "re-ingest when files change")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the job result as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.Ingestion == nil {
		return errors.New("ingestion service not configured")
	}

	ns := ingestNamespace
	if ns == "" {
		ns = svc.Namespace
	}
	ctx := cmd.Context()

	job := svc.Ingestion.RunJob(ctx, ns)
	if err := printJob(cmd, job); err != nil {
		return err
	}
	if !ingestWatch {
		if job.Status == domain.JobFailed {
			return fmt.Errorf("ingestion failed: %w", job.Err)
		}
		return nil
	}

	if svc.Watch == nil {
		return errors.New("watching is not available for the configured sources")
	}
	changes, err := svc.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch sources: %w", err)
	}
	cmd.Println("Watching for changes. Press Ctrl+C to stop.")
	return watchLoop(ctx, cmd, svc.Ingestion, ns, changes)
}

// watchLoop re-runs ingestion after each debounced burst of changes until
// ctx is done or the change stream closes.
func watchLoop(
	ctx context.Context, cmd *cobra.Command, ingestion driving.IngestionService, ns string, changes <-chan string,
) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-changes:
			if !ok {
				return nil
			}
			cmd.Printf("Changed: %s\n", path)
			if !drain(ctx, changes, watchDebounce) {
				return nil
			}
			if err := printJob(cmd, ingestion.RunJob(ctx, ns)); err != nil {
				return err
			}
		}
	}
}

// drain swallows events until the stream is quiet for d. It returns false
// when ctx ends or the stream closes.
func drain(ctx context.Context, changes <-chan string, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-changes:
			if !ok {
				return false
			}
			timer.Reset(d)
		case <-timer.C:
			return true
		}
	}
}

func printJob(cmd *cobra.Command, job *domain.JobResult) error {
	if ingestJSON {
		out := struct {
			ID      string                  `json:"id"`
			Status  domain.JobStatus        `json:"status"`
			Metrics domain.IngestionMetrics `json:"metrics"`
			Error   string                  `json:"error,omitempty"`
		}{ID: job.ID, Status: job.Status, Metrics: job.Metrics}
		if job.Err != nil {
			out.Error = job.Err.Error()
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	switch job.Status {
	case domain.JobSuccess:
		m := job.Metrics
		cmd.Printf("Job %s: %d documents, %d chunks, %d vectors, %d graph nodes in %s\n",
			job.ID, m.DocumentsProcessed, m.ChunksProduced, m.VectorWrites, m.GraphNodes,
			m.Duration.Round(time.Millisecond))
	case domain.JobSkipped:
		cmd.Printf("Job %s: nothing to ingest (%v)\n", job.ID, job.Err)
	default:
		cmd.Printf("Job %s %s: %v\n", job.ID, job.Status, job.Err)
	}
	return nil
}
