package driven

import "github.com/custodia-labs/mnemo/internal/core/domain"

// ProgressSink receives advisory progress events.
// Publish must not block and never reports failure.
type ProgressSink interface {
	Publish(event domain.ProgressEvent)
}

// MetricsRecorder records the outcome of pipeline runs.
type MetricsRecorder interface {
	// RecordRun stores metrics of a finished run. err is nil on success.
	RecordRun(metrics domain.IngestionMetrics, err error)

	// Last returns the metrics of the most recent run.
	Last() domain.IngestionMetrics
}
