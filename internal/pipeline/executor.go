package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/logger"
)

// Pseudo step names bracketing a run in progress events.
const (
	StepStart     = "start"
	StepCompleted = "completed"
)

var log = logger.Named("pipeline")

// Executor runs the steps of a registry strictly one after another.
type Executor struct {
	registry *Registry
	sink     driven.ProgressSink
	metrics  driven.MetricsRecorder
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithProgressSink publishes step events to sink.
func WithProgressSink(sink driven.ProgressSink) ExecutorOption {
	return func(e *Executor) { e.sink = sink }
}

// WithMetricsRecorder hands run metrics to recorder.
func WithMetricsRecorder(recorder driven.MetricsRecorder) ExecutorOption {
	return func(e *Executor) { e.metrics = recorder }
}

// NewExecutor creates an executor for the steps in registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every step on data and validates the run. It returns the
// final data or the first error. Nothing written by earlier steps is rolled
// back on failure.
func (e *Executor) Execute(ctx context.Context, data *domain.PipelineData) (*domain.PipelineData, error) {
	start := time.Now()
	jobID := data.JobID
	e.publishStep(jobID, StepStart, domain.StatusRunning, "")

	for _, step := range e.registry.Steps() {
		name := step.Name()
		if err := ctx.Err(); err != nil {
			return nil, e.fail(jobID, data, start, &domain.StepError{Step: name, Err: err})
		}

		e.publishStep(jobID, name, domain.StatusRunning, "")
		log.Debug("step %s started", name)

		out, err := e.runStep(ctx, step, data)
		if err != nil {
			e.publishStep(jobID, name, domain.StatusFailed, err.Error())
			return nil, e.fail(jobID, data, start, &domain.StepError{Step: name, Err: err})
		}
		data = out
		e.publishStep(jobID, name, domain.StatusDone, "")
	}

	if err := validate(data.Metrics); err != nil {
		return nil, e.fail(jobID, data, start, err)
	}

	data.Metrics.Duration = time.Since(start)
	e.publishStep(jobID, StepCompleted, domain.StatusDone, "")
	if e.metrics != nil {
		e.metrics.RecordRun(data.Metrics, nil)
	}
	log.Info("run finished in %s: %d docs, %d chunks, %d vectors, %d graph nodes",
		data.Metrics.Duration, data.Metrics.DocumentsProcessed, data.Metrics.ChunksProduced,
		data.Metrics.VectorWrites, data.Metrics.GraphNodes)
	return data, nil
}

// runStep isolates a step so a panic becomes an error instead of killing
// the process.
func (e *Executor) runStep(
	ctx context.Context, step driven.PipelineStep, data *domain.PipelineData,
) (out *domain.PipelineData, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrStepPanicked, r)
			log.Error("step %s panicked: %v", step.Name(), r)
			e.publish(domain.ProgressEvent{
				Kind:    domain.EventCrash,
				JobID:   data.JobID,
				Step:    step.Name(),
				Status:  domain.StatusFailed,
				Message: fmt.Sprint(r),
			})
		}
	}()

	out, err = step.Process(ctx, data)
	if err == nil && out == nil {
		err = fmt.Errorf("step returned no data: %w", domain.ErrInvalidInput)
	}
	return out, err
}

func (e *Executor) fail(jobID string, data *domain.PipelineData, start time.Time, err error) error {
	data.Metrics.Duration = time.Since(start)
	e.publishStep(jobID, StepCompleted, domain.StatusFailed, err.Error())
	e.publish(domain.ProgressEvent{Kind: domain.EventError, JobID: jobID, Message: err.Error()})
	if e.metrics != nil {
		e.metrics.RecordRun(data.Metrics, err)
	}
	log.Error("run failed: %v", err)
	return err
}

func validate(m domain.IngestionMetrics) error {
	switch {
	case m.ChunksProduced <= 0:
		return fmt.Errorf("validate run: %w", domain.ErrNoChunks)
	case m.VectorWrites <= 0:
		return fmt.Errorf("validate run: %w", domain.ErrNoVectorWrites)
	case m.GraphNodes <= 0:
		return fmt.Errorf("validate run: %w", domain.ErrNoGraphNodes)
	}
	return nil
}

func (e *Executor) publishStep(jobID, step string, status domain.StepStatus, msg string) {
	e.publish(domain.ProgressEvent{
		Kind:    domain.EventStep,
		JobID:   jobID,
		Step:    step,
		Status:  status,
		Message: msg,
	})
}

// publish never lets a misbehaving sink affect the run.
func (e *Executor) publish(event domain.ProgressEvent) {
	if e.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn("progress sink panicked: %v", r)
		}
	}()
	e.sink.Publish(event)
}
