package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// mockStep mutates the run state through fn.
type mockStep struct {
	name  string
	fn    func(data *domain.PipelineData) (*domain.PipelineData, error)
	calls int
}

func (m *mockStep) Name() string { return m.name }

func (m *mockStep) Process(_ context.Context, data *domain.PipelineData) (*domain.PipelineData, error) {
	m.calls++
	if m.fn == nil {
		return data, nil
	}
	return m.fn(data)
}

// recordingSink captures published events.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (s *recordingSink) Publish(e domain.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) kinds(kind domain.EventKind) []domain.ProgressEvent {
	var out []domain.ProgressEvent
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// recordingMetrics captures recorded runs.
type recordingMetrics struct {
	last domain.IngestionMetrics
	errs []error
	runs int
}

func (m *recordingMetrics) RecordRun(metrics domain.IngestionMetrics, err error) {
	m.runs++
	m.last = metrics
	m.errs = append(m.errs, err)
}

func (m *recordingMetrics) Last() domain.IngestionMetrics { return m.last }

type panickingSink struct{}

func (panickingSink) Publish(domain.ProgressEvent) { panic("sink down") }

func fillMetrics(data *domain.PipelineData) (*domain.PipelineData, error) {
	data.Metrics.ChunksProduced = 2
	data.Metrics.VectorWrites = 2
	data.Metrics.GraphNodes = 3
	return data, nil
}

func TestRegistry(t *testing.T) {
	a := &mockStep{name: "a"}
	r := NewRegistry(a)
	r.Add(&mockStep{name: "b"})

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"a", "b"}, r.Names())

	steps := r.Steps()
	steps[0] = nil
	assert.Equal(t, a, r.Steps()[0])
}

func TestExecutor_Execute(t *testing.T) {
	t.Run("runs steps in order and publishes events", func(t *testing.T) {
		var order []string
		step := func(name string) *mockStep {
			return &mockStep{name: name, fn: func(d *domain.PipelineData) (*domain.PipelineData, error) {
				order = append(order, name)
				return d, nil
			}}
		}
		sink := &recordingSink{}
		metrics := &recordingMetrics{}
		reg := NewRegistry(step("first"), step("second"), &mockStep{name: "fill", fn: fillMetrics})

		data := domain.NewPipelineData(nil)
		data.JobID = "job-1"
		out, err := NewExecutor(reg, WithProgressSink(sink), WithMetricsRecorder(metrics)).
			Execute(context.Background(), data)
		require.NoError(t, err)

		assert.Equal(t, []string{"first", "second"}, order)
		assert.Positive(t, out.Metrics.Duration)

		steps := sink.kinds(domain.EventStep)
		require.Len(t, steps, 8)
		assert.Equal(t, domain.ProgressEvent{Kind: domain.EventStep, JobID: "job-1", Step: StepStart, Status: domain.StatusRunning}, steps[0])
		assert.Equal(t, "first", steps[1].Step)
		assert.Equal(t, domain.StatusRunning, steps[1].Status)
		assert.Equal(t, "first", steps[2].Step)
		assert.Equal(t, domain.StatusDone, steps[2].Status)
		assert.Equal(t, StepCompleted, steps[7].Step)
		assert.Equal(t, domain.StatusDone, steps[7].Status)

		assert.Equal(t, 1, metrics.runs)
		assert.Nil(t, metrics.errs[0])
		assert.Equal(t, 3, metrics.Last().GraphNodes)
	})

	t.Run("stops at the first failing step", func(t *testing.T) {
		boom := errors.New("boom")
		after := &mockStep{name: "after"}
		sink := &recordingSink{}
		metrics := &recordingMetrics{}
		reg := NewRegistry(
			&mockStep{name: "bad", fn: func(*domain.PipelineData) (*domain.PipelineData, error) { return nil, boom }},
			after,
		)

		out, err := NewExecutor(reg, WithProgressSink(sink), WithMetricsRecorder(metrics)).
			Execute(context.Background(), domain.NewPipelineData(nil))
		require.Error(t, err)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, boom)

		var stepErr *domain.StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, "bad", stepErr.Step)
		assert.Equal(t, 0, after.calls)

		steps := sink.kinds(domain.EventStep)
		assert.Equal(t, domain.StatusFailed, steps[2].Status)
		assert.Equal(t, "bad", steps[2].Step)
		assert.Len(t, sink.kinds(domain.EventError), 1)
		require.Len(t, metrics.errs, 1)
		assert.ErrorIs(t, metrics.errs[0], boom)
	})

	t.Run("recovers a panicking step", func(t *testing.T) {
		sink := &recordingSink{}
		reg := NewRegistry(&mockStep{name: "crashy", fn: func(*domain.PipelineData) (*domain.PipelineData, error) {
			panic("kaboom")
		}})

		_, err := NewExecutor(reg, WithProgressSink(sink)).Execute(context.Background(), domain.NewPipelineData(nil))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrStepPanicked)
		assert.Contains(t, err.Error(), "crashy")

		crashes := sink.kinds(domain.EventCrash)
		require.Len(t, crashes, 1)
		assert.Equal(t, "crashy", crashes[0].Step)
		assert.Equal(t, "kaboom", crashes[0].Message)
	})

	t.Run("nil data from a step is an error", func(t *testing.T) {
		reg := NewRegistry(&mockStep{name: "empty", fn: func(*domain.PipelineData) (*domain.PipelineData, error) {
			return nil, nil
		}})
		_, err := NewExecutor(reg).Execute(context.Background(), domain.NewPipelineData(nil))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("validates run metrics", func(t *testing.T) {
		tests := []struct {
			name    string
			metrics domain.IngestionMetrics
			want    error
		}{
			{"no chunks", domain.IngestionMetrics{VectorWrites: 1, GraphNodes: 1}, domain.ErrNoChunks},
			{"no vectors", domain.IngestionMetrics{ChunksProduced: 1, GraphNodes: 1}, domain.ErrNoVectorWrites},
			{"no graph nodes", domain.IngestionMetrics{ChunksProduced: 1, VectorWrites: 1}, domain.ErrNoGraphNodes},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				reg := NewRegistry(&mockStep{name: "set", fn: func(d *domain.PipelineData) (*domain.PipelineData, error) {
					d.Metrics = tt.metrics
					return d, nil
				}})
				_, err := NewExecutor(reg).Execute(context.Background(), domain.NewPipelineData(nil))
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})

	t.Run("cancelled context fails before the next step", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		step := &mockStep{name: "never"}

		_, err := NewExecutor(NewRegistry(step)).Execute(ctx, domain.NewPipelineData(nil))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, step.calls)
	})

	t.Run("a panicking sink does not fail the run", func(t *testing.T) {
		reg := NewRegistry(&mockStep{name: "fill", fn: fillMetrics})
		_, err := NewExecutor(reg, WithProgressSink(panickingSink{})).Execute(context.Background(), domain.NewPipelineData(nil))
		assert.NoError(t, err)
	})
}

// A failed run does not undo writes made by earlier steps. Re-running
// converges through stable ids instead.
func TestExecutor_NoRollbackAfterLaterFailure(t *testing.T) {
	var committed []string
	write := &mockStep{name: "write", fn: func(d *domain.PipelineData) (*domain.PipelineData, error) {
		committed = append(committed, "a.md#0", "a.md#1")
		d.Metrics.VectorWrites = 2
		return d, nil
	}}
	fail := &mockStep{name: "graph", fn: func(*domain.PipelineData) (*domain.PipelineData, error) {
		return nil, domain.ErrNoGraphNodes
	}}

	_, err := NewExecutor(NewRegistry(write, fail)).Execute(context.Background(), domain.NewPipelineData(nil))

	require.ErrorIs(t, err, domain.ErrNoGraphNodes)
	assert.Equal(t, []string{"a.md#0", "a.md#1"}, committed)
}
