// Package pipeline chains ingestion steps and executes them with progress
// reporting, panic isolation and run validation.
package pipeline

import (
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
)

// Registry holds the ordered steps of a pipeline.
type Registry struct {
	steps []driven.PipelineStep
}

// NewRegistry creates a registry with the given steps in order.
func NewRegistry(steps ...driven.PipelineStep) *Registry {
	return &Registry{steps: steps}
}

// Add appends a step.
func (r *Registry) Add(step driven.PipelineStep) {
	r.steps = append(r.steps, step)
}

// Steps returns the steps in execution order.
func (r *Registry) Steps() []driven.PipelineStep {
	out := make([]driven.PipelineStep, len(r.steps))
	copy(out, r.steps)
	return out
}

// Names returns the step names in execution order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.steps))
	for i, s := range r.steps {
		names[i] = s.Name()
	}
	return names
}

// Len returns the number of steps.
func (r *Registry) Len() int {
	return len(r.steps)
}
