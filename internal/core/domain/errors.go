package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider or store driver.
	ErrUnsupportedType = errors.New("unsupported type")

	// Pipeline Errors.

	// ErrNoDocuments indicates the providers produced nothing to ingest.
	ErrNoDocuments = errors.New("no documents found")

	// ErrNoChunks indicates chunking produced no chunks.
	ErrNoChunks = errors.New("chunking produced no chunks")

	// ErrNoVectorWrites indicates no chunk reached the vector store.
	ErrNoVectorWrites = errors.New("no vectors written")

	// ErrNoGraphNodes indicates no node reached the graph store.
	ErrNoGraphNodes = errors.New("no graph nodes written")

	// ErrStepPanicked indicates a pipeline step panicked and was recovered.
	ErrStepPanicked = errors.New("pipeline step panicked")

	// ErrEmbeddingFailed indicates the embedding backend rejected a model group.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrEmbeddingUnavailable indicates no embedding backend is configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLockNotAcquired indicates another run holds the namespace lock.
	// The ingestion service treats it as a successful no-op.
	ErrLockNotAcquired = errors.New("namespace lock not acquired")
)

// StepError reports which pipeline step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
