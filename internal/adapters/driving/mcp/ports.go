package mcp

import (
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/core/ports/driving"
)

// Ports aggregates the ports the MCP server needs.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval answers rag_query and rag_candidates.
	Retrieval driving.RetrievalService

	// Ingestion backs rag_ingest. Optional.
	Ingestion driving.IngestionService

	// Sessions backs the session resource. Optional.
	Sessions driven.SessionStore

	// Metrics backs the last-run metrics resource. Optional.
	Metrics driven.MetricsRecorder

	// Namespace is ingested by rag_ingest when the call names none.
	Namespace string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
