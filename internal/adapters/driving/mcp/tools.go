package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// DefaultCandidateLimit caps rag_candidates output when no limit is given.
const DefaultCandidateLimit = 10

// QueryInput is the input schema for the rag_query tool.
type QueryInput struct {
	Query     string `json:"query" jsonschema:"the question to assemble context for"`
	SessionID string `json:"session_id,omitempty" jsonschema:"optional session id; previous queries of the session expand the search"`
}

// QueryOutput is the output schema for the rag_query tool.
type QueryOutput struct {
	SessionID      string   `json:"session_id,omitempty"`
	ProjectChunks  []string `json:"project_chunks"`
	DomainChunks   []string `json:"domain_chunks"`
	CompanyChunks  []string `json:"company_chunks"`
	GraphNeighbors []string `json:"graph_neighbors,omitempty"`
	OntologyTags   []string `json:"ontology_tags"`
}

// CandidatesInput is the input schema for the rag_candidates tool.
type CandidatesInput struct {
	Query string `json:"query" jsonschema:"the question to score candidates for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of candidates to return (default 10)"`
}

// CandidatesOutput is the output schema for the rag_candidates tool.
type CandidatesOutput struct {
	Candidates []domain.DebugCandidate `json:"candidates"`
	Count      int                     `json:"count"`
}

// IngestInput is the input schema for the rag_ingest tool.
type IngestInput struct {
	Namespace string `json:"namespace,omitempty" jsonschema:"namespace to ingest (default from configuration)"`
}

// IngestOutput is the output schema for the rag_ingest tool.
type IngestOutput struct {
	JobID   string                  `json:"job_id"`
	Status  string                  `json:"status"`
	Metrics domain.IngestionMetrics `json:"metrics"`
	Error   string                  `json:"error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "rag_query",
		Description: "Assemble project, domain and company context for a question",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "rag_candidates",
		Description: "List scored retrieval candidates with per-signal scores",
	}, s.handleCandidates)

	if s.ports.Ingestion != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "rag_ingest",
			Description: "Ingest all configured sources into a namespace",
		}, s.handleIngest)
	}
}

// handleQuery handles the rag_query tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	if input.Query == "" {
		return nil, QueryOutput{}, errors.New("query is required")
	}

	var (
		rc        *domain.RAGContext
		sessionID string
		err       error
	)
	if input.SessionID != "" {
		rc, sessionID, err = s.ports.Retrieval.QueryWithSession(ctx, input.Query, input.SessionID)
	} else {
		rc, err = s.ports.Retrieval.Query(ctx, input.Query, nil)
	}
	if err != nil {
		return nil, QueryOutput{}, err
	}

	return nil, QueryOutput{
		SessionID:      sessionID,
		ProjectChunks:  rc.ProjectChunks,
		DomainChunks:   rc.DomainChunks,
		CompanyChunks:  rc.CompanyChunks,
		GraphNeighbors: rc.GraphNeighbors,
		OntologyTags:   rc.OntologyTags,
	}, nil
}

// handleCandidates handles the rag_candidates tool invocation.
func (s *Server) handleCandidates(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CandidatesInput,
) (*mcp.CallToolResult, CandidatesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}

	candidates, err := s.ports.Retrieval.GatherCandidates(ctx, input.Query, nil)
	if err != nil {
		return nil, CandidatesOutput{}, err
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return nil, CandidatesOutput{Candidates: candidates, Count: len(candidates)}, nil
}

// handleIngest handles the rag_ingest tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	ns := input.Namespace
	if ns == "" {
		ns = s.ports.Namespace
	}

	job := s.ports.Ingestion.RunJob(ctx, ns)
	out := IngestOutput{JobID: job.ID, Status: string(job.Status), Metrics: job.Metrics}
	if job.Err != nil {
		out.Error = job.Err.Error()
	}
	return nil, out, nil
}
