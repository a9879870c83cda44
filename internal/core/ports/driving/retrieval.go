package driving

import (
	"context"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// RetrievalService assembles RAG context for queries.
type RetrievalService interface {
	// Query returns the bucketed context for text. session may be nil.
	Query(ctx context.Context, text string, session *domain.RagSession) (*domain.RAGContext, error)

	// GatherCandidates returns every scored candidate with per-signal scores.
	GatherCandidates(ctx context.Context, text string, session *domain.RagSession) ([]domain.DebugCandidate, error)

	// QueryWithSession loads or creates the session, runs Query and records
	// the exchange. It returns the session id used.
	QueryWithSession(ctx context.Context, text, sessionID string) (*domain.RAGContext, string, error)
}
