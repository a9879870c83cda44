package driven

import (
	"context"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// Provider produces documents from one source (filesystem, GitHub, ...).
// Documents are returned normalised and fingerprinted.
type Provider interface {
	// Name returns the provider identifier ("filesystem", "github").
	Name() string

	// Priority orders providers; lower values load first.
	Priority() int

	// LoadDocuments fetches all documents. The result may be empty and
	// carries no ordering guarantee.
	LoadDocuments(ctx context.Context) ([]domain.Document, error)
}
