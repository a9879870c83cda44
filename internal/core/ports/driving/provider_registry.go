package driving

import (
	"context"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// ProviderRegistry loads documents from every registered provider.
type ProviderRegistry interface {
	// Names returns the provider names in load order.
	Names() []string

	// LoadDocuments concatenates the documents of all providers in ascending
	// priority. A failing provider contributes nothing.
	LoadDocuments(ctx context.Context) []domain.Document
}
