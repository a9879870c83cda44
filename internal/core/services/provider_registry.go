package services

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/core/ports/driving"
)

// Ensure ProviderRegistry implements the interface.
var _ driving.ProviderRegistry = (*ProviderRegistry)(nil)

// ProviderRegistry holds the document providers of one ingestion setup.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers []driven.Provider
}

// NewProviderRegistry creates a registry with the given providers.
func NewProviderRegistry(providers ...driven.Provider) *ProviderRegistry {
	r := &ProviderRegistry{}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds a provider. Nil providers are ignored.
func (r *ProviderRegistry) Register(p driven.Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].Priority() < r.providers[j].Priority()
	})
}

// Names returns the provider names in load order.
func (r *ProviderRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// LoadDocuments runs every provider in priority order and concatenates
// the results. Provider errors are logged and skipped.
func (r *ProviderRegistry) LoadDocuments(ctx context.Context) []domain.Document {
	r.mu.RLock()
	providers := make([]driven.Provider, len(r.providers))
	copy(providers, r.providers)
	r.mu.RUnlock()

	var docs []domain.Document
	for _, p := range providers {
		loaded, err := p.LoadDocuments(ctx)
		if err != nil {
			log.Warn("provider %s failed: %v", p.Name(), err)
			continue
		}
		log.Debug("provider %s loaded %d documents", p.Name(), len(loaded))
		docs = append(docs, loaded...)
	}
	return docs
}
