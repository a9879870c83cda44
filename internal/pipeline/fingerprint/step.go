// Package fingerprint drops documents whose content hash is unchanged since
// the last run.
package fingerprint

import (
	"context"
	"fmt"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/logger"
)

// Name is the step name.
const Name = "fingerprint"

var _ driven.PipelineStep = (*Step)(nil)

var log = logger.Named(Name)

// Step compares each document's fingerprint with the stored one.
type Step struct {
	store driven.FingerprintStore
}

// New creates the fingerprint step.
func New(store driven.FingerprintStore) *Step {
	return &Step{store: store}
}

// Name returns the step name.
func (s *Step) Name() string { return Name }

// Process keeps new or changed documents and records their fingerprints.
// A fingerprint persistence error aborts the run; a metadata insert error
// is only logged.
func (s *Step) Process(ctx context.Context, data *domain.PipelineData) (*domain.PipelineData, error) {
	kept := make([]domain.Document, 0, len(data.Documents))
	for i := range data.Documents {
		doc := &data.Documents[i]

		stored, ok, err := s.store.GetFingerprint(ctx, doc.Path)
		if err != nil {
			return nil, fmt.Errorf("get fingerprint %s: %w", doc.Path, err)
		}
		if ok && stored == doc.Fingerprint {
			log.Debug("unchanged: %s", doc.Path)
			continue
		}

		if err := s.store.SetFingerprint(ctx, doc.Path, doc.Fingerprint); err != nil {
			return nil, fmt.Errorf("set fingerprint %s: %w", doc.Path, err)
		}
		if err := s.store.InsertDocumentMetadata(ctx, doc); err != nil {
			log.Warn("insert metadata %s: %v", doc.Path, err)
		}
		kept = append(kept, *doc)
	}

	log.Info("%d of %d documents changed", len(kept), len(data.Documents))
	data.Documents = kept
	data.Metrics.DocumentsProcessed = len(kept)
	return data, nil
}
