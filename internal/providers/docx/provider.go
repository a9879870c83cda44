// Package docx loads an explicit list of Word documents.
package docx

import (
	"context"
	"os"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/logger"
	docxx "github.com/custodia-labs/mnemo/internal/normalisers/docx"
	"github.com/custodia-labs/mnemo/internal/normalisers/text"
	"github.com/custodia-labs/mnemo/internal/providers/segment"
)

const (
	// Name is the provider name.
	Name = "docx"

	// Priority places DOCX after PDFs.
	Priority = 3
)

var _ driven.Provider = (*Provider)(nil)

var log = logger.Named("docx")

// Provider extracts each configured DOCX into one document.
type Provider struct {
	paths     []string
	namespace string
}

// New creates a DOCX provider. An empty namespace means "local".
func New(paths []string, namespace string) *Provider {
	if namespace == "" {
		namespace = "local"
	}
	return &Provider{paths: paths, namespace: namespace}
}

// Name returns the provider name.
func (p *Provider) Name() string { return Name }

// Priority returns the registry priority.
func (p *Provider) Priority() int { return Priority }

// LoadDocuments reads every path, skipping unreadable or invalid archives.
func (p *Provider) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(p.paths))
	for _, path := range p.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warn("read %s: %v", path, err)
			continue
		}
		res, err := docxx.Extract(raw)
		if err != nil {
			log.Warn("extract %s: %v", path, err)
			continue
		}

		content := text.Normalize(res.Text)
		size := int64(len(raw))
		docs = append(docs, domain.Document{
			Path:        path,
			Content:     content,
			Fingerprint: segment.Fingerprint(content),
			Namespace:   p.namespace,
			FileSize:    &size,
			FileType:    "docx",
			Language:    "docx",
			Metadata:    res.Metadata(),
		})
	}
	return docs, nil
}
