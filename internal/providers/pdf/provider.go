// Package pdf loads an explicit list of PDF files.
package pdf

import (
	"context"
	"os"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/logger"
	pdfx "github.com/custodia-labs/mnemo/internal/normalisers/pdf"
	"github.com/custodia-labs/mnemo/internal/normalisers/text"
	"github.com/custodia-labs/mnemo/internal/providers/segment"
)

const (
	// Name is the provider name.
	Name = "pdf"

	// Priority places PDFs after the filesystem walk.
	Priority = 2
)

// Extractor converts PDF bytes to text and properties.
type Extractor interface {
	Extract(ctx context.Context, content []byte) (*pdfx.Result, error)
}

var _ driven.Provider = (*Provider)(nil)

var log = logger.Named("pdf")

// Provider extracts each configured PDF into one document.
type Provider struct {
	paths     []string
	namespace string
	extractor Extractor
}

// New creates a PDF provider. An empty namespace means "local".
func New(paths []string, namespace string, extractor Extractor) *Provider {
	if namespace == "" {
		namespace = "local"
	}
	if extractor == nil {
		extractor = pdfx.New()
	}
	return &Provider{paths: paths, namespace: namespace, extractor: extractor}
}

// Name returns the provider name.
func (p *Provider) Name() string { return Name }

// Priority returns the registry priority.
func (p *Provider) Priority() int { return Priority }

// LoadDocuments reads and extracts every path. Unreadable or unparsable
// files are skipped.
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
		res, err := p.extractor.Extract(ctx, raw)
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
			FileType:    "pdf",
			Language:    "pdf",
			Metadata:    res.Metadata(),
		})
	}
	return docs, nil
}
