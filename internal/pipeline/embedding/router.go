// Package embedding routes chunks to embedding models and attaches dense and
// sparse vectors.
package embedding

import (
	"strings"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/providers/langdetect"
)

// LargeDocumentBytes is the size above which the large-document model is used.
const LargeDocumentBytes = 200_000

// DefaultNamespace is assumed for chunks whose document is unknown.
const DefaultNamespace = "default"

// Router selects an embedding model per document. Empty routes fall back to
// Default.
type Router struct {
	Default       string
	Rust          string
	Markdown      string
	OpenAPI       string
	LargeDocument string
}

// Target describes what the router looks at.
type Target struct {
	FileType  string
	Language  string
	Namespace string
	Size      int64
}

// TargetFor builds a routing target for a chunk. doc may be nil, in which
// case the file type comes from the chunk path.
func TargetFor(chunk *domain.Chunk, doc *domain.Document) Target {
	if doc == nil {
		return Target{
			FileType:  langdetect.Extension(domain.BasePath(chunk.DocumentPath)),
			Namespace: DefaultNamespace,
		}
	}
	ns := doc.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	return Target{
		FileType:  strings.ToLower(doc.FileType),
		Language:  strings.ToLower(doc.Language),
		Namespace: ns,
		Size:      doc.Size(),
	}
}

// Route returns the model for target. The first matching rule wins.
func (r Router) Route(t Target) string {
	switch {
	case t.Size > LargeDocumentBytes:
		return r.or(r.LargeDocument, r.Markdown)
	case strings.Contains(t.FileType, "openapi"):
		return r.or(r.OpenAPI)
	case strings.HasSuffix(t.FileType, "md") || strings.Contains(t.FileType, "markdown"):
		return r.or(r.Markdown)
	case strings.HasSuffix(t.FileType, "rs") || strings.Contains(t.FileType, "rust") ||
		t.Language == "rust" || strings.Contains(t.Namespace, "rust"):
		return r.or(r.Rust)
	}
	return r.Default
}

func (r Router) or(models ...string) string {
	for _, m := range models {
		if m != "" {
			return m
		}
	}
	return r.Default
}
