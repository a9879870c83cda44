// Package graphupsert writes file and chunk nodes with containment edges to
// the graph store.
package graphupsert

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/logger"
)

// Name is the step name.
const Name = "graph_upsert"

var _ driven.PipelineStep = (*Step)(nil)

var log = logger.Named(Name)

// Step replaces the graph nodes of every document and chunk in one batch.
type Step struct {
	store driven.GraphStore
}

// New creates the graph upsert step.
func New(store driven.GraphStore) *Step {
	return &Step{store: store}
}

// Name returns the step name.
func (s *Step) Name() string { return Name }

// Process builds the statements and executes them as a single batch.
func (s *Step) Process(ctx context.Context, data *domain.PipelineData) (*domain.PipelineData, error) {
	sql := Statements(data.Documents, data.Chunks)
	log.Debug("graph statements:\n%s", sql)

	if err := s.store.Execute(ctx, sql); err != nil {
		return nil, fmt.Errorf("graph upsert: %w", err)
	}

	data.Metrics.GraphNodes = len(data.Documents) + len(data.Chunks)
	log.Info("graph upsert: %d files, %d chunks", len(data.Documents), len(data.Chunks))
	return data, nil
}

// Statements renders delete-then-insert statements for every file, chunk
// and file -> chunk edge, one line per node or edge. Segments of one file
// share the file node keyed by the base path; chunk ids keep the segment.
func Statements(docs []domain.Document, chunks []domain.Chunk) string {
	var b strings.Builder
	files := make(map[string]bool, len(docs))
	for _, doc := range docs {
		base := domain.BasePath(doc.Path)
		if files[base] {
			continue
		}
		files[base] = true
		fid := domain.FileNodeID(base)
		fmt.Fprintf(&b, "DELETE FROM %s WHERE id = %s; INSERT INTO %s (id, path, namespace) VALUES (%s, %s, %s);\n",
			domain.FileTable, domain.QuoteSQL(fid),
			domain.FileTable, domain.QuoteSQL(fid), domain.QuoteSQL(base), domain.QuoteSQL(doc.Namespace))
	}
	for _, chunk := range chunks {
		fid := domain.FileNodeID(domain.BasePath(chunk.DocumentPath))
		cid := domain.ChunkNodeID(chunk.DocumentPath, chunk.ChunkIndex)
		eid := domain.EdgeID(fid, cid)
		fmt.Fprintf(&b, "DELETE FROM %s WHERE id = %s; INSERT INTO %s (id, path, namespace, chunk_index) VALUES (%s, %s, %s, %d);\n",
			domain.ChunkTable, domain.QuoteSQL(cid),
			domain.ChunkTable, domain.QuoteSQL(cid), domain.QuoteSQL(chunk.DocumentPath),
			domain.QuoteSQL(chunk.Namespace), chunk.ChunkIndex)
		fmt.Fprintf(&b, "DELETE FROM %s WHERE id = %s; INSERT INTO %s (id, in, out, relation) VALUES (%s, %s, %s, %s);\n",
			domain.ContainsTable, domain.QuoteSQL(eid),
			domain.ContainsTable, domain.QuoteSQL(eid), domain.QuoteSQL(fid), domain.QuoteSQL(cid),
			domain.QuoteSQL(domain.RelationContains))
	}
	return strings.TrimSuffix(b.String(), "\n")
}
