// Package domain defines the core business entities for mnemo.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A normalised document produced by a provider
//   - Chunk: A bounded text segment, the unit of embedding and indexing
//   - PipelineData: Per-run state passed between ingestion steps
//   - RAGContext: The bucketed result of a retrieval query
//   - RagSession: Query history used for query expansion
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
