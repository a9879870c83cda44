// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Provider: Produces normalised documents from a source
//   - MetadataStore: Fingerprints, document metadata, namespace locks,
//     sessions and ontology rules (SQLite, Postgres or memory)
//   - VectorStore: Dense and sparse vector persistence and search (Qdrant)
//   - GraphStore: Statement execution over the file/chunk graph (SurrealDB)
//   - Embedder: Generates dense embeddings per model
//   - PipelineStep: One stage of the ingestion pipeline
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - CacheStore: Query result and chunk cache. Without it every query searches.
//   - ProgressSink: Receives progress events. Without it events are dropped.
//   - MetricsRecorder: Records run metrics. Without it metrics are only logged.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, provider or pipeline package
package driven
