// Package sqlite provides a SQLite implementation of driven.MetadataStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database holds:
//
//   - fingerprints: content hash per document path
//   - files and chunks: descriptive document metadata and the chunk/vector mapping
//   - sessions: retrieval session history
//   - ontology_rules: classifier patterns
//   - namespace_locks: advisory lock rows for ingestion runs
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.mnemo/data/metadata.db
//
// # Locking
//
// A namespace lock is a row in namespace_locks stamped with acquired_at. A
// process that dies while holding a lock leaves the row behind. The next
// TryAdvisoryLock after DefaultLockTTL (see SetLockTTL) takes it over.
package sqlite
