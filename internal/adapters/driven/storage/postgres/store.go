// Package postgres provides a PostgreSQL implementation of
// driven.MetadataStore using lib/pq.
//
// Namespace locks are session-level advisory locks
// (pg_try_advisory_lock). Each held lock pins one pooled connection until
// it is released.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/lib/pq"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
)

var _ driven.MetadataStore = (*Store)(nil)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS fingerprints (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		path TEXT PRIMARY KEY,
		namespace TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		file_type TEXT,
		language TEXT,
		file_size BIGINT,
		modified_at TIMESTAMPTZ,
		metadata JSONB,
		updated_at TIMESTAMPTZ DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chunks (
		path TEXT NOT NULL,
		idx INTEGER NOT NULL,
		namespace TEXT NOT NULL,
		tags TEXT[],
		vector_id TEXT,
		PRIMARY KEY (path, idx)
	)`,
	`CREATE TABLE IF NOT EXISTS ontology_rules (
		id SERIAL PRIMARY KEY,
		tag TEXT NOT NULL,
		patterns TEXT[] NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rag_sessions (
		id TEXT PRIMARY KEY,
		history JSONB NOT NULL,
		updated_at TIMESTAMPTZ DEFAULT now()
	)`,
}

// Store is a PostgreSQL-backed metadata store.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sql.Conn
}

// Open connects to dsn, verifies the connection and creates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	s := New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. The schema is not touched.
func New(db *sql.DB) *Store {
	return &Store{db: db, locks: make(map[string]*sql.Conn)}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Close releases held locks and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	for ns, conn := range s.locks {
		conn.Close()
		delete(s.locks, ns)
	}
	s.mu.Unlock()
	return s.db.Close()
}

// GetFingerprint returns the stored hash for path.
func (s *Store) GetFingerprint(ctx context.Context, path string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM fingerprints WHERE path = $1`, path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying fingerprint: %w", err)
	}
	return hash, true, nil
}

// SetFingerprint stores hash for path, overwriting any prior value.
func (s *Store) SetFingerprint(ctx context.Context, path, hash string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO fingerprints (path, hash) VALUES ($1, $2)
ON CONFLICT (path) DO UPDATE SET hash = EXCLUDED.hash`, path, hash)
	if err != nil {
		return fmt.Errorf("saving fingerprint: %w", err)
	}
	return nil
}

// InsertDocumentMetadata upserts the descriptive columns of a document.
func (s *Store) InsertDocumentMetadata(ctx context.Context, doc *domain.Document) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	var size sql.NullInt64
	if doc.FileSize != nil {
		size = sql.NullInt64{Int64: *doc.FileSize, Valid: true}
	}
	var modified sql.NullTime
	if doc.ModifiedAt != nil {
		modified = sql.NullTime{Time: *doc.ModifiedAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO files (path, namespace, fingerprint, file_type, language, file_size, modified_at, metadata, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (path) DO UPDATE SET
  namespace = EXCLUDED.namespace,
  fingerprint = EXCLUDED.fingerprint,
  file_type = EXCLUDED.file_type,
  language = EXCLUDED.language,
  file_size = EXCLUDED.file_size,
  modified_at = EXCLUDED.modified_at,
  metadata = EXCLUDED.metadata,
  updated_at = now()`,
		doc.Path, doc.Namespace, doc.Fingerprint, doc.FileType, doc.Language, size, modified, string(meta))
	if err != nil {
		return fmt.Errorf("saving document metadata: %w", err)
	}
	return nil
}

// StoreChunkMetadata upserts the file/chunk mapping for one chunk.
func (s *Store) StoreChunkMetadata(ctx context.Context, doc *domain.Document, chunk *domain.Chunk) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO chunks (path, idx, namespace, tags, vector_id) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (path, idx) DO UPDATE SET
  namespace = EXCLUDED.namespace,
  tags = EXCLUDED.tags,
  vector_id = EXCLUDED.vector_id`,
		doc.Path, chunk.ChunkIndex, doc.Namespace, pq.Array(chunk.Tags), chunk.VectorID)
	if err != nil {
		return fmt.Errorf("saving chunk metadata: %w", err)
	}
	return nil
}

// LockKey maps a namespace to its advisory lock key.
func LockKey(namespace string) int64 {
	h := fnv.New64a()
	h.Write([]byte(namespace))
	return int64(h.Sum64() & (1<<63 - 1))
}

// TryAdvisoryLock takes the namespace lock on a dedicated connection.
// It returns false when another session holds it.
func (s *Store) TryAdvisoryLock(ctx context.Context, namespace string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.locks[namespace]; held {
		return false, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("acquiring connection: %w", err)
	}
	var locked bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, LockKey(namespace)).Scan(&locked); err != nil {
		conn.Close()
		return false, fmt.Errorf("advisory lock: %w", err)
	}
	if !locked {
		conn.Close()
		return false, nil
	}
	s.locks[namespace] = conn
	return true, nil
}

// AdvisoryUnlock releases the namespace lock and returns its connection to
// the pool. Unlocking a namespace that is not held is a no-op.
func (s *Store) AdvisoryUnlock(ctx context.Context, namespace string) error {
	s.mu.Lock()
	conn, held := s.locks[namespace]
	delete(s.locks, namespace)
	s.mu.Unlock()
	if !held {
		return nil
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, LockKey(namespace)); err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return nil
}

// GetSession returns the session with id or domain.ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.RagSession, error) {
	var history []byte
	err := s.db.QueryRowContext(ctx, `SELECT history FROM rag_sessions WHERE id = $1`, id).Scan(&history)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	session := domain.NewRagSession(id)
	if err := json.Unmarshal(history, &session.History); err != nil {
		return nil, fmt.Errorf("unmarshalling session history: %w", err)
	}
	return session, nil
}

// SaveSession upserts the session history.
func (s *Store) SaveSession(ctx context.Context, session *domain.RagSession) error {
	history, err := json.Marshal(session.History)
	if err != nil {
		return fmt.Errorf("marshalling session history: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO rag_sessions (id, history, updated_at) VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET history = EXCLUDED.history, updated_at = now()`, session.ID, string(history))
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// LoadOntologyRules expands every stored (tag, patterns) row into one rule
// per pattern.
func (s *Store) LoadOntologyRules(ctx context.Context) ([]domain.OntologyRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag, patterns FROM ontology_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying ontology rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.OntologyRule
	for rows.Next() {
		var tag string
		var patterns []string
		if err := rows.Scan(&tag, pq.Array(&patterns)); err != nil {
			return nil, fmt.Errorf("scanning ontology rule: %w", err)
		}
		for _, p := range patterns {
			rules = append(rules, domain.OntologyRule{Pattern: strings.ToLower(p), Tag: tag})
		}
	}
	return rules, rows.Err()
}

// SaveOntologyRule stores one row of lower-cased patterns for tag.
func (s *Store) SaveOntologyRule(ctx context.Context, tag string, patterns []string) error {
	clean := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return fmt.Errorf("no patterns for tag %q: %w", tag, domain.ErrInvalidInput)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO ontology_rules (tag, patterns) VALUES ($1, $2)`,
		tag, pq.Array(clean)); err != nil {
		return fmt.Errorf("saving ontology rule: %w", err)
	}
	return nil
}
