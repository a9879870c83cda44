package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/mnemo/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
)

var _ driven.MetadataStore = (*Store)(nil)

// DefaultLockTTL is how long a namespace lock row is honoured before a new
// run may take it over.
const DefaultLockTTL = 2 * time.Hour

// Store is a SQLite-based metadata store.
type Store struct {
	db      *sql.DB
	path    string
	lockTTL time.Duration
	now     func() time.Time
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.mnemo/data/metadata.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".mnemo", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	// WAL mode lets readers proceed while a pipeline run writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:      db,
		path:    dbPath,
		lockTTL: DefaultLockTTL,
		now:     time.Now,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Fingerprints ====================

// GetFingerprint returns the stored hash for path.
func (s *Store) GetFingerprint(ctx context.Context, path string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT hash FROM fingerprints WHERE path = ?", path).Scan(&hash)
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fingerprints (path, hash, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, updated_at = excluded.updated_at
	`, path, hash)
	if err != nil {
		return fmt.Errorf("saving fingerprint: %w", err)
	}
	return nil
}

// InsertDocumentMetadata upserts the descriptive columns of a document.
func (s *Store) InsertDocumentMetadata(ctx context.Context, doc *domain.Document) error {
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	var modifiedAt any
	if doc.ModifiedAt != nil {
		modifiedAt = doc.ModifiedAt.UTC().Format(time.RFC3339)
	}
	var fileSize any
	if doc.FileSize != nil {
		fileSize = *doc.FileSize
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO files (path, namespace, fingerprint, file_type, language, file_size, modified_at, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			namespace = excluded.namespace,
			fingerprint = excluded.fingerprint,
			file_type = excluded.file_type,
			language = excluded.language,
			file_size = excluded.file_size,
			modified_at = excluded.modified_at,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, doc.Path, doc.Namespace, doc.Fingerprint, doc.FileType, doc.Language, fileSize, modifiedAt, string(metaJSON))
	if err != nil {
		return fmt.Errorf("saving document metadata: %w", err)
	}
	return nil
}

// StoreChunkMetadata upserts the file/chunk mapping for one chunk.
func (s *Store) StoreChunkMetadata(ctx context.Context, doc *domain.Document, chunk *domain.Chunk) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (path, chunk_index, namespace, vector_id, tags) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path, chunk_index) DO UPDATE SET
			namespace = excluded.namespace,
			vector_id = excluded.vector_id,
			tags = excluded.tags
	`, doc.Path, chunk.ChunkIndex, doc.Namespace, chunk.VectorID, strings.Join(chunk.Tags, ","))
	if err != nil {
		return fmt.Errorf("saving chunk metadata: %w", err)
	}
	return nil
}

// ==================== Namespace Locks ====================

// SetLockTTL changes how long lock rows are honoured. Non-positive values
// restore DefaultLockTTL.
func (s *Store) SetLockTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	s.lockTTL = ttl
}

// TryAdvisoryLock inserts a lock row for namespace. It returns false when a
// row younger than the lock TTL already exists. Older rows are left by
// runs that died and are taken over.
func (s *Store) TryAdvisoryLock(ctx context.Context, namespace string) (bool, error) {
	now := s.now()
	cutoff := now.Add(-s.lockTTL).Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}
	defer tx.Rollback()

	// Rows written before acquired_at held unix seconds are text and never
	// compare below an integer, so those are matched by type.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM namespace_locks
		WHERE namespace = ? AND (typeof(acquired_at) != 'integer' OR acquired_at < ?)
	`, namespace, cutoff); err != nil {
		return false, fmt.Errorf("expiring stale lock: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO namespace_locks (namespace, acquired_at) VALUES (?, ?)", namespace, now.Unix())
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}
	return n == 1, nil
}

// AdvisoryUnlock removes the lock row for namespace.
func (s *Store) AdvisoryUnlock(ctx context.Context, namespace string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM namespace_locks WHERE namespace = ?", namespace); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}

// ==================== Sessions ====================

// GetSession returns the session with id or domain.ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.RagSession, error) {
	var history string
	err := s.db.QueryRowContext(ctx, "SELECT history FROM sessions WHERE id = ?", id).Scan(&history)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	session := domain.NewRagSession(id)
	if err := json.Unmarshal([]byte(history), &session.History); err != nil {
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, history, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET history = excluded.history, updated_at = excluded.updated_at
	`, session.ID, string(history))
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// ==================== Ontology Rules ====================

// LoadOntologyRules returns all rules in insertion order.
func (s *Store) LoadOntologyRules(ctx context.Context) ([]domain.OntologyRule, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT pattern, tag FROM ontology_rules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying ontology rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.OntologyRule
	for rows.Next() {
		var r domain.OntologyRule
		if err := rows.Scan(&r.Pattern, &r.Tag); err != nil {
			return nil, fmt.Errorf("scanning ontology rule: %w", err)
		}
		r.Pattern = strings.ToLower(r.Pattern)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// SaveOntologyRule adds patterns for tag. Existing pairs are ignored.
func (s *Store) SaveOntologyRule(ctx context.Context, tag string, patterns []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO ontology_rules (pattern, tag) VALUES (?, ?)", p, tag); err != nil {
			return fmt.Errorf("saving ontology rule: %w", err)
		}
	}
	return tx.Commit()
}
