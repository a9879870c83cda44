package driven

import (
	"context"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// FingerprintStore persists content hashes and descriptive document metadata.
type FingerprintStore interface {
	// GetFingerprint returns the stored hash for path.
	// The boolean is false when no fingerprint exists.
	GetFingerprint(ctx context.Context, path string) (string, bool, error)

	// SetFingerprint stores hash for path, overwriting any prior value.
	SetFingerprint(ctx context.Context, path, hash string) error

	// InsertDocumentMetadata upserts the descriptive columns of a document.
	InsertDocumentMetadata(ctx context.Context, doc *domain.Document) error

	// StoreChunkMetadata upserts the file/chunk mapping for one chunk.
	StoreChunkMetadata(ctx context.Context, doc *domain.Document, chunk *domain.Chunk) error
}

// NamespaceLocker provides a non-blocking advisory lock per namespace.
type NamespaceLocker interface {
	// TryAdvisoryLock returns true if the lock was acquired.
	TryAdvisoryLock(ctx context.Context, namespace string) (bool, error)

	// AdvisoryUnlock releases a lock taken with TryAdvisoryLock.
	AdvisoryUnlock(ctx context.Context, namespace string) error
}

// SessionStore persists retrieval sessions.
type SessionStore interface {
	// GetSession returns domain.ErrNotFound when the session does not exist.
	GetSession(ctx context.Context, id string) (*domain.RagSession, error)

	// SaveSession upserts the session history.
	SaveSession(ctx context.Context, session *domain.RagSession) error
}

// OntologyRuleStore persists classifier rules.
type OntologyRuleStore interface {
	// LoadOntologyRules returns all rules with lower-cased patterns.
	LoadOntologyRules(ctx context.Context) ([]domain.OntologyRule, error)

	// SaveOntologyRule adds patterns for a tag.
	SaveOntologyRule(ctx context.Context, tag string, patterns []string) error
}

// MetadataStore is the relational metadata store used by ingestion and
// retrieval.
type MetadataStore interface {
	FingerprintStore
	NamespaceLocker
	SessionStore
	OntologyRuleStore

	// Close releases the underlying connection.
	Close() error
}
