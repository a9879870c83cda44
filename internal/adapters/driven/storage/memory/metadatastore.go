package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// ChunkRecord is the stored mapping of one chunk.
type ChunkRecord struct {
	Path       string
	ChunkIndex int
	Namespace  string
	VectorID   string
	Tags       []string
}

// MetadataStore is an in-memory implementation of driven.MetadataStore.
// Locks are process local.
type MetadataStore struct {
	mu           sync.RWMutex
	fingerprints map[string]string
	documents    map[string]domain.Document
	chunks       map[string]ChunkRecord
	sessions     map[string]domain.RagSession
	rules        []domain.OntologyRule
	locks        map[string]struct{}
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		fingerprints: make(map[string]string),
		documents:    make(map[string]domain.Document),
		chunks:       make(map[string]ChunkRecord),
		sessions:     make(map[string]domain.RagSession),
		locks:        make(map[string]struct{}),
	}
}

// GetFingerprint returns the stored hash for path.
func (s *MetadataStore) GetFingerprint(_ context.Context, path string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hash, ok := s.fingerprints[path]
	return hash, ok, nil
}

// SetFingerprint stores hash for path.
func (s *MetadataStore) SetFingerprint(_ context.Context, path, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprints[path] = hash
	return nil
}

// InsertDocumentMetadata stores a copy of doc without its content.
func (s *MetadataStore) InsertDocumentMetadata(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *doc
	stored.Content = ""
	s.documents[doc.Path] = stored
	return nil
}

// StoreChunkMetadata stores the mapping of chunk.
func (s *MetadataStore) StoreChunkMetadata(_ context.Context, doc *domain.Document, chunk *domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[domain.ChunkNodeID(doc.Path, chunk.ChunkIndex)] = ChunkRecord{
		Path:       doc.Path,
		ChunkIndex: chunk.ChunkIndex,
		Namespace:  doc.Namespace,
		VectorID:   chunk.VectorID,
		Tags:       append([]string(nil), chunk.Tags...),
	}
	return nil
}

// Document returns the stored metadata of path.
func (s *MetadataStore) Document(path string) (domain.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[path]
	return doc, ok
}

// Chunk returns the stored mapping of a chunk.
func (s *MetadataStore) Chunk(path string, index int) (ChunkRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.chunks[domain.ChunkNodeID(path, index)]
	return rec, ok
}

// TryAdvisoryLock takes the namespace lock if it is free.
func (s *MetadataStore) TryAdvisoryLock(_ context.Context, namespace string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.locks[namespace]; held {
		return false, nil
	}
	s.locks[namespace] = struct{}{}
	return true, nil
}

// AdvisoryUnlock releases the namespace lock.
func (s *MetadataStore) AdvisoryUnlock(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, namespace)
	return nil
}

// GetSession returns a copy of the session or domain.ErrNotFound.
func (s *MetadataStore) GetSession(_ context.Context, id string) (*domain.RagSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	session.History = append([]domain.SessionMessage(nil), session.History...)
	return &session, nil
}

// SaveSession stores a copy of session.
func (s *MetadataStore) SaveSession(_ context.Context, session *domain.RagSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *session
	stored.History = append([]domain.SessionMessage(nil), session.History...)
	s.sessions[session.ID] = stored
	return nil
}

// LoadOntologyRules returns the rules in insertion order.
func (s *MetadataStore) LoadOntologyRules(_ context.Context) ([]domain.OntologyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.OntologyRule(nil), s.rules...), nil
}

// SaveOntologyRule adds lower-cased patterns for tag, skipping duplicates.
func (s *MetadataStore) SaveOntologyRule(_ context.Context, tag string, patterns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || s.hasRule(p, tag) {
			continue
		}
		s.rules = append(s.rules, domain.OntologyRule{Pattern: p, Tag: tag})
	}
	return nil
}

func (s *MetadataStore) hasRule(pattern, tag string) bool {
	for _, r := range s.rules {
		if r.Pattern == pattern && r.Tag == tag {
			return true
		}
	}
	return false
}

// Close is a no-op.
func (s *MetadataStore) Close() error {
	return nil
}
