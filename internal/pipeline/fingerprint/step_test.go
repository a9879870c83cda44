package fingerprint

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// mockStore is an in-memory FingerprintStore.
type mockStore struct {
	hashes    map[string]string
	metadata  []string
	getErr    error
	setErr    error
	insertErr error
}

func newMockStore() *mockStore {
	return &mockStore{hashes: make(map[string]string)}
}

func (m *mockStore) GetFingerprint(_ context.Context, path string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	h, ok := m.hashes[path]
	return h, ok, nil
}

func (m *mockStore) SetFingerprint(_ context.Context, path, hash string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.hashes[path] = hash
	return nil
}

func (m *mockStore) InsertDocumentMetadata(_ context.Context, doc *domain.Document) error {
	m.metadata = append(m.metadata, doc.Path)
	return m.insertErr
}

func (m *mockStore) StoreChunkMetadata(context.Context, *domain.Document, *domain.Chunk) error {
	return nil
}

func docs() []domain.Document {
	return []domain.Document{
		{Path: "a.md", Fingerprint: "h1"},
		{Path: "b.md", Fingerprint: "h2"},
	}
}

func TestStep_Process(t *testing.T) {
	t.Run("first run keeps everything", func(t *testing.T) {
		store := newMockStore()
		out, err := New(store).Process(context.Background(), domain.NewPipelineData(docs()))
		require.NoError(t, err)

		assert.Len(t, out.Documents, 2)
		assert.Equal(t, 2, out.Metrics.DocumentsProcessed)
		assert.Equal(t, map[string]string{"a.md": "h1", "b.md": "h2"}, store.hashes)
		assert.Equal(t, []string{"a.md", "b.md"}, store.metadata)
	})

	t.Run("second run with same content keeps nothing", func(t *testing.T) {
		store := newMockStore()
		step := New(store)
		_, err := step.Process(context.Background(), domain.NewPipelineData(docs()))
		require.NoError(t, err)

		out, err := step.Process(context.Background(), domain.NewPipelineData(docs()))
		require.NoError(t, err)
		assert.Empty(t, out.Documents)
		assert.Equal(t, 0, out.Metrics.DocumentsProcessed)
	})

	t.Run("changed content is kept and overwritten", func(t *testing.T) {
		store := newMockStore()
		store.hashes["a.md"] = "h1"
		store.hashes["b.md"] = "old"

		out, err := New(store).Process(context.Background(), domain.NewPipelineData(docs()))
		require.NoError(t, err)
		require.Len(t, out.Documents, 1)
		assert.Equal(t, "b.md", out.Documents[0].Path)
		assert.Equal(t, "h2", store.hashes["b.md"])
	})

	t.Run("get error aborts", func(t *testing.T) {
		store := newMockStore()
		store.getErr = errors.New("db down")
		_, err := New(store).Process(context.Background(), domain.NewPipelineData(docs()))
		assert.ErrorIs(t, err, store.getErr)
	})

	t.Run("set error aborts", func(t *testing.T) {
		store := newMockStore()
		store.setErr = errors.New("disk full")
		_, err := New(store).Process(context.Background(), domain.NewPipelineData(docs()))
		assert.ErrorIs(t, err, store.setErr)
	})

	t.Run("metadata error is ignored", func(t *testing.T) {
		store := newMockStore()
		store.insertErr = errors.New("constraint")
		out, err := New(store).Process(context.Background(), domain.NewPipelineData(docs()))
		require.NoError(t, err)
		assert.Len(t, out.Documents, 2)
	})

	assert.Equal(t, "fingerprint", New(nil).Name())
}
