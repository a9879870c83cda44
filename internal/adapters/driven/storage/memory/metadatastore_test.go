package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

func TestMetadataStore_Fingerprint(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()

	_, ok, err := store.GetFingerprint(ctx, "a.md")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetFingerprint(ctx, "a.md", "h1"))
	hash, ok, err := store.GetFingerprint(ctx, "a.md")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "h1", hash)
}

func TestMetadataStore_DocumentMetadata(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()

	doc := &domain.Document{Path: "a.md", Content: "body", Namespace: "repo"}
	require.NoError(t, store.InsertDocumentMetadata(ctx, doc))

	got, ok := store.Document("a.md")
	require.True(t, ok)
	assert.Empty(t, got.Content)
	assert.Equal(t, "repo", got.Namespace)

	require.NoError(t, store.StoreChunkMetadata(ctx, doc, &domain.Chunk{ChunkIndex: 2, VectorID: "7", Tags: []string{"misc"}}))
	rec, ok := store.Chunk("a.md", 2)
	require.True(t, ok)
	assert.Equal(t, "7", rec.VectorID)
	assert.Equal(t, []string{"misc"}, rec.Tags)
}

func TestMetadataStore_AdvisoryLock(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.TryAdvisoryLock(ctx, "repo")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, acquired)

	require.NoError(t, store.AdvisoryUnlock(ctx, "repo"))
	ok, err := store.TryAdvisoryLock(ctx, "repo")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMetadataStore_Sessions(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()

	_, err := store.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	session := domain.NewRagSession("s1")
	session.Append("q", "r")
	require.NoError(t, store.SaveSession(ctx, session))

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	got.Append("mutated", "")

	again, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, again.History, 1)
}

func TestMetadataStore_OntologyRules(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()

	require.NoError(t, store.SaveOntologyRule(ctx, "infra", []string{"K8s", "k8s", " ", "helm"}))
	rules, err := store.LoadOntologyRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.OntologyRule{{Pattern: "k8s", Tag: "infra"}, {Pattern: "helm", Tag: "infra"}}, rules)
	assert.NoError(t, store.Close())
}
