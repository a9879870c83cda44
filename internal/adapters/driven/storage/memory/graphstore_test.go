package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

func TestGraphStore_ExecuteAndQuery(t *testing.T) {
	store := NewGraphStore()
	ctx := context.Background()

	batch := "DELETE FROM file WHERE id = 'file:a'; INSERT INTO file (id, path, namespace) VALUES ('file:a', 'it''s; odd.md', 'repo');\n" +
		"DELETE FROM contains WHERE id = 'e1'; INSERT INTO contains (id, in, out, relation) VALUES ('e1', 'file:a', 'chunk:1', 'contains');\n" +
		"DELETE FROM contains WHERE id = 'e2'; INSERT INTO contains (id, in, out, relation) VALUES ('e2', 'file:a', 'chunk:2', 'contains');"
	require.NoError(t, store.Execute(ctx, batch))
	require.NoError(t, store.Execute(ctx, batch))

	assert.Equal(t, 1, store.Count("file"))
	assert.Equal(t, 2, store.Count("contains"))

	rows, err := store.Query(ctx, "SELECT * FROM file WHERE id = 'file:a';")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "it's; odd.md", rows[0]["path"])

	rows, err = store.Query(ctx, "SELECT in, out FROM contains WHERE in = 'chunk:2' OR out = 'chunk:2' LIMIT 100;")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{"in": "file:a", "out": "chunk:2"}, rows[0])

	rows, err = store.Query(ctx, "SELECT DISTINCT in FROM contains LIMIT 10")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = store.Query(ctx, "SELECT * FROM contains LIMIT 1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestGraphStore_Errors(t *testing.T) {
	store := NewGraphStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.Execute(ctx, "UPDATE file SET x = 1"), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.Execute(ctx, "INSERT INTO file (id, path) VALUES ('a')"), domain.ErrInvalidInput)

	_, err := store.Query(ctx, "SELECT * FROM a; SELECT * FROM b")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.Query(ctx, "SELECT * FROM file WHERE id > 3")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
