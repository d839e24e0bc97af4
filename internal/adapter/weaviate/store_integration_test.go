package weaviate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/adapter/weaviate"
	"docqa/internal/testutils"
	"docqa/internal/vector"
)

func TestWeaviateStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	store := weaviate.NewStore(s.Weaviate, 3)
	ctx := context.Background()

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.Ready(ctx))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	res, err := store.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, res)

	err = store.AddDocuments(ctx, []vector.Record{
		{DocumentID: "doc-1", Source: "data/a.txt", Content: "Postgres is a database", Vector: []float32{1, 0, 0}},
		{DocumentID: "doc-1", Source: "data/a.txt", Content: "Weaviate stores vectors", ChunkIndex: 1, Vector: []float32{0, 1, 0}},
		{DocumentID: "doc-1", Source: "data/a.txt", Content: "NSQ moves messages", ChunkIndex: 2, Vector: []float32{0, 0, 1}},
	})
	require.NoError(t, err)

	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err = store.Search(ctx, []float32{0.9, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "Postgres is a database", res[0].Content)
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)
}
