package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/codeatlas-go/internal/models"
)

// liveStore connects to the Neo4j instance named by NEO4J_URI, or skips the
// test when none is configured.
func liveStore(t *testing.T) *Neo4jStore {
	t.Helper()
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set")
	}
	username := os.Getenv("NEO4J_USER")
	if username == "" {
		username = "neo4j"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := NewNeo4jStore(ctx, uri, username, os.Getenv("NEO4J_PASSWORD"), os.Getenv("NEO4J_DATABASE"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

func TestNeo4jRebuildIsIdempotent(t *testing.T) {
	store := liveStore(t)
	ctx := context.Background()

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.CreateConstraints(ctx))

	cb := sampleCodebase()
	rels := []models.CallRelationship{{
		Caller: "main", CallerKind: models.KindFunction, CallerFile: "app.py", CallerLine: 1,
		Callee: "run", CalleeKind: models.KindMethod, CalleeFile: "app.py", CalleeLine: 8,
		CallLine: 1,
	}}

	b := NewBuilder(store, nil, nil)
	first, err := b.Build(ctx, cb, rels)
	require.NoError(t, err)
	require.Zero(t, first.Failures)

	firstNodes, err := store.NodeCounts(ctx)
	require.NoError(t, err)
	firstEdges, err := store.EdgeCounts(ctx)
	require.NoError(t, err)

	second, err := b.Build(ctx, cb, rels)
	require.NoError(t, err)
	require.Zero(t, second.Failures)

	secondNodes, err := store.NodeCounts(ctx)
	require.NoError(t, err)
	secondEdges, err := store.EdgeCounts(ctx)
	require.NoError(t, err)

	assert.Equal(t, firstNodes, secondNodes)
	assert.Equal(t, firstEdges, secondEdges)
	assert.Equal(t, int64(1), secondNodes[LabelFile])
	assert.Equal(t, int64(1), secondNodes[LabelClass])
	assert.Equal(t, int64(1), secondEdges[EdgeCalls])

	require.NoError(t, store.Clear(ctx))
}

func TestNeo4jEdgeToMissingNodeIsReported(t *testing.T) {
	store := liveStore(t)
	ctx := context.Background()

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.MergeNode(ctx, LabelFile, map[string]any{"path": "x.py"}, nil))

	err := store.MergeEdge(ctx, FileRef("x.py"),
		NodeRef{Label: LabelClass, Keys: map[string]any{"name": "Ghost", "line_start": 1}},
		EdgeContains, nil)
	assert.Error(t, err)

	require.NoError(t, store.Clear(ctx))
}
