package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/codeatlas-go/internal/models"
)

// fakeStore records writes in order and can fail selected node labels or
// leave the first batched queries unmatched.
type fakeStore struct {
	nodes       []string // "Label:key" in write order
	edges       []string // "TYPE from->to"
	batches     int
	failLabel   string
	batchMisses int // queries per batch that match no nodes
}

func (f *fakeStore) CreateConstraints(ctx context.Context) error { return nil }

func (f *fakeStore) MergeNode(ctx context.Context, label string, keys, properties map[string]any) error {
	if label == f.failLabel {
		return errors.New("write refused")
	}
	f.nodes = append(f.nodes, fmt.Sprintf("%s:%v", label, keys["name"]))
	if label == LabelFile {
		f.nodes[len(f.nodes)-1] = fmt.Sprintf("%s:%v", label, keys["path"])
	}
	if label == LabelLintError {
		f.nodes[len(f.nodes)-1] = fmt.Sprintf("%s:%v:%v", label, keys["file_path"], keys["line"])
	}
	return nil
}

func (f *fakeStore) MergeEdge(ctx context.Context, from, to NodeRef, edgeLabel string, properties map[string]any) error {
	f.edges = append(f.edges, fmt.Sprintf("%s %s->%s", edgeLabel, from.Label, to.Label))
	return nil
}

func (f *fakeStore) RunBatch(ctx context.Context, queries []QueryWithParams) (int, error) {
	f.batches++
	matched := 0
	for i := range queries {
		if i < f.batchMisses {
			continue
		}
		f.edges = append(f.edges, "CALLS batch")
		matched++
	}
	return matched, nil
}

func (f *fakeStore) NodeCounts(ctx context.Context) (map[string]int64, error) { return nil, nil }
func (f *fakeStore) EdgeCounts(ctx context.Context) (map[string]int64, error) { return nil, nil }
func (f *fakeStore) Clear(ctx context.Context) error                          { return nil }
func (f *fakeStore) Health(ctx context.Context) error                         { return nil }
func (f *fakeStore) Close(ctx context.Context) error                          { return nil }

func sampleCodebase() *models.Codebase {
	cb := models.NewCodebase()

	f := models.NewFileEntity("app.py", 50)
	f.AddFunction(&models.Declaration{
		Kind: models.KindFunction, Name: "main", FilePath: "app.py",
		Location: models.Location{StartLine: 1, EndLine: 5},
		Calls:    []string{"run"},
	})
	cls := &models.ClassEntity{
		Name: "App", FilePath: "app.py",
		Location: models.Location{StartLine: 7, EndLine: 20},
	}
	cls.AddMethod(&models.Declaration{
		Kind: models.KindMethod, Name: "run", ClassName: "App", FilePath: "app.py",
		Location: models.Location{StartLine: 8, EndLine: 15},
	})
	f.AddClass(cls)
	cb.AddFile(f)

	return cb
}

func TestBuildWritesNodesBeforeEdges(t *testing.T) {
	store := &fakeStore{}
	b := NewBuilder(store, nil, nil)

	cb := sampleCodebase()
	rels := []models.CallRelationship{{
		Caller: "main", CallerKind: models.KindFunction, CallerFile: "app.py", CallerLine: 1,
		Callee: "run", CalleeKind: models.KindMethod, CalleeFile: "app.py", CalleeLine: 8,
		CallLine: 1,
	}}

	stats, err := b.Build(context.Background(), cb, rels)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Classes)
	assert.Equal(t, 1, stats.Functions)
	assert.Equal(t, 1, stats.Methods)
	assert.Zero(t, stats.Failures)

	require.Equal(t, []string{"File:app.py", "Class:App", "Function:main", "Method:run"}, store.nodes)
	assert.Contains(t, store.edges, "CONTAINS File->Class")
	assert.Contains(t, store.edges, "CONTAINS File->Function")
	assert.Contains(t, store.edges, "HAS_METHOD Class->Method")
	assert.Contains(t, store.edges, "CALLS batch")
	assert.Equal(t, 1, store.batches)
}

func TestBuildLintErrorLinksToContainingDeclaration(t *testing.T) {
	store := &fakeStore{}
	b := NewBuilder(store, nil, nil)

	cb := sampleCodebase()
	cb.AddLintError(models.LintError{
		FilePath: "app.py", Line: 3, Type: "E501", Message: "line too long",
		Severity: models.SeverityWarning,
	})

	stats, err := b.Build(context.Background(), cb, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)

	// line 3 falls inside main (1-5), so the edge comes from the function
	assert.Contains(t, store.edges, "HAS_ERROR Function->LintError")
}

func TestBuildLintErrorFallsBackToFile(t *testing.T) {
	store := &fakeStore{}
	b := NewBuilder(store, nil, nil)

	cb := sampleCodebase()
	cb.AddLintError(models.LintError{
		FilePath: "app.py", Line: 6, Type: "W391", Message: "blank line",
		Severity: models.SeverityInfo,
	})

	_, err := b.Build(context.Background(), cb, nil)
	require.NoError(t, err)

	// line 6 is between declarations, so the file owns the finding
	assert.Contains(t, store.edges, "HAS_ERROR File->LintError")
}

func TestBuildCountsFailuresWithoutAborting(t *testing.T) {
	store := &fakeStore{failLabel: LabelClass}
	b := NewBuilder(store, nil, nil)

	stats, err := b.Build(context.Background(), sampleCodebase(), nil)
	require.NoError(t, err)

	assert.Zero(t, stats.Classes)
	assert.Equal(t, 1, stats.Failures)
	// the rest of the build still ran
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Functions)
	assert.Equal(t, 1, stats.Methods)
}

func TestBuildCountsUnmatchedBatchedCalls(t *testing.T) {
	store := &fakeStore{batchMisses: 1}
	b := NewBuilder(store, nil, nil)

	rels := []models.CallRelationship{
		{
			Caller: "main", CallerKind: models.KindFunction, CallerFile: "app.py", CallerLine: 1,
			Callee: "run", CalleeKind: models.KindMethod, CalleeFile: "app.py", CalleeLine: 8,
			CallLine: 1,
		},
		{
			Caller: "main", CallerKind: models.KindFunction, CallerFile: "app.py", CallerLine: 1,
			Callee: "helper", CalleeKind: models.KindFunction, CalleeFile: "app.py", CalleeLine: 22,
			CallLine: 1,
		},
	}

	stats, err := b.Build(context.Background(), sampleCodebase(), rels)
	require.NoError(t, err)

	// one edge merged nothing; it counts as a failure, not a written edge
	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, 1, countOf(store.edges, "CALLS batch"))
}

func countOf(values []string, want string) int {
	n := 0
	for _, v := range values {
		if v == want {
			n++
		}
	}
	return n
}

// upsertStore models MERGE semantics: writes keyed by natural identity, so
// repeated builds leave a single node or edge behind.
type upsertStore struct {
	nodes map[string]bool
	edges map[string]bool
}

func newUpsertStore() *upsertStore {
	return &upsertStore{nodes: make(map[string]bool), edges: make(map[string]bool)}
}

func renderKeys(keys map[string]any) string {
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "%s=%v;", name, keys[name])
	}
	return sb.String()
}

func (u *upsertStore) CreateConstraints(ctx context.Context) error { return nil }

func (u *upsertStore) MergeNode(ctx context.Context, label string, keys, properties map[string]any) error {
	u.nodes[label+"|"+renderKeys(keys)] = true
	return nil
}

func (u *upsertStore) MergeEdge(ctx context.Context, from, to NodeRef, edgeLabel string, properties map[string]any) error {
	u.edges[edgeLabel+"|"+from.Label+renderKeys(from.Keys)+"->"+to.Label+renderKeys(to.Keys)] = true
	return nil
}

func (u *upsertStore) RunBatch(ctx context.Context, queries []QueryWithParams) (int, error) {
	for _, q := range queries {
		u.edges[q.Query+"|"+renderKeys(q.Params)] = true
	}
	return len(queries), nil
}

func (u *upsertStore) NodeCounts(ctx context.Context) (map[string]int64, error) { return nil, nil }
func (u *upsertStore) EdgeCounts(ctx context.Context) (map[string]int64, error) { return nil, nil }
func (u *upsertStore) Clear(ctx context.Context) error                          { return nil }
func (u *upsertStore) Health(ctx context.Context) error                         { return nil }
func (u *upsertStore) Close(ctx context.Context) error                          { return nil }

func TestBuildTwiceLeavesGraphUnchanged(t *testing.T) {
	store := newUpsertStore()
	b := NewBuilder(store, nil, nil)

	cb := sampleCodebase()
	cb.AddLintError(models.LintError{
		FilePath: "app.py", Line: 3, Type: "E501", Message: "line too long",
		Severity: models.SeverityWarning,
	})
	rels := []models.CallRelationship{{
		Caller: "main", CallerKind: models.KindFunction, CallerFile: "app.py", CallerLine: 1,
		Callee: "run", CalleeKind: models.KindMethod, CalleeFile: "app.py", CalleeLine: 8,
		CallLine: 1,
	}}

	first, err := b.Build(context.Background(), cb, rels)
	require.NoError(t, err)
	nodesAfterFirst := len(store.nodes)
	edgesAfterFirst := len(store.edges)

	second, err := b.Build(context.Background(), cb, rels)
	require.NoError(t, err)

	// rebuilding an unchanged codebase upserts the same graph
	assert.Equal(t, nodesAfterFirst, len(store.nodes))
	assert.Equal(t, edgesAfterFirst, len(store.edges))
	assert.Equal(t, first.Files, second.Files)
	assert.Equal(t, first.Classes, second.Classes)
	assert.Equal(t, first.Functions, second.Functions)
	assert.Equal(t, first.Methods, second.Methods)
	assert.Equal(t, first.Errors, second.Errors)
	assert.Equal(t, first.Edges, second.Edges)
	assert.Zero(t, second.Failures)
}

func TestBuildStopsOnCancelledContext(t *testing.T) {
	store := &fakeStore{}
	b := NewBuilder(store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Build(ctx, sampleCodebase(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.nodes)
}
