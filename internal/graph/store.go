package graph

import (
	"context"
)

// Node and edge labels used in the code graph.
const (
	LabelFile      = "File"
	LabelClass     = "Class"
	LabelFunction  = "Function"
	LabelMethod    = "Method"
	LabelLintError = "LintError"

	EdgeContains  = "CONTAINS"
	EdgeHasMethod = "HAS_METHOD"
	EdgeHasError  = "HAS_ERROR"
	EdgeCalls     = "CALLS"
)

// NodeRef addresses a stored node by label and natural key. File nodes key
// on path; code entities key on name plus declaration start line; findings
// key on file, line, type and message.
type NodeRef struct {
	Label string
	Keys  map[string]any
}

// QueryWithParams is a Cypher query paired with its parameters, the unit of
// batched transactional writes.
type QueryWithParams struct {
	Query  string
	Params map[string]any
}

// Store is the property-graph persistence boundary. All writes are
// idempotent upserts; running the same build twice yields the same graph.
type Store interface {
	// CreateConstraints installs uniqueness constraints and indexes.
	// Safe to call repeatedly.
	CreateConstraints(ctx context.Context) error

	// MergeNode upserts a node by natural key, updating non-key properties.
	MergeNode(ctx context.Context, label string, keys, properties map[string]any) error

	// MergeEdge upserts an edge between two existing nodes. Both endpoints
	// must already be stored.
	MergeEdge(ctx context.Context, from, to NodeRef, edgeLabel string, properties map[string]any) error

	// RunBatch executes queries in a single write transaction and returns
	// how many of them matched at least one record. A query that matches
	// nothing wrote nothing.
	RunBatch(ctx context.Context, queries []QueryWithParams) (int, error)

	// NodeCounts returns stored node counts per label.
	NodeCounts(ctx context.Context) (map[string]int64, error)

	// EdgeCounts returns stored edge counts per relationship type.
	EdgeCounts(ctx context.Context) (map[string]int64, error)

	// Clear removes every node and edge.
	Clear(ctx context.Context) error

	// Health verifies the store is reachable.
	Health(ctx context.Context) error

	Close(ctx context.Context) error
}
