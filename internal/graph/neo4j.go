package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/codeatlas/codeatlas-go/internal/logging"
)

// Neo4jStore implements Store on a Neo4j database. Context is passed per
// request; the store itself holds only the driver.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *logging.Logger
}

// NewNeo4jStore connects to Neo4j and verifies connectivity before
// returning.
func NewNeo4jStore(ctx context.Context, uri, username, password, database string, logger *logging.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to Neo4j at %s: %w", uri, err)
	}

	if logger == nil {
		logger = logging.Default()
	}

	return &Neo4jStore{
		driver:   driver,
		database: database,
		logger:   logger,
	}, nil
}

// constraintQueries are installed at startup. Uniqueness failures on
// editions that lack composite constraints degrade to a warning; the graph
// still builds, just without enforcement.
var constraintQueries = []string{
	"CREATE CONSTRAINT file_path_unique IF NOT EXISTS FOR (f:File) REQUIRE f.path IS UNIQUE",
	"CREATE CONSTRAINT class_natural_key IF NOT EXISTS FOR (c:Class) REQUIRE (c.name, c.line_start) IS UNIQUE",
	"CREATE CONSTRAINT function_natural_key IF NOT EXISTS FOR (fn:Function) REQUIRE (fn.name, fn.line_start) IS UNIQUE",
	"CREATE CONSTRAINT method_natural_key IF NOT EXISTS FOR (m:Method) REQUIRE (m.name, m.line_start) IS UNIQUE",
	"CREATE INDEX file_name_idx IF NOT EXISTS FOR (f:File) ON (f.name)",
	"CREATE INDEX class_name_idx IF NOT EXISTS FOR (c:Class) ON (c.name)",
	"CREATE INDEX function_name_idx IF NOT EXISTS FOR (fn:Function) ON (fn.name)",
	"CREATE INDEX method_name_idx IF NOT EXISTS FOR (m:Method) ON (m.name)",
	"CREATE INDEX lint_error_line_idx IF NOT EXISTS FOR (e:LintError) ON (e.line)",
	"CREATE INDEX lint_error_severity_idx IF NOT EXISTS FOR (e:LintError) ON (e.severity)",
}

// CreateConstraints installs the schema. Each statement runs on its own so
// one unsupported constraint does not block the rest.
func (s *Neo4jStore) CreateConstraints(ctx context.Context) error {
	for _, query := range constraintQueries {
		_, err := neo4j.ExecuteQuery(ctx, s.driver, query, nil,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database))
		if err != nil {
			s.logger.Warn("constraint creation failed", "query", query, "error", err)
		}
	}
	return nil
}

// MergeNode upserts a node by natural key
func (s *Neo4jStore) MergeNode(ctx context.Context, label string, keys, properties map[string]any) error {
	builder := NewCypherBuilder()
	cypher, err := builder.BuildMergeNode(label, keys, properties)
	if err != nil {
		return fmt.Errorf("failed to build node query: %w", err)
	}

	_, err = neo4j.ExecuteQuery(ctx, s.driver, cypher,
		builder.Params(),
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("failed to merge %s node: %w", label, err)
	}
	return nil
}

// MergeEdge upserts an edge between two stored nodes. Zero matched records
// means an endpoint is missing, which is reported as an error.
func (s *Neo4jStore) MergeEdge(ctx context.Context, from, to NodeRef, edgeLabel string, properties map[string]any) error {
	builder := NewCypherBuilder()
	cypher, err := builder.BuildMergeEdge(from, to, edgeLabel, properties)
	if err != nil {
		return fmt.Errorf("failed to build edge query: %w", err)
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher,
		builder.Params(),
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("failed to merge %s edge %s->%s: %w", edgeLabel, from.Label, to.Label, err)
	}
	if len(result.Records) == 0 {
		return fmt.Errorf("%s edge %s->%s matched no nodes", edgeLabel, from.Label, to.Label)
	}
	return nil
}

// RunBatch executes parameterized queries in a single write transaction.
// Each query's records are collected so edge merges that matched no nodes
// show up in the returned count instead of passing silently.
func (s *Neo4jStore) RunBatch(ctx context.Context, queries []QueryWithParams) (int, error) {
	if len(queries) == 0 {
		return 0, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	matched, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		count := 0
		for i, q := range queries {
			result, err := tx.Run(ctx, q.Query, q.Params)
			if err != nil {
				return nil, fmt.Errorf("batch query %d failed: %w", i, err)
			}
			records, err := result.Collect(ctx)
			if err != nil {
				return nil, fmt.Errorf("batch query %d failed: %w", i, err)
			}
			if len(records) > 0 {
				count++
			}
		}
		return count, nil
	})
	if err != nil {
		return 0, err
	}
	return matched.(int), nil
}

// NodeCounts returns stored node counts per label
func (s *Neo4jStore) NodeCounts(ctx context.Context) (map[string]int64, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver,
		"MATCH (n) RETURN labels(n)[0] AS label, count(n) AS count",
		nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("node count query failed: %w", err)
	}

	counts := make(map[string]int64)
	for _, record := range result.Records {
		label, _ := record.Get("label")
		count, _ := record.Get("count")
		name, ok := label.(string)
		if !ok {
			continue
		}
		if n, ok := count.(int64); ok {
			counts[name] = n
		}
	}
	return counts, nil
}

// EdgeCounts returns stored edge counts per relationship type
func (s *Neo4jStore) EdgeCounts(ctx context.Context) (map[string]int64, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver,
		"MATCH ()-[r]->() RETURN type(r) AS type, count(r) AS count",
		nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("edge count query failed: %w", err)
	}

	counts := make(map[string]int64)
	for _, record := range result.Records {
		typ, _ := record.Get("type")
		count, _ := record.Get("count")
		name, ok := typ.(string)
		if !ok {
			continue
		}
		if n, ok := count.(int64); ok {
			counts[name] = n
		}
	}
	return counts, nil
}

// Clear removes every node and edge from the database
func (s *Neo4jStore) Clear(ctx context.Context) error {
	_, err := neo4j.ExecuteQuery(ctx, s.driver,
		"MATCH (n) DETACH DELETE n",
		nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("failed to clear graph: %w", err)
	}
	return nil
}

// Health verifies connectivity
func (s *Neo4jStore) Health(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close closes the driver
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
