package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// CypherBuilder builds parameterized Cypher queries. Every value goes
// through a parameter; labels, keys and property names are validated as
// identifiers so no user-controlled text is ever spliced into query syntax.
type CypherBuilder struct {
	params  map[string]any
	counter int
}

// NewCypherBuilder creates a query builder
func NewCypherBuilder() *CypherBuilder {
	return &CypherBuilder{params: make(map[string]any)}
}

// AddParam adds a parameter and returns its placeholder
func (b *CypherBuilder) AddParam(value any) string {
	paramName := fmt.Sprintf("p%d", b.counter)
	b.counter++
	b.params[paramName] = value
	return "$" + paramName
}

// Params returns all parameters for the query
func (b *CypherBuilder) Params() map[string]any {
	return b.params
}

// BuildMergeNode creates an idempotent MERGE for a node matched by its
// natural key, which may be composite. Non-key properties are written with
// SET so repeated runs update in place.
func (b *CypherBuilder) BuildMergeNode(label string, keys, properties map[string]any) (string, error) {
	if !isValidIdentifier(label) {
		return "", fmt.Errorf("invalid node label: %s", label)
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("node %s has no natural key", label)
	}

	keyClauses, err := b.propertyClauses(keys, "%s: %s")
	if err != nil {
		return "", err
	}

	setClauses, err := b.propertyClauses(properties, "n.%s = %s")
	if err != nil {
		return "", err
	}

	query := fmt.Sprintf("MERGE (n:%s {%s})", label, strings.Join(keyClauses, ", "))
	if len(setClauses) > 0 {
		query += " SET " + strings.Join(setClauses, ", ")
	}
	return query + " RETURN elementId(n) AS id", nil
}

// BuildMergeEdge creates an idempotent MERGE for an edge between two nodes
// matched by their natural keys.
func (b *CypherBuilder) BuildMergeEdge(from, to NodeRef, edgeLabel string, properties map[string]any) (string, error) {
	if !isValidIdentifier(from.Label) {
		return "", fmt.Errorf("invalid from label: %s", from.Label)
	}
	if !isValidIdentifier(to.Label) {
		return "", fmt.Errorf("invalid to label: %s", to.Label)
	}
	if !isValidIdentifier(edgeLabel) {
		return "", fmt.Errorf("invalid edge label: %s", edgeLabel)
	}
	if len(from.Keys) == 0 || len(to.Keys) == 0 {
		return "", fmt.Errorf("edge %s endpoint missing natural key", edgeLabel)
	}

	fromClauses, err := b.propertyClauses(from.Keys, "%s: %s")
	if err != nil {
		return "", err
	}
	toClauses, err := b.propertyClauses(to.Keys, "%s: %s")
	if err != nil {
		return "", err
	}

	query := fmt.Sprintf(
		"MATCH (from:%s {%s}) MATCH (to:%s {%s}) MERGE (from)-[r:%s]->(to)",
		from.Label, strings.Join(fromClauses, ", "),
		to.Label, strings.Join(toClauses, ", "),
		edgeLabel,
	)

	if len(properties) > 0 {
		setClauses, err := b.propertyClauses(properties, "r.%s = %s")
		if err != nil {
			return "", err
		}
		query += " SET " + strings.Join(setClauses, ", ")
	}
	return query + " RETURN from, to", nil
}

// propertyClauses renders validated key/placeholder pairs in stable order
func (b *CypherBuilder) propertyClauses(props map[string]any, format string) ([]string, error) {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	clauses := make([]string, 0, len(names))
	for _, name := range names {
		if !isValidIdentifier(name) {
			return nil, fmt.Errorf("invalid property key: %s", name)
		}
		clauses = append(clauses, fmt.Sprintf(format, name, b.AddParam(props[name])))
	}
	return clauses, nil
}

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// isValidIdentifier validates that a string can be safely used as a Cypher
// label, relationship type or property name.
func isValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}
