package parser

import (
	"github.com/codeatlas/codeatlas-go/internal/models"
)

// Result is what a parser produces for one file: the entity tree plus any
// findings raised during parsing (syntax errors and the like).
type Result struct {
	File     *models.FileEntity
	Findings []models.LintError
}

// Parser extracts the structure of a single source file. A nil Result.File
// with a nil error means the parser declined the file; hard parse failures
// are reported as an error and are non-fatal to an overall scan.
type Parser interface {
	CanParse(path string) bool
	ParseFile(path string) (*Result, error)
}

// Registry holds the configured parsers. It is built once at startup and
// handed to the components that need it; there is no ambient global registry.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a registry over the given parsers
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Register appends a parser. Parsers are consulted in registration order.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// ForFile returns the first parser claiming the path
func (r *Registry) ForFile(path string) (Parser, bool) {
	for _, p := range r.parsers {
		if p.CanParse(path) {
			return p, true
		}
	}
	return nil, false
}

// Supported reports whether any registered parser claims the path
func (r *Registry) Supported(path string) bool {
	_, ok := r.ForFile(path)
	return ok
}
