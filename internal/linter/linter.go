package linter

import (
	"github.com/codeatlas/codeatlas-go/internal/models"
)

// Linter produces findings for a single source file.
type Linter interface {
	CanLint(path string) bool
	LintFile(path string) ([]models.LintError, error)
}

// Registry holds the configured linters, consulted in registration order.
// Every linter that claims a file contributes findings.
type Registry struct {
	linters []Linter
}

// NewRegistry creates a registry over the given linters
func NewRegistry(linters ...Linter) *Registry {
	return &Registry{linters: linters}
}

// Register appends a linter
func (r *Registry) Register(l Linter) {
	r.linters = append(r.linters, l)
}

// ForFile returns all linters claiming the path
func (r *Registry) ForFile(path string) []Linter {
	var out []Linter
	for _, l := range r.linters {
		if l.CanLint(path) {
			out = append(out, l)
		}
	}
	return out
}

// MapSeverity normalizes tool-specific severity labels and message codes to
// the shared scale. Unknown labels default to warning.
func MapSeverity(label string) models.Severity {
	switch label {
	case "error", "fatal", "E", "F":
		return models.SeverityError
	case "warning", "W", "C", "R":
		return models.SeverityWarning
	case "info", "convention", "refactor", "I", "N":
		return models.SeverityInfo
	}
	if len(label) > 0 {
		switch label[0] {
		case 'E', 'F':
			return models.SeverityError
		case 'W', 'C', 'R':
			return models.SeverityWarning
		}
	}
	return models.SeverityWarning
}
