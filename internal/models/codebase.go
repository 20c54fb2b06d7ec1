package models

// Stats summarizes a codebase snapshot
type Stats struct {
	Files     int `json:"files"`
	Classes   int `json:"classes"`
	Functions int `json:"functions"`
	Errors    int `json:"errors"`
	Calls     int `json:"calls"`
}

// Codebase is the aggregate root for one analysis run. It owns every entity
// and is discarded and rebuilt when a new scan starts.
//
// Not safe for concurrent use: the analyzer funnels all writes through its
// fan-in goroutine.
type Codebase struct {
	files map[string]*FileEntity
	order []string // insertion order of file paths, for deterministic iteration

	lintErrors []LintError
	calls      []CallRelationship
}

// NewCodebase creates an empty codebase model
func NewCodebase() *Codebase {
	return &Codebase{
		files: make(map[string]*FileEntity),
	}
}

// AddFile registers a parsed file. Callers are responsible for path
// uniqueness; re-adding a path overwrites the previous entity but keeps its
// original insertion position.
func (cb *Codebase) AddFile(f *FileEntity) {
	if _, exists := cb.files[f.Path]; !exists {
		cb.order = append(cb.order, f.Path)
	}
	cb.files[f.Path] = f
}

// AddLintError records a lint finding
func (cb *Codebase) AddLintError(e LintError) {
	cb.lintErrors = append(cb.lintErrors, e)
}

// AddCallRelationship records a resolved call
func (cb *Codebase) AddCallRelationship(r CallRelationship) {
	cb.calls = append(cb.calls, r)
}

// File returns the entity for a path, or nil if not present
func (cb *Codebase) File(path string) *FileEntity {
	return cb.files[path]
}

// Files returns all file entities in insertion order
func (cb *Codebase) Files() []*FileEntity {
	files := make([]*FileEntity, 0, len(cb.order))
	for _, path := range cb.order {
		files = append(files, cb.files[path])
	}
	return files
}

// AllClasses flattens classes across all files, in file insertion order
func (cb *Codebase) AllClasses() []*ClassEntity {
	var classes []*ClassEntity
	for _, f := range cb.Files() {
		classes = append(classes, f.Classes...)
	}
	return classes
}

// AllFunctions flattens functions and methods across all files. Methods are
// included in the same result, after each file's standalone functions.
func (cb *Codebase) AllFunctions() []*Declaration {
	var decls []*Declaration
	for _, f := range cb.Files() {
		decls = append(decls, f.Declarations()...)
	}
	return decls
}

// ErrorsForFile returns lint findings recorded against a path
func (cb *Codebase) ErrorsForFile(path string) []LintError {
	var errs []LintError
	for _, e := range cb.lintErrors {
		if e.FilePath == path {
			errs = append(errs, e)
		}
	}
	return errs
}

// LintErrors returns all recorded lint findings
func (cb *Codebase) LintErrors() []LintError {
	return cb.lintErrors
}

// CallRelationships returns all resolved calls
func (cb *Codebase) CallRelationships() []CallRelationship {
	return cb.calls
}

// GetStats counts files, classes, functions (methods included), errors and calls
func (cb *Codebase) GetStats() Stats {
	return Stats{
		Files:     len(cb.files),
		Classes:   len(cb.AllClasses()),
		Functions: len(cb.AllFunctions()),
		Errors:    len(cb.lintErrors),
		Calls:     len(cb.calls),
	}
}

// FileReport is the per-file detail view returned by analyze --file
type FileReport struct {
	Path      string      `json:"path"`
	Name      string      `json:"name"`
	Size      int64       `json:"size"`
	Classes   []ClassInfo `json:"classes"`
	Functions []FuncInfo  `json:"functions"`
	Errors    []LintError `json:"errors"`
	Imports   int         `json:"imports"`
}

// ClassInfo is the summary row for one class in a FileReport
type ClassInfo struct {
	Name      string   `json:"name"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Methods   int      `json:"methods"`
	Bases     []string `json:"bases,omitempty"`
}

// FuncInfo is the summary row for one function in a FileReport
type FuncInfo struct {
	Name      string `json:"name"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Params    int    `json:"params"`
	Calls     int    `json:"calls"`
}

// Report builds the detail view for one file, or nil if the path is unknown
func (cb *Codebase) Report(path string) *FileReport {
	f := cb.File(path)
	if f == nil {
		return nil
	}

	report := &FileReport{
		Path:    f.Path,
		Name:    f.Name,
		Size:    f.Size,
		Errors:  cb.ErrorsForFile(path),
		Imports: len(f.Imports),
	}
	for _, c := range f.Classes {
		report.Classes = append(report.Classes, ClassInfo{
			Name:      c.Name,
			StartLine: c.Location.StartLine,
			EndLine:   c.Location.EndLine,
			Methods:   len(c.Methods),
			Bases:     c.Bases,
		})
	}
	for _, fn := range f.Functions {
		report.Functions = append(report.Functions, FuncInfo{
			Name:      fn.Name,
			StartLine: fn.Location.StartLine,
			EndLine:   fn.Location.EndLine,
			Params:    len(fn.Params),
			Calls:     len(fn.Calls),
		})
	}
	return report
}
