package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Severity classifies lint findings
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Visibility is derived from naming convention (Python-style underscores)
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityPrivate   Visibility = "private"
)

// DeclKind tags a Declaration as a standalone function or a class method
type DeclKind string

const (
	KindFunction DeclKind = "function"
	KindMethod   DeclKind = "method"
)

// Location represents a span in source code
// Invariant: StartLine <= EndLine. Columns are 0 when unknown.
type Location struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	StartCol  int `json:"start_col,omitempty"`
	EndCol    int `json:"end_col,omitempty"`
}

// Param represents a function/method parameter
type Param struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Default string `json:"default,omitempty"`
}

// Declaration is a function or method extracted from source.
// A single tagged type replaces a Method-extends-Function hierarchy: method-only
// fields are meaningful only when Kind == KindMethod, and graph-node conversion
// is a pure function over the tag.
type Declaration struct {
	Kind       DeclKind   `json:"kind"`
	Name       string     `json:"name"`
	FilePath   string     `json:"file_path"`
	Location   Location   `json:"location"`
	Params     []Param    `json:"params,omitempty"`
	ReturnType string     `json:"return_type,omitempty"`
	Decorators []string   `json:"decorators,omitempty"`
	Docstring  string     `json:"docstring,omitempty"`
	Calls      []string   `json:"calls,omitempty"` // unresolved called names, insertion-ordered, no duplicates
	Async      bool       `json:"async,omitempty"`

	// Method-only fields (Kind == KindMethod)
	ClassName   string     `json:"class_name,omitempty"`
	Static      bool       `json:"static,omitempty"`
	ClassMethod bool       `json:"classmethod,omitempty"`
	Property    bool       `json:"property,omitempty"`
	Visibility  Visibility `json:"visibility,omitempty"`
}

// UniqueID derives the entity identity used across one codebase snapshot
func (d *Declaration) UniqueID() string {
	return fmt.Sprintf("%s:%s:%d", d.FilePath, d.Name, d.Location.StartLine)
}

// QualifiedName returns ClassName.Name for methods, Name otherwise
func (d *Declaration) QualifiedName() string {
	if d.Kind == KindMethod && d.ClassName != "" {
		return d.ClassName + "." + d.Name
	}
	return d.Name
}

// AddCall records a called name, preserving insertion order and skipping duplicates
func (d *Declaration) AddCall(name string) {
	for _, c := range d.Calls {
		if c == name {
			return
		}
	}
	d.Calls = append(d.Calls, name)
}

// ParamNames returns the ordered parameter names
func (d *Declaration) ParamNames() []string {
	names := make([]string, len(d.Params))
	for i, p := range d.Params {
		names[i] = p.Name
	}
	return names
}

// VisibilityFromName derives method visibility from Python naming convention
func VisibilityFromName(name string) Visibility {
	switch {
	case strings.HasPrefix(name, "__") && !strings.HasSuffix(name, "__"):
		return VisibilityPrivate
	case strings.HasPrefix(name, "_") && !strings.HasPrefix(name, "__"):
		return VisibilityProtected
	default:
		return VisibilityPublic
	}
}

// ClassEntity represents a class definition and its owned methods
type ClassEntity struct {
	Name       string         `json:"name"`
	FilePath   string         `json:"file_path"`
	Location   Location       `json:"location"`
	Methods    []*Declaration `json:"methods,omitempty"`
	Bases      []string       `json:"bases,omitempty"`
	Decorators []string       `json:"decorators,omitempty"`
	Docstring  string         `json:"docstring,omitempty"`
}

func (c *ClassEntity) UniqueID() string {
	return fmt.Sprintf("%s:%s:%d", c.FilePath, c.Name, c.Location.StartLine)
}

// AddMethod appends a method declaration to this class
func (c *ClassEntity) AddMethod(m *Declaration) {
	c.Methods = append(c.Methods, m)
}

// FileEntity represents a parsed source file and exclusively owns its
// classes and functions.
type FileEntity struct {
	Path      string         `json:"path"`
	Name      string         `json:"name"`
	Extension string         `json:"extension"`
	Size      int64          `json:"size"`
	Classes   []*ClassEntity `json:"classes,omitempty"`
	Functions []*Declaration `json:"functions,omitempty"`
	Imports   []string       `json:"imports,omitempty"`
}

// NewFileEntity creates a file entity for the given path
func NewFileEntity(path string, size int64) *FileEntity {
	return &FileEntity{
		Path:      path,
		Name:      filepath.Base(path),
		Extension: filepath.Ext(path),
		Size:      size,
	}
}

// AddClass appends a class to this file
func (f *FileEntity) AddClass(c *ClassEntity) {
	f.Classes = append(f.Classes, c)
}

// AddFunction appends a standalone function to this file
func (f *FileEntity) AddFunction(d *Declaration) {
	f.Functions = append(f.Functions, d)
}

// Declarations returns every function and method in this file, standalone
// functions first, then class methods in class order.
func (f *FileEntity) Declarations() []*Declaration {
	decls := make([]*Declaration, 0, len(f.Functions))
	decls = append(decls, f.Functions...)
	for _, c := range f.Classes {
		decls = append(decls, c.Methods...)
	}
	return decls
}

// LintError represents a single linter or parse finding. It sits outside the
// entity tree; association to a containing declaration happens at graph-build
// time by line containment.
type LintError struct {
	FilePath string   `json:"file_path"`
	Line     int      `json:"line"`
	Column   int      `json:"column,omitempty"`
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	RuleID   string   `json:"rule_id,omitempty"`
	Source   string   `json:"source,omitempty"` // producing tool, e.g. "parser" or "flake8"
}

// CallRelationship links a resolved caller to its callee. Both endpoints are
// addressed by name plus declaration start line so they can be matched
// against stored nodes.
type CallRelationship struct {
	Caller     string   `json:"caller"`
	CallerKind DeclKind `json:"caller_kind"`
	CallerFile string   `json:"caller_file"`
	CallerLine int      `json:"caller_line"`
	Callee     string   `json:"callee"`
	CalleeKind DeclKind `json:"callee_kind"`
	CalleeFile string   `json:"callee_file"`
	CalleeLine int      `json:"callee_line"`
	CallLine   int      `json:"call_line"`
}
