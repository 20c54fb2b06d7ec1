package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/codeatlas/codeatlas-go/internal/models"
)

// PythonParser extracts files, classes, functions and methods from Python
// source using tree-sitter.
type PythonParser struct{}

// NewPythonParser creates a Python parser
func NewPythonParser() *PythonParser {
	return &PythonParser{}
}

// CanParse reports whether the path looks like a Python source file
func (p *PythonParser) CanParse(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".py"
}

// ParseFile parses a single Python file into a FileEntity. A file that fails
// to read returns an error; a file with syntax errors still yields whatever
// structure could be recovered, plus a syntax-error finding.
func (p *PythonParser) ParseFile(path string) (*Result, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// tree-sitter objects are CGO-backed and must be closed explicitly
	tsParser := sitter.NewParser()
	defer tsParser.Close()

	lang := sitter.NewLanguage(tree_sitter_python.Language())
	if err := tsParser.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("failed to set python language: %w", err)
	}

	tree := tsParser.Parse(code, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", path)
	}
	defer tree.Close()

	root := tree.RootNode()

	file := models.NewFileEntity(path, int64(len(code)))
	ex := &pythonExtractor{code: code, file: file}
	ex.walk(root, "")

	result := &Result{File: file}
	if root.HasError() {
		line := firstErrorLine(root)
		result.Findings = append(result.Findings, models.LintError{
			FilePath: path,
			Line:     line,
			Column:   0,
			Message:  "invalid syntax",
			Type:     "SyntaxError",
			Severity: models.SeverityError,
			Source:   "parser",
		})
	}
	return result, nil
}

// pythonExtractor walks the syntax tree accumulating entities into file.
type pythonExtractor struct {
	code []byte
	file *models.FileEntity
}

// walk recurses through the tree. className is the enclosing class name, or
// empty at module level; definitions inside a class become methods.
func (e *pythonExtractor) walk(node *sitter.Node, className string) {
	switch node.Kind() {
	case "class_definition":
		e.extractClass(node)
		return
	case "function_definition":
		e.extractFunction(node, className, nil)
		return
	case "decorated_definition":
		e.extractDecorated(node, className)
		return
	case "import_statement", "import_from_statement":
		e.extractImport(node)
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			e.walk(child, className)
		}
	}
}

// extractDecorated peels the decorator list off a decorated_definition and
// dispatches to the wrapped class or function.
func (e *pythonExtractor) extractDecorated(node *sitter.Node, className string) {
	var decorators []string
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "decorator":
			decorators = append(decorators, decoratorName(e.text(child)))
		case "class_definition":
			e.extractClass(child)
		case "function_definition":
			e.extractFunction(child, className, decorators)
		}
	}
}

func (e *pythonExtractor) extractClass(node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	class := &models.ClassEntity{
		Name:     e.text(nameNode),
		FilePath: e.file.Path,
		Location: location(node),
	}

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := uint(0); i < supers.ChildCount(); i++ {
			child := supers.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "identifier", "attribute":
				class.Bases = append(class.Bases, e.text(child))
			}
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		class.Docstring = e.docstring(body)
	}

	e.file.AddClass(class)

	// class body is walked with the class name in scope so its
	// function definitions become methods
	if body := node.ChildByFieldName("body"); body != nil {
		e.walk(body, class.Name)
	}
}

func (e *pythonExtractor) extractFunction(node *sitter.Node, className string, decorators []string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := e.text(nameNode)

	decl := &models.Declaration{
		Kind:       models.KindFunction,
		Name:       name,
		FilePath:   e.file.Path,
		Location:   location(node),
		Decorators: decorators,
		Async:      isAsync(node),
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		decl.Params = e.extractParams(params)
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		decl.ReturnType = e.text(ret)
	}

	body := node.ChildByFieldName("body")
	if body != nil {
		decl.Docstring = e.docstring(body)
		e.collectCalls(body, decl)
	}

	if className != "" {
		decl.Kind = models.KindMethod
		decl.ClassName = className
		decl.Visibility = models.VisibilityFromName(name)
		for _, d := range decorators {
			switch d {
			case "staticmethod":
				decl.Static = true
			case "classmethod":
				decl.ClassMethod = true
			case "property":
				decl.Property = true
			}
		}
		if class := e.lastClass(className); class != nil {
			class.AddMethod(decl)
		}
		// nested definitions inside a method still belong to the class
		if body != nil {
			e.walk(body, className)
		}
		return
	}

	e.file.AddFunction(decl)
	if body != nil {
		e.walk(body, "")
	}
}

// lastClass returns the most recently added class with the given name.
func (e *pythonExtractor) lastClass(name string) *models.ClassEntity {
	for i := len(e.file.Classes) - 1; i >= 0; i-- {
		if e.file.Classes[i].Name == name {
			return e.file.Classes[i]
		}
	}
	return nil
}

func (e *pythonExtractor) extractParams(params *sitter.Node) []models.Param {
	var out []models.Param
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier":
			out = append(out, models.Param{Name: e.text(child)})
		case "typed_parameter":
			p := models.Param{}
			for j := uint(0); j < child.ChildCount(); j++ {
				c := child.Child(j)
				if c == nil {
					continue
				}
				switch c.Kind() {
				case "identifier", "list_splat_pattern", "dictionary_splat_pattern":
					if p.Name == "" {
						p.Name = e.text(c)
					}
				case "type":
					p.Type = e.text(c)
				}
			}
			if p.Name != "" {
				out = append(out, p)
			}
		case "default_parameter":
			p := models.Param{}
			if n := child.ChildByFieldName("name"); n != nil {
				p.Name = e.text(n)
			}
			if v := child.ChildByFieldName("value"); v != nil {
				p.Default = e.text(v)
			}
			if p.Name != "" {
				out = append(out, p)
			}
		case "typed_default_parameter":
			p := models.Param{}
			if n := child.ChildByFieldName("name"); n != nil {
				p.Name = e.text(n)
			}
			if t := child.ChildByFieldName("type"); t != nil {
				p.Type = e.text(t)
			}
			if v := child.ChildByFieldName("value"); v != nil {
				p.Default = e.text(v)
			}
			if p.Name != "" {
				out = append(out, p)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			out = append(out, models.Param{Name: e.text(child)})
		}
	}
	return out
}

// collectCalls records the call names in a function body onto decl. It does
// not descend into nested function or class definitions; those collect their
// own calls.
func (e *pythonExtractor) collectCalls(node *sitter.Node, decl *models.Declaration) {
	if node.Kind() == "call" {
		if fn := node.ChildByFieldName("function"); fn != nil {
			if name := e.callName(fn); name != "" {
				decl.AddCall(name)
			}
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "function_definition", "class_definition", "decorated_definition":
			continue
		}
		e.collectCalls(child, decl)
	}
}

// callName reduces a call target to a bare name: identifiers keep their
// text, attribute chains keep only the final segment (obj.method -> method).
func (e *pythonExtractor) callName(fn *sitter.Node) string {
	switch fn.Kind() {
	case "identifier":
		return e.text(fn)
	case "attribute":
		if attr := fn.ChildByFieldName("attribute"); attr != nil {
			return e.text(attr)
		}
	}
	return ""
}

func (e *pythonExtractor) extractImport(node *sitter.Node) {
	switch node.Kind() {
	case "import_statement":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "dotted_name":
				e.file.Imports = append(e.file.Imports, e.text(child))
			case "aliased_import":
				if name := child.ChildByFieldName("name"); name != nil {
					e.file.Imports = append(e.file.Imports, e.text(name))
				}
			}
		}
	case "import_from_statement":
		if mod := node.ChildByFieldName("module_name"); mod != nil {
			e.file.Imports = append(e.file.Imports, e.text(mod))
		}
	}
}

// docstring returns the leading string literal of a block, unquoted.
func (e *pythonExtractor) docstring(body *sitter.Node) string {
	if body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first == nil || first.Kind() != "expression_statement" {
		return ""
	}
	if first.ChildCount() == 0 {
		return ""
	}
	str := first.Child(0)
	if str == nil || str.Kind() != "string" {
		return ""
	}
	return unquote(e.text(str))
}

func (e *pythonExtractor) text(node *sitter.Node) string {
	start, end := node.StartByte(), node.EndByte()
	if start >= end || end > uint(len(e.code)) {
		return ""
	}
	return string(e.code[start:end])
}

// location converts a node's zero-based span to 1-based lines
func location(node *sitter.Node) models.Location {
	return models.Location{
		StartLine: int(node.StartPosition().Row) + 1,
		EndLine:   int(node.EndPosition().Row) + 1,
		StartCol:  int(node.StartPosition().Column),
		EndCol:    int(node.EndPosition().Column),
	}
}

// isAsync reports whether a function_definition carries the async keyword
func isAsync(node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "async" {
			return true
		}
		if child.Kind() == "def" {
			break
		}
	}
	return false
}

// decoratorName strips the leading @ and any call arguments from a decorator
func decoratorName(text string) string {
	text = strings.TrimPrefix(text, "@")
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '('); i >= 0 {
		text = text[:i]
	}
	// keep only the final attribute segment for dotted decorators
	if i := strings.LastIndexByte(text, '.'); i >= 0 {
		text = text[i+1:]
	}
	return text
}

// unquote strips Python string literal quoting, including triple quotes and
// common prefixes.
func unquote(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}

// firstErrorLine finds the 1-based line of the first error node in the tree.
func firstErrorLine(node *sitter.Node) int {
	if node.IsError() || node.IsMissing() {
		return int(node.StartPosition().Row) + 1
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || !child.HasError() {
			continue
		}
		if line := firstErrorLine(child); line > 0 {
			return line
		}
	}
	if node.Parent() == nil {
		return 1
	}
	return 0
}
