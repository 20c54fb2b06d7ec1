package graph

import (
	"context"
	"time"

	"github.com/codeatlas/codeatlas-go/internal/logging"
	"github.com/codeatlas/codeatlas-go/internal/models"
	"github.com/codeatlas/codeatlas-go/internal/progress"
)

// BuildStats summarizes one graph build. Failures counts writes that were
// logged and skipped; they do not abort the build.
type BuildStats struct {
	Files     int           `json:"files"`
	Classes   int           `json:"classes"`
	Functions int           `json:"functions"`
	Methods   int           `json:"methods"`
	Errors    int           `json:"errors"`
	Edges     int           `json:"edges"`
	Failures  int           `json:"failures"`
	Duration  time.Duration `json:"duration"`
}

// Builder writes a parsed codebase into the property graph. Node writes come
// first so every edge can match both endpoints, and each write is an
// idempotent upsert keyed by the entity's natural key.
type Builder struct {
	store    Store
	logger   *logging.Logger
	notifier progress.Notifier
}

// NewBuilder creates a graph builder over the given store
func NewBuilder(store Store, logger *logging.Logger, notifier progress.Notifier) *Builder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Builder{store: store, logger: logger, notifier: notifier}
}

// Build writes the whole codebase: file nodes, class nodes with CONTAINS,
// function and method nodes, lint findings with HAS_ERROR, then CALLS edges.
// Individual write failures are logged and counted; only context
// cancellation aborts the build.
func (b *Builder) Build(ctx context.Context, cb *models.Codebase, rels []models.CallRelationship) (*BuildStats, error) {
	start := time.Now()
	stats := &BuildStats{}

	total := 0
	for _, file := range cb.Files() {
		total += 1 + len(file.Classes) + len(file.Declarations())
	}
	total += len(cb.LintErrors()) + len(rels)
	tracker := progress.NewTracker("graph_build", total, b.notifier)

	for _, file := range cb.Files() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		b.writeFile(ctx, file, stats, tracker)
	}

	for _, lintErr := range cb.LintErrors() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		b.writeLintError(ctx, cb, lintErr, stats)
		tracker.Increment()
	}

	if err := b.writeCalls(ctx, rels, stats, tracker); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	tracker.Done()
	b.logger.Info("graph build complete",
		"files", stats.Files,
		"classes", stats.Classes,
		"functions", stats.Functions,
		"methods", stats.Methods,
		"errors", stats.Errors,
		"edges", stats.Edges,
		"failures", stats.Failures,
		"duration", stats.Duration)
	return stats, nil
}

// writeFile upserts one file node, its classes, functions and methods, and
// the containment edges between them.
func (b *Builder) writeFile(ctx context.Context, file *models.FileEntity, stats *BuildStats, tracker *progress.Tracker) {
	fileRef := FileRef(file.Path)
	err := b.store.MergeNode(ctx, LabelFile, fileRef.Keys, map[string]any{
		"name":           file.Name,
		"extension":      file.Extension,
		"size":           file.Size,
		"class_count":    len(file.Classes),
		"function_count": len(file.Functions),
	})
	if err != nil {
		b.fail(stats, "file node write failed", "path", file.Path, "error", err)
		tracker.Increment()
		return
	}
	stats.Files++
	tracker.Increment()

	for _, class := range file.Classes {
		classRef := ClassRef(class)
		err := b.store.MergeNode(ctx, LabelClass, classRef.Keys, map[string]any{
			"file_path":    class.FilePath,
			"line_end":     class.Location.EndLine,
			"bases":        class.Bases,
			"docstring":    class.Docstring,
			"method_count": len(class.Methods),
		})
		if err != nil {
			b.fail(stats, "class node write failed", "class", class.Name, "error", err)
			tracker.Increment()
			continue
		}
		stats.Classes++

		if err := b.store.MergeEdge(ctx, fileRef, classRef, EdgeContains, nil); err != nil {
			b.fail(stats, "contains edge write failed", "class", class.Name, "error", err)
		} else {
			stats.Edges++
		}
		tracker.Increment()
	}

	for _, decl := range file.Functions {
		b.writeDeclaration(ctx, fileRef, decl, stats)
		tracker.Increment()
	}
	for _, class := range file.Classes {
		classRef := ClassRef(class)
		for _, method := range class.Methods {
			b.writeDeclaration(ctx, classRef, method, stats)
			tracker.Increment()
		}
	}
}

// writeDeclaration upserts one function or method node plus its ownership
// edge: CONTAINS from the file for functions, HAS_METHOD from the class for
// methods. ownerRef is the file node for functions and the class node for
// methods.
func (b *Builder) writeDeclaration(ctx context.Context, ownerRef NodeRef, decl *models.Declaration, stats *BuildStats) {
	ref := DeclRef(decl)

	props := map[string]any{
		"file_path":   decl.FilePath,
		"line_end":    decl.Location.EndLine,
		"params":      decl.ParamNames(),
		"return_type": decl.ReturnType,
		"docstring":   decl.Docstring,
		"decorators":  decl.Decorators,
		"async":       decl.Async,
		"call_count":  len(decl.Calls),
	}

	if decl.Kind == models.KindMethod {
		props["class_name"] = decl.ClassName
		props["static"] = decl.Static
		props["classmethod"] = decl.ClassMethod
		props["property"] = decl.Property
		props["visibility"] = string(decl.Visibility)
	}

	if err := b.store.MergeNode(ctx, ref.Label, ref.Keys, props); err != nil {
		b.fail(stats, "declaration node write failed", "name", decl.QualifiedName(), "error", err)
		return
	}

	if decl.Kind == models.KindMethod {
		stats.Methods++
		if err := b.store.MergeEdge(ctx, ownerRef, ref, EdgeHasMethod, nil); err != nil {
			b.fail(stats, "has_method edge write failed", "method", decl.QualifiedName(), "error", err)
		} else {
			stats.Edges++
		}
		return
	}

	stats.Functions++
	if err := b.store.MergeEdge(ctx, ownerRef, ref, EdgeContains, nil); err != nil {
		b.fail(stats, "contains edge write failed", "function", decl.Name, "error", err)
	} else {
		stats.Edges++
	}
}

// writeLintError upserts one finding and attaches it to the innermost
// declaration whose span contains the line, falling back to the file node.
// Functions are checked before methods; the first containing declaration
// wins.
func (b *Builder) writeLintError(ctx context.Context, cb *models.Codebase, lintErr models.LintError, stats *BuildStats) {
	ref := LintErrorRef(lintErr)
	err := b.store.MergeNode(ctx, LabelLintError, ref.Keys, map[string]any{
		"column":   lintErr.Column,
		"severity": string(lintErr.Severity),
		"rule_id":  lintErr.RuleID,
		"source":   lintErr.Source,
	})
	if err != nil {
		b.fail(stats, "lint error node write failed", "file", lintErr.FilePath, "line", lintErr.Line, "error", err)
		return
	}
	stats.Errors++

	from := FileRef(lintErr.FilePath)
	if file := cb.File(lintErr.FilePath); file != nil {
		if owner := containingDeclaration(file, lintErr.Line); owner != nil {
			from = DeclRef(owner)
		}
	}

	if err := b.store.MergeEdge(ctx, from, ref, EdgeHasError, nil); err != nil {
		b.fail(stats, "has_error edge write failed", "file", lintErr.FilePath, "line", lintErr.Line, "error", err)
	} else {
		stats.Edges++
	}
}

// writeCalls batches the CALLS edges for each caller file into one write
// transaction.
func (b *Builder) writeCalls(ctx context.Context, rels []models.CallRelationship, stats *BuildStats, tracker *progress.Tracker) error {
	byFile := make(map[string][]models.CallRelationship)
	var order []string
	for _, rel := range rels {
		if _, seen := byFile[rel.CallerFile]; !seen {
			order = append(order, rel.CallerFile)
		}
		byFile[rel.CallerFile] = append(byFile[rel.CallerFile], rel)
	}

	for _, path := range order {
		if err := ctx.Err(); err != nil {
			return err
		}

		fileRels := byFile[path]
		queries := make([]QueryWithParams, 0, len(fileRels))
		for _, rel := range fileRels {
			builder := NewCypherBuilder()
			cypher, err := builder.BuildMergeEdge(
				CallerRef(rel), CalleeRef(rel), EdgeCalls,
				map[string]any{"call_line": rel.CallLine},
			)
			if err != nil {
				b.fail(stats, "calls edge build failed", "caller", rel.Caller, "callee", rel.Callee, "error", err)
				continue
			}
			queries = append(queries, QueryWithParams{Query: cypher, Params: builder.Params()})
		}

		matched, err := b.store.RunBatch(ctx, queries)
		if err != nil {
			b.fail(stats, "calls batch write failed", "file", path, "edges", len(queries), "error", err)
		} else {
			stats.Edges += matched
			if missed := len(queries) - matched; missed > 0 {
				stats.Failures += missed
				b.logger.Warn("calls edges matched no nodes", "file", path, "missed", missed)
			}
		}
		tracker.Add(len(fileRels))
	}
	return nil
}

func (b *Builder) fail(stats *BuildStats, msg string, args ...any) {
	stats.Failures++
	b.logger.Warn(msg, args...)
}

// containingDeclaration finds the declaration whose span contains the line.
// Standalone functions are scanned before methods.
func containingDeclaration(file *models.FileEntity, line int) *models.Declaration {
	for _, decl := range file.Declarations() {
		if line >= decl.Location.StartLine && line <= decl.Location.EndLine {
			return decl
		}
	}
	return nil
}

// FileRef addresses a file node by path
func FileRef(path string) NodeRef {
	return NodeRef{Label: LabelFile, Keys: map[string]any{"path": path}}
}

// ClassRef addresses a class node by name and declaration line
func ClassRef(class *models.ClassEntity) NodeRef {
	return NodeRef{Label: LabelClass, Keys: map[string]any{
		"name":       class.Name,
		"line_start": class.Location.StartLine,
	}}
}

// DeclRef addresses a function or method node by name and declaration line
func DeclRef(decl *models.Declaration) NodeRef {
	label := LabelFunction
	if decl.Kind == models.KindMethod {
		label = LabelMethod
	}
	return NodeRef{Label: label, Keys: map[string]any{
		"name":       decl.Name,
		"line_start": decl.Location.StartLine,
	}}
}

// LintErrorRef addresses a finding node by its identifying fields
func LintErrorRef(e models.LintError) NodeRef {
	return NodeRef{Label: LabelLintError, Keys: map[string]any{
		"file_path":  e.FilePath,
		"line":       e.Line,
		"error_type": e.Type,
		"message":    e.Message,
	}}
}

// CallerRef addresses the calling declaration of a relationship
func CallerRef(rel models.CallRelationship) NodeRef {
	return NodeRef{Label: kindLabel(rel.CallerKind), Keys: map[string]any{
		"name":       rel.Caller,
		"line_start": rel.CallerLine,
	}}
}

// CalleeRef addresses the called declaration of a relationship
func CalleeRef(rel models.CallRelationship) NodeRef {
	return NodeRef{Label: kindLabel(rel.CalleeKind), Keys: map[string]any{
		"name":       rel.Callee,
		"line_start": rel.CalleeLine,
	}}
}

func kindLabel(kind models.DeclKind) string {
	if kind == models.KindMethod {
		return LabelMethod
	}
	return LabelFunction
}
