package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCodebase() *Codebase {
	cb := NewCodebase()

	a := NewFileEntity("a.py", 10)
	a.AddFunction(&Declaration{Kind: KindFunction, Name: "alpha", FilePath: "a.py",
		Location: Location{StartLine: 1, EndLine: 4}})
	cb.AddFile(a)

	b := NewFileEntity("b.py", 20)
	cls := &ClassEntity{Name: "Beta", FilePath: "b.py", Location: Location{StartLine: 1, EndLine: 10}}
	cls.AddMethod(&Declaration{Kind: KindMethod, Name: "run", ClassName: "Beta", FilePath: "b.py",
		Location: Location{StartLine: 2, EndLine: 5}})
	b.AddClass(cls)
	cb.AddFile(b)

	return cb
}

func TestCodebaseFilesInsertionOrder(t *testing.T) {
	cb := buildCodebase()
	files := cb.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "a.py", files[0].Path)
	assert.Equal(t, "b.py", files[1].Path)
}

func TestCodebaseReAddKeepsPosition(t *testing.T) {
	cb := buildCodebase()
	replacement := NewFileEntity("a.py", 99)
	cb.AddFile(replacement)

	files := cb.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "a.py", files[0].Path)
	assert.Equal(t, int64(99), files[0].Size)
}

func TestCodebaseGetStats(t *testing.T) {
	cb := buildCodebase()
	cb.AddLintError(LintError{FilePath: "a.py", Line: 2, Type: "E501", Severity: SeverityWarning})
	cb.AddCallRelationship(CallRelationship{Caller: "alpha", Callee: "run"})

	stats := cb.GetStats()
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.Classes)
	assert.Equal(t, 2, stats.Functions) // methods count as functions
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.Calls)
}

func TestErrorsForFile(t *testing.T) {
	cb := buildCodebase()
	cb.AddLintError(LintError{FilePath: "a.py", Line: 2})
	cb.AddLintError(LintError{FilePath: "b.py", Line: 3})
	cb.AddLintError(LintError{FilePath: "a.py", Line: 4})

	assert.Len(t, cb.ErrorsForFile("a.py"), 2)
	assert.Len(t, cb.ErrorsForFile("b.py"), 1)
	assert.Empty(t, cb.ErrorsForFile("c.py"))
}

func TestReport(t *testing.T) {
	cb := buildCodebase()
	cb.AddLintError(LintError{FilePath: "b.py", Line: 3, Type: "W291"})

	report := cb.Report("b.py")
	require.NotNil(t, report)
	assert.Equal(t, "b.py", report.Path)
	require.Len(t, report.Classes, 1)
	assert.Equal(t, "Beta", report.Classes[0].Name)
	assert.Equal(t, 1, report.Classes[0].Methods)
	assert.Len(t, report.Errors, 1)

	assert.Nil(t, cb.Report("missing.py"))
}
