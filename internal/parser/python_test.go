package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/codeatlas-go/internal/models"
)

const sampleSource = `"""Module docstring."""
import os
from collections import OrderedDict

def top(count: int, name="x") -> str:
    """Return a label."""
    value = helper(count)
    print(value)
    return name

async def fetch(url):
    return await session.get(url)

def helper(n):
    return n * 2

class Greeter(Base):
    """Greets people."""

    def __init__(self, name):
        self.name = name

    def greet(self):
        return format_greeting(self.name)

    def _prepare(self):
        pass

    def __compute(self):
        pass

    @staticmethod
    def version():
        return 1

    @classmethod
    def create(cls):
        return cls("anon")

    @property
    def label(self):
        return self.name
`

func parseSource(t *testing.T, source string) *Result {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.py")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))

	p := NewPythonParser()
	require.True(t, p.CanParse(path))

	res, err := p.ParseFile(path)
	require.NoError(t, err)
	require.NotNil(t, res.File)
	return res
}

func TestParseFileStructure(t *testing.T) {
	res := parseSource(t, sampleSource)
	f := res.File

	assert.Empty(t, res.Findings)
	assert.Equal(t, "sample.py", f.Name)
	assert.ElementsMatch(t, []string{"os", "collections"}, f.Imports)
	require.Len(t, f.Functions, 3)
	require.Len(t, f.Classes, 1)
}

func TestParseFunctionDetails(t *testing.T) {
	f := parseSource(t, sampleSource).File

	top := f.Functions[0]
	assert.Equal(t, "top", top.Name)
	assert.Equal(t, models.KindFunction, top.Kind)
	assert.Equal(t, 5, top.Location.StartLine)
	assert.Equal(t, "str", top.ReturnType)
	assert.Equal(t, "Return a label.", top.Docstring)
	assert.False(t, top.Async)

	require.Len(t, top.Params, 2)
	assert.Equal(t, "count", top.Params[0].Name)
	assert.Equal(t, "int", top.Params[0].Type)
	assert.Equal(t, "name", top.Params[1].Name)
	assert.Equal(t, `"x"`, top.Params[1].Default)

	assert.Equal(t, []string{"helper", "print"}, top.Calls)
}

func TestParseAsyncFunction(t *testing.T) {
	f := parseSource(t, sampleSource).File

	fetch := f.Functions[1]
	assert.Equal(t, "fetch", fetch.Name)
	assert.True(t, fetch.Async)
	// attribute calls keep only the final segment
	assert.Equal(t, []string{"get"}, fetch.Calls)
}

func TestParseClassAndMethods(t *testing.T) {
	f := parseSource(t, sampleSource).File

	cls := f.Classes[0]
	assert.Equal(t, "Greeter", cls.Name)
	assert.Equal(t, []string{"Base"}, cls.Bases)
	assert.Equal(t, "Greets people.", cls.Docstring)
	require.Len(t, cls.Methods, 7)

	byName := make(map[string]*models.Declaration)
	for _, m := range cls.Methods {
		require.Equal(t, models.KindMethod, m.Kind)
		require.Equal(t, "Greeter", m.ClassName)
		byName[m.Name] = m
	}

	assert.Equal(t, models.VisibilityPublic, byName["__init__"].Visibility)
	assert.Equal(t, models.VisibilityPublic, byName["greet"].Visibility)
	assert.Equal(t, models.VisibilityProtected, byName["_prepare"].Visibility)
	assert.Equal(t, models.VisibilityPrivate, byName["__compute"].Visibility)

	assert.True(t, byName["version"].Static)
	assert.True(t, byName["create"].ClassMethod)
	assert.True(t, byName["label"].Property)
	assert.False(t, byName["greet"].Static)

	assert.Equal(t, []string{"format_greeting"}, byName["greet"].Calls)
}

func TestParseSyntaxErrorYieldsFinding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.py")
	require.NoError(t, os.WriteFile(path, []byte("def broken(:\n    pass\n"), 0o644))

	res, err := NewPythonParser().ParseFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, res.Findings)

	finding := res.Findings[0]
	assert.Equal(t, "SyntaxError", finding.Type)
	assert.Equal(t, models.SeverityError, finding.Severity)
	assert.Equal(t, path, finding.FilePath)
	assert.GreaterOrEqual(t, finding.Line, 1)
}

func TestCanParse(t *testing.T) {
	p := NewPythonParser()
	assert.True(t, p.CanParse("x.py"))
	assert.True(t, p.CanParse("x.PY"))
	assert.False(t, p.CanParse("x.go"))
	assert.False(t, p.CanParse("py"))
}

func TestRegistryOrder(t *testing.T) {
	p := NewPythonParser()
	r := NewRegistry(p)

	got, ok := r.ForFile("a.py")
	assert.True(t, ok)
	assert.Equal(t, p, got)

	_, ok = r.ForFile("a.rb")
	assert.False(t, ok)
	assert.False(t, r.Supported("a.rb"))
}
