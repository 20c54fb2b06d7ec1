package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func relPaths(t *testing.T, root string, paths []string) []string {
	t.Helper()
	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		rels = append(rels, filepath.ToSlash(rel))
	}
	return rels
}

func TestWalkFiltersByExtension(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app.py":         "x = 1\n",
		"lib/util.py":    "y = 2\n",
		"readme.md":      "# hi\n",
		"script.sh":      "echo\n",
		"lib/module.pyc": "binary\n",
	})

	w := NewWalker(root, []string{".py"}, nil)
	paths, err := w.Walk()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app.py", "lib/util.py"}, relPaths(t, root, paths))
}

func TestWalkHonorsIgnorePatterns(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app.py":                 "x = 1\n",
		"__pycache__/app.py":     "x = 1\n",
		".venv/lib/site.py":      "x = 1\n",
		"vendor/third/plugin.py": "x = 1\n",
	})

	w := NewWalker(root, []string{".py"}, []string{"__pycache__", ".venv", "vendor"})
	paths, err := w.Walk()
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py"}, relPaths(t, root, paths))
}

func TestWalkHonorsGitignore(t *testing.T) {
	root := writeTree(t, map[string]string{
		".gitignore":      "generated/\nsecret.py\n",
		"app.py":          "x = 1\n",
		"secret.py":       "x = 1\n",
		"generated/g.py":  "x = 1\n",
		"src/included.py": "x = 1\n",
	})

	w := NewWalker(root, []string{".py"}, nil)
	paths, err := w.Walk()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app.py", "src/included.py"}, relPaths(t, root, paths))
}

func TestWalkSkipsGitDirectory(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app.py":          "x = 1\n",
		".git/hooks/x.py": "x = 1\n",
	})

	w := NewWalker(root, []string{".py"}, nil)
	paths, err := w.Walk()
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py"}, relPaths(t, root, paths))
}
