package analyzer

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Walker discovers source files under a root directory. It honors the
// repository's .gitignore when present plus the configured ignore patterns,
// and filters by extension.
type Walker struct {
	root       string
	extensions map[string]bool
	ignores    *ignore.GitIgnore
	gitignore  *ignore.GitIgnore
}

// NewWalker creates a walker for root. extensions are matched with the
// leading dot; ignorePatterns use gitignore syntax.
func NewWalker(root string, extensions, ignorePatterns []string) *Walker {
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = true
	}

	w := &Walker{
		root:       root,
		extensions: exts,
		ignores:    ignore.CompileIgnoreLines(ignorePatterns...),
	}

	// repository .gitignore is optional
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		w.gitignore = gi
	}
	return w
}

// Walk returns the supported source file paths under root in directory
// walk order.
func (w *Walker) Walk() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if w.skip(rel, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if w.skip(rel, d.Name()) {
			return nil
		}
		if w.extensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (w *Walker) skip(rel, name string) bool {
	if name == ".git" {
		return true
	}
	if w.ignores.MatchesPath(rel) || w.ignores.MatchesPath(name) {
		return true
	}
	if w.gitignore != nil && w.gitignore.MatchesPath(rel) {
		return true
	}
	return false
}
