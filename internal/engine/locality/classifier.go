// Package locality scores how likely an imported module belongs to the
// project being analyzed rather than to an installed distribution.
package locality

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Score levels, highest first.
const (
	ScoreResolvable = 4 // module path exists under the root, or relative import
	ScoreFullMatch  = 3 // a project file ends with the full dotted path
	ScoreTailMatch  = 2 // a project file ends with the path minus its first segment
	ScoreNameMatch  = 1 // a project file ends with the last segment only
	ScoreNone       = 0
)

// Classifier rates modules against a single project root. The file listing
// is collected lazily on the first suffix search and reused by that
// classifier only; callers create one classifier per source unit.
type Classifier struct {
	root   string
	files  []string
	listed bool
}

func NewClassifier(root string) *Classifier {
	return &Classifier{root: root}
}

// Score is a convenience for one-off classification.
func Score(module, root string) int {
	return NewClassifier(root).Score(module)
}

func (c *Classifier) Root() string {
	return c.root
}

func (c *Classifier) Score(module string) int {
	if strings.HasPrefix(module, ".") {
		return ScoreResolvable
	}
	if c.root == "" {
		return ScoreNone
	}
	if c.resolvable(module) {
		return ScoreResolvable
	}

	converted := strings.ReplaceAll(module, ".", "/")
	if converted == "" {
		return ScoreNone
	}

	for _, mode := range suffixModes(converted) {
		for _, name := range c.projectFiles() {
			if suffixMatches(name, mode.suffix) {
				return mode.score
			}
		}
	}
	return ScoreNone
}

// resolvable walks the dotted path as nested directories, accepting either
// a directory or a same-named .py file at every step.
func (c *Classifier) resolvable(module string) bool {
	path := c.root
	for _, part := range strings.Split(module, ".") {
		path = filepath.Join(path, part)
		if !exists(path) && !exists(path+".py") {
			return false
		}
	}
	return true
}

type suffixMode struct {
	suffix string
	score  int
}

func suffixModes(converted string) []suffixMode {
	modes := []suffixMode{{suffix: converted, score: ScoreFullMatch}}
	parts := strings.Split(converted, "/")
	if len(parts) > 1 {
		modes = append(modes, suffixMode{suffix: strings.Join(parts[1:], "/"), score: ScoreTailMatch})
	}
	if len(parts) > 2 {
		modes = append(modes, suffixMode{suffix: parts[len(parts)-1], score: ScoreNameMatch})
	}
	return modes
}

// suffixMatches reports whether name ends with suffix on a path boundary.
func suffixMatches(name, suffix string) bool {
	if !strings.HasSuffix(name, suffix) {
		return false
	}
	if len(name) == len(suffix) {
		return true
	}
	return name[len(name)-len(suffix)-1] == '/'
}

// projectFiles lists every file under the root as a slash separated path
// relative to it, with the .py extension and a trailing __init__ removed so
// that "pkg/sub.py" and "pkg/sub/__init__.py" both read as "pkg/sub".
func (c *Classifier) projectFiles() []string {
	if c.listed {
		return c.files
	}
	c.listed = true

	var files []string
	_ = filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees contribute nothing.
			if d != nil && d.IsDir() && path != c.root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(c.root, path)
		if relErr != nil {
			return nil
		}
		files = append(files, moduleFileName(filepath.ToSlash(rel)))
		return nil
	})
	sort.Strings(files)
	c.files = files
	return files
}

func moduleFileName(rel string) string {
	rel = strings.TrimSuffix(rel, ".py")
	if rel == "__init__" {
		return rel
	}
	return strings.TrimSuffix(rel, "/__init__")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
