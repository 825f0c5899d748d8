package locality

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		full := filepath.Join(root, filepath.FromSlash(r))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(""), 0o644))
	}
}

func TestScore_RelativeImportsAreAlwaysLocal(t *testing.T) {
	for _, module := range []string{".", ".util", "..pkg.mod", "...."} {
		assert.Equal(t, ScoreResolvable, Score(module, ""), module)
		assert.Equal(t, ScoreResolvable, Score(module, t.TempDir()), module)
	}
}

func TestScore_Levels(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "pkg/sub.py", "tools/deep/helpers.py", "lib/a/b/leaf.py")

	tests := []struct {
		module string
		want   int
	}{
		{"pkg.sub", ScoreResolvable},
		{"pkg", ScoreResolvable},
		{"other.pkg.sub", ScoreTailMatch},
		{"deep.helpers", ScoreFullMatch},
		{"x.y.leaf", ScoreNameMatch},
		{"numpy", ScoreNone},
		{"pkg.missing", ScoreNone},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.module, root))
		})
	}
}

func TestScore_SuffixRespectsPathBoundary(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "src/mypkg.py")

	// "pkg" is a suffix of "src/mypkg" but not on a path boundary.
	assert.Equal(t, ScoreNone, Score("a.b.pkg", root))
	assert.Equal(t, ScoreNameMatch, Score("a.b.mypkg", root))
}

func TestScore_HigherModeWinsRegardlessOfWalkOrder(t *testing.T) {
	root := t.TempDir()
	// "aaa/c.py" matches only the last segment and sorts before the full match.
	writeFiles(t, root, "aaa/c.py", "zzz/x/b/c.py")

	assert.Equal(t, ScoreFullMatch, Score("x.b.c", root))
}

func TestScore_PackageInitFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "vendor/inner/__init__.py")

	assert.Equal(t, ScoreTailMatch, Score("outer.inner", root))
}

func TestScore_EmptyOrMissingRoot(t *testing.T) {
	assert.Equal(t, ScoreNone, Score("pkg.sub", ""))
	assert.Equal(t, ScoreNone, Score("pkg.sub", filepath.Join(t.TempDir(), "absent")))
}

func TestClassifier_ReusesListingWithinUnit(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a/b.py")

	c := NewClassifier(root)
	assert.Equal(t, ScoreTailMatch, c.Score("z.b"))

	// Files added after the first search are not seen by this classifier,
	// but a fresh one picks them up.
	writeFiles(t, root, "q/r/s.py")
	assert.Equal(t, ScoreNone, c.Score("m.n.s"))
	assert.Equal(t, ScoreNameMatch, NewClassifier(root).Score("m.n.s"))
}
