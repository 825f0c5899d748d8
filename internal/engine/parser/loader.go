package parser

import (
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

var (
	pythonOnce     sync.Once
	pythonLanguage *sitter.Language
)

// PythonLanguage returns the statically linked Python grammar.
func PythonLanguage() *sitter.Language {
	pythonOnce.Do(func() {
		pythonLanguage = sitter.NewLanguage(tree_sitter_python.Language())
	})
	return pythonLanguage
}
