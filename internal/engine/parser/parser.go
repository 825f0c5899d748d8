package parser

import (
	"fmt"

	"pyimports/internal/core/errors"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Parser turns Python source text into the ordered imports it contains.
type Parser struct {
	pool   *ParserPool
	engine *ExtractorEngine
}

func NewParser() *Parser {
	return &Parser{
		pool:   NewParserPool(PythonLanguage()),
		engine: NewExtractorEngine(pythonImportHandlers()),
	}
}

// ParseImports returns the imports of source in source order. Source that
// does not parse cleanly yields a PARSE_ERROR and no imports.
func (p *Parser) ParseImports(source []byte) ([]Import, error) {
	sp := p.pool.Get()
	defer p.pool.Put(sp)

	tree := sp.Parse(source, nil)
	if tree == nil {
		return nil, errors.New(errors.CodeInternal, "parse failed")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root)
	}

	ctx := &ExtractionContext{Source: source}
	p.engine.Walk(ctx, root)
	return ctx.Imports, nil
}

func syntaxError(root *sitter.Node) error {
	node := firstErrorNode(root)
	if node == nil {
		return errors.New(errors.CodeParse, "invalid syntax")
	}
	pos := node.StartPosition()
	msg := fmt.Sprintf("invalid syntax at line %d, column %d", pos.Row+1, pos.Column+1)
	if node.IsMissing() {
		msg = fmt.Sprintf("missing %q at line %d, column %d", node.Kind(), pos.Row+1, pos.Column+1)
	}
	return errors.New(errors.CodeParse, msg)
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if !child.HasError() && !child.IsMissing() {
			continue
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return nil
}
