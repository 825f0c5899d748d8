package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

const (
	ipythonAccessor = "get_ipython"
	loadExtCommand  = "load_ext"
)

func pythonImportHandlers() map[string]NodeHandler {
	return map[string]NodeHandler{
		"import_statement":        extractImport,
		"import_from_statement":   extractFromImport,
		"future_import_statement": extractFutureImport,
		"call":                    extractLoadExt,
	}
}

// extractImport emits one event per name in "import a, b.c as d".
func extractImport(ctx *ExtractionContext, node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "dotted_name":
			ctx.Add(node, KindImport, normalizeDottedName(ctx.Text(child)))
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				ctx.Add(node, KindImport, normalizeDottedName(ctx.Text(name)))
			}
		}
	}
	return true
}

// extractFromImport emits a single event for the source module of a from
// import, prefixed with its relative level in dots.
func extractFromImport(ctx *ExtractionContext, node *sitter.Node) bool {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return true
	}

	var name string
	if moduleNode.Kind() == "relative_import" {
		for i := uint(0); i < moduleNode.ChildCount(); i++ {
			child := moduleNode.Child(i)
			switch child.Kind() {
			case "import_prefix":
				name = strings.Repeat(".", strings.Count(ctx.Text(child), ".")) + name
			case "dotted_name":
				name += normalizeDottedName(ctx.Text(child))
			}
		}
	} else {
		name = normalizeDottedName(ctx.Text(moduleNode))
	}

	// "from . import util" names the package only by its dots; the first
	// imported name is what actually gets loaded.
	if strings.Trim(name, ".") == "" {
		name += firstImportedName(ctx, node)
	}

	ctx.Add(node, KindImportFrom, name)
	return true
}

func firstImportedName(ctx *ExtractionContext, node *sitter.Node) string {
	seenImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if !seenImport {
			seenImport = child.Kind() == "import"
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			return normalizeDottedName(ctx.Text(child))
		case "aliased_import":
			return normalizeDottedName(ctx.Text(child.ChildByFieldName("name")))
		}
	}
	return ""
}

func extractFutureImport(ctx *ExtractionContext, node *sitter.Node) bool {
	ctx.Add(node, KindImportFrom, "__future__")
	return true
}

// extractLoadExt recognizes get_ipython().<method>("load_ext <ext>") and
// get_ipython().<method>("load_ext", "<ext>"). Any other call shape emits
// nothing; the walk always continues into the call's children.
func extractLoadExt(ctx *ExtractionContext, node *sitter.Node) bool {
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "attribute" {
		return false
	}
	receiver := fn.ChildByFieldName("object")
	if receiver == nil || receiver.Kind() != "call" {
		return false
	}
	accessor := receiver.ChildByFieldName("function")
	if accessor == nil || accessor.Kind() != "identifier" || ctx.Text(accessor) != ipythonAccessor {
		return false
	}
	if len(positionalArgs(receiver)) != 0 {
		return false
	}

	args := positionalArgs(node)
	if len(args) == 0 {
		return false
	}
	first, ok := stringLiteral(ctx, args[0])
	if !ok || first == "" {
		return false
	}

	fields := strings.Fields(first)
	if len(fields) == 0 || fields[0] != loadExtCommand {
		return false
	}

	var module string
	switch {
	case len(fields) > 1:
		module = fields[1]
	case len(args) > 1:
		module, ok = stringLiteral(ctx, args[1])
		if !ok {
			return false
		}
	default:
		return false
	}

	ctx.Add(node, KindLoadExt, module)
	return false
}

// positionalArgs returns the positional arguments of a call node, skipping
// keyword arguments, **kwargs and comments.
func positionalArgs(call *sitter.Node) []*sitter.Node {
	list := call.ChildByFieldName("arguments")
	if list == nil || list.Kind() != "argument_list" {
		return nil
	}
	var args []*sitter.Node
	for i := uint(0); i < list.NamedChildCount(); i++ {
		child := list.NamedChild(i)
		switch child.Kind() {
		case "keyword_argument", "dictionary_splat", "comment":
			continue
		}
		args = append(args, child)
	}
	return args
}

// stringLiteral returns the value of a plain (non byte, non f-string) string
// literal node.
func stringLiteral(ctx *ExtractionContext, node *sitter.Node) (string, bool) {
	if node == nil || node.Kind() != "string" {
		return "", false
	}

	var start, end *sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "string_start":
			start = child
		case "string_end":
			end = child
		case "interpolation":
			return "", false
		}
	}
	if start == nil || end == nil {
		return "", false
	}

	opener := ctx.Text(start)
	prefix := strings.ToLower(strings.TrimRight(opener, `'"`))
	if strings.ContainsAny(prefix, "bf") {
		return "", false
	}

	raw := string(ctx.Source[start.EndByte():end.StartByte()])
	if strings.Contains(prefix, "r") {
		return raw, true
	}
	return unescapePython(raw), true
}

var pythonEscapes = map[byte]string{
	'\\': `\`, '\'': `'`, '"': `"`, 'n': "\n", 't': "\t", 'r': "\r",
	'a': "\a", 'b': "\b", 'f': "\f", 'v': "\v", '0': "\x00",
	'\n': "",
}

// unescapePython decodes the common single character escapes. Unknown
// escapes are kept verbatim, as Python does.
func unescapePython(raw string) string {
	if !strings.Contains(raw, `\`) {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if ch != '\\' || i+1 >= len(raw) {
			b.WriteByte(ch)
			continue
		}
		if repl, ok := pythonEscapes[raw[i+1]]; ok {
			b.WriteString(repl)
			i++
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func normalizeDottedName(value string) string {
	return strings.Join(strings.Fields(value), "")
}
