package notebook

import (
	"fmt"
	"regexp"
	"strings"

	"pyimports/internal/core/errors"
)

// Transformer rewrites IPython cell syntax (magics, shell escapes, help
// queries, pasted prompts) into calls on get_ipython() so the result can be
// parsed as ordinary Python. It holds no state; the zero value is ready.
type Transformer struct{}

var (
	classicPrompt = regexp.MustCompile(`^(>>>|\.\.\.)( |$)`)
	ipythonPrompt = regexp.MustCompile(`^(In \[\d+\]: |\s*\.\.\.+: )`)
	magicAssign   = regexp.MustCompile(`^(\s*)([^=\s#'"][^=#'"]*?)\s*=\s*%(\S*)[ \t]*(.*)$`)
	systemAssign  = regexp.MustCompile(`^(\s*)([^=\s#'"][^=#'"]*?)\s*=\s*!!?[ \t]*(.*)$`)
	helpEnd       = regexp.MustCompile(`^(\s*)(%{0,2}[A-Za-z_][\w.]*)(\?\??)\s*$`)
)

func (Transformer) TransformCell(src string) (string, error) {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(strings.TrimSuffix(src, "\n"), "\n")

	lines = dropLeadingBlankLines(lines)
	if len(lines) == 0 {
		return "\n", nil
	}
	lines = removeLeadingIndent(lines)
	lines = stripPrompts(lines)

	if strings.HasPrefix(lines[0], "%%") {
		return cellMagic(lines)
	}

	out := make([]string, 0, len(lines))
	var state logicalLine
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if state.continued() {
			state = scanLine(line, state)
			out = append(out, line)
			continue
		}

		if isEscapedCommand(line) || magicAssign.MatchString(line) || systemAssign.MatchString(line) {
			for strings.HasSuffix(line, `\`) && i+1 < len(lines) {
				i++
				line = strings.TrimSuffix(line, `\`) + " " + strings.TrimSpace(lines[i])
			}
		}

		rewritten, err := transformLine(line)
		if err != nil {
			return "", errors.AddContext(err, "line", i+1)
		}
		state = scanLine(rewritten, logicalLine{})
		out = append(out, rewritten)
	}
	return strings.Join(out, "\n") + "\n", nil
}

func transformLine(line string) (string, error) {
	if m := magicAssign.FindStringSubmatch(line); m != nil {
		if m[3] == "" {
			return "", errors.New(errors.CodeParse, "empty magic name in assignment")
		}
		return fmt.Sprintf("%s%s = get_ipython().run_line_magic(%s, %s)", m[1], m[2], pyQuote(m[3]), pyQuote(m[4])), nil
	}
	if m := systemAssign.FindStringSubmatch(line); m != nil {
		return fmt.Sprintf("%s%s = get_ipython().getoutput(%s)", m[1], m[2], pyQuote(m[3])), nil
	}
	if m := helpEnd.FindStringSubmatch(line); m != nil {
		return helpCall(m[1], m[2], m[3]), nil
	}

	body := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(body)]
	switch {
	case strings.HasPrefix(body, "!!"):
		return fmt.Sprintf("%sget_ipython().getoutput(%s)", indent, pyQuote(strings.TrimSpace(body[2:]))), nil
	case strings.HasPrefix(body, "!"):
		return fmt.Sprintf("%sget_ipython().system(%s)", indent, pyQuote(strings.TrimSpace(body[1:]))), nil
	case strings.HasPrefix(body, "%%"):
		// A cell magic is only meaningful on the first line of a cell.
		return line, nil
	case strings.HasPrefix(body, "%"):
		name, args := splitMagic(body[1:])
		if name == "" {
			return "", errors.New(errors.CodeParse, "empty line magic name")
		}
		return fmt.Sprintf("%sget_ipython().run_line_magic(%s, %s)", indent, pyQuote(name), pyQuote(args)), nil
	case strings.HasPrefix(body, "??"):
		return helpCall(indent, strings.TrimSpace(body[2:]), "??"), nil
	case strings.HasPrefix(body, "?"):
		return helpCall(indent, strings.TrimSpace(body[1:]), "?"), nil
	}
	return line, nil
}

func cellMagic(lines []string) (string, error) {
	name, args := splitMagic(lines[0][2:])
	if name == "" {
		return "", errors.New(errors.CodeParse, "empty cell magic name")
	}
	body := ""
	if len(lines) > 1 {
		body = strings.Join(lines[1:], "\n") + "\n"
	}
	return fmt.Sprintf("get_ipython().run_cell_magic(%s, %s, %s)\n", pyQuote(name), pyQuote(args), pyQuote(body)), nil
}

func helpCall(indent, target, marks string) string {
	magic := "pinfo"
	if marks == "??" {
		magic = "pinfo2"
	}
	return fmt.Sprintf("%sget_ipython().run_line_magic(%s, %s)", indent, pyQuote(magic), pyQuote(target))
}

func splitMagic(rest string) (name, args string) {
	rest = strings.TrimLeft(rest, " \t")
	idx := strings.IndexAny(rest, " \t")
	if idx < 0 {
		return rest, ""
	}
	return rest[:idx], strings.TrimSpace(rest[idx+1:])
}

func isEscapedCommand(line string) bool {
	body := strings.TrimLeft(line, " \t")
	return body != "" && strings.ContainsRune("%!?", rune(body[0]))
}

func dropLeadingBlankLines(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	return lines
}

// removeLeadingIndent strips the first line's indentation from every line
// that shares it, so that a cell pasted from inside a block still parses.
func removeLeadingIndent(lines []string) []string {
	first := lines[0]
	prefix := first[:len(first)-len(strings.TrimLeft(first, " \t"))]
	if prefix == "" {
		return lines
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = strings.TrimPrefix(line, prefix)
	}
	return out
}

func stripPrompts(lines []string) []string {
	var prompt *regexp.Regexp
	switch {
	case classicPrompt.MatchString(lines[0]):
		prompt = classicPrompt
	case ipythonPrompt.MatchString(lines[0]):
		prompt = ipythonPrompt
	default:
		return lines
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = prompt.ReplaceAllString(line, "")
	}
	return out
}

// logicalLine is the lexical state carried from one physical line to the
// next. Escapes are only rewritten at the start of a logical line.
type logicalLine struct {
	quote     string
	depth     int
	backslash bool
}

func (l logicalLine) continued() bool {
	return l.quote != "" || l.depth > 0 || l.backslash
}

// scanLine returns the state at the end of line, given the state at its
// start.
func scanLine(line string, state logicalLine) logicalLine {
	state.backslash = false
	for i := 0; i < len(line); {
		if state.quote != "" {
			switch {
			case line[i] == '\\':
				i += 2
			case strings.HasPrefix(line[i:], state.quote):
				state.quote = ""
				i += 3
			default:
				i++
			}
			continue
		}
		switch ch := line[i]; {
		case ch == '#':
			return state
		case strings.HasPrefix(line[i:], `"""`), strings.HasPrefix(line[i:], `'''`):
			state.quote = line[i : i+3]
			i += 3
		case ch == '"' || ch == '\'':
			j := i + 1
			for j < len(line) && line[j] != ch {
				if line[j] == '\\' {
					j++
				}
				j++
			}
			i = j + 1
		case ch == '(' || ch == '[' || ch == '{':
			state.depth++
			i++
		case ch == ')' || ch == ']' || ch == '}':
			if state.depth > 0 {
				state.depth--
			}
			i++
		default:
			i++
		}
	}
	state.backslash = state.quote == "" && strings.HasSuffix(line, `\`)
	return state
}

// pyQuote renders s as a single quoted Python string literal.
func pyQuote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
