package resolver

import (
	_ "embed"
	"strings"
)

//go:embed stdlib/python.txt
var pythonStdlibData string

var pythonStdlib = map[string]bool{}

func init() {
	for _, line := range strings.Split(pythonStdlibData, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			pythonStdlib[line] = true
		}
	}
}

// IsStdlib reports whether module, or the top-level package it lives in,
// ships with the Python standard library.
func IsStdlib(module string) bool {
	if pythonStdlib[module] {
		return true
	}
	return pythonStdlib[topLevel(module)]
}

// topLevel returns the first segment of a dotted module name. Relative
// names have no top-level package and return "".
func topLevel(module string) string {
	if strings.HasPrefix(module, ".") {
		return ""
	}
	if i := strings.IndexByte(module, '.'); i >= 0 {
		return module[:i]
	}
	return module
}
