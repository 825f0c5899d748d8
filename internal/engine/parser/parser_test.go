package parser

import (
	"testing"

	"pyimports/internal/core/errors"
)

func parseImports(t *testing.T, code string) []Import {
	t.Helper()
	imports, err := NewParser().ParseImports([]byte(code))
	if err != nil {
		t.Fatalf("ParseImports: %v", err)
	}
	return imports
}

func TestParseImports_SourceOrder(t *testing.T) {
	imports := parseImports(t, "import os, sys\nfrom . import util\n")

	want := []Import{
		{Line: 1, Kind: KindImport, Name: "os"},
		{Line: 1, Kind: KindImport, Name: "sys"},
		{Line: 2, Kind: KindImportFrom, Name: ".util"},
	}
	if len(imports) != len(want) {
		t.Fatalf("expected %d imports, got %d: %+v", len(want), len(imports), imports)
	}
	for i := range want {
		if imports[i] != want[i] {
			t.Errorf("import %d = %+v, want %+v", i, imports[i], want[i])
		}
	}
}

func TestParseImports_Forms(t *testing.T) {
	code := `
import numpy as np, os.path
from pandas.io import sql
from ..pkg.sub import thing as other
from .. import *
from __future__ import annotations
from .  import (first, second)

def load():
    import json
    if True:
        from xml.etree import ElementTree
    return [__import__("ignored")]
`
	imports := parseImports(t, code)

	want := []Import{
		{Line: 2, Kind: KindImport, Name: "numpy"},
		{Line: 2, Kind: KindImport, Name: "os.path"},
		{Line: 3, Kind: KindImportFrom, Name: "pandas.io"},
		{Line: 4, Kind: KindImportFrom, Name: "..pkg.sub"},
		{Line: 5, Kind: KindImportFrom, Name: ".."},
		{Line: 6, Kind: KindImportFrom, Name: "__future__"},
		{Line: 7, Kind: KindImportFrom, Name: ".first"},
		{Line: 10, Kind: KindImport, Name: "json"},
		{Line: 12, Kind: KindImportFrom, Name: "xml.etree"},
	}
	if len(imports) != len(want) {
		t.Fatalf("expected %d imports, got %d: %+v", len(want), len(imports), imports)
	}
	for i := range want {
		if imports[i] != want[i] {
			t.Errorf("import %d = %+v, want %+v", i, imports[i], want[i])
		}
	}
}

func TestParseImports_LoadExt(t *testing.T) {
	tests := []struct {
		name string
		code string
		want []string
	}{
		{"single literal", `get_ipython().run_line_magic("load_ext autoreload")`, []string{"autoreload"}},
		{"second argument", `get_ipython().run_line_magic('load_ext', 'line_profiler')`, []string{"line_profiler"}},
		{"any method name", `get_ipython().magic('load_ext  sql  extra')`, []string{"sql"}},
		{"nested in expression", `x = [get_ipython().run_line_magic('load_ext', 'rpy2.ipython')]`, []string{"rpy2.ipython"}},
		{"other magic", `get_ipython().run_line_magic('matplotlib', 'inline')`, nil},
		{"missing extension", `get_ipython().run_line_magic('load_ext')`, nil},
		{"non literal extension", `get_ipython().run_line_magic('load_ext', name)`, nil},
		{"non literal command", `get_ipython().run_line_magic(cmd, 'x')`, nil},
		{"empty literal", `get_ipython().run_line_magic('', 'x')`, nil},
		{"byte literal", `get_ipython().run_line_magic(b'load_ext', 'x')`, nil},
		{"f-string", `get_ipython().run_line_magic(f'load_ext {x}')`, nil},
		{"accessor with arguments", `get_ipython(1).run_line_magic('load_ext', 'x')`, nil},
		{"different accessor", `shell().run_line_magic('load_ext', 'x')`, nil},
		{"plain call", `load_ext('load_ext', 'x')`, nil},
		{"keyword extension ignored", `get_ipython().run_line_magic('load_ext', module='x')`, nil},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imports, err := p.ParseImports([]byte(tt.code + "\n"))
			if err != nil {
				t.Fatalf("ParseImports: %v", err)
			}
			var got []string
			for _, imp := range imports {
				if imp.Kind != KindLoadExt {
					t.Fatalf("unexpected kind %q", imp.Kind)
				}
				got = append(got, imp.Name)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestParseImports_ImportsInsideCallArguments(t *testing.T) {
	imports := parseImports(t, "f(lambda: g(get_ipython().run_line_magic('load_ext', 'inner')))\n")
	if len(imports) != 1 || imports[0].Name != "inner" {
		t.Fatalf("expected nested load_ext, got %+v", imports)
	}
}

func TestParseImports_SyntaxError(t *testing.T) {
	p := NewParser()
	for _, code := range []string{"import\n", "def f(:\n    pass\n", "import os\nx = (\n"} {
		imports, err := p.ParseImports([]byte(code))
		if err == nil {
			t.Fatalf("expected syntax error for %q", code)
		}
		if !errors.IsCode(err, errors.CodeParse) {
			t.Fatalf("expected PARSE_ERROR for %q, got %v", code, err)
		}
		if imports != nil {
			t.Fatalf("expected no imports for %q, got %+v", code, imports)
		}
	}
}

func TestUnescapePython(t *testing.T) {
	tests := map[string]string{
		`load_ext\tx`: "load_ext\tx",
		`a\\b`:        `a\b`,
		`keep\q`:      `keep\q`,
		`no escapes`:  "no escapes",
	}
	for in, want := range tests {
		if got := unescapePython(in); got != want {
			t.Errorf("unescapePython(%q) = %q, want %q", in, got, want)
		}
	}
}
