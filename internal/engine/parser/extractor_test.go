package parser

import (
	"os"
	"path/filepath"
	"testing"

	"pyimports/internal/core/errors"
	"pyimports/internal/engine/locality"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExtract_Script(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "util.py"), "")
	path := filepath.Join(root, "main.py")

	events, err := NewExtractor(nil).Extract(SourceUnit{
		Path:   path,
		Type:   FileTypeScript,
		Source: []byte("import os, sys\nfrom . import util\nimport util\n"),
	}, root)
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, "os", events[0].Name)
	assert.Equal(t, "sys", events[1].Name)
	assert.Equal(t, ".util", events[2].Name)
	assert.Equal(t, KindImportFrom, events[2].Kind)
	assert.Equal(t, locality.ScoreResolvable, events[2].Local)
	assert.Equal(t, locality.ScoreResolvable, events[3].Local)
	assert.Equal(t, locality.ScoreNone, events[0].Local)

	for _, ev := range events {
		assert.Equal(t, path, ev.Filename)
		assert.Equal(t, FileTypeScript, ev.FileType)
		assert.Nil(t, ev.Cell)
	}
}

func TestExtract_ScriptSyntaxError(t *testing.T) {
	_, err := NewExtractor(nil).Extract(SourceUnit{
		Path:   "broken.py",
		Type:   FileTypeScript,
		Source: []byte("def f(:\n"),
	}, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeParse))
	assert.Contains(t, err.Error(), "broken.py")
}

func TestExtract_NotebookCells(t *testing.T) {
	unit := SourceUnit{
		Path:     "analysis.ipynb",
		Type:     FileTypeNotebook,
		Language: "python",
		Cells: []Cell{
			{Type: CellTypeCode, Source: "import pandas"},
			{Type: "markdown", Source: "import not_code"},
			{Type: CellTypeCode, Source: "%load_ext autoreload\n!pip install requests\nfrom sklearn import svm"},
		},
	}

	events, err := NewExtractor(nil).Extract(unit, t.TempDir())
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "pandas", events[0].Name)
	require.NotNil(t, events[0].Cell)
	assert.Equal(t, 0, *events[0].Cell)

	assert.Equal(t, "autoreload", events[1].Name)
	assert.Equal(t, KindLoadExt, events[1].Kind)
	assert.Equal(t, 1, events[1].Line)

	assert.Equal(t, "sklearn", events[2].Name)
	assert.Equal(t, 3, events[2].Line)
	for _, ev := range events[1:] {
		require.NotNil(t, ev.Cell)
		assert.Equal(t, 2, *ev.Cell)
		assert.Equal(t, FileTypeNotebook, ev.FileType)
	}
}

func TestExtract_NotebookSkipsBrokenCells(t *testing.T) {
	unit := SourceUnit{
		Path:     "nb.ipynb",
		Type:     FileTypeNotebook,
		Language: "python",
		Cells: []Cell{
			{Type: CellTypeCode, Source: "def broken(:"},
			{Type: CellTypeCode, Source: "%"},
			{Type: CellTypeCode, Source: "import json"},
		},
	}

	events, err := NewExtractor(nil).Extract(unit, t.TempDir())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "json", events[0].Name)
	assert.Equal(t, 2, *events[0].Cell)
}

func TestExtract_NotebookBracketContinuations(t *testing.T) {
	unit := SourceUnit{
		Path:     "nb.ipynb",
		Type:     FileTypeNotebook,
		Language: languagePython,
		Cells: []Cell{
			{Type: CellTypeCode, Source: "import pandas\nif (a\n    != b):\n    pass"},
			{Type: CellTypeCode, Source: "import numpy\nx = (10\n     % 3)"},
			{Type: CellTypeCode, Source: "%load_ext autoreload"},
		},
	}

	events, err := NewExtractor(nil).Extract(unit, t.TempDir())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "pandas", events[0].Name)
	assert.Equal(t, "numpy", events[1].Name)
	assert.Equal(t, "autoreload", events[2].Name)
	assert.Equal(t, KindLoadExt, events[2].Kind)
}

func TestExtract_NotebookNullBytes(t *testing.T) {
	unit := SourceUnit{
		Path:     "nb.ipynb",
		Type:     FileTypeNotebook,
		Language: "python",
		Cells:    []Cell{{Type: CellTypeCode, Source: "import a\x00import b"}},
	}

	events, err := NewExtractor(nil).Extract(unit, t.TempDir())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[1].Name)
	assert.Equal(t, 2, events[1].Line)
}

func TestExtract_NonPythonNotebook(t *testing.T) {
	unit := SourceUnit{
		Path:     "r.ipynb",
		Type:     FileTypeNotebook,
		Language: "R",
		Cells:    []Cell{{Type: CellTypeCode, Source: "import os"}},
	}

	events, err := NewExtractor(nil).Extract(unit, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestExtract_UnsupportedType(t *testing.T) {
	_, err := NewExtractor(nil).Extract(SourceUnit{Path: "x.txt", Type: "text"}, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
}

func TestExtractFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "__init__.py"), "")
	writeFile(t, filepath.Join(root, "app.py"), "import pkg\nimport requests\n")
	writeFile(t, filepath.Join(root, "nb.ipynb"), `{
 "metadata": {"language_info": {"name": "python"}},
 "nbformat": 4,
 "cells": [
  {"cell_type": "code", "source": ["import pkg\n", "import numpy as np\n"]}
 ]
}`)
	writeFile(t, filepath.Join(root, "notes.txt"), "import os")

	ex := NewExtractor(nil)

	events, err := ex.ExtractFile(filepath.Join(root, "app.py"), "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, locality.ScoreResolvable, events[0].Local)
	assert.Equal(t, locality.ScoreNone, events[1].Local)

	events, err = ex.ExtractFile(filepath.Join(root, "nb.ipynb"), root)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "numpy", events[1].Name)
	assert.Equal(t, 2, events[1].Line)
	assert.Equal(t, FileTypeNotebook, events[1].FileType)

	events, err = ex.ExtractFile(filepath.Join(root, "notes.txt"), root)
	require.NoError(t, err)
	assert.Nil(t, events)

	_, err = ex.ExtractFile(filepath.Join(root, "missing.py"), root)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestFileTypeForPath(t *testing.T) {
	ft, ok := FileTypeForPath("a/b.py")
	assert.True(t, ok)
	assert.Equal(t, FileTypeScript, ft)

	ft, ok = FileTypeForPath("a/b.ipynb")
	assert.True(t, ok)
	assert.Equal(t, FileTypeNotebook, ft)

	_, ok = FileTypeForPath("a/b.pyc")
	assert.False(t, ok)
}
