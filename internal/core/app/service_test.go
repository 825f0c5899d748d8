package app

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"pyimports/internal/core/config"
	"pyimports/internal/core/errors"
	"pyimports/internal/core/ports"
	"pyimports/internal/data/history"
	"pyimports/internal/data/importmap"
	"pyimports/internal/engine/indexer"
	"pyimports/internal/engine/parser"
	"pyimports/internal/engine/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notebookFixture = `{
 "metadata": {"language_info": {"name": "python"}},
 "nbformat": 4,
 "cells": [
  {"cell_type": "code", "source": "import pandas"},
  {"cell_type": "markdown", "source": "# notes"}
 ]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newProject lays out a small tree with a checkpoint copy and a broken
// script.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.py"), "import os\nimport numpy\nfrom pkg import util\n")
	writeFile(t, filepath.Join(root, "pkg", "util.py"), "")
	writeFile(t, filepath.Join(root, "nb.ipynb"), notebookFixture)
	writeFile(t, filepath.Join(root, ".ipynb_checkpoints", "nb-checkpoint.ipynb"), notebookFixture)
	writeFile(t, filepath.Join(root, ".ipynb_checkpoints", "main-checkpoint.py"), "import evil\n")
	writeFile(t, filepath.Join(root, "broken.py"), "def broken(:\n")
	writeFile(t, filepath.Join(root, "README.md"), "import os\n")
	return root
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.Scan.Workers = 2
	dir := t.TempDir()
	paths := config.ResolvedPaths{
		ImportMapPath: filepath.Join(dir, "map.json"),
		ErrorsPath:    filepath.Join(dir, "errors.json"),
		DBPath:        filepath.Join(dir, "history.db"),
	}
	svc, err := New(cfg, paths, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func writeImportMap(t *testing.T, svc *Service, table map[string][]string) {
	t.Helper()
	m := importmap.New()
	for pkg, modules := range table {
		m.Set(pkg, modules)
	}
	require.NoError(t, importmap.SaveImportMap(svc.paths.ImportMapPath, m))
}

type fakeStore struct {
	mu   sync.Mutex
	runs []history.Run
}

func (f *fakeStore) SaveRun(_ context.Context, run history.Run) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.ID = "run-" + string(rune('a'+len(f.runs)))
	f.runs = append(f.runs, run)
	return run.ID, nil
}

func (f *fakeStore) ListRuns(_ context.Context, projectKey string, _ int) ([]history.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]history.RunSummary, 0, len(f.runs))
	for _, r := range f.runs {
		out = append(out, history.RunSummary{
			ID:               r.ID,
			ProjectKey:       projectKey,
			StartedAt:        r.StartedAt,
			EventCount:       len(r.Events),
			AttributionCount: len(r.Attributions),
		})
	}
	return out, nil
}

func (f *fakeStore) LoadRecords(_ context.Context, runID string) (history.Run, error) {
	for _, r := range f.runs {
		if r.ID == runID {
			return r, nil
		}
	}
	return history.Run{}, errors.New(errors.CodeNotFound, "run not found")
}

func (f *fakeStore) Close() error { return nil }

func TestScanSources(t *testing.T) {
	root := newProject(t)
	svc := newService(t)

	files, err := svc.ScanSources(root)
	require.NoError(t, err)
	rel := make([]string, len(files))
	for i, f := range files {
		r, err := filepath.Rel(root, f)
		require.NoError(t, err)
		rel[i] = filepath.ToSlash(r)
	}
	assert.Equal(t, []string{"broken.py", "main.py", "nb.ipynb", "pkg/util.py"}, rel)

	files, err = svc.ScanSources(filepath.Join(root, "README.md"))
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = svc.ScanSources(filepath.Join(root, ".ipynb_checkpoints", "main-checkpoint.py"))
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = svc.ScanSources(filepath.Join(root, "missing"))
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestScanSources_Excludes(t *testing.T) {
	root := newProject(t)
	writeFile(t, filepath.Join(root, "venv", "lib", "site.py"), "import site\n")
	svc := newService(t)
	svc.cfg.Scan.ExcludeDirs = []string{"venv", "pkg"}
	svc.cfg.Scan.ExcludeFiles = []string{"broken*"}

	files, err := svc.ScanSources(root)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "main.py", filepath.Base(files[0]))
	assert.Equal(t, "nb.ipynb", filepath.Base(files[1]))
}

func TestScanSources_SkipsUnreadableEntries(t *testing.T) {
	root := newProject(t)
	writeFile(t, filepath.Join(root, "locked", "hidden.py"), "import hidden\n")
	svc := newService(t)

	walkDir = func(dir string, fn fs.WalkDirFunc) error {
		return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			switch {
			case d != nil && d.IsDir() && filepath.Base(path) == "locked":
				return fn(path, d, fs.ErrPermission)
			case filepath.Base(path) == "broken.py":
				return fn(path, d, fs.ErrNotExist)
			}
			return fn(path, d, err)
		})
	}
	t.Cleanup(func() { walkDir = filepath.WalkDir })

	files, err := svc.ScanSources(root)
	require.NoError(t, err)
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}
	assert.Equal(t, []string{"main.py", "nb.ipynb", "util.py"}, names)

	res, err := svc.ExtractImports(context.Background(), ports.ExtractRequest{Source: root})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Units)
	assert.Empty(t, res.Warnings)
}

func TestExtractImports_Directory(t *testing.T) {
	root := newProject(t)
	svc := newService(t)

	res, err := svc.ExtractImports(context.Background(), ports.ExtractRequest{Source: root})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Units)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "broken.py")
	assert.Empty(t, res.RunID)

	require.Len(t, res.Events, 4)
	names := make([]string, len(res.Events))
	for i, ev := range res.Events {
		names[i] = ev.Name
	}
	assert.Equal(t, []string{"os", "numpy", "pkg", "pandas"}, names)

	assert.Equal(t, 4, res.Events[2].Local)
	assert.Equal(t, parser.KindImportFrom, res.Events[2].Kind)
	require.NotNil(t, res.Events[3].Cell)
	assert.Equal(t, 0, *res.Events[3].Cell)
	assert.Equal(t, parser.FileTypeNotebook, res.Events[3].FileType)
}

func TestExtractImports_Deterministic(t *testing.T) {
	root := newProject(t)
	svc := newService(t)

	first, err := svc.ExtractImports(context.Background(), ports.ExtractRequest{Source: root})
	require.NoError(t, err)
	for range 3 {
		again, err := svc.ExtractImports(context.Background(), ports.ExtractRequest{Source: root})
		require.NoError(t, err)
		assert.Equal(t, first.Events, again.Events)
	}
}

func TestExtractImports_Cancelled(t *testing.T) {
	svc := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.ExtractImports(ctx, ports.ExtractRequest{Source: t.TempDir()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestResolvePackages(t *testing.T) {
	root := newProject(t)
	store := &fakeStore{}
	svc := newService(t, WithStore(store))
	writeImportMap(t, svc, map[string][]string{
		"numpy":  {"numpy"},
		"pandas": {"pandas"},
	})

	res, err := svc.ResolvePackages(context.Background(), ports.ExtractRequest{Source: root})
	require.NoError(t, err)

	// pkg scores 4 and is cut.
	require.Len(t, res.Attributions, 3)
	assert.Equal(t, resolver.PackageBuiltin, res.Attributions[0].Name)
	assert.Equal(t, resolver.ModeBuiltin, res.Attributions[0].Mode)
	assert.Equal(t, "numpy", res.Attributions[1].Name)
	assert.Equal(t, resolver.ModeMap, res.Attributions[1].Mode)
	assert.Equal(t, "pandas", res.Attributions[2].Name)
	assert.Equal(t, "notebook", string(res.Attributions[2].FileType))

	assert.Equal(t, "run-a", res.Extract.RunID)
	require.Len(t, store.runs, 1)
	assert.Equal(t, "packages", store.runs[0].Command)
	assert.Equal(t, "default", store.runs[0].ProjectKey)
	assert.Len(t, store.runs[0].Attributions, 3)
}

func TestReconfigure_ReloadsResolutionTables(t *testing.T) {
	root := newProject(t)
	svc := newService(t)
	writeImportMap(t, svc, map[string][]string{
		"numpy":  {"numpy"},
		"pandas": {"pandas"},
	})

	res, err := svc.ResolvePackages(context.Background(), ports.ExtractRequest{Source: root})
	require.NoError(t, err)
	require.Len(t, res.Attributions, 3)

	next := config.Default()
	cut := config.MaxImportCut
	next.Resolution.ImportCut = &cut
	require.NoError(t, svc.Reconfigure(next))
	assert.Same(t, next, svc.Config())

	res, err = svc.ResolvePackages(context.Background(), ports.ExtractRequest{Source: root})
	require.NoError(t, err)
	require.Len(t, res.Attributions, 4)
	assert.Equal(t, "pkg", res.Attributions[2].ImportName)
	assert.Equal(t, resolver.ModeUnknown, res.Attributions[2].Mode)

	assert.True(t, errors.IsCode(svc.Reconfigure(nil), errors.CodeValidationError))
}

func TestResolvePackages_MissingMap(t *testing.T) {
	svc := newService(t)
	_, err := svc.ResolvePackages(context.Background(), ports.ExtractRequest{Source: newProject(t)})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestBuildGraph(t *testing.T) {
	root := newProject(t)
	svc := newService(t)
	writeImportMap(t, svc, map[string][]string{
		"numpy":  {"numpy"},
		"pandas": {"pandas"},
	})

	report, err := svc.BuildGraph(context.Background(), ports.ExtractRequest{Source: root})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Nodes)
	assert.Equal(t, 2, report.Edges)
	assert.False(t, report.HasCycle)
	assert.Equal(t, map[string]int{"numpy": 1, "pandas": 1}, report.FanIn)
	assert.Len(t, report.Onion, 4)
	assert.Len(t, report.Katz, 4)
	assert.Empty(t, report.KatzError)
}

type fakeLookup map[string][]string

func (f fakeLookup) Lookup(_ context.Context, name string) indexer.LookupResult {
	modules, ok := f[name]
	if !ok {
		return indexer.LookupResult{Package: name, Err: errors.New(errors.CodeNotFound, "no such package")}
	}
	return indexer.LookupResult{Package: name, Modules: modules}
}

func TestBuildImportMap(t *testing.T) {
	svc := newService(t, WithLookuper(fakeLookup{"PyYAML": {"yaml"}}))
	csvPath := filepath.Join(t.TempDir(), "packages.csv")
	writeFile(t, csvPath, "rank,mapped_to\n1,PyYAML\n2,ghost\n")

	summary, err := svc.BuildImportMap(context.Background(), ports.BuildMapRequest{SourceCSV: csvPath})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Requested)
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 1, summary.Failed)

	m, err := importmap.LoadImportMap(svc.paths.ImportMapPath)
	require.NoError(t, err)
	modules, ok := m.Get("PyYAML")
	require.True(t, ok)
	assert.Equal(t, []string{"yaml"}, modules)

	failed, err := importmap.LoadErrors(svc.paths.ErrorsPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, failed)
}

func TestBuildImportMap_RequiresSource(t *testing.T) {
	svc := newService(t)
	_, err := svc.BuildImportMap(context.Background(), ports.BuildMapRequest{})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestHistory(t *testing.T) {
	svc := newService(t)
	_, err := svc.History(context.Background(), 0)
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))

	store := &fakeStore{}
	svc = newService(t, WithStore(store))
	root := newProject(t)
	_, err = svc.WithCommand("imports").ExtractImports(context.Background(), ports.ExtractRequest{Source: root})
	require.NoError(t, err)

	report, err := svc.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RunCount)
	assert.Equal(t, 4, report.Points[0].EventCount)
}

func TestNew_OpensHistoryStore(t *testing.T) {
	cfg := config.Default()
	cfg.DB.Enabled = true
	dir := t.TempDir()
	svc, err := New(cfg, config.ResolvedPaths{DBPath: filepath.Join(dir, "runs.db")})
	require.NoError(t, err)
	defer svc.Close()

	res, err := svc.ExtractImports(context.Background(), ports.ExtractRequest{Source: newProject(t)})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	report, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, report.RunCount)
	assert.Equal(t, res.RunID, report.Points[0].RunID)

	health := svc.Health(context.Background())
	assert.Equal(t, "up", health.Status)
	assert.Equal(t, "ok", health.Components["history"])
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil, config.ResolvedPaths{})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}
