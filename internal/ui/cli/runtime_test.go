package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pyimports/internal/core/app"
	"pyimports/internal/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// setupProject creates a project in a temp dir and makes it the working
// directory so relative defaults land there.
func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "main.py"), "import os\nimport numpy\n")
	writeFile(t, filepath.Join(root, "src", ".ipynb_checkpoints", "main-checkpoint.py"), "import ghost\n")
	writeFile(t, filepath.Join(root, "pypi_importmap.json"), `{"numpy": ["numpy"]}`)
	t.Chdir(root)
	return root
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, coreServiceFactory{})
	return code, stdout.String(), stderr.String()
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		check   func(t *testing.T, opts cliOptions)
	}{
		{name: "missing command", args: nil, wantErr: "command is required"},
		{name: "unknown command", args: []string{"scan", "."}, wantErr: "unknown command"},
		{name: "imports needs source", args: []string{"imports"}, wantErr: "requires a source"},
		{name: "history takes no source", args: []string{"history", "."}, wantErr: "no source"},
		{name: "watch with build-map", args: []string{"--watch", "build-map"}, wantErr: "cannot be combined"},
		{name: "csv with tsv", args: []string{"--csv", "--format", "tsv", "imports", "."}, wantErr: "--csv"},
		{name: "extra args", args: []string{"imports", "a", "b"}, wantErr: "unexpected arguments"},
		{
			name: "packages",
			args: []string{"--cut", "0", "--strategy", "all", "packages", "src"},
			check: func(t *testing.T, opts cliOptions) {
				assert.Equal(t, cmdPackages, opts.command)
				assert.Equal(t, "src", opts.source)
				assert.Equal(t, 0, opts.cut)
				assert.Equal(t, "all", opts.strategy)
			},
		},
		{
			name: "build-map without source",
			args: []string{"build-map"},
			check: func(t *testing.T, opts cliOptions) {
				assert.Empty(t, opts.source)
				assert.Equal(t, -1, opts.cut)
			},
		},
		{
			name:  "version",
			args:  []string{"--version"},
			check: func(t *testing.T, opts cliOptions) { assert.True(t, opts.version) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseOptions(tt.args, &bytes.Buffer{})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, opts)
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	opts := cliOptions{command: cmdPackages, csv: true, cut: 0, strategy: "ALL", db: true}
	require.NoError(t, applyOverrides(opts, cfg))
	assert.Equal(t, config.FormatCSV, cfg.Output.Format)
	assert.Equal(t, 0, cfg.Resolution.Cut())
	assert.Equal(t, config.StrategyAll, cfg.Resolution.Strategy)
	assert.True(t, cfg.DB.Enabled)

	cfg = config.Default()
	err := applyOverrides(cliOptions{command: cmdImports, cut: 7, strategy: "best"}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import_cut")
	assert.Contains(t, err.Error(), "strategy")

	cfg = config.Default()
	require.NoError(t, applyOverrides(cliOptions{command: cmdHistory, cut: -1}, cfg))
	assert.True(t, cfg.DB.Enabled)
	assert.Equal(t, 1, cfg.Resolution.Cut())
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "--version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "pyimports v"+versionString+"\n", stdout)
}

func TestRun_BadUsage(t *testing.T) {
	code, _, stderr := runCLI(t, "bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unknown command")
}

func TestRun_ImportsCSV(t *testing.T) {
	setupProject(t)
	code, stdout, _ := runCLI(t, "--csv", "imports", "src")
	require.Equal(t, 0, code)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "line,import_type,name,local,filename,filetype,cell", lines[0])
	assert.Equal(t, "1,import,os,0,"+filepath.Join("src", "main.py")+",script,", lines[1])
	assert.NotContains(t, stdout, "ghost")
}

func TestRun_PackagesJSON(t *testing.T) {
	setupProject(t)
	code, stdout, stderr := runCLI(t, "--summary", "packages", "src")
	require.Equal(t, 0, code, stderr)

	var records []map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "<builtin>", records[0]["name"])
	assert.Equal(t, "numpy", records[1]["name"])
	assert.Equal(t, "pypi_map", records[1]["mode"])
	assert.Contains(t, stderr, "attributions: 2")
}

func TestRun_PackagesMissingMapFails(t *testing.T) {
	setupProject(t)
	code, stdout, _ := runCLI(t, "--import-map", "nope.json", "packages", "src")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
}

func TestRun_GraphTSV(t *testing.T) {
	setupProject(t)
	code, stdout, _ := runCLI(t, "--format", "tsv", "graph", "src")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout, "kind\tnode\tlayer"))
	assert.Contains(t, stdout, "package\tnumpy")
}

func TestRun_HistoryAfterStoredRuns(t *testing.T) {
	setupProject(t)
	code, _, _ := runCLI(t, "--db", "imports", "src")
	require.Equal(t, 0, code)
	code, _, _ = runCLI(t, "--db", "packages", "src")
	require.Equal(t, 0, code)

	code, stdout, _ := runCLI(t, "history")
	require.Equal(t, 0, code)
	var trend struct {
		RunCount int `json:"run_count"`
		Points   []struct {
			EventCount  int `json:"event_count"`
			DeltaEvents int `json:"delta_events"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &trend))
	assert.Equal(t, 2, trend.RunCount)
	assert.Equal(t, 2, trend.Points[1].EventCount)
	assert.Equal(t, 0, trend.Points[1].DeltaEvents)
}

func TestRun_BuildMap(t *testing.T) {
	root := setupProject(t)
	index := httptest.NewServer(http.NotFoundHandler())
	defer index.Close()

	writeFile(t, filepath.Join(root, "pyimports.toml"), `
[indexer]
index_url = "`+index.URL+`"
`)
	writeFile(t, filepath.Join(root, "top.csv"), "mapped_to\nmissing-package\n")

	code, stdout, _ := runCLI(t, "build-map", "top.csv")
	require.Equal(t, 0, code)

	var summary map[string]int
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 1, summary["requested"])
	assert.Equal(t, 1, summary["failed"])
	assert.Equal(t, 1, summary["mapped_total"])

	data, err := os.ReadFile(filepath.Join(root, "pypi_importmap_errors.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "missing-package")
}

type staticHealth struct{ status string }

func (s staticHealth) Health(context.Context) app.HealthStatus {
	return app.HealthStatus{Status: s.status, Components: map[string]string{"extractor": "ok"}}
}

func TestObservabilityServer_Handler(t *testing.T) {
	srv := httptest.NewServer(NewObservabilityServer("", staticHealth{status: "up"}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var status app.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "up", status.Status)

	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)

	degraded := httptest.NewServer(NewObservabilityServer("", staticHealth{status: "degraded"}).Handler())
	defer degraded.Close()
	resp2, err := http.Get(degraded.URL + "/health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func TestObservabilityServer_StartStop(t *testing.T) {
	server := NewObservabilityServer("127.0.0.1:0", staticHealth{status: "up"})
	require.NoError(t, server.Start(context.Background()))
	require.NoError(t, server.Stop(context.Background()))

	bad := NewObservabilityServer("not-an-address", staticHealth{status: "up"})
	assert.Error(t, bad.Start(context.Background()))
}
