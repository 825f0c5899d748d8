package ports

import (
	"context"

	"pyimports/internal/data/history"
	"pyimports/internal/engine/graph"
	"pyimports/internal/engine/indexer"
	"pyimports/internal/engine/parser"
	"pyimports/internal/engine/resolver"
)

// ImportExtractor abstracts per-unit import extraction.
type ImportExtractor interface {
	Extract(unit parser.SourceUnit, projectRoot string) ([]parser.ImportEvent, error)
	ExtractFile(path, projectRoot string) ([]parser.ImportEvent, error)
}

// PackageResolver abstracts attribution of import events to packages.
type PackageResolver interface {
	Resolve(ctx context.Context, events []parser.ImportEvent) []resolver.Attribution
}

// RunStore abstracts run persistence for history and trend workflows.
type RunStore interface {
	SaveRun(ctx context.Context, run history.Run) (string, error)
	ListRuns(ctx context.Context, projectKey string, limit int) ([]history.RunSummary, error)
	LoadRecords(ctx context.Context, runID string) (history.Run, error)
	Close() error
}

// ExtractRequest names a script, notebook or directory to scan.
type ExtractRequest struct {
	Source string
}

// ExtractResult holds events in walk order plus per-unit failures.
type ExtractResult struct {
	Events   []parser.ImportEvent `json:"events"`
	Units    int                  `json:"units"`
	Warnings []string             `json:"warnings,omitempty"`
	RunID    string               `json:"run_id,omitempty"`
}

// ResolveResult pairs attributions with the extraction they came from.
type ResolveResult struct {
	Extract      ExtractResult          `json:"extract"`
	Attributions []resolver.Attribution `json:"attributions"`
}

// GraphReport summarizes the file to package dependency graph.
type GraphReport struct {
	Nodes     int                `json:"nodes"`
	Edges     int                `json:"edges"`
	HasCycle  bool               `json:"has_cycle"`
	FanIn     map[string]int     `json:"package_fan_in"`
	Onion     []graph.Layer      `json:"onion_layers"`
	Inward    []graph.Layer      `json:"inward_layers"`
	Outward   []graph.Layer      `json:"outward_layers"`
	Katz      []graph.Centrality `json:"katz,omitempty"`
	KatzError string             `json:"katz_error,omitempty"`
}

// BuildMapRequest drives the offline import map builder.
type BuildMapRequest struct {
	SourceCSV string
	Column    string
}

// AnalysisService is the driving port used by the CLI.
type AnalysisService interface {
	ExtractImports(ctx context.Context, req ExtractRequest) (ExtractResult, error)
	ResolvePackages(ctx context.Context, req ExtractRequest) (ResolveResult, error)
	BuildGraph(ctx context.Context, req ExtractRequest) (GraphReport, error)
	BuildImportMap(ctx context.Context, req BuildMapRequest) (indexer.Summary, error)
	History(ctx context.Context, limit int) (history.TrendReport, error)
	Close() error
}
