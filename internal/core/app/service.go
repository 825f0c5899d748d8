package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pyimports/internal/core/errors"
	"pyimports/internal/core/ports"
	"pyimports/internal/data/history"
	"pyimports/internal/data/importmap"
	"pyimports/internal/engine/graph"
	"pyimports/internal/engine/indexer"
	"pyimports/internal/engine/resolver"
	"pyimports/internal/shared/observability"
	"pyimports/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const historyListLimit = 50

// ExtractImports scans a file or directory. A file is scored against the
// configured project root or its own directory; a directory against the
// configured root or itself. Units that fail are reported as warnings and
// the remaining events are still returned.
func (s *Service) ExtractImports(ctx context.Context, req ports.ExtractRequest) (ports.ExtractResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "Service.ExtractImports")
	defer span.End()

	started := time.Now()
	result, err := s.extract(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ports.ExtractResult{}, err
	}
	span.SetAttributes(
		attribute.Int("units", result.Units),
		attribute.Int("events", len(result.Events)),
	)

	result.RunID = s.saveRun(ctx, history.Run{
		Command:    s.commandOr("imports"),
		Root:       req.Source,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Events:     result.Events,
	})
	return result, nil
}

func (s *Service) extract(ctx context.Context, req ports.ExtractRequest) (ports.ExtractResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.ExtractResult{}, err
	}
	files, err := s.ScanSources(req.Source)
	if err != nil {
		return ports.ExtractResult{}, err
	}

	projectRoot := s.paths.ProjectRoot
	if projectRoot == "" {
		if info, err := os.Stat(req.Source); err == nil && info.IsDir() {
			projectRoot = filepath.Clean(req.Source)
		}
	}

	units, err := s.extractFiles(ctx, files, projectRoot)
	if err != nil {
		return ports.ExtractResult{}, err
	}

	result := ports.ExtractResult{Units: len(files)}
	for i, unit := range units {
		if unit.err != nil {
			slog.Warn("failed to extract imports", "path", files[i], "error", unit.err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", files[i], unit.err))
			continue
		}
		result.Events = append(result.Events, unit.events...)
	}
	slog.Debug("extraction finished",
		"source", req.Source,
		"units", result.Units,
		"events", len(result.Events),
		"warnings", len(result.Warnings),
		"heap_mb", util.GetHeapAllocMB(),
	)
	return result, nil
}

// ResolvePackages extracts req.Source and attributes the events to packages.
func (s *Service) ResolvePackages(ctx context.Context, req ports.ExtractRequest) (ports.ResolveResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "Service.ResolvePackages")
	defer span.End()

	started := time.Now()
	res, err := s.resolve(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ports.ResolveResult{}, err
	}
	span.SetAttributes(attribute.Int("attributions", len(res.Attributions)))

	res.Extract.RunID = s.saveRun(ctx, history.Run{
		Command:      s.commandOr("packages"),
		Root:         req.Source,
		StartedAt:    started,
		FinishedAt:   time.Now(),
		Events:       res.Extract.Events,
		Attributions: res.Attributions,
	})
	return res, nil
}

func (s *Service) resolve(ctx context.Context, req ports.ExtractRequest) (ports.ResolveResult, error) {
	// Resolution tables load before scanning.
	r, err := s.packageResolver()
	if err != nil {
		return ports.ResolveResult{}, err
	}
	extracted, err := s.extract(ctx, req)
	if err != nil {
		return ports.ResolveResult{}, err
	}
	return ports.ResolveResult{
		Extract:      extracted,
		Attributions: r.Resolve(ctx, extracted.Events),
	}, nil
}

// BuildGraph resolves req.Source and analyses the file to package graph.
// Katz centrality failing to converge is reported in the result, not as an
// error.
func (s *Service) BuildGraph(ctx context.Context, req ports.ExtractRequest) (ports.GraphReport, error) {
	ctx, span := observability.Tracer.Start(ctx, "Service.BuildGraph")
	defer span.End()

	res, err := s.resolve(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ports.GraphReport{}, err
	}

	g := graph.FromAttributions(res.Attributions)
	inward, outward := g.BidirectionalOnionLayers()
	report := ports.GraphReport{
		Nodes:    g.NodeCount(),
		Edges:    g.EdgeCount(),
		HasCycle: g.HasCycle(),
		FanIn:    g.PackageFanIn(),
		Onion:    g.DirectedOnionLayers(),
		Inward:   inward,
		Outward:  outward,
	}
	if g.NodeCount() > 0 {
		katz, err := g.KatzCentrality(graph.KatzOptions{})
		if err != nil {
			slog.Warn("katz centrality failed", "error", err)
			report.KatzError = err.Error()
		} else {
			report.Katz = katz
		}
	}
	span.SetAttributes(attribute.Int("nodes", report.Nodes), attribute.Int("edges", report.Edges))
	return report, nil
}

// BuildImportMap reads package names from a CSV column and extends the
// configured import map with their import names.
func (s *Service) BuildImportMap(ctx context.Context, req ports.BuildMapRequest) (indexer.Summary, error) {
	ctx, span := observability.Tracer.Start(ctx, "Service.BuildImportMap")
	defer span.End()

	source := req.SourceCSV
	if source == "" {
		source = s.Config().Indexer.SourceCSV
	}
	if source == "" {
		return indexer.Summary{}, errors.New(errors.CodeValidationError, "a source CSV of package names is required")
	}
	column := req.Column
	if column == "" {
		column = s.Config().Indexer.Column
	}

	f, err := os.Open(source)
	if err != nil {
		return indexer.Summary{}, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "open package list"), errors.CtxPath, source)
	}
	names, err := importmap.ReadColumn(f, column)
	f.Close()
	if err != nil {
		return indexer.Summary{}, errors.AddContext(err, errors.CtxPath, source)
	}

	lookup, closeLookup := s.indexLookuper()
	defer closeLookup()

	builder := indexer.NewBuilder(lookup, indexer.BuilderOptions{
		MapPath:     s.paths.ImportMapPath,
		ErrorsPath:  s.paths.ErrorsPath,
		SaveEvery:   s.Config().Indexer.SaveEvery,
		RetryErrors: s.Config().Indexer.RetryErrors,
	})
	summary, err := builder.Run(ctx, names)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return summary, err
}

// History lists the newest stored runs with run-over-run deltas.
func (s *Service) History(ctx context.Context, limit int) (history.TrendReport, error) {
	if s.store == nil {
		return history.TrendReport{}, errors.New(errors.CodeNotSupported, "run history is disabled; enable [db] or pass --db")
	}
	if limit <= 0 {
		limit = historyListLimit
	}
	runs, err := s.store.ListRuns(ctx, s.Config().DB.ProjectKey, limit)
	if err != nil {
		return history.TrendReport{}, err
	}
	return history.BuildTrendReport(s.Config().DB.ProjectKey, runs), nil
}

// saveRun persists run when a store is configured. Failing to save is
// logged; the analysis result is still returned.
func (s *Service) saveRun(ctx context.Context, run history.Run) string {
	if s.store == nil {
		return ""
	}
	run.ProjectKey = s.Config().DB.ProjectKey
	id, err := s.store.SaveRun(ctx, run)
	if err != nil {
		slog.Warn("failed to save run", "error", err)
		return ""
	}
	return id
}

func (s *Service) commandOr(fallback string) string {
	if s.command != "" {
		return s.command
	}
	return fallback
}

var _ ports.PackageResolver = (*resolver.Resolver)(nil)
