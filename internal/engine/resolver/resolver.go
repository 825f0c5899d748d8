// Package resolver attributes import events to the distribution packages
// that provide them.
package resolver

import (
	"context"

	"pyimports/internal/engine/parser"
	"pyimports/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
)

type Mode string

const (
	ModeBuiltin   Mode = "builtin_module_names"
	ModeMap       Mode = "pypi_map"
	ModeHeuristic Mode = "pypi_heuristic"
	ModeUnknown   Mode = "unknown"
)

const (
	PackageBuiltin = "<builtin>"
	PackageUnknown = "<unknown>"

	FromTypeImport = "import"
)

// Attribution links one import of one file to a package.
type Attribution struct {
	Name       string          `json:"name"`
	Filename   string          `json:"filename"`
	FileType   parser.FileType `json:"filetype"`
	FromType   string          `json:"fromtype"`
	Mode       Mode            `json:"mode"`
	ImportName string          `json:"importname"`
}

type Resolver struct {
	cfg *Config
}

func NewResolver(cfg *Config) *Resolver {
	return &Resolver{cfg: cfg}
}

func (r *Resolver) Config() *Config {
	return r.cfg
}

// Resolve attributes events in order. Events whose locality score reaches
// the import cut are treated as local and dropped. Every remaining event
// yields at least one record.
func (r *Resolver) Resolve(ctx context.Context, events []parser.ImportEvent) []Attribution {
	_, span := observability.Tracer.Start(ctx, "Resolver.Resolve")
	defer span.End()

	var out []Attribution
	skipped := 0
	for _, ev := range events {
		if ev.Local >= r.cfg.ImportCut {
			skipped++
			continue
		}
		out = append(out, r.resolveEvent(ev)...)
	}

	span.SetAttributes(
		attribute.Int("events", len(events)),
		attribute.Int("skipped_local", skipped),
		attribute.Int("attributions", len(out)),
	)
	return out
}

func (r *Resolver) resolveEvent(ev parser.ImportEvent) []Attribution {
	if IsStdlib(ev.Name) {
		return []Attribution{r.record(ev, PackageBuiltin, ModeBuiltin)}
	}
	if pkgs := r.lookup(ev.Name, r.cfg.Candidates); len(pkgs) > 0 {
		return r.records(ev, pkgs, ModeMap)
	}
	if pkgs := r.lookup(ev.Name, r.cfg.HeuristicCandidates); len(pkgs) > 0 {
		return r.records(ev, pkgs, ModeHeuristic)
	}
	return []Attribution{r.record(ev, PackageUnknown, ModeUnknown)}
}

// lookup tries the full dotted name, then its top-level package. The
// top-level retry extends exact-name matching so that "sklearn.svm" finds the
// package that ships "sklearn"; an exact hit always wins.
func (r *Resolver) lookup(name string, find func(string) []string) []string {
	if pkgs := find(name); len(pkgs) > 0 {
		return pkgs
	}
	if top := topLevel(name); top != "" && top != name {
		return find(top)
	}
	return nil
}

func (r *Resolver) records(ev parser.ImportEvent, pkgs []string, mode Mode) []Attribution {
	out := make([]Attribution, 0, len(pkgs))
	for _, pkg := range pkgs {
		out = append(out, r.record(ev, pkg, mode))
	}
	return out
}

func (r *Resolver) record(ev parser.ImportEvent, pkg string, mode Mode) Attribution {
	observability.AttributionsTotal.WithLabelValues(string(mode)).Inc()
	return Attribution{
		Name:       pkg,
		Filename:   ev.Filename,
		FileType:   ev.FileType,
		FromType:   FromTypeImport,
		Mode:       mode,
		ImportName: ev.Name,
	}
}
