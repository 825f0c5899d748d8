package indexer

import (
	"context"
	"log/slog"

	"pyimports/internal/core/errors"
	"pyimports/internal/data/importmap"
	"pyimports/internal/shared/observability"
	"pyimports/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
)

const DefaultSaveEvery = 100

type BuilderOptions struct {
	MapPath    string
	ErrorsPath string
	// SaveEvery checkpoints both files after this many lookups.
	SaveEvery int
	// RetryErrors looks up names recorded as failures by earlier runs.
	RetryErrors bool
}

// Summary counts what one Run did.
type Summary struct {
	Requested int `json:"requested"`
	Skipped   int `json:"skipped"`
	Looked    int `json:"looked_up"`
	Added     int `json:"added"`
	Failed    int `json:"failed"`
	Mapped    int `json:"mapped_total"`
	Errors    int `json:"errors_total"`
}

// Builder extends a persisted import map one package at a time. Runs are
// resumable: mapped names and known failures are skipped, and progress is
// checkpointed periodically.
type Builder struct {
	lookup Lookuper
	opts   BuilderOptions
}

func NewBuilder(lookup Lookuper, opts BuilderOptions) *Builder {
	if opts.SaveEvery <= 0 {
		opts.SaveEvery = DefaultSaveEvery
	}
	return &Builder{lookup: lookup, opts: opts}
}

// Run looks up every name not yet mapped. Cancelling ctx stops the run after
// a final checkpoint and returns the context error.
func (b *Builder) Run(ctx context.Context, names []string) (Summary, error) {
	ctx, span := observability.Tracer.Start(ctx, "Indexer.Run")
	defer span.End()

	m, err := importmap.LoadImportMap(b.opts.MapPath)
	if errors.IsCode(err, errors.CodeNotFound) {
		m, err = importmap.New(), nil
	}
	if err != nil {
		return Summary{}, err
	}
	failed, err := importmap.LoadErrors(b.opts.ErrorsPath)
	if err != nil {
		return Summary{}, err
	}
	failures := make(map[string]bool, len(failed))
	for _, name := range failed {
		failures[name] = true
	}

	summary := Summary{Requested: len(names)}
	checkpoint := func() error {
		summary.Mapped = m.Len()
		summary.Errors = len(failures)
		if err := importmap.SaveImportMap(b.opts.MapPath, m); err != nil {
			return err
		}
		if err := importmap.SaveErrors(b.opts.ErrorsPath, util.SortedStringKeys(failures)); err != nil {
			return err
		}
		slog.Info("import map checkpoint", "mapped", summary.Mapped, "errors", summary.Errors, "looked_up", summary.Looked)
		return nil
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			if cerr := checkpoint(); cerr != nil {
				return summary, cerr
			}
			return summary, err
		}

		if m.Has(name) {
			summary.Skipped++
			continue
		}
		if failures[name] {
			if !b.opts.RetryErrors {
				summary.Skipped++
				continue
			}
			delete(failures, name)
		}

		res := b.lookup.Lookup(ctx, name)
		if !res.OK() && ctx.Err() != nil {
			// Interrupted lookups are not failures of the package.
			if cerr := checkpoint(); cerr != nil {
				return summary, cerr
			}
			return summary, ctx.Err()
		}
		if res.OK() {
			m.Set(name, res.Modules)
			summary.Added++
		} else {
			failures[name] = true
			summary.Failed++
			slog.Warn("package lookup failed", "package", name, "error", res.Err)
		}
		summary.Looked++

		if summary.Looked%b.opts.SaveEvery == 0 {
			if err := checkpoint(); err != nil {
				return summary, err
			}
		}
	}

	if err := checkpoint(); err != nil {
		return summary, err
	}
	span.SetAttributes(
		attribute.Int("looked_up", summary.Looked),
		attribute.Int("added", summary.Added),
		attribute.Int("failed", summary.Failed),
	)
	return summary, nil
}
