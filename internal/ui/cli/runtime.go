package cli

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreapp "pyimports/internal/core/app"
	"pyimports/internal/core/config"
	"pyimports/internal/core/ports"
	"pyimports/internal/shared/observability"
	"pyimports/internal/ui/report"
)

// Run executes the CLI and returns the process exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr, coreServiceFactory{})
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, factory serviceFactory) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "pyimports v%s\n", versionString)
		return 0
	}

	configureLogging(stderr, opts.verbose)

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to detect working directory", "error", err)
		return 1
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "path", opts.configPath, "error", err)
		return 1
	}
	if err := applyOverrides(opts, cfg); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	paths, err := config.ResolvePaths(cfg, cwd, opts.source)
	if err != nil {
		slog.Error("failed to resolve runtime paths", "error", err)
		return 1
	}

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint)
		if err != nil {
			slog.Error("failed to initialise tracing", "error", err)
			return 1
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				slog.Warn("failed to flush traces", "error", err)
			}
		}()
	}

	svc, err := initializeService(cfg, paths, factory)
	if err != nil {
		slog.Error("failed to initialise service", "error", err)
		return 1
	}
	defer svc.Close()
	svc.WithCommand(opts.command)

	if !opts.watch {
		if err := runCommand(ctx, svc, opts, stdout, stderr); err != nil {
			slog.Error("command failed", "command", opts.command, "error", err)
			return 1
		}
		return 0
	}

	if cfg.Observability.Enabled {
		server := NewObservabilityServer(cfg.Observability.Address, svc)
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	if _, statErr := os.Stat(opts.configPath); statErr == nil {
		cw := config.NewWatcher(opts.configPath, func(next *config.Config) {
			if err := applyOverrides(opts, next); err != nil {
				slog.Error("reloaded config rejected", "path", opts.configPath, "error", err)
				return
			}
			if err := svc.Reconfigure(next); err != nil {
				slog.Error("failed to apply reloaded config", "error", err)
			}
		})
		if err := cw.Start(ctx); err != nil {
			slog.Warn("config reload disabled", "path", opts.configPath, "error", err)
		} else {
			defer cw.Stop()
		}
	}

	err = svc.Watch(ctx, opts.source, func(ctx context.Context, changed []string) {
		if len(changed) > 0 {
			slog.Debug("re-running after change", "paths", changed)
		}
		if err := runCommand(ctx, svc, opts, stdout, stderr); err != nil {
			slog.Error("command failed", "command", opts.command, "error", err)
		}
	})
	if err != nil {
		slog.Error("watch failed", "error", err)
		return 1
	}
	return 0
}

// runCommand runs one command and writes its result to stdout. Partial
// extraction results are written even when some units failed.
func runCommand(ctx context.Context, svc *coreapp.Service, opts cliOptions, stdout, stderr io.Writer) error {
	cfg := svc.Config()
	format := cfg.Output.Format
	req := ports.ExtractRequest{Source: opts.source}

	switch opts.command {
	case cmdImports:
		res, err := svc.ExtractImports(ctx, req)
		if err != nil {
			return err
		}
		if err := report.WriteEvents(stdout, res.Events, format); err != nil {
			return err
		}
		if cfg.Output.Summary {
			fmt.Fprintln(stderr, report.RenderSummary(res, nil))
		}

	case cmdPackages:
		res, err := svc.ResolvePackages(ctx, req)
		if err != nil {
			return err
		}
		if err := report.WriteAttributions(stdout, res.Attributions, format); err != nil {
			return err
		}
		if cfg.Output.Summary {
			fmt.Fprintln(stderr, report.RenderSummary(res.Extract, res.Attributions))
		}

	case cmdGraph:
		rep, err := svc.BuildGraph(ctx, req)
		if err != nil {
			return err
		}
		return report.WriteGraph(stdout, rep, format)

	case cmdBuildMap:
		summary, err := svc.BuildImportMap(ctx, ports.BuildMapRequest{
			SourceCSV: opts.source,
			Column:    cfg.Indexer.Column,
		})
		if err != nil {
			return err
		}
		return report.WriteJSON(stdout, summary)

	case cmdHistory:
		trend, err := svc.History(ctx, opts.limit)
		if err != nil {
			return err
		}
		return report.WriteTrend(stdout, trend, format)

	default:
		return fmt.Errorf("unknown command %q", opts.command)
	}
	return nil
}

// configureLogging sends logs to w so stdout carries only results.
func configureLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
