package config

import (
	stderrors "errors"
	"fmt"
	"net"
	"strings"

	"pyimports/internal/core/config/helpers"

	"github.com/gobwas/glob"
)

// Validate checks every section and returns all problems found.
func Validate(cfg *Config) []error {
	var errs []error
	for _, check := range []func(*Config) error{
		validateResolution,
		validateScan,
		validateOutput,
		validateDatabase,
		validateIndexer,
		validateObservability,
	} {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateResolution(cfg *Config) error {
	var errs []error
	cut := cfg.Resolution.Cut()
	if cut < 0 || cut > MaxImportCut {
		errs = append(errs, fmt.Errorf("resolution.import_cut must be between 0 and %d, got %d", MaxImportCut, cut))
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Resolution.Strategy)) {
	case StrategyMostDownloaded, StrategyAll:
	default:
		errs = append(errs, fmt.Errorf("resolution.strategy must be one of: %s, %s", StrategyMostDownloaded, StrategyAll))
	}
	return stderrors.Join(errs...)
}

func validateScan(cfg *Config) error {
	var errs []error
	if strings.ContainsAny(cfg.Scan.CheckpointMarker, `/\`) {
		errs = append(errs, fmt.Errorf("scan.checkpoint_marker must be a single path segment, got %q", cfg.Scan.CheckpointMarker))
	}
	errs = append(errs,
		validateGlobs("scan.exclude_dirs", cfg.Scan.ExcludeDirs),
		validateGlobs("scan.exclude_files", cfg.Scan.ExcludeFiles),
	)
	return stderrors.Join(errs...)
}

func validateGlobs(field string, patterns []string) error {
	seen := make(map[string]bool, len(patterns))
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("%s must not contain empty patterns", field)
		}
		if seen[pattern] {
			return fmt.Errorf("%s contains duplicate pattern %q", field, pattern)
		}
		seen[pattern] = true
		if !helpers.HasWildcard(pattern) {
			continue
		}
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("%s pattern %q is invalid: %w", field, pattern, err)
		}
	}
	return nil
}

func validateOutput(cfg *Config) error {
	switch cfg.Output.Format {
	case FormatJSON, FormatCSV, FormatTSV:
		return nil
	}
	return fmt.Errorf("output.format must be one of: %s, %s, %s", FormatJSON, FormatCSV, FormatTSV)
}

func validateDatabase(cfg *Config) error {
	if !cfg.DB.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	if cfg.DB.BusyTimeout < 0 {
		return fmt.Errorf("db.busy_timeout must be >= 0")
	}
	return nil
}

func validateIndexer(cfg *Config) error {
	if cfg.Indexer.SaveEvery <= 0 {
		return fmt.Errorf("indexer.save_every must be > 0, got %d", cfg.Indexer.SaveEvery)
	}
	if cfg.Indexer.RequestsPerSecond < 0 {
		return fmt.Errorf("indexer.requests_per_second must be >= 0")
	}
	url := strings.TrimSpace(cfg.Indexer.IndexURL)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("indexer.index_url must be an http(s) URL, got %q", cfg.Indexer.IndexURL)
	}
	resolved := ResolveRelative(".", cfg.Resolution.ImportMap)
	if helpers.IsPathOverlap(resolved, ResolveRelative(".", cfg.Indexer.ErrorsPath)) {
		return fmt.Errorf("indexer.errors_path must differ from resolution.import_map")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if !cfg.Observability.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Observability.Address); err != nil {
		return fmt.Errorf("observability.address %q is invalid: %w", cfg.Observability.Address, err)
	}
	return nil
}
