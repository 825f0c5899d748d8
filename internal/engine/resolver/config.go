package resolver

import (
	"fmt"
	"log/slog"
	"strings"

	"pyimports/internal/core/errors"
	"pyimports/internal/data/importmap"
)

const DefaultImportCut = 1

// Options selects the tables and policy a Config is built from.
type Options struct {
	ImportCut     int
	Strategy      Strategy
	ImportMapPath string
	// DownloadsPath is optional. Without it every package has a download
	// count of zero and the heuristic map stays empty.
	DownloadsPath string
}

// Config holds the lookup tables of one resolution run. It is read-only once
// built and safe for concurrent use.
type Config struct {
	ImportCut int
	Strategy  Strategy

	downloads map[string]int64
	inverse   *candidateTable
	heuristic *candidateTable
}

// LoadConfig reads the import map and, when configured, the downloads table.
// Failing to read either table is fatal.
func LoadConfig(opts Options) (*Config, error) {
	table, err := importmap.LoadImportMap(opts.ImportMapPath)
	if err != nil {
		return nil, err
	}

	var downloads []importmap.Download
	if strings.TrimSpace(opts.DownloadsPath) != "" {
		downloads, err = importmap.LoadDownloads(opts.DownloadsPath)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := NewConfig(opts.ImportCut, opts.Strategy, table, downloads)
	if err != nil {
		return nil, err
	}
	slog.Debug("resolution tables loaded",
		"import_map", opts.ImportMapPath,
		"packages", table.Len(),
		"modules", cfg.inverse.size(),
		"downloads", len(downloads),
		"strategy", cfg.Strategy,
	)
	return cfg, nil
}

// NewConfig builds the inverse and heuristic maps. Packages are inserted in
// table order, so under StrategyMostDownloaded a tie keeps whichever package
// came first.
func NewConfig(importCut int, strategy Strategy, table *importmap.ImportMap, downloads []importmap.Download) (*Config, error) {
	strategy, err := ParseStrategy(string(strategy))
	if err != nil {
		return nil, err
	}
	if importCut < 0 {
		return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("import cut must not be negative, got %d", importCut))
	}
	if table == nil {
		table = importmap.New()
	}

	counts := make(map[string]int64, len(downloads))
	for _, d := range downloads {
		counts[d.Package] = d.Count
	}

	cfg := &Config{
		ImportCut: importCut,
		Strategy:  strategy,
		downloads: counts,
		inverse:   newCandidateTable(strategy, counts),
		heuristic: newCandidateTable(strategy, counts),
	}

	for _, d := range downloads {
		cfg.heuristic.insert(strings.ToLower(d.Package), d.Package)
	}
	for _, entry := range table.Entries() {
		for _, module := range entry.Modules {
			cfg.inverse.insert(module, entry.Package)
		}
	}
	return cfg, nil
}

// Downloads returns the recorded download count of pkg.
func (c *Config) Downloads(pkg string) int64 {
	return c.downloads[pkg]
}

// Candidates returns the packages the inverse map lists for module.
func (c *Config) Candidates(module string) []string {
	return c.inverse.lookup(module)
}

// HeuristicCandidates returns the packages whose lowercased name equals the
// lowercased module name.
func (c *Config) HeuristicCandidates(module string) []string {
	return c.heuristic.lookup(strings.ToLower(module))
}
