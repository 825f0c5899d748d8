package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"pyimports/internal/core/config"
)

const versionString = "1.0.0"

const (
	cmdImports  = "imports"
	cmdPackages = "packages"
	cmdGraph    = "graph"
	cmdBuildMap = "build-map"
	cmdHistory  = "history"
)

const usageText = `usage: pyimports [flags] <command> [source]

commands:
  imports    <file|dir>   list import events
  packages   <file|dir>   attribute imports to distribution packages
  graph      <file|dir>   file to package graph with onion layers and Katz centrality
  build-map  [csv]        extend the import map from a package index
  history                 list stored runs with deltas

flags:
`

type cliOptions struct {
	configPath  string
	csv         bool
	format      string
	projectRoot string
	cut         int
	strategy    string
	importMap   string
	downloads   string
	column      string
	retryErrors bool
	watch       bool
	summary     bool
	db          bool
	limit       int
	verbose     bool
	version     bool

	command string
	source  string
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("pyimports", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", config.DefaultPath, "Path to config file")
	fs.BoolVar(&opts.csv, "csv", false, "Output result as CSV")
	fs.StringVar(&opts.format, "format", "", "Output format: json, csv or tsv")
	fs.StringVar(&opts.projectRoot, "project-root", "", `Project root for locality scoring ("auto" to detect)`)
	fs.IntVar(&opts.cut, "cut", -1, "Import cut: imports with locality at or above it are not attributed")
	fs.StringVar(&opts.strategy, "strategy", "", "Resolution strategy: mostdownloaded or all")
	fs.StringVar(&opts.importMap, "import-map", "", "Path to the package to import-names map")
	fs.StringVar(&opts.downloads, "downloads", "", "Path to the package downloads CSV")
	fs.StringVar(&opts.column, "column", "", "CSV column holding package names (build-map)")
	fs.BoolVar(&opts.retryErrors, "retry-errors", false, "Retry packages recorded as failures (build-map)")
	fs.BoolVar(&opts.watch, "watch", false, "Re-run on script and notebook changes")
	fs.BoolVar(&opts.summary, "summary", false, "Print a summary to stderr")
	fs.BoolVar(&opts.db, "db", false, "Store runs in the history database")
	fs.IntVar(&opts.limit, "limit", 0, "Maximum runs listed by history")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if opts.version {
		return opts, nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return cliOptions{}, fmt.Errorf("a command is required")
	}
	opts.command = rest[0]
	if len(rest) > 1 {
		opts.source = rest[1]
	}
	if len(rest) > 2 {
		return cliOptions{}, fmt.Errorf("unexpected arguments: %s", strings.Join(rest[2:], " "))
	}

	switch opts.command {
	case cmdImports, cmdPackages, cmdGraph:
		if opts.source == "" {
			return cliOptions{}, fmt.Errorf("%s requires a source file or directory", opts.command)
		}
	case cmdBuildMap:
		if opts.watch {
			return cliOptions{}, fmt.Errorf("--watch cannot be combined with %s", opts.command)
		}
	case cmdHistory:
		if opts.watch {
			return cliOptions{}, fmt.Errorf("--watch cannot be combined with %s", opts.command)
		}
		if opts.source != "" {
			return cliOptions{}, fmt.Errorf("history takes no source argument")
		}
	default:
		return cliOptions{}, fmt.Errorf("unknown command %q", opts.command)
	}

	if opts.csv && opts.format != "" && !strings.EqualFold(opts.format, config.FormatCSV) {
		return cliOptions{}, fmt.Errorf("--csv cannot be combined with --format %s", opts.format)
	}
	return opts, nil
}

// applyOverrides copies explicit flags onto cfg and revalidates it.
func applyOverrides(opts cliOptions, cfg *config.Config) error {
	if opts.csv {
		cfg.Output.Format = config.FormatCSV
	}
	if opts.format != "" {
		cfg.Output.Format = strings.ToLower(strings.TrimSpace(opts.format))
	}
	if opts.projectRoot != "" {
		cfg.Scan.ProjectRoot = opts.projectRoot
	}
	if opts.cut >= 0 {
		cut := opts.cut
		cfg.Resolution.ImportCut = &cut
	}
	if opts.strategy != "" {
		cfg.Resolution.Strategy = strings.ToLower(strings.TrimSpace(opts.strategy))
	}
	if opts.importMap != "" {
		cfg.Resolution.ImportMap = opts.importMap
	}
	if opts.downloads != "" {
		cfg.Resolution.Downloads = opts.downloads
	}
	if opts.column != "" {
		cfg.Indexer.Column = opts.column
	}
	if opts.retryErrors {
		cfg.Indexer.RetryErrors = true
	}
	if opts.summary {
		cfg.Output.Summary = true
	}
	if opts.db || opts.command == cmdHistory {
		cfg.DB.Enabled = true
	}

	var problems []string
	for _, err := range config.Validate(cfg) {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid options: %s", strings.Join(problems, "; "))
	}
	return nil
}
