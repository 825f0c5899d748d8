// Package config loads pyimports.toml.
package config

import (
	"time"
)

const (
	DefaultPath = "pyimports.toml"

	StrategyMostDownloaded = "mostdownloaded"
	StrategyAll            = "all"

	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatTSV  = "tsv"

	// ProjectRootAuto walks up from the source to the nearest project marker.
	ProjectRootAuto = "auto"

	MaxImportCut = 5
)

type Config struct {
	Resolution    Resolution    `toml:"resolution"`
	Scan          Scan          `toml:"scan"`
	Output        Output        `toml:"output"`
	DB            Database      `toml:"db"`
	Watch         Watch         `toml:"watch"`
	Indexer       Indexer       `toml:"indexer"`
	Observability Observability `toml:"observability"`
}

type Resolution struct {
	// ImportCut drops events whose locality score is at or above it. Nil
	// means unset so an explicit 0 survives defaulting.
	ImportCut *int   `toml:"import_cut"`
	Strategy  string `toml:"strategy"`
	ImportMap string `toml:"import_map"`
	Downloads string `toml:"downloads"`
}

type Scan struct {
	CheckpointMarker string   `toml:"checkpoint_marker"`
	ExcludeDirs      []string `toml:"exclude_dirs"`
	ExcludeFiles     []string `toml:"exclude_files"`
	ProjectRoot      string   `toml:"project_root"`
	Workers          int      `toml:"workers"`
}

type Output struct {
	Format  string `toml:"format"`
	Summary bool   `toml:"summary"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	ProjectKey  string        `toml:"project_key"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Indexer struct {
	SourceCSV         string  `toml:"source_csv"`
	Column            string  `toml:"column"`
	IndexURL          string  `toml:"index_url"`
	SaveEvery         int     `toml:"save_every"`
	RetryErrors       bool    `toml:"retry_errors"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	ErrorsPath        string  `toml:"errors_path"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled"`
	Address       string `toml:"address"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing"`
}

// Cut returns the configured cut, or 1 when unset.
func (r Resolution) Cut() int {
	if r.ImportCut == nil {
		return 1
	}
	return *r.ImportCut
}
