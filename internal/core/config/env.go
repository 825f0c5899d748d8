package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "PYIMPORTS_"

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: PYIMPORTS_[SECTION]_[KEY] (e.g., PYIMPORTS_RESOLUTION_STRATEGY).
func ApplyEnvOverrides(cfg *Config) {
	// Resolution
	if val, ok := lookupEnv("RESOLUTION_IMPORT_CUT"); ok {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Resolution.ImportCut = &i
		}
	}
	setEnvString(&cfg.Resolution.Strategy, "RESOLUTION_STRATEGY")
	setEnvString(&cfg.Resolution.ImportMap, "RESOLUTION_IMPORT_MAP")
	setEnvString(&cfg.Resolution.Downloads, "RESOLUTION_DOWNLOADS")

	// Scan
	setEnvString(&cfg.Scan.CheckpointMarker, "SCAN_CHECKPOINT_MARKER")
	setEnvList(&cfg.Scan.ExcludeDirs, "SCAN_EXCLUDE_DIRS")
	setEnvList(&cfg.Scan.ExcludeFiles, "SCAN_EXCLUDE_FILES")
	setEnvString(&cfg.Scan.ProjectRoot, "SCAN_PROJECT_ROOT")
	setEnvInt(&cfg.Scan.Workers, "SCAN_WORKERS")

	// Output
	setEnvString(&cfg.Output.Format, "OUTPUT_FORMAT")
	setEnvBool(&cfg.Output.Summary, "OUTPUT_SUMMARY")

	// Database
	setEnvBool(&cfg.DB.Enabled, "DB_ENABLED")
	setEnvString(&cfg.DB.Path, "DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "DB_BUSY_TIMEOUT")
	setEnvString(&cfg.DB.ProjectKey, "DB_PROJECT_KEY")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "WATCH_DEBOUNCE")

	// Indexer
	setEnvString(&cfg.Indexer.SourceCSV, "INDEXER_SOURCE_CSV")
	setEnvString(&cfg.Indexer.Column, "INDEXER_COLUMN")
	setEnvString(&cfg.Indexer.IndexURL, "INDEXER_INDEX_URL")
	setEnvInt(&cfg.Indexer.SaveEvery, "INDEXER_SAVE_EVERY")
	setEnvBool(&cfg.Indexer.RetryErrors, "INDEXER_RETRY_ERRORS")
	setEnvFloat64(&cfg.Indexer.RequestsPerSecond, "INDEXER_REQUESTS_PER_SECOND")
	setEnvString(&cfg.Indexer.ErrorsPath, "INDEXER_ERRORS_PATH")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.Address, "OBSERVABILITY_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "OBSERVABILITY_ENABLE_TRACING")
}

func lookupEnv(key string) (string, bool) {
	val, ok := os.LookupEnv(envPrefix + key)
	if ok {
		slog.Debug("applying env override", "key", envPrefix+key, "value", val)
	}
	return val, ok
}

func setEnvString(target *string, key string) {
	if val, ok := lookupEnv(key); ok {
		*target = val
	}
}

// setEnvList splits a comma separated value.
func setEnvList(target *[]string, key string) {
	if val, ok := lookupEnv(key); ok {
		var items []string
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*target = items
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := lookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := lookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := lookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := lookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*target = d
		}
	}
}
