package config

import (
	stderrors "errors"
	"os"
	"runtime"
	"strings"
	"time"

	"pyimports/internal/core/errors"

	"github.com/BurntSushi/toml"
)

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load decodes the TOML file at path, applies environment overrides and
// defaults, then validates. A missing file at DefaultPath is not an error
// and yields the built-in configuration.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "decode config"), errors.CtxPath, path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, errors.AddContext(
				errors.New(errors.CodeValidationError, "unknown config keys: "+strings.Join(keys, ", ")),
				errors.CtxPath, path,
			)
		}
	case os.IsNotExist(err) && path == DefaultPath:
	case os.IsNotExist(err):
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "config file not found"), errors.CtxPath, path)
	default:
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "read config"), errors.CtxPath, path)
	}

	ApplyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.Wrap(stderrors.Join(errs...), errors.CodeValidationError, "invalid config")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Resolution.ImportCut == nil {
		cut := 1
		cfg.Resolution.ImportCut = &cut
	}
	if strings.TrimSpace(cfg.Resolution.Strategy) == "" {
		cfg.Resolution.Strategy = StrategyMostDownloaded
	}
	if strings.TrimSpace(cfg.Resolution.ImportMap) == "" {
		cfg.Resolution.ImportMap = "pypi_importmap.json"
	}

	if strings.TrimSpace(cfg.Scan.CheckpointMarker) == "" {
		cfg.Scan.CheckpointMarker = ".ipynb_checkpoints"
	}
	if cfg.Scan.Workers <= 0 {
		cfg.Scan.Workers = runtime.GOMAXPROCS(0)
	}

	if strings.TrimSpace(cfg.Output.Format) == "" {
		cfg.Output.Format = FormatJSON
	}
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "pyimports.db"
	}
	if cfg.DB.BusyTimeout == 0 {
		cfg.DB.BusyTimeout = 2 * time.Second
	}
	if strings.TrimSpace(cfg.DB.ProjectKey) == "" {
		cfg.DB.ProjectKey = "default"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}

	if strings.TrimSpace(cfg.Indexer.Column) == "" {
		cfg.Indexer.Column = "mapped_to"
	}
	if strings.TrimSpace(cfg.Indexer.IndexURL) == "" {
		cfg.Indexer.IndexURL = "https://pypi.org/pypi"
	}
	if cfg.Indexer.SaveEvery == 0 {
		cfg.Indexer.SaveEvery = 100
	}
	if strings.TrimSpace(cfg.Indexer.ErrorsPath) == "" {
		cfg.Indexer.ErrorsPath = "pypi_importmap_errors.json"
	}

	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9464"
	}
}
