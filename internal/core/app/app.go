// Package app wires extraction, resolution and persistence behind the
// AnalysisService port.
package app

import (
	"strings"
	"sync"

	"pyimports/internal/core/config"
	"pyimports/internal/core/errors"
	"pyimports/internal/core/ports"
	"pyimports/internal/data/history"
	"pyimports/internal/engine/indexer"
	"pyimports/internal/engine/parser"
	"pyimports/internal/engine/resolver"
)

// Service implements ports.AnalysisService.
type Service struct {
	cfgMu sync.RWMutex
	cfg   *config.Config
	paths config.ResolvedPaths

	extractor ports.ImportExtractor
	store     ports.RunStore
	lookup    indexer.Lookuper
	command   string

	resolverMu    sync.Mutex
	resolver      ports.PackageResolver
	fixedResolver bool
}

var _ ports.AnalysisService = (*Service)(nil)

type Option func(*Service)

func WithExtractor(e ports.ImportExtractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithResolver skips loading resolution tables from disk.
func WithResolver(r ports.PackageResolver) Option {
	return func(s *Service) {
		s.resolver = r
		s.fixedResolver = r != nil
	}
}

func WithStore(store ports.RunStore) Option {
	return func(s *Service) { s.store = store }
}

func WithLookuper(l indexer.Lookuper) Option {
	return func(s *Service) { s.lookup = l }
}

// New builds a Service. The run store is opened when history is enabled in
// cfg and none was supplied. Resolution tables load on first use.
func New(cfg *config.Config, paths config.ResolvedPaths, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "config is required")
	}
	s := &Service{cfg: cfg, paths: paths}
	for _, opt := range opts {
		opt(s)
	}
	if s.extractor == nil {
		s.extractor = parser.NewExtractor(nil)
	}
	if s.store == nil && cfg.DB.Enabled {
		store, err := history.Open(paths.DBPath, cfg.DB.BusyTimeout)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxOperation, "open_history")
		}
		s.store = history.NewAdapter(store)
	}
	return s, nil
}

// WithCommand labels runs persisted by subsequent calls.
func (s *Service) WithCommand(command string) *Service {
	s.command = command
	return s
}

func (s *Service) Config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// Reconfigure swaps the active config. Resolution tables are reloaded on
// next use unless a resolver was injected. Scan settings already bound to a
// running Watch keep their old values.
func (s *Service) Reconfigure(cfg *config.Config) error {
	if cfg == nil {
		return errors.New(errors.CodeValidationError, "config is required")
	}
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()

	s.resolverMu.Lock()
	if !s.fixedResolver {
		s.resolver = nil
	}
	s.resolverMu.Unlock()
	return nil
}

func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func (s *Service) packageResolver() (ports.PackageResolver, error) {
	s.resolverMu.Lock()
	defer s.resolverMu.Unlock()
	if s.resolver != nil {
		return s.resolver, nil
	}

	active := s.Config()
	cfg, err := resolver.LoadConfig(resolver.Options{
		ImportCut:     active.Resolution.Cut(),
		Strategy:      resolver.Strategy(strings.ToLower(strings.TrimSpace(active.Resolution.Strategy))),
		ImportMapPath: s.paths.ImportMapPath,
		DownloadsPath: s.paths.DownloadsPath,
	})
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxOperation, "load_resolution_tables")
	}
	s.resolver = resolver.NewResolver(cfg)
	return s.resolver, nil
}

func (s *Service) indexLookuper() (indexer.Lookuper, func()) {
	if s.lookup != nil {
		return s.lookup, func() {}
	}
	cfg := s.Config().Indexer
	client := indexer.NewClient(cfg.IndexURL, indexer.WithRateLimit(cfg.RequestsPerSecond))
	return client, client.Close
}
