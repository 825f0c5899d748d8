package cli

import (
	"fmt"

	coreapp "pyimports/internal/core/app"
	"pyimports/internal/core/config"
)

type serviceFactory interface {
	New(cfg *config.Config, paths config.ResolvedPaths) (*coreapp.Service, error)
}

type coreServiceFactory struct{}

func (coreServiceFactory) New(cfg *config.Config, paths config.ResolvedPaths) (*coreapp.Service, error) {
	return coreapp.New(cfg, paths)
}

func initializeService(cfg *config.Config, paths config.ResolvedPaths, factory serviceFactory) (*coreapp.Service, error) {
	if factory == nil {
		return nil, fmt.Errorf("service factory is required")
	}
	return factory.New(cfg, paths)
}
