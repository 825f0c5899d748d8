package app

import (
	"context"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// Health reports whether the service's collaborators are usable.
func (s *Service) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.extractor != nil {
		status.Components["extractor"] = "ok"
	} else {
		status.Status = "degraded"
		status.Components["extractor"] = "missing"
	}

	switch {
	case s.store != nil:
		if _, err := s.store.ListRuns(ctx, s.Config().DB.ProjectKey, 1); err != nil {
			status.Status = "degraded"
			status.Components["history"] = "error: " + err.Error()
		} else {
			status.Components["history"] = "ok"
		}
	case s.Config().DB.Enabled:
		status.Status = "degraded"
		status.Components["history"] = "missing but enabled in config"
	default:
		status.Components["history"] = "disabled"
	}

	s.resolverMu.Lock()
	loaded := s.resolver != nil
	s.resolverMu.Unlock()
	if loaded {
		status.Components["resolver"] = "ok"
	} else {
		status.Components["resolver"] = "not loaded"
	}
	return status
}
