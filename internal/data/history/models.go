package history

import (
	"time"

	"pyimports/internal/engine/parser"
	"pyimports/internal/engine/resolver"
)

const SchemaVersion = 2

// Run is one analysis of a source tree with everything it produced.
type Run struct {
	ID           string                 `json:"id"`
	ProjectKey   string                 `json:"project_key"`
	Command      string                 `json:"command"`
	Root         string                 `json:"root"`
	StartedAt    time.Time              `json:"started_at"`
	FinishedAt   time.Time              `json:"finished_at"`
	Events       []parser.ImportEvent   `json:"events"`
	Attributions []resolver.Attribution `json:"attributions,omitempty"`
}

// RunSummary is a stored run without its records.
type RunSummary struct {
	ID               string    `json:"id"`
	ProjectKey       string    `json:"project_key"`
	Command          string    `json:"command"`
	Root             string    `json:"root"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	EventCount       int       `json:"event_count"`
	AttributionCount int       `json:"attribution_count"`
	PackageCount     int       `json:"package_count"`
	UnknownCount     int       `json:"unknown_count"`
}

type TrendPoint struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	EventCount    int       `json:"event_count"`
	PackageCount  int       `json:"package_count"`
	UnknownCount  int       `json:"unknown_count"`
	DeltaEvents   int       `json:"delta_events"`
	DeltaPackages int       `json:"delta_packages"`
	DeltaUnknown  int       `json:"delta_unknown"`
}

type TrendReport struct {
	ProjectKey string       `json:"project_key"`
	RunCount   int          `json:"run_count"`
	Points     []TrendPoint `json:"points"`
}
