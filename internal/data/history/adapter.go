package history

import "context"

// Adapter bridges Store to the core RunStore port.
type Adapter struct {
	store *Store
}

func NewAdapter(store *Store) *Adapter {
	return &Adapter{store: store}
}

func (a *Adapter) SaveRun(ctx context.Context, run Run) (string, error) {
	return a.store.SaveRun(ctx, run)
}

func (a *Adapter) ListRuns(ctx context.Context, projectKey string, limit int) ([]RunSummary, error) {
	return a.store.ListRuns(ctx, projectKey, limit)
}

func (a *Adapter) LoadRecords(ctx context.Context, runID string) (Run, error) {
	return a.store.LoadRecords(ctx, runID)
}

func (a *Adapter) Close() error {
	return a.store.Close()
}
