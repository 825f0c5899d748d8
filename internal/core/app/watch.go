package app

import (
	"context"
	"log/slog"

	"pyimports/internal/core/watcher"
)

// Watch calls fn once for the initial run and again for every debounced
// batch of script or notebook changes under source. It blocks until ctx is
// done.
func (s *Service) Watch(ctx context.Context, source string, fn func(ctx context.Context, changed []string)) error {
	w, err := watcher.NewWatcher(
		s.Config().Watch.Debounce,
		s.Config().Scan.ExcludeDirs,
		s.Config().Scan.ExcludeFiles,
		func(paths []string) {
			if ctx.Err() != nil {
				return
			}
			slog.Info("sources changed", "count", len(paths))
			fn(ctx, paths)
		},
	)
	if err != nil {
		return err
	}
	defer w.Close()
	w.IgnoreDir(s.Config().Scan.CheckpointMarker)

	if err := w.Watch([]string{source}); err != nil {
		return err
	}
	fn(ctx, nil)

	<-ctx.Done()
	return nil
}
