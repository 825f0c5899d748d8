package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pyimports/internal/core/errors"
	"pyimports/internal/engine/parser"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"
)

var walkDir = filepath.WalkDir

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid %s pattern %q", label, p))
		}
		out = append(out, g)
	}
	return out, nil
}

// hasSegment reports whether any element of path equals marker.
func hasSegment(path, marker string) bool {
	if marker == "" {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == marker {
			return true
		}
	}
	return false
}

// ScanSources lists the scripts and notebooks under source in walk order. A
// file path is returned as is when it has a supported extension. Paths with
// a checkpoint marker segment are never returned.
func (s *Service) ScanSources(source string) ([]string, error) {
	marker := s.Config().Scan.CheckpointMarker

	info, err := os.Stat(source)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "stat source"), errors.CtxPath, source)
	}
	if !info.IsDir() {
		if _, ok := parser.FileTypeForPath(source); !ok || hasSegment(source, marker) {
			return nil, nil
		}
		return []string{source}, nil
	}

	dirGlobs, err := compileGlobs(s.Config().Scan.ExcludeDirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compileGlobs(s.Config().Scan.ExcludeFiles, "exclude file")
	if err != nil {
		return nil, err
	}

	var files []string
	err = walkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == source {
				return err
			}
			// Unreadable entries are skipped; the rest of the tree is still scanned.
			slog.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if hasSegment(path, marker) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		base := filepath.Base(path)
		if d.IsDir() {
			if path == source {
				return nil
			}
			for _, g := range dirGlobs {
				if g.Match(base) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if _, ok := parser.FileTypeForPath(path); !ok {
			return nil
		}
		for _, g := range fileGlobs {
			if g.Match(base) {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "walk source"), errors.CtxPath, source)
	}
	return files, nil
}

type unitResult struct {
	events []parser.ImportEvent
	err    error
}

// extractFiles extracts every file on up to workers goroutines. Results are
// collected per file and returned in the order of files; a failing file
// contributes its error instead of events.
func (s *Service) extractFiles(ctx context.Context, files []string, projectRoot string) ([]unitResult, error) {
	results := make([]unitResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.Config().Scan.Workers))
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			events, err := s.extractor.ExtractFile(path, projectRoot)
			results[i] = unitResult{events: events, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
