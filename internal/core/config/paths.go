package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolvedPaths holds the absolute locations derived from a Config.
type ResolvedPaths struct {
	// ProjectRoot is empty when locality is computed against the file's
	// own directory.
	ProjectRoot   string
	ImportMapPath string
	DownloadsPath string
	ErrorsPath    string
	DBPath        string
}

// ResolvePaths anchors relative paths in cfg at cwd. source is the scanned
// file or directory and seeds project root detection when project_root is
// "auto".
func ResolvePaths(cfg *Config, cwd, source string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	var projectRoot string
	switch root := strings.TrimSpace(cfg.Scan.ProjectRoot); root {
	case "":
	case ProjectRootAuto:
		detected, err := DetectProjectRoot([]string{source, cwd})
		if err != nil {
			return ResolvedPaths{}, err
		}
		projectRoot = detected
	default:
		projectRoot = ResolveRelative(cwd, root)
	}

	resolved := ResolvedPaths{
		ProjectRoot:   projectRoot,
		ImportMapPath: ResolveRelative(cwd, cfg.Resolution.ImportMap),
		ErrorsPath:    ResolveRelative(cwd, cfg.Indexer.ErrorsPath),
		DBPath:        ResolveRelative(cwd, cfg.DB.Path),
	}
	if strings.TrimSpace(cfg.Resolution.Downloads) != "" {
		resolved.DownloadsPath = ResolveRelative(cwd, cfg.Resolution.Downloads)
	}
	return resolved, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

var projectMarkers = []string{
	"pyproject.toml",
	"setup.py",
	"setup.cfg",
	".git",
	DefaultPath,
}

// DetectProjectRoot walks up from each candidate and returns the first
// directory holding a project marker, falling back to the working directory.
func DetectProjectRoot(candidates []string) (string, error) {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range projectMarkers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}
