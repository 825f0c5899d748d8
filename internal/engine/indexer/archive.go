package indexer

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"pyimports/internal/core/errors"
)

const topLevelFile = "top_level.txt"

var moduleExts = []string{".py", ".so", ".pyd"}

// Source archives ship tooling next to the package that is never installed.
var sdistSkip = map[string]bool{
	"setup": true, "conftest": true, "tests": true, "test": true, "docs": true,
	"doc": true, "examples": true, "benchmarks": true, "scripts": true,
}

func isSourceArchive(filename string) bool {
	return strings.HasSuffix(filename, ".tar.gz") ||
		strings.HasSuffix(filename, ".tgz") ||
		strings.HasSuffix(filename, ".zip")
}

type archiveEntry struct {
	name string
	open func() ([]byte, error)
}

// ImportNames returns the top-level import names a wheel or source archive
// installs. The metadata's top_level.txt wins when present; otherwise names
// are inferred from the archive layout.
func ImportNames(filename string, data []byte) ([]string, error) {
	var (
		entries []archiveEntry
		err     error
		sdist   = !strings.HasSuffix(filename, ".whl")
	)
	switch {
	case strings.HasSuffix(filename, ".whl"), strings.HasSuffix(filename, ".zip"):
		entries, err = zipEntries(data)
	case strings.HasSuffix(filename, ".tar.gz"), strings.HasSuffix(filename, ".tgz"):
		entries, err = tarEntries(data)
	default:
		return nil, errors.New(errors.CodeNotSupported, fmt.Sprintf("unsupported distribution format %q", filename))
	}
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, filename)
	}

	if sdist {
		entries = stripSourceRoot(entries)
	}

	for _, e := range entries {
		dir, base := path.Split(e.name)
		if base != topLevelFile || strings.Count(dir, "/") != 1 {
			continue
		}
		meta := strings.TrimSuffix(dir, "/")
		if !strings.HasSuffix(meta, ".dist-info") && !strings.HasSuffix(meta, ".egg-info") {
			continue
		}
		content, err := e.open()
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeParse, "read top_level.txt"), errors.CtxPath, filename)
		}
		if names := parseTopLevel(content); len(names) > 0 {
			return names, nil
		}
	}

	names := inferTopLevel(entries, sdist)
	if len(names) == 0 {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "no importable modules in distribution"), errors.CtxPath, filename)
	}
	return names, nil
}

func zipEntries(data []byte) ([]archiveEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeParse, "open zip archive")
	}
	entries := make([]archiveEntry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, archiveEntry{
			name: f.Name,
			open: func() ([]byte, error) {
				rc, err := f.Open()
				if err != nil {
					return nil, err
				}
				defer rc.Close()
				return io.ReadAll(rc)
			},
		})
	}
	return entries, nil
}

// tarEntries buffers top_level.txt files while reading, since a tar stream
// cannot be rewound.
func tarEntries(data []byte) ([]archiveEntry, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeParse, "open gzip stream")
	}
	defer gz.Close()

	var entries []archiveEntry
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeParse, "read tar archive")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		entry := archiveEntry{name: hdr.Name, open: func() ([]byte, error) { return nil, nil }}
		if path.Base(hdr.Name) == topLevelFile {
			content, err := io.ReadAll(io.LimitReader(tr, 1<<20))
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeParse, "read tar entry")
			}
			entry.open = func() ([]byte, error) { return content, nil }
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// stripSourceRoot drops the "name-version/" directory source archives wrap
// everything in, and the conventional "src/" layout directory below it.
func stripSourceRoot(entries []archiveEntry) []archiveEntry {
	out := make([]archiveEntry, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimPrefix(e.name, "./")
		i := strings.IndexByte(name, '/')
		if i < 0 {
			continue
		}
		name = strings.TrimPrefix(name[i+1:], "src/")
		if name == "" {
			continue
		}
		out = append(out, archiveEntry{name: name, open: e.open})
	}
	return out
}

func parseTopLevel(content []byte) []string {
	seen := make(map[string]bool)
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		name := strings.ReplaceAll(strings.TrimSpace(sc.Text()), "/", ".")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func inferTopLevel(entries []archiveEntry, sdist bool) []string {
	seen := make(map[string]bool)
	for _, e := range entries {
		parts := strings.Split(e.name, "/")
		first := parts[0]
		if strings.HasSuffix(first, ".dist-info") || strings.HasSuffix(first, ".data") ||
			strings.HasSuffix(first, ".egg-info") || first == "__pycache__" {
			continue
		}

		base := parts[len(parts)-1]
		if !hasModuleExt(base) {
			continue
		}

		name := first
		if len(parts) == 1 {
			name = strings.SplitN(base, ".", 2)[0]
		}
		if !isIdentifier(name) || (sdist && sdistSkip[name]) {
			continue
		}
		seen[name] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func hasModuleExt(name string) bool {
	for _, ext := range moduleExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
