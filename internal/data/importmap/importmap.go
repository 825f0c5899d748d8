// Package importmap reads and writes the lookup tables that drive package
// resolution: the package to import-name map, the download popularity table
// and the builder's error list.
package importmap

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"pyimports/internal/core/errors"
	"pyimports/internal/shared/util"
)

// Entry lists the top-level import names one distribution package exposes.
type Entry struct {
	Package string
	Modules []string
}

// ImportMap is a package to import-names table that remembers insertion
// order. Order decides candidate order under the "all" strategy and the
// winner of download-count ties.
type ImportMap struct {
	entries []Entry
	index   map[string]int
}

func New() *ImportMap {
	return &ImportMap{index: make(map[string]int)}
}

func (m *ImportMap) Len() int {
	return len(m.entries)
}

// Entries returns the entries in insertion order. The slice must not be
// modified.
func (m *ImportMap) Entries() []Entry {
	return m.entries
}

func (m *ImportMap) Has(pkg string) bool {
	_, ok := m.index[pkg]
	return ok
}

func (m *ImportMap) Get(pkg string) ([]string, bool) {
	i, ok := m.index[pkg]
	if !ok {
		return nil, false
	}
	return m.entries[i].Modules, true
}

// Set records the modules of pkg. A package that is already present keeps
// its original position.
func (m *ImportMap) Set(pkg string, modules []string) {
	if modules == nil {
		modules = []string{}
	}
	if i, ok := m.index[pkg]; ok {
		m.entries[i].Modules = modules
		return
	}
	m.index[pkg] = len(m.entries)
	m.entries = append(m.entries, Entry{Package: pkg, Modules: modules})
}

// LoadImportMap reads a JSON object mapping package names to lists of import
// names. A missing or malformed file is an error.
func LoadImportMap(path string) (*ImportMap, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "import map not found"), errors.CtxPath, path)
		}
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "open import map"), errors.CtxPath, path)
	}
	defer f.Close()

	m, err := DecodeImportMap(f)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return m, nil
}

// DecodeImportMap streams the object token by token so document order
// survives decoding.
func DecodeImportMap(r io.Reader) (*ImportMap, error) {
	dec := json.NewDecoder(r)
	m := New()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "malformed import map")
		}
		pkg, ok := tok.(string)
		if !ok {
			return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("malformed import map: unexpected token %v", tok))
		}
		var modules []string
		if err := dec.Decode(&modules); err != nil {
			return nil, errors.AddContext(
				errors.Wrap(err, errors.CodeValidationError, "malformed import map: expected list of import names"),
				errors.CtxPackage, pkg,
			)
		}
		m.Set(pkg, modules)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return m, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return errors.Wrap(err, errors.CodeValidationError, "malformed import map")
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return errors.New(errors.CodeValidationError, fmt.Sprintf("malformed import map: expected %q, got %v", want, tok))
	}
	return nil
}

// SaveImportMap writes m with package names sorted.
func SaveImportMap(path string, m *ImportMap) error {
	out := make(map[string][]string, m.Len())
	for _, e := range m.entries {
		out[e.Package] = e.Modules
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "encode import map")
	}
	return writeFileAtomic(path, data)
}

// LoadErrors reads the builder's list of package names that failed lookup.
// A missing file is an empty list.
func LoadErrors(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "read error list"), errors.CtxPath, path)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "malformed error list"), errors.CtxPath, path)
	}
	return names, nil
}

// SaveErrors writes names sorted and de-duplicated.
func SaveErrors(path string, names []string) error {
	seen := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		unique = append(unique, n)
	}
	sort.Strings(unique)

	data, err := json.MarshalIndent(unique, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "encode error list")
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	if err := util.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write file"), errors.CtxPath, path)
	}
	return nil
}
