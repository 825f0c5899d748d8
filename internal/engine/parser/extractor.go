package parser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pyimports/internal/core/errors"
	"pyimports/internal/engine/locality"
	"pyimports/internal/engine/notebook"
	"pyimports/internal/shared/observability"
)

const languagePython = "python"

// CellTransformer rewrites interactive-shell syntax in a notebook cell into
// parseable Python.
type CellTransformer interface {
	TransformCell(src string) (string, error)
}

// Extractor produces locality-scored import events for source units.
type Extractor struct {
	parser      *Parser
	transformer CellTransformer
}

func NewExtractor(transformer CellTransformer) *Extractor {
	if transformer == nil {
		transformer = notebook.Transformer{}
	}
	return &Extractor{parser: NewParser(), transformer: transformer}
}

// Extract returns the import events of unit in source order. Locality is
// scored against projectRoot, or the unit's directory when it is empty.
//
// A script that fails to parse returns a PARSE_ERROR. Notebook cells that
// fail to transform or parse are logged and skipped.
func (e *Extractor) Extract(unit SourceUnit, projectRoot string) ([]ImportEvent, error) {
	start := time.Now()
	defer func() {
		observability.ExtractionDuration.WithLabelValues(string(unit.Type)).Observe(time.Since(start).Seconds())
	}()

	if projectRoot == "" {
		projectRoot = filepath.Dir(unit.Path)
	}
	classifier := locality.NewClassifier(projectRoot)

	var events []ImportEvent
	switch unit.Type {
	case FileTypeScript:
		imports, err := e.parser.ParseImports(unit.Source)
		if err != nil {
			observability.ParseFailuresTotal.WithLabelValues(string(unit.Type)).Inc()
			return nil, errors.AddContext(err, errors.CtxPath, unit.Path)
		}
		events = annotate(imports, unit, classifier, -1)
	case FileTypeNotebook:
		if unit.Language != languagePython {
			slog.Debug("skipping non-python notebook", "path", unit.Path, "language", unit.Language)
			break
		}
		for index, cell := range unit.Cells {
			if cell.Type != CellTypeCode {
				continue
			}
			imports, err := e.parseCell(unit.Path, index, cell.Source)
			if err != nil {
				observability.ParseFailuresTotal.WithLabelValues(string(unit.Type)).Inc()
				slog.Warn("skipping notebook cell", "path", unit.Path, "cell", index, "error", err)
				continue
			}
			events = append(events, annotate(imports, unit, classifier, index)...)
		}
	default:
		return nil, errors.New(errors.CodeNotSupported, fmt.Sprintf("unsupported file type %q", unit.Type))
	}

	observability.UnitsProcessedTotal.WithLabelValues(string(unit.Type)).Inc()
	for _, ev := range events {
		observability.ImportEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	}
	return events, nil
}

// ExtractFile loads path and extracts it. Files that are neither scripts nor
// notebooks yield no events.
func (e *Extractor) ExtractFile(path, projectRoot string) ([]ImportEvent, error) {
	unit, ok, err := LoadUnit(path)
	if err != nil || !ok {
		return nil, err
	}
	return e.Extract(unit, projectRoot)
}

func (e *Extractor) parseCell(path string, index int, source string) ([]Import, error) {
	transformed, err := e.transformer.TransformCell(source)
	if err != nil {
		return nil, err
	}
	if strings.Contains(transformed, "\x00") {
		slog.Debug("replacing null bytes in notebook cell", "path", path, "cell", index)
		transformed = strings.ReplaceAll(transformed, "\x00", "\n")
	}
	return e.parser.ParseImports([]byte(transformed))
}

func annotate(imports []Import, unit SourceUnit, classifier *locality.Classifier, cell int) []ImportEvent {
	events := make([]ImportEvent, 0, len(imports))
	for _, imp := range imports {
		ev := ImportEvent{
			Line:     imp.Line,
			Kind:     imp.Kind,
			Name:     imp.Name,
			Local:    classifier.Score(imp.Name),
			Filename: unit.Path,
			FileType: unit.Type,
		}
		if cell >= 0 {
			index := cell
			ev.Cell = &index
		}
		events = append(events, ev)
	}
	return events
}

// FileTypeForPath maps a path to the unit type its extension denotes.
func FileTypeForPath(path string) (FileType, bool) {
	switch filepath.Ext(path) {
	case ".py":
		return FileTypeScript, true
	case ".ipynb":
		return FileTypeNotebook, true
	}
	return "", false
}

// LoadUnit reads a script or notebook from disk. The boolean is false for
// paths of any other type.
func LoadUnit(path string) (SourceUnit, bool, error) {
	fileType, ok := FileTypeForPath(path)
	if !ok {
		return SourceUnit{}, false, nil
	}

	unit := SourceUnit{Path: path, Type: fileType}
	if fileType == FileTypeScript {
		content, err := os.ReadFile(path)
		if err != nil {
			return SourceUnit{}, false, errors.Wrap(err, errors.CodeNotFound, "read script")
		}
		unit.Source = content
		return unit, true, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return SourceUnit{}, false, errors.Wrap(err, errors.CodeNotFound, "open notebook")
	}
	defer f.Close()

	nb, err := notebook.Read(f)
	if err != nil {
		return SourceUnit{}, false, errors.Wrap(err, errors.CodeParse, "read notebook")
	}
	unit.Language = nb.Language
	unit.Cells = make([]Cell, len(nb.Cells))
	for i, c := range nb.Cells {
		unit.Cells[i] = Cell{Type: c.Type, Source: c.Source}
	}
	return unit, true, nil
}
