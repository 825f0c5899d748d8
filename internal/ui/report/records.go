// Package report renders analysis results as JSON, CSV or TSV.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"pyimports/internal/core/errors"
	"pyimports/internal/engine/parser"
	"pyimports/internal/engine/resolver"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
)

var (
	eventHeader       = []string{"line", "import_type", "name", "local", "filename", "filetype", "cell"}
	attributionHeader = []string{"name", "filename", "filetype", "fromtype", "mode", "importname"}
)

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// tableWriter returns a csv.Writer for the tabular formats.
func tableWriter(w io.Writer, format string) (*csv.Writer, error) {
	cw := csv.NewWriter(w)
	switch format {
	case FormatCSV:
	case FormatTSV:
		cw.Comma = '\t'
	default:
		return nil, errors.New(errors.CodeNotSupported, fmt.Sprintf("unsupported table format %q", format))
	}
	return cw, nil
}

// WriteEvents writes one row per import event. Events outside notebooks
// leave the cell column empty.
func WriteEvents(w io.Writer, events []parser.ImportEvent, format string) error {
	if format == FormatJSON {
		if events == nil {
			events = []parser.ImportEvent{}
		}
		return WriteJSON(w, events)
	}
	cw, err := tableWriter(w, format)
	if err != nil {
		return err
	}
	if err := cw.Write(eventHeader); err != nil {
		return err
	}
	for _, ev := range events {
		cell := ""
		if ev.Cell != nil {
			cell = strconv.Itoa(*ev.Cell)
		}
		row := []string{
			strconv.Itoa(ev.Line),
			string(ev.Kind),
			ev.Name,
			strconv.Itoa(ev.Local),
			ev.Filename,
			string(ev.FileType),
			cell,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAttributions writes one row per attribution record.
func WriteAttributions(w io.Writer, records []resolver.Attribution, format string) error {
	if format == FormatJSON {
		if records == nil {
			records = []resolver.Attribution{}
		}
		return WriteJSON(w, records)
	}
	cw, err := tableWriter(w, format)
	if err != nil {
		return err
	}
	if err := cw.Write(attributionHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{r.Name, r.Filename, string(r.FileType), r.FromType, string(r.Mode), r.ImportName}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
