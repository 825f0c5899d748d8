package importmap

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"pyimports/internal/core/errors"
)

const (
	columnProject   = "project_name"
	columnDownloads = "num_downloads"
)

// Download is one row of the popularity table.
type Download struct {
	Package string
	Count   int64
}

// LoadDownloads reads a CSV with project_name and num_downloads columns.
// Rows keep file order.
func LoadDownloads(path string) ([]Download, error) {
	f, err := os.Open(path)
	if err != nil {
		code := errors.CodeInternal
		if os.IsNotExist(err) {
			code = errors.CodeNotFound
		}
		return nil, errors.AddContext(errors.Wrap(err, code, "open downloads table"), errors.CtxPath, path)
	}
	defer f.Close()

	rows, err := ReadDownloads(f)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return rows, nil
}

func ReadDownloads(r io.Reader) ([]Download, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "read downloads header")
	}
	nameCol, countCol := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")) {
		case columnProject:
			nameCol = i
		case columnDownloads:
			countCol = i
		}
	}
	if nameCol < 0 || countCol < 0 {
		return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("downloads table needs %q and %q columns", columnProject, columnDownloads))
	}

	var rows []Download
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "read downloads row")
		}
		if nameCol >= len(record) || countCol >= len(record) {
			line, _ := reader.FieldPos(0)
			return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("downloads row on line %d is short", line))
		}
		count, err := parseCount(record[countCol])
		if err != nil {
			line, _ := reader.FieldPos(countCol)
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("downloads row on line %d", line))
		}
		rows = append(rows, Download{Package: record[nameCol], Count: count})
	}
	return rows, nil
}

func parseCount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid download count %q", raw)
	}
	return int64(f), nil
}

// ReadColumn returns the non-empty values of column from a CSV with a
// header row, in file order.
func ReadColumn(r io.Reader, column string) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "read header")
	}
	col := -1
	for i, name := range header {
		if strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) == column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("column %q not found", column))
	}

	var values []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "read row")
		}
		if col >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[col]); v != "" {
			values = append(values, v)
		}
	}
	return values, nil
}
