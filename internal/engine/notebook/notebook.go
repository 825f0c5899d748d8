// Package notebook reads Jupyter notebooks and rewrites IPython-only cell
// syntax into plain Python.
package notebook

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const UnknownLanguage = "unknown"

type Notebook struct {
	Language        string
	LanguageVersion string
	Kernel          string
	Cells           []Cell
}

type Cell struct {
	Type   string
	Source string
}

// IsPython reports whether code cells should be analyzed as Python.
func (n *Notebook) IsPython() bool {
	return n.Language == "python"
}

// multiline accepts nbformat's "string or list of strings" fields.
type multiline string

func (m *multiline) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = ""
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*m = multiline(single)
		return nil
	}
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*m = multiline(strings.Join(parts, ""))
	return nil
}

type rawCell struct {
	CellType string    `json:"cell_type"`
	Source   multiline `json:"source"`
	Input    multiline `json:"input"`    // nbformat 3
	Language string    `json:"language"` // nbformat 3
}

type rawNotebook struct {
	Metadata struct {
		Kernelspec struct {
			Name string `json:"name"`
		} `json:"kernelspec"`
		LanguageInfo struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"language_info"`
	} `json:"metadata"`
	Cells      []rawCell `json:"cells"`
	Worksheets []struct {
		Cells []rawCell `json:"cells"`
	} `json:"worksheets"`
}

// Read decodes an nbformat 4 notebook, or the worksheet layout of nbformat 3.
func Read(r io.Reader) (*Notebook, error) {
	var raw rawNotebook
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode notebook: %w", err)
	}

	nb := &Notebook{
		Language:        raw.Metadata.LanguageInfo.Name,
		LanguageVersion: raw.Metadata.LanguageInfo.Version,
		Kernel:          raw.Metadata.Kernelspec.Name,
	}
	if nb.Kernel == "" {
		nb.Kernel = "no-kernel"
	}
	if nb.LanguageVersion == "" {
		nb.LanguageVersion = UnknownLanguage
	}

	cells := raw.Cells
	for _, ws := range raw.Worksheets {
		cells = append(cells, ws.Cells...)
	}
	for _, c := range cells {
		source := string(c.Source)
		if source == "" && c.Input != "" {
			source = string(c.Input)
		}
		if nb.Language == "" && c.CellType == "code" && c.Language != "" {
			nb.Language = c.Language
		}
		nb.Cells = append(nb.Cells, Cell{Type: c.CellType, Source: source})
	}
	if nb.Language == "" {
		nb.Language = UnknownLanguage
	}
	return nb, nil
}
