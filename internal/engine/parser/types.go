package parser

type ImportKind string

const (
	KindImport     ImportKind = "import"
	KindImportFrom ImportKind = "import_from"
	KindLoadExt    ImportKind = "load_ext"
)

type FileType string

const (
	FileTypeScript   FileType = "script"
	FileTypeNotebook FileType = "notebook"
)

const CellTypeCode = "code"

// Import is a syntactic import found by the tree walk, before it is tied to
// a file and scored for locality.
type Import struct {
	Line int
	Kind ImportKind
	Name string // for import_from, prefixed with one dot per relative level
}

// ImportEvent is an Import annotated with its owning unit and locality score.
type ImportEvent struct {
	Line     int        `json:"line"`
	Kind     ImportKind `json:"import_type"`
	Name     string     `json:"name"`
	Local    int        `json:"local"`
	Filename string     `json:"filename"`
	FileType FileType   `json:"filetype"`
	Cell     *int       `json:"cell,omitempty"`
}

// SourceUnit is a script or notebook supplied for extraction. Scripts carry
// their text in Source; notebooks carry Language and ordered Cells.
type SourceUnit struct {
	Path     string
	Type     FileType
	Source   []byte
	Language string
	Cells    []Cell
}

type Cell struct {
	Type   string
	Source string
}
