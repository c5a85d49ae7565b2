package document

import (
	"path/filepath"
	"strings"
	"time"
)

// Type determines the decoding strategy for a document.
type Type string

const (
	TypeCode Type = "code"
	TypeText Type = "text"
	TypeJSON Type = "json"
	TypePDF  Type = "pdf"
	TypeDocx Type = "docx"
)

// Source records where a document's content came from. Editor content
// (a live, possibly-unsaved buffer) is authoritative over disk.
type Source string

const (
	SourceEditor Source = "editor"
	SourceDisk   Source = "disk"
)

// Document is a single readable unit. Constructed fresh on every context
// build and never mutated afterwards.
type Document struct {
	Path       string    `json:"path"` // normalized, /-separated, relative
	Type       Type      `json:"type"`
	Text       string    `json:"text"`
	Truncated  bool      `json:"truncated"`
	Source     Source    `json:"source"`
	Version    int       `json:"version,omitempty"`     // editor edit counter, if known
	CapturedAt time.Time `json:"captured_at,omitempty"` // wall-clock capture time, if known
}

// codeExtensions maps extensions decoded as source code.
var codeExtensions = map[string]bool{
	".go": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true,
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".py": true,
	".rs": true, ".java": true, ".rb": true, ".php": true, ".cs": true,
	".sh": true, ".sql": true, ".html": true, ".css": true, ".vue": true,
	".swift": true, ".kt": true, ".lua": true, ".zig": true,
}

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".rst": true, ".yaml": true, ".yml": true,
	".toml": true, ".ini": true, ".cfg": true, ".csv": true, ".log": true,
}

// TypeForPath resolves a path's extension to a document type.
// Unknown extensions decode as text.
func TypeForPath(path string) Type {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".json":
		return TypeJSON
	case ext == ".pdf":
		return TypePDF
	case ext == ".docx":
		return TypeDocx
	case codeExtensions[ext]:
		return TypeCode
	case textExtensions[ext]:
		return TypeText
	default:
		return TypeText
	}
}
