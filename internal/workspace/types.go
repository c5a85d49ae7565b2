package workspace

import "time"

// Severity levels for diagnostics, mirroring the editor's language services.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityHint    Severity = "hint"
)

// Blocking reports whether a diagnostic of this severity prevents generation.
func (s Severity) Blocking() bool {
	return s == SeverityError
}

// Range is a zero-based character range within a document.
type Range struct {
	StartLine int `json:"start_line"`
	StartChar int `json:"start_char"`
	EndLine   int `json:"end_line"`
	EndChar   int `json:"end_char"`
}

// Diagnostic is a single issue reported by the editor's language services.
type Diagnostic struct {
	Path     string   `json:"path"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Range    Range    `json:"range"`
}

// OpenDocument is a live editor buffer.
type OpenDocument struct {
	Path       string    `json:"path"`
	Text       string    `json:"text"`
	Version    int       `json:"version"`
	Dirty      bool      `json:"dirty"` // unsaved edits present
	LanguageID string    `json:"language_id,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Snapshot is a point-in-time view of the workspace, captured atomically
// with the revision counter.
type Snapshot struct {
	ActiveEditor  string         `json:"active_editor,omitempty"`
	Files         []string       `json:"files"`
	OpenDocuments []OpenDocument `json:"open_documents"`
	Diagnostics   []Diagnostic   `json:"diagnostics"`
	Revision      uint64         `json:"revision"`
}

// BlockingDiagnostics returns the snapshot's diagnostics of blocking severity
// restricted to the given normalized paths. A nil path set means all paths.
func (s *Snapshot) BlockingDiagnostics(paths map[string]bool) []Diagnostic {
	var out []Diagnostic
	for _, d := range s.Diagnostics {
		if !d.Severity.Blocking() {
			continue
		}
		if paths != nil && !paths[d.Path] {
			continue
		}
		out = append(out, d)
	}
	return out
}
