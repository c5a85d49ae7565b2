// Package contextbundle assembles the budget-limited set of file contents
// sent to the model for one turn.
package contextbundle

import (
	"time"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/document"
)

// Override is caller-supplied replacement content for a path, used to inject
// live editor buffers. Overrides take precedence over disk reads.
type Override struct {
	Path       string
	Text       string
	Type       document.Type // defaults to code if unspecified
	Version    int
	CapturedAt time.Time
}

// Request describes one assembly.
type Request struct {
	RootDir        string
	ActiveFile     string   // included first; wins all ties
	RequestedFiles []string // included in request order
	Overrides      []Override
	ProtectedPaths []string // paths that must not be read from disk without an override
	MaxChars       int
}

// Bundle is the output of context assembly for one turn. Immutable after
// return; insertion order is priority order.
type Bundle struct {
	Files      []document.Document `json:"files"`
	TotalChars int                 `json:"total_chars"`
	Truncated  bool                `json:"truncated"`
	Missing    []string            `json:"missing,omitempty"` // references that did not resolve
	Omitted    []string            `json:"omitted,omitempty"` // resolved but dropped by the budget
	Revision   uint64              `json:"revision"`          // workspace revision at capture, set by the caller
}

// Contains reports whether the bundle includes the given path after
// normalization.
func (b *Bundle) Contains(path string) bool {
	norm := Normalize(path)
	for _, f := range b.Files {
		if f.Path == norm {
			return true
		}
	}
	return false
}

// Paths returns the normalized paths of all included files, in bundle order.
func (b *Bundle) Paths() []string {
	paths := make([]string, len(b.Files))
	for i, f := range b.Files {
		paths[i] = f.Path
	}
	return paths
}
