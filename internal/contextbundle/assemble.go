package contextbundle

import (
	"unicode/utf8"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/document"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/faults"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/logging"
)

var log = logging.Get()

// DocumentReader reads a single document relative to a root directory and
// reports its per-document byte cap. *document.Reader satisfies this; tests
// substitute their own.
type DocumentReader interface {
	Read(rootDir, relativePath string) (*document.Document, error)
	Cap() int
}

// Assembler builds context bundles from disk content and live overrides.
type Assembler struct {
	reader DocumentReader
}

// NewAssembler creates an Assembler backed by the given reader.
func NewAssembler(reader DocumentReader) *Assembler {
	return &Assembler{reader: reader}
}

// Assemble produces an ordered, deduplicated, budget-limited bundle.
// The active file is processed first, then requested files in request order;
// first occurrence of a normalized path wins. A protected path with no
// override fails the whole assembly.
func (a *Assembler) Assemble(req Request) (*Bundle, error) {
	overrides := make(map[string]*Override, len(req.Overrides))
	for i := range req.Overrides {
		o := &req.Overrides[i]
		overrides[Normalize(o.Path)] = o
	}

	protected := make(map[string]bool, len(req.ProtectedPaths))
	for _, p := range req.ProtectedPaths {
		protected[Normalize(p)] = true
	}

	var candidates []string
	if req.ActiveFile != "" {
		candidates = append(candidates, req.ActiveFile)
	}
	candidates = append(candidates, req.RequestedFiles...)

	bundle := &Bundle{}
	seen := make(map[string]bool, len(candidates))
	remaining := req.MaxChars

	for _, candidate := range candidates {
		norm := Normalize(candidate)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true

		doc, err := a.resolve(req.RootDir, candidate, norm, overrides, protected)
		if err != nil {
			if faults.Is(err, faults.CodeNotFound) {
				bundle.Missing = append(bundle.Missing, norm)
				continue
			}
			// Protected-path violations abort the whole assembly: no partial
			// bundle may contain stale disk content for that path.
			return nil, err
		}

		if doc.Truncated {
			bundle.Truncated = true
		}

		if len(doc.Text) > remaining {
			if remaining <= 0 {
				bundle.Truncated = true
				bundle.Omitted = append(bundle.Omitted, norm)
				continue
			}
			doc.Text, _ = cutChars(doc.Text, remaining)
			doc.Truncated = true
			bundle.Truncated = true
		}

		remaining -= len(doc.Text)
		bundle.TotalChars += len(doc.Text)
		bundle.Files = append(bundle.Files, *doc)
	}

	log.Debug("assembled bundle: %d files, %d chars, truncated=%v, missing=%d",
		len(bundle.Files), bundle.TotalChars, bundle.Truncated, len(bundle.Missing))

	return bundle, nil
}

// resolve produces the document for one candidate path, honoring override
// precedence and the protected-path contract.
func (a *Assembler) resolve(rootDir, original, norm string, overrides map[string]*Override, protected map[string]bool) (*document.Document, error) {
	if o, ok := overrides[norm]; ok {
		docType := o.Type
		if docType == "" {
			docType = document.TypeCode
		}
		// Buffer content gets the same per-document cap as disk reads.
		text := o.Text
		truncated := false
		if max := a.reader.Cap(); max > 0 {
			text, truncated = cutChars(text, max)
		}
		return &document.Document{
			Path:       norm,
			Type:       docType,
			Text:       text,
			Truncated:  truncated,
			Source:     document.SourceEditor,
			Version:    o.Version,
			CapturedAt: o.CapturedAt,
		}, nil
	}

	if protected[norm] {
		return nil, faults.NewProtectedPathViolation(norm)
	}

	doc, err := a.reader.Read(rootDir, original)
	if err != nil {
		return nil, err
	}
	doc.Path = norm
	return doc, nil
}

// cutChars cuts text to at most max bytes at a rune boundary.
func cutChars(text string, max int) (string, bool) {
	if len(text) <= max {
		return text, false
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut], true
}
