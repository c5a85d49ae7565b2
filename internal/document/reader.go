package document

import (
	"os"
	"time"
	"unicode/utf8"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/faults"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/logging"
)

var log = logging.Get()

// DefaultCap is the per-document content cap in bytes.
const DefaultCap = 50 * 1024

// Reader reads single documents from disk, normalizing to plain text.
type Reader struct {
	cap int
}

// NewReader creates a Reader with the given per-document byte cap.
// A non-positive cap falls back to DefaultCap.
func NewReader(cap int) *Reader {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Reader{cap: cap}
}

// Cap returns the per-document byte cap.
func (r *Reader) Cap() int {
	return r.cap
}

// Read reads rootDir/relativePath and returns a Document, or a NotFound
// fault if the path does not resolve to a regular file. NotFound is a
// normal, expected outcome.
func (r *Reader) Read(rootDir, relativePath string) (*Document, error) {
	if err := ValidateRelativePath(relativePath); err != nil {
		return nil, faults.NewNotFound(relativePath)
	}

	fullPath, err := SafeJoin(rootDir, relativePath)
	if err != nil {
		return nil, faults.NewNotFound(relativePath)
	}

	info, err := os.Stat(fullPath)
	if err != nil || !info.Mode().IsRegular() {
		return nil, faults.NewNotFound(relativePath)
	}

	docType := TypeForPath(relativePath)

	var text string
	switch docType {
	case TypePDF:
		text, err = extractPDF(fullPath)
	case TypeDocx:
		text, err = extractDocx(fullPath)
	default:
		var data []byte
		data, err = os.ReadFile(fullPath)
		if err == nil {
			text = string(data)
		}
	}
	if err != nil {
		// Binary extraction failed: salvage what we can rather than failing
		// the whole read. The assistant can still reason about partial text.
		log.Debug("extraction failed for %s (%v), salvaging bytes", relativePath, err)
		data, readErr := os.ReadFile(fullPath)
		if readErr != nil {
			return nil, faults.NewNotFound(relativePath)
		}
		text = salvageText(data)
	}

	text, truncated := capText(text, r.cap)

	return &Document{
		Path:       relativePath,
		Type:       docType,
		Text:       text,
		Truncated:  truncated,
		Source:     SourceDisk,
		CapturedAt: time.Now().UTC(),
	}, nil
}

// capText cuts text to at most max bytes, backing up to a rune boundary
// so the cut never splits a multi-byte character.
func capText(text string, max int) (string, bool) {
	if len(text) <= max {
		return text, false
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut], true
}
