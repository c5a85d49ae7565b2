package workspace

import (
	"sort"
	"sync"
	"time"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/contextbundle"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/logging"
)

var log = logging.Get()

// DefaultDebounce is the quiet window before subscribers are notified.
// Rapid-fire events (every keystroke) coalesce into one notification.
const DefaultDebounce = 50 * time.Millisecond

// Tracker maintains a monotonically increasing revision counter over the
// workspace and owns the open-document registry, the file index, and the
// diagnostic set. Constructed once per workspace session and injected;
// all other components read it, only the host adapters mutate it.
type Tracker struct {
	mu           sync.Mutex
	revision     uint64
	activeEditor string
	openDocs     map[string]OpenDocument // keyed by normalized path
	files        map[string]bool         // workspace file index, normalized
	diagnostics  []Diagnostic

	debounce    time.Duration
	subscribers []func(revision uint64)
	notifyTimer *time.Timer
}

// NewTracker creates a Tracker with the default debounce window.
func NewTracker() *Tracker {
	return NewTrackerWithDebounce(DefaultDebounce)
}

// NewTrackerWithDebounce creates a Tracker with an explicit debounce window.
// A zero window notifies synchronously (used by tests).
func NewTrackerWithDebounce(debounce time.Duration) *Tracker {
	return &Tracker{
		openDocs: make(map[string]OpenDocument),
		files:    make(map[string]bool),
		debounce: debounce,
	}
}

// CurrentRevision returns the revision counter's current value.
func (t *Tracker) CurrentRevision() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.revision
}

// Snapshot captures the workspace state and its revision atomically.
// There is no way to observe a revision without its corresponding state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	files := make([]string, 0, len(t.files))
	for f := range t.files {
		files = append(files, f)
	}
	sort.Strings(files)

	docs := make([]OpenDocument, 0, len(t.openDocs))
	for _, d := range t.openDocs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })

	diags := make([]Diagnostic, len(t.diagnostics))
	copy(diags, t.diagnostics)

	return Snapshot{
		ActiveEditor:  t.activeEditor,
		Files:         files,
		OpenDocuments: docs,
		Diagnostics:   diags,
		Revision:      t.revision,
	}
}

// Subscribe registers a callback fired (debounced) after state changes.
func (t *Tracker) Subscribe(fn func(revision uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, fn)
}

// bump increments the revision exactly once and schedules notification.
// Callers must hold t.mu.
func (t *Tracker) bump() {
	t.revision++
	rev := t.revision

	if len(t.subscribers) == 0 {
		return
	}

	if t.debounce <= 0 {
		for _, fn := range t.subscribers {
			fn(rev)
		}
		return
	}

	if t.notifyTimer != nil {
		t.notifyTimer.Stop()
	}
	t.notifyTimer = time.AfterFunc(t.debounce, func() {
		t.mu.Lock()
		latest := t.revision
		subs := make([]func(uint64), len(t.subscribers))
		copy(subs, t.subscribers)
		t.mu.Unlock()

		for _, fn := range subs {
			fn(latest)
		}
	})
}

// DocumentOpened records a newly opened editor buffer.
func (t *Tracker) DocumentOpened(doc OpenDocument) {
	t.mu.Lock()
	defer t.mu.Unlock()
	doc.Path = contextbundle.Normalize(doc.Path)
	doc.CapturedAt = time.Now().UTC()
	t.openDocs[doc.Path] = doc
	t.files[doc.Path] = true
	t.bump()
}

// DocumentChanged records a text change in an open buffer.
// Changed documents are dirty until saved.
func (t *Tracker) DocumentChanged(path, text string, version int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	norm := contextbundle.Normalize(path)
	doc := t.openDocs[norm]
	doc.Path = norm
	doc.Text = text
	doc.Version = version
	doc.Dirty = true
	doc.CapturedAt = time.Now().UTC()
	t.openDocs[norm] = doc
	t.bump()
}

// DocumentSaved clears the dirty flag for an open buffer.
func (t *Tracker) DocumentSaved(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	norm := contextbundle.Normalize(path)
	if doc, ok := t.openDocs[norm]; ok {
		doc.Dirty = false
		t.openDocs[norm] = doc
	}
	t.bump()
}

// DocumentClosed removes a buffer from the open-document registry.
func (t *Tracker) DocumentClosed(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.openDocs, contextbundle.Normalize(path))
	t.bump()
}

// ActiveEditorChanged records the currently focused editor.
func (t *Tracker) ActiveEditorChanged(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeEditor = contextbundle.Normalize(path)
	t.bump()
}

// FileCreated adds a path to the workspace file index.
func (t *Tracker) FileCreated(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[contextbundle.Normalize(path)] = true
	t.bump()
}

// FileDeleted removes a path from the workspace file index.
func (t *Tracker) FileDeleted(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	norm := contextbundle.Normalize(path)
	delete(t.files, norm)
	delete(t.openDocs, norm)
	t.bump()
}

// FileRenamed moves a path in the workspace file index.
// Counts as a single mutation even though two sub-fields change.
func (t *Tracker) FileRenamed(oldPath, newPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	oldNorm := contextbundle.Normalize(oldPath)
	newNorm := contextbundle.Normalize(newPath)
	delete(t.files, oldNorm)
	t.files[newNorm] = true
	if doc, ok := t.openDocs[oldNorm]; ok {
		delete(t.openDocs, oldNorm)
		doc.Path = newNorm
		t.openDocs[newNorm] = doc
	}
	if t.activeEditor == oldNorm {
		t.activeEditor = newNorm
	}
	t.bump()
}

// SetDiagnostics replaces the diagnostic set.
func (t *Tracker) SetDiagnostics(diags []Diagnostic) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.diagnostics = make([]Diagnostic, len(diags))
	for i, d := range diags {
		d.Path = contextbundle.Normalize(d.Path)
		t.diagnostics[i] = d
	}
	t.bump()
}

// SetFileIndex replaces the workspace file index wholesale (initial scan).
// Does not count as a mutation event.
func (t *Tracker) SetFileIndex(paths []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files = make(map[string]bool, len(paths))
	for _, p := range paths {
		t.files[contextbundle.Normalize(p)] = true
	}
}

// ProtectedPaths returns the normalized paths of dirty open buffers.
// These must never be read from disk without an override.
func (t *Tracker) ProtectedPaths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for path, doc := range t.openDocs {
		if doc.Dirty {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// Overrides returns assembly overrides for all open buffers, so live
// content supersedes disk reads during context assembly.
func (t *Tracker) Overrides() []contextbundle.Override {
	t.mu.Lock()
	defer t.mu.Unlock()

	paths := make([]string, 0, len(t.openDocs))
	for p := range t.openDocs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]contextbundle.Override, 0, len(paths))
	for _, p := range paths {
		doc := t.openDocs[p]
		out = append(out, contextbundle.Override{
			Path:       doc.Path,
			Text:       doc.Text,
			Version:    doc.Version,
			CapturedAt: doc.CapturedAt,
		})
	}
	return out
}

// Close stops any pending notification timer.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.notifyTimer != nil {
		t.notifyTimer.Stop()
		t.notifyTimer = nil
	}
	log.Debug("workspace tracker closed at revision %d", t.revision)
}
