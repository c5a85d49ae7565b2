package workspace

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/contextbundle"
)

// Watch starts a recursive fsnotify watcher on rootDir and feeds filesystem
// create/delete/rename events into the tracker until ctx is cancelled.
// Editor-side events (open/change/save, diagnostics) arrive separately over
// the host protocol; this watcher covers mutations made outside the editor.
func Watch(ctx context.Context, rootDir string, tracker *Tracker, excludeGlobs []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Walk the directory tree and add a watcher for every subdirectory.
	if err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			if isExcluded(rootDir, path, excludeGlobs) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if isExcluded(rootDir, event.Name, excludeGlobs) {
				continue
			}
			rel, err := filepath.Rel(rootDir, event.Name)
			if err != nil {
				continue
			}
			rel = contextbundle.Normalize(rel)

			switch {
			case event.Has(fsnotify.Create):
				info, statErr := os.Stat(event.Name)
				if statErr == nil && info.IsDir() {
					// New directories need their own watch.
					_ = watcher.Add(event.Name)
					continue
				}
				tracker.FileCreated(rel)

			case event.Has(fsnotify.Remove):
				tracker.FileDeleted(rel)

			case event.Has(fsnotify.Rename):
				// fsnotify reports only the old name; the matching Create
				// for the new name arrives as its own event.
				tracker.FileDeleted(rel)
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
		}
	}
}
