package workspace

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/contextbundle"
)

// ListFiles walks rootDir and returns normalized relative paths of all
// regular files, excluding anything matched by excludeGlobs. Patterns match
// against the base name, the relative path, and each path segment.
func ListFiles(rootDir string, excludeGlobs []string) ([]string, error) {
	var out []string

	err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			if path != rootDir && isExcluded(rootDir, path, excludeGlobs) {
				return filepath.SkipDir
			}
			return nil
		}
		if isExcluded(rootDir, path, excludeGlobs) {
			return nil
		}
		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return nil
		}
		out = append(out, contextbundle.Normalize(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(out)
	return out, nil
}

// isExcluded reports whether path matches any of the given glob patterns.
func isExcluded(rootDir, path string, patterns []string) bool {
	rel := path
	if rootDir != "" {
		if r, err := filepath.Rel(rootDir, path); err == nil {
			rel = r
		}
	}
	base := filepath.Base(path)

	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
		// Match any segment of the relative path (e.g. node_modules anywhere).
		for _, seg := range splitSegments(rel) {
			if matched, _ := filepath.Match(pattern, seg); matched {
				return true
			}
		}
	}
	return false
}

func splitSegments(rel string) []string {
	var segs []string
	for rel != "" && rel != "." {
		dir, base := filepath.Split(rel)
		if base != "" {
			segs = append(segs, base)
		}
		rel = filepath.Clean(dir)
		if rel == "/" || rel == "." {
			break
		}
	}
	return segs
}
