package contextbundle

import "strings"

// Normalize canonicalizes a path for identity comparison: lowercase,
// backslashes to forward slashes, leading "./" segments stripped.
// Two paths name the same file iff their normalized forms match.
// Normalize is idempotent.
func Normalize(path string) string {
	p := strings.ToLower(path)
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

// SamePath reports whether two paths normalize to the same identity.
func SamePath(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
