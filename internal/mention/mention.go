// Package mention extracts file references from free-text user input and
// resolves them against the known workspace.
package mention

import (
	"regexp"
	"strings"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/contextbundle"
)

// Strategy extracts candidate file mentions and editor intent from text.
// It is pluggable so the heuristic can be replaced without touching the
// turn lifecycle.
type Strategy interface {
	ExtractMentions(text string) []string
	ImpliesActiveEditor(text string, mentions []string) bool
}

// Resolution is the result of matching mentions against known paths.
type Resolution struct {
	Resolved   []string // known workspace paths, mention order preserved
	Unresolved []string // mentions that matched nothing
}

// Resolve matches mentions against the known workspace paths.
// Exact normalized match wins; otherwise the first known path whose suffix
// is "/"+mention matches (tolerates a bare filename for a nested path).
// Same-named files in different directories are not disambiguated further;
// first match over the given order wins.
func Resolve(mentions []string, knownPaths []string) Resolution {
	var res Resolution
	seen := make(map[string]bool)

	for _, m := range mentions {
		norm := contextbundle.Normalize(m)
		if norm == "" {
			continue
		}

		match := ""
		for _, known := range knownPaths {
			if known == norm {
				match = known
				break
			}
		}
		if match == "" {
			for _, known := range knownPaths {
				if strings.HasSuffix(known, "/"+norm) {
					match = known
					break
				}
			}
		}

		if match == "" {
			if !seen["!"+norm] {
				seen["!"+norm] = true
				res.Unresolved = append(res.Unresolved, norm)
			}
			continue
		}
		if !seen[match] {
			seen[match] = true
			res.Resolved = append(res.Resolved, match)
		}
	}

	return res
}

// pathPattern is deliberately permissive: over-matching is fine because
// resolution against known paths filters false positives.
var pathPattern = regexp.MustCompile(`[\w\\/.-]+\.[A-Za-z0-9]{1,6}\b`)

// activeAliases are phrasings that explicitly name the focused editor.
var activeAliases = []string{
	"this file", "current file", "the open file", "active file",
	"file i'm in", "file im in", "this buffer", "current buffer",
}

// modificationVerbs route vague change requests at the active buffer.
var modificationVerbs = []string{
	"fix", "change", "refactor", "update", "improve",
	"rewrite", "modify", "optimize", "optimise", "clean up",
}

// RegexStrategy is the default mention heuristic.
type RegexStrategy struct{}

// ExtractMentions returns path-like tokens found in text, first occurrence
// order, duplicates removed.
func (RegexStrategy) ExtractMentions(text string) []string {
	raw := pathPattern.FindAllString(text, -1)

	var out []string
	seen := make(map[string]bool)
	for _, m := range raw {
		m = strings.Trim(m, ".")
		if m == "" || !strings.Contains(m, ".") {
			continue
		}
		norm := contextbundle.Normalize(m)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, m)
	}
	return out
}

// ImpliesActiveEditor reports whether the text targets the focused editor:
// either an explicit alias for it, or a modification verb with no explicit
// file mentioned.
func (RegexStrategy) ImpliesActiveEditor(text string, mentions []string) bool {
	lower := strings.ToLower(text)

	for _, alias := range activeAliases {
		if strings.Contains(lower, alias) {
			return true
		}
	}

	if len(mentions) > 0 {
		return false
	}
	for _, verb := range modificationVerbs {
		if containsWord(lower, verb) {
			return true
		}
	}
	return false
}

// containsWord reports whether text contains word bounded by non-letters.
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isLetter(text[start-1])
		afterOK := end == len(text) || !isLetter(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
