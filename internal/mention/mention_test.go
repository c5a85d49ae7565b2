package mention

import (
	"reflect"
	"testing"
)

func TestExtractMentions(t *testing.T) {
	var s RegexStrategy

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single path",
			text: "look at src/main.go please",
			want: []string{"src/main.go"},
		},
		{
			name: "multiple paths in order",
			text: "compare utils.py and lib/helpers.js carefully",
			want: []string{"utils.py", "lib/helpers.js"},
		},
		{
			name: "duplicates removed",
			text: "main.go calls main.go again, also Main.GO",
			want: []string{"main.go"},
		},
		{
			name: "windows separators",
			text: `open src\win\app.c`,
			want: []string{`src\win\app.c`},
		},
		{
			name: "trailing sentence period stripped",
			text: "please fix sum.c.",
			want: []string{"sum.c"},
		},
		{
			name: "no paths",
			text: "explain how the scheduler works",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.ExtractMentions(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractMentions(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestImpliesActiveEditor(t *testing.T) {
	var s RegexStrategy

	tests := []struct {
		name     string
		text     string
		mentions []string
		want     bool
	}{
		{"explicit alias", "what does this file do?", nil, true},
		{"alias wins over mention", "compare this file with main.go", []string{"main.go"}, true},
		{"verb no mention", "fix the off-by-one error", nil, true},
		{"verb with mention", "fix the bug in sum.c", []string{"sum.c"}, false},
		{"verb inside word", "the prefix lookup is slow", nil, false},
		{"question only", "what is a goroutine?", nil, false},
		{"refactor request", "please refactor for readability", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.ImpliesActiveEditor(tt.text, tt.mentions)
			if got != tt.want {
				t.Errorf("ImpliesActiveEditor(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	known := []string{
		"cmd/app/main.go",
		"internal/util/util.go",
		"pkg/a/sum.c",
		"pkg/b/sum.c",
		"readme.md",
	}

	tests := []struct {
		name           string
		mentions       []string
		wantResolved   []string
		wantUnresolved []string
	}{
		{
			name:         "exact match",
			mentions:     []string{"readme.md"},
			wantResolved: []string{"readme.md"},
		},
		{
			name:         "exact normalized match",
			mentions:     []string{"./README.MD"},
			wantResolved: []string{"readme.md"},
		},
		{
			name:         "suffix match on bare filename",
			mentions:     []string{"main.go"},
			wantResolved: []string{"cmd/app/main.go"},
		},
		{
			name:         "suffix match with partial directory",
			mentions:     []string{"util/util.go"},
			wantResolved: []string{"internal/util/util.go"},
		},
		{
			name:         "ambiguous takes first known",
			mentions:     []string{"sum.c"},
			wantResolved: []string{"pkg/a/sum.c"},
		},
		{
			name:           "unresolved kept",
			mentions:       []string{"ghost.rs"},
			wantUnresolved: []string{"ghost.rs"},
		},
		{
			name:           "mixed, duplicates collapse",
			mentions:       []string{"main.go", "cmd/app/main.go", "nope.txt"},
			wantResolved:   []string{"cmd/app/main.go"},
			wantUnresolved: []string{"nope.txt"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.mentions, known)
			if !reflect.DeepEqual(got.Resolved, tt.wantResolved) {
				t.Errorf("Resolved = %v, want %v", got.Resolved, tt.wantResolved)
			}
			if !reflect.DeepEqual(got.Unresolved, tt.wantUnresolved) {
				t.Errorf("Unresolved = %v, want %v", got.Unresolved, tt.wantUnresolved)
			}
		})
	}
}
