package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dl/reglens/internal/pattern"
)

func mustEngine(t *testing.T, source string) (*Engine, *pattern.Tree) {
	t.Helper()
	tree, err := pattern.Build(source)
	if err != nil {
		t.Fatalf("Build(%q) error: %v", source, err)
	}
	e, err := New(tree)
	if err != nil {
		t.Fatalf("New(%q) error: %v", source, err)
	}
	t.Cleanup(e.Close)
	return e, tree
}

func TestExecute_GroupSpans(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		text      string
		mode      Mode
		wantSpans []Span
		wantGroups []map[int][]Span
	}{
		{
			name:      "plus group and bound optional group",
			pattern:   "(a+)(b)?",
			text:      "aaab",
			mode:      FirstMatch,
			wantSpans: []Span{{0, 4}},
			wantGroups: []map[int][]Span{
				{1: {{0, 3}}, 2: {{3, 4}}},
			},
		},
		{
			name:      "unbound optional group is absent",
			pattern:   "(a+)(b)?",
			text:      "aaa",
			mode:      FirstMatch,
			wantSpans: []Span{{0, 3}},
			wantGroups: []map[int][]Span{
				{1: {{0, 3}}},
			},
		},
		{
			name:      "quantified group binds once per iteration",
			pattern:   "(ab)+",
			text:      "ababab",
			mode:      AllMatches,
			wantSpans: []Span{{0, 6}},
			wantGroups: []map[int][]Span{
				{1: {{0, 2}, {2, 4}, {4, 6}}},
			},
		},
		{
			name:      "multiple attempts in all-matches mode",
			pattern:   "(ab)+",
			text:      "ab-abab",
			mode:      AllMatches,
			wantSpans: []Span{{0, 2}, {3, 7}},
			wantGroups: []map[int][]Span{
				{1: {{0, 2}}},
				{1: {{3, 5}, {5, 7}}},
			},
		},
		{
			name:      "first-match mode stops early",
			pattern:   "a+",
			text:      "aa aa aa",
			mode:      FirstMatch,
			wantSpans: []Span{{0, 2}},
			wantGroups: []map[int][]Span{{}},
		},
		{
			name:       "no match is empty and non-failing",
			pattern:    "(a+)(b)?",
			text:       "zzz",
			mode:       AllMatches,
			wantSpans:  nil,
			wantGroups: nil,
		},
		{
			name:      "nested groups under a quantifier",
			pattern:   "((a)(b))+",
			text:      "abab",
			mode:      FirstMatch,
			wantSpans: []Span{{0, 4}},
			wantGroups: []map[int][]Span{
				{
					1: {{0, 2}, {2, 4}},
					2: {{0, 1}, {2, 3}},
					3: {{1, 2}, {3, 4}},
				},
			},
		},
		{
			name:      "backreference routes to pcre",
			pattern:   `(\w+) \1`,
			text:      "ha ha!",
			mode:      FirstMatch,
			wantSpans: []Span{{0, 5}},
			wantGroups: []map[int][]Span{
				{1: {{0, 2}}},
			},
		},
		{
			name:      "lookahead routes to pcre",
			pattern:   `(a)(?=b)`,
			text:      "ab",
			mode:      FirstMatch,
			wantSpans: []Span{{0, 1}},
			wantGroups: []map[int][]Span{
				{1: {{0, 1}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := mustEngine(t, tt.pattern)
			attempts, err := e.Execute(context.Background(), tt.text, tt.mode)
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			if len(attempts) != len(tt.wantSpans) {
				t.Fatalf("got %d attempts, want %d", len(attempts), len(tt.wantSpans))
			}
			for i, a := range attempts {
				if a.Span != tt.wantSpans[i] {
					t.Errorf("attempt %d span = %v, want %v", i, a.Span, tt.wantSpans[i])
				}
				if diff := cmp.Diff(tt.wantGroups[i], a.Groups); diff != "" {
					t.Errorf("attempt %d groups mismatch (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

func TestExecute_Bounds(t *testing.T) {
	texts := []string{"", "b", "aaab", "xayazb", "aaaaaaab"}
	e, _ := mustEngine(t, "(a+)(b)?")

	for _, text := range texts {
		attempts, err := e.Execute(context.Background(), text, AllMatches)
		if err != nil {
			t.Fatalf("Execute(%q) error: %v", text, err)
		}
		for _, a := range attempts {
			check := func(s Span) {
				if s.Start < 0 || s.Start > s.End || s.End > len(text) {
					t.Errorf("text %q: span %v out of bounds", text, s)
				}
			}
			check(a.Span)
			for _, spans := range a.Groups {
				for _, s := range spans {
					check(s)
				}
			}
		}
	}
}

func TestExecute_Deterministic(t *testing.T) {
	e, _ := mustEngine(t, `(\w+)@(\w+)`)
	text := "a@b c@d e@f"

	first, err := e.Execute(context.Background(), text, AllMatches)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Execute(context.Background(), text, AllMatches)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
	}
}

// stallRunner blocks long enough for the deadline to fire.
type stallRunner struct {
	delay time.Duration
}

func (r *stallRunner) findAll(data []byte, limit int) [][]int {
	time.Sleep(r.delay)
	return nil
}

func (r *stallRunner) close() {}

func TestExecute_TimedOut(t *testing.T) {
	tree, err := pattern.Build("a+")
	if err != nil {
		t.Fatal(err)
	}
	e := &Engine{tree: tree, run: &stallRunner{delay: time.Second}, remap: identityRemap(0)}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = e.Execute(ctx, "aaaa", AllMatches)
	var timedOut *TimedOutError
	if !errors.As(err, &timedOut) {
		t.Fatalf("error = %v, want *TimedOutError", err)
	}
}

func TestExecute_Canceled(t *testing.T) {
	tree, err := pattern.Build("a+")
	if err != nil {
		t.Fatal(err)
	}
	e := &Engine{tree: tree, run: &stallRunner{delay: time.Second}, remap: identityRemap(0)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Execute(ctx, "aaaa", AllMatches)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestExpandTemplate(t *testing.T) {
	e, tree := mustEngine(t, `(?P<user>\w+)@(\w+)`)
	text := "mail me: dan@example today"
	attempts, err := e.Execute(context.Background(), text, FirstMatch)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 {
		t.Fatalf("got %d attempts, want 1", len(attempts))
	}
	a := attempts[0]

	tests := []struct {
		tmpl string
		want string
	}{
		{tmpl: "$0", want: "dan@example"},
		{tmpl: "$2/$1", want: "example/dan"},
		{tmpl: "${user} at ${2}", want: "dan at example"},
		{tmpl: "$$1 = $1", want: "$1 = dan"},
		{tmpl: "$9", want: ""},
		{tmpl: "${missing}", want: ""},
		{tmpl: "plain", want: "plain"},
	}

	for _, tt := range tests {
		if got := ExpandTemplate(tt.tmpl, tree, a, text); got != tt.want {
			t.Errorf("ExpandTemplate(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}
