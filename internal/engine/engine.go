package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dl/reglens/internal/pattern"
)

// Mode selects how much of the text a single Execute call covers.
type Mode int

const (
	FirstMatch Mode = iota // stop after the first match
	AllMatches             // every non-overlapping match, left to right
)

// Span is a half-open byte range [Start, End) into the input text.
type Span struct {
	Start int
	End   int
}

// Contains reports whether the byte at off falls inside the span.
func (s Span) Contains(off int) bool { return off >= s.Start && off < s.End }

func (s Span) Len() int { return s.End - s.Start }

// MatchAttempt is one successful run of the pattern against the text.
// Groups maps a capture index to every span the group bound during
// the attempt, in match-chronological order; a quantified group binds
// once per iteration. Unbound groups are absent from the map.
type MatchAttempt struct {
	Span   Span
	Groups map[int][]Span
}

// ExecutionError reports an engine-internal fault, as opposed to a
// normal "no match" outcome.
type ExecutionError struct {
	Reason string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execution failed: %s: %v", e.Reason, e.Err)
	}
	return "execution failed: " + e.Reason
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TimedOutError reports that matching exceeded its time budget. The
// text or pattern is too complex for interactive use; editing either
// one recovers.
type TimedOutError struct{}

func (e *TimedOutError) Error() string { return "match too complex: time budget exceeded" }

// runner is the narrow surface the two backends share. Result rows
// follow the regexp package convention: one index pair per submatch,
// -1 for an unbound group.
type runner interface {
	findAll(data []byte, limit int) [][]int
	close()
}

// Engine executes a compiled pattern against input text and
// reassembles per-group capture bindings, including every iteration
// of a quantified group.
type Engine struct {
	tree    *pattern.Tree
	run     runner
	remap   []int // capture index -> compiled submatch index
	regions []*quantRegion
}

// New compiles the pattern behind tree for execution. The RE2 backend
// is the default; patterns that need backreferences, lookaround or
// possessive quantifiers are routed to the PCRE2 backend instead.
func New(tree *pattern.Tree) (*Engine, error) {
	compile := compileRE2
	if tree.NeedsBacktracking() {
		compile = compilePCRE
	}

	e := &Engine{tree: tree}

	inst := instrument(tree)
	if inst != nil {
		run, err := compile(inst.source)
		if err == nil {
			e.run = run
			e.remap = inst.remap
			e.regions = inst.regions
			if err := e.compileBodies(compile); err != nil {
				e.Close()
				return nil, err
			}
			return e, nil
		}
		// instrumented form rejected; run the pattern as written and
		// settle for final bindings
	}

	run, err := compile(tree.Source)
	if err != nil {
		return nil, &pattern.ParseError{Pos: 0, Reason: "engine rejected pattern: " + err.Error()}
	}
	e.run = run
	e.remap = identityRemap(tree.MaxCapture())
	e.regions = nil
	return e, nil
}

func (e *Engine) compileBodies(compile func(string) (runner, error)) error {
	kept := e.regions[:0]
	for _, r := range e.regions {
		run, err := compile(`\A(?:` + r.bodySrc + `)`)
		if err != nil {
			// region body does not compile standalone; skip replay for it
			continue
		}
		r.body = run
		kept = append(kept, r)
	}
	e.regions = kept
	return nil
}

func identityRemap(maxCapture int) []int {
	remap := make([]int, maxCapture+1)
	for i := range remap {
		remap[i] = i
	}
	return remap
}

// Close releases compiled regex resources.
func (e *Engine) Close() {
	if e.run != nil {
		e.run.close()
	}
	for _, r := range e.regions {
		if r.body != nil {
			r.body.close()
		}
	}
}

// Execute runs the compiled pattern over text. An empty result is the
// normal no-match outcome, not an error. Identical (pattern, text)
// inputs always produce identical output. When ctx expires before the
// backend finishes, the run is abandoned and a TimedOutError (for a
// deadline) or the context error (for cancellation) is returned.
func (e *Engine) Execute(ctx context.Context, text string, mode Mode) ([]MatchAttempt, error) {
	limit := -1
	if mode == FirstMatch {
		limit = 1
	}
	data := []byte(text)

	ch := make(chan [][]int, 1)
	go func() {
		ch <- e.run.findAll(data, limit)
	}()

	var rows [][]int
	select {
	case rows = <-ch:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimedOutError{}
		}
		return nil, ctx.Err()
	}

	attempts := make([]MatchAttempt, 0, len(rows))
	for _, row := range rows {
		a := MatchAttempt{
			Span:   Span{row[0], row[1]},
			Groups: make(map[int][]Span),
		}
		for capture := 1; capture <= e.tree.MaxCapture(); capture++ {
			ci := e.remap[capture]
			if 2*ci+1 < len(row) && row[2*ci] >= 0 {
				a.Groups[capture] = []Span{{row[2*ci], row[2*ci+1]}}
			}
		}
		e.replay(data, row, &a)
		attempts = append(attempts, a)
	}
	return attempts, nil
}
