package engine

import (
	"sort"
	"strings"

	"github.com/dl/reglens/internal/pattern"
)

// Both backends report only the final binding of a capture group
// inside a quantifier. To recover the full iteration history, the
// pattern is instrumented before compilation: every outermost
// quantifier that encloses a capture group is wrapped in a synthetic
// group, so one execution yields the quantifier's full span. The
// quantifier body is then re-matched anchored across that span, one
// iteration at a time, and each iteration's bindings are appended in
// order. If the iterations do not exactly tile the span, the replay
// is discarded and the final bindings stand.

// quantRegion is one instrumented quantifier.
type quantRegion struct {
	wrapIdx int    // submatch index of the synthetic wrapper group
	bodySrc string // source of the quantifier's operand
	body    runner // anchored one-iteration matcher, compiled in New
	origs   []int  // capture indexes inside the region, in source order
	locals  []int  // parallel body-local submatch index for each orig
}

type instrumentation struct {
	source  string
	remap   []int
	regions []*quantRegion
}

// instrument builds the wrapped pattern source and the capture-index
// remapping it induces. Returns nil when there is nothing to replay,
// or when the pattern contains backreferences (inserting groups would
// shift the numbers they refer to).
func instrument(tree *pattern.Tree) *instrumentation {
	if tree.HasBackref() {
		return nil
	}

	var quants []*pattern.Node
	tree.Walk(func(n *pattern.Node) bool {
		if n.Kind == pattern.KindQuantifier && containsCapture(n) {
			quants = append(quants, n)
			return false // outermost regions only
		}
		return true
	})
	if len(quants) == 0 {
		return nil
	}

	// Capture numbering follows '(' order in the instrumented source.
	// A synthetic open inserted at offset X precedes an original open
	// at the same offset.
	type open struct {
		offset    int
		synthetic bool
		capture   int           // original capture index, 0 for synthetic
		quant     *pattern.Node // synthetic only
	}
	var opens []open
	for i := 1; i <= tree.MaxCapture(); i++ {
		g, _ := tree.Group(i)
		opens = append(opens, open{offset: g.Span.Start, capture: i})
	}
	for _, q := range quants {
		opens = append(opens, open{offset: q.Span.Start, synthetic: true, quant: q})
	}
	sort.SliceStable(opens, func(i, j int) bool {
		if opens[i].offset != opens[j].offset {
			return opens[i].offset < opens[j].offset
		}
		return opens[i].synthetic && !opens[j].synthetic
	})

	inst := &instrumentation{remap: make([]int, tree.MaxCapture()+1)}
	byQuant := make(map[*pattern.Node]*quantRegion)
	for i, o := range opens {
		idx := i + 1
		if o.synthetic {
			r := &quantRegion{wrapIdx: idx, bodySrc: bodySource(tree, o.quant)}
			byQuant[o.quant] = r
			inst.regions = append(inst.regions, r)
		} else {
			inst.remap[o.capture] = idx
		}
	}

	// body-local submatch indexes for the captures inside each region
	for _, q := range quants {
		r := byQuant[q]
		groups := capturesIn(q)
		for local, g := range groups {
			r.origs = append(r.origs, g.Capture)
			r.locals = append(r.locals, local+1)
		}
	}

	inst.source = rewrite(tree.Source, quants)
	return inst
}

func containsCapture(n *pattern.Node) bool {
	if n.Kind == pattern.KindGroup && n.Capture > 0 {
		return true
	}
	for _, c := range n.Children {
		if containsCapture(c) {
			return true
		}
	}
	return false
}

// capturesIn returns the capture groups in n's subtree in source
// order, which is also their numbering order in the body source.
func capturesIn(n *pattern.Node) []*pattern.Node {
	var groups []*pattern.Node
	var walk func(*pattern.Node)
	walk = func(n *pattern.Node) {
		if n.Kind == pattern.KindGroup && n.Capture > 0 {
			groups = append(groups, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Span.Start < groups[j].Span.Start })
	return groups
}

// bodySource is the quantifier's operand as written, without the
// repetition operator.
func bodySource(tree *pattern.Tree, q *pattern.Node) string {
	atom := q.Children[0]
	return tree.Source[atom.Span.Start:atom.Span.End]
}

// rewrite inserts a synthetic '(' before and ')' after every region.
// Regions are disjoint, so at a shared boundary the earlier region's
// close precedes the later region's open.
func rewrite(src string, quants []*pattern.Node) string {
	opens := make(map[int]int)
	closes := make(map[int]int)
	for _, q := range quants {
		opens[q.Span.Start]++
		closes[q.Span.End]++
	}

	var b strings.Builder
	b.Grow(len(src) + 2*len(quants))
	for i := 0; i <= len(src); i++ {
		for n := closes[i]; n > 0; n-- {
			b.WriteByte(')')
		}
		for n := opens[i]; n > 0; n-- {
			b.WriteByte('(')
		}
		if i < len(src) {
			b.WriteByte(src[i])
		}
	}
	return b.String()
}

// replay re-matches each instrumented region's body across the span
// the wrapper group bound, appending one binding per iteration. The
// replay only replaces the final bindings when the iterations tile
// the region span exactly.
func (e *Engine) replay(data []byte, row []int, a *MatchAttempt) {
	for _, r := range e.regions {
		if r.body == nil || 2*r.wrapIdx+1 >= len(row) {
			continue
		}
		qs, qe := row[2*r.wrapIdx], row[2*r.wrapIdx+1]
		if qs < 0 || qs == qe {
			// unbound, or an empty sweep: nothing to recover
			continue
		}

		recovered := make(map[int][]Span)
		pos := qs
		ok := true
		for pos < qe {
			rows := r.body.findAll(data[pos:qe], 1)
			if len(rows) == 0 || rows[0][1] == 0 {
				ok = false
				break
			}
			m := rows[0]
			for i, local := range r.locals {
				if 2*local+1 < len(m) && m[2*local] >= 0 {
					orig := r.origs[i]
					recovered[orig] = append(recovered[orig],
						Span{pos + m[2*local], pos + m[2*local+1]})
				}
			}
			pos += m[1]
		}
		if !ok || pos != qe {
			continue
		}

		for _, orig := range r.origs {
			if spans := recovered[orig]; len(spans) > 0 {
				a.Groups[orig] = spans
			} else {
				delete(a.Groups, orig)
			}
		}
	}
}
