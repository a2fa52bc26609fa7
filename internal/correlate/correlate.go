package correlate

import (
	"fmt"
	"sort"

	"github.com/dl/reglens/internal/engine"
	"github.com/dl/reglens/internal/pattern"
)

// Map is the bidirectional correlation between pattern nodes and the
// text spans they matched. ByNode lists each node's spans in binding
// order across all attempts; BySpan is the exact-span inverse, with
// node ids sorted ascending. Overlapping but unequal spans stay
// distinct keys.
type Map struct {
	ByNode map[int][]engine.Span
	BySpan map[engine.Span][]int
}

// StaleTreeError reports a capture index in the attempts with no
// corresponding group node in the tree: the caller correlated
// artifacts from two different documents and must rebuild the tree.
type StaleTreeError struct {
	Capture int
}

func (e *StaleTreeError) Error() string {
	return fmt.Sprintf("capture group %d has no node in the pattern tree", e.Capture)
}

// Correlate aligns a parsed pattern with the spans it matched. The
// result is built completely before it is returned; on error no
// partial map escapes. Correlating zero attempts yields a valid,
// empty map.
func Correlate(tree *pattern.Tree, attempts []engine.MatchAttempt) (*Map, error) {
	for _, a := range attempts {
		for capture := range a.Groups {
			if _, ok := tree.Group(capture); !ok {
				return nil, &StaleTreeError{Capture: capture}
			}
		}
	}

	m := &Map{
		ByNode: make(map[int][]engine.Span),
		BySpan: make(map[engine.Span][]int),
	}

	for _, a := range attempts {
		// The overall span belongs to the root, unless the root is
		// itself a group already carrying the same binding.
		root := tree.Root
		if root.Kind != pattern.KindGroup || root.Capture == 0 || len(a.Groups[root.Capture]) == 0 {
			m.add(root.ID, a.Span)
		}

		for capture := 1; capture <= tree.MaxCapture(); capture++ {
			spans := a.Groups[capture]
			if len(spans) == 0 {
				// a group may be unbound in one attempt and bound in
				// the next; it simply contributes nothing here
				continue
			}
			g, _ := tree.Group(capture)
			for _, s := range spans {
				m.add(g.ID, s)
			}
			m.inherit(g, spans)
		}

		if root.Kind == pattern.KindGroup {
			m.inherit(root, []engine.Span{a.Span})
		}
	}

	for s := range m.BySpan {
		ids := m.BySpan[s]
		sort.Ints(ids)
		m.BySpan[s] = dedupe(ids)
	}
	return m, nil
}

// inherit assigns a bound group's spans to descendants whose source
// range covers the group's whole body. That is the only unambiguous
// case; a concatenation element or an alternation branch consumed an
// unknown slice of the span and is left out.
func (m *Map) inherit(g *pattern.Node, spans []engine.Span) {
	n := g
	for n.Kind == pattern.KindGroup && len(n.Children) == 1 {
		c := n.Children[0]
		if c.Kind == pattern.KindGroup && c.Capture > 0 {
			// carries its own bindings
			return
		}
		for _, s := range spans {
			m.add(c.ID, s)
		}
		n = c
	}
}

func (m *Map) add(id int, s engine.Span) {
	m.ByNode[id] = append(m.ByNode[id], s)
	m.BySpan[s] = append(m.BySpan[s], id)
}

func dedupe(sorted []int) []int {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// Spans returns the spans bound to a node, in binding order. The
// returned slice is shared; callers must not mutate it.
func (m *Map) Spans(nodeID int) []engine.Span {
	return m.ByNode[nodeID]
}

// NodesAt returns the ids of the nodes that produced exactly this
// span, sorted ascending.
func (m *Map) NodesAt(s engine.Span) []int {
	return m.BySpan[s]
}

// Covering returns every node id with a span containing the byte at
// off, along with those spans. Nodes are sorted and deduplicated;
// spans are sorted by start then end.
func (m *Map) Covering(off int) ([]int, []engine.Span) {
	var ids []int
	var spans []engine.Span
	for s, nodes := range m.BySpan {
		if !s.Contains(off) {
			continue
		}
		spans = append(spans, s)
		ids = append(ids, nodes...)
	}
	sort.Ints(ids)
	ids = dedupe(ids)
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	return ids, spans
}
