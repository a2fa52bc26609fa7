package highlight

import (
	"github.com/dl/reglens/internal/correlate"
	"github.com/dl/reglens/internal/engine"
	"github.com/dl/reglens/internal/pattern"
)

// TargetKind says which side of the correlation a target points at.
type TargetKind int

const (
	TargetNone   TargetKind = iota
	TargetNode              // a pattern node id
	TargetOffset            // a byte offset into the text
)

// Target is the current hover/selection: a pattern node, a text
// offset, or nothing. At most one side is active at a time.
type Target struct {
	Kind   TargetKind
	Node   int
	Offset int
}

// NoTarget clears the selection.
func NoTarget() Target { return Target{} }

// NodeTarget selects a pattern node by id.
func NodeTarget(id int) Target { return Target{Kind: TargetNode, Node: id} }

// OffsetTarget selects a byte offset into the input text.
func OffsetTarget(off int) Target { return Target{Kind: TargetOffset, Offset: off} }

// HighlightSet is what the renderer should emphasize: pattern node
// ids on one side, text spans on the other.
type HighlightSet struct {
	Nodes []int
	Spans []engine.Span
}

// Empty reports whether there is nothing to highlight.
func (h HighlightSet) Empty() bool { return len(h.Nodes) == 0 && len(h.Spans) == 0 }

// Select derives the highlight set for a target from the latest
// correlation. A stale target — a node id or offset that no longer
// exists after a rebuild — yields an empty set, never an error.
func Select(tree *pattern.Tree, m *correlate.Map, textLen int, target Target) HighlightSet {
	if tree == nil || m == nil {
		return HighlightSet{}
	}

	switch target.Kind {
	case TargetNode:
		n := tree.Node(target.Node)
		if n == nil {
			return HighlightSet{}
		}
		spans := m.Spans(n.ID)
		return HighlightSet{
			Nodes: []int{n.ID},
			Spans: append([]engine.Span(nil), spans...),
		}

	case TargetOffset:
		if target.Offset < 0 || target.Offset >= textLen {
			return HighlightSet{}
		}
		nodes, spans := m.Covering(target.Offset)
		return HighlightSet{Nodes: nodes, Spans: spans}
	}
	return HighlightSet{}
}
