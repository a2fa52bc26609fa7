package pattern

import "fmt"

// Kind identifies the syntactic role of a node. The set is closed:
// consumers switch over it exhaustively.
type Kind int

const (
	KindLiteral Kind = iota
	KindCharClass
	KindAnyChar
	KindGroup
	KindAlternation
	KindConcat
	KindQuantifier
	KindAnchor
	KindBackref
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindCharClass:
		return "class"
	case KindAnyChar:
		return "any"
	case KindGroup:
		return "group"
	case KindAlternation:
		return "alternation"
	case KindConcat:
		return "concat"
	case KindQuantifier:
		return "quantifier"
	case KindAnchor:
		return "anchor"
	case KindBackref:
		return "backref"
	}
	return "unknown"
}

// Span is a half-open byte range [Start, End) into the pattern source.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

// Node is one syntactic element of a parsed pattern. IDs are assigned
// in preorder, so a node keeps its id across reparses as long as the
// source before its position is unchanged.
type Node struct {
	ID       int
	Kind     Kind
	Span     Span
	Children []*Node

	// Group fields. Capture is the 1-based capture index, 0 for
	// non-capturing and lookaround groups.
	Capture int
	Name    string

	// Quantifier bounds. Max is -1 when unbounded.
	Min    int
	Max    int
	Greedy bool

	// Backreference target capture index.
	Ref int
}

// Tree is the parsed form of a pattern source string.
type Tree struct {
	Root   *Node
	Source string

	nodes  []*Node
	groups map[int]*Node

	hasBackref    bool
	hasLookaround bool
	hasPossessive bool
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node with the given id, or nil if no such node
// exists in this tree.
func (t *Tree) Node(id int) *Node {
	if id < 0 || id >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Group returns the capturing group node with the given 1-based
// capture index.
func (t *Tree) Group(capture int) (*Node, bool) {
	n, ok := t.groups[capture]
	return n, ok
}

// MaxCapture returns the highest capture index in the pattern.
func (t *Tree) MaxCapture() int { return len(t.groups) }

// Walk visits every node in preorder. Returning false skips the
// node's children.
func (t *Tree) Walk(fn func(*Node) bool) {
	var walk func(n *Node)
	walk = func(n *Node) {
		if !fn(n) {
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
}

// NeedsBacktracking reports whether the pattern uses features the RE2
// engine cannot execute (backreferences, lookaround, possessive or
// atomic quantification).
func (t *Tree) NeedsBacktracking() bool {
	return t.hasBackref || t.hasLookaround || t.hasPossessive
}

// HasBackref reports whether the pattern contains a backreference.
func (t *Tree) HasBackref() bool { return t.hasBackref }

// number assigns preorder ids and builds the id lookup table.
func (t *Tree) number() {
	t.nodes = t.nodes[:0]
	var walk func(n *Node)
	walk = func(n *Node) {
		n.ID = len(t.nodes)
		t.nodes = append(t.nodes, n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
}

// ParseError reports a syntactically invalid pattern. Pos is the byte
// offset of the offending character (or the end of the source for
// truncation errors) so a caller can point at it.
type ParseError struct {
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid pattern at byte %d: %s", e.Pos, e.Reason)
}
