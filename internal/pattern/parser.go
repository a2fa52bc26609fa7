package pattern

import (
	"strings"
	"unicode/utf8"
)

// maxRepeat caps explicit {n,m} bounds, matching the RE2 limit.
const maxRepeat = 1000

// Build parses a pattern source string into a Tree. The root node
// always covers the full source range; an empty pattern yields a
// single empty concatenation node. Build has no side effects and is
// cheap enough to call on every keystroke.
func Build(source string) (*Tree, error) {
	p := &parser{src: source, nextCapture: 1, groups: make(map[int]*Node)}
	root, err := p.alternation()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.src) {
		// alternation stops at ')' it did not open
		return nil, &ParseError{Pos: p.pos, Reason: "unexpected )"}
	}

	t := &Tree{
		Root:          root,
		Source:        source,
		groups:        p.groups,
		hasBackref:    p.hasBackref,
		hasLookaround: p.hasLookaround,
		hasPossessive: p.hasPossessive,
	}
	t.number()

	if err := validateBackrefs(t); err != nil {
		return nil, err
	}
	return t, nil
}

func validateBackrefs(t *Tree) error {
	var bad *ParseError
	t.Walk(func(n *Node) bool {
		if bad != nil {
			return false
		}
		if n.Kind != KindBackref {
			return true
		}
		if n.Name != "" {
			for _, g := range t.groups {
				if g.Name == n.Name {
					n.Ref = g.Capture
					return true
				}
			}
			bad = &ParseError{Pos: n.Span.Start, Reason: "reference to unknown group name " + n.Name}
			return false
		}
		if n.Ref < 1 || n.Ref > t.MaxCapture() {
			bad = &ParseError{Pos: n.Span.Start, Reason: "invalid backreference"}
			return false
		}
		return true
	})
	if bad != nil {
		return bad
	}
	return nil
}

type parser struct {
	src         string
	pos         int
	nextCapture int
	groups      map[int]*Node

	hasBackref    bool
	hasLookaround bool
	hasPossessive bool
}

// alternation = concat ('|' concat)*
func (p *parser) alternation() (*Node, error) {
	start := p.pos
	first, err := p.concat()
	if err != nil {
		return nil, err
	}
	branches := []*Node{first}
	for p.pos < len(p.src) && p.src[p.pos] == '|' {
		p.pos++
		b, err := p.concat()
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	if len(branches) == 1 {
		return first, nil
	}
	return &Node{
		Kind:     KindAlternation,
		Span:     Span{start, branches[len(branches)-1].Span.End},
		Children: branches,
	}, nil
}

// concat parses atoms until '|', ')' or end of input. Adjacent
// unquantified literals coalesce into a single node, the way they
// render as a single run.
func (p *parser) concat() (*Node, error) {
	start := p.pos
	var atoms []*Node
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '|' || c == ')' {
			break
		}
		atom, err := p.atom()
		if err != nil {
			return nil, err
		}
		atom, err = p.quantify(atom)
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, atom)
	}
	atoms = coalesceLiterals(atoms)

	switch len(atoms) {
	case 0:
		return &Node{Kind: KindConcat, Span: Span{start, start}}, nil
	case 1:
		return atoms[0], nil
	}
	return &Node{
		Kind:     KindConcat,
		Span:     Span{start, atoms[len(atoms)-1].Span.End},
		Children: atoms,
	}, nil
}

func coalesceLiterals(atoms []*Node) []*Node {
	out := atoms[:0]
	for _, a := range atoms {
		if len(out) > 0 {
			last := out[len(out)-1]
			if last.Kind == KindLiteral && a.Kind == KindLiteral && last.Span.End == a.Span.Start {
				last.Span.End = a.Span.End
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

func (p *parser) atom() (*Node, error) {
	start := p.pos
	switch c := p.src[p.pos]; c {
	case '(':
		return p.group()
	case '[':
		return p.class()
	case '.':
		p.pos++
		return &Node{Kind: KindAnyChar, Span: Span{start, p.pos}}, nil
	case '^', '$':
		p.pos++
		return &Node{Kind: KindAnchor, Span: Span{start, p.pos}}, nil
	case '\\':
		return p.escape()
	case '*', '+', '?':
		return nil, &ParseError{Pos: p.pos, Reason: "missing argument to repetition operator"}
	case '{':
		if _, _, _, ok := p.bounds(p.pos); ok {
			return nil, &ParseError{Pos: p.pos, Reason: "missing argument to repetition operator"}
		}
		p.pos++
		return &Node{Kind: KindLiteral, Span: Span{start, p.pos}}, nil
	default:
		_, size := utf8.DecodeRuneInString(p.src[p.pos:])
		p.pos += size
		return &Node{Kind: KindLiteral, Span: Span{start, p.pos}}, nil
	}
}

// quantify wraps atom in a quantifier node if one follows it.
func (p *parser) quantify(atom *Node) (*Node, error) {
	if p.pos >= len(p.src) {
		return atom, nil
	}

	var min, max int
	switch p.src[p.pos] {
	case '*':
		min, max = 0, -1
	case '+':
		min, max = 1, -1
	case '?':
		min, max = 0, 1
	case '{':
		lo, hi, end, ok := p.bounds(p.pos)
		if !ok {
			return atom, nil
		}
		if hi != -1 && hi < lo {
			return nil, &ParseError{Pos: p.pos, Reason: "invalid repeat count"}
		}
		if lo > maxRepeat || hi > maxRepeat {
			return nil, &ParseError{Pos: p.pos, Reason: "invalid repeat count"}
		}
		min, max = lo, hi
		p.pos = end - 1 // leave one byte for the shared pos++ below
	default:
		return atom, nil
	}
	p.pos++

	q := &Node{
		Kind:     KindQuantifier,
		Min:      min,
		Max:      max,
		Greedy:   true,
		Children: []*Node{atom},
	}

	// laziness or possessiveness suffix
	if p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '?':
			q.Greedy = false
			p.pos++
		case '+':
			p.hasPossessive = true
			p.pos++
		}
	}
	q.Span = Span{atom.Span.Start, p.pos}

	// a quantifier may not directly quantify another
	if p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '*', '+', '?':
			return nil, &ParseError{Pos: p.pos, Reason: "invalid nested repetition operator"}
		case '{':
			if _, _, _, ok := p.bounds(p.pos); ok {
				return nil, &ParseError{Pos: p.pos, Reason: "invalid nested repetition operator"}
			}
		}
	}
	return q, nil
}

// bounds tries to read a {n}, {n,} or {n,m} form starting at i.
// Returns ok=false if the text is not bound-shaped, in which case the
// '{' is an ordinary literal.
func (p *parser) bounds(i int) (min, max, end int, ok bool) {
	j := i + 1
	lo, j, ok := readInt(p.src, j)
	if !ok {
		return 0, 0, 0, false
	}
	hi := lo
	if j < len(p.src) && p.src[j] == ',' {
		j++
		if j < len(p.src) && p.src[j] == '}' {
			hi = -1
		} else {
			hi, j, ok = readInt(p.src, j)
			if !ok {
				return 0, 0, 0, false
			}
		}
	}
	if j >= len(p.src) || p.src[j] != '}' {
		return 0, 0, 0, false
	}
	return lo, hi, j + 1, true
}

func readInt(s string, i int) (int, int, bool) {
	start := i
	v := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		v = v*10 + int(s[i]-'0')
		if v > 10*maxRepeat {
			v = 10 * maxRepeat
		}
		i++
	}
	return v, i, i > start
}

func (p *parser) group() (*Node, error) {
	start := p.pos
	p.pos++ // '('
	n := &Node{Kind: KindGroup}

	rest := p.src[p.pos:]
	switch {
	case strings.HasPrefix(rest, "?:"):
		p.pos += 2
	case strings.HasPrefix(rest, "?="), strings.HasPrefix(rest, "?!"):
		p.pos += 2
		p.hasLookaround = true
	case strings.HasPrefix(rest, "?<="), strings.HasPrefix(rest, "?<!"):
		p.pos += 3
		p.hasLookaround = true
	case strings.HasPrefix(rest, "?>"):
		p.pos += 2
		p.hasPossessive = true
	case strings.HasPrefix(rest, "?P<"), strings.HasPrefix(rest, "?<"):
		skip := 2
		if rest[1] == 'P' {
			skip = 3
		}
		name, end, err := p.groupName(p.pos + skip)
		if err != nil {
			return nil, err
		}
		p.pos = end
		n.Capture = p.nextCapture
		n.Name = name
		p.nextCapture++
	case strings.HasPrefix(rest, "?"):
		// inline flags: (?i), (?ims), (?i:...), (?-s:...)
		j := p.pos + 1
		for j < len(p.src) && strings.IndexByte("imsU-", p.src[j]) >= 0 {
			j++
		}
		switch {
		case j < len(p.src) && p.src[j] == ':':
			p.pos = j + 1
		case j < len(p.src) && p.src[j] == ')':
			p.pos = j + 1
			n.Span = Span{start, p.pos}
			return n, nil
		default:
			return nil, &ParseError{Pos: p.pos + 1, Reason: "invalid or unsupported group flags"}
		}
	default:
		n.Capture = p.nextCapture
		p.nextCapture++
	}

	child, err := p.alternation()
	if err != nil {
		return nil, err
	}
	if p.pos >= len(p.src) || p.src[p.pos] != ')' {
		return nil, &ParseError{Pos: p.pos, Reason: "missing closing )"}
	}
	p.pos++

	n.Span = Span{start, p.pos}
	n.Children = []*Node{child}
	if n.Capture > 0 {
		p.groups[n.Capture] = n
	}
	return n, nil
}

func (p *parser) groupName(i int) (string, int, error) {
	j := i
	for j < len(p.src) && isNameByte(p.src[j]) {
		j++
	}
	if j == i || j >= len(p.src) || p.src[j] != '>' {
		return "", 0, &ParseError{Pos: i, Reason: "invalid named capture"}
	}
	return p.src[i:j], j + 1, nil
}

func isNameByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func (p *parser) class() (*Node, error) {
	start := p.pos
	p.pos++ // '['
	if p.pos < len(p.src) && p.src[p.pos] == '^' {
		p.pos++
	}
	if p.pos < len(p.src) && p.src[p.pos] == ']' {
		p.pos++ // leading ']' is a literal member
	}
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ']':
			p.pos++
			return &Node{Kind: KindCharClass, Span: Span{start, p.pos}}, nil
		case '\\':
			if p.pos+1 >= len(p.src) {
				return nil, &ParseError{Pos: len(p.src), Reason: "trailing backslash"}
			}
			p.pos += 2
		case '[':
			// POSIX class like [[:alpha:]]
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == ':' {
				end := strings.Index(p.src[p.pos:], ":]")
				if end < 0 {
					return nil, &ParseError{Pos: p.pos, Reason: "missing closing :]"}
				}
				p.pos += end + 2
			} else {
				p.pos++
			}
		default:
			_, size := utf8.DecodeRuneInString(p.src[p.pos:])
			p.pos += size
		}
	}
	return nil, &ParseError{Pos: p.pos, Reason: "missing closing ]"}
}

func (p *parser) escape() (*Node, error) {
	start := p.pos
	if p.pos+1 >= len(p.src) {
		return nil, &ParseError{Pos: len(p.src), Reason: "trailing backslash"}
	}
	c := p.src[p.pos+1]
	p.pos += 2

	switch {
	case c >= '1' && c <= '9':
		p.hasBackref = true
		return &Node{Kind: KindBackref, Span: Span{start, p.pos}, Ref: int(c - '0')}, nil
	case c == 'k':
		// named backreference \k<name>
		if p.pos >= len(p.src) || p.src[p.pos] != '<' {
			return nil, &ParseError{Pos: p.pos, Reason: "invalid named backreference"}
		}
		name, end, err := p.groupName(p.pos + 1)
		if err != nil {
			return nil, err
		}
		p.pos = end
		p.hasBackref = true
		return &Node{Kind: KindBackref, Span: Span{start, p.pos}, Name: name}, nil
	case c == 'b' || c == 'B' || c == 'A' || c == 'z' || c == 'Z':
		return &Node{Kind: KindAnchor, Span: Span{start, p.pos}}, nil
	case c == 'd' || c == 'D' || c == 'w' || c == 'W' || c == 's' || c == 'S':
		return &Node{Kind: KindCharClass, Span: Span{start, p.pos}}, nil
	case c == 'p' || c == 'P':
		// unicode class \pL or \p{Greek}
		if p.pos < len(p.src) && p.src[p.pos] == '{' {
			end := strings.IndexByte(p.src[p.pos:], '}')
			if end < 0 {
				return nil, &ParseError{Pos: p.pos, Reason: "missing closing }"}
			}
			p.pos += end + 1
		} else if p.pos < len(p.src) {
			p.pos++
		} else {
			return nil, &ParseError{Pos: p.pos, Reason: "invalid character class"}
		}
		return &Node{Kind: KindCharClass, Span: Span{start, p.pos}}, nil
	case c == 'x':
		// \xhh or \x{...}
		if p.pos < len(p.src) && p.src[p.pos] == '{' {
			end := strings.IndexByte(p.src[p.pos:], '}')
			if end < 0 {
				return nil, &ParseError{Pos: p.pos, Reason: "missing closing }"}
			}
			p.pos += end + 1
		} else {
			for i := 0; i < 2 && p.pos < len(p.src) && isHexByte(p.src[p.pos]); i++ {
				p.pos++
			}
		}
		return &Node{Kind: KindLiteral, Span: Span{start, p.pos}}, nil
	case c == '0':
		for i := 0; i < 2 && p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '7'; i++ {
			p.pos++
		}
		return &Node{Kind: KindLiteral, Span: Span{start, p.pos}}, nil
	case c == 'a' || c == 'f' || c == 'n' || c == 'r' || c == 't' || c == 'v':
		return &Node{Kind: KindLiteral, Span: Span{start, p.pos}}, nil
	case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		return nil, &ParseError{Pos: start, Reason: "invalid escape sequence"}
	default:
		// escaped metacharacter or punctuation
		return &Node{Kind: KindLiteral, Span: Span{start, p.pos}}, nil
	}
}

func isHexByte(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
