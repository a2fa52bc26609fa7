package engine

import (
	"strings"

	"github.com/dl/reglens/internal/pattern"
)

// ExpandTemplate substitutes capture references in a replacement
// template against one match attempt. $0 is the overall match, $1..$n
// and ${name} refer to groups ($n uses a group's final binding), and
// $$ is a literal dollar. Unbound references expand to nothing.
func ExpandTemplate(tmpl string, tree *pattern.Tree, a MatchAttempt, text string) string {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '$' || i+1 >= len(tmpl) {
			b.WriteByte(c)
			continue
		}

		next := tmpl[i+1]
		switch {
		case next == '$':
			b.WriteByte('$')
			i++
		case next == '{':
			end := strings.IndexByte(tmpl[i+2:], '}')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			b.WriteString(resolveRef(tmpl[i+2:i+2+end], tree, a, text))
			i += 2 + end
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(tmpl) && tmpl[j] >= '0' && tmpl[j] <= '9' {
				j++
			}
			b.WriteString(resolveRef(tmpl[i+1:j], tree, a, text))
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func resolveRef(ref string, tree *pattern.Tree, a MatchAttempt, text string) string {
	if ref == "0" {
		return slice(text, a.Span)
	}

	capture := 0
	numeric := true
	for i := 0; i < len(ref); i++ {
		if ref[i] < '0' || ref[i] > '9' {
			numeric = false
			break
		}
		capture = capture*10 + int(ref[i]-'0')
	}
	if !numeric {
		capture = 0
		for i := 1; i <= tree.MaxCapture(); i++ {
			if g, ok := tree.Group(i); ok && g.Name == ref {
				capture = i
				break
			}
		}
	}

	spans := a.Groups[capture]
	if len(spans) == 0 {
		return ""
	}
	return slice(text, spans[len(spans)-1])
}

func slice(text string, s Span) string {
	if s.Start < 0 || s.End > len(text) || s.Start > s.End {
		return ""
	}
	return text[s.Start:s.End]
}
