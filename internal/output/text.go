package output

import (
	"errors"
	"strconv"

	"github.com/dl/reglens/internal/pattern"
)

// TextFormatter renders the pattern and text with each capture
// group's portions tinted by the cycling palette, followed by a
// per-attempt listing of every group's bound spans.
type TextFormatter struct {
	styles   Styles
	useColor bool
}

// NewTextFormatter creates a TextFormatter.
func NewTextFormatter(styles Styles, useColor bool) *TextFormatter {
	return &TextFormatter{styles: styles, useColor: useColor}
}

func (f *TextFormatter) Format(buf []byte, r Report) []byte {
	if r.Err != nil {
		var pe *pattern.ParseError
		if errors.As(r.Err, &pe) {
			return f.formatParseError(buf, r.Pattern, pe)
		}
		buf = f.label(buf, "  error")
		buf = append(buf, f.render(f.styles.Error, r.Err.Error())...)
		buf = append(buf, '\n')
		return buf
	}

	buf = f.label(buf, "pattern")
	buf = f.paint(buf, r.Pattern, patternOwners(r))
	buf = append(buf, '\n')

	buf = f.label(buf, "   text")
	buf = f.paint(buf, r.Text, textOwners(r))
	buf = append(buf, '\n')

	if !r.HasMatch() {
		buf = append(buf, "no match\n"...)
		return buf
	}

	for i, a := range r.Attempts {
		buf = append(buf, "match "...)
		buf = strconv.AppendInt(buf, int64(i+1), 10)
		buf = append(buf, ": "...)
		buf = f.appendSpan(buf, f.styles.Overall, a.Span.Start, a.Span.End, r.Text)
		buf = append(buf, '\n')

		if r.Tree == nil {
			continue
		}
		for capture := 1; capture <= r.Tree.MaxCapture(); capture++ {
			g, _ := r.Tree.Group(capture)
			buf = append(buf, "  group "...)
			buf = strconv.AppendInt(buf, int64(capture), 10)
			if g.Name != "" {
				buf = append(buf, " ("...)
				buf = append(buf, g.Name...)
				buf = append(buf, ')')
			}
			buf = append(buf, ": "...)

			spans := a.Groups[capture]
			if len(spans) == 0 {
				buf = append(buf, "unbound"...)
			}
			for j, s := range spans {
				if j > 0 {
					buf = append(buf, ' ')
				}
				buf = f.appendSpan(buf, f.styles.Group(capture), s.Start, s.End, r.Text)
			}
			buf = append(buf, '\n')
		}
	}

	if r.ShowReplace {
		buf = f.label(buf, "replace")
		buf = append(buf, r.Replaced...)
		buf = append(buf, '\n')
	}
	return buf
}

func (f *TextFormatter) formatParseError(buf []byte, src string, pe *pattern.ParseError) []byte {
	buf = f.label(buf, "pattern")
	buf = append(buf, src...)
	buf = append(buf, '\n')

	// caret line pointing at the offending byte
	buf = append(buf, "         "...)
	pos := pe.Pos
	if pos > len(src) {
		pos = len(src)
	}
	for i := 0; i < pos; i++ {
		buf = append(buf, ' ')
	}
	caret := "^ " + pe.Reason
	buf = append(buf, f.render(f.styles.Error, caret)...)
	buf = append(buf, '\n')
	return buf
}

func (f *TextFormatter) label(buf []byte, name string) []byte {
	buf = append(buf, f.render(f.styles.Label, name)...)
	buf = append(buf, ": "...)
	return buf
}

// appendSpan writes `[s,e) "excerpt"`.
func (f *TextFormatter) appendSpan(buf []byte, style styleRenderer, start, end int, text string) []byte {
	buf = append(buf, '[')
	buf = strconv.AppendInt(buf, int64(start), 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(end), 10)
	buf = append(buf, ") "...)
	buf = append(buf, f.render(style, strconv.Quote(excerpt(text, start, end)))...)
	return buf
}

const excerptMax = 40

func excerpt(text string, start, end int) string {
	if start < 0 || end > len(text) || start > end {
		return ""
	}
	s := text[start:end]
	if len(s) > excerptMax {
		s = s[:excerptMax] + "..."
	}
	return s
}

type styleRenderer interface {
	Render(...string) string
}

func (f *TextFormatter) render(style styleRenderer, s string) string {
	if !f.useColor {
		return s
	}
	return style.Render(s)
}

// patternOwners maps each pattern byte to the capture index of the
// innermost group covering it, 0 for none. Preorder traversal makes
// inner groups overwrite their ancestors.
func patternOwners(r Report) []int {
	owners := make([]int, len(r.Pattern))
	if r.Tree == nil {
		return owners
	}
	r.Tree.Walk(func(n *pattern.Node) bool {
		if n.Kind == pattern.KindGroup && n.Capture > 0 {
			for i := n.Span.Start; i < n.Span.End && i < len(owners); i++ {
				owners[i] = n.Capture
			}
		}
		return true
	})
	return owners
}

// textOwners maps each text byte to the capture index whose bound
// span covers it. Higher capture indexes are painted later, so nested
// inner groups win over the outer group that contains them.
func textOwners(r Report) []int {
	owners := make([]int, len(r.Text))
	if r.Tree == nil {
		return owners
	}
	for _, a := range r.Attempts {
		for capture := 1; capture <= r.Tree.MaxCapture(); capture++ {
			for _, s := range a.Groups[capture] {
				for i := s.Start; i < s.End && i < len(owners); i++ {
					owners[i] = capture
				}
			}
		}
	}
	return owners
}

// paint emits s in runs, each run styled by its owning capture's
// palette entry.
func (f *TextFormatter) paint(buf []byte, s string, owners []int) []byte {
	if !f.useColor || len(s) == 0 {
		return append(buf, s...)
	}
	start := 0
	for i := 1; i <= len(s); i++ {
		if i < len(s) && owners[i] == owners[start] {
			continue
		}
		run := s[start:i]
		if owner := owners[start]; owner > 0 {
			buf = append(buf, f.styles.Group(owner).Render(run)...)
		} else {
			buf = append(buf, run...)
		}
		start = i
	}
	return buf
}
