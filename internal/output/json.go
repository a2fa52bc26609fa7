package output

import (
	"encoding/json"
	"errors"

	"github.com/dl/reglens/internal/pattern"
)

// JSONFormatter formats reports as JSON Lines (one object per match
// attempt) for downstream tooling.
type JSONFormatter struct{}

// NewJSONFormatter creates a JSONFormatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

type jsonSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type jsonGroup struct {
	Index int        `json:"index"`
	Name  string     `json:"name,omitempty"`
	Spans []jsonSpan `json:"spans"`
}

// jsonAttempt is the serialization of one match attempt.
type jsonAttempt struct {
	Type   string      `json:"type"`
	Span   jsonSpan    `json:"span"`
	Text   string      `json:"text"`
	Groups []jsonGroup `json:"groups,omitempty"`
}

type jsonError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Pos     *int   `json:"pos,omitempty"`
}

func (f *JSONFormatter) Format(buf []byte, r Report) []byte {
	if r.Err != nil {
		je := jsonError{Type: "error", Message: r.Err.Error()}
		var pe *pattern.ParseError
		if errors.As(r.Err, &pe) {
			je.Pos = &pe.Pos
		}
		data, _ := json.Marshal(je)
		buf = append(buf, data...)
		buf = append(buf, '\n')
		return buf
	}

	for _, a := range r.Attempts {
		ja := jsonAttempt{
			Type: "match",
			Span: jsonSpan{Start: a.Span.Start, End: a.Span.End},
			Text: slice(r.Text, a.Span.Start, a.Span.End),
		}
		if r.Tree != nil {
			for capture := 1; capture <= r.Tree.MaxCapture(); capture++ {
				spans := a.Groups[capture]
				if len(spans) == 0 {
					continue
				}
				g, _ := r.Tree.Group(capture)
				jg := jsonGroup{Index: capture, Name: g.Name}
				for _, s := range spans {
					jg.Spans = append(jg.Spans, jsonSpan{Start: s.Start, End: s.End})
				}
				ja.Groups = append(ja.Groups, jg)
			}
		}
		data, _ := json.Marshal(ja)
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}
	return buf
}

func slice(text string, start, end int) string {
	if start < 0 || end > len(text) || start > end {
		return ""
	}
	return text[start:end]
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)
