package output

import (
	"github.com/dl/reglens/internal/correlate"
	"github.com/dl/reglens/internal/engine"
	"github.com/dl/reglens/internal/pattern"
)

// Report bundles everything a formatter needs to render one
// inspection of a document: the source strings, the parsed tree, the
// match attempts and their correlation, and the latest error if the
// rebuild failed.
type Report struct {
	Pattern  string
	Text     string
	Tree     *pattern.Tree
	Attempts []engine.MatchAttempt
	Map      *correlate.Map
	Err      error

	// Replaced holds the expansion of the replace template for the
	// first attempt; ShowReplace distinguishes "no template" from a
	// template that expanded to the empty string.
	Replaced    string
	ShowReplace bool
}

// HasMatch reports whether this report carries at least one match.
func (r *Report) HasMatch() bool {
	return len(r.Attempts) > 0
}
