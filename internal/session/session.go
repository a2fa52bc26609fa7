package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dl/reglens/internal/correlate"
	"github.com/dl/reglens/internal/engine"
	"github.com/dl/reglens/internal/highlight"
	"github.com/dl/reglens/internal/pattern"
)

// DefaultTimeout bounds a single execution. The backends have no
// cooperative cancellation, so a pathological pattern is abandoned
// rather than interrupted.
const DefaultTimeout = 2 * time.Second

// Snapshot is one atomically published rebuild of the document. All
// artifacts in a snapshot were derived from the same document
// version; consumers never observe a correlation built from a tree
// and attempts of different versions.
type Snapshot struct {
	Version  uint64
	Pattern  string
	Text     string
	Tree     *pattern.Tree
	Attempts []engine.MatchAttempt
	Map      *correlate.Map
	Err      error
}

// HasMatch reports whether the last execution found anything.
func (s *Snapshot) HasMatch() bool { return len(s.Attempts) > 0 }

// Options configures a Session.
type Options struct {
	Logger  *log.Logger
	Mode    engine.Mode
	Timeout time.Duration
}

// Session owns a single document (pattern + text) and rebuilds the
// tree, the match attempts and the correlation on every edit. Edits
// return immediately; a rebuild superseded by a newer edit is
// discarded, never published.
type Session struct {
	id      uuid.UUID
	logger  *log.Logger
	mode    engine.Mode
	timeout time.Duration

	mu        sync.Mutex
	version   uint64
	pattern   string
	text      string
	cancel    context.CancelFunc
	selection highlight.Target

	current atomic.Pointer[Snapshot]
	wg      sync.WaitGroup
}

// New creates a session with an empty document.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	s := &Session{
		id:      uuid.New(),
		mode:    opts.Mode,
		timeout: opts.Timeout,
	}
	s.logger = opts.Logger.With("session", s.id.String()[:8])
	return s
}

// OnPatternChanged replaces the pattern and triggers an asynchronous
// rebuild. Returns immediately.
func (s *Session) OnPatternChanged(p string) {
	s.edit(func() { s.pattern = p })
}

// OnTextChanged replaces the input text and triggers an asynchronous
// rebuild. Returns immediately.
func (s *Session) OnTextChanged(t string) {
	s.edit(func() { s.text = t })
}

func (s *Session) edit(apply func()) {
	s.mu.Lock()
	apply()
	s.version++
	v := s.version
	pat, txt := s.pattern, s.text
	if s.cancel != nil {
		// a newer edit supersedes the in-flight rebuild
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	// Add under the lock, so Close cannot start waiting between the
	// unlock and the Add
	s.wg.Add(1)
	s.mu.Unlock()

	go s.rebuild(ctx, v, pat, txt)
}

func (s *Session) rebuild(ctx context.Context, v uint64, pat, txt string) {
	defer s.wg.Done()

	snap := &Snapshot{Version: v, Pattern: pat, Text: txt}
	prev := s.current.Load()

	tree, err := pattern.Build(pat)
	if err != nil {
		// an invalid pattern is shown inline; the previous valid
		// correlation stays on screen, but only while it still belongs
		// to this text (its spans index into prev.Text)
		snap.Err = err
		if prev != nil && prev.Text == txt {
			snap.Tree = prev.Tree
			snap.Attempts = prev.Attempts
			snap.Map = prev.Map
		}
		s.publish(snap)
		return
	}
	snap.Tree = tree

	eng, err := engine.New(tree)
	if err != nil {
		snap.Err = err
		if prev != nil && prev.Text == txt {
			snap.Attempts = prev.Attempts
			snap.Map = prev.Map
		}
		s.publish(snap)
		return
	}
	defer eng.Close()

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	attempts, err := eng.Execute(execCtx, txt, s.mode)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Debug("rebuild superseded mid-execution", "version", v)
			return
		}
		// timeout or engine fault: report it and suspend matching
		// until the document changes again
		snap.Err = err
		snap.Map = emptyMap(tree)
		s.publish(snap)
		return
	}

	m, err := correlate.Correlate(tree, attempts)
	if err != nil {
		// tree and attempts came from this very version; a mismatch
		// is a defect, not a user error
		s.logger.Error("correlation rejected freshly built artifacts", "version", v, "err", err)
		snap.Err = err
		snap.Map = emptyMap(tree)
		s.publish(snap)
		return
	}
	snap.Attempts = attempts
	snap.Map = m
	s.publish(snap)
}

func emptyMap(tree *pattern.Tree) *correlate.Map {
	m, _ := correlate.Correlate(tree, nil)
	return m
}

// publish installs the snapshot unless a newer edit has arrived. The
// version check and the store happen under the same lock, so a stale
// rebuild can never overwrite a fresher one.
func (s *Session) publish(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Version != s.version {
		s.logger.Debug("discarding stale rebuild", "version", snap.Version, "latest", s.version)
		return
	}
	s.selection = revalidate(s.selection, snap)
	s.current.Store(snap)
	s.logger.Debug("published rebuild",
		"version", snap.Version, "attempts", len(snap.Attempts), "err", snap.Err)
}

// revalidate keeps the selection across a rebuild when its target
// still exists, and resets it to none otherwise.
func revalidate(sel highlight.Target, snap *Snapshot) highlight.Target {
	switch sel.Kind {
	case highlight.TargetNode:
		if snap.Tree == nil || snap.Tree.Node(sel.Node) == nil {
			return highlight.NoTarget()
		}
	case highlight.TargetOffset:
		if sel.Offset >= len(snap.Text) {
			return highlight.NoTarget()
		}
	}
	return sel
}

// Select records the active hover/selection target. The target is
// revalidated against every subsequent rebuild.
func (s *Session) Select(target highlight.Target) {
	s.mu.Lock()
	s.selection = target
	s.mu.Unlock()
}

// Selection returns the current selection target.
func (s *Session) Selection() highlight.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// CurrentHighlight answers a highlight query against the latest
// published snapshot. Safe to call concurrently with edits; a stale
// target yields an empty set.
func (s *Session) CurrentHighlight(target highlight.Target) highlight.HighlightSet {
	snap := s.current.Load()
	if snap == nil {
		return highlight.HighlightSet{}
	}
	return highlight.Select(snap.Tree, snap.Map, len(snap.Text), target)
}

// CurrentError returns the latest failure, if any, for display.
func (s *Session) CurrentError() error {
	snap := s.current.Load()
	if snap == nil {
		return nil
	}
	return snap.Err
}

// Snapshot returns the latest published snapshot, or nil if nothing
// has been published yet.
func (s *Session) Snapshot() *Snapshot {
	return s.current.Load()
}

// Wait blocks until every pending rebuild has completed or been
// discarded.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels any in-flight rebuild and waits for it to drain.
func (s *Session) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
