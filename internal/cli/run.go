package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/dl/reglens/internal/engine"
	"github.com/dl/reglens/internal/input"
	"github.com/dl/reglens/internal/output"
	"github.com/dl/reglens/internal/session"
	"github.com/dl/reglens/internal/watch"
)

// Run executes one inspection with the given config.
// Returns exit code: 0 = match found, 1 = no match, 2 = error.
func Run(cfg Config) int {
	level := log.WarnLevel
	if cfg.Verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level: level,
	})

	text, err := loadText(cfg)
	if err != nil {
		logger.Error("failed to load text", "err", err)
		return 2
	}

	mode := engine.FirstMatch
	if cfg.AllMatches {
		mode = engine.AllMatches
	}
	sess := session.New(session.Options{
		Logger:  logger,
		Mode:    mode,
		Timeout: cfg.Timeout,
	})
	defer sess.Close()

	w := output.NewWriter()
	formatter := newFormatter(cfg)

	sess.OnTextChanged(text)
	sess.OnPatternChanged(cfg.Pattern)
	sess.Wait()

	code := writeReport(sess.Snapshot(), cfg, formatter, w)

	if cfg.WatchMode {
		return runWatch(sess, cfg, formatter, w, logger, code)
	}
	return code
}

func newFormatter(cfg Config) output.Formatter {
	if cfg.JSONOutput {
		return output.NewJSONFormatter()
	}

	useColor := false
	switch cfg.Color {
	case ColorAlways:
		useColor = true
	case ColorNever:
		useColor = false
	case ColorAuto:
		useColor = output.StdoutIsTerminal()
	}

	styles := output.NoStyles()
	if useColor {
		styles = output.NewStyles()
	}
	return output.NewTextFormatter(styles, useColor)
}

// loadText resolves the sample text: inline argument, --file, or stdin.
func loadText(cfg Config) (string, error) {
	if cfg.File != "" {
		reader := input.NewAdaptiveReader(cfg.MmapThreshold)
		res, err := reader.Read(cfg.File)
		if err != nil {
			return "", err
		}
		text := string(res.Data)
		if res.Closer != nil {
			res.Closer()
		}
		return text, nil
	}
	if cfg.Text != "" {
		return cfg.Text, nil
	}

	// No text argument and no file: read the document from stdin,
	// unless stdin is the terminal the user is typing the command at.
	if output.IsTerminal(os.Stdin.Fd()) {
		return "", nil
	}
	res, err := input.NewStdinReader().Read("")
	if err != nil {
		return "", err
	}
	return string(res.Data), nil
}

func writeReport(snap *session.Snapshot, cfg Config, formatter output.Formatter, w *output.Writer) int {
	if snap == nil {
		return 1
	}

	r := output.Report{
		Pattern:  snap.Pattern,
		Text:     snap.Text,
		Tree:     snap.Tree,
		Attempts: snap.Attempts,
		Map:      snap.Map,
		Err:      snap.Err,
	}
	if cfg.ShowReplace && snap.Err == nil && snap.HasMatch() {
		r.Replaced = engine.ExpandTemplate(cfg.Replace, snap.Tree, snap.Attempts[0], snap.Text)
		r.ShowReplace = true
	}

	w.Write(formatter.Format(nil, r))

	switch {
	case snap.Err != nil:
		return 2
	case snap.HasMatch():
		return 0
	default:
		return 1
	}
}

// runWatch re-reads the file and rebuilds on every change until the
// watcher fails or the process is interrupted.
func runWatch(sess *session.Session, cfg Config, formatter output.Formatter, w *output.Writer, logger *log.Logger, code int) int {
	watcher, err := watch.New()
	if err != nil {
		logger.Error("failed to create watcher", "err", err)
		return 2
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.File); err != nil {
		logger.Error("failed to watch", "path", cfg.File, "err", err)
		return 2
	}

	for evt := range watcher.Events() {
		if evt.Err != nil {
			logger.Warn("watch error", "err", evt.Err)
			continue
		}

		switch evt.Type {
		case watch.EventModified, watch.EventCreated:
			data, err := watcher.ReadAll(evt.Path)
			if err != nil {
				logger.Warn("read error", "path", evt.Path, "err", err)
				continue
			}
			sess.OnTextChanged(string(data))
			sess.Wait()
			fmt.Fprintln(os.Stderr)
			code = writeReport(sess.Snapshot(), cfg, formatter, w)

		case watch.EventDeleted:
			logger.Warn("watched file removed", "path", evt.Path)
		}
	}
	return code
}
