package cli

import (
	"fmt"
	"time"
)

// ColorMode controls when colored output is used.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // color when stdout is a terminal
	ColorAlways                  // always use color
	ColorNever                   // never use color
)

// Config holds all configuration for one reglens inspection.
type Config struct {
	Pattern       string
	Text          string
	File          string
	AllMatches    bool
	JSONOutput    bool
	Replace       string
	ShowReplace   bool
	Color         ColorMode
	Timeout       time.Duration
	WatchMode     bool
	Verbose       bool
	MmapThreshold int64
}

// Validate checks that the config is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Pattern == "" {
		return fmt.Errorf("no pattern specified")
	}
	if c.File != "" && c.Text != "" {
		return fmt.Errorf("cannot give both a text argument and --file")
	}
	if c.WatchMode && c.File == "" {
		return fmt.Errorf("--watch requires --file")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %v", c.Timeout)
	}
	return nil
}
