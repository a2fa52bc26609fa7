// Package main provides the entry point for the reglens CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dl/reglens/internal/cli"
	"github.com/dl/reglens/internal/session"
)

func newRootCmd(exitCode *int) *cobra.Command {
	cfg := cli.Config{}
	var colorFlag string

	rootCmd := &cobra.Command{
		Use:   "reglens PATTERN [TEXT]",
		Short: "Inspect how a regex matches a piece of text",
		Long: `reglens parses a pattern, runs it against a sample text and shows
which part of the pattern captured which part of the text. Text comes
from the second argument, --file, or stdin.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Pattern = args[0]
			if len(args) > 1 {
				cfg.Text = args[1]
			}
			switch colorFlag {
			case "always":
				cfg.Color = cli.ColorAlways
			case "never":
				cfg.Color = cli.ColorNever
			case "auto":
				cfg.Color = cli.ColorAuto
			default:
				return fmt.Errorf("invalid --color value %q (auto, always, never)", colorFlag)
			}
			cfg.ShowReplace = cmd.Flags().Changed("replace")
			if err := cfg.Validate(); err != nil {
				return err
			}
			*exitCode = cli.Run(cfg)
			return nil
		},
	}

	f := rootCmd.Flags()
	f.StringVarP(&cfg.File, "file", "f", "", "read the sample text from a file")
	f.BoolVarP(&cfg.AllMatches, "all", "a", false, "report every match, not just the first")
	f.BoolVar(&cfg.JSONOutput, "json", false, "emit JSON Lines instead of styled text")
	f.StringVarP(&cfg.Replace, "replace", "r", "$0", "expand a replace template against the first match")
	f.StringVar(&colorFlag, "color", "auto", "colorize output: auto, always, never")
	f.DurationVar(&cfg.Timeout, "timeout", session.DefaultTimeout, "abandon execution after this long")
	f.BoolVarP(&cfg.WatchMode, "watch", "w", false, "re-run whenever --file changes")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "verbose logging to stderr")
	f.Int64Var(&cfg.MmapThreshold, "mmap-threshold", 1<<20, "file size at which reads switch to mmap")

	return rootCmd
}

func main() {
	exitCode := 0
	rootCmd := newRootCmd(&exitCode)

	// Config file flags go first so the command line overrides them.
	if extra := cli.LoadConfigArgs(); extra != nil {
		rootCmd.SetArgs(append(extra, os.Args[1:]...))
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "reglens: %v\n", err)
		os.Exit(2)
	}
	os.Exit(exitCode)
}
