package main

import (
	"io"
	"strings"
	"testing"
)

func TestRootCmd_RejectsInvalidInvocations(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no pattern", []string{}, "arg"},
		{"too many arguments", []string{"a+", "aaa", "extra"}, "arg"},
		{"bad color value", []string{"a+", "aaa", "--color", "sometimes"}, "--color"},
		{"watch without file", []string{"a+", "--watch"}, "--watch requires --file"},
		{"text argument and file", []string{"a+", "aaa", "--file", "doc.txt"}, "--file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := 0
			cmd := newRootCmd(&code)
			cmd.SetArgs(tt.args)
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)

			err := cmd.Execute()
			if err == nil {
				t.Fatalf("Execute(%v) succeeded, want error", tt.args)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestRootCmd_FlagDefaults(t *testing.T) {
	code := 0
	cmd := newRootCmd(&code)

	for flag, want := range map[string]string{
		"color":   "auto",
		"replace": "$0",
		"json":    "false",
		"all":     "false",
	} {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			t.Fatalf("flag --%s not registered", flag)
		}
		if f.DefValue != want {
			t.Errorf("--%s default = %q, want %q", flag, f.DefValue, want)
		}
	}
}
