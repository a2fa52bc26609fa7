package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sys/unix"
)

// Styles holds the lipgloss styles for inspector output. Groups is a
// palette cycled per capture index, so group 4 reuses group 1's
// color.
type Styles struct {
	Groups  []lipgloss.Style
	Overall lipgloss.Style
	Label   lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles creates the default color styles: the classic visualizer
// palette of blue, gold and orchid for groups.
func NewStyles() Styles {
	return Styles{
		Groups: []lipgloss.Style{
			lipgloss.NewStyle().Foreground(lipgloss.Color("#179FFF")),
			lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")),
			lipgloss.NewStyle().Foreground(lipgloss.Color("#DA70D6")),
		},
		Overall: lipgloss.NewStyle().Bold(true),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")), // cyan
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

// NoStyles returns styles with no coloring.
func NoStyles() Styles {
	return Styles{
		Overall: lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
	}
}

// Group returns the style for a 1-based capture index, cycling
// through the palette.
func (s Styles) Group(capture int) lipgloss.Style {
	if len(s.Groups) == 0 || capture < 1 {
		return lipgloss.NewStyle()
	}
	return s.Groups[(capture-1)%len(s.Groups)]
}

// IsTerminal checks if the given file descriptor is a terminal using ioctl.
func IsTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	return err == nil
}

// StdoutIsTerminal returns true if stdout is a terminal.
func StdoutIsTerminal() bool {
	return IsTerminal(os.Stdout.Fd())
}
