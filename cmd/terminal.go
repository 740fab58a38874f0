package cmd

import (
	"os"

	"golang.org/x/term"
)

const (
	defaultTerminalWidth = 80
	minTerminalWidth     = 40
)

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// terminalWidth returns the width of stdout, or a default when it is not a terminal.
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultTerminalWidth
	}
	return max(width, minTerminalWidth)
}

// terminalColumns returns the exact width of stdout, or zero when it is not a
// terminal.
func terminalColumns() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 0
	}
	return width
}
