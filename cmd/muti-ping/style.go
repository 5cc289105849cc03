package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	errorLabel = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	errorText = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

func stderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// formatError renders a fatal error, styled when writing to a terminal.
func formatError(err error, styled bool) string {
	if !styled {
		return "Error: " + err.Error()
	}
	return errorLabel.Render("Error:") + " " + errorText.Render(err.Error())
}
