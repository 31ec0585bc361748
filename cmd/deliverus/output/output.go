// Package output renders styled CLI messages.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#7C3AED")
	colorCode    = lipgloss.Color("#A78BFA")

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(colorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	primaryStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	codeStyle    = lipgloss.NewStyle().Foreground(colorCode)
)

// Out is where messages are written. Tests swap it for a buffer.
var Out io.Writer = os.Stdout

func line(icon lipgloss.Style, symbol, format string, args ...any) {
	fmt.Fprint(Out, icon.Render(symbol+" "))
	fmt.Fprintf(Out, format+"\n", args...)
}

// Success prints a success message
func Success(format string, args ...any) { line(successStyle, "✓", format, args...) }

// Warning prints a warning message
func Warning(format string, args ...any) { line(warningStyle, "⚠", format, args...) }

// Error prints an error message
func Error(format string, args ...any) { line(errorStyle, "✗", format, args...) }

// Info prints an info message
func Info(format string, args ...any) { line(infoStyle, "ℹ", format, args...) }

// Muted prints a muted message
func Muted(format string, args ...any) {
	fmt.Fprintln(Out, mutedStyle.Render(fmt.Sprintf(format, args...)))
}

// Section prints a section header
func Section(title string) {
	fmt.Fprintln(Out)
	fmt.Fprintln(Out, primaryStyle.Render(title))
	fmt.Fprintln(Out, mutedStyle.Render(strings.Repeat("═", lipgloss.Width(title))))
	fmt.Fprintln(Out)
}

// SQL prints a block of SQL statements.
func SQL(statements []string) {
	for _, stmt := range statements {
		fmt.Fprintln(Out, codeStyle.Render(stmt))
		fmt.Fprintln(Out)
	}
}

// Plain prints unstyled text, for output meant to be piped.
func Plain(format string, args ...any) {
	fmt.Fprintf(Out, format+"\n", args...)
}

// StatusIcon returns a colored status icon
func StatusIcon(status string) string {
	switch status {
	case "applied":
		return successStyle.Render("✓")
	case "pending":
		return warningStyle.Render("○")
	case "failed":
		return errorStyle.Render("✗")
	case "running":
		return infoStyle.Render("◉")
	default:
		return mutedStyle.Render("•")
	}
}
