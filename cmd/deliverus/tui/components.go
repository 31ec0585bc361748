package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// confirmedMsg reports the answer of a ConfirmationDialog.
type confirmedMsg struct {
	yes bool
}

// ConfirmationDialog represents a yes/no confirmation dialog
type ConfirmationDialog struct {
	Title       string
	Message     string
	YesSelected bool
}

// NewConfirmationDialog creates a new confirmation dialog. No is preselected.
func NewConfirmationDialog(title, message string) ConfirmationDialog {
	return ConfirmationDialog{
		Title:   title,
		Message: message,
	}
}

// Update moves the selection, and on enter emits a confirmedMsg.
func (d *ConfirmationDialog) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch key.String() {
	case "left", "h", "y":
		d.YesSelected = true
	case "right", "l", "n":
		d.YesSelected = false
	case "enter":
		yes := d.YesSelected
		return func() tea.Msg { return confirmedMsg{yes: yes} }
	}
	return nil
}

// View renders the confirmation dialog
func (d ConfirmationDialog) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(d.Title))
	b.WriteString("\n\n")
	b.WriteString(d.Message)
	b.WriteString("\n\n")

	yesButton := inactiveButtonStyle.Render("Yes")
	noButton := inactiveButtonStyle.Render("No")
	if d.YesSelected {
		yesButton = activeButtonStyle.Render("Yes")
	} else {
		noButton = activeButtonStyle.Render("No")
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left, yesButton, "  ", noButton))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(FormatKey("←/→", "navigate") + " • " + FormatKey("enter", "confirm") + " • " + FormatKey("esc/q", "cancel")))

	return boxStyle.Render(b.String())
}

// UnitItem is a migration unit shown in the list.
type UnitItem struct {
	Version   string
	Name      string
	Status    string
	AppliedAt string
	Error     string
}

func (i UnitItem) FilterValue() string { return i.Version + " " + i.Name }

func (i UnitItem) Title() string {
	return fmt.Sprintf("%s %s - %s", FormatStatus(i.Status), i.Version, i.Name)
}

func (i UnitItem) Description() string {
	switch {
	case i.Error != "":
		return errorStyle.Render(i.Error)
	case i.AppliedAt != "":
		return mutedStyle.Render("Applied: " + i.AppliedAt)
	default:
		return mutedStyle.Render("Not applied")
	}
}

// UnitItemDelegate renders UnitItems on two lines.
type UnitItemDelegate struct{}

func (d UnitItemDelegate) Height() int                             { return 2 }
func (d UnitItemDelegate) Spacing() int                            { return 1 }
func (d UnitItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d UnitItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(UnitItem)
	if !ok {
		return
	}

	style, marker := unselectedItemStyle, "  "
	if index == m.Index() {
		style, marker = selectedItemStyle, "▸ "
	}

	_, _ = fmt.Fprint(w, style.Render(marker+i.Title()+"\n  "+i.Description()))
}

// ProgressView represents a progress indicator
type ProgressView struct {
	Current int
	Total   int
	Message string
}

// View renders the progress view
func (p ProgressView) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Migration Progress"))
	b.WriteString("\n\n")
	if p.Message != "" {
		b.WriteString(infoStyle.Render(p.Message))
		b.WriteString("\n\n")
	}
	b.WriteString(FormatProgressBar(p.Current, p.Total, 40))

	return boxStyle.Render(b.String())
}

// LogView keeps the last MaxLen log entries.
type LogView struct {
	Logs   []string
	MaxLen int
}

// NewLogView creates a new log view
func NewLogView(maxLen int) LogView {
	return LogView{
		Logs:   make([]string, 0),
		MaxLen: maxLen,
	}
}

// AddLog adds a log entry
func (l *LogView) AddLog(entry string) {
	l.Logs = append(l.Logs, entry)
	if len(l.Logs) > l.MaxLen {
		l.Logs = l.Logs[len(l.Logs)-l.MaxLen:]
	}
}

// View renders the log view
func (l LogView) View() string {
	if len(l.Logs) == 0 {
		return mutedStyle.Render("No logs")
	}

	var b strings.Builder
	for _, entry := range l.Logs {
		b.WriteString(mutedStyle.Render("• "))
		b.WriteString(entry)
		b.WriteString("\n")
	}

	return boxStyle.Render(b.String())
}
