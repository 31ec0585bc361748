// Package tui implements the interactive migration screen.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deliverus/deliverus-schema/pkg/migration"
	"github.com/deliverus/deliverus-schema/pkg/runtime"
	"github.com/sirupsen/logrus"
)

// Action is the direction the screen migrates in.
type Action string

const (
	ActionUp   Action = "up"
	ActionDown Action = "down"
)

// MigrateMode represents the current mode of the migration UI
type MigrateMode int

const (
	ModeLoading MigrateMode = iota
	ModeList
	ModeConfirm
	ModeExecuting
	ModeComplete
	ModeError
)

// MigrateModel is the Bubbletea model for interactive migrations
type MigrateModel struct {
	ctx    context.Context
	config *runtime.Config
	log    logrus.FieldLogger

	mode         MigrateMode
	action       Action
	list         list.Model
	confirmation ConfirmationDialog
	progress     ProgressView
	logs         LogView
	err          error
	width        int
	height       int

	units  []migration.Unit
	status []migration.MigrationRecord
	queue  []migration.Unit
	db     *runtime.DB
	runner *migration.Runner
	locked bool
}

// NewMigrateModel creates a new migration UI model
func NewMigrateModel(ctx context.Context, action Action, config *runtime.Config, units []migration.Unit, log logrus.FieldLogger) MigrateModel {
	l := list.New([]list.Item{}, UnitItemDelegate{}, 0, 0)
	l.Title = "Database Migrations (" + string(action) + ")"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return MigrateModel{
		ctx:    ctx,
		config: config,
		log:    log,
		mode:   ModeLoading,
		action: action,
		list:   l,
		logs:   NewLogView(10),
		units:  migration.SortUnits(units),
	}
}

// Messages
type loadedMsg struct {
	db     *runtime.DB
	runner *migration.Runner
	status []migration.MigrationRecord
}

type lockedMsg struct{}

type unitDoneMsg struct {
	unit migration.Unit
	err  error
}

type errorMsg struct {
	err error
}

// Init initializes the model
func (m MigrateModel) Init() tea.Cmd {
	return tea.Batch(
		loadCmd(m.ctx, m.config, m.units, m.log),
		tea.EnterAltScreen,
	)
}

func loadCmd(ctx context.Context, config *runtime.Config, units []migration.Unit, log logrus.FieldLogger) tea.Cmd {
	return func() tea.Msg {
		db, err := runtime.Connect(ctx, config)
		if err != nil {
			return errorMsg{err: fmt.Errorf("failed to connect to database: %w", err)}
		}

		runner := migration.NewRunner(db.Pool()).WithLogger(log)
		if err := runner.Initialize(ctx); err != nil {
			db.Close()
			return errorMsg{err: fmt.Errorf("failed to initialize migrations: %w", err)}
		}

		status, err := runner.Status(ctx, units)
		if err != nil {
			db.Close()
			return errorMsg{err: fmt.Errorf("failed to get migration status: %w", err)}
		}

		return loadedMsg{db: db, runner: runner, status: status}
	}
}

func lockCmd(ctx context.Context, runner *migration.Runner) tea.Cmd {
	return func() tea.Msg {
		ok, err := runner.TryLock(ctx)
		if err != nil {
			return errorMsg{err: err}
		}
		if !ok {
			return errorMsg{err: fmt.Errorf("another migration is running")}
		}
		return lockedMsg{}
	}
}

func executeCmd(ctx context.Context, runner *migration.Runner, unit migration.Unit, action Action) tea.Cmd {
	return func() tea.Msg {
		var err error
		if action == ActionUp {
			err = runner.Apply(ctx, unit)
		} else {
			err = runner.Revert(ctx, unit)
		}
		return unitDoneMsg{unit: unit, err: err}
	}
}

// queueFor returns the units to run when the item at idx is chosen. Going up,
// every pending unit up to and including it runs in version order; going down,
// every applied unit from the newest back to it runs in reverse order.
func queueFor(action Action, units []migration.Unit, status []migration.MigrationRecord, idx int) []migration.Unit {
	if idx < 0 || idx >= len(status) || idx >= len(units) {
		return nil
	}

	var queue []migration.Unit
	if action == ActionUp {
		if status[idx].Status == migration.StatusApplied {
			return nil
		}
		for i := 0; i <= idx; i++ {
			if status[i].Status != migration.StatusApplied {
				queue = append(queue, units[i])
			}
		}
		return queue
	}

	if status[idx].Status != migration.StatusApplied {
		return nil
	}
	for i := len(status) - 1; i >= idx; i-- {
		if status[i].Status == migration.StatusApplied {
			queue = append(queue, units[i])
		}
	}
	return queue
}

func itemsFor(status []migration.MigrationRecord) []list.Item {
	items := make([]list.Item, len(status))
	for i, s := range status {
		item := UnitItem{
			Version: s.Version,
			Name:    s.Name,
			Status:  string(s.Status),
		}
		if s.AppliedAt != nil {
			item.AppliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
		}
		if s.Error != nil {
			item.Error = *s.Error
		}
		items[i] = item
	}
	return items
}

// Update handles messages
func (m MigrateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case loadedMsg:
		m.db = msg.db
		m.runner = msg.runner
		m.status = msg.status
		m.list.SetItems(itemsFor(msg.status))
		m.mode = ModeList
		return m, nil

	case confirmedMsg:
		if !msg.yes {
			m.queue = nil
			m.mode = ModeList
			return m, nil
		}
		m.mode = ModeExecuting
		m.progress = ProgressView{Total: len(m.queue), Message: "Acquiring migration lock"}
		return m, lockCmd(m.ctx, m.runner)

	case lockedMsg:
		m.locked = true
		return m, m.next()

	case unitDoneMsg:
		if msg.err != nil {
			m.logs.AddLog(errorStyle.Render("Failed: " + msg.unit.Version()))
			m.mode = ModeError
			m.err = msg.err
			return m, nil
		}

		m.logs.AddLog(successStyle.Render("✓ Completed: " + msg.unit.Version() + " - " + msg.unit.Name()))
		m.progress.Current++
		if m.progress.Current >= m.progress.Total {
			m.mode = ModeComplete
			return m, nil
		}
		return m, m.next()

	case errorMsg:
		m.mode = ModeError
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.mode == ModeList {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	return m, nil
}

// next starts the unit at the current progress position.
func (m *MigrateModel) next() tea.Cmd {
	unit := m.queue[m.progress.Current]
	m.progress.Message = fmt.Sprintf("Executing: %s - %s", unit.Version(), unit.Name())
	return executeCmd(m.ctx, m.runner, unit, m.action)
}

func (m MigrateModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeLoading:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case ModeList:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.close()
			return m, tea.Quit

		case "enter", " ":
			m.queue = queueFor(m.action, m.units, m.status, m.selectedIndex())
			if len(m.queue) == 0 {
				return m, nil
			}

			var names []string
			for _, unit := range m.queue {
				names = append(names, unit.Version()+" - "+unit.Name())
			}
			m.confirmation = NewConfirmationDialog(
				fmt.Sprintf("Confirm Migration %s", strings.ToUpper(string(m.action))),
				fmt.Sprintf("Are you sure you want to %s %d migration(s):\n%s",
					m.action, len(m.queue), strings.Join(names, "\n")),
			)
			m.mode = ModeConfirm
			return m, nil
		}

	case ModeConfirm:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.queue = nil
			m.mode = ModeList
			return m, nil
		default:
			return m, m.confirmation.Update(msg)
		}

	case ModeComplete, ModeError:
		switch msg.String() {
		case "ctrl+c", "q", "enter":
			m.close()
			return m, tea.Quit
		}
	}

	if m.mode == ModeList {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

// selectedIndex maps the selected list item back to its position in status,
// which differs from the list index while a filter is applied.
func (m MigrateModel) selectedIndex() int {
	item, ok := m.list.SelectedItem().(UnitItem)
	if !ok {
		return -1
	}
	for i, s := range m.status {
		if s.Version == item.Version {
			return i
		}
	}
	return -1
}

func (m *MigrateModel) close() {
	if m.locked {
		_ = m.runner.Unlock(m.ctx)
		m.locked = false
	}
	if m.db != nil {
		m.db.Close()
		m.db = nil
	}
}

// View renders the UI
func (m MigrateModel) View() string {
	center := func(s string) string {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
	}

	switch m.mode {
	case ModeLoading:
		return center(mutedStyle.Render("Loading migrations..."))

	case ModeList:
		help := helpStyle.Render(
			FormatKey("↑/↓", "navigate") + " • " +
				FormatKey("enter", string(m.action)+" to here") + " • " +
				FormatKey("q", "quit"),
		)
		return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), help)

	case ModeConfirm:
		return center(m.confirmation.View())

	case ModeExecuting:
		return center(lipgloss.JoinVertical(lipgloss.Left, m.progress.View(), "\n", m.logs.View()))

	case ModeComplete:
		msg := titleStyle.Render("Migration Complete!") + "\n\n" +
			successStyle.Render(fmt.Sprintf("Successfully executed %d migration(s)", m.progress.Total)) + "\n\n" +
			helpStyle.Render(FormatKey("enter/q", "exit"))
		return center(boxStyle.Render(msg))

	case ModeError:
		msg := titleStyle.Render("Migration Failed") + "\n\n" +
			errorStyle.Render(m.err.Error()) + "\n\n" +
			helpStyle.Render(FormatKey("enter/q", "exit"))
		return center(boxStyle.Render(msg))
	}

	return "Unknown mode"
}

// RunMigrateUI starts the interactive migration UI
func RunMigrateUI(ctx context.Context, action Action, config *runtime.Config, units []migration.Unit, log logrus.FieldLogger) error {
	p := tea.NewProgram(NewMigrateModel(ctx, action, config, units, log), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(MigrateModel); ok && m.err != nil {
		return m.err
	}
	return nil
}
