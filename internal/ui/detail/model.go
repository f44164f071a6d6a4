package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/teamboard/internal/keys"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/theme"
)

// BackMsg signals the parent to navigate back to the board.
type BackMsg struct{}

// EditMsg asks the parent to open the edit form for the shown task.
type EditMsg struct{ TaskID int }

// DeleteMsg asks the parent to delete the shown task.
type DeleteMsg struct{ TaskID int }

// Model is the task detail view component.
type Model struct {
	task     *model.Task
	project  string
	viewport viewport.Model
	keys     *keys.KeyMap
	now      func() time.Time
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		now:      time.Now,
		width:    width,
		height:   height,
	}
}

// SetTask shows t, which belongs to the named project. A nil task
// renders a placeholder.
func (m *Model) SetTask(t *model.Task, project string) {
	m.task = t
	m.project = project
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetNow overrides the clock used for lateness.
func (m *Model) SetNow(now func() time.Time) { m.now = now }

// TaskID returns the id of the shown task, 0 when none.
func (m Model) TaskID() int {
	if m.task == nil {
		return 0
	}
	return m.task.ID
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Edit):
			if m.task != nil {
				id := m.task.ID
				return m, func() tea.Msg { return EditMsg{TaskID: id} }
			}

		case key.Matches(msg, m.keys.Delete):
			if m.task != nil {
				id := m.task.ID
				return m, func() tea.Msg { return DeleteMsg{TaskID: id} }
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(m.viewport.View())
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 8
	m.viewport.Height = height - 4
	m.viewport.SetContent(m.renderContent())
}

func (m Model) renderContent() string {
	if m.task == nil {
		return theme.HelpStyle.Render("Task not found. It may have been deleted.")
	}
	t := m.task
	now := m.now()

	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render(t.Title))
	b.WriteString("\n")

	status := t.EffectiveStatus(now)
	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", theme.DimmedStyle.Render(fmt.Sprintf("%-10s", label)), value)
	}

	row("Status", theme.StatusStyle(status).Render(status.Label()))
	if m.project != "" {
		row("Project", m.project)
	}
	assignee := t.AssigneeName()
	if assignee == "" {
		assignee = "unassigned"
	}
	row("Assignee", assignee)
	if t.Deadline != nil {
		deadline := fmt.Sprintf("%s (%s)",
			t.Deadline.In(time.Local).Format("Mon 2 Jan 2006 15:04"),
			humanize.RelTime(*t.Deadline, now, "ago", "from now"))
		row("Deadline", theme.DeadlineStyle(t.IsLate(now), t.IsDueSoon(now)).Render(deadline))
	}
	if t.Tags != "" {
		row("Tags", t.Tags)
	}
	if t.ID < 0 {
		row("", theme.HelpStyle.Render("saving..."))
	}

	b.WriteString("\n")
	if strings.TrimSpace(t.Description) == "" {
		b.WriteString(theme.HelpStyle.Render("No description."))
	} else {
		b.WriteString(t.Description)
	}
	return b.String()
}
