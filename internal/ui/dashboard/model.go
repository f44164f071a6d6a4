// Package dashboard shows the caller's task counts and, for managers, the
// counts across the projects they manage.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/teamboard/internal/keys"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/theme"
)

// Service is the remote surface the dashboard needs.
type Service interface {
	Dashboard(ctx context.Context) (*model.Dashboard, error)
	ManagerDashboard(ctx context.Context) (*model.ManagerDashboard, error)
	ListTasks(ctx context.Context, projectID int) ([]model.Task, error)
}

// CloseMsg signals the parent to leave the dashboard.
type CloseMsg struct{}

// LoadedMsg carries a dashboard load.
type LoadedMsg struct {
	User    *model.Dashboard
	Manager *model.ManagerDashboard
	Tasks   []model.Task
	Err     error
}

// loadTimeout bounds the dashboard requests together.
const loadTimeout = 20 * time.Second

// maxUpcoming caps the deadline list.
const maxUpcoming = 8

// Model is the dashboard view.
type Model struct {
	svc      Service
	keys     *keys.KeyMap
	manager  bool
	loading  bool
	data     LoadedMsg
	loadedAt time.Time
	now      func() time.Time
	width    int
	height   int
}

// New creates a dashboard backed by svc.
func New(svc Service, k *keys.KeyMap, width, height int) Model {
	return Model{
		svc:    svc,
		keys:   k,
		now:    time.Now,
		width:  width,
		height: height,
	}
}

// Open loads the dashboard. manager adds the managed-projects summary.
func (m *Model) Open(manager bool) tea.Cmd {
	m.manager = manager
	m.loading = true
	return m.load()
}

// SetNow overrides the clock.
func (m *Model) SetNow(now func() time.Time) { m.now = now }

func (m Model) load() tea.Cmd {
	svc, manager := m.svc, m.manager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		var out LoadedMsg
		if out.User, out.Err = svc.Dashboard(ctx); out.Err != nil {
			return out
		}
		if manager {
			if out.Manager, out.Err = svc.ManagerDashboard(ctx); out.Err != nil {
				return out
			}
		}
		out.Tasks, out.Err = svc.ListTasks(ctx, 0)
		return out
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		m.data = msg
		m.loadedAt = m.now()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return CloseMsg{} }
		case key.Matches(msg, m.keys.Refresh):
			m.loading = true
			return m, m.load()
		}
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	title := theme.TitleStyle.Render("Dashboard")
	if m.loading && m.data.User == nil {
		return lipgloss.JoinVertical(lipgloss.Left, title, theme.HelpStyle.Render("Loading..."))
	}
	if m.data.Err != nil {
		return lipgloss.JoinVertical(lipgloss.Left, title,
			theme.NoticeStyle.Render(fmt.Sprintf("Could not load dashboard: %v", m.data.Err)))
	}

	parts := []string{title}
	if d := m.data.User; d != nil {
		parts = append(parts, theme.BorderStyle.Padding(0, 1).Render(counts("My tasks", []stat{
			{"Projects", d.ProjectCount, model.Status("")},
			{"Total", d.TotalTasks, model.Status("")},
			{"To do", d.TodoCount, model.StatusTodo},
			{"In progress", d.InProgressCount, model.StatusInProgress},
			{"Done", d.DoneCount, model.StatusDone},
			{"Late", d.LateCount, model.StatusLate},
		})))
	}
	if d := m.data.Manager; d != nil {
		parts = append(parts, theme.BorderStyle.Padding(0, 1).Render(counts("Managed projects", []stat{
			{"Projects", d.ManagedProjects, model.Status("")},
			{"Members", d.TotalMembers, model.Status("")},
			{"Total", d.TotalTasks, model.Status("")},
			{"To do", d.TodoCount, model.StatusTodo},
			{"In progress", d.InProgressCount, model.StatusInProgress},
			{"Done", d.DoneCount, model.StatusDone},
			{"Late", d.LateCount, model.StatusLate},
		})))
	}
	parts = append(parts, m.upcoming())
	if !m.loadedAt.IsZero() {
		parts = append(parts, theme.HelpStyle.Render("updated "+humanize.RelTime(m.loadedAt, m.now(), "ago", "from now")))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

type stat struct {
	label  string
	value  int
	status model.Status
}

func counts(heading string, stats []stat) string {
	lines := []string{lipgloss.NewStyle().Bold(true).Render(heading)}
	for _, s := range stats {
		value := humanize.Comma(int64(s.value))
		if s.status != "" {
			value = theme.StatusStyle(s.status).UnsetPadding().Render(value)
		}
		lines = append(lines, fmt.Sprintf("%-12s %s", s.label, value))
	}
	return strings.Join(lines, "\n")
}

// Upcoming returns the caller's unfinished tasks with a deadline, soonest
// first.
func Upcoming(tasks []model.Task) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.Deadline != nil && t.Status != model.StatusDone {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Deadline.Before(*out[j].Deadline)
	})
	if len(out) > maxUpcoming {
		out = out[:maxUpcoming]
	}
	return out
}

func (m Model) upcoming() string {
	tasks := Upcoming(m.data.Tasks)
	if len(tasks) == 0 {
		return theme.HelpStyle.Render("No upcoming deadlines.")
	}
	now := m.now()
	lines := []string{lipgloss.NewStyle().Bold(true).Render("Deadlines")}
	for _, t := range tasks {
		when := humanize.RelTime(*t.Deadline, now, "overdue", "left")
		lines = append(lines, fmt.Sprintf("%s %s",
			theme.DeadlineStyle(t.IsLate(now), t.IsDueSoon(now)).Render(fmt.Sprintf("%-16s", when)),
			t.Title))
	}
	return strings.Join(lines, "\n")
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
