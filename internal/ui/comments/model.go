// Package comments is the project discussion thread: pinned comments first,
// then newest first.
package comments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/teamboard/internal/keys"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/theme"
	"github.com/nhle/teamboard/internal/ui"
)

// Service is the remote surface the thread needs.
type Service interface {
	ListComments(ctx context.Context, projectID int) ([]model.Comment, error)
	AddComment(ctx context.Context, projectID int, content string) error
	DeleteComment(ctx context.Context, projectID, commentID int) error
	TogglePin(ctx context.Context, projectID, commentID int) error
}

// CloseMsg signals the parent to close the thread.
type CloseMsg struct{}

// Viewer identifies who is reading the thread.
type Viewer struct {
	Username string
	Manager  bool
	Admin    bool
}

// CanDelete reports whether the viewer may delete c.
func (v Viewer) CanDelete(c model.Comment) bool {
	return v.Admin || c.AuthorUsername == v.Username
}

type loadedMsg struct {
	projectID int
	comments  []model.Comment
	err       error
}

type changedMsg struct {
	projectID int
	err       error
}

// callTimeout bounds each comment call.
const callTimeout = 15 * time.Second

// Model is the comment thread view.
type Model struct {
	svc       Service
	keys      *keys.KeyMap
	projectID int
	title     string
	viewer    Viewer
	comments  []model.Comment
	selected  int
	writing   bool
	loading   bool
	input     textinput.Model
	now       func() time.Time
	width     int
	height    int
}

// New creates a thread view backed by svc.
func New(svc Service, k *keys.KeyMap, width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "write a comment..."
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Width = width - 8

	return Model{
		svc:    svc,
		keys:   k,
		input:  ti,
		now:    time.Now,
		width:  width,
		height: height,
	}
}

// Open shows the thread of a project and loads it.
func (m *Model) Open(projectID int, title string, viewer Viewer) tea.Cmd {
	m.projectID = projectID
	m.title = title
	m.viewer = viewer
	m.comments = nil
	m.selected = 0
	m.writing = false
	m.loading = true
	m.input.Reset()
	return m.load()
}

// Writing reports whether the comment input has focus.
func (m Model) Writing() bool { return m.writing }

// Comments returns the loaded comments in display order.
func (m Model) Comments() []model.Comment { return m.comments }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if msg.projectID != m.projectID {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			return m, ui.Notice(fmt.Sprintf("Could not load comments: %v", msg.err))
		}
		m.comments = msg.comments
		if m.selected >= len(m.comments) {
			m.selected = max(len(m.comments)-1, 0)
		}
		return m, nil

	case changedMsg:
		if msg.projectID != m.projectID {
			return m, nil
		}
		if msg.err != nil {
			return m, tea.Batch(ui.Notice(msg.err.Error()), m.load())
		}
		return m, m.load()

	case tea.KeyMsg:
		if m.writing {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)
	}

	if m.writing {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.writing = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		content := strings.TrimSpace(m.input.Value())
		m.writing = false
		m.input.Blur()
		m.input.Reset()
		if content == "" {
			return m, nil
		}
		return m, m.add(content)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.comments)-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, m.keys.New):
		m.writing = true
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.load()

	case key.Matches(msg, m.keys.Pin):
		c, ok := m.current()
		if !ok {
			return m, nil
		}
		if !m.viewer.Manager {
			return m, ui.Notice("Only project managers can pin comments.")
		}
		return m, m.togglePin(c.ID)

	case key.Matches(msg, m.keys.Delete):
		c, ok := m.current()
		if !ok {
			return m, nil
		}
		if !m.viewer.CanDelete(c) {
			return m, ui.Notice("You can only delete your own comments.")
		}
		return m, m.remove(c.ID)
	}
	return m, nil
}

func (m Model) current() (model.Comment, bool) {
	if m.selected < 0 || m.selected >= len(m.comments) {
		return model.Comment{}, false
	}
	return m.comments[m.selected], true
}

func (m Model) load() tea.Cmd {
	svc, id := m.svc, m.projectID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		comments, err := svc.ListComments(ctx, id)
		return loadedMsg{projectID: id, comments: comments, err: err}
	}
}

func (m Model) change(call func(ctx context.Context) error) tea.Cmd {
	id := m.projectID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		return changedMsg{projectID: id, err: call(ctx)}
	}
}

func (m Model) add(content string) tea.Cmd {
	svc, id := m.svc, m.projectID
	return m.change(func(ctx context.Context) error {
		return svc.AddComment(ctx, id, content)
	})
}

func (m Model) togglePin(commentID int) tea.Cmd {
	svc, id := m.svc, m.projectID
	return m.change(func(ctx context.Context) error {
		return svc.TogglePin(ctx, id, commentID)
	})
}

func (m Model) remove(commentID int) tea.Cmd {
	svc, id := m.svc, m.projectID
	return m.change(func(ctx context.Context) error {
		return svc.DeleteComment(ctx, id, commentID)
	})
}

// View renders the thread.
func (m Model) View() string {
	title := theme.TitleStyle.Render("Comments: " + m.title)

	var body []string
	switch {
	case m.loading && len(m.comments) == 0:
		body = append(body, theme.HelpStyle.Render("Loading..."))
	case len(m.comments) == 0:
		body = append(body, theme.HelpStyle.Render("No comments yet. Press n to write one."))
	}

	now := m.now()
	for i, c := range m.comments {
		header := c.AuthorUsername + " · " + humanize.RelTime(c.CreatedAt, now, "ago", "from now")
		if c.Pinned {
			header = theme.PinnedStyle.Render("pinned") + " " + header
		}
		entry := header + "\n" + c.Content
		if i == m.selected && !m.writing {
			body = append(body, theme.SelectedItemStyle.Render(entry))
		} else {
			body = append(body, theme.ListItemStyle.Render(entry))
		}
	}

	parts := []string{title, strings.Join(body, "\n\n")}
	if m.writing {
		parts = append(parts, "", m.input.View())
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 8
}
