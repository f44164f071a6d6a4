package login

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/teamboard/internal/theme"
)

// SubmitMsg is dispatched when the user submits credentials.
type SubmitMsg struct {
	Username string
	Password string
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	username string
	password string
}

// Model is the login form.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	server  string
	message string
	busy    bool
	width   int
	height  int
}

// New creates a login form for the service at server.
func New(server string, width, height int) Model {
	return Model{
		fb:     &formBindings{},
		server: server,
		width:  width,
		height: height,
	}
}

// Start resets the form. message is shown above it, for example why the
// previous session ended. The username is kept.
func (m *Model) Start(message string) tea.Cmd {
	m.fb.password = ""
	m.message = message
	m.busy = false
	m.form = m.buildForm()
	return m.form.Init()
}

// SetError shows a failed attempt and reopens the form.
func (m *Model) SetError(err error) tea.Cmd {
	return m.Start(fmt.Sprintf("Login failed: %v", err))
}

// Update handles messages for the login form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.busy = true
		sub := SubmitMsg{Username: strings.TrimSpace(m.fb.username), Password: m.fb.password}
		return m, func() tea.Msg { return sub }
	case huh.StateAborted:
		return m, tea.Quit
	}
	return m, cmd
}

// View renders the login form.
func (m Model) View() string {
	title := theme.TitleStyle.Render("Sign in to " + m.server)

	parts := []string{title}
	if m.message != "" {
		parts = append(parts, theme.NoticeStyle.Render(m.message), "")
	}
	if m.busy {
		parts = append(parts, theme.HelpStyle.Render("Signing in..."))
	} else if m.form != nil {
		parts = append(parts, m.form.View())
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	w := m.width - 4
	if w < 30 {
		w = 30
	}
	if w > 60 {
		w = 60
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&m.fb.username).
				Validate(required("Username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(required("Password")),
		),
	).WithWidth(w)
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
