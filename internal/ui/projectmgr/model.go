package projectmgr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/teamboard/internal/keys"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/theme"
)

// Service is the remote surface the project list needs.
type Service interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	CreateProject(ctx context.Context, in model.ProjectInput) (*model.Project, error)
	UpdateProject(ctx context.Context, id int, in model.ProjectInput) error
	DeleteProject(ctx context.Context, id int) error
	ListMembers(ctx context.Context, projectID int) ([]model.Member, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

// OpenProjectMsg asks the parent to open a project's board.
type OpenProjectMsg struct {
	Project model.Project
}

type projectMode int

const (
	modeList projectMode = iota
	modeForm
	modeConfirmDelete
)

type formBindings struct {
	title       string
	description string
	memberIDs   []int
	confirm     bool
}

// ProjectsLoadedMsg carries the project listing.
type ProjectsLoadedMsg struct {
	Projects []model.Project
	Err      error
}

type formOptionsMsg struct {
	users   []model.User
	members []model.Member
	err     error
}

type projectSavedMsg struct{ err error }
type projectDeletedMsg struct{ err error }

// callTimeout bounds each project call.
const callTimeout = 15 * time.Second

// Model is the Bubble Tea model for the project list.
type Model struct {
	mode        projectMode
	svc         Service
	keys        *keys.KeyMap
	projects    []model.Project
	users       []model.User
	selectedIdx int
	editingID   int
	isNew       bool
	canCreate   bool
	loading     bool
	form        *huh.Form
	confirmForm *huh.Form
	fb          *formBindings
	statusMsg   string
	width       int
	height      int
}

// New creates a new project list model.
func New(svc Service, k *keys.KeyMap, width, height int) Model {
	return Model{
		mode:  modeList,
		svc:   svc,
		keys:  k,
		fb:    &formBindings{},
		width: width, height: height,
	}
}

// SetCanCreate controls whether the new-project action is offered. Only
// managers and administrators create projects.
func (m *Model) SetCanCreate(ok bool) { m.canCreate = ok }

// Init loads projects from the remote.
func (m *Model) Init() tea.Cmd {
	m.mode = modeList
	m.loading = true
	return m.loadProjects()
}

// Projects returns the loaded projects.
func (m Model) Projects() []model.Project { return m.projects }

// Editing reports whether a form has focus.
func (m Model) Editing() bool { return m.mode != modeList }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ProjectsLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.Err)
			return m, nil
		}
		m.projects = msg.Projects
		if m.selectedIdx >= len(m.projects) && m.selectedIdx > 0 {
			m.selectedIdx = len(m.projects) - 1
		}
		return m, nil

	case formOptionsMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
			m.mode = modeList
			return m, nil
		}
		m.users = msg.users
		if !m.isNew {
			m.fb.memberIDs = nil
			for _, mem := range msg.members {
				if mem.Role == model.ProjectRoleMember {
					m.fb.memberIDs = append(m.fb.memberIDs, mem.UserID)
				}
			}
		}
		m.form = m.buildForm()
		return m, m.form.Init()

	case projectSavedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.statusMsg = "Project saved"
		}
		m.mode = modeList
		return m, m.loadProjects()

	case projectDeletedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.statusMsg = "Project deleted"
		}
		m.mode = modeList
		return m, m.loadProjects()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveForm(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case modeList:
		return m.handleListKey(msg)
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) selected() (model.Project, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.projects) {
		return model.Project{}, false
	}
	return m.projects[m.selectedIdx], true
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if len(m.projects) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.projects)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.projects) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.projects) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if p, ok := m.selected(); ok {
			return m, func() tea.Msg { return OpenProjectMsg{Project: p} }
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.loadProjects()

	case key.Matches(msg, m.keys.New):
		if !m.canCreate {
			m.statusMsg = "Only managers can create projects"
			return m, nil
		}
		m.isNew = true
		m.editingID = 0
		*m.fb = formBindings{}
		m.mode = modeForm
		m.form = nil
		return m, m.loadFormOptions(0)

	case key.Matches(msg, m.keys.Edit):
		p, ok := m.selected()
		if !ok {
			return m, nil
		}
		if !p.IsManager() {
			m.statusMsg = "Only the project manager can edit this project"
			return m, nil
		}
		m.isNew = false
		m.editingID = p.ID
		*m.fb = formBindings{title: p.Title, description: p.Description}
		m.mode = modeForm
		m.form = nil
		return m, m.loadFormOptions(p.ID)

	case key.Matches(msg, m.keys.Delete):
		p, ok := m.selected()
		if !ok {
			return m, nil
		}
		if !p.IsManager() {
			m.statusMsg = "Only the project manager can delete this project"
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Placeholder("Project title").
			Value(&m.fb.title).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("title is required")
				}
				return nil
			}),
		huh.NewText().
			Title("Description").
			Placeholder("Optional description").
			Value(&m.fb.description),
	}
	if len(m.users) > 0 {
		opts := make([]huh.Option[int], len(m.users))
		for i, u := range m.users {
			opts[i] = huh.NewOption(u.Username, u.ID)
		}
		fields = append(fields, huh.NewMultiSelect[int]().
			Title("Members").
			Options(opts...).
			Value(&m.fb.memberIDs))
	}
	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) buildConfirmForm() *huh.Form {
	title := ""
	if p, ok := m.selected(); ok {
		title = p.Title
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete project %q?", title)).
				Description("Its tasks and comments are deleted as well.").
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, m.keys.Back) {
			m.mode = modeList
		}
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		return m, m.saveProject()
	}
	if m.form.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	if m.confirmForm.State == huh.StateCompleted {
		if p, ok := m.selected(); ok && m.fb.confirm {
			return m, m.deleteProject(p.ID)
		}
		m.mode = modeList
		return m, nil
	}
	if m.confirmForm.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

// View renders the project list.
func (m Model) View() string {
	switch m.mode {
	case modeForm:
		if m.form == nil {
			return lipgloss.NewStyle().Padding(1, 2).Render(theme.HelpStyle.Render("Loading users..."))
		}
		return m.viewForm(m.form)
	case modeConfirmDelete:
		return m.viewForm(m.confirmForm)
	default:
		return m.viewList()
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	b.WriteString(theme.TitleStyle.Render("Projects"))
	b.WriteString("\n\n")

	switch {
	case m.loading && len(m.projects) == 0:
		b.WriteString(theme.HelpStyle.Render("Loading..."))
	case len(m.projects) == 0:
		hint := "You are not a member of any project yet."
		if m.canCreate {
			hint = "No projects yet. Press 'n' to create one."
		}
		b.WriteString(theme.HelpStyle.Render(hint))
	default:
		for i, p := range m.projects {
			label := p.Title
			if p.Role != "" {
				label += " " + theme.RoleStyle(p.Role).Render(p.Role)
			}
			if p.Description != "" {
				label += "\n" + theme.DimmedStyle.Render(p.Description)
			}

			if i == m.selectedIdx {
				b.WriteString(theme.SelectedItemStyle.Render(label))
			} else {
				b.WriteString(theme.ListItemStyle.Render(label))
			}
			b.WriteString("\n")
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Italic(true).Render(m.statusMsg))
	}

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Render(b.String())
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}
	title := "Edit Project"
	if m.isNew {
		title = "New Project"
	}
	if m.mode == modeConfirmDelete {
		title = "Delete Project"
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(theme.TitleStyle.Render(title) + "\n" + f.View())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

func (m Model) loadProjects() tea.Cmd {
	s := m.svc
	return func() tea.Msg {
		ctx, cancel := withTimeout()
		defer cancel()
		projects, err := s.ListProjects(ctx)
		return ProjectsLoadedMsg{Projects: projects, Err: err}
	}
}

// loadFormOptions fetches the users that can be added and, when editing,
// the current members.
func (m Model) loadFormOptions(projectID int) tea.Cmd {
	s := m.svc
	return func() tea.Msg {
		ctx, cancel := withTimeout()
		defer cancel()
		var out formOptionsMsg
		if out.users, out.err = s.ListUsers(ctx); out.err != nil {
			return out
		}
		if projectID != 0 {
			out.members, out.err = s.ListMembers(ctx, projectID)
		}
		return out
	}
}

func (m Model) saveProject() tea.Cmd {
	s := m.svc
	in := model.ProjectInput{
		Title:       strings.TrimSpace(m.fb.title),
		Description: m.fb.description,
		MemberIDs:   append([]int(nil), m.fb.memberIDs...),
	}
	editID := m.editingID
	isNew := m.isNew
	return func() tea.Msg {
		ctx, cancel := withTimeout()
		defer cancel()
		if isNew {
			_, err := s.CreateProject(ctx, in)
			return projectSavedMsg{err: err}
		}
		err := s.UpdateProject(ctx, editID, in)
		return projectSavedMsg{err: err}
	}
}

func (m Model) deleteProject(id int) tea.Cmd {
	s := m.svc
	return func() tea.Msg {
		ctx, cancel := withTimeout()
		defer cancel()
		return projectDeletedMsg{err: s.DeleteProject(ctx, id)}
	}
}
