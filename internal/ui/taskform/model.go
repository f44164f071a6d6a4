package taskform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/teamboard/internal/api"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/theme"
)

// CreateMsg is dispatched when the create form is submitted.
type CreateMsg struct {
	Input    model.TaskInput
	Assignee *model.Assignee
}

// UpdateMsg is dispatched when the edit form is submitted.
type UpdateMsg struct {
	Task model.Task
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formDeadlineLayout is how deadlines are shown in the form.
const formDeadlineLayout = "2006-01-02 15:04"

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	description string
	status      model.Status
	deadline    string
	tags        string
	assigneeID  string
}

type formMode int

const (
	modeCreate formMode = iota
	modeEdit
	// modeStatus is the edit form of a member: only the status can change.
	modeStatus
)

// Model is the Bubble Tea model for the task create/edit form.
type Model struct {
	form      *huh.Form
	fb        *formBindings
	mode      formMode
	editing   model.Task
	projectID int
	members   []model.Member
	width     int
	height    int
}

// New creates a new task form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{status: model.StatusTodo},
		width:  width,
		height: height,
	}
}

// SetMembers sets the project whose tasks the form edits and the members
// that can be assigned.
func (m *Model) SetMembers(projectID int, members []model.Member) {
	m.projectID = projectID
	m.members = members
}

// StartCreate initializes the form for a new task in status.
func (m *Model) StartCreate(status model.Status) tea.Cmd {
	m.mode = modeCreate
	m.editing = model.Task{}
	*m.fb = formBindings{status: status}
	if len(m.members) == 1 {
		m.fb.assigneeID = strconv.Itoa(m.members[0].UserID)
	}
	m.form = m.build()
	return m.form.Init()
}

// StartEdit initializes the form for t. statusOnly restricts the form to
// the status field.
func (m *Model) StartEdit(t model.Task, statusOnly bool) tea.Cmd {
	m.mode = modeEdit
	if statusOnly {
		m.mode = modeStatus
	}
	m.editing = t
	*m.fb = formBindings{
		title:       t.Title,
		description: t.Description,
		status:      t.Status,
		tags:        t.Tags,
	}
	if t.Deadline != nil {
		m.fb.deadline = t.Deadline.In(time.Local).Format(formDeadlineLayout)
	}
	if t.Assignee != nil {
		m.fb.assigneeID = strconv.Itoa(t.Assignee.ID)
	}
	m.form = m.build()
	return m.form.Init()
}

// Update handles messages for the task form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the task form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Task"
	switch m.mode {
	case modeEdit:
		titleText = "Edit Task"
	case modeStatus:
		titleText = "Change Status: " + m.editing.Title
	}

	content := theme.TitleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) build() *huh.Form {
	var fields []huh.Field
	if m.mode != modeStatus {
		fields = append(fields,
			huh.NewInput().
				Title("Title").
				Placeholder("What needs to be done?").
				Value(&m.fb.title).
				Validate(validateRequired("Title")),
			huh.NewText().
				Title("Description").
				Placeholder("Optional details...").
				Value(&m.fb.description),
		)
	}
	fields = append(fields, m.statusField())
	if m.mode != modeStatus {
		fields = append(fields,
			huh.NewInput().
				Title("Deadline").
				Placeholder("YYYY-MM-DD HH:MM (optional)").
				Value(&m.fb.deadline).
				Validate(validateOptionalDeadline),
			huh.NewInput().
				Title("Tags").
				Placeholder("comma separated (optional)").
				Value(&m.fb.tags),
			m.assigneeField(),
		)
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m *Model) statusField() huh.Field {
	opts := []huh.Option[model.Status]{
		huh.NewOption(model.StatusTodo.Label(), model.StatusTodo),
		huh.NewOption(model.StatusInProgress.Label(), model.StatusInProgress),
		huh.NewOption(model.StatusDone.Label(), model.StatusDone),
	}
	// LATE is offered on edit and kept in progress on submit.
	if m.mode != modeCreate {
		opts = append(opts, huh.NewOption(model.StatusLate.Label(), model.StatusLate))
	}
	return huh.NewSelect[model.Status]().
		Title("Status").
		Options(opts...).
		Value(&m.fb.status)
}

func (m *Model) assigneeField() huh.Field {
	opts := make([]huh.Option[string], 0, len(m.members)+1)
	opts = append(opts, huh.NewOption("Select a member", ""))
	for _, mem := range m.members {
		opts = append(opts, huh.NewOption(mem.Username, strconv.Itoa(mem.UserID)))
	}
	return huh.NewSelect[string]().
		Title("Assignee").
		Options(opts...).
		Value(&m.fb.assigneeID).
		Validate(func(s string) error {
			if s == "" {
				return fmt.Errorf("select a member to assign the task to")
			}
			return nil
		})
}

func (m Model) assignee() *model.Assignee {
	id, err := strconv.Atoi(m.fb.assigneeID)
	if err != nil {
		return nil
	}
	for _, mem := range m.members {
		if mem.UserID == id {
			return &model.Assignee{ID: mem.UserID, Username: mem.Username}
		}
	}
	return &model.Assignee{ID: id}
}

func (m Model) deadline() *time.Time {
	raw := strings.TrimSpace(m.fb.deadline)
	if raw == "" {
		return nil
	}
	t, err := api.ParseTimestamp(raw)
	if err != nil {
		return nil
	}
	return &t
}

func (m Model) handleSubmit() tea.Cmd {
	switch m.mode {
	case modeStatus:
		t := m.editing
		t.Status = model.EditableStatus(m.fb.status)
		return func() tea.Msg { return UpdateMsg{Task: t} }

	case modeEdit:
		t := m.editing
		t.Title = strings.TrimSpace(m.fb.title)
		t.Description = m.fb.description
		t.Status = model.EditableStatus(m.fb.status)
		t.Deadline = m.deadline()
		t.Tags = strings.TrimSpace(m.fb.tags)
		if a := m.assignee(); a != nil {
			t.Assignee = a
		}
		return func() tea.Msg { return UpdateMsg{Task: t} }
	}

	a := m.assignee()
	in := model.TaskInput{
		Title:       m.fb.title,
		Description: m.fb.description,
		Deadline:    m.deadline(),
		Status:      m.fb.status,
		ProjectID:   m.projectID,
		Tags:        strings.TrimSpace(m.fb.tags),
	}
	if a != nil {
		in.AssignedToID = a.ID
	}
	in = in.Normalize()
	return func() tea.Msg { return CreateMsg{Input: in, Assignee: a} }
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

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalDeadline(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := api.ParseTimestamp(s); err != nil {
		return fmt.Errorf("invalid deadline, use YYYY-MM-DD or YYYY-MM-DD HH:MM")
	}
	return nil
}
