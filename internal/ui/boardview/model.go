// Package boardview renders the open project's board as three status
// columns and turns keyboard grab-and-move gestures into move requests.
package boardview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/teamboard/internal/board"
	"github.com/nhle/teamboard/internal/keys"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/theme"
	"github.com/nhle/teamboard/internal/ui"
)

// MoveRequestMsg asks the root model to persist a drop.
type MoveRequestMsg struct {
	Move board.Move
}

// OpenTaskMsg opens the detail view of a task.
type OpenTaskMsg struct{ TaskID int }

// NewTaskMsg opens the create form with Status preselected.
type NewTaskMsg struct{ Status model.Status }

// EditTaskMsg opens the edit form of a task.
type EditTaskMsg struct{ TaskID int }

// DeleteTaskMsg asks the root model to delete a task.
type DeleteTaskMsg struct{ TaskID int }

// CommentsMsg opens the project's comment thread.
type CommentsMsg struct{}

// RefreshMsg asks for an immediate reload.
type RefreshMsg struct{}

// BackMsg returns to the project list.
type BackMsg struct{}

// Permissions describes what the current user may do on the board.
type Permissions struct {
	Manager  bool
	Username string
}

// CanMove reports whether the user may move or change the status of t.
func (p Permissions) CanMove(t model.Task) bool {
	return p.Manager || (p.Username != "" && t.AssigneeName() == p.Username)
}

// grab is a card picked up and not dropped yet. The cursor marks the drop
// target while it is set.
type grab struct {
	taskID    int
	from      model.Status
	fromIndex int
}

// cardHeight is the number of lines one card takes.
const cardHeight = 2

// Model is the board view. It renders from the board it is given and never
// mutates it.
type Model struct {
	board   *board.Board
	keys    *keys.KeyMap
	project model.Project
	perms   Permissions
	col     int
	row     int
	grab    *grab
	now     func() time.Time
	width   int
	height  int
}

// New creates an empty board view.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		keys:   k,
		now:    time.Now,
		width:  width,
		height: height,
	}
}

// SetBoard points the view at the board of project and resets the cursor.
func (m *Model) SetBoard(b *board.Board, project model.Project, perms Permissions) {
	m.board = b
	m.project = project
	m.perms = perms
	m.col, m.row = 0, 0
	m.grab = nil
}

// SetNow overrides the clock used for lateness.
func (m *Model) SetNow(now func() time.Time) { m.now = now }

// Project returns the project on display.
func (m Model) Project() model.Project { return m.project }

// Permissions returns the current user's board permissions.
func (m Model) Permissions() Permissions { return m.perms }

// Grabbing reports whether a card is picked up.
func (m Model) Grabbing() bool { return m.grab != nil }

// Cursor returns the focused column and row.
func (m Model) Cursor() (model.Status, int) {
	return model.Columns[m.col], m.row
}

// SelectedTask returns the task under the cursor.
func (m Model) SelectedTask() (model.Task, bool) {
	if m.board == nil {
		return model.Task{}, false
	}
	tasks := m.board.Column(model.Columns[m.col])
	if m.row < 0 || m.row >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[m.row], true
}

// Update handles key input.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.board == nil {
		return m, nil
	}
	m.clampCursor()
	if m.grab != nil {
		return m.handleGrabKeys(keyMsg)
	}
	return m.handleKeys(keyMsg)
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return BackMsg{} }

	case key.Matches(msg, m.keys.Left):
		if m.col > 0 {
			m.col--
		}
	case key.Matches(msg, m.keys.Right):
		if m.col < len(model.Columns)-1 {
			m.col++
		}
	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, m.keys.Down):
		m.row++

	case key.Matches(msg, m.keys.Grab):
		t, ok := m.SelectedTask()
		if !ok {
			return m, nil
		}
		if t.ID < 0 {
			return m, ui.Notice("This task is still being created.")
		}
		if !m.perms.CanMove(t) {
			return m, ui.Notice("You can only move tasks assigned to you.")
		}
		m.grab = &grab{taskID: t.ID, from: t.Status, fromIndex: m.row}

	case key.Matches(msg, m.keys.Select):
		if t, ok := m.SelectedTask(); ok {
			return m, func() tea.Msg { return OpenTaskMsg{TaskID: t.ID} }
		}

	case key.Matches(msg, m.keys.New):
		if !m.perms.Manager {
			return m, ui.Notice("Only project managers can create tasks.")
		}
		status := model.Columns[m.col]
		return m, func() tea.Msg { return NewTaskMsg{Status: status} }

	case key.Matches(msg, m.keys.Edit):
		t, ok := m.SelectedTask()
		if !ok {
			return m, nil
		}
		if !m.perms.CanMove(t) {
			return m, ui.Notice("You are not allowed to edit this task.")
		}
		return m, func() tea.Msg { return EditTaskMsg{TaskID: t.ID} }

	case key.Matches(msg, m.keys.Delete):
		t, ok := m.SelectedTask()
		if !ok {
			return m, nil
		}
		if !m.perms.Manager {
			return m, ui.Notice("Only project managers can delete tasks.")
		}
		return m, func() tea.Msg { return DeleteTaskMsg{TaskID: t.ID} }

	case key.Matches(msg, m.keys.Comments):
		return m, func() tea.Msg { return CommentsMsg{} }

	case key.Matches(msg, m.keys.Refresh):
		return m, func() tea.Msg { return RefreshMsg{} }
	}
	m.clampCursor()
	return m, nil
}

func (m Model) handleGrabKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.col = columnIndex(m.grab.from)
		m.row = m.grab.fromIndex
		m.grab = nil
		return m, nil

	case key.Matches(msg, m.keys.Grab), key.Matches(msg, m.keys.Select):
		return m.drop()

	case key.Matches(msg, m.keys.Left):
		if m.col > 0 {
			m.col--
			m.row = min(m.row, m.dropLimit())
		}
	case key.Matches(msg, m.keys.Right):
		if m.col < len(model.Columns)-1 {
			m.col++
			m.row = min(m.row, m.dropLimit())
		}
	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, m.keys.Down):
		if m.row < m.dropLimit() {
			m.row++
		}
	}
	return m, nil
}

// drop ends the grab. The source index is taken from the board at drop time
// since a reload may have shifted it.
func (m Model) drop() (Model, tea.Cmd) {
	g := m.grab
	m.grab = nil

	_, status, index, ok := m.board.Find(g.taskID)
	if !ok {
		return m, ui.Notice("The task was removed while you were moving it.")
	}
	mv := board.Move{
		TaskID:    g.taskID,
		From:      status,
		To:        model.Columns[m.col],
		FromIndex: index,
		ToIndex:   m.row,
	}
	if mv.From == mv.To && mv.FromIndex == mv.ToIndex {
		return m, nil
	}
	return m, func() tea.Msg { return MoveRequestMsg{Move: mv} }
}

// dropLimit is the largest target row in the focused column. A card dropped
// in its own column can take any existing slot; elsewhere it can also go
// after the last card.
func (m Model) dropLimit() int {
	n := len(m.board.Column(model.Columns[m.col]))
	if model.Columns[m.col] == m.grab.from {
		return max(n-1, 0)
	}
	return n
}

func (m *Model) clampCursor() {
	if m.board == nil || m.grab != nil {
		return
	}
	n := len(m.board.Column(model.Columns[m.col]))
	if m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

// preview returns the partitions to draw: the board as is, or the board
// with the grabbed card at the cursor.
func (m Model) preview() (board.Partitions, int) {
	p := m.board.Partitions()
	if m.grab == nil {
		return p, 0
	}
	_, status, index, ok := m.board.Find(m.grab.taskID)
	if !ok {
		return p, 0
	}
	res, err := board.ComputeMove(p, board.Move{
		TaskID:    m.grab.taskID,
		From:      status,
		To:        model.Columns[m.col],
		FromIndex: index,
		ToIndex:   m.row,
	})
	if err != nil {
		return p, 0
	}
	return res.Partitions, m.grab.taskID
}

// View renders the board.
func (m Model) View() string {
	if m.board == nil {
		return theme.HelpStyle.Render("No project open.")
	}

	parts, grabbedID := m.preview()
	colWidth := max((m.width-len(model.Columns)*4)/len(model.Columns), 16)
	visible := max((m.height-6)/cardHeight, 1)
	now := m.now()

	columns := make([]string, 0, len(model.Columns))
	for i, status := range model.Columns {
		tasks := parts[status]
		focused := i == m.col

		header := theme.StatusStyle(status).Render(
			fmt.Sprintf("%s (%d)", status.Label(), len(tasks)))

		offset := 0
		if focused && m.row >= visible {
			offset = m.row - visible + 1
		}

		lines := []string{header, ""}
		if len(tasks) == 0 {
			lines = append(lines, theme.HelpStyle.Render("  empty"))
		}
		for j := offset; j < len(tasks) && j < offset+visible; j++ {
			t := tasks[j]
			selected := focused && j == m.row
			lines = append(lines, renderCard(t, colWidth, now, selected, t.ID == grabbedID))
		}

		style := theme.ColumnStyle
		if focused {
			style = theme.FocusedColumnStyle
		}
		columns = append(columns, style.Width(colWidth).Render(strings.Join(lines, "\n")))
	}

	title := theme.TitleStyle.Render(m.project.Title)
	if m.perms.Manager {
		title += theme.RoleStyle(model.ProjectRoleManager).Render(model.ProjectRoleManager)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		lipgloss.JoinHorizontal(lipgloss.Top, columns...),
	)
}

func renderCard(t model.Task, width int, now time.Time, selected, grabbed bool) string {
	title := truncate(t.Title, width-3)
	if t.IsLate(now) {
		title = theme.StatusStyle(model.StatusLate).UnsetPadding().Render("!") + " " + title
	}

	var meta []string
	if name := t.AssigneeName(); name != "" {
		meta = append(meta, "@"+name)
	}
	if t.Deadline != nil {
		meta = append(meta, humanize.RelTime(*t.Deadline, now, "ago", "left"))
	}
	if t.Tags != "" {
		meta = append(meta, "#"+strings.ReplaceAll(t.Tags, ",", " #"))
	}
	detail := theme.DeadlineStyle(t.IsLate(now), t.IsDueSoon(now)).
		Render(truncate(strings.Join(meta, " "), width-3))

	card := title + "\n" + detail
	switch {
	case grabbed:
		return theme.GrabbedCardStyle.Render(card)
	case t.ID < 0:
		return theme.PendingCardStyle.Render(card)
	case selected:
		return theme.SelectedCardStyle.Render(card)
	default:
		return theme.CardStyle.Render(card)
	}
}

func columnIndex(s model.Status) int {
	for i, c := range model.Columns {
		if c == s {
			return i
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if n <= 1 || lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) > n-1 {
		r = r[:n-1]
	}
	return string(r) + "…"
}

// SetSize updates the board dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
