package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/teamboard/internal/board"
	"github.com/nhle/teamboard/internal/gateway"
	"github.com/nhle/teamboard/internal/model"
	appsync "github.com/nhle/teamboard/internal/sync"
	"github.com/nhle/teamboard/internal/ui/boardview"
	"github.com/nhle/teamboard/internal/ui/comments"
)

// projectOpenedMsg carries everything needed to show a project board.
type projectOpenedMsg struct {
	project model.Project
	role    string
	members []model.Member
	tasks   []model.Task
	err     error
}

// loadProject fetches the caller's role, the members and the tasks of p.
func (m Model) loadProject(p model.Project) tea.Cmd {
	remote := m.remote
	timeout := m.cfg.Server.Timeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*timeout)
		defer cancel()

		out := projectOpenedMsg{project: p}
		if out.role, out.err = remote.Role(ctx, p.ID); out.err != nil {
			return out
		}
		if out.members, out.err = remote.ListMembers(ctx, p.ID); out.err != nil {
			return out
		}
		out.tasks, out.err = remote.ListTasks(ctx, p.ID)
		return out
	}
}

// enterBoard installs a freshly loaded board and starts its refresher.
func (m *Model) enterBoard(msg projectOpenedMsg) tea.Cmd {
	if msg.project.ID != m.opening {
		return nil
	}
	m.opening = 0
	if msg.err != nil {
		if isReauth(msg.err) {
			return m.toLogin("Your session has expired. Please log in again.")
		}
		m.notice = fmt.Sprintf("Could not open %s: %v", msg.project.Title, msg.err)
		return nil
	}

	m.closeBoard()
	msg.project.Role = msg.role
	m.project = msg.project
	m.members = msg.members

	b := board.New(msg.project.ID, msg.tasks)
	if m.coord == nil {
		m.coord = appsync.NewCoordinator(b, m.remote, m.cfg.Server.Timeout(), m.log)
	} else {
		m.coord.Reset(b)
	}

	interval := time.Duration(m.cfg.Board.RefreshIntervalSec) * time.Second
	m.refresher = appsync.NewRefresher(m.remote, msg.project.ID, interval, m.log)
	m.refresher.SetStamp(m.coord.Issued)
	m.reloadDeferred = false

	perms := boardview.Permissions{
		Manager:  msg.role == model.ProjectRoleManager,
		Username: m.username,
	}
	m.boardView.SetBoard(b, msg.project, perms)
	m.taskForm.SetMembers(msg.project.ID, msg.members)
	m.currentView = ViewBoard

	m.log.WithField("project_id", msg.project.ID).WithField("tasks", b.Len()).Info("board opened")
	return m.refresher.Start()
}

// closeBoard abandons in-flight mutations and stops the refresher.
func (m *Model) closeBoard() {
	if m.coord != nil {
		m.coord.Abandon()
	}
	if m.refresher != nil {
		m.refresher.Stop()
		m.refresher = nil
	}
}

// leaveBoard returns to the project list.
func (m *Model) leaveBoard() tea.Cmd {
	m.closeBoard()
	m.project = model.Project{}
	m.currentView = ViewProjects
	return m.projectView.Init()
}

// mutate reports a mutation that could not start and passes the
// persistence command through otherwise.
func (m *Model) mutate(cmd tea.Cmd, err error) tea.Cmd {
	switch {
	case err == nil:
		return cmd
	case errors.Is(err, appsync.ErrProvisional):
		m.notice = "This task is still being created."
	case errors.Is(err, board.ErrUnknownTask):
		m.notice = "That task is no longer on the board."
		m.requestReload()
	default:
		m.notice = err.Error()
	}
	return nil
}

// settle resolves a completed mutation against the board.
func (m *Model) settle(msg appsync.SettledMsg) tea.Cmd {
	if m.coord == nil {
		return nil
	}
	s := m.coord.Settle(msg)
	if s.Phase == appsync.RolledBack && msg.Outcome.Kind == gateway.Unauthenticated {
		return m.toLogin("Your session has expired. Please log in again.")
	}
	if s.Notice != "" {
		m.notice = s.Notice
	}
	if s.Refresh || m.reloadDeferred {
		m.requestReload()
	}
	if m.currentView == ViewDetail && m.detail.TaskID() == s.TaskID {
		if t, _, _, ok := m.coord.Board().Find(s.TaskID); ok {
			m.detail.SetTask(&t, m.project.Title)
		} else {
			m.currentView = ViewBoard
		}
	}
	return nil
}

// applyReload replaces the board with a fresh load. A load is dropped
// while a mutation is in flight or when one was issued after its fetch
// started; the board then reloads once the coordinator is idle.
func (m *Model) applyReload(msg appsync.BoardLoadedMsg) tea.Cmd {
	if m.refresher == nil || msg.ProjectID != m.project.ID {
		return nil
	}
	if msg.Error == nil {
		if m.coord.Busy() || msg.Since != m.coord.Issued() {
			m.log.WithField("project_id", msg.ProjectID).Debug("stale board reload dropped")
			m.requestReload()
		} else {
			m.coord.Board().Load(msg.Tasks)
		}
	}
	return m.refresher.WaitForNextResult()
}

// requestReload triggers a reload now, or after the last pending mutation
// settles.
func (m *Model) requestReload() {
	if m.refresher == nil {
		return
	}
	if m.coord != nil && m.coord.Busy() {
		m.reloadDeferred = true
		return
	}
	m.reloadDeferred = false
	m.refresher.Refresh()
}

// startEdit opens the task form for id. Members may only change status.
func (m *Model) startEdit(id int, from ViewState) tea.Cmd {
	if m.coord == nil {
		return nil
	}
	t, _, _, ok := m.coord.Board().Find(id)
	if !ok {
		m.notice = "That task is no longer on the board."
		return nil
	}
	if t.ID < 0 {
		m.notice = "This task is still being created."
		return nil
	}
	perms := m.boardView.Permissions()
	if !perms.CanMove(t) {
		m.notice = "You can only change tasks assigned to you."
		return nil
	}
	m.previousView = from
	m.currentView = ViewTaskForm
	return m.taskForm.StartEdit(t, !perms.Manager)
}

func (m *Model) openComments() tea.Cmd {
	if m.project.ID == 0 {
		m.notice = "Open a project first."
		return nil
	}
	m.currentView = ViewComments
	return m.commentView.Open(m.project.ID, m.project.Title, comments.Viewer{
		Username: m.username,
		Manager:  m.boardView.Permissions().Manager,
		Admin:    m.role == model.RoleAdmin,
	})
}
