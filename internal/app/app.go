package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/nhle/teamboard/internal/keys"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/session"
	appsync "github.com/nhle/teamboard/internal/sync"
	"github.com/nhle/teamboard/internal/ui"
	"github.com/nhle/teamboard/internal/ui/boardview"
	"github.com/nhle/teamboard/internal/ui/command"
	"github.com/nhle/teamboard/internal/ui/comments"
	"github.com/nhle/teamboard/internal/ui/dashboard"
	"github.com/nhle/teamboard/internal/ui/detail"
	helpview "github.com/nhle/teamboard/internal/ui/help"
	"github.com/nhle/teamboard/internal/ui/login"
	"github.com/nhle/teamboard/internal/ui/projectmgr"
	"github.com/nhle/teamboard/internal/ui/taskform"
)

// Remote is everything the terminal UI asks of the task service.
// *api.Client implements it.
type Remote interface {
	appsync.Remote
	appsync.TaskLister
	projectmgr.Service
	comments.Service
	dashboard.Service
	Login(ctx context.Context, username, password string) (string, error)
	Role(ctx context.Context, projectID int) (string, error)
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewProjects
	ViewBoard
	ViewDetail
	ViewTaskForm
	ViewComments
	ViewDashboard
	ViewHelp
	ViewCommand
)

// Model is the root Bubble Tea model. It routes messages between views,
// owns the board session and reacts to the session guard.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	remote       Remote
	guard        *session.Guard
	cfg          model.AppConfig
	log          *logrus.Logger

	// reauth receives a signal when the guard invalidates the session.
	reauth chan struct{}

	loginView   login.Model
	projectView projectmgr.Model
	boardView   boardview.Model
	detail      detail.Model
	taskForm    taskform.Model
	commentView comments.Model
	dashView    dashboard.Model
	helpView    helpview.Model
	commandView command.Model

	coord     *appsync.Coordinator
	refresher *appsync.Refresher
	project   model.Project
	members   []model.Member
	opening   int

	// reloadDeferred is set when a reload was wanted while mutations were
	// in flight.
	reloadDeferred bool

	username string
	role     string
	notice   string
	ready    bool
	startCmd tea.Cmd
}

// New creates the root model. It opens on the project list when the stored
// credential is usable and on the login form otherwise.
func New(remote Remote, guard *session.Guard, cfg model.AppConfig, log *logrus.Logger) Model {
	if log == nil {
		log = logrus.StandardLogger()
	}
	k := keys.DefaultKeyMap()

	m := Model{
		keys:        k,
		remote:      remote,
		guard:       guard,
		cfg:         cfg,
		log:         log,
		reauth:      make(chan struct{}, 1),
		loginView:   login.New(cfg.Server.BaseURL, 80, 24),
		projectView: projectmgr.New(remote, k, 80, 24),
		boardView:   boardview.New(k, 80, 24),
		detail:      detail.New(k, 80, 24),
		taskForm:    taskform.New(80, 24),
		commentView: comments.New(remote, k, 80, 24),
		dashView:    dashboard.New(remote, k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
	}

	// Checking first keeps a missing credential at startup from raising
	// the expired-session notice.
	valid := guard.Valid()
	reauth := m.reauth
	guard.OnReauthenticate(func() {
		select {
		case reauth <- struct{}{}:
		default:
		}
	})

	if valid {
		m.startSession()
		m.startCmd = m.projectView.Init()
	} else {
		m.currentView = ViewLogin
		m.startCmd = m.loginView.Start("")
	}
	return m
}

// Init returns the commands that start the first view and listen for the
// session guard.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startCmd, m.waitForReauth())
}

// CurrentView returns the active view.
func (m Model) CurrentView() ViewState { return m.currentView }

// Notice returns the message shown in the status bar.
func (m Model) Notice() string { return m.notice }

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.loginView.SetSize(w, h)
		m.projectView.SetSize(w, h)
		m.boardView.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.taskForm.SetSize(w, h)
		m.commentView.SetSize(w, h)
		m.dashView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case reauthMsg:
		cmd := m.toLogin("Your session has expired. Please log in again.")
		return m, tea.Batch(cmd, m.waitForReauth())

	case login.SubmitMsg:
		cmd := m.submitLogin(msg)
		return m, cmd

	case loginResultMsg:
		cmd := m.finishLogin(msg)
		return m, cmd

	case ui.NoticeMsg:
		m.notice = string(msg)
		return m, nil

	case projectmgr.ProjectsLoadedMsg:
		if isReauth(msg.Err) {
			cmd := m.toLogin("Your session has expired. Please log in again.")
			return m, cmd
		}
		var cmd tea.Cmd
		m.projectView, cmd = m.projectView.Update(msg)
		return m, cmd

	case projectmgr.OpenProjectMsg:
		m.opening = msg.Project.ID
		m.notice = ""
		cmd := m.loadProject(msg.Project)
		return m, cmd

	case projectOpenedMsg:
		cmd := m.enterBoard(msg)
		return m, cmd

	case appsync.SettledMsg:
		cmd := m.settle(msg)
		return m, cmd

	case appsync.BoardLoadedMsg:
		cmd := m.applyReload(msg)
		return m, cmd

	case appsync.ReauthMsg:
		cmd := m.toLogin("Your session has expired. Please log in again.")
		return m, cmd

	case boardview.MoveRequestMsg:
		cmd := m.mutate(m.coord.Move(msg.Move))
		return m, cmd

	case boardview.NewTaskMsg:
		m.previousView = ViewBoard
		m.currentView = ViewTaskForm
		cmd := m.taskForm.StartCreate(msg.Status)
		return m, cmd

	case boardview.EditTaskMsg:
		cmd := m.startEdit(msg.TaskID, ViewBoard)
		return m, cmd

	case detail.EditMsg:
		cmd := m.startEdit(msg.TaskID, ViewDetail)
		return m, cmd

	case boardview.DeleteTaskMsg:
		cmd := m.mutate(m.coord.Delete(msg.TaskID))
		return m, cmd

	case detail.DeleteMsg:
		if !m.boardView.Permissions().Manager {
			m.notice = "Only project managers can delete tasks."
			return m, nil
		}
		m.currentView = ViewBoard
		cmd := m.mutate(m.coord.Delete(msg.TaskID))
		return m, cmd

	case boardview.OpenTaskMsg:
		t, _, _, ok := m.coord.Board().Find(msg.TaskID)
		if !ok {
			return m, nil
		}
		m.detail.SetTask(&t, m.project.Title)
		m.currentView = ViewDetail
		return m, nil

	case boardview.CommentsMsg:
		cmd := m.openComments()
		return m, cmd

	case boardview.RefreshMsg:
		m.requestReload()
		return m, nil

	case boardview.BackMsg:
		cmd := m.leaveBoard()
		return m, cmd

	case taskform.CreateMsg:
		m.currentView = ViewBoard
		create, _, err := m.coord.Create(msg.Input, msg.Assignee)
		cmd := m.mutate(create, err)
		return m, cmd

	case taskform.UpdateMsg:
		m.currentView = ViewBoard
		cmd := m.mutate(m.coord.Update(msg.Task))
		return m, cmd

	case taskform.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case detail.BackMsg, comments.CloseMsg:
		m.currentView = ViewBoard
		return m, nil

	case dashboard.LoadedMsg:
		if isReauth(msg.Err) {
			cmd := m.toLogin("Your session has expired. Please log in again.")
			return m, cmd
		}
		var cmd tea.Cmd
		m.dashView, cmd = m.dashView.Update(msg)
		return m, cmd

	case dashboard.CloseMsg:
		m.currentView = m.previousView
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(string(msg))
		return m, cmd

	case tea.KeyMsg:
		m.notice = ""
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// inputFocused reports whether the active view owns plain key presses.
func (m Model) inputFocused() bool {
	switch m.currentView {
	case ViewLogin, ViewTaskForm, ViewCommand:
		return true
	case ViewComments:
		return m.commentView.Writing()
	case ViewProjects:
		return m.projectView.Editing()
	case ViewBoard:
		return m.boardView.Grabbing()
	}
	return false
}

func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		cmd := m.quit()
		return m, cmd, true
	}
	if m.currentView == ViewCommand && msg.String() == "esc" {
		m.currentView = m.previousView
		return m, nil, true
	}
	if m.inputFocused() {
		return m, nil, false
	}

	switch msg.String() {
	case "q":
		if m.currentView == ViewProjects || m.currentView == ViewBoard {
			cmd := m.quit()
			return m, cmd, true
		}

	case "?":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case ":":
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd, true

	case "D":
		if m.currentView == ViewProjects || m.currentView == ViewBoard {
			cmd := m.openDashboard()
			return m, cmd, true
		}

	case "ctrl+o":
		cmd := m.logout()
		return m, cmd, true

	case "esc":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
	}
	return m, nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewProjects:
		m.projectView, cmd = m.projectView.Update(msg)
	case ViewBoard:
		m.boardView, cmd = m.boardView.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewTaskForm:
		m.taskForm, cmd = m.taskForm.Update(msg)
	case ViewComments:
		m.commentView, cmd = m.commentView.Update(msg)
	case ViewDashboard:
		m.dashView, cmd = m.dashView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

func (m *Model) openDashboard() tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewDashboard
	manager := m.role == model.RoleManager || m.role == model.RoleAdmin
	return m.dashView.Open(manager)
}

func (m *Model) quit() tea.Cmd {
	if m.refresher != nil {
		m.refresher.Stop()
	}
	return tea.Quit
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "teamboard"
	if m.project.ID != 0 && m.currentView != ViewProjects && m.currentView != ViewLogin {
		title += " · " + m.project.Title
	}
	header := m.layout.RenderHeader(title, m.sessionStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.notice)

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewProjects:
		return m.projectView.View()
	case ViewBoard:
		return m.boardView.View()
	case ViewDetail:
		return m.detail.View()
	case ViewTaskForm:
		return m.taskForm.View()
	case ViewComments:
		return m.commentView.View()
	case ViewDashboard:
		return m.dashView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// sessionStatus describes the signed-in user and the board's sync state.
func (m Model) sessionStatus() string {
	if m.currentView == ViewLogin || m.username == "" {
		return "signed out"
	}
	parts := []string{m.username}
	if m.role != "" {
		parts[0] += " (" + strings.ToLower(m.role) + ")"
	}

	if m.coord != nil && m.coord.Pending() > 0 {
		parts = append(parts, fmt.Sprintf("saving (%d)", m.coord.Pending()))
	} else if m.refresher != nil {
		st := m.refresher.Status()
		switch {
		case st.State == appsync.RefreshRunning:
			parts = append(parts, "refreshing")
		case st.State == appsync.RefreshError:
			parts = append(parts, "⚠ unreachable")
		case !st.LastLoad.IsZero():
			parts = append(parts, "synced "+humanize.RelTime(st.LastLoad, time.Now(), "ago", "from now"))
		}
	}
	return strings.Join(parts, " | ")
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewLogin:
		return "enter submit | tab next field | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewDetail:
		return "esc back | e edit | d delete | j/k scroll"
	case ViewTaskForm:
		return "enter submit | esc cancel"
	case ViewComments:
		if m.commentView.Writing() {
			return "enter post | esc cancel"
		}
		return "n write | p pin | d delete | r refresh | esc back"
	case ViewDashboard:
		return "r refresh | esc back"
	case ViewBoard:
		if m.boardView.Grabbing() {
			return "←/→ column | ↑/↓ position | space drop | esc cancel"
		}
		return "space grab | enter open | n new | e edit | d delete | c comments | esc projects | ? help"
	default:
		return "enter open | n new | e edit | d delete | D dashboard | : command | q quit"
	}
}
