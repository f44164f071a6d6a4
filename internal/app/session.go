package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/session"
	"github.com/nhle/teamboard/internal/ui/login"
)

// reauthMsg is sent when the session guard invalidates the credential.
type reauthMsg struct{}

// loginResultMsg carries the outcome of a login request.
type loginResultMsg struct {
	token string
	err   error
}

func isReauth(err error) bool {
	return errors.Is(err, session.ErrReauthenticate)
}

// waitForReauth blocks until the guard reports an invalid credential.
func (m Model) waitForReauth() tea.Cmd {
	ch := m.reauth
	return func() tea.Msg {
		<-ch
		return reauthMsg{}
	}
}

// startSession reads the identity out of the stored credential and shows
// the project list.
func (m *Model) startSession() {
	m.username, m.role = "", ""
	if claims, err := m.guard.Claims(); err == nil {
		m.username = claims.Username()
		m.role = claims.Role
	}
	m.projectView.SetCanCreate(m.role == model.RoleManager || m.role == model.RoleAdmin)
	m.currentView = ViewProjects
}

// toLogin drops the open board and shows the login form with message. It
// does nothing when the login form is already showing.
func (m *Model) toLogin(message string) tea.Cmd {
	if m.currentView == ViewLogin {
		return nil
	}
	m.closeBoard()
	m.username, m.role = "", ""
	m.notice = ""
	m.currentView = ViewLogin
	return m.loginView.Start(message)
}

func (m Model) submitLogin(msg login.SubmitMsg) tea.Cmd {
	remote := m.remote
	timeout := m.cfg.Server.Timeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		token, err := remote.Login(ctx, msg.Username, msg.Password)
		return loginResultMsg{token: token, err: err}
	}
}

func (m *Model) finishLogin(msg loginResultMsg) tea.Cmd {
	if msg.err == nil {
		msg.err = m.guard.Login(msg.token)
	}
	if msg.err != nil {
		m.log.WithError(msg.err).Warn("login failed")
		return m.loginView.SetError(msg.err)
	}
	m.startSession()
	m.log.WithField("user", m.username).Info("logged in")
	return m.projectView.Init()
}

func (m *Model) logout() tea.Cmd {
	if err := m.guard.Logout(); err != nil {
		m.log.WithError(err).Warn("clearing credential")
	}
	return m.toLogin("Logged out.")
}
