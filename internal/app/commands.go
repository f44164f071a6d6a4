package app

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/teamboard/internal/model"
)

// executeCommand runs a palette command. Unknown commands only raise a
// notice.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "":
		return nil
	case "projects", "p":
		if m.currentView == ViewProjects {
			return nil
		}
		return m.leaveBoard()
	case "board", "b":
		if m.refresher == nil {
			m.notice = "Open a project first."
			return nil
		}
		m.currentView = ViewBoard
		return nil
	case "dashboard", "dash":
		return m.openDashboard()
	case "refresh", "r":
		switch {
		case m.refresher != nil:
			m.requestReload()
		case m.currentView == ViewProjects:
			return m.projectView.Init()
		}
		return nil
	case "new task", "new":
		if m.refresher == nil {
			m.notice = "Open a project first."
			return nil
		}
		if !m.boardView.Permissions().Manager {
			m.notice = "Only project managers can create tasks."
			return nil
		}
		m.previousView = ViewBoard
		m.currentView = ViewTaskForm
		return m.taskForm.StartCreate(model.StatusTodo)
	case "comments":
		return m.openComments()
	case "help":
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil
	case "logout":
		return m.logout()
	case "quit", "q":
		return m.quit()
	default:
		m.notice = "Unknown command: " + cmd
		return nil
	}
}
