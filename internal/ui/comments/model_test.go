package comments

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/teamboard/internal/keys"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/ui"
)

type fakeService struct {
	comments []model.Comment
	added    []string
	pinned   []int
	deleted  []int
	err      error
}

func (f *fakeService) ListComments(_ context.Context, _ int) ([]model.Comment, error) {
	return f.comments, nil
}

func (f *fakeService) AddComment(_ context.Context, _ int, content string) error {
	f.added = append(f.added, content)
	return f.err
}

func (f *fakeService) DeleteComment(_ context.Context, _, id int) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeService) TogglePin(_ context.Context, _, id int) error {
	f.pinned = append(f.pinned, id)
	return f.err
}

func thread() []model.Comment {
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return []model.Comment{
		{ID: 1, Content: "Kickoff notes", AuthorUsername: "mara", CreatedAt: at, Pinned: true},
		{ID: 2, Content: "On it", AuthorUsername: "dev", CreatedAt: at.Add(time.Hour)},
	}
}

func open(t *testing.T, svc *fakeService, viewer Viewer) Model {
	t.Helper()
	m := New(svc, keys.DefaultKeyMap(), 80, 24)
	cmd := m.Open(1, "Apollo", viewer)
	m, _ = m.Update(cmd())
	require.Len(t, m.Comments(), 2)
	return m
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestWriteComment(t *testing.T) {
	svc := &fakeService{comments: thread()}
	m := open(t, svc, Viewer{Username: "dev"})

	m, _ = m.Update(keyMsg("n"))
	require.True(t, m.Writing())
	for _, r := range "hello" {
		m, _ = m.Update(keyMsg(string(r)))
	}
	m, cmd := m.Update(keyMsg("enter"))
	require.NotNil(t, cmd)
	assert.False(t, m.Writing())

	msg := cmd()
	assert.Equal(t, []string{"hello"}, svc.added)

	// A successful change reloads the thread.
	_, reload := m.Update(msg)
	require.NotNil(t, reload)
	assert.IsType(t, loadedMsg{}, reload())
}

func TestPin_RequiresManager(t *testing.T) {
	svc := &fakeService{comments: thread()}

	m := open(t, svc, Viewer{Username: "dev"})
	_, cmd := m.Update(keyMsg("p"))
	assert.Equal(t, ui.NoticeMsg("Only project managers can pin comments."), cmd())
	assert.Empty(t, svc.pinned)

	m = open(t, svc, Viewer{Username: "mara", Manager: true})
	m, _ = m.Update(keyMsg("j"))
	_, cmd = m.Update(keyMsg("p"))
	cmd()
	assert.Equal(t, []int{2}, svc.pinned)
}

func TestDelete_AuthorOrAdmin(t *testing.T) {
	svc := &fakeService{comments: thread()}

	m := open(t, svc, Viewer{Username: "dev"})
	_, cmd := m.Update(keyMsg("d"))
	assert.IsType(t, ui.NoticeMsg(""), cmd())

	m, _ = m.Update(keyMsg("j"))
	_, cmd = m.Update(keyMsg("d"))
	cmd()
	assert.Equal(t, []int{2}, svc.deleted)

	m = open(t, svc, Viewer{Username: "root", Admin: true})
	_, cmd = m.Update(keyMsg("d"))
	cmd()
	assert.Equal(t, []int{2, 1}, svc.deleted)
}

func TestFailedChangeShowsNotice(t *testing.T) {
	svc := &fakeService{comments: thread(), err: errors.New("remote error (403): nope")}
	m := open(t, svc, Viewer{Username: "dev"})

	m, _ = m.Update(keyMsg("j"))
	_, cmd := m.Update(keyMsg("d"))
	_, next := m.Update(cmd())
	require.NotNil(t, next)

	msgs := next().(tea.BatchMsg)
	require.Len(t, msgs, 2)
	assert.Equal(t, ui.NoticeMsg("remote error (403): nope"), msgs[0]())
}

func TestStaleLoadIgnored(t *testing.T) {
	svc := &fakeService{comments: thread()}
	m := open(t, svc, Viewer{Username: "dev"})

	m, _ = m.Update(loadedMsg{projectID: 99, comments: nil})
	assert.Len(t, m.Comments(), 2)
}

func TestView(t *testing.T) {
	m := open(t, &fakeService{comments: thread()}, Viewer{Username: "dev"})
	m.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	out := m.View()
	assert.Contains(t, out, "pinned")
	assert.Contains(t, out, "Kickoff notes")
	assert.Contains(t, out, "3 hours ago")
}
