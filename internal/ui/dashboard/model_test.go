package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/teamboard/internal/keys"
	"github.com/nhle/teamboard/internal/model"
)

type fakeService struct {
	managerCalls int
	err          error
	tasks        []model.Task
}

func (f *fakeService) Dashboard(context.Context) (*model.Dashboard, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Dashboard{ProjectCount: 1, TotalTasks: 1200, TodoCount: 2, LateCount: 1}, nil
}

func (f *fakeService) ManagerDashboard(context.Context) (*model.ManagerDashboard, error) {
	f.managerCalls++
	return &model.ManagerDashboard{ManagedProjects: 1, TotalMembers: 2}, nil
}

func (f *fakeService) ListTasks(context.Context, int) ([]model.Task, error) {
	return f.tasks, nil
}

func at(h int) *time.Time {
	t := time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC)
	return &t
}

func TestLoad_MemberSkipsManagerDashboard(t *testing.T) {
	svc := &fakeService{}
	m := New(svc, keys.DefaultKeyMap(), 80, 24)

	msg := m.Open(false)().(LoadedMsg)
	require.NoError(t, msg.Err)
	assert.Nil(t, msg.Manager)
	assert.Zero(t, svc.managerCalls)

	msg = m.Open(true)().(LoadedMsg)
	require.NotNil(t, msg.Manager)
	assert.Equal(t, 2, msg.Manager.TotalMembers)
}

func TestView_RendersCounts(t *testing.T) {
	svc := &fakeService{tasks: []model.Task{
		{ID: 1, Title: "Fix login", Status: model.StatusInProgress, Deadline: at(9)},
	}}
	m := New(svc, keys.DefaultKeyMap(), 80, 24)
	m.SetNow(func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) })

	cmd := m.Open(true)
	m, _ = m.Update(cmd())
	out := m.View()
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "Managed projects")
	assert.Contains(t, out, "Fix login")
	assert.Contains(t, out, "3 hours overdue")
}

func TestView_Error(t *testing.T) {
	m := New(&fakeService{err: errors.New("boom")}, keys.DefaultKeyMap(), 80, 24)
	cmd := m.Open(false)
	m, _ = m.Update(cmd())
	assert.Contains(t, m.View(), "boom")
}

func TestUpcoming(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, Status: model.StatusTodo, Deadline: at(15)},
		{ID: 2, Status: model.StatusDone, Deadline: at(1)},
		{ID: 3, Status: model.StatusTodo},
		{ID: 4, Status: model.StatusInProgress, Deadline: at(10)},
	}
	got := Upcoming(tasks)
	require.Len(t, got, 2)
	assert.Equal(t, 4, got[0].ID)
	assert.Equal(t, 1, got[1].ID)
}
