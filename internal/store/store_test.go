package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/store"
	"github.com/nhle/teamboard/tests/testutil"
)

func positions(t *testing.T, s *store.SQLiteStore, projectID int, status model.Status) (ids, pos []int) {
	t.Helper()
	tasks, err := s.ListProjectTasks(context.Background(), projectID)
	require.NoError(t, err)
	for _, task := range tasks {
		if task.Status == status {
			ids = append(ids, task.ID)
			pos = append(pos, task.Position)
		}
	}
	return ids, pos
}

func TestCreateTask_AppendsAtTail(t *testing.T) {
	s := testutil.NewTestStore(t)
	mgr := testutil.CreateUser(t, s, "mara", model.RoleManager)
	p := testutil.CreateProject(t, s, "Apollo", mgr)

	a := testutil.CreateTask(t, s, p.ID, mgr, "a", model.StatusTodo)
	b := testutil.CreateTask(t, s, p.ID, mgr, "b", model.StatusTodo)
	c := testutil.CreateTask(t, s, p.ID, mgr, "c", model.StatusDone)

	assert.Equal(t, 0, a.Position)
	assert.Equal(t, 1, b.Position)
	assert.Equal(t, 0, c.Position)
	assert.Equal(t, "mara", a.AssigneeName())
	assert.Equal(t, p.ID, a.ProjectID)
}

func TestUpdateTask_ReindexesBothColumns(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	mgr := testutil.CreateUser(t, s, "mara", model.RoleManager)
	p := testutil.CreateProject(t, s, "Apollo", mgr)

	a := testutil.CreateTask(t, s, p.ID, mgr, "a", model.StatusTodo)
	b := testutil.CreateTask(t, s, p.ID, mgr, "b", model.StatusTodo)
	c := testutil.CreateTask(t, s, p.ID, mgr, "c", model.StatusTodo)
	d := testutil.CreateTask(t, s, p.ID, mgr, "d", model.StatusInProgress)

	pos := 0
	moved, err := s.UpdateTask(ctx, b.ID, store.TaskUpdate{Status: model.StatusInProgress, Position: &pos, StatusOnly: true})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, moved.Status)
	assert.Equal(t, 0, moved.Position)
	assert.Equal(t, "b", moved.Title)

	ids, ps := positions(t, s, p.ID, model.StatusInProgress)
	assert.Equal(t, []int{b.ID, d.ID}, ids)
	assert.Equal(t, []int{0, 1}, ps)

	ids, ps = positions(t, s, p.ID, model.StatusTodo)
	assert.Equal(t, []int{a.ID, c.ID}, ids)
	assert.Equal(t, []int{0, 1}, ps)

	// Within-column move.
	pos = 0
	_, err = s.UpdateTask(ctx, c.ID, store.TaskUpdate{Status: model.StatusTodo, Position: &pos, StatusOnly: true})
	require.NoError(t, err)
	ids, ps = positions(t, s, p.ID, model.StatusTodo)
	assert.Equal(t, []int{c.ID, a.ID}, ids)
	assert.Equal(t, []int{0, 1}, ps)
}

func TestUpdateTask_Fields(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	mgr := testutil.CreateUser(t, s, "mara", model.RoleManager)
	dev := testutil.CreateUser(t, s, "dev", model.RoleUser)
	p := testutil.CreateProject(t, s, "Apollo", mgr, dev)
	a := testutil.CreateTask(t, s, p.ID, mgr, "a", model.StatusTodo)

	deadline := time.Date(2026, 6, 1, 17, 0, 0, 0, time.UTC)
	updated, err := s.UpdateTask(ctx, a.ID, store.TaskUpdate{
		Title:        "renamed",
		Description:  "details",
		Status:       model.StatusTodo,
		Deadline:     &deadline,
		Tags:         "infra",
		AssignedToID: &dev.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, "dev", updated.AssigneeName())
	require.NotNil(t, updated.Deadline)
	assert.True(t, updated.Deadline.Equal(deadline))
	assert.Equal(t, 0, updated.Position)
}

func TestWIPLimit(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	mgr := testutil.CreateUser(t, s, "mara", model.RoleManager)
	p := testutil.CreateProject(t, s, "Apollo", mgr)

	for i := 0; i < store.WIPLimit; i++ {
		testutil.CreateTask(t, s, p.ID, mgr, "wip", model.StatusInProgress)
	}

	_, err := s.CreateTask(ctx, model.TaskInput{
		Title: "one too many", Status: model.StatusInProgress, ProjectID: p.ID, AssignedToID: mgr.ID,
	})
	assert.ErrorIs(t, err, store.ErrWIPLimit)

	todo := testutil.CreateTask(t, s, p.ID, mgr, "todo", model.StatusTodo)
	_, err = s.UpdateTask(ctx, todo.ID, store.TaskUpdate{Status: model.StatusInProgress, StatusOnly: true})
	assert.ErrorIs(t, err, store.ErrWIPLimit)

	got, err := s.GetTask(ctx, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTodo, got.Status)
}

func TestDeleteTask_NotFound(t *testing.T) {
	s := testutil.NewTestStore(t)
	assert.ErrorIs(t, s.DeleteTask(context.Background(), 404), store.ErrNotFound)

	_, err := s.GetTask(context.Background(), 404)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProjectsAndMembers(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	mgr := testutil.CreateUser(t, s, "mara", model.RoleManager)
	dev := testutil.CreateUser(t, s, "dev", model.RoleUser)
	outsider := testutil.CreateUser(t, s, "zed", model.RoleUser)
	p := testutil.CreateProject(t, s, "Apollo", mgr, dev)

	role, err := s.MemberRole(ctx, p.ID, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectRoleMember, role)

	_, err = s.MemberRole(ctx, p.ID, outsider.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	members, err := s.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "mara", members[0].Username)
	assert.Equal(t, model.ProjectRoleManager, members[0].Role)

	projects, err := s.ListProjectsForUser(ctx, dev.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, model.ProjectRoleMember, projects[0].Role)

	require.NoError(t, s.UpdateProject(ctx, p.ID, model.ProjectInput{Title: "Apollo 2", MemberIDs: []int{outsider.ID}}))
	members, err = s.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
	_, err = s.MemberRole(ctx, p.ID, dev.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	_, err = s.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestComments_PinnedFirst(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	mgr := testutil.CreateUser(t, s, "mara", model.RoleManager)
	p := testutil.CreateProject(t, s, "Apollo", mgr)

	first, err := s.AddComment(ctx, p.ID, mgr.ID, "first")
	require.NoError(t, err)
	_, err = s.AddComment(ctx, p.ID, mgr.ID, "second")
	require.NoError(t, err)

	pinned, err := s.TogglePin(ctx, p.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, pinned.Pinned)

	comments, err := s.ListComments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)
	assert.Equal(t, "mara", comments[0].AuthorUsername)

	author, err := s.CommentAuthor(ctx, p.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, mgr.ID, author)

	require.NoError(t, s.DeleteComment(ctx, p.ID, first.ID))
	assert.ErrorIs(t, s.DeleteComment(ctx, p.ID, first.ID), store.ErrNotFound)
}

func TestDashboards(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	mgr := testutil.CreateUser(t, s, "mara", model.RoleManager)
	dev := testutil.CreateUser(t, s, "dev", model.RoleUser)
	p := testutil.CreateProject(t, s, "Apollo", mgr, dev)

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	_, err := s.CreateTask(ctx, model.TaskInput{Title: "late", Status: model.StatusInProgress, ProjectID: p.ID, AssignedToID: dev.ID, Deadline: &past})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, model.TaskInput{Title: "done late", Status: model.StatusDone, ProjectID: p.ID, AssignedToID: dev.ID, Deadline: &past})
	require.NoError(t, err)
	testutil.CreateTask(t, s, p.ID, mgr, "mine", model.StatusTodo)

	d, err := s.UserDashboard(ctx, dev.ID, now)
	require.NoError(t, err)
	assert.Equal(t, model.Dashboard{ProjectCount: 1, TotalTasks: 2, InProgressCount: 1, DoneCount: 1, LateCount: 1}, *d)

	md, err := s.ManagerDashboard(ctx, mgr.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, md.ManagedProjects)
	assert.Equal(t, 2, md.TotalMembers)
	assert.Equal(t, 3, md.TotalTasks)
	assert.Equal(t, 1, md.LateCount)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	admin := testutil.CreateUser(t, s, "root", model.RoleAdmin)
	testutil.CreateUser(t, s, "ana", model.RoleUser)

	_, err := s.CreateUser(ctx, store.UserRecord{User: model.User{Username: "ana"}, PasswordHash: "x"})
	assert.ErrorIs(t, err, store.ErrUsernameTaken)

	users, err := s.ListUsers(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ana", users[0].Username)

	rec, err := s.GetUserByUsername(ctx, "root")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.PasswordHash)
	assert.Equal(t, model.RoleAdmin, rec.Role)

	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
