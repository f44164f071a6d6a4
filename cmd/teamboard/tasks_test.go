package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/teamboard/internal/api"
	"github.com/nhle/teamboard/internal/board"
	"github.com/nhle/teamboard/internal/credential"
	"github.com/nhle/teamboard/internal/devserver"
	"github.com/nhle/teamboard/internal/gateway"
	"github.com/nhle/teamboard/internal/logging"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/session"
	appsync "github.com/nhle/teamboard/internal/sync"
	"github.com/nhle/teamboard/tests/testutil"
)

// boardServer serves one project, "Apollo", whose IN_PROGRESS column holds
// inProgress tasks after two TO_DO tasks "first" and "second".
func boardServer(t *testing.T, inProgress int) (*api.Client, *session.Guard, int) {
	t.Helper()

	srv, err := devserver.New(devserver.Config{
		Store:    testutil.NewTestStore(t),
		Secret:   "test-secret",
		HashCost: bcrypt.MinCost,
		Logger:   logging.Discard(),
	})
	require.NoError(t, err)

	project := devserver.SeedProject{
		Title:   "Apollo",
		Manager: "mara",
		Tasks: []devserver.SeedTask{
			{Title: "first", Status: string(model.StatusTodo)},
			{Title: "second", Status: string(model.StatusTodo)},
		},
	}
	for i := 0; i < inProgress; i++ {
		project.Tasks = append(project.Tasks, devserver.SeedTask{
			Title:  fmt.Sprintf("wip %d", i),
			Status: string(model.StatusInProgress),
		})
	}
	require.NoError(t, srv.Apply(context.Background(), &devserver.Seed{
		Users:    []devserver.SeedUser{{Username: "mara", Password: "mara", Role: model.RoleManager}},
		Projects: []devserver.SeedProject{project},
	}))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	log := logging.Discard()
	guard := session.NewGuard(credential.NewMemoryStore(""), log)
	c := api.New(gateway.New(ts.URL, guard, 5*time.Second, log))
	token, err := c.Login(context.Background(), "mara", "mara")
	require.NoError(t, err)
	require.NoError(t, guard.Login(token))

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	return c, guard, projects[0].ID
}

func byTitle(t *testing.T, b *board.Board, title string) (model.Task, model.Status, int) {
	t.Helper()
	for _, s := range model.Columns {
		for i, task := range b.Column(s) {
			if task.Title == title {
				return task, s, i
			}
		}
	}
	t.Fatalf("task %q not on the board", title)
	return model.Task{}, "", 0
}

func TestMoveTarget(t *testing.T) {
	b := board.New(1, []model.Task{
		{ID: 1, Status: model.StatusTodo, Position: 0},
		{ID: 2, Status: model.StatusTodo, Position: 1},
		{ID: 3, Status: model.StatusDone, Position: 0},
	})

	tests := []struct {
		name       string
		from, dest model.Status
		index      int
		want       int
	}{
		{"explicit index", model.StatusTodo, model.StatusDone, 0, 0},
		{"end of other column", model.StatusTodo, model.StatusDone, -1, 1},
		{"end of own column", model.StatusTodo, model.StatusTodo, -1, 1},
		{"end of empty column", model.StatusTodo, model.StatusInProgress, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, moveTarget(b, tt.from, tt.dest, tt.index))
		})
	}
}

func TestMoveTarget_OwnColumnEndIsNoOp(t *testing.T) {
	b := board.New(1, []model.Task{
		{ID: 1, Status: model.StatusTodo, Position: 0},
		{ID: 2, Status: model.StatusTodo, Position: 1},
	})
	coord := appsync.NewCoordinator(b, nil, 0, logging.Discard())

	run, err := coord.Move(board.Move{
		TaskID: 2, From: model.StatusTodo, To: model.StatusTodo,
		FromIndex: 1, ToIndex: moveTarget(b, model.StatusTodo, model.StatusTodo, -1),
	})
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestSettleNow_MoveCommits(t *testing.T) {
	c, _, projectID := boardServer(t, 1)
	ctx := context.Background()

	b, err := loadBoard(ctx, c, projectID)
	require.NoError(t, err)
	task, from, index := byTitle(t, b, "first")

	coord := appsync.NewCoordinator(b, c, 5*time.Second, logging.Discard())
	run, err := coord.Move(board.Move{
		TaskID: task.ID, From: from, To: model.StatusInProgress,
		FromIndex: index, ToIndex: moveTarget(b, from, model.StatusInProgress, -1),
	})
	require.NoError(t, err)
	require.NoError(t, settleNow(coord, run))
	assert.False(t, coord.Busy())

	remote, err := loadBoard(ctx, c, projectID)
	require.NoError(t, err)
	_, status, pos := byTitle(t, remote, "first")
	assert.Equal(t, model.StatusInProgress, status)
	assert.Equal(t, 1, pos)
	_, _, pos = byTitle(t, remote, "second")
	assert.Equal(t, 0, pos)
}

func TestSettleNow_RejectionBecomesError(t *testing.T) {
	c, _, projectID := boardServer(t, 7)
	ctx := context.Background()

	b, err := loadBoard(ctx, c, projectID)
	require.NoError(t, err)
	before := b.Snapshot()
	task, from, index := byTitle(t, b, "second")

	coord := appsync.NewCoordinator(b, c, 5*time.Second, logging.Discard())
	run, err := coord.Move(board.Move{
		TaskID: task.ID, From: from, To: model.StatusInProgress,
		FromIndex: index, ToIndex: 0,
	})
	require.NoError(t, err)

	err = settleNow(coord, run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WIP limit")
	assert.Equal(t, before, b.Snapshot())
}

func TestSettleNow_LoggedOutNeedsLogin(t *testing.T) {
	c, guard, projectID := boardServer(t, 0)

	b, err := loadBoard(context.Background(), c, projectID)
	require.NoError(t, err)
	task, from, index := byTitle(t, b, "first")
	require.NoError(t, guard.Logout())

	coord := appsync.NewCoordinator(b, c, 5*time.Second, logging.Discard())
	run, err := coord.Move(board.Move{
		TaskID: task.ID, From: from, To: model.StatusDone,
		FromIndex: index, ToIndex: 0,
	})
	require.NoError(t, err)

	err = settleNow(coord, run)
	assert.ErrorIs(t, err, session.ErrReauthenticate)
	_, status, _ := byTitle(t, b, "first")
	assert.Equal(t, model.StatusTodo, status)
}
