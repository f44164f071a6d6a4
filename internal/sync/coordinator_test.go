package sync

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/teamboard/internal/board"
	"github.com/nhle/teamboard/internal/gateway"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/session"
)

type reply struct {
	task    *model.Task
	outcome gateway.Outcome
}

// fakeRemote answers calls from a queue in invocation order and records
// what it was asked to persist.
type fakeRemote struct {
	replies []reply
	updates []model.Task
	creates []model.TaskInput
	deletes []int
}

func (f *fakeRemote) next() reply {
	if len(f.replies) == 0 {
		return reply{outcome: gateway.Outcome{Kind: gateway.EmptySuccess, StatusCode: http.StatusNoContent}}
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r
}

func (f *fakeRemote) UpdateTask(_ context.Context, t model.Task) (*model.Task, gateway.Outcome) {
	f.updates = append(f.updates, t)
	r := f.next()
	return r.task, r.outcome
}

func (f *fakeRemote) CreateTask(_ context.Context, in model.TaskInput) (*model.Task, gateway.Outcome) {
	f.creates = append(f.creates, in)
	r := f.next()
	return r.task, r.outcome
}

func (f *fakeRemote) DeleteTask(_ context.Context, id int) gateway.Outcome {
	f.deletes = append(f.deletes, id)
	return f.next().outcome
}

var (
	ok200   = gateway.Outcome{Kind: gateway.DecodedSuccess, StatusCode: http.StatusOK}
	fault   = gateway.Outcome{Kind: gateway.Failure, StatusCode: http.StatusInternalServerError, Message: "database unavailable"}
	wip     = gateway.Outcome{Kind: gateway.Failure, StatusCode: http.StatusBadRequest, Message: "WIP limit reached: at most 7 IN_PROGRESS tasks."}
	offline = gateway.Outcome{Kind: gateway.NetworkFailure, Cause: errors.New("connection refused")}
	unauth  = gateway.Outcome{Kind: gateway.Unauthenticated, Cause: session.ErrReauthenticate}
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func task(id int, status model.Status, pos int) model.Task {
	return model.Task{ID: id, Title: "task", Status: status, ProjectID: 1, Position: pos}
}

// fixture: TO_DO [1 2 3], IN_PROGRESS [4 5], DONE [6].
func newFixture(replies ...reply) (*Coordinator, *fakeRemote) {
	b := board.New(1, []model.Task{
		task(1, model.StatusTodo, 0),
		task(2, model.StatusTodo, 1),
		task(3, model.StatusTodo, 2),
		task(4, model.StatusInProgress, 0),
		task(5, model.StatusInProgress, 1),
		task(6, model.StatusDone, 0),
	})
	remote := &fakeRemote{replies: replies}
	return NewCoordinator(b, remote, 0, quietLogger()), remote
}

func columnIDs(c *Coordinator, status model.Status) []int {
	var out []int
	for _, t := range c.Board().Column(status) {
		out = append(out, t.ID)
	}
	return out
}

func run(t *testing.T, cmd tea.Cmd) SettledMsg {
	t.Helper()
	require.NotNil(t, cmd)
	msg, ok := cmd().(SettledMsg)
	require.True(t, ok)
	return msg
}

func TestMove_CommitKeepsOptimisticState(t *testing.T) {
	c, remote := newFixture()

	cmd, err := c.Move(board.Move{TaskID: 2, From: model.StatusTodo, To: model.StatusInProgress, FromIndex: 1, ToIndex: 0})
	require.NoError(t, err)

	// Applied before the call completes.
	assert.Equal(t, []int{2, 4, 5}, columnIDs(c, model.StatusInProgress))
	assert.Equal(t, 1, c.Pending())

	s := c.Settle(run(t, cmd))
	assert.Equal(t, Committed, s.Phase)
	assert.Empty(t, s.Notice)
	assert.False(t, c.Busy())

	require.Len(t, remote.updates, 1)
	assert.Equal(t, model.StatusInProgress, remote.updates[0].Status)
	assert.Equal(t, 0, remote.updates[0].Position)

	assert.Equal(t, []int{1, 3}, columnIDs(c, model.StatusTodo))
	assert.Equal(t, []int{2, 4, 5}, columnIDs(c, model.StatusInProgress))
	assert.True(t, board.Dense(c.Board().Partitions()))
}

func TestMove_CommitMergesNonPositionalFields(t *testing.T) {
	record := task(2, model.StatusInProgress, 17)
	record.Title = "renamed on server"
	c, _ := newFixture(reply{task: &record, outcome: ok200})

	cmd, err := c.Move(board.Move{TaskID: 2, From: model.StatusTodo, To: model.StatusInProgress, FromIndex: 1, ToIndex: 2})
	require.NoError(t, err)
	c.Settle(run(t, cmd))

	got, status, index, found := c.Board().Find(2)
	require.True(t, found)
	assert.Equal(t, "renamed on server", got.Title)
	assert.Equal(t, model.StatusInProgress, status)
	assert.Equal(t, 2, index)
	assert.Equal(t, 2, got.Position)
}

func TestMove_RollbackRestoresSnapshotExactly(t *testing.T) {
	c, _ := newFixture(reply{outcome: fault})
	before := c.Board().Snapshot()

	cmd, err := c.Move(board.Move{TaskID: 1, From: model.StatusTodo, To: model.StatusDone, FromIndex: 0, ToIndex: 1})
	require.NoError(t, err)
	require.NotEqual(t, before, c.Board().Snapshot())

	s := c.Settle(run(t, cmd))
	assert.Equal(t, RolledBack, s.Phase)
	assert.Equal(t, "database unavailable", s.Notice)
	assert.False(t, s.Refresh)
	assert.Equal(t, before, c.Board().Snapshot())
}

func TestMove_WIPLimitRejection(t *testing.T) {
	c, _ := newFixture(reply{outcome: wip})
	before := c.Board().Snapshot()

	cmd, err := c.Move(board.Move{TaskID: 3, From: model.StatusTodo, To: model.StatusInProgress, FromIndex: 2, ToIndex: 2})
	require.NoError(t, err)

	s := c.Settle(run(t, cmd))
	assert.Equal(t, RolledBack, s.Phase)
	assert.Contains(t, s.Notice, "WIP limit")
	assert.Equal(t, before, c.Board().Snapshot())
}

func TestMove_NetworkFailureUsesGenericNotice(t *testing.T) {
	c, _ := newFixture(reply{outcome: offline})

	cmd, err := c.Move(board.Move{TaskID: 6, From: model.StatusDone, To: model.StatusTodo, ToIndex: 0})
	require.NoError(t, err)

	s := c.Settle(run(t, cmd))
	assert.Equal(t, RolledBack, s.Phase)
	assert.Equal(t, gateway.GenericNetworkMessage, s.Notice)
}

func TestMove_UnauthenticatedRollsBackSilently(t *testing.T) {
	c, _ := newFixture(reply{outcome: unauth})
	before := c.Board().Snapshot()

	cmd, err := c.Move(board.Move{TaskID: 4, From: model.StatusInProgress, To: model.StatusDone, ToIndex: 0})
	require.NoError(t, err)

	s := c.Settle(run(t, cmd))
	assert.Equal(t, RolledBack, s.Phase)
	assert.Empty(t, s.Notice)
	assert.Equal(t, before, c.Board().Snapshot())
}

func TestMove_NoOpIssuesNothing(t *testing.T) {
	c, remote := newFixture()
	before := c.Board().Snapshot()

	cmd, err := c.Move(board.Move{TaskID: 2, From: model.StatusTodo, To: model.StatusTodo, FromIndex: 1, ToIndex: 1})
	require.NoError(t, err)
	assert.Nil(t, cmd)
	assert.Zero(t, c.Pending())
	assert.Empty(t, remote.updates)
	assert.Equal(t, before, c.Board().Snapshot())
}

func TestMove_UnknownTask(t *testing.T) {
	c, _ := newFixture()

	_, err := c.Move(board.Move{TaskID: 99, From: model.StatusTodo, To: model.StatusDone})
	assert.ErrorIs(t, err, board.ErrUnknownTask)

	_, err = c.Move(board.Move{TaskID: 4, From: model.StatusTodo, To: model.StatusDone})
	assert.ErrorIs(t, err, board.ErrUnknownTask)
}

func TestMove_StaleCompletionIsSuperseded(t *testing.T) {
	// The second call completes first and succeeds; the first then fails.
	c, _ := newFixture(reply{outcome: ok200}, reply{outcome: fault})

	first, err := c.Move(board.Move{TaskID: 1, From: model.StatusTodo, To: model.StatusInProgress, ToIndex: 0})
	require.NoError(t, err)
	second, err := c.Move(board.Move{TaskID: 1, From: model.StatusInProgress, To: model.StatusDone, ToIndex: 0})
	require.NoError(t, err)

	s := c.Settle(run(t, second))
	assert.Equal(t, Committed, s.Phase)

	s = c.Settle(run(t, first))
	assert.Equal(t, Superseded, s.Phase)
	assert.Empty(t, s.Notice)

	assert.Equal(t, []int{1, 6}, columnIDs(c, model.StatusDone))
	assert.Equal(t, []int{4, 5}, columnIDs(c, model.StatusInProgress))
	assert.Equal(t, []int{2, 3}, columnIDs(c, model.StatusTodo))
	assert.False(t, c.Busy())
}

func TestMove_FailureKeepsLaterMutationOfOtherTask(t *testing.T) {
	c, _ := newFixture(reply{outcome: fault}, reply{outcome: ok200})

	first, err := c.Move(board.Move{TaskID: 1, From: model.StatusTodo, To: model.StatusDone, ToIndex: 0})
	require.NoError(t, err)
	second, err := c.Move(board.Move{TaskID: 5, From: model.StatusInProgress, To: model.StatusInProgress, FromIndex: 1, ToIndex: 0})
	require.NoError(t, err)

	s := c.Settle(run(t, first))
	assert.Equal(t, RolledBack, s.Phase)
	assert.True(t, s.Refresh)

	assert.Equal(t, []int{1, 2, 3}, columnIDs(c, model.StatusTodo))
	assert.Equal(t, []int{6}, columnIDs(c, model.StatusDone))
	assert.Equal(t, []int{5, 4}, columnIDs(c, model.StatusInProgress))
	assert.True(t, board.Dense(c.Board().Partitions()))

	s = c.Settle(run(t, second))
	assert.Equal(t, Committed, s.Phase)
	assert.Equal(t, []int{5, 4}, columnIDs(c, model.StatusInProgress))
}

func TestMove_LatestFailureAfterEarlierRollback(t *testing.T) {
	c, _ := newFixture(reply{outcome: fault}, reply{outcome: fault})

	first, err := c.Move(board.Move{TaskID: 1, From: model.StatusTodo, To: model.StatusDone, ToIndex: 0})
	require.NoError(t, err)
	// Snapshotted while task 1 sits optimistically in DONE.
	second, err := c.Move(board.Move{TaskID: 4, From: model.StatusInProgress, To: model.StatusInProgress, FromIndex: 0, ToIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4}, columnIDs(c, model.StatusInProgress))

	s := c.Settle(run(t, first))
	assert.Equal(t, RolledBack, s.Phase)
	assert.True(t, s.Refresh)
	assert.Equal(t, []int{1, 2, 3}, columnIDs(c, model.StatusTodo))

	s = c.Settle(run(t, second))
	assert.Equal(t, RolledBack, s.Phase)
	assert.True(t, s.Refresh)

	assert.Equal(t, []int{1, 2, 3}, columnIDs(c, model.StatusTodo))
	assert.Equal(t, []int{4, 5}, columnIDs(c, model.StatusInProgress))
	assert.Equal(t, []int{6}, columnIDs(c, model.StatusDone))
	assert.True(t, board.Dense(c.Board().Partitions()))
	assert.False(t, c.Busy())
}

func TestMove_LatestFailureRestoresSnapshotAfterEarlierCommit(t *testing.T) {
	c, _ := newFixture(reply{outcome: ok200}, reply{outcome: fault})

	first, err := c.Move(board.Move{TaskID: 1, From: model.StatusTodo, To: model.StatusDone, ToIndex: 0})
	require.NoError(t, err)
	second, err := c.Move(board.Move{TaskID: 4, From: model.StatusInProgress, To: model.StatusInProgress, FromIndex: 0, ToIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), c.Issued())

	assert.Equal(t, Committed, c.Settle(run(t, first)).Phase)
	s := c.Settle(run(t, second))
	assert.Equal(t, RolledBack, s.Phase)
	assert.False(t, s.Refresh)

	assert.Equal(t, []int{1, 6}, columnIDs(c, model.StatusDone))
	assert.Equal(t, []int{4, 5}, columnIDs(c, model.StatusInProgress))
}

func TestAbandon_MakesCompletionsMoot(t *testing.T) {
	c, _ := newFixture(reply{outcome: fault})

	cmd, err := c.Move(board.Move{TaskID: 1, From: model.StatusTodo, To: model.StatusDone, ToIndex: 0})
	require.NoError(t, err)
	applied := c.Board().Snapshot()

	c.Abandon()
	assert.Zero(t, c.Pending())

	s := c.Settle(run(t, cmd))
	assert.Equal(t, Moot, s.Phase)
	assert.Equal(t, applied, c.Board().Snapshot())
}

func TestCreate_SwapsInServerRecord(t *testing.T) {
	record := model.Task{ID: 100, Title: "write docs", Status: model.StatusTodo, ProjectID: 1, Position: 3,
		Assignee: &model.Assignee{ID: 7, Username: "ana"}}
	c, remote := newFixture(reply{task: &record, outcome: ok200})

	cmd, tempID, err := c.Create(model.TaskInput{Title: " write docs ", AssignedToID: 7, Status: model.StatusLate},
		&model.Assignee{ID: 7, Username: "ana"})
	require.NoError(t, err)
	assert.Negative(t, tempID)
	assert.Equal(t, []int{1, 2, 3, tempID}, columnIDs(c, model.StatusTodo))

	s := c.Settle(run(t, cmd))
	assert.Equal(t, Committed, s.Phase)
	assert.Equal(t, []int{1, 2, 3, 100}, columnIDs(c, model.StatusTodo))

	require.Len(t, remote.creates, 1)
	assert.Equal(t, "write docs", remote.creates[0].Title)
	assert.Equal(t, model.StatusTodo, remote.creates[0].Status)
	assert.Equal(t, 1, remote.creates[0].ProjectID)
}

func TestCreate_RollbackRemovesProvisional(t *testing.T) {
	c, _ := newFixture(reply{outcome: wip})
	before := c.Board().Snapshot()

	cmd, _, err := c.Create(model.TaskInput{Title: "x", AssignedToID: 7, Status: model.StatusInProgress}, nil)
	require.NoError(t, err)
	assert.Len(t, c.Board().Column(model.StatusInProgress), 3)

	s := c.Settle(run(t, cmd))
	assert.Equal(t, RolledBack, s.Phase)
	assert.Equal(t, before, c.Board().Snapshot())
}

func TestCreate_Validation(t *testing.T) {
	c, _ := newFixture()

	_, _, err := c.Create(model.TaskInput{Title: "no assignee"}, nil)
	assert.Error(t, err)
	assert.Zero(t, c.Pending())
}

func TestCreate_ProvisionalCannotBeMutated(t *testing.T) {
	c, _ := newFixture()

	_, tempID, err := c.Create(model.TaskInput{Title: "x", AssignedToID: 7}, nil)
	require.NoError(t, err)

	_, err = c.Move(board.Move{TaskID: tempID, From: model.StatusTodo, To: model.StatusDone})
	assert.ErrorIs(t, err, ErrProvisional)
	_, err = c.Delete(tempID)
	assert.ErrorIs(t, err, ErrProvisional)
}

func TestUpdate_InPlaceAndStatusChange(t *testing.T) {
	c, remote := newFixture()

	edited := task(2, model.StatusTodo, 0)
	edited.Title = "edited"
	cmd, err := c.Update(edited)
	require.NoError(t, err)
	assert.Equal(t, Committed, c.Settle(run(t, cmd)).Phase)

	got, _, index, _ := c.Board().Find(2)
	assert.Equal(t, "edited", got.Title)
	assert.Equal(t, 1, index)
	assert.Equal(t, 1, got.Position)

	moved := got
	moved.Status = model.StatusLate
	cmd, err = c.Update(moved)
	require.NoError(t, err)

	assert.Equal(t, []int{4, 5, 2}, columnIDs(c, model.StatusInProgress))
	assert.Equal(t, []int{1, 3}, columnIDs(c, model.StatusTodo))
	assert.Equal(t, Committed, c.Settle(run(t, cmd)).Phase)

	require.Len(t, remote.updates, 2)
	assert.Equal(t, model.StatusInProgress, remote.updates[1].Status)
	assert.Equal(t, 2, remote.updates[1].Position)
}

func TestUpdate_RollbackRestoresFields(t *testing.T) {
	c, _ := newFixture(reply{outcome: fault})
	before := c.Board().Snapshot()

	edited := task(5, model.StatusDone, 0)
	edited.Title = "finished"
	cmd, err := c.Update(edited)
	require.NoError(t, err)

	c.Settle(run(t, cmd))
	assert.Equal(t, before, c.Board().Snapshot())
}

func TestDelete_RemovesWithoutRenumbering(t *testing.T) {
	c, remote := newFixture(reply{outcome: gateway.Outcome{Kind: gateway.RawSuccess, StatusCode: 200, Message: "Task deleted."}})

	cmd, err := c.Delete(2)
	require.NoError(t, err)

	tasks := c.Board().Column(model.StatusTodo)
	require.Len(t, tasks, 2)
	assert.Equal(t, 0, tasks[0].Position)
	assert.Equal(t, 2, tasks[1].Position)

	assert.Equal(t, Committed, c.Settle(run(t, cmd)).Phase)
	assert.Equal(t, []int{2}, remote.deletes)
}

func TestDelete_RollbackReinsertsAtIndex(t *testing.T) {
	c, _ := newFixture(reply{outcome: fault}, reply{outcome: ok200})
	before := c.Board().Snapshot()

	cmd, err := c.Delete(2)
	require.NoError(t, err)

	s := c.Settle(run(t, cmd))
	assert.Equal(t, RolledBack, s.Phase)
	assert.Equal(t, before, c.Board().Snapshot())
}

func TestDelete_TargetedRollbackWithLaterMutation(t *testing.T) {
	c, _ := newFixture(reply{outcome: fault}, reply{outcome: ok200})

	del, err := c.Delete(2)
	require.NoError(t, err)
	mv, err := c.Move(board.Move{TaskID: 6, From: model.StatusDone, To: model.StatusInProgress, ToIndex: 2})
	require.NoError(t, err)

	s := c.Settle(run(t, del))
	assert.Equal(t, RolledBack, s.Phase)
	assert.True(t, s.Refresh)
	assert.Equal(t, []int{1, 2, 3}, columnIDs(c, model.StatusTodo))
	assert.Equal(t, []int{4, 5, 6}, columnIDs(c, model.StatusInProgress))

	assert.Equal(t, Committed, c.Settle(run(t, mv)).Phase)
}
