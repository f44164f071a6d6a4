package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/teamboard/internal/model"
)

func TestNew_SortsAndFilters(t *testing.T) {
	b := New(1, []model.Task{
		{ID: 3, Status: model.StatusTodo, ProjectID: 1, Position: 2},
		{ID: 1, Status: model.StatusTodo, ProjectID: 1, Position: 0},
		{ID: 2, Status: model.StatusTodo, ProjectID: 1, Position: 0},
		{ID: 4, Status: model.StatusDone, ProjectID: 2, Position: 0},
		{ID: 5, Status: "ARCHIVED", ProjectID: 1},
	})

	assert.Equal(t, []int{1, 2, 3}, ids(b.Column(model.StatusTodo)))
	assert.Empty(t, b.Column(model.StatusDone))
	assert.Equal(t, 3, b.Len())
}

func TestBoard_AppendRemoveInsert(t *testing.T) {
	b := New(1, column(model.StatusTodo, 1, 2, 3))

	added := b.Append(model.Task{ID: 9, Status: model.StatusTodo, ProjectID: 1})
	assert.Equal(t, 3, added.Position)
	assert.Equal(t, []int{1, 2, 3, 9}, ids(b.Column(model.StatusTodo)))

	removed, index, ok := b.Remove(2)
	require.True(t, ok)
	assert.Equal(t, 1, index)
	assert.Equal(t, 1, removed.Position)

	// Remove leaves a gap; it never renumbers.
	positions := []int{}
	for _, task := range b.Column(model.StatusTodo) {
		positions = append(positions, task.Position)
	}
	assert.Equal(t, []int{0, 2, 3}, positions)

	b.Insert(removed, index)
	assert.Equal(t, []int{1, 2, 3, 9}, ids(b.Column(model.StatusTodo)))
}

func TestBoard_SnapshotIsIndependent(t *testing.T) {
	b := New(1, column(model.StatusTodo, 1, 2))
	snap := b.Snapshot()

	b.Append(model.Task{ID: 3, Status: model.StatusTodo, ProjectID: 1})
	b.Replace(1, model.Task{ID: 1, Title: "changed", Status: model.StatusTodo})

	assert.Len(t, snap[model.StatusTodo], 2)
	assert.Empty(t, snap[model.StatusTodo][0].Title)

	b.Restore(snap)
	assert.Equal(t, snap, b.Snapshot())
}

func TestBoard_Find(t *testing.T) {
	b := New(1, column(model.StatusInProgress, 4, 5))

	task, status, index, ok := b.Find(5)
	require.True(t, ok)
	assert.Equal(t, 5, task.ID)
	assert.Equal(t, model.StatusInProgress, status)
	assert.Equal(t, 1, index)

	_, _, _, ok = b.Find(99)
	assert.False(t, ok)
}
