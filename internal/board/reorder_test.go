package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/teamboard/internal/model"
)

func column(status model.Status, ids ...int) []model.Task {
	tasks := make([]model.Task, len(ids))
	for i, id := range ids {
		tasks[i] = model.Task{ID: id, Status: status, ProjectID: 1, Position: i}
	}
	return tasks
}

func ids(tasks []model.Task) []int {
	out := make([]int, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func sample() Partitions {
	return Partitions{
		model.StatusTodo:       column(model.StatusTodo, 1, 2, 3),
		model.StatusInProgress: column(model.StatusInProgress, 4, 5),
		model.StatusDone:       column(model.StatusDone, 6),
	}
}

func TestComputeMove_AcrossColumns(t *testing.T) {
	p := sample()

	res, err := ComputeMove(p, Move{
		TaskID: 2, From: model.StatusTodo, To: model.StatusInProgress,
		FromIndex: 1, ToIndex: 1,
	})
	require.NoError(t, err)
	require.True(t, res.Changed)

	assert.Equal(t, []int{1, 3}, ids(res.Partitions[model.StatusTodo]))
	assert.Equal(t, []int{4, 2, 5}, ids(res.Partitions[model.StatusInProgress]))
	assert.Equal(t, []int{6}, ids(res.Partitions[model.StatusDone]))
	assert.Equal(t, model.StatusInProgress, res.Task.Status)
	assert.Equal(t, 1, res.Task.Position)
	assert.True(t, Dense(res.Partitions))
}

func TestComputeMove_WithinColumn(t *testing.T) {
	res, err := ComputeMove(sample(), Move{
		TaskID: 1, From: model.StatusTodo, To: model.StatusTodo,
		FromIndex: 0, ToIndex: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 1}, ids(res.Partitions[model.StatusTodo]))
	assert.Equal(t, 2, res.Task.Position)
	assert.True(t, Dense(res.Partitions))
}

func TestComputeMove_NoOpReturnsInput(t *testing.T) {
	p := sample()

	res, err := ComputeMove(p, Move{
		TaskID: 2, From: model.StatusTodo, To: model.StatusTodo,
		FromIndex: 1, ToIndex: 1,
	})
	require.NoError(t, err)

	assert.False(t, res.Changed)
	assert.Equal(t, sample(), res.Partitions)
}

func TestComputeMove_NoOpUsesLocatedIndex(t *testing.T) {
	p := sample()

	// A single-card column: dropping below the only card is where it is.
	res, err := ComputeMove(p, Move{
		TaskID: 6, From: model.StatusDone, To: model.StatusDone,
		FromIndex: 1, ToIndex: 0,
	})
	require.NoError(t, err)
	assert.False(t, res.Changed)

	// A stale FromIndex does not matter; the task is found at 2 already.
	res, err = ComputeMove(p, Move{
		TaskID: 3, From: model.StatusTodo, To: model.StatusTodo,
		FromIndex: 0, ToIndex: 99,
	})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, sample(), res.Partitions)

	res, err = ComputeMove(p, Move{
		TaskID: 3, From: model.StatusTodo, To: model.StatusTodo,
		FromIndex: 2, ToIndex: 0,
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []int{3, 1, 2}, ids(res.Partitions[model.StatusTodo]))
}

func TestComputeMove_DoesNotMutateInput(t *testing.T) {
	p := sample()
	before := p.Clone()

	_, err := ComputeMove(p, Move{
		TaskID: 4, From: model.StatusInProgress, To: model.StatusTodo,
		FromIndex: 0, ToIndex: 0,
	})
	require.NoError(t, err)

	assert.Equal(t, before, p)
}

func TestComputeMove_ClampsIndex(t *testing.T) {
	res, err := ComputeMove(sample(), Move{
		TaskID: 6, From: model.StatusDone, To: model.StatusTodo,
		FromIndex: 0, ToIndex: 99,
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 6}, ids(res.Partitions[model.StatusTodo]))
	assert.Empty(t, res.Partitions[model.StatusDone])

	res, err = ComputeMove(sample(), Move{
		TaskID: 6, From: model.StatusDone, To: model.StatusTodo,
		FromIndex: 0, ToIndex: -3,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{6, 1, 2, 3}, ids(res.Partitions[model.StatusTodo]))
}

func TestComputeMove_RenumbersSparseSource(t *testing.T) {
	p := sample()
	p[model.StatusTodo][1].Position = 7
	p[model.StatusTodo][2].Position = 12

	res, err := ComputeMove(p, Move{
		TaskID: 1, From: model.StatusTodo, To: model.StatusDone,
		FromIndex: 0, ToIndex: 0,
	})
	require.NoError(t, err)
	assert.True(t, Dense(res.Partitions))
}

func TestComputeMove_Errors(t *testing.T) {
	_, err := ComputeMove(sample(), Move{
		TaskID: 42, From: model.StatusTodo, To: model.StatusDone,
	})
	assert.ErrorIs(t, err, ErrUnknownTask)

	_, err = ComputeMove(sample(), Move{
		TaskID: 4, From: model.StatusTodo, To: model.StatusDone,
	})
	assert.ErrorIs(t, err, ErrUnknownTask)

	_, err = ComputeMove(sample(), Move{
		TaskID: 1, From: model.StatusTodo, To: model.StatusLate,
	})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestComputeMove_DensityAfterSequence(t *testing.T) {
	p := sample()
	moves := []Move{
		{TaskID: 1, From: model.StatusTodo, To: model.StatusDone, ToIndex: 1},
		{TaskID: 5, From: model.StatusInProgress, To: model.StatusTodo, ToIndex: 0},
		{TaskID: 6, From: model.StatusDone, To: model.StatusDone, FromIndex: 0, ToIndex: 1},
		{TaskID: 3, From: model.StatusTodo, To: model.StatusInProgress, ToIndex: 5},
	}
	for _, m := range moves {
		res, err := ComputeMove(p, m)
		require.NoError(t, err)
		require.True(t, Dense(res.Partitions), "move %+v", m)
		p = res.Partitions
	}

	total := 0
	for _, tasks := range p {
		total += len(tasks)
	}
	assert.Equal(t, 6, total)
}
