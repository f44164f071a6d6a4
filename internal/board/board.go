// Package board holds the in-memory task columns of the open project and
// the pure reorder computation applied to them.
package board

import (
	"sort"

	"github.com/nhle/teamboard/internal/model"
)

// Board is the single source of truth the UI renders from. It is owned by
// the event loop and is not safe for concurrent use.
type Board struct {
	projectID int
	columns   Partitions
}

// New builds a board for projectID from an unordered task list. Tasks of
// other projects and tasks with unknown statuses are dropped; each column is
// sorted by position, ties broken by id.
func New(projectID int, tasks []model.Task) *Board {
	b := &Board{projectID: projectID}
	b.Load(tasks)
	return b
}

// Load replaces the board contents wholesale.
func (b *Board) Load(tasks []model.Task) {
	cols := emptyPartitions()
	for _, t := range tasks {
		if t.ProjectID != 0 && b.projectID != 0 && t.ProjectID != b.projectID {
			continue
		}
		if !t.Status.Valid() {
			continue
		}
		cols[t.Status] = append(cols[t.Status], t)
	}
	for _, tasks := range cols {
		sort.SliceStable(tasks, func(i, j int) bool {
			if tasks[i].Position != tasks[j].Position {
				return tasks[i].Position < tasks[j].Position
			}
			return tasks[i].ID < tasks[j].ID
		})
	}
	b.columns = cols
}

// ProjectID returns the project the board shows.
func (b *Board) ProjectID() int { return b.projectID }

// Column returns a copy of the tasks in status, in display order.
func (b *Board) Column(status model.Status) []model.Task {
	tasks := b.columns[status]
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	return out
}

// Partitions returns the live column map. Callers must treat it as
// read-only; use Snapshot for a copy.
func (b *Board) Partitions() Partitions { return b.columns }

// Snapshot returns a deep-enough copy of every column for rollback.
func (b *Board) Snapshot() Partitions { return b.columns.Clone() }

// Restore replaces the board contents with a snapshot.
func (b *Board) Restore(p Partitions) {
	cols := emptyPartitions()
	for status, tasks := range p {
		cp := make([]model.Task, len(tasks))
		copy(cp, tasks)
		cols[status] = cp
	}
	b.columns = cols
}

// Apply installs the partitions produced by ComputeMove.
func (b *Board) Apply(p Partitions) {
	cols := emptyPartitions()
	for status, tasks := range p {
		cols[status] = tasks
	}
	b.columns = cols
}

// Find locates a task by id.
func (b *Board) Find(id int) (model.Task, model.Status, int, bool) {
	for _, status := range model.Columns {
		for i, t := range b.columns[status] {
			if t.ID == id {
				return t, status, i, true
			}
		}
	}
	return model.Task{}, "", -1, false
}

// Append adds t at the tail of its column with the next position.
func (b *Board) Append(t model.Task) model.Task {
	col := b.columns[t.Status]
	t.Position = len(col)
	if n := len(col); n > 0 && col[n-1].Position >= t.Position {
		t.Position = col[n-1].Position + 1
	}
	out := make([]model.Task, len(col), len(col)+1)
	copy(out, col)
	b.columns[t.Status] = append(out, t)
	return t
}

// Insert places t at index of its column without renumbering siblings.
// It is the inverse of Remove.
func (b *Board) Insert(t model.Task, index int) {
	col := b.columns[t.Status]
	index = clamp(index, 0, len(col))
	out := make([]model.Task, 0, len(col)+1)
	out = append(out, col[:index]...)
	out = append(out, t)
	out = append(out, col[index:]...)
	b.columns[t.Status] = out
}

// Replace swaps the task with the given id for t, keeping its slot. It
// reports false when id is not on the board.
func (b *Board) Replace(id int, t model.Task) bool {
	_, status, index, ok := b.Find(id)
	if !ok {
		return false
	}
	col := make([]model.Task, len(b.columns[status]))
	copy(col, b.columns[status])
	col[index] = t
	b.columns[status] = col
	return true
}

// Remove deletes the task with the given id. Positions of the remaining
// tasks are left as they were.
func (b *Board) Remove(id int) (model.Task, int, bool) {
	t, status, index, ok := b.Find(id)
	if !ok {
		return model.Task{}, -1, false
	}
	col := b.columns[status]
	out := make([]model.Task, 0, len(col)-1)
	out = append(out, col[:index]...)
	out = append(out, col[index+1:]...)
	b.columns[status] = out
	return t, index, true
}

// Len returns the number of tasks on the board.
func (b *Board) Len() int {
	n := 0
	for _, tasks := range b.columns {
		n += len(tasks)
	}
	return n
}

func emptyPartitions() Partitions {
	p := make(Partitions, len(model.Columns))
	for _, status := range model.Columns {
		p[status] = []model.Task{}
	}
	return p
}
