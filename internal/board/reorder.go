package board

import (
	"errors"
	"fmt"

	"github.com/nhle/teamboard/internal/model"
)

var (
	// ErrUnknownTask is returned when a move names a task that is not in
	// its source column.
	ErrUnknownTask = errors.New("task not found in source column")

	// ErrUnknownColumn is returned when a move names a column that is not
	// a stored status.
	ErrUnknownColumn = errors.New("unknown board column")
)

// Partitions maps each column to its tasks in display order.
type Partitions map[model.Status][]model.Task

// Clone returns a copy whose column slices can be mutated independently.
func (p Partitions) Clone() Partitions {
	out := make(Partitions, len(p))
	for status, tasks := range p {
		cp := make([]model.Task, len(tasks))
		copy(cp, tasks)
		out[status] = cp
	}
	return out
}

// Move is one drag gesture: take TaskID from index FromIndex of From and
// drop it at index ToIndex of To.
type Move struct {
	TaskID    int
	From      model.Status
	To        model.Status
	FromIndex int
	ToIndex   int
}

// Result is the outcome of ComputeMove.
type Result struct {
	Partitions Partitions

	// Task is the moved task with its new status and position.
	Task model.Task

	// Changed is false for the no-op fast path.
	Changed bool
}

// ComputeMove returns the partitions after applying m. It never mutates p.
// The destination column, and the source column when it differs, are
// renumbered 0..n-1; every other column is returned as is.
func ComputeMove(p Partitions, m Move) (Result, error) {
	if !m.From.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownColumn, m.From)
	}
	if !m.To.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownColumn, m.To)
	}

	src := p[m.From]
	at := indexOf(src, m.TaskID)
	if at < 0 {
		return Result{}, fmt.Errorf("%w: task %d in %s", ErrUnknownTask, m.TaskID, m.From)
	}

	// Within a column the task can only land in 0..len-1, so a drop that
	// clamps onto its own index changes nothing.
	if m.From == m.To && at == clamp(m.ToIndex, 0, len(src)-1) {
		return Result{Partitions: p, Task: src[at], Changed: false}, nil
	}

	out := make(Partitions, len(p))
	for status, tasks := range p {
		out[status] = tasks
	}

	task := src[at]
	remaining := make([]model.Task, 0, len(src))
	remaining = append(remaining, src[:at]...)
	remaining = append(remaining, src[at+1:]...)

	task.Status = m.To

	var dst []model.Task
	if m.From == m.To {
		dst = remaining
	} else {
		dst = make([]model.Task, len(p[m.To]))
		copy(dst, p[m.To])
		renumber(remaining)
		out[m.From] = remaining
	}

	idx := clamp(m.ToIndex, 0, len(dst))
	dst = append(dst, model.Task{})
	copy(dst[idx+1:], dst[idx:])
	dst[idx] = task
	renumber(dst)
	out[m.To] = dst

	return Result{Partitions: out, Task: dst[idx], Changed: true}, nil
}

// Dense reports whether every column's positions run 0..n-1 in order.
func Dense(p Partitions) bool {
	for _, tasks := range p {
		for i, t := range tasks {
			if t.Position != i {
				return false
			}
		}
	}
	return true
}

func renumber(tasks []model.Task) {
	for i := range tasks {
		tasks[i].Position = i
	}
}

func indexOf(tasks []model.Task, id int) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
