package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/teamboard/internal/model"
)

const taskSelect = `
	SELECT t.id, t.project_id, t.title, t.description, t.status, t.deadline,
	       t.tags, t.position, t.assigned_to, u.username AS assignee_name
	FROM tasks t
	LEFT JOIN users u ON u.id = t.assigned_to`

type taskRow struct {
	ID           int            `db:"id"`
	ProjectID    int            `db:"project_id"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	Status       string         `db:"status"`
	Deadline     sql.NullTime   `db:"deadline"`
	Tags         string         `db:"tags"`
	Position     int            `db:"position"`
	AssignedTo   sql.NullInt64  `db:"assigned_to"`
	AssigneeName sql.NullString `db:"assignee_name"`
}

func (r taskRow) task() model.Task {
	t := model.Task{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Title:       r.Title,
		Description: r.Description,
		Status:      model.Status(r.Status),
		Tags:        r.Tags,
		Position:    r.Position,
	}
	if r.Deadline.Valid {
		d := r.Deadline.Time.Local()
		t.Deadline = &d
	}
	if r.AssignedTo.Valid {
		t.Assignee = &model.Assignee{ID: int(r.AssignedTo.Int64), Username: r.AssigneeName.String}
	}
	return t
}

func nullDeadline(d *time.Time) any {
	if d == nil {
		return nil
	}
	return d.UTC()
}

// CreateTask inserts a task at the tail of its column. Creating an
// IN_PROGRESS task counts against the WIP limit.
func (s *SQLiteStore) CreateTask(ctx context.Context, in model.TaskInput) (*model.Task, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if in.Status == model.StatusInProgress {
			if err := checkWIP(ctx, tx, in.ProjectID); err != nil {
				return err
			}
		}

		var next int
		if err := tx.GetContext(ctx, &next,
			"SELECT COALESCE(MAX(position), -1) + 1 FROM tasks WHERE project_id = ? AND status = ?",
			in.ProjectID, in.Status); err != nil {
			return fmt.Errorf("getting next position: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (project_id, title, description, status, deadline, tags, position, assigned_to)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.ProjectID, in.Title, in.Description, in.Status,
			nullDeadline(in.Deadline), in.Tags, next, in.AssignedToID,
		)
		if err != nil {
			return fmt.Errorf("creating task: %w", err)
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, int(id))
}

func checkWIP(ctx context.Context, tx *sqlx.Tx, projectID int) error {
	var n int
	if err := tx.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM tasks WHERE project_id = ? AND status = ?",
		projectID, model.StatusInProgress); err != nil {
		return fmt.Errorf("counting IN_PROGRESS tasks: %w", err)
	}
	if n >= WIPLimit {
		return ErrWIPLimit
	}
	return nil
}

// UpdateTask applies u and reindexes the affected columns so positions
// stay dense. The task is placed at index *u.Position of its destination
// column; without a position it keeps its slot, or goes to the tail when
// its status changed.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id int, u TaskUpdate) (*model.Task, error) {
	if !u.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q", u.Status)
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var cur taskRow
		if err := tx.GetContext(ctx, &cur, taskSelect+" WHERE t.id = ?", id); err != nil {
			return notFound(err, "task", id)
		}
		from := model.Status(cur.Status)

		if u.Status == model.StatusInProgress && from != model.StatusInProgress {
			if err := checkWIP(ctx, tx, cur.ProjectID); err != nil {
				return err
			}
		}

		if !u.StatusOnly {
			if strings.TrimSpace(u.Title) == "" {
				return fmt.Errorf("task title must not be empty")
			}
			assigned := cur.AssignedTo
			if u.AssignedToID != nil {
				assigned = sql.NullInt64{Int64: int64(*u.AssignedToID), Valid: *u.AssignedToID != 0}
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE tasks SET title = ?, description = ?, deadline = ?, tags = ?, assigned_to = ?
				WHERE id = ?`,
				u.Title, u.Description, nullDeadline(u.Deadline), u.Tags, assigned, id,
			); err != nil {
				return fmt.Errorf("updating task %d: %w", id, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE tasks SET status = ? WHERE id = ?", u.Status, id); err != nil {
			return fmt.Errorf("updating status of task %d: %w", id, err)
		}

		dest, err := columnIDs(ctx, tx, cur.ProjectID, u.Status, id)
		if err != nil {
			return err
		}
		index := len(dest)
		switch {
		case u.Position != nil:
			index = *u.Position
		case from == u.Status:
			index = cur.Position
		}
		index = max(0, min(index, len(dest)))

		ordered := make([]int, 0, len(dest)+1)
		ordered = append(ordered, dest[:index]...)
		ordered = append(ordered, id)
		ordered = append(ordered, dest[index:]...)
		if err := renumber(ctx, tx, ordered); err != nil {
			return err
		}

		if from != u.Status {
			src, err := columnIDs(ctx, tx, cur.ProjectID, from, id)
			if err != nil {
				return err
			}
			return renumber(ctx, tx, src)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

// columnIDs returns the ids of a column in position order, skipping except.
func columnIDs(ctx context.Context, tx *sqlx.Tx, projectID int, status model.Status, except int) ([]int, error) {
	var ids []int
	err := tx.SelectContext(ctx, &ids, `
		SELECT id FROM tasks
		WHERE project_id = ? AND status = ? AND id != ?
		ORDER BY position, id`, projectID, status, except)
	if err != nil {
		return nil, fmt.Errorf("reading %s column: %w", status, err)
	}
	return ids, nil
}

func renumber(ctx context.Context, tx *sqlx.Tx, ids []int) error {
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"UPDATE tasks SET position = ? WHERE id = ? AND position != ?", i, id, i); err != nil {
			return fmt.Errorf("reindexing task %d: %w", id, err)
		}
	}
	return nil
}

// DeleteTask removes a task. Sibling positions are left as they are.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	return checkAffected(result, "task", id)
}

// GetTask retrieves a single task.
func (s *SQLiteStore) GetTask(ctx context.Context, id int) (*model.Task, error) {
	var row taskRow
	if err := s.db.GetContext(ctx, &row, taskSelect+" WHERE t.id = ?", id); err != nil {
		return nil, notFound(err, "task", id)
	}
	t := row.task()
	return &t, nil
}

// ListProjectTasks returns a project's tasks ordered by status and
// position.
func (s *SQLiteStore) ListProjectTasks(ctx context.Context, projectID int) ([]model.Task, error) {
	return s.selectTasks(ctx,
		taskSelect+" WHERE t.project_id = ? ORDER BY t.status, t.position, t.id", projectID)
}

// ListAssignedTasks returns the tasks assigned to userID across projects.
func (s *SQLiteStore) ListAssignedTasks(ctx context.Context, userID int) ([]model.Task, error) {
	return s.selectTasks(ctx,
		taskSelect+" WHERE t.assigned_to = ? ORDER BY t.project_id, t.status, t.position", userID)
}

func (s *SQLiteStore) selectTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	tasks := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task())
	}
	return tasks, nil
}
