package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/teamboard/internal/model"
)

type tally struct {
	total, todo, inProgress, done, late int
}

func count(tasks []model.Task, now time.Time) tally {
	var t tally
	for _, task := range tasks {
		t.total++
		switch task.Status {
		case model.StatusTodo:
			t.todo++
		case model.StatusInProgress:
			t.inProgress++
		case model.StatusDone:
			t.done++
		}
		if task.IsLate(now) {
			t.late++
		}
	}
	return t
}

// UserDashboard counts the tasks assigned to userID. Late tasks are also
// counted in their stored column.
func (s *SQLiteStore) UserDashboard(ctx context.Context, userID int, now time.Time) (*model.Dashboard, error) {
	var projectCount int
	if err := s.db.GetContext(ctx, &projectCount,
		"SELECT COUNT(*) FROM project_members WHERE user_id = ?", userID); err != nil {
		return nil, fmt.Errorf("counting projects of user %d: %w", userID, err)
	}

	tasks, err := s.ListAssignedTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	t := count(tasks, now)
	return &model.Dashboard{
		ProjectCount:    projectCount,
		TotalTasks:      t.total,
		TodoCount:       t.todo,
		InProgressCount: t.inProgress,
		DoneCount:       t.done,
		LateCount:       t.late,
	}, nil
}

// ManagerDashboard counts the tasks of every project userID manages and the
// distinct users across them.
func (s *SQLiteStore) ManagerDashboard(ctx context.Context, userID int, now time.Time) (*model.ManagerDashboard, error) {
	var managed []int
	if err := s.db.SelectContext(ctx, &managed,
		"SELECT project_id FROM project_members WHERE user_id = ? AND role = ?",
		userID, model.ProjectRoleManager); err != nil {
		return nil, fmt.Errorf("listing managed projects of user %d: %w", userID, err)
	}

	d := &model.ManagerDashboard{ManagedProjects: len(managed)}
	members := make(map[int]struct{})
	var all []model.Task
	for _, pid := range managed {
		var ids []int
		if err := s.db.SelectContext(ctx, &ids,
			"SELECT user_id FROM project_members WHERE project_id = ?", pid); err != nil {
			return nil, fmt.Errorf("listing members of project %d: %w", pid, err)
		}
		for _, id := range ids {
			members[id] = struct{}{}
		}

		tasks, err := s.ListProjectTasks(ctx, pid)
		if err != nil {
			return nil, err
		}
		all = append(all, tasks...)
	}
	d.TotalMembers = len(members)

	t := count(all, now)
	d.TotalTasks = t.total
	d.TodoCount = t.todo
	d.InProgressCount = t.inProgress
	d.DoneCount = t.done
	d.LateCount = t.late
	return d, nil
}
