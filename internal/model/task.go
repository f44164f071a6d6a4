package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the stored board column of a task.
type Status string

// Stored status values, matching the remote wire format.
const (
	StatusTodo       Status = "TO_DO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"

	// StatusLate is derived for display and never sent to the remote.
	StatusLate Status = "LATE"
)

// Columns lists the board columns in display order.
var Columns = []Status{StatusTodo, StatusInProgress, StatusDone}

// DueSoonWindow is how close a deadline must be to be highlighted.
const DueSoonWindow = 3 * time.Hour

// Valid reports whether s is one of the stored column values.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Label returns the human-readable column title.
func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To do"
	case StatusInProgress:
		return "In progress"
	case StatusDone:
		return "Done"
	case StatusLate:
		return "Late"
	default:
		return string(s)
	}
}

// ParseStatus accepts wire values and a few lenient spellings
// ("todo", "in-progress", "done").
func ParseStatus(raw string) (Status, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch norm {
	case "TO_DO", "TODO":
		return StatusTodo, nil
	case "IN_PROGRESS", "INPROGRESS":
		return StatusInProgress, nil
	case "DONE":
		return StatusDone, nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Assignee is the user a task is assigned to.
type Assignee struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// Task is a single board item as the client holds it in memory.
type Task struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Assignee    *Assignee  `json:"assignedTo,omitempty"`
	ProjectID   int        `json:"projectId"`
	Position    int        `json:"position"`
	Tags        string     `json:"tags,omitempty"`
}

// IsLate reports whether the deadline has passed on an unfinished task.
func (t Task) IsLate(now time.Time) bool {
	return t.Deadline != nil && t.Deadline.Before(now) && t.Status != StatusDone
}

// IsDueSoon reports whether an unfinished task's deadline falls within
// DueSoonWindow of now.
func (t Task) IsDueSoon(now time.Time) bool {
	if t.Deadline == nil || t.Status == StatusDone {
		return false
	}
	left := t.Deadline.Sub(now)
	return left > 0 && left <= DueSoonWindow
}

// EffectiveStatus is the status shown to users: LATE overrides the stored
// column for overdue unfinished tasks.
func (t Task) EffectiveStatus(now time.Time) Status {
	if t.IsLate(now) {
		return StatusLate
	}
	return t.Status
}

// AssigneeName returns the assignee's username or an empty string.
func (t Task) AssigneeName() string {
	if t.Assignee == nil {
		return ""
	}
	return t.Assignee.Username
}

// AssigneeID returns the assignee's id or 0 when unassigned.
func (t Task) AssigneeID() int {
	if t.Assignee == nil {
		return 0
	}
	return t.Assignee.ID
}

// TaskInput carries the fields a user supplies when creating a task.
type TaskInput struct {
	Title        string
	Description  string
	Deadline     *time.Time
	Status       Status
	ProjectID    int
	AssignedToID int
	Tags         string
}

// Normalize applies the creation defaults: LATE or empty status become
// TO_DO, and the title is trimmed.
func (in TaskInput) Normalize() TaskInput {
	in.Title = strings.TrimSpace(in.Title)
	if in.Status == "" || in.Status == StatusLate {
		in.Status = StatusTodo
	}
	return in
}

// Validate checks the fields the remote requires for creation.
func (in TaskInput) Validate() error {
	if in.Title == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if in.AssignedToID == 0 {
		return fmt.Errorf("select a member to assign the task to")
	}
	if in.ProjectID == 0 {
		return fmt.Errorf("task must belong to a project")
	}
	if !in.Status.Valid() {
		return fmt.Errorf("invalid status %q", in.Status)
	}
	return nil
}

// EditableStatus maps a status chosen in an edit form to a stored one.
// LATE is not a column; an edit that picks it keeps the task in progress.
func EditableStatus(s Status) Status {
	if s == StatusLate {
		return StatusInProgress
	}
	return s
}
