// Package store persists users, projects, tasks and comments for the
// development server in SQLite.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/teamboard/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrWIPLimit is returned when a write would exceed the IN_PROGRESS
	// limit of a project.
	ErrWIPLimit = errors.New("WIP limit reached: at most 7 IN_PROGRESS tasks")

	// ErrUsernameTaken is returned when creating a user whose name exists.
	ErrUsernameTaken = errors.New("username is already taken")
)

// WIPLimit is the maximum number of IN_PROGRESS tasks per project.
const WIPLimit = 7

// UserRecord is a user row including the password hash.
type UserRecord struct {
	model.User
	PasswordHash string
}

// TaskUpdate carries the fields of PUT /tasks/{id}. Nil pointers leave the
// stored value unchanged.
type TaskUpdate struct {
	Title        string
	Description  string
	Status       model.Status
	Deadline     *time.Time
	Tags         string
	AssignedToID *int
	Position     *int

	// StatusOnly restricts the write to status and position, as for a
	// member moving a task assigned to them.
	StatusOnly bool
}

// Store defines the persistence interface of the development server.
type Store interface {
	// === Users ===

	CreateUser(ctx context.Context, u UserRecord) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*UserRecord, error)
	GetUserByID(ctx context.Context, id int) (*model.User, error)
	ListUsers(ctx context.Context, exceptID int) ([]model.User, error)

	// === Projects ===

	CreateProject(ctx context.Context, in model.ProjectInput, managerID int) (*model.Project, error)
	UpdateProject(ctx context.Context, id int, in model.ProjectInput) error
	DeleteProject(ctx context.Context, id int) error
	GetProject(ctx context.Context, id int) (*model.Project, error)
	ListProjectsForUser(ctx context.Context, userID int) ([]model.Project, error)
	ListAllProjects(ctx context.Context) ([]model.Project, error)
	ListMembers(ctx context.Context, projectID int) ([]model.Member, error)
	MemberRole(ctx context.Context, projectID, userID int) (string, error)

	// === Tasks ===

	CreateTask(ctx context.Context, in model.TaskInput) (*model.Task, error)
	UpdateTask(ctx context.Context, id int, u TaskUpdate) (*model.Task, error)
	DeleteTask(ctx context.Context, id int) error
	GetTask(ctx context.Context, id int) (*model.Task, error)
	ListProjectTasks(ctx context.Context, projectID int) ([]model.Task, error)
	ListAssignedTasks(ctx context.Context, userID int) ([]model.Task, error)

	// === Comments ===

	AddComment(ctx context.Context, projectID, authorID int, content string) (*model.Comment, error)
	DeleteComment(ctx context.Context, projectID, commentID int) error
	ListComments(ctx context.Context, projectID int) ([]model.Comment, error)
	TogglePin(ctx context.Context, projectID, commentID int) (*model.Comment, error)
	CommentAuthor(ctx context.Context, projectID, commentID int) (int, error)

	// === Dashboards ===

	UserDashboard(ctx context.Context, userID int, now time.Time) (*model.Dashboard, error)
	ManagerDashboard(ctx context.Context, userID int, now time.Time) (*model.ManagerDashboard, error)
}
