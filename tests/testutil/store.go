package testutil

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// CreateUser inserts a user whose password equals its username.
func CreateUser(t *testing.T, s store.Store, username, role string) *model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(username), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	u, err := s.CreateUser(context.Background(), store.UserRecord{
		User:         model.User{Username: username, Role: role},
		PasswordHash: string(hash),
	})
	if err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}
	return u
}

// CreateProject inserts a project managed by manager with the given
// members.
func CreateProject(t *testing.T, s store.Store, title string, manager *model.User, members ...*model.User) *model.Project {
	t.Helper()

	ids := make([]int, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	p, err := s.CreateProject(context.Background(), model.ProjectInput{Title: title, MemberIDs: ids}, manager.ID)
	if err != nil {
		t.Fatalf("creating project %s: %v", title, err)
	}
	return p
}

// CreateTask inserts a task in projectID assigned to assignee.
func CreateTask(t *testing.T, s store.Store, projectID int, assignee *model.User, title string, status model.Status) *model.Task {
	t.Helper()

	task, err := s.CreateTask(context.Background(), model.TaskInput{
		Title:        title,
		Status:       status,
		ProjectID:    projectID,
		AssignedToID: assignee.ID,
	})
	if err != nil {
		t.Fatalf("creating task %s: %v", title, err)
	}
	return task
}
