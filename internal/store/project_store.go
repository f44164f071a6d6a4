package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/teamboard/internal/model"
)

type projectRow struct {
	ID          int            `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Role        sql.NullString `db:"role"`
}

func (r projectRow) project() model.Project {
	return model.Project{ID: r.ID, Title: r.Title, Description: r.Description, Role: r.Role.String}
}

// CreateProject inserts a project, makes managerID its manager and adds
// memberIDs as members.
func (s *SQLiteStore) CreateProject(
	ctx context.Context,
	in model.ProjectInput,
	managerID int,
) (*model.Project, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("project title must not be empty")
	}

	var created model.Project
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			"INSERT INTO projects (title, description) VALUES (?, ?)", title, in.Description)
		if err != nil {
			return fmt.Errorf("creating project: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading project id: %w", err)
		}
		created = model.Project{
			ID:          int(id),
			Title:       title,
			Description: in.Description,
			Role:        model.ProjectRoleManager,
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO project_members (project_id, user_id, role) VALUES (?, ?, ?)",
			id, managerID, model.ProjectRoleManager); err != nil {
			return fmt.Errorf("adding project manager: %w", err)
		}
		return addMembers(ctx, tx, created.ID, managerID, in.MemberIDs)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func addMembers(ctx context.Context, tx *sqlx.Tx, projectID, managerID int, memberIDs []int) error {
	for _, uid := range memberIDs {
		if uid == managerID {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO project_members (project_id, user_id, role) VALUES (?, ?, ?)",
			projectID, uid, model.ProjectRoleMember); err != nil {
			return fmt.Errorf("adding member %d: %w", uid, err)
		}
	}
	return nil
}

// UpdateProject replaces title and description. When MemberIDs is non-nil
// the member list is replaced too; managers are always kept.
func (s *SQLiteStore) UpdateProject(ctx context.Context, id int, in model.ProjectInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return fmt.Errorf("project title must not be empty")
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE projects SET title = ?, description = ? WHERE id = ?",
			title, in.Description, id)
		if err != nil {
			return fmt.Errorf("updating project %d: %w", id, err)
		}
		if err := checkAffected(result, "project", id); err != nil {
			return err
		}
		if in.MemberIDs == nil {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM project_members WHERE project_id = ? AND role = ?",
			id, model.ProjectRoleMember); err != nil {
			return fmt.Errorf("clearing members of project %d: %w", id, err)
		}
		return addMembers(ctx, tx, id, 0, in.MemberIDs)
	})
}

// DeleteProject removes a project with its tasks, members and comments.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project %d: %w", id, err)
	}
	return checkAffected(result, "project", id)
}

// GetProject retrieves a single project. Role is left empty.
func (s *SQLiteStore) GetProject(ctx context.Context, id int) (*model.Project, error) {
	var row projectRow
	err := s.db.GetContext(ctx, &row,
		"SELECT id, title, description, NULL AS role FROM projects WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	p := row.project()
	return &p, nil
}

// ListProjectsForUser returns the projects userID belongs to with the
// user's role in each.
func (s *SQLiteStore) ListProjectsForUser(ctx context.Context, userID int) ([]model.Project, error) {
	var rows []projectRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT p.id, p.title, p.description, m.role
		FROM projects p
		JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = ?
		ORDER BY p.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects of user %d: %w", userID, err)
	}
	return projects(rows), nil
}

// ListAllProjects returns every project as seen by a global admin, who is
// treated as manager everywhere.
func (s *SQLiteStore) ListAllProjects(ctx context.Context) ([]model.Project, error) {
	var rows []projectRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, title, description, 'MANAGER' AS role FROM projects ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects(rows), nil
}

func projects(rows []projectRow) []model.Project {
	out := make([]model.Project, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.project())
	}
	return out
}

// ListMembers returns the members of a project, managers first.
func (s *SQLiteStore) ListMembers(ctx context.Context, projectID int) ([]model.Member, error) {
	var members []struct {
		UserID   int    `db:"user_id"`
		Username string `db:"username"`
		Role     string `db:"role"`
	}
	err := s.db.SelectContext(ctx, &members, `
		SELECT m.user_id, u.username, m.role
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = ?
		ORDER BY CASE m.role WHEN 'MANAGER' THEN 0 ELSE 1 END, u.username`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing members of project %d: %w", projectID, err)
	}
	out := make([]model.Member, 0, len(members))
	for _, m := range members {
		out = append(out, model.Member{UserID: m.UserID, Username: m.Username, Role: m.Role})
	}
	return out, nil
}

// MemberRole returns userID's role in projectID, or ErrNotFound when the
// user is not a member.
func (s *SQLiteStore) MemberRole(ctx context.Context, projectID, userID int) (string, error) {
	var role string
	err := s.db.GetContext(ctx, &role,
		"SELECT role FROM project_members WHERE project_id = ? AND user_id = ?", projectID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %d in project %d: %w", userID, projectID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting role in project %d: %w", projectID, err)
	}
	return role, nil
}
