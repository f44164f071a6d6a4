package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/teamboard/internal/model"
)

const commentSelect = `
	SELECT c.id, c.content, u.username AS author_username, c.created_at, c.pinned
	FROM project_comments c
	JOIN users u ON u.id = c.author_id`

type commentRow struct {
	ID             int       `db:"id"`
	Content        string    `db:"content"`
	AuthorUsername string    `db:"author_username"`
	CreatedAt      time.Time `db:"created_at"`
	Pinned         int       `db:"pinned"`
}

func (r commentRow) comment() model.Comment {
	return model.Comment{
		ID:             r.ID,
		Content:        r.Content,
		AuthorUsername: r.AuthorUsername,
		CreatedAt:      r.CreatedAt.Local(),
		Pinned:         r.Pinned != 0,
	}
}

// AddComment inserts a comment on a project.
func (s *SQLiteStore) AddComment(
	ctx context.Context,
	projectID, authorID int,
	content string,
) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("comment must not be empty")
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO project_comments (project_id, author_id, content, created_at) VALUES (?, ?, ?, ?)",
		projectID, authorID, content, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("adding comment to project %d: %w", projectID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading comment id: %w", err)
	}
	return s.getComment(ctx, projectID, int(id))
}

func (s *SQLiteStore) getComment(ctx context.Context, projectID, id int) (*model.Comment, error) {
	var row commentRow
	err := s.db.GetContext(ctx, &row,
		commentSelect+" WHERE c.project_id = ? AND c.id = ?", projectID, id)
	if err != nil {
		return nil, notFound(err, "comment", id)
	}
	c := row.comment()
	return &c, nil
}

// DeleteComment removes a comment from a project.
func (s *SQLiteStore) DeleteComment(ctx context.Context, projectID, commentID int) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM project_comments WHERE project_id = ? AND id = ?", projectID, commentID)
	if err != nil {
		return fmt.Errorf("deleting comment %d: %w", commentID, err)
	}
	return checkAffected(result, "comment", commentID)
}

// ListComments returns a project's comments, pinned first, newest first.
func (s *SQLiteStore) ListComments(ctx context.Context, projectID int) ([]model.Comment, error) {
	var rows []commentRow
	err := s.db.SelectContext(ctx, &rows,
		commentSelect+" WHERE c.project_id = ? ORDER BY c.pinned DESC, c.created_at DESC, c.id DESC", projectID)
	if err != nil {
		return nil, fmt.Errorf("listing comments of project %d: %w", projectID, err)
	}
	comments := make([]model.Comment, 0, len(rows))
	for _, r := range rows {
		comments = append(comments, r.comment())
	}
	return comments, nil
}

// TogglePin flips a comment's pinned flag and returns the updated comment.
func (s *SQLiteStore) TogglePin(ctx context.Context, projectID, commentID int) (*model.Comment, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE project_comments SET pinned = 1 - pinned WHERE project_id = ? AND id = ?",
		projectID, commentID)
	if err != nil {
		return nil, fmt.Errorf("pinning comment %d: %w", commentID, err)
	}
	if err := checkAffected(result, "comment", commentID); err != nil {
		return nil, err
	}
	return s.getComment(ctx, projectID, commentID)
}

// CommentAuthor returns the user id that wrote a comment.
func (s *SQLiteStore) CommentAuthor(ctx context.Context, projectID, commentID int) (int, error) {
	var author int
	err := s.db.GetContext(ctx, &author,
		"SELECT author_id FROM project_comments WHERE project_id = ? AND id = ?", projectID, commentID)
	if err != nil {
		return 0, notFound(err, "comment", commentID)
	}
	return author, nil
}
