package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/teamboard/internal/model"
)

type userRow struct {
	ID           int    `db:"id"`
	Username     string `db:"username"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
}

func (r userRow) user() model.User {
	return model.User{ID: r.ID, Username: r.Username, Email: r.Email, Role: r.Role}
}

// CreateUser inserts a user. The password must already be hashed.
func (s *SQLiteStore) CreateUser(ctx context.Context, u UserRecord) (*model.User, error) {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return nil, fmt.Errorf("username must not be empty")
	}
	if u.PasswordHash == "" {
		return nil, fmt.Errorf("password must not be empty")
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}

	var exists int
	if err := s.db.GetContext(ctx, &exists,
		"SELECT COUNT(*) FROM users WHERE username = ?", u.Username); err != nil {
		return nil, fmt.Errorf("checking username: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("%s: %w", u.Username, ErrUsernameTaken)
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, role) VALUES (?, ?, ?, ?)",
		u.Username, u.Email, u.PasswordHash, u.Role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user %s: %w", u.Username, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading user id: %w", err)
	}

	created := u.User
	created.ID = int(id)
	created.Username = u.Username
	created.Role = u.Role
	return &created, nil
}

// GetUserByUsername retrieves a user with its password hash.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*UserRecord, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		"SELECT id, username, email, password_hash, role FROM users WHERE username = ?", username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", username, err)
	}
	return &UserRecord{User: row.user(), PasswordHash: row.PasswordHash}, nil
}

// GetUserByID retrieves a user without its password hash.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int) (*model.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		"SELECT id, username, email, password_hash, role FROM users WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	u := row.user()
	return &u, nil
}

// ListUsers returns every user except exceptID, ordered by username.
func (s *SQLiteStore) ListUsers(ctx context.Context, exceptID int) ([]model.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, username, email, password_hash, role FROM users WHERE id != ? ORDER BY username", exceptID)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	users := make([]model.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}
