package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"imagetag/internal/model"
)

// UserRepository implements repository.UserRepository for SQLite.
type UserRepository struct {
	q querier
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(q querier) *UserRepository {
	return &UserRepository{q: q}
}

// Insert adds a new user. The email column is unique.
func (r *UserRepository) Insert(ctx context.Context, user *model.User) (int64, error) {
	result, err := r.q.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES (?, ?, ?)
	`, user.Username, user.Email, user.PasswordHash)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users WHERE id = ?
	`, id)
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	var u model.User
	err := r.q.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
