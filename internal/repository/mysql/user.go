package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Rrens/bloombuddy/internal/domain"
)

// UserRepository implements domain.UserRepository
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db.DB}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domain.UserRecord, error) {
	query := `SELECT id, display_name, email, created_at, updated_at FROM users WHERE id = ?`

	var u domain.UserRecord
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.DisplayName, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) Upsert(ctx context.Context, user *domain.UserRecord) error {
	query := `
		INSERT INTO users (id, display_name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			display_name = VALUES(display_name),
			email = VALUES(email),
			updated_at = VALUES(updated_at)
	`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.DisplayName, user.Email, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
