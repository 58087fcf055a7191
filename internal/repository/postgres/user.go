package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository implements domain.UserRepository
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domain.UserRecord, error) {
	query := `
		SELECT id, display_name, email, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u domain.UserRecord
	err := r.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.DisplayName, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) Upsert(ctx context.Context, user *domain.UserRecord) error {
	query := `
		INSERT INTO users (id, display_name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query, user.ID, user.DisplayName, user.Email, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
