package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/bloombuddy/internal/domain"
)

// UserService handles user profile records
type UserService struct {
	repo domain.UserRepository
	now  func() time.Time
}

// NewUserService creates a new user service
func NewUserService(repo domain.UserRepository) *UserService {
	return &UserService{repo: repo, now: time.Now}
}

// Get returns a user record
func (s *UserService) Get(ctx context.Context, id string) (*domain.UserRecord, error) {
	return s.repo.Get(ctx, id)
}

// Update creates or updates a user record
func (s *UserService) Update(ctx context.Context, id string, in domain.UserUpdate) (*domain.UserRecord, error) {
	now := s.now().UTC()

	user, err := s.repo.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		user = &domain.UserRecord{ID: id, CreatedAt: now}
	case err != nil:
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if in.DisplayName != "" {
		user.DisplayName = in.DisplayName
	}
	if in.Email != "" {
		user.Email = in.Email
	}
	user.UpdatedAt = now

	if err := s.repo.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	return user, nil
}
