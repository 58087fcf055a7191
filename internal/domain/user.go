package domain

import (
	"context"
	"time"
)

// UserRecord is the profile kept for an authenticated user
type UserRecord struct {
	ID          string    `json:"id" bson:"_id"`
	DisplayName string    `json:"displayName" bson:"displayName"`
	Email       string    `json:"email" bson:"email"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// UserUpdate represents profile update data
type UserUpdate struct {
	DisplayName string `json:"displayName" validate:"max=100"`
	Email       string `json:"email" validate:"omitempty,email,max=255"`
}

// UserRepository defines the interface for user record storage
type UserRepository interface {
	Get(ctx context.Context, id string) (*UserRecord, error)
	Upsert(ctx context.Context, user *UserRecord) error
}
