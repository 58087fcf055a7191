package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/bloombuddy/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository implements domain.UserRepository
type UserRepository struct {
	users *mongo.Collection
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{users: db.db.Collection(usersCollection)}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domain.UserRecord, error) {
	var u domain.UserRecord
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) Upsert(ctx context.Context, user *domain.UserRecord) error {
	_, err := r.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
