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

// ConversationRepository implements domain.ConversationRepository
type ConversationRepository struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{
		conversations: db.db.Collection(conversationsCollection),
		messages:      db.db.Collection(messagesCollection),
	}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *domain.Conversation) error {
	if _, err := r.conversations.InsertOne(ctx, conversation); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

func (r *ConversationRepository) List(ctx context.Context, filter domain.ConversationFilter) ([]domain.Conversation, error) {
	query := bson.M{"userId": filter.UserID}
	if filter.Topic != "" {
		query["topic"] = filter.Topic
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "startedAt", Value: -1}}).
		SetLimit(int64(filter.Limit))

	cursor, err := r.conversations.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var conversations []domain.Conversation
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return conversations, nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, message *domain.ConversationMessage) error {
	if _, err := r.messages.InsertOne(ctx, message); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListMessages returns the conversation's messages oldest first
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.messages.Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []domain.ConversationMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}
