package domain

import (
	"context"
	"time"
)

// Conversation is the archived record of one chat on a topic
type Conversation struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"userId"`
	Topic     string    `json:"topic" bson:"topic"`
	StartedAt time.Time `json:"startedAt" bson:"startedAt"`
}

// ConversationMessage is an archived message owned by a conversation
type ConversationMessage struct {
	ID             string      `json:"id" bson:"_id"`
	ConversationID string      `json:"conversationId" bson:"conversationId"`
	Role           MessageRole `json:"role" bson:"role"`
	Content        string      `json:"content" bson:"content"`
	Timestamp      time.Time   `json:"timestamp" bson:"timestamp"`
}

// ConversationDetail bundles a conversation with its messages, oldest first
type ConversationDetail struct {
	Conversation Conversation          `json:"conversation"`
	Messages     []ConversationMessage `json:"messages"`
}

// ConversationCreate is the body of POST /api/conversations
type ConversationCreate struct {
	UserID string `json:"userId" validate:"required,max=128"`
	Topic  string `json:"topic" validate:"required,max=64"`
}

// MessageCreate is the body of POST /api/conversations/{id}/messages
type MessageCreate struct {
	Role    MessageRole `json:"role" validate:"required,oneof=user assistant"`
	Content string      `json:"content" validate:"required"`
}

// ConversationFilter narrows a conversation listing
type ConversationFilter struct {
	UserID string
	Topic  string
	Limit  int
}

// ConversationRepository defines the interface for the conversation archive.
// The archive is append-only: records are never updated or deleted.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *Conversation) error
	Get(ctx context.Context, id string) (*Conversation, error)
	List(ctx context.Context, filter ConversationFilter) ([]Conversation, error)
	AppendMessage(ctx context.Context, message *ConversationMessage) error
	ListMessages(ctx context.Context, conversationID string) ([]ConversationMessage, error)
}
