package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationRepository implements domain.ConversationRepository
type ConversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *domain.Conversation) error {
	query := `
		INSERT INTO conversations (id, user_id, topic, started_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query,
		conversation.ID,
		conversation.UserID,
		conversation.Topic,
		conversation.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	query := `
		SELECT id, user_id, topic, started_at
		FROM conversations
		WHERE id = $1
	`
	var c domain.Conversation
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.UserID, &c.Topic, &c.StartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

// List returns the user's conversations newest first, optionally for one topic
func (r *ConversationRepository) List(ctx context.Context, filter domain.ConversationFilter) ([]domain.Conversation, error) {
	query := `
		SELECT id, user_id, topic, started_at
		FROM conversations
		WHERE user_id = $1 AND ($2 = '' OR topic = $2)
		ORDER BY started_at DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, filter.UserID, filter.Topic, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Topic, &c.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, message *domain.ConversationMessage) error {
	query := `
		INSERT INTO conversation_messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		message.ID,
		message.ConversationID,
		string(message.Role),
		message.Content,
		message.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListMessages returns the conversation's messages in insertion order
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY seq ASC
	`
	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ConversationMessage
	for rows.Next() {
		var m domain.ConversationMessage
		var roleStr string
		if err := rows.Scan(&m.ID, &m.ConversationID, &roleStr, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = domain.MessageRole(roleStr)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}
