package chat

import (
	"context"
	"fmt"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/rs/zerolog/log"
)

// DefaultHistoryPageSize is the number of archived conversations listed at once
const DefaultHistoryPageSize = 50

// HistoryReader browses the conversation archive. Backends that cannot browse
// simply do not implement it.
type HistoryReader interface {
	ListConversations(ctx context.Context, userID, topic string, limit int) ([]domain.Conversation, error)
	ReadConversation(ctx context.Context, id string) (*domain.ConversationDetail, error)
}

// Conversations lists the user's archived conversations, newest first. An
// empty topic lists every topic.
func (c *Coordinator) Conversations(ctx context.Context, topicName string) ([]domain.Conversation, error) {
	reader, ok := c.backend.(HistoryReader)
	if !ok {
		return nil, ErrHistoryUnavailable
	}
	if topicName != "" {
		if _, known := c.session.catalog.Lookup(topicName); !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topicName)
		}
	}

	conversations, err := reader.ListConversations(ctx, c.userID, topicName, DefaultHistoryPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// Resume replaces the open session with an archived conversation. Later turns
// are appended to the same archive record.
func (c *Coordinator) Resume(ctx context.Context, conversationID string) error {
	reader, ok := c.backend.(HistoryReader)
	if !ok {
		return ErrHistoryUnavailable
	}

	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	detail, err := reader.ReadConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	messages := make([]domain.Message, 0, len(detail.Messages))
	for _, m := range detail.Messages {
		messages = append(messages, domain.NewMessage(m.Role, m.Content, m.Timestamp))
	}

	if err := c.session.Restore(detail.Conversation.Topic, detail.Conversation.ID, messages); err != nil {
		return err
	}

	log.Info().
		Str("conversation_id", detail.Conversation.ID).
		Str("topic", detail.Conversation.Topic).
		Int("messages", len(messages)).
		Msg("resumed archived conversation")
	return nil
}
