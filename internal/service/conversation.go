package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ConversationService manages the append-only conversation archive
type ConversationService struct {
	repo domain.ConversationRepository
	now  func() time.Time
}

// NewConversationService creates a new conversation service
func NewConversationService(repo domain.ConversationRepository) *ConversationService {
	return &ConversationService{repo: repo, now: time.Now}
}

// Create starts a new conversation record
func (s *ConversationService) Create(ctx context.Context, in domain.ConversationCreate) (*domain.Conversation, error) {
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		UserID:    strings.TrimSpace(in.UserID),
		Topic:     strings.TrimSpace(in.Topic),
		StartedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// AppendMessage adds a message to an existing conversation. The server
// assigns the timestamp.
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID string, in domain.MessageCreate) (*domain.ConversationMessage, error) {
	if _, err := s.repo.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	msg := &domain.ConversationMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           in.Role,
		Content:        in.Content,
		Timestamp:      s.now().UTC(),
	}
	if err := s.repo.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

// List returns a user's conversations, newest first
func (s *ConversationService) List(ctx context.Context, filter domain.ConversationFilter) ([]domain.Conversation, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	conversations, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}
	return conversations, nil
}

// Get returns a conversation with its messages, oldest first
func (s *ConversationService) Get(ctx context.Context, id string) (*domain.ConversationDetail, error) {
	conv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if messages == nil {
		messages = []domain.ConversationMessage{}
	}

	return &domain.ConversationDetail{Conversation: *conv, Messages: messages}, nil
}
