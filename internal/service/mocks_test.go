package service

import (
	"context"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/Rrens/bloombuddy/internal/llm"
	"github.com/stretchr/testify/mock"
)

// MockConversationRepository mocks the ConversationRepository interface
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Create(ctx context.Context, conversation *domain.Conversation) error {
	args := m.Called(ctx, conversation)
	return args.Error(0)
}

func (m *MockConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) List(ctx context.Context, filter domain.ConversationFilter) ([]domain.Conversation, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) AppendMessage(ctx context.Context, message *domain.ConversationMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ConversationMessage), args.Error(1)
}

// MockUserRepository mocks the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Get(ctx context.Context, id string) (*domain.UserRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserRecord), args.Error(1)
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *domain.UserRecord) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockLLMProvider mocks the llm.Provider interface
type MockLLMProvider struct {
	mock.Mock
	configured bool
}

func (m *MockLLMProvider) Name() string {
	return "mock"
}

func (m *MockLLMProvider) AvailableModels() []string {
	return []string{"mock-model"}
}

func (m *MockLLMProvider) DefaultModel() string {
	return "mock-model"
}

func (m *MockLLMProvider) IsConfigured() bool {
	return m.configured
}

func (m *MockLLMProvider) Complete(ctx context.Context, req llm.Request, model string) (*llm.Response, error) {
	args := m.Called(ctx, req, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}
