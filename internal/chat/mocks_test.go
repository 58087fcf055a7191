package chat

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/Rrens/bloombuddy/internal/localstore"
	"github.com/stretchr/testify/mock"
)

var testTime = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testTime }

// MockBackend mocks the Backend interface
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) SendChat(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatReply), args.Error(1)
}

func (m *MockBackend) CreateConversationRecord(ctx context.Context, userID, topic string) (string, error) {
	args := m.Called(ctx, userID, topic)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) AppendMessageRecord(ctx context.Context, conversationID string, message domain.Message) error {
	args := m.Called(ctx, conversationID, message)
	return args.Error(0)
}

func (m *MockBackend) ReadUserRecord(ctx context.Context, userID string) (*domain.UserRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserRecord), args.Error(1)
}

// MockHistoryBackend is a Backend that can also browse the archive
type MockHistoryBackend struct {
	MockBackend
}

func (m *MockHistoryBackend) ListConversations(ctx context.Context, userID, topic string, limit int) ([]domain.Conversation, error) {
	args := m.Called(ctx, userID, topic, limit)
	return args.Get(0).([]domain.Conversation), args.Error(1)
}

func (m *MockHistoryBackend) ReadConversation(ctx context.Context, id string) (*domain.ConversationDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversationDetail), args.Error(1)
}

var errStoreDown = errors.New("store unavailable")

// flakyStore wraps a Store and fails writes on demand
type flakyStore struct {
	localstore.Store
	failSet atomic.Bool
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if s.failSet.Load() {
		return errStoreDown
	}
	return s.Store.Set(ctx, key, value)
}

// recorder collects observer events
type recorder struct {
	messages atomic.Int32
	failures []Failure
}

func (r *recorder) MessageAppended(domain.Message) { r.messages.Add(1) }
func (r *recorder) ErrorOccurred(f Failure)        { r.failures = append(r.failures, f) }

func lastContent(req domain.ChatRequest) string {
	return req.Messages[len(req.Messages)-1].Content
}
