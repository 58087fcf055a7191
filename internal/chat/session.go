// Package chat implements the offline-aware chat core: the conversation
// session holding the context window for one topic, the offline outbox that
// buffers messages while the network is away, and the coordinator that moves
// user messages between them and the remote chat endpoint.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/Rrens/bloombuddy/internal/localstore"
	"github.com/Rrens/bloombuddy/internal/topic"
	"github.com/rs/zerolog/log"
)

// DefaultHistoryLimit bounds the context window sent to the endpoint
const DefaultHistoryLimit = 20

// Session tracks the turn history of the active topic
type Session struct {
	store   localstore.Store
	catalog *topic.Catalog
	limit   int
	now     func() time.Time

	mu             sync.RWMutex
	topic          string
	history        []domain.Message
	transcript     []domain.Message
	conversationID string
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithHistoryLimit overrides the number of messages kept in the context window
func WithHistoryLimit(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithSessionClock overrides the clock used to stamp synthetic messages
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession creates a closed session; call Open before use
func NewSession(store localstore.Store, catalog *topic.Catalog, opts ...SessionOption) *Session {
	s := &Session{
		store:   store,
		catalog: catalog,
		limit:   DefaultHistoryLimit,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open resets the session to topicName and hydrates its history from the
// local store. The topic's introductory message is appended to the transcript
// only; it is never persisted and never part of the context window.
func (s *Session) Open(ctx context.Context, topicName string) error {
	cfg, ok := s.catalog.Lookup(topicName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topicName)
	}

	history := s.hydrate(ctx, topicName)
	intro := domain.NewMessage(domain.RoleAssistant, cfg.Intro, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()

	s.topic = topicName
	s.conversationID = ""
	s.history = history
	s.transcript = make([]domain.Message, 0, len(history)+1)
	s.transcript = append(s.transcript, history...)
	s.transcript = append(s.transcript, intro)

	log.Debug().
		Str("topic", topicName).
		Int("history", len(history)).
		Msg("chat session opened")

	return nil
}

// Close clears all session state
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.topic = ""
	s.conversationID = ""
	s.history = nil
	s.transcript = nil
}

// ClearHistory deletes the stored history of every topic. An open topic
// starts over with its introduction and a new archive conversation.
func (s *Session) ClearHistory(ctx context.Context) error {
	var errs []error
	for _, name := range s.catalog.Names() {
		if err := s.store.Delete(ctx, localstore.HistoryKey(name)); err != nil {
			errs = append(errs, fmt.Errorf("topic %s: %w", name, err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.topic != "" {
		cfg, _ := s.catalog.Lookup(s.topic)
		s.history = nil
		s.conversationID = ""
		s.transcript = []domain.Message{domain.NewMessage(domain.RoleAssistant, cfg.Intro, s.now())}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	log.Info().Msg("chat history cleared")
	return nil
}

// Restore replaces the session with an archived conversation. The restored
// history is not written to the local store until the next exchange.
func (s *Session) Restore(topicName, conversationID string, messages []domain.Message) error {
	cfg, ok := s.catalog.Lookup(topicName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topicName)
	}

	history := make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		if m.WellFormed() {
			history = append(history, m)
		}
	}
	history = trimHistory(history, s.limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.topic = topicName
	s.conversationID = conversationID
	s.history = history
	s.transcript = append([]domain.Message(nil), history...)
	if len(history) == 0 {
		s.transcript = append(s.transcript, domain.NewMessage(domain.RoleAssistant, cfg.Intro, s.now()))
	}
	return nil
}

// AppendTurn records a completed exchange, trims the history to the limit and
// persists it under the topic key
func (s *Session) AppendTurn(ctx context.Context, user, assistant domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.topic == "" {
		return ErrNoSession
	}

	next := make([]domain.Message, 0, len(s.history)+2)
	next = append(next, s.history...)
	next = append(next, user, assistant)
	s.history = trimHistory(next, s.limit)

	data, err := json.Marshal(s.history)
	if err != nil {
		return fmt.Errorf("failed to marshal chat history: %w", err)
	}
	if err := s.store.Set(ctx, localstore.HistoryKey(s.topic), data); err != nil {
		return fmt.Errorf("failed to persist chat history: %w", err)
	}
	return nil
}

// CurrentContext returns the context window, oldest message first
func (s *Session) CurrentContext() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Message(nil), s.history...)
}

// Transcript returns everything displayed for the session, including the
// introductory message and local notices
func (s *Session) Transcript() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Message(nil), s.transcript...)
}

// Display appends a message to the transcript without touching the history
func (s *Session) Display(m domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, m)
}

// Topic returns the open topic, or "" when closed
func (s *Session) Topic() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topic
}

// ConversationID returns the bound archive id, or "" when none is bound
func (s *Session) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationID
}

// BindConversationID binds the archive record of this conversation. The first
// id wins; later attempts with a different id are ignored.
func (s *Session) BindConversationID(id string) bool {
	if id == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conversationID == "" {
		s.conversationID = id
		return true
	}
	if s.conversationID != id {
		log.Warn().
			Str("bound", s.conversationID).
			Str("rejected", id).
			Msg("conversation id already bound, keeping the first")
	}
	return false
}

func (s *Session) hydrate(ctx context.Context, topicName string) []domain.Message {
	key := localstore.HistoryKey(topicName)

	data, err := s.store.Get(ctx, key)
	if errors.Is(err, localstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Str("topic", topicName).Msg("failed to read chat history, starting empty")
		return nil
	}

	history, err := decodeHistory(data, s.now())
	if err != nil {
		log.Warn().Err(err).Str("topic", topicName).Msg("discarding corrupt chat history")
		if err := s.store.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("topic", topicName).Msg("failed to delete corrupt chat history")
		}
		return nil
	}

	return trimHistory(history, s.limit)
}

type storedMessage struct {
	Role      domain.MessageRole `json:"role"`
	Content   string             `json:"content"`
	Timestamp string             `json:"timestamp"`
}

// decodeHistory parses a stored history. Any malformed message rejects the
// whole record; a missing or unreadable timestamp is replaced with loadedAt.
func decodeHistory(data []byte, loadedAt time.Time) ([]domain.Message, error) {
	var stored []storedMessage
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, errors.New("stored history is not an array")
	}

	history := make([]domain.Message, 0, len(stored))
	for i, sm := range stored {
		m := domain.Message{Role: sm.Role, Content: sm.Content}
		if !m.WellFormed() {
			return nil, fmt.Errorf("message %d is malformed", i)
		}
		ts, err := time.Parse(time.RFC3339Nano, sm.Timestamp)
		if err != nil {
			ts = loadedAt
		}
		m.Timestamp = ts.UTC()
		history = append(history, m)
	}
	return history, nil
}

// trimHistory keeps the newest limit messages
func trimHistory(history []domain.Message, limit int) []domain.Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return append([]domain.Message(nil), history[len(history)-limit:]...)
}
