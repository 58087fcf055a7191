// Package memory is an in-process conversation archive for development and
// tests. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Rrens/bloombuddy/internal/domain"
)

// Archive implements domain.ConversationRepository and domain.UserRepository
type Archive struct {
	mu            sync.RWMutex
	conversations map[string]domain.Conversation
	messages      map[string][]domain.ConversationMessage
	users         map[string]domain.UserRecord
}

// NewArchive creates an empty archive
func NewArchive() *Archive {
	return &Archive{
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.ConversationMessage),
		users:         make(map[string]domain.UserRecord),
	}
}

func (a *Archive) Create(ctx context.Context, conversation *domain.Conversation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.conversations[conversation.ID]; ok {
		return fmt.Errorf("conversation %s already exists", conversation.ID)
	}
	a.conversations[conversation.ID] = *conversation
	return nil
}

func (a *Archive) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	c, ok := a.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

func (a *Archive) List(ctx context.Context, filter domain.ConversationFilter) ([]domain.Conversation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []domain.Conversation
	for _, c := range a.conversations {
		if c.UserID != filter.UserID {
			continue
		}
		if filter.Topic != "" && c.Topic != filter.Topic {
			continue
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (a *Archive) AppendMessage(ctx context.Context, message *domain.ConversationMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.conversations[message.ConversationID]; !ok {
		return fmt.Errorf("conversation %s: %w", message.ConversationID, domain.ErrNotFound)
	}
	a.messages[message.ConversationID] = append(a.messages[message.ConversationID], *message)
	return nil
}

func (a *Archive) ListMessages(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	msgs := a.messages[conversationID]
	out := make([]domain.ConversationMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Users returns the user repository view of the archive
func (a *Archive) Users() *Users {
	return &Users{a: a}
}

// Users implements domain.UserRepository over an Archive
type Users struct {
	a *Archive
}

func (u *Users) Get(ctx context.Context, id string) (*domain.UserRecord, error) {
	u.a.mu.RLock()
	defer u.a.mu.RUnlock()

	user, ok := u.a.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return &user, nil
}

func (u *Users) Upsert(ctx context.Context, user *domain.UserRecord) error {
	u.a.mu.Lock()
	defer u.a.mu.Unlock()

	u.a.users[user.ID] = *user
	return nil
}

// Ping always succeeds
func (a *Archive) Ping(ctx context.Context) error {
	return nil
}
