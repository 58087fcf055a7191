package domain

import (
	"strings"
	"time"
)

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Valid reports whether the role is one the chat history may hold
func (r MessageRole) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one immutable chat message. Containers hold it by value.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage creates a message stamped with the given time in UTC
func NewMessage(role MessageRole, content string, at time.Time) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: at.UTC(),
	}
}

// WellFormed reports whether the message may be stored in a history
func (m Message) WellFormed() bool {
	return m.Role.Valid() && strings.TrimSpace(m.Content) != ""
}

// OutboxEntry is a user message waiting to be delivered once connectivity returns
type OutboxEntry struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewOutboxEntry copies a user message into a queue entry
func NewOutboxEntry(m Message) OutboxEntry {
	return OutboxEntry{
		Role:      RoleUser,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
}

// Message returns the entry as a user message
func (e OutboxEntry) Message() Message {
	return Message{Role: RoleUser, Content: e.Content, Timestamp: e.Timestamp}
}
