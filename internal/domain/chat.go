package domain

import "time"

// ChatMessage is the wire form of a message sent to the chat endpoint
type ChatMessage struct {
	Role    string `json:"role" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Topic    string        `json:"topic"`
	UserID   string        `json:"userId"`
}

// Usage reports upstream token consumption
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatReply is the success body of POST /api/chat
type ChatReply struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Usage     *Usage    `json:"usage,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// ChatMessagesFrom converts history messages into their wire form
func ChatMessagesFrom(messages []Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
