package llm

import (
	"context"
	"errors"
	"fmt"
)

// Role of a chat completion message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the completion input
type Message struct {
	Role    Role
	Content string
}

// Request contains chat completion parameters
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage reports token consumption of a completion
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response contains LLM completion result
type Response struct {
	Content   string
	Model     string
	Usage     *Usage
	LatencyMs int64
}

// ErrInvalidResponse is returned when a provider answers without a message
var ErrInvalidResponse = errors.New("llm: unexpected response structure")

// StatusError is a non-2xx answer from a provider's API
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Complete produces the assistant's next message
	Complete(ctx context.Context, req Request, model string) (*Response, error)
}
