package llm

import (
	"io"
	"net/http"
	"strings"

	"github.com/Rrens/bloombuddy/internal/domain"
)

// BuildMessages prepends the system prompt to the conversation sent by the client
func BuildMessages(systemPrompt string, conversation []domain.ChatMessage) []Message {
	messages := make([]Message, 0, len(conversation)+1)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	for _, m := range conversation {
		messages = append(messages, Message{Role: Role(m.Role), Content: m.Content})
	}
	return messages
}

// SplitSystem separates system messages from the rest, for APIs that take the
// system prompt as a separate field
func SplitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// NewStatusError reads a bounded excerpt of a failed response body
func NewStatusError(provider string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}
