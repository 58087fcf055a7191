package security

import (
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/Rrens/bloombuddy/internal/domain"
)

// DefaultMaxMessageLength is the longest accepted message, in characters
const DefaultMaxMessageLength = 4000

// Validation error codes, sent to clients as the "error" field
const (
	CodeInvalidRequest = "Invalid request"
	CodeInvalidFormat  = "Invalid message format"
	CodeTooLong        = "Message too long"
	CodeInvalidContent = "Invalid content"
)

// ContentValidator checks chat messages before they reach the model
type ContentValidator struct {
	maxLength       int
	blockedPatterns []*regexp.Regexp
}

// NewContentValidator creates a validator; maxLength <= 0 uses the default
func NewContentValidator(maxLength int) *ContentValidator {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}

	patterns := []string{
		`(?i)ignore previous instructions`,
		`(?i)disregard all prior`,
		`(?i)system:`,
		`(?i)\[INST\]`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}

	return &ContentValidator{maxLength: maxLength, blockedPatterns: compiled}
}

// ValidationError represents a rejected chat request
type ValidationError struct {
	Code    string
	Message string
	Pattern string
}

func (e *ValidationError) Error() string {
	return e.Code + ": " + e.Message
}

// MaxLength returns the configured message length limit
func (v *ContentValidator) MaxLength() int {
	return v.maxLength
}

// Validate checks every message. The first failing message decides the error.
func (v *ContentValidator) Validate(messages []domain.ChatMessage) error {
	if len(messages) == 0 {
		return &ValidationError{Code: CodeInvalidRequest, Message: "Message array is required and cannot be empty"}
	}

	for _, m := range messages {
		if m.Role == "" || m.Content == "" {
			return &ValidationError{Code: CodeInvalidFormat, Message: "Each message must have role and content"}
		}

		if utf8.RuneCountInString(m.Content) > v.maxLength {
			return &ValidationError{
				Code:    CodeTooLong,
				Message: "Individual messages cannot exceed " + strconv.Itoa(v.maxLength) + " characters",
			}
		}

		for _, pattern := range v.blockedPatterns {
			if pattern.MatchString(m.Content) {
				return &ValidationError{
					Code:    CodeInvalidContent,
					Message: "Your message contains restricted patterns",
					Pattern: pattern.String(),
				}
			}
		}
	}

	return nil
}
