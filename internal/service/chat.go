package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/Rrens/bloombuddy/internal/llm"
	"github.com/Rrens/bloombuddy/internal/security"
	"github.com/Rrens/bloombuddy/internal/topic"
	"github.com/rs/zerolog/log"
)

// ChatConfig selects the upstream model and sampling
type ChatConfig struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// ChatService validates chat requests and forwards them to the LLM provider
type ChatService struct {
	llmRouter *llm.Router
	validator *security.ContentValidator
	catalog   *topic.Catalog
	cfg       ChatConfig
	now       func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(llmRouter *llm.Router, validator *security.ContentValidator, catalog *topic.Catalog, cfg ChatConfig) *ChatService {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	return &ChatService{
		llmRouter: llmRouter,
		validator: validator,
		catalog:   catalog,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Chat answers the last message of the conversation. Every failure is an
// *domain.EndpointError safe to send to the client.
func (s *ChatService) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}

	if err := s.validator.Validate(req.Messages); err != nil {
		var vErr *security.ValidationError
		if errors.As(err, &vErr) {
			if vErr.Code == security.CodeInvalidContent {
				log.Warn().Str("user_id", userID).Str("pattern", vErr.Pattern).Msg("potential prompt injection detected")
			}
			return nil, domain.NewEndpointError(http.StatusBadRequest, vErr.Code, vErr.Message)
		}
		return nil, domain.NewEndpointError(http.StatusBadRequest, security.CodeInvalidRequest, err.Error())
	}

	provider, err := s.llmRouter.Resolve(s.cfg.Provider)
	if err != nil {
		log.Error().Err(err).Str("provider", s.cfg.Provider).Msg("chat provider not configured")
		return nil, domain.NewEndpointError(http.StatusInternalServerError,
			"Server configuration error", "Chat service is not properly configured")
	}

	messages := llm.BuildMessages(s.catalog.SystemPrompt(req.Topic), req.Messages)

	resp, err := provider.Complete(ctx, llm.Request{
		Messages:    messages,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}, s.cfg.Model)
	if err != nil {
		return nil, upstreamError(err, provider.Name())
	}

	if strings.TrimSpace(resp.Content) == "" {
		log.Error().Str("provider", provider.Name()).Msg("upstream returned an empty message")
		return nil, domain.NewEndpointError(http.StatusInternalServerError,
			"Invalid response", "Received unexpected response from chat service")
	}

	logEvent := log.Info().
		Str("topic", req.Topic).
		Str("provider", provider.Name()).
		Str("model", resp.Model).
		Int64("latency_ms", resp.LatencyMs)
	if resp.Usage != nil {
		logEvent = logEvent.Int("total_tokens", resp.Usage.TotalTokens)
	}
	logEvent.Msg("chat request completed")

	reply := &domain.ChatReply{
		Success:   true,
		Message:   resp.Content,
		Timestamp: s.now().UTC(),
	}
	if resp.Usage != nil {
		reply.Usage = &domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return reply, nil
}

// upstreamError maps a provider failure to the client-facing error. Internal
// detail is logged, never returned.
func upstreamError(err error, provider string) *domain.EndpointError {
	var statusErr *llm.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests:
		log.Warn().Str("provider", provider).Msg("upstream rate limited")
		return domain.NewEndpointError(http.StatusTooManyRequests, "Rate Limited",
			"Chat service is temporarily unavailable due to high demand. Please try again in a moment.")

	case errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden):
		log.Error().Str("provider", provider).Int("status", statusErr.StatusCode).Msg("upstream rejected API key")
		return domain.NewEndpointError(http.StatusInternalServerError, "Authentication error",
			"Chat service authentication failed")

	case errors.Is(err, llm.ErrInvalidResponse):
		log.Error().Err(err).Str("provider", provider).Msg("unexpected upstream response structure")
		return domain.NewEndpointError(http.StatusInternalServerError, "Invalid response",
			"Received unexpected response from chat service")
	}

	ev := log.Error().Err(err).Str("provider", provider)
	if statusErr != nil {
		ev = ev.Int("status", statusErr.StatusCode).Str("body", statusErr.Body)
	}
	ev.Msg("upstream chat request failed")
	return domain.NewEndpointError(http.StatusInternalServerError, "Chat service error",
		"Unable to process your message at this time")
}
