package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Rrens/bloombuddy/internal/llm"
)

// Defaults for OpenRouter, the upstream BloomBuddy was built against
const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	OpenAIBaseURL     = "https://api.openai.com/v1"
	DeepSeekBaseURL   = "https://api.deepseek.com/v1"
)

// Config describes an OpenAI-compatible chat completions API
type Config struct {
	// Name is the provider identifier, e.g. "openrouter" or "deepseek"
	Name         string
	APIKey       string
	BaseURL      string
	DefaultModel string
	Models       []string
	// Headers are sent with every request, e.g. OpenRouter's HTTP-Referer and X-Title
	Headers map[string]string
	// Sampling penalties; zero values are omitted
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// Provider implements llm.Provider for OpenAI-compatible APIs
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates a new OpenAI-compatible provider
func NewProvider(cfg Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o-mini"
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// NewOpenRouter creates a provider for OpenRouter
func NewOpenRouter(apiKey, model, referer string) *Provider {
	if model == "" {
		model = "openai/gpt-3.5-turbo"
	}
	if referer == "" {
		referer = "http://localhost:3000"
	}
	return NewProvider(Config{
		Name:         "openrouter",
		APIKey:       apiKey,
		BaseURL:      OpenRouterBaseURL,
		DefaultModel: model,
		Models: []string{
			"openai/gpt-3.5-turbo",
			"openai/gpt-4o-mini",
			"anthropic/claude-3.5-haiku",
			"meta-llama/llama-3.1-8b-instruct",
		},
		Headers: map[string]string{
			"HTTP-Referer": referer,
			"X-Title":      "BloomBuddy",
		},
		TopP:             0.9,
		FrequencyPenalty: 0.3,
		PresencePenalty:  0.3,
	})
}

// NewDeepSeek creates a provider for the DeepSeek API
func NewDeepSeek(apiKey, model string) *Provider {
	if model == "" {
		model = "deepseek-chat"
	}
	return NewProvider(Config{
		Name:         "deepseek",
		APIKey:       apiKey,
		BaseURL:      DeepSeekBaseURL,
		DefaultModel: model,
		Models:       []string{"deepseek-chat", "deepseek-reasoner"},
	})
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return p.cfg.Name
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	if len(p.cfg.Models) > 0 {
		return p.cfg.Models
	}
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
		"gpt-3.5-turbo",
	}
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.cfg.DefaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.cfg.APIKey != ""
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	TopP             float64       `json:"top_p,omitempty"`
	FrequencyPenalty float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64       `json:"presence_penalty,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the conversation to /chat/completions
func (p *Provider) Complete(ctx context.Context, req llm.Request, model string) (*llm.Response, error) {
	if model == "" {
		model = p.cfg.DefaultModel
	}

	chatReq := chatRequest{
		Model:            model,
		Messages:         make([]chatMessage, 0, len(req.Messages)),
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             p.cfg.TopP,
		FrequencyPenalty: p.cfg.FrequencyPenalty,
		PresencePenalty:  p.cfg.PresencePenalty,
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	for k, v := range p.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, llm.NewStatusError(p.cfg.Name, resp)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrInvalidResponse, err)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message == nil {
		return nil, llm.ErrInvalidResponse
	}

	out := &llm.Response{
		Content:   chatResp.Choices[0].Message.Content,
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if chatResp.Model != "" {
		out.Model = chatResp.Model
	}
	if chatResp.Usage != nil {
		out.Usage = &llm.Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		}
	}
	return out, nil
}
