package main

import (
	"github.com/Rrens/bloombuddy/internal/config"
	"github.com/Rrens/bloombuddy/internal/llm"
	"github.com/Rrens/bloombuddy/internal/llm/anthropic"
	"github.com/Rrens/bloombuddy/internal/llm/gemini"
	"github.com/Rrens/bloombuddy/internal/llm/ollama"
	"github.com/Rrens/bloombuddy/internal/llm/openai"
	"github.com/rs/zerolog/log"
)

// newLLMRouter registers every provider that has credentials, each wrapped
// in the retry policy
func newLLMRouter(cfg config.LLMConfig) *llm.Router {
	router := llm.NewRouter(cfg.Provider)
	policy := llm.RetryPolicy{
		Timeout:    cfg.RequestTimeout,
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryBackoff,
	}

	register := func(p llm.Provider) {
		log.Info().Str("provider", p.Name()).Str("model", p.DefaultModel()).Msg("Registering LLM provider")
		router.RegisterProvider(llm.WithRetry(p, policy))
	}

	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.Provider)

	if cfg.OpenRouter.APIKey != "" {
		register(openai.NewOpenRouter(cfg.OpenRouter.APIKey, cfg.OpenRouter.Model, cfg.OpenRouter.Referer))
	}
	if cfg.OpenAI.APIKey != "" {
		register(openai.NewProvider(openai.Config{APIKey: cfg.OpenAI.APIKey, DefaultModel: cfg.OpenAI.Model}))
	}
	if cfg.DeepSeek.APIKey != "" {
		register(openai.NewDeepSeek(cfg.DeepSeek.APIKey, cfg.DeepSeek.Model))
	}
	if cfg.Anthropic.APIKey != "" {
		register(anthropic.NewProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
	}
	if cfg.Gemini.APIKey != "" {
		register(gemini.NewProvider(cfg.Gemini.APIKey, cfg.Gemini.Model))
	}
	if cfg.Ollama.Host != "" {
		register(ollama.NewProvider(cfg.Ollama.Host, cfg.Ollama.DefaultModel))
	}

	if _, err := router.Resolve(cfg.Provider); err != nil {
		log.Warn().Err(err).Msg("no chat provider configured, /api/chat will fail")
	}
	return router
}
