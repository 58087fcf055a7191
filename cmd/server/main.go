package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rrens/bloombuddy/internal/api"
	"github.com/Rrens/bloombuddy/internal/api/handler"
	customMiddleware "github.com/Rrens/bloombuddy/internal/api/middleware"
	"github.com/Rrens/bloombuddy/internal/config"
	"github.com/Rrens/bloombuddy/internal/logging"
	"github.com/Rrens/bloombuddy/internal/repository/redis"
	"github.com/Rrens/bloombuddy/internal/security"
	"github.com/Rrens/bloombuddy/internal/service"
	"github.com/Rrens/bloombuddy/internal/topic"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("archive", cfg.Archive.Driver).
		Msg("Starting BloomBuddy server")

	ctx := context.Background()

	store, err := openArchive(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Archive.Driver).Msg("Failed to open conversation archive")
	}
	defer store.Close()

	ready := map[string]handler.Pinger{"archive": store}
	users := store.Users

	var generalLimiter, chatLimiter customMiddleware.Limiter
	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		if !cfg.Redis.Optional {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Warn().Err(err).Msg("Redis unavailable, using in-process rate limits")
		generalLimiter = customMiddleware.NewMemoryLimiter(cfg.Security.RateLimit.Requests, cfg.Security.RateLimit.Window)
		chatLimiter = customMiddleware.NewMemoryLimiter(cfg.Security.ChatRateLimit.Requests, cfg.Security.ChatRateLimit.Window)
	} else {
		defer redisClient.Close()
		ready["redis"] = redisClient
		generalLimiter = redis.NewRateLimiter(redisClient, "api", cfg.Security.RateLimit.Requests, cfg.Security.RateLimit.Window)
		chatLimiter = redis.NewRateLimiter(redisClient, "chat", cfg.Security.ChatRateLimit.Requests, cfg.Security.ChatRateLimit.Window)
		users = redis.NewUserCache(redisClient, users)
	}

	llmRouter := newLLMRouter(cfg.LLM)

	deps := api.Deps{
		Chat: service.NewChatService(
			llmRouter,
			security.NewContentValidator(cfg.Security.MaxMessageLength),
			topic.Default(),
			service.ChatConfig{
				Provider:    cfg.LLM.Provider,
				Model:       cfg.LLM.Model,
				MaxTokens:   cfg.LLM.MaxTokens,
				Temperature: cfg.LLM.Temperature,
			},
		),
		Conversations:  service.NewConversationService(store.Conversations),
		Users:          service.NewUserService(users),
		LLM:            llmRouter,
		GeneralLimiter: generalLimiter,
		ChatLimiter:    chatLimiter,
		Ready:          ready,
	}

	if cfg.Auth.Enabled {
		if cfg.Auth.JWTSecret == "" {
			log.Fatal().Msg("auth.enabled requires JWT_SECRET")
		}
		deps.Verifier = security.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
