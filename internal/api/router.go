package api

import (
	"net/http"

	"github.com/Rrens/bloombuddy/internal/api/handler"
	customMiddleware "github.com/Rrens/bloombuddy/internal/api/middleware"
	"github.com/Rrens/bloombuddy/internal/config"
	"github.com/Rrens/bloombuddy/internal/llm"
	"github.com/Rrens/bloombuddy/internal/security"
	"github.com/Rrens/bloombuddy/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 10 << 20

const (
	generalLimitMessage = "Too many requests from this IP, please try again later."
	chatLimitMessage    = "Too many chat requests. Please wait a moment before sending another message."
)

// Deps are the constructed components the router serves
type Deps struct {
	Chat          *service.ChatService
	Conversations *service.ConversationService
	Users         *service.UserService
	LLM           *llm.Router

	// Verifier enables bearer-token auth on /api when set
	Verifier *security.JWTVerifier

	GeneralLimiter customMiddleware.Limiter
	ChatLimiter    customMiddleware.Limiter

	// Ready lists the dependencies /ready pings
	Ready map[string]handler.Pinger
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Server.WriteTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
	}
	r.Use(customMiddleware.SecureHeaders)
	r.Use(customMiddleware.MaxBodySize(maxBodyBytes))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Request-ID", "RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(handler.NotFound)

	chatHandler := handler.NewChatHandler(deps.Chat)
	conversationHandler := handler.NewConversationHandler(deps.Conversations)
	userHandler := handler.NewUserHandler(deps.Users)

	r.Get("/health", handler.HealthCheck)
	r.Get("/ready", handler.ReadyCheck(deps.Ready))

	r.Route("/api", func(r chi.Router) {
		if deps.GeneralLimiter != nil {
			r.Use(customMiddleware.NewRateLimitMiddleware(deps.GeneralLimiter, customMiddleware.ClientIP, generalLimitMessage).Limit)
		}

		if deps.Verifier != nil {
			r.Use(customMiddleware.NewAuthMiddleware(deps.Verifier).Authenticate)
		} else {
			log.Warn().Msg("authentication disabled, archive endpoints are open")
		}

		r.Get("/llm-providers", handler.ListLLMProviders(deps.LLM))

		r.Group(func(r chi.Router) {
			if deps.ChatLimiter != nil {
				r.Use(customMiddleware.NewRateLimitMiddleware(deps.ChatLimiter, customMiddleware.UserOrIP, chatLimitMessage).Limit)
			}
			r.Post("/chat", chatHandler.Chat)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Post("/", conversationHandler.Create)

			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Post("/messages", conversationHandler.AppendMessage)
			})
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", userHandler.Get)
			r.Put("/", userHandler.Update)
		})
	})

	return r
}
