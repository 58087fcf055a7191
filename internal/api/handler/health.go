package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Rrens/bloombuddy/internal/api/response"
	"github.com/Rrens/bloombuddy/internal/llm"
)

var startedAt = time.Now()

// Pinger is a dependency whose reachability gates readiness
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(startedAt).Seconds(),
	})
}

// ReadyCheck returns readiness status including archive connectivity
func ReadyCheck(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				response.Error(w, http.StatusServiceUnavailable, "Not ready", name+" not ready")
				return
			}
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}

// ListLLMProviders returns the registered LLM providers
func ListLLMProviders(router *llm.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]any{
			"providers":          router.Providers(),
			"preferred_provider": router.Preferred(),
		})
	}
}

// NotFound answers unknown routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	response.NotFound(w, "Route "+r.URL.Path+" does not exist")
}
