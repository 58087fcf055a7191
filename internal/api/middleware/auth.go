package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Rrens/bloombuddy/internal/api/response"
	"github.com/Rrens/bloombuddy/internal/security"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	UserIDKey    contextKey = "userID"
	UserEmailKey contextKey = "userEmail"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	verifier *security.JWTVerifier
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(verifier *security.JWTVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate requires a valid bearer token
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Unauthorized(w, "missing authorization header")
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			response.Unauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			log.Debug().Err(err).Msg("rejected bearer token")
			response.Unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID())
		ctx = context.WithValue(ctx, UserEmailKey, claims.Email)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID gets the authenticated user ID from context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// GetUserEmail gets the user email from context
func GetUserEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailKey).(string)
	return email, ok
}
